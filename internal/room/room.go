package room

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/fightclub-backend/internal/engine"
)

var ErrRoomClosed = errors.New("room closed")

type Msg interface{ isRoomMsg() }

type Join struct {
	ParticipantID string
	Outbox        chan Update // where this participant receives updates
	Reply         chan error
}

func (Join) isRoomMsg() {}

type Leave struct {
	ParticipantID string
	Reply         chan error
}

func (Leave) isRoomMsg() {}

type FromClient struct {
	Cmd   engine.Command
	Reply chan error
}

func (FromClient) isRoomMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isRoomMsg() {}

type Shutdown struct{}

func (Shutdown) isRoomMsg() {}

type timerKind int

const (
	timerIdle timerKind = iota
	timerCountdown
	timerGrace
)

type timerFired struct {
	kind timerKind
	gen  int
}

func (timerFired) isRoomMsg() {}

// Update is what members receive after every committed change. Events from a
// query are delivered to the issuer only.
type Update struct {
	RoomID  string
	Version int
	Events  []engine.Event
	State   engine.State
}

type View struct {
	Version    int
	NumClients int
	State      engine.State
}

type Options struct {
	Rules engine.Rules
	// TickInterval is the time between countdown decrements.
	TickInterval time.Duration
	// GracePeriod keeps a finished room alive so late messages still reach it.
	GracePeriod time.Duration
	// IdleTTL tears down a room nobody has joined.
	IdleTTL   time.Duration
	InboxSize int
	Logger    *zap.Logger
	// OnClose runs once, on its own goroutine, after the room stopped.
	OnClose func(id string, r *Room)
}

func (o Options) withDefaults() Options {
	if o.Rules == (engine.Rules{}) {
		o.Rules = engine.NewEmptyState().Rules
	}
	if o.TickInterval <= 0 {
		o.TickInterval = time.Second
	}
	if o.GracePeriod <= 0 {
		o.GracePeriod = 30 * time.Second
	}
	if o.IdleTTL <= 0 {
		o.IdleTTL = 5 * time.Minute
	}
	if o.InboxSize <= 0 {
		o.InboxSize = 64
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

type Room struct {
	id      string
	inbox   chan Msg
	state   engine.State
	version int
	clients map[string]chan Update
	opts    Options
	log     *zap.Logger

	timer     *time.Timer
	timerKind timerKind
	timerGen  int
	emptied   bool

	open    atomic.Bool
	stopped atomic.Bool
	ctx     context.Context
	stop    context.CancelFunc
	done    chan struct{}
}

func New(parent context.Context, id string, opts Options) *Room {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(parent)

	state := engine.NewEmptyState()
	state.Rules = opts.Rules

	r := &Room{
		id:      id,
		inbox:   make(chan Msg, opts.InboxSize),
		state:   state,
		clients: make(map[string]chan Update),
		opts:    opts,
		log:     opts.Logger.With(zap.String("room_id", id)),
		ctx:     ctx,
		stop:    cancel,
		done:    make(chan struct{}),
	}
	r.open.Store(state.Open())

	go r.loop()
	return r
}

func (r *Room) loop() {
	defer close(r.done)
	r.arm(timerIdle, r.opts.IdleTTL)

	for {
		select {
		case <-r.ctx.Done():
			r.teardown("shutdown")
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				err := r.exec(engine.Command{Type: engine.CmdJoin, ParticipantID: msg.ParticipantID}, func(rejoin bool) {
					r.subscribe(msg.ParticipantID, msg.Outbox)
					if rejoin {
						r.deliver(msg.ParticipantID, r.update([]engine.Event{{Type: engine.EvtParticipantJoined, ParticipantID: msg.ParticipantID}}))
					}
				})
				reply(msg.Reply, err)

			case Leave:
				err := r.exec(engine.Command{Type: engine.CmdLeave, ParticipantID: msg.ParticipantID}, func(bool) {
					r.unsubscribe(msg.ParticipantID)
				})
				reply(msg.Reply, err)

			case FromClient:
				reply(msg.Reply, r.exec(msg.Cmd, nil))

			case GetState:
				// Backs View: a copy of the state read on the room goroutine.
				msg.Reply <- View{
					Version:    r.version,
					NumClients: len(r.clients),
					State:      r.state,
				}

			case timerFired:
				if msg.gen != r.timerGen {
					break // stale
				}
				r.timer = nil
				switch msg.kind {
				case timerCountdown:
					_ = r.exec(engine.Command{Type: engine.CmdCountdownTick}, nil)
				case timerGrace:
					r.teardown("grace period over")
					return
				case timerIdle:
					if len(r.state.Participants) == 0 {
						r.teardown("idle")
						return
					}
				}

			case Shutdown:
				r.teardown("shutdown")
				return
			}

			if r.emptied {
				r.teardown("empty")
				return
			}
		}
	}
}

// exec applies cmd and, when accepted, commits and broadcasts the result.
// onAccept runs after validation and before the broadcast; its argument is
// true when the command was accepted as a no-op.
func (r *Room) exec(cmd engine.Command, onAccept func(noop bool)) error {
	events, next, err := engine.Apply(r.state, cmd)
	if err != nil {
		r.log.Debug("command rejected",
			zap.String("cmd", string(cmd.Type)),
			zap.String("participant_id", cmd.ParticipantID),
			zap.Error(err),
		)
		return err
	}
	if onAccept != nil {
		onAccept(len(events) == 0)
	}
	if cmd.Type.IsQuery() {
		r.deliver(cmd.ParticipantID, r.update(events))
		return nil
	}
	if len(events) == 0 {
		return nil
	}

	r.state = next
	r.version++
	r.open.Store(next.Open())
	r.broadcast(r.update(events))
	r.react(events)
	return nil
}

func (r *Room) react(events []engine.Event) {
	for _, e := range events {
		switch e.Type {
		case engine.EvtParticipantJoined:
			if r.timer != nil && r.timerKind == timerIdle {
				r.disarm()
			}
		case engine.EvtCountdown:
			r.arm(timerCountdown, r.opts.TickInterval)
		case engine.EvtCombatStarted:
			r.disarm()
			r.log.Info("combat started", zap.String("turn", r.state.Turn))
		case engine.EvtRoomEmptied:
			r.emptied = true
		case engine.EvtGameOver:
			r.log.Info("game over",
				zap.String("winner", e.ParticipantID),
				zap.String("reason", e.Reason),
			)
			r.arm(timerGrace, r.opts.GracePeriod)
		}
	}
}

func (r *Room) update(events []engine.Event) Update {
	return Update{RoomID: r.id, Version: r.version, Events: events, State: r.state}
}

func (r *Room) subscribe(id string, outbox chan Update) {
	if outbox == nil {
		return
	}
	if prev, ok := r.clients[id]; ok && prev != outbox {
		close(prev)
	}
	r.clients[id] = outbox
}

func (r *Room) unsubscribe(id string) {
	if ch, ok := r.clients[id]; ok {
		close(ch)
		delete(r.clients, id)
	}
}

func (r *Room) broadcast(u Update) {
	for id := range r.clients {
		r.deliver(id, u)
	}
}

func (r *Room) deliver(id string, u Update) {
	ch, ok := r.clients[id]
	if !ok {
		return
	}
	select {
	case ch <- u:
		//ok
	default:
		// Member is slow/full - drop the subscription. The match state stays committed.
		r.log.Warn("dropping slow client", zap.String("participant_id", id))
		close(ch)
		delete(r.clients, id)
	}
}

func (r *Room) arm(kind timerKind, d time.Duration) {
	r.disarm()
	gen := r.timerGen
	r.timerKind = kind
	r.timer = time.AfterFunc(d, func() {
		select {
		case r.inbox <- timerFired{kind: kind, gen: gen}:
		case <-r.done:
		}
	})
}

func (r *Room) disarm() {
	r.timerGen++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

func (r *Room) teardown(reason string) {
	r.stopped.Store(true)
	r.disarm()
	r.open.Store(false)
	for id, ch := range r.clients {
		close(ch) // Tell member no more updates
		delete(r.clients, id)
	}
	r.stop()
	r.log.Info("room closed", zap.String("reason", reason))
	if r.opts.OnClose != nil {
		go r.opts.OnClose(r.id, r)
	}
}

func reply(ch chan error, err error) {
	if ch == nil {
		return
	}
	select {
	case ch <- err:
	default:
	}
}

// Inbox exposes the raw mailbox.
func (r *Room) Inbox() chan<- Msg { return r.inbox }

func (r *Room) ID() string { return r.id }

// Open reports whether the room still waits for players. Safe from any goroutine.
func (r *Room) Open() bool { return r.open.Load() }

func (r *Room) Done() <-chan struct{} { return r.done }

// Closed reports whether the room has started tearing down. It turns true
// before member outboxes are closed.
func (r *Room) Closed() bool { return r.stopped.Load() }

// Join adds participantID to the room; updates are written to outbox until
// the participant leaves or the room closes, at which point outbox is closed.
func (r *Room) Join(ctx context.Context, participantID string, outbox chan Update) error {
	rep := make(chan error, 1)
	return r.call(ctx, Join{ParticipantID: participantID, Outbox: outbox, Reply: rep}, rep)
}

func (r *Room) Leave(ctx context.Context, participantID string) error {
	rep := make(chan error, 1)
	return r.call(ctx, Leave{ParticipantID: participantID, Reply: rep}, rep)
}

func (r *Room) Do(ctx context.Context, cmd engine.Command) error {
	rep := make(chan error, 1)
	return r.call(ctx, FromClient{Cmd: cmd, Reply: rep}, rep)
}

func (r *Room) View(ctx context.Context) (View, error) {
	rep := make(chan View, 1)
	if err := r.post(ctx, GetState{Reply: rep}); err != nil {
		return View{}, err
	}
	select {
	case v := <-rep:
		return v, nil
	case <-r.done:
		return View{}, ErrRoomClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

// Shutdown stops the room without waiting for it.
func (r *Room) Shutdown() { r.stop() }

func (r *Room) call(ctx context.Context, m Msg, rep chan error) error {
	if err := r.post(ctx, m); err != nil {
		return err
	}
	select {
	case err := <-rep:
		return err
	case <-r.done:
		// The loop may have answered right before stopping.
		select {
		case err := <-rep:
			return err
		default:
			return ErrRoomClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Room) post(ctx context.Context, m Msg) error {
	select {
	case <-r.done:
		return ErrRoomClosed
	default:
	}
	select {
	case r.inbox <- m:
		return nil
	case <-r.done:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
