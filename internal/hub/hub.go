package hub

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"

	"go.uber.org/zap"

	"github.com/DoyleJ11/fightclub-backend/internal/room"
)

var ErrUnknownRoom = errors.New("unknown room")
var ErrHubClosed = errors.New("hub closed")

type HubMsg interface{ isHubMsg() }

type CreateRoom struct {
	Reply chan Created
}

type Created struct {
	Code string
	Room *room.Room
	Err  error
}

type GetRoom struct {
	Code  string
	Reply chan *room.Room
}

type EnsureRoom struct {
	Code  string
	Reply chan *room.Room
}

type RemoveRoom struct {
	Code string
	Room *room.Room // only removed if it is still the registered instance
}

type ListRooms struct {
	Reply chan []string
}

type ShutdownHub struct{}

func (CreateRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (EnsureRoom) isHubMsg()  {}
func (RemoveRoom) isHubMsg()  {}
func (ListRooms) isHubMsg()   {}
func (ShutdownHub) isHubMsg() {}

// Hub owns the room map. It never waits on a room, so a busy room cannot
// stall lookups for the others.
type Hub struct {
	inbox chan HubMsg
	rooms map[string]*room.Room
	opts  room.Options
	log   *zap.Logger
	ctx   context.Context
	stop  context.CancelFunc
	done  chan struct{}

	// generate is swapped in tests to force collisions.
	generate func() (string, error)
}

func NewHub(parent context.Context, opts room.Options) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		rooms:    make(map[string]*room.Room),
		log:      opts.Logger,
		ctx:      ctx,
		stop:     cancel,
		done:     make(chan struct{}),
		generate: GenerateCode,
	}
	opts.OnClose = h.onRoomClosed
	h.opts = opts
	go h.loop()
	return h
}

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateRoom:
				msg.Reply <- h.create()

			case GetRoom:
				msg.Reply <- h.live(msg.Code) // May be nil

			case EnsureRoom:
				if r := h.live(msg.Code); r != nil {
					msg.Reply <- r
					break
				}
				msg.Reply <- h.open(msg.Code)

			case RemoveRoom:
				if h.rooms[msg.Code] == msg.Room {
					delete(h.rooms, msg.Code)
					h.log.Debug("room removed", zap.String("room_id", msg.Code))
				}

			case ListRooms:
				ids := make([]string, 0, len(h.rooms))
				for code, r := range h.rooms {
					if r.Open() {
						ids = append(ids, code)
					}
				}
				slices.Sort(ids)
				msg.Reply <- ids

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

// live returns the registered room unless it has already stopped.
func (h *Hub) live(code string) *room.Room {
	r := h.rooms[code]
	if r == nil || r.Closed() {
		return nil
	}
	return r
}

func (h *Hub) open(code string) *room.Room {
	r := room.New(h.ctx, code, h.opts)
	h.rooms[code] = r
	h.log.Info("room created", zap.String("room_id", code))
	return r
}

func (h *Hub) create() Created {
	for {
		code, err := h.generate()
		if err != nil {
			return Created{Err: fmt.Errorf("generate room code: %w", err)}
		}
		if h.live(code) != nil {
			h.log.Debug("collision on code, regenerating", zap.String("room_id", code))
			continue
		}
		return Created{Code: code, Room: h.open(code)}
	}
}

func (h *Hub) shutdown() {
	for _, r := range h.rooms {
		r.Shutdown()
	}
	for _, r := range h.rooms {
		<-r.Done()
	}
	clear(h.rooms)
	h.stop()
}

func (h *Hub) onRoomClosed(code string, r *room.Room) {
	select {
	case h.inbox <- RemoveRoom{Code: code, Room: r}:
	case <-h.done:
	}
}

// GetOrCreate returns the live room registered under code, creating it first
// if needed.
func (h *Hub) GetOrCreate(ctx context.Context, code string) (*room.Room, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: empty code", ErrUnknownRoom)
	}
	reply := make(chan *room.Room, 1)
	return ask(ctx, h, EnsureRoom{Code: code, Reply: reply}, reply)
}

func (h *Hub) Get(ctx context.Context, code string) (*room.Room, error) {
	reply := make(chan *room.Room, 1)
	r, err := ask(ctx, h, GetRoom{Code: code, Reply: reply}, reply)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRoom, code)
	}
	return r, nil
}

// Create registers a room under a fresh generated code.
func (h *Hub) Create(ctx context.Context) (string, *room.Room, error) {
	reply := make(chan Created, 1)
	c, err := ask(ctx, h, CreateRoom{Reply: reply}, reply)
	if err != nil {
		return "", nil, err
	}
	return c.Code, c.Room, c.Err
}

// Remove unregisters r if it is still the room stored under code.
func (h *Hub) Remove(code string, r *room.Room) {
	h.onRoomClosed(code, r)
}

// ListOpen returns the codes of rooms still waiting for players, sorted.
func (h *Hub) ListOpen(ctx context.Context) ([]string, error) {
	reply := make(chan []string, 1)
	return ask(ctx, h, ListRooms{Reply: reply}, reply)
}

// OpenRooms yields open room codes. Each range takes a fresh snapshot.
func (h *Hub) OpenRooms(ctx context.Context) iter.Seq[string] {
	return func(yield func(string) bool) {
		ids, err := h.ListOpen(ctx)
		if err != nil {
			h.log.Debug("list open rooms", zap.Error(err))
			return
		}
		for _, id := range ids {
			if !yield(id) {
				return
			}
		}
	}
}

// Shutdown stops every room and the hub itself.
func (h *Hub) Shutdown() {
	select {
	case h.inbox <- ShutdownHub{}:
	case <-h.done:
		return
	}
	<-h.done
}

func (h *Hub) Done() <-chan struct{} { return h.done }

func ask[T any](ctx context.Context, h *Hub, m HubMsg, reply chan T) (T, error) {
	var zero T
	select {
	case h.inbox <- m:
	case <-h.done:
		return zero, ErrHubClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	select {
	case v := <-reply:
		return v, nil
	case <-h.done:
		return zero, ErrHubClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
