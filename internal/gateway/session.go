package gateway

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/fightclub-backend/internal/engine"
	"github.com/DoyleJ11/fightclub-backend/internal/hub"
	"github.com/DoyleJ11/fightclub-backend/internal/room"
	"github.com/DoyleJ11/fightclub-backend/internal/types"
	pub "github.com/DoyleJ11/fightclub-backend/pkg/types"
)

// Session is one connection's view of the game. Handle is called from a
// single reader goroutine; the forwarder runs alongside it.
type Session struct {
	id    string
	gw    *Gateway
	out   Sender
	evict func()
	log   *zap.Logger

	mu      sync.Mutex
	binding *binding
}

type binding struct {
	room   *room.Room
	outbox chan room.Update
	done   chan struct{}
	// leaving is set while a leave is in flight, so the forwarder does not
	// mistake the closed outbox for a slow-consumer drop.
	leaving atomic.Bool
}

// evictLeaveTimeout bounds the leave sent on behalf of an evicted session.
const evictLeaveTimeout = 5 * time.Second

func (s *Session) ID() string { return s.id }

// Hello tells the client which id the server knows it by.
func (s *Session) Hello() {
	s.send(types.ServerMessage{Type: pub.OutConnected, Payload: types.Connected{ID: s.id}})
}

// RoomID returns the room the session is bound to, or "".
func (s *Session) RoomID() string {
	if b := s.current(); b != nil {
		return b.room.ID()
	}
	return ""
}

func (s *Session) Handle(ctx context.Context, msg types.ClientMessage) {
	switch msg.Type {
	case pub.InRooms:
		ids, err := s.gw.rooms.ListOpen(ctx)
		if err != nil {
			s.reject("", err)
			return
		}
		if ids == nil {
			ids = []string{}
		}
		s.send(types.ServerMessage{Type: pub.OutRooms, Payload: types.RoomList{Rooms: ids}})

	case pub.InJoin:
		s.join(ctx, msg.RoomID)

	case pub.InLeave:
		b := s.current()
		if b == nil || (msg.RoomID != "" && b.room.ID() != msg.RoomID) {
			s.reject(msg.RoomID, engine.ErrParticipantNotFound)
			return
		}
		if err := s.leave(ctx); err != nil {
			s.reject(msg.RoomID, err)
		}

	case pub.InCharacter:
		s.do(ctx, msg.RoomID, engine.Command{Type: engine.CmdPickCharacter, Archetype: msg.Character})
	case pub.InStartCountdown:
		s.do(ctx, msg.RoomID, engine.Command{Type: engine.CmdStartCountdown})
	case pub.InAttack:
		s.do(ctx, msg.RoomID, engine.Command{Type: engine.CmdAttack, TargetID: msg.TargetID})
	case pub.InHeal:
		s.do(ctx, msg.RoomID, engine.Command{Type: engine.CmdHeal})
	case pub.InSpecialMove:
		s.do(ctx, msg.RoomID, engine.Command{Type: engine.CmdSpecialMove, TargetID: msg.TargetID})
	case pub.InRequestHealth:
		s.do(ctx, msg.RoomID, engine.Command{Type: engine.CmdRequestHealth})

	case pub.InGameOver:
		s.log.Debug("client claims game over", zap.String("claimed_winner", msg.WinnerID))
		s.do(ctx, msg.RoomID, engine.Command{Type: engine.CmdClaimWinner})

	default:
		s.sendError(msg.RoomID, pub.CodeUnknownEvent, "unknown event type "+msg.Type)
	}
}

// Close leaves the bound room as if the client had sent leave.
func (s *Session) Close(ctx context.Context) {
	if err := s.leave(ctx); err != nil && !errors.Is(err, room.ErrRoomClosed) {
		s.log.Debug("leave on close", zap.Error(err))
	}
}

func (s *Session) join(ctx context.Context, roomID string) {
	if b := s.current(); b != nil {
		if b.room.ID() == roomID {
			// Same outbox again: the room resends the roster to us.
			if err := b.room.Join(ctx, s.id, b.outbox); err != nil {
				s.reject(roomID, err)
			}
			return
		}
		if err := s.leave(ctx); err != nil && !errors.Is(err, room.ErrRoomClosed) {
			s.log.Debug("leave previous room", zap.Error(err))
		}
	}

	// A room can close between lookup and join; the registry then hands out a
	// fresh one, so try once more.
	for attempt := 0; attempt < 2; attempt++ {
		r, err := s.resolve(ctx, roomID)
		if err != nil {
			s.reject(roomID, err)
			return
		}
		outbox := make(chan room.Update, s.gw.outboxSize)
		err = r.Join(ctx, s.id, outbox)
		if errors.Is(err, room.ErrRoomClosed) && roomID != "" {
			continue
		}
		if err != nil {
			s.reject(r.ID(), err)
			return
		}
		s.bind(r, outbox)
		s.log.Info("joined room", zap.String("room_id", r.ID()))
		return
	}
	s.reject(roomID, room.ErrRoomClosed)
}

func (s *Session) resolve(ctx context.Context, roomID string) (*room.Room, error) {
	if roomID == "" {
		_, r, err := s.gw.rooms.Create(ctx)
		return r, err
	}
	return s.gw.rooms.GetOrCreate(ctx, roomID)
}

func (s *Session) leave(ctx context.Context) error {
	return s.leaveBinding(ctx, s.current())
}

// leaveBinding removes the session from b's room. The binding is only dropped
// once the room has let go of the participant, so a failed leave can be
// retried.
func (s *Session) leaveBinding(ctx context.Context, b *binding) error {
	if b == nil {
		return nil
	}
	s.log.Info("leaving room", zap.String("room_id", b.room.ID()))
	b.leaving.Store(true)
	err := b.room.Leave(ctx, s.id)
	if err != nil && !errors.Is(err, room.ErrRoomClosed) && !errors.Is(err, engine.ErrParticipantNotFound) {
		b.leaving.Store(false)
		return err
	}
	s.unbind(b)
	return nil
}

func (s *Session) unbind(b *binding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.binding == b {
		s.binding = nil
	}
}

func (s *Session) do(ctx context.Context, roomID string, cmd engine.Command) {
	r, err := s.roomFor(ctx, roomID)
	if err != nil {
		s.reject(roomID, err)
		return
	}
	cmd.ParticipantID = s.id
	if err := r.Do(ctx, cmd); err != nil {
		s.reject(r.ID(), err)
	}
}

// roomFor prefers the bound room; an empty id means "the room I am in".
func (s *Session) roomFor(ctx context.Context, roomID string) (*room.Room, error) {
	if b := s.current(); b != nil && (roomID == "" || b.room.ID() == roomID) {
		return b.room, nil
	}
	if roomID == "" {
		return nil, engine.ErrParticipantNotFound
	}
	return s.gw.rooms.Get(ctx, roomID)
}

func (s *Session) current() *binding {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.binding
}

func (s *Session) bind(r *room.Room, outbox chan room.Update) {
	b := &binding{room: r, outbox: outbox, done: make(chan struct{})}
	s.mu.Lock()
	s.binding = b
	s.mu.Unlock()
	go s.forward(b)
}

// forward drains one room subscription until the room closes it.
func (s *Session) forward(b *binding) {
	defer close(b.done)
	for u := range b.outbox {
		for _, m := range translate(s.id, u) {
			s.send(m)
		}
	}

	if b.leaving.Load() || b.room.Closed() {
		s.unbind(b)
		return
	}

	// The room closed our outbox while we were still a member: we were dropped
	// for falling behind. Leave on the participant's behalf so the opponent
	// gets the forfeit, then drop the connection.
	s.log.Warn("dropped by room, evicting connection", zap.String("room_id", b.room.ID()))
	ctx, cancel := context.WithTimeout(context.Background(), evictLeaveTimeout)
	err := s.leaveBinding(ctx, b)
	cancel()
	if err != nil {
		s.log.Warn("leave after drop", zap.Error(err))
		s.unbind(b)
	}
	s.evict()
}

func (s *Session) send(m types.ServerMessage) {
	if err := s.out.Send(m); err != nil {
		s.log.Debug("send failed", zap.String("type", m.Type), zap.Error(err))
	}
}

func (s *Session) sendError(roomID, code, message string) {
	s.send(types.ServerMessage{
		Type:    pub.OutError,
		RoomID:  roomID,
		Payload: types.Error{Code: code, Message: message},
	})
}

// reject reports err to this connection only.
func (s *Session) reject(roomID string, err error) {
	s.log.Debug("request rejected", zap.String("room_id", roomID), zap.Error(err))
	switch {
	case errors.Is(err, engine.ErrRoomFull):
		s.send(types.ServerMessage{Type: pub.OutRoomFull, RoomID: roomID, Payload: struct{}{}})
	case errors.Is(err, engine.ErrMatchInProgress):
		s.sendError(roomID, pub.CodeMatchInProgress, err.Error())
	case errors.Is(err, engine.ErrInvalidAction):
		s.sendError(roomID, pub.CodeInvalidAction, err.Error())
	case errors.Is(err, engine.ErrParticipantNotFound):
		s.sendError(roomID, pub.CodeParticipantNotFound, err.Error())
	case errors.Is(err, hub.ErrUnknownRoom), errors.Is(err, room.ErrRoomClosed):
		s.sendError(roomID, pub.CodeUnknownRoom, err.Error())
	default:
		s.sendError(roomID, pub.CodeInternal, "internal error")
	}
}
