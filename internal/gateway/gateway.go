package gateway

import (
	"context"

	"go.uber.org/zap"

	"github.com/DoyleJ11/fightclub-backend/internal/room"
	"github.com/DoyleJ11/fightclub-backend/internal/types"
)

// Registry resolves room ids to running rooms. *hub.Hub implements it.
type Registry interface {
	GetOrCreate(ctx context.Context, code string) (*room.Room, error)
	Get(ctx context.Context, code string) (*room.Room, error)
	Create(ctx context.Context) (string, *room.Room, error)
	ListOpen(ctx context.Context) ([]string, error)
}

// Sender queues a message for one connection. Send must not block on the
// network; the ws writer goroutine owns the socket.
type Sender interface {
	Send(msg types.ServerMessage) error
}

type Gateway struct {
	rooms      Registry
	log        *zap.Logger
	outboxSize int
}

func New(rooms Registry, log *zap.Logger, outboxSize int) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	if outboxSize <= 0 {
		outboxSize = 32
	}
	return &Gateway{rooms: rooms, log: log, outboxSize: outboxSize}
}

// NewSession binds a connection identity to out. evict is called when the
// connection fell too far behind and should be closed; it may be nil.
func (g *Gateway) NewSession(connID string, out Sender, evict func()) *Session {
	if evict == nil {
		evict = func() {}
	}
	return &Session{
		id:    connID,
		gw:    g,
		out:   out,
		evict: evict,
		log:   g.log.With(zap.String("conn_id", connID)),
	}
}
