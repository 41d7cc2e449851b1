package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/fightclub-backend/internal/gateway"
	"github.com/DoyleJ11/fightclub-backend/internal/types"
	pub "github.com/DoyleJ11/fightclub-backend/pkg/types"
)

var (
	errSlowClient = errors.New("client outbox full")
	errConnClosed = errors.New("connection closed")
)

type Options struct {
	// OriginPatterns are passed to websocket.Accept. Same-origin requests are
	// always allowed.
	OriginPatterns []string
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	OutboxSize     int
	Logger         *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.PingInterval <= 0 {
		o.PingInterval = 20 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 3 * time.Second
	}
	if o.OutboxSize <= 0 {
		o.OutboxSize = 64
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// client is the gateway.Sender for one socket. Frames are queued here and
// written by a single writer goroutine.
type client struct {
	out     chan types.ServerMessage
	done    <-chan struct{}
	evicted chan struct{}
	once    sync.Once
	evict   context.CancelFunc
}

func (c *client) Send(m types.ServerMessage) error {
	select {
	case c.out <- m:
		return nil
	case <-c.done:
		return errConnClosed
	default:
		c.kick()
		return errSlowClient
	}
}

func (c *client) kick() {
	c.once.Do(func() { close(c.evicted) })
	c.evict()
}

func Handler(gw *gateway.Gateway, opts Options) http.HandlerFunc {
	opts = opts.withDefaults()
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			opts.Logger.Debug("websocket accept", zap.Error(err))
			return
		}
		defer conn.CloseNow()

		id := uuid.NewString()
		log := opts.Logger.With(zap.String("conn_id", id))
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		c := &client{
			out:     make(chan types.ServerMessage, opts.OutboxSize),
			done:    ctx.Done(),
			evicted: make(chan struct{}),
		}
		c.evict = cancel
		sess := gw.NewSession(id, c, func() {
			log.Warn("evicting slow connection")
			c.kick()
		})
		log.Info("client connected")
		sess.Hello()

		// Writer goroutine
		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			defer cancel()
			ticker := time.NewTicker(opts.PingInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case m := <-c.out:
					wctx, wcancel := context.WithTimeout(ctx, opts.WriteTimeout)
					err := wsjson.Write(wctx, conn, m)
					wcancel()
					if err != nil {
						log.Debug("write failed", zap.Error(err))
						return
					}
				case <-ticker.C:
					pctx, pcancel := context.WithTimeout(ctx, opts.WriteTimeout)
					err := conn.Ping(pctx)
					pcancel()
					if err != nil {
						log.Debug("ping failed", zap.Error(err))
						return
					}
				}
			}
		}()

		readLoop(ctx, conn, sess, c, log)

		cancel()
		<-writerDone
		closeCtx, closeCancel := context.WithTimeout(context.Background(), opts.WriteTimeout)
		sess.Close(closeCtx)
		closeCancel()

		select {
		case <-c.evicted:
			conn.Close(websocket.StatusPolicyViolation, "too slow")
		default:
			conn.Close(websocket.StatusNormalClosure, "bye")
		}
		log.Info("client disconnected")
	}
}

func readLoop(ctx context.Context, conn *websocket.Conn, sess *gateway.Session, c *client, log *zap.Logger) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				if ctx.Err() == nil {
					log.Debug("read failed", zap.Error(err))
				}
			}
			return
		}

		var cm types.ClientMessage
		if err := json.Unmarshal(data, &cm); err != nil || cm.Type == "" {
			_ = c.Send(types.ServerMessage{
				Type:    pub.OutError,
				Payload: types.Error{Code: pub.CodeBadRequest, Message: "malformed message"},
			})
			continue
		}
		sess.Handle(ctx, cm)
	}
}
