package livesrv

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/vango-dev/livebind/pkg/bind"
	"github.com/vango-dev/livebind/pkg/sched"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"log/slog"
)

// conn owns one client connection: a tracked loop, one binding per
// feed, and the socket pumps. All binding state lives on the loop; the
// write pump is the only goroutine touching the socket for writes.
type conn struct {
	id     string
	srv    *Server
	ws     *websocket.Conn
	loop   *sched.Loop
	logger *slog.Logger

	bindings []*bind.Binding[any]

	out    chan []byte
	closed chan struct{}
	seq    uint64 // frame sequence, loop-confined
}

func newConn(s *Server, ws *websocket.Conn) *conn {
	c := &conn{
		id:     uuid.NewString(),
		srv:    s,
		ws:     ws,
		out:    make(chan []byte, 64),
		closed: make(chan struct{}),
	}
	c.logger = s.logger.With("conn", c.id)

	c.loop = sched.NewLoop(
		sched.WithName("live-"+c.id[:8]),
		sched.WithLogger(c.logger),
		sched.WithPanicHandler(c.onLoopPanic),
	)

	return c
}

// run binds all feeds, starts the pumps, and blocks until the
// connection is done.
func (c *conn) run() {
	c.logger.Info("connection opened", "feeds", len(c.srv.feeds))

	for _, feed := range c.srv.feeds {
		feed := feed
		var b *bind.Binding[any]
		b = bind.New[any](c.loop, sched.Go,
			bind.WithBindingName(feed.Name),
			bind.WithBindingLogger(c.logger),
			bind.WithInvalidate(func() { c.push(b, feed) }),
		)
		c.bindings = append(c.bindings, b)

		// First render establishes the subscription.
		c.loop.Dispatch(func() { b.Render(feed.Source) })
	}

	go c.writePump()
	c.readPump() // blocks until the client disconnects

	c.shutdown()
}

// push renders the binding and queues the snapshot as a frame.
// Runs on the connection's loop.
func (c *conn) push(b *bind.Binding[any], feed Feed) {
	snap := b.Render(feed.Source)
	if !snap.Changed {
		return
	}

	c.seq++
	frame := Frame{Name: feed.Name, Value: snap.Value, Seq: c.seq}

	_, span := c.srv.tracer.Start(context.Background(), "live.push",
		trace.WithAttributes(
			attribute.String("conn.id", c.id),
			attribute.String("feed.name", feed.Name),
		))
	defer span.End()

	payload, err := json.Marshal(frame)
	if err != nil {
		c.logger.Error("frame marshal failed", "feed", feed.Name, "error", err)
		return
	}

	select {
	case c.out <- payload:
		c.srv.metrics.framesSent.Inc()
		c.srv.metrics.frameBytes.Add(float64(len(payload)))
	default:
		// Slow consumer; drop the frame rather than block the loop.
		c.logger.Warn("outbound queue full, dropping frame", "feed", feed.Name)
		c.srv.metrics.framesDropped.Inc()
	}
}

// writePump serializes all socket writes: frames from the loop and
// periodic pings.
func (c *conn) writePump() {
	ping := time.NewTicker(c.srv.pingInterval)
	defer ping.Stop()

	for {
		select {
		case payload := <-c.out:
			c.ws.SetWriteDeadline(time.Now().Add(c.srv.writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logger.Error("write error", "error", err)
				c.ws.Close()
				return
			}
		case <-ping.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.srv.writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.ws.Close()
				return
			}
		case <-c.closed:
			return
		}
	}
}

// readPump consumes the socket so close and pong frames are processed.
// Clients don't send application data; anything received is discarded.
func (c *conn) readPump() {
	c.ws.SetReadDeadline(time.Now().Add(c.srv.readTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.srv.readTimeout))
		return nil
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.logger.Error("read error", "error", err)
			}
			return
		}
	}
}

// onLoopPanic is the host error handling for delivery failures: log,
// then drop the connection. A *bind.DeliveryError has already torn its
// binding down; the connection is not worth keeping without its feeds.
func (c *conn) onLoopPanic(v any) {
	c.logger.Error("loop panic, closing connection", "panic", v)
	c.srv.metrics.loopPanics.Inc()
	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "internal error"),
		time.Now().Add(time.Second))
	c.ws.Close()
}

// shutdown tears bindings down on the loop, then stops the loop.
func (c *conn) shutdown() {
	close(c.closed)

	c.loop.Dispatch(func() {
		for _, b := range c.bindings {
			b.Teardown()
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c.loop.Stop(ctx)

	c.ws.Close()
	c.logger.Info("connection closed")
}
