package gateway

import (
	"context"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/mpetrov/chessmatch/pkg/matchdto"
)

// wsConn adapts one websocket to the hub's Conn interface. Sends are a
// non-blocking enqueue into a buffered outbox drained by a single writer
// goroutine, so delivery order matches enqueue order and the hub never blocks
// on socket I/O. A full outbox means a consumer too slow to matter: the
// connection is dropped instead of stalling the hub.
type wsConn struct {
	ws  *websocket.Conn
	out chan matchdto.ServerFrame

	stopCh   chan struct{}
	stopOnce sync.Once
}

func newWSConn(ws *websocket.Conn, queueSize int) *wsConn {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &wsConn{
		ws:     ws,
		out:    make(chan matchdto.ServerFrame, queueSize),
		stopCh: make(chan struct{}),
	}
}

func (c *wsConn) Send(frame matchdto.ServerFrame) {
	select {
	case c.out <- frame:
	case <-c.stopCh:
	default:
		c.stop()
	}
}

func (c *wsConn) writeLoop(ctx context.Context, timeout time.Duration) {
	for {
		select {
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		case frame := <-c.out:
			wctx, cancel := context.WithTimeout(ctx, timeout)
			err := wsjson.Write(wctx, c.ws, frame)
			cancel()
			if err != nil {
				c.stop()
				return
			}
		}
	}
}

// Close stops the writer and unblocks the read loop, which tears the socket
// down. Safe to call more than once.
func (c *wsConn) Close() { c.stop() }

func (c *wsConn) stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func (c *wsConn) stopped() <-chan struct{} { return c.stopCh }
