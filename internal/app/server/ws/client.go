package ws

import (
	"context"
	"errors"
	"sync"
)

// RuntimeClient is one live connection. The id is per-connection, not per
// user: the same user on two devices yields two clients in the registry.
type RuntimeClient struct {
	ctx    context.Context
	cancel context.CancelFunc
	ws     *WebSocket
	id     string
	userID string
	out    chan []byte
	once   sync.Once
}

func NewClient(
	parent context.Context,
	ws *WebSocket,
	id, userID string,
) *RuntimeClient {
	ctx, cancel := context.WithCancel(parent)
	c := &RuntimeClient{
		ctx:    ctx,
		cancel: cancel,
		ws:     ws,
		id:     id,
		userID: userID,
		out:    make(chan []byte, 256),
	}
	go c.writeLoop()
	return c
}

func (c *RuntimeClient) ID() string     { return c.id }
func (c *RuntimeClient) UserID() string { return c.userID }

// Send enqueues the frame for the write loop without ever blocking the
// caller, so a registry broadcast cannot stall on one slow connection. A
// client whose buffer is full is dropped; it reconnects with fresh state.
func (c *RuntimeClient) Send(ctx context.Context, data []byte) error {
	if c.ctx.Err() != nil {
		return errors.New("client closed")
	}
	select {
	case c.out <- data:
		return nil
	default:
		c.Close()
		return errors.New("send buffer full, client dropped")
	}
}

// Close is idempotent. The out channel is never closed: concurrent senders
// observe the cancelled context instead, which avoids a send-on-closed race.
func (c *RuntimeClient) Close() {
	c.once.Do(func() {
		c.cancel()
		if c.ws != nil {
			c.ws.Close()
		}
	})
}

func (c *RuntimeClient) writeLoop() {
	defer c.Close()
	for {
		select {
		case <-c.ctx.Done():
			return
		case data := <-c.out:
			_ = c.ws.WriteMessage(data)
		}
	}
}
