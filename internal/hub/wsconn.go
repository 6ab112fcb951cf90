package hub

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"orderhub/internal/xpkg/logger"

	"github.com/gorilla/websocket"
)

const (
	OpJoin  = "join"
	OpLeave = "leave"

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	replyBuffer    = 8
)

var ErrTopicForbidden = errors.New("topic not allowed for this connection")

// ClientMessage is what a client sends to join or leave a topic.
type ClientMessage struct {
	Op    string `json:"op"`
	Topic string `json:"topic"`
}

// Reply acknowledges a ClientMessage.
type Reply struct {
	Op    string `json:"op"`
	Topic string `json:"topic"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// NewUpgrader returns the websocket upgrader used by the /ws endpoint.
func NewUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
}

// WSConn is a Handle backed by a websocket. All writes happen on the
// writer goroutine.
type WSConn struct {
	sub       *Subscriber
	conn      *websocket.Conn
	hub       *Hub
	authorize func(topic string) bool
	replies   chan Reply
	mylog     logger.Logger
	closeOnce sync.Once
}

func NewWSConn(conn *websocket.Conn, h *Hub, sendBuffer int, authorize func(topic string) bool, mylog logger.Logger) *WSConn {
	if authorize == nil {
		authorize = func(string) bool { return true }
	}
	sub := NewSubscriber(sendBuffer)
	return &WSConn{
		sub:       sub,
		conn:      conn,
		hub:       h,
		authorize: authorize,
		replies:   make(chan Reply, replyBuffer),
		mylog:     mylog.With("handle", sub.HandleID()),
	}
}

func (c *WSConn) HandleID() string {
	return c.sub.HandleID()
}

func (c *WSConn) Send(ev Event) error {
	return c.sub.Send(ev)
}

// Serve runs until the client disconnects or ctx ends. The handle leaves
// every topic before it returns.
func (c *WSConn) Serve(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writePump(ctx)
	}()

	c.readPump(ctx)
	cancel()
	c.close()
	<-done
}

func (c *WSConn) close() {
	c.closeOnce.Do(func() {
		c.hub.Unsubscribe(c)
		c.sub.Close()
		c.conn.Close()
		c.mylog.Action("ws_disconnected").Debug("Websocket connection closed")
	})
}

func (c *WSConn) readPump(ctx context.Context) {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.mylog.Action("ws_read_failed").Error("Unexpected websocket close", err)
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		c.reply(c.handle(msg))
	}
}

func (c *WSConn) handle(msg ClientMessage) Reply {
	r := Reply{Op: msg.Op, Topic: msg.Topic}
	switch msg.Op {
	case OpJoin:
		if !c.authorize(msg.Topic) {
			r.Error = ErrTopicForbidden.Error()
			return r
		}
		if err := c.hub.Subscribe(msg.Topic, c); err != nil {
			r.Error = err.Error()
			return r
		}
		c.mylog.Action("topic_joined").Debug("Joined topic", "topic", msg.Topic)
	case OpLeave:
		c.hub.Leave(msg.Topic, c)
	default:
		r.Error = "unknown op"
		return r
	}
	r.OK = true
	return r
}

func (c *WSConn) reply(r Reply) {
	select {
	case c.replies <- r:
	default:
		c.mylog.Action("reply_dropped").Warn("Dropped reply, client is not reading", "op", r.Op, "topic", r.Topic)
	}
}

func (c *WSConn) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	events := c.sub.Events()
	for {
		select {
		case <-ctx.Done():
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := c.write(ev); err != nil {
				c.mylog.Action("ws_write_failed").Error("Failed to push event", err, "order_id", ev.Order.ID)
				return
			}
		case r := <-c.replies:
			if err := c.write(r); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSConn) write(v any) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}
