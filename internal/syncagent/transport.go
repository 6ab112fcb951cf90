package syncagent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"orderhub/internal/hub"
	"orderhub/internal/xpkg/logger"

	"github.com/gorilla/websocket"
)

const (
	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

// Sink receives what the transport observes. Agent implements it.
type Sink interface {
	Deliver(ctx context.Context, ev hub.Event) error
	Connected(ctx context.Context) error
	Disconnected(ctx context.Context, err error) error
}

// wireMessage is either a push event or a reply to join/leave.
type wireMessage struct {
	hub.Event
	Op    string `json:"op"`
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// WSTransport keeps a websocket to the hub open, joins the topics and
// reconnects with exponential backoff.
type WSTransport struct {
	url    string
	token  string
	topics []string
	dialer *websocket.Dialer
	mylog  logger.Logger
}

// NewWSTransport takes the API base URL (http or https) and derives the
// websocket endpoint from it.
func NewWSTransport(baseURL, token string, topics []string, mylog logger.Logger) *WSTransport {
	u := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return &WSTransport{
		url:    u + "/ws",
		token:  token,
		topics: topics,
		dialer: websocket.DefaultDialer,
		mylog:  mylog,
	}
}

// Run connects and reads until ctx ends.
func (t *WSTransport) Run(ctx context.Context, sink Sink) error {
	backoff := minBackoff
	for {
		connected, err := t.session(ctx, sink)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			backoff = minBackoff
		}
		if err := sink.Disconnected(ctx, err); err != nil {
			return nil
		}

		t.mylog.Action("ws_reconnecting").Warn("Websocket down, retrying", "in", backoff.String(), "reason", errString(err))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// session runs one connection. It reports whether the dial succeeded.
func (t *WSTransport) session(ctx context.Context, sink Sink) (bool, error) {
	header := http.Header{}
	if t.token != "" {
		header.Set("Authorization", "Bearer "+t.token)
	}
	conn, _, err := t.dialer.DialContext(ctx, t.url, header)
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", t.url, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	pending := make(map[string]bool, len(t.topics))
	for _, topic := range t.topics {
		if err := conn.WriteJSON(hub.ClientMessage{Op: hub.OpJoin, Topic: topic}); err != nil {
			return true, fmt.Errorf("join %s: %w", topic, err)
		}
		pending[topic] = true
	}
	// Connected triggers the refetch, so it waits until the hub has
	// answered every join; events published after that point are pushed.
	if len(pending) == 0 {
		if err := sink.Connected(ctx); err != nil {
			return true, err
		}
	}

	for {
		var m wireMessage
		if err := conn.ReadJSON(&m); err != nil {
			return true, err
		}
		switch {
		case m.Kind != "":
			if err := sink.Deliver(ctx, m.Event); err != nil {
				return true, err
			}
		case m.Op == hub.OpJoin && pending[m.Topic]:
			delete(pending, m.Topic)
			if !m.OK {
				t.mylog.Action("topic_rejected").Error("Server refused topic", errors.New(m.Error), "op", m.Op, "topic", m.Topic)
			}
			if len(pending) == 0 {
				if err := sink.Connected(ctx); err != nil {
					return true, err
				}
			}
		case m.Op != "" && !m.OK:
			t.mylog.Action("topic_rejected").Error("Server refused topic", errors.New(m.Error), "op", m.Op, "topic", m.Topic)
		}
	}
}
