package hub

import (
	"sync"

	"github.com/google/uuid"
)

const DefaultSendBuffer = 64

// Subscriber is a channel backed handle with a bounded buffer.
type Subscriber struct {
	id     string
	ch     chan Event
	mu     sync.Mutex
	closed bool
}

func NewSubscriber(capacity int) *Subscriber {
	if capacity <= 0 {
		capacity = DefaultSendBuffer
	}
	return &Subscriber{
		id: uuid.NewString(),
		ch: make(chan Event, capacity),
	}
}

func (s *Subscriber) HandleID() string {
	return s.id
}

func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

func (s *Subscriber) Send(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	select {
	case s.ch <- ev:
		return nil
	default:
		return ErrBufferFull
	}
}

// Close ends the event stream. Later sends fail with ErrClosed.
func (s *Subscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
