package rabbitmq

import (
	"errors"
	"testing"
)

type fakeConn struct {
	closed   bool
	closes   int
	closeErr error
}

func (f *fakeConn) IsClosed() bool { return f.closed }

func (f *fakeConn) Close() error {
	f.closes++
	f.closed = true
	return f.closeErr
}

func TestCloseStale(t *testing.T) {
	// channel died, connection still open
	open := &fakeConn{}
	if err := closeStale(open); err != nil {
		t.Fatalf("closeStale returned error: %v", err)
	}
	if open.closes != 1 {
		t.Fatalf("expected the open connection to be closed once, got %d", open.closes)
	}

	dead := &fakeConn{closed: true}
	if err := closeStale(dead); err != nil || dead.closes != 0 {
		t.Fatalf("closed connection must be left alone, closes=%d err=%v", dead.closes, err)
	}

	failing := &fakeConn{closeErr: errors.New("broken pipe")}
	if err := closeStale(failing); err == nil {
		t.Fatal("expected the close error to surface")
	}
}
