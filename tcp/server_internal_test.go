package tcp

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// brokenListener fails every Accept with a permanent error.
type brokenListener struct {
	closed chan struct{}
}

func (l *brokenListener) Accept() (net.Conn, error) {
	return nil, errors.New("accept: bad file descriptor")
}

func (l *brokenListener) Close() error {
	select {
	case <-l.closed:
	default:
		close(l.closed)
	}
	return nil
}

func (l *brokenListener) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)}
}

func TestAcceptLoopFatalErrorStopsServer(t *testing.T) {
	t.Parallel()

	srv := NewServer("127.0.0.1", 0, nil)
	defer srv.Stop()

	ln := &brokenListener{closed: make(chan struct{})}
	srv.listener = ln
	srv.acceptDone = make(chan struct{})
	srv.running.Store(true)

	go srv.acceptLoop()

	select {
	case <-srv.acceptDone:
	case <-time.After(2 * time.Second):
		t.Fatal("accept loop did not exit on a fatal error")
	}

	require.False(t, srv.IsRunning())

	select {
	case <-ln.closed:
	default:
		t.Fatal("listener was left open")
	}
}
