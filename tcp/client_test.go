package tcp_test

import (
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/evnet-io/evnet"
	"github.com/evnet-io/evnet/tcp"
)

// startEchoListener runs a raw TCP listener that echoes everything back.
// It returns the bound port and a stop function.
func startEchoListener(t *testing.T) (uint16, func()) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				buf := make([]byte, 4096)
				for {
					n, err := conn.Read(buf)
					if n > 0 {
						if _, werr := conn.Write(buf[:n]); werr != nil {
							return
						}
					}
					if err != nil {
						return
					}
				}
			}()
		}
	}()

	port := uint16(ln.Addr().(*net.TCPAddr).Port)
	stop := func() { _ = ln.Close() }
	t.Cleanup(stop)

	return port, stop
}

func newTestClient() *tcp.Client {
	return tcp.NewClient(&tcp.ClientConfig{
		PollInterval: 50 * time.Millisecond,
	})
}

func TestClientConnectSendReceive(t *testing.T) {
	t.Parallel()

	port, _ := startEchoListener(t)

	messages := make(chan string, 8)
	states := make(chan bool, 8)

	cli := newTestClient()
	cli.OnMessage(func(data []byte) {
		messages <- string(data)
	})
	cli.OnState(func(connected bool) {
		states <- connected
	})

	require.NoError(t, cli.Connect("127.0.0.1", port))
	require.True(t, cli.IsConnected())

	select {
	case st := <-states:
		require.True(t, st)
	case <-time.After(time.Second):
		t.Fatal("state callback did not fire on connect")
	}

	require.NoError(t, cli.Send([]byte("ping")))

	select {
	case msg := <-messages:
		require.Equal(t, "ping", msg)
	case <-time.After(2 * time.Second):
		t.Fatal("message callback did not fire")
	}

	cli.Disconnect()
	require.False(t, cli.IsConnected())

	select {
	case st := <-states:
		require.False(t, st)
	case <-time.After(time.Second):
		t.Fatal("state callback did not fire on disconnect")
	}
}

func TestClientDoubleDisconnect(t *testing.T) {
	t.Parallel()

	port, _ := startEchoListener(t)

	var downEvents atomic.Int32

	cli := newTestClient()
	cli.OnState(func(connected bool) {
		if !connected {
			downEvents.Add(1)
		}
	})

	require.NoError(t, cli.Connect("127.0.0.1", port))

	cli.Disconnect()
	cli.Disconnect()

	require.Equal(t, int32(1), downEvents.Load())
}

func TestClientAlreadyConnected(t *testing.T) {
	t.Parallel()

	port, _ := startEchoListener(t)

	cli := newTestClient()
	require.NoError(t, cli.Connect("127.0.0.1", port))
	defer cli.Disconnect()

	require.ErrorIs(t, cli.Connect("127.0.0.1", port), tcp.ErrAlreadyConnected)
}

func TestClientSendNotConnected(t *testing.T) {
	t.Parallel()

	cli := newTestClient()
	require.ErrorIs(t, cli.Send([]byte("x")), tcp.ErrNotConnected)
}

func TestClientConnectFailure(t *testing.T) {
	t.Parallel()

	// grab a port and close it so nothing is listening there
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := uint16(ln.Addr().(*net.TCPAddr).Port)
	require.NoError(t, ln.Close())

	cli := tcp.NewClient(&tcp.ClientConfig{
		PollInterval: 50 * time.Millisecond,
		DialTimeout:  500 * time.Millisecond,
	})
	require.Error(t, cli.Connect("127.0.0.1", port))
	require.False(t, cli.IsConnected())
}

func TestClientPeerClose(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	port := uint16(ln.Addr().(*net.TCPAddr).Port)

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		accepted <- conn
	}()

	var downEvents atomic.Int32
	states := make(chan bool, 8)

	cli := newTestClient()
	cli.OnState(func(connected bool) {
		if !connected {
			downEvents.Add(1)
		}
		states <- connected
	})

	require.NoError(t, cli.Connect("127.0.0.1", port))
	<-states // connected=true

	var server net.Conn
	select {
	case server = <-accepted:
	case <-time.After(time.Second):
		t.Fatal("listener did not accept")
	}

	// Peer closes: the receive loop detects it and fires the callback.
	require.NoError(t, server.Close())

	select {
	case st := <-states:
		require.False(t, st)
	case <-time.After(2 * time.Second):
		t.Fatal("state callback did not fire on peer close")
	}
	require.False(t, cli.IsConnected())
	require.ErrorIs(t, cli.Send([]byte("x")), tcp.ErrNotConnected)

	// A later Disconnect must not fire the callback again.
	cli.Disconnect()
	require.Equal(t, int32(1), downEvents.Load())
}

func TestClientReconnect(t *testing.T) {
	t.Parallel()

	port, _ := startEchoListener(t)

	cli := newTestClient()

	require.NoError(t, cli.Connect("127.0.0.1", port))
	cli.Disconnect()

	require.NoError(t, cli.Connect("127.0.0.1", port))
	require.True(t, cli.IsConnected())
	cli.Disconnect()
}

func TestClientEndToEndWithServer(t *testing.T) {
	t.Parallel()

	srv := tcp.NewServer("127.0.0.1", 0, nil)
	srv.OnMessage(func(id evnet.ConnID, data []byte) {
		_ = srv.SendTo(id, append([]byte("ack: "), data...))
	})
	require.NoError(t, srv.Start())
	defer srv.Stop()

	messages := make(chan string, 8)

	cli := newTestClient()
	cli.OnMessage(func(data []byte) {
		messages <- string(data)
	})

	require.NoError(t, cli.Connect("127.0.0.1", srv.Port()))
	defer cli.Disconnect()

	require.NoError(t, cli.Send([]byte("hello")))

	select {
	case msg := <-messages:
		require.Equal(t, "ack: hello", msg)
	case <-time.After(2 * time.Second):
		t.Fatal("no reply from server")
	}
}

func TestClientReconnectDuringDisconnectJoin(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	port := uint16(ln.Addr().(*net.TCPAddr).Port)

	// Every accepted connection is immediately sent one byte so the
	// client's message callback fires.
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_, _ = conn.Write([]byte("x"))
		}
	}()

	inCallback := make(chan struct{}, 1)
	release := make(chan struct{})
	var downEvents atomic.Int32

	cli := newTestClient()
	cli.OnMessage(func(_ []byte) {
		select {
		case inCallback <- struct{}{}:
		default:
		}
		<-release
	})
	cli.OnState(func(connected bool) {
		if !connected {
			downEvents.Add(1)
		}
	})

	require.NoError(t, cli.Connect("127.0.0.1", port))
	<-inCallback

	// Disconnect flips the flag and then blocks joining the first
	// session's receive loop, which is parked in the message callback.
	discDone := make(chan struct{})
	go func() {
		cli.Disconnect()
		close(discDone)
	}()
	require.Eventually(t, func() bool {
		return !cli.IsConnected()
	}, 2*time.Second, 5*time.Millisecond)

	// Reconnect while the old loop is still alive.
	require.NoError(t, cli.Connect("127.0.0.1", port))

	close(release)
	<-discDone

	// Only the first session's teardown fired a down event; the dying
	// loop must not flip the second session's state.
	require.Equal(t, int32(1), downEvents.Load())
	require.True(t, cli.IsConnected())
	require.NoError(t, cli.Send([]byte("ping")))

	cli.Disconnect()
	require.Equal(t, int32(2), downEvents.Load())
}
