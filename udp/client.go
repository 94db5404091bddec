package udp

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/evnet-io/evnet"
)

var (
	// ErrAlreadyOpen indicates Open was called on an open client.
	ErrAlreadyOpen = errors.New("client is already open")

	// ErrNotOpen indicates an operation that requires an open socket.
	ErrNotOpen = errors.New("client is not open")

	// ErrAlreadyReceiving indicates StartReceiving was called while the
	// receive loop is running.
	ErrAlreadyReceiving = errors.New("client is already receiving")
)

// Client is a connectionless UDP endpoint. The socket lifetime (Open/Close)
// and the receive loop (StartReceiving/StopReceiving) are independent: a
// client can send without ever receiving.
type Client struct {
	config *ClientConfig

	mu        sync.Mutex // serializes lifecycle transitions.
	open      atomic.Bool
	receiving atomic.Bool
	conn      *net.UDPConn
	recvDone  chan struct{}
	sendMu    sync.Mutex // serializes concurrent sends.

	onMessage MessageHandler
}

// NewClient creates a closed client. A nil config uses defaults.
func NewClient(config *ClientConfig) *Client {
	if config == nil {
		config = &ClientConfig{}
	}
	config.applyDefaults()

	return &Client{config: config}
}

// OnMessage registers the datagram callback. Must be called before
// StartReceiving.
func (c *Client) OnMessage(h MessageHandler) { c.onMessage = h }

// IsOpen reports whether the socket is bound.
func (c *Client) IsOpen() bool {
	return c.open.Load()
}

// IsReceiving reports whether the receive loop is running.
func (c *Client) IsReceiving() bool {
	return c.receiving.Load()
}

// Open binds the UDP socket. localPort 0 picks an ephemeral port. It fails
// with ErrAlreadyOpen when the socket is already bound.
func (c *Client) Open(localPort uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.open.Load() {
		return ErrAlreadyOpen
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: int(localPort)})
	if err != nil {
		return fmt.Errorf("bind local port %d: %w", localPort, err)
	}

	c.conn = conn
	c.open.Store(true)

	c.config.Logger.Infof("bound to %s", conn.LocalAddr())

	return nil
}

// Close stops receiving, then closes the socket. Idempotent.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopReceivingLocked()

	if !c.open.CompareAndSwap(true, false) {
		return
	}

	_ = c.conn.Close()

	c.config.Logger.Infof("closed")
}

// LocalAddr returns the bound socket address, or nil before Open.
func (c *Client) LocalAddr() net.Addr {
	if c.conn == nil {
		return nil
	}
	return c.conn.LocalAddr()
}

// Port returns the bound local port.
func (c *Client) Port() uint16 {
	if c.conn == nil {
		return 0
	}
	if ua, ok := c.conn.LocalAddr().(*net.UDPAddr); ok {
		return uint16(ua.Port)
	}
	return 0
}

// SendTo sends one best-effort datagram. Success means the OS accepted the
// full payload, not that it was delivered.
func (c *Client) SendTo(host string, port uint16, data []byte) error {
	if !c.open.Load() {
		return ErrNotOpen
	}

	dest, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(host, strconv.Itoa(int(port))))
	if err != nil {
		return fmt.Errorf("resolve %s:%d: %w", host, port, err)
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if _, err := c.conn.WriteToUDP(data, dest); err != nil {
		return fmt.Errorf("send to %s: %w", dest, err)
	}

	return nil
}

// StartReceiving spawns the receive loop. It fails with ErrNotOpen before
// Open and with ErrAlreadyReceiving when already running.
func (c *Client) StartReceiving() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open.Load() {
		return ErrNotOpen
	}
	if c.receiving.Load() {
		return ErrAlreadyReceiving
	}

	c.recvDone = make(chan struct{})
	c.receiving.Store(true)

	go c.receiveLoop(c.conn, c.recvDone)

	c.config.Logger.Infof("started receiving")

	return nil
}

// StopReceiving stops the receive loop and waits for it to exit. The
// socket stays open. Idempotent.
func (c *Client) StopReceiving() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopReceivingLocked()
}

func (c *Client) stopReceivingLocked() {
	if !c.receiving.CompareAndSwap(true, false) {
		return
	}

	<-c.recvDone

	c.config.Logger.Infof("stopped receiving")
}

// receiveLoop reads datagrams with a bounded deadline purely so it can
// observe a cleared receiving flag and exit promptly. The callback is
// invoked inline on the loop goroutine.
func (c *Client) receiveLoop(conn *net.UDPConn, done chan struct{}) {
	defer close(done)

	buf := evnet.GetBuffer(c.config.ReadBufferSize)
	defer evnet.PutBuffer(buf)

	for c.receiving.Load() {
		_ = conn.SetReadDeadline(time.Now().Add(c.config.PollInterval))

		n, remote, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if !c.receiving.Load() || errors.Is(err, net.ErrClosed) {
				return
			}

			c.config.Logger.Warnf("read: %v", err)

			continue
		}

		if c.onMessage != nil {
			data := make([]byte, n)
			copy(data, buf[:n])
			c.onMessage(remote, data)
		}
	}
}
