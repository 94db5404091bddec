package tcp

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/evnet-io/evnet"
)

var (
	// ErrAlreadyConnected indicates Connect was called on a connected
	// client.
	ErrAlreadyConnected = errors.New("client is already connected")

	// ErrNotConnected indicates an operation that requires an established
	// connection.
	ErrNotConnected = errors.New("client is not connected")
)

// ClientMessageHandler is invoked with each chunk received from the server.
// The data slice is only valid for the duration of the call.
type ClientMessageHandler func(data []byte)

// StateHandler is invoked when the connection state changes: true after a
// successful Connect, false exactly once when the connection goes away,
// whether by Disconnect or by the peer closing.
type StateHandler func(connected bool)

// Client is a single outbound TCP connection with a background receive
// loop.
type Client struct {
	config *ClientConfig

	mu        sync.Mutex // serializes Connect and Disconnect transitions.
	connected atomic.Bool
	conn      net.Conn
	recvDone  chan struct{}
	sendMu    sync.Mutex // serializes concurrent Sends.

	onMessage ClientMessageHandler
	onState   StateHandler
}

// NewClient creates a disconnected client. A nil config uses defaults.
func NewClient(config *ClientConfig) *Client {
	if config == nil {
		config = &ClientConfig{}
	}
	config.applyDefaults()

	return &Client{config: config}
}

// OnMessage registers the message callback. Must be called before Connect.
func (c *Client) OnMessage(h ClientMessageHandler) { c.onMessage = h }

// OnState registers the connection-state callback. Must be called before
// Connect.
func (c *Client) OnState(h StateHandler) { c.onState = h }

// IsConnected reports whether the client is connected.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// Connect dials the server, fires the state callback with true, and spawns
// the receive loop. It fails with ErrAlreadyConnected when already
// connected; a dial failure leaves the client disconnected and Connect may
// be retried.
func (c *Client) Connect(host string, port uint16) error {
	c.mu.Lock()

	if c.connected.Load() {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}

	conn, err := net.DialTimeout(
		"tcp4",
		net.JoinHostPort(host, strconv.Itoa(int(port))),
		c.config.DialTimeout,
	)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("connect to %s:%d: %w", host, port, err)
	}

	c.conn = conn
	c.recvDone = make(chan struct{})
	done := c.recvDone
	c.connected.Store(true)
	c.mu.Unlock()

	c.config.Logger.Infof("connected to %s", conn.RemoteAddr())

	// The callback fires before the receive loop starts so the state
	// change is observed ahead of any message, and outside the lock.
	if c.onState != nil {
		c.onState(true)
	}

	go c.receiveLoop(conn, done)

	return nil
}

// Disconnect closes the connection, joins the receive loop, and fires the
// state callback with false. It is idempotent, and the callback fires only
// if the disconnect was not already triggered by the receive loop
// detecting peer closure.
func (c *Client) Disconnect() {
	c.mu.Lock()

	if !c.connected.CompareAndSwap(true, false) {
		c.mu.Unlock()
		return
	}

	conn, done := c.conn, c.recvDone
	c.mu.Unlock()

	_ = conn.Close()
	<-done

	c.config.Logger.Infof("disconnected")

	if c.onState != nil {
		c.onState(false)
	}
}

// Send writes data to the server. It fails with ErrNotConnected when the
// client is down. Safe to call concurrently with other Sends and with the
// receive loop.
func (c *Client) Send(data []byte) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if _, err := c.conn.Write(data); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	return nil
}

// receiveLoop reads with a bounded deadline so it observes Disconnect
// within one PollInterval. Whichever side flips the connected flag first
// owns closing the socket and firing the state callback; the loop checks
// that conn is still the client's current connection before flipping, so a
// loop outliving its session cannot tear down a newer one.
func (c *Client) receiveLoop(conn net.Conn, done chan struct{}) {
	defer close(done)

	buf := evnet.GetBuffer(c.config.ReadBufferSize)
	defer evnet.PutBuffer(buf)

	for c.connected.Load() {
		_ = conn.SetReadDeadline(time.Now().Add(c.config.PollInterval))

		n, err := conn.Read(buf)

		if n > 0 && c.onMessage != nil {
			c.onMessage(buf[:n])
		}

		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if errors.Is(err, io.EOF) {
				c.config.Logger.Infof("server closed connection")
			} else if c.connected.Load() && !errors.Is(err, net.ErrClosed) {
				c.config.Logger.Warnf("read: %v", err)
			}
			break
		}
	}

	c.mu.Lock()
	if c.conn == conn && c.connected.CompareAndSwap(true, false) {
		c.mu.Unlock()
		_ = conn.Close()
		if c.onState != nil {
			c.onState(false)
		}
		return
	}
	c.mu.Unlock()
}
