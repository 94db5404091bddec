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
	// ErrAlreadyRunning indicates Start was called while the server is
	// running.
	ErrAlreadyRunning = errors.New("server is already running")

	// ErrServerClosed indicates the server has been stopped and cannot be
	// started again.
	ErrServerClosed = errors.New("server is closed")

	// ErrNotRunning indicates a send attempted while the server is down.
	ErrNotRunning = errors.New("server is not running")
)

// MessageHandler is invoked on a pool worker with each received datagram.
// The data slice is owned by the callback.
type MessageHandler func(remote *net.UDPAddr, data []byte)

// Server is a connectionless UDP endpoint: one socket, one receive
// goroutine, and per-datagram processing dispatched onto a shared worker
// pool so slow application logic cannot stall reception of the next
// datagram.
type Server struct {
	ip     string
	port   uint16
	config *ServerConfig

	pool *evnet.WorkerPool

	mu       sync.Mutex // serializes Start and Stop transitions.
	running  atomic.Bool
	closed   bool
	conn     *net.UDPConn
	recvDone chan struct{}

	onMessage MessageHandler
}

// NewServer creates a server that will bind ip:port. A nil config uses
// defaults. The worker pool is owned by the server and shut down by Stop.
func NewServer(ip string, port uint16, config *ServerConfig) *Server {
	if config == nil {
		config = &ServerConfig{}
	}
	config.applyDefaults()

	return &Server{
		ip:     ip,
		port:   port,
		config: config,
		pool:   evnet.NewWorkerPool(config.PoolSize),
	}
}

// OnMessage registers the datagram callback. Must be called before Start.
func (s *Server) OnMessage(h MessageHandler) { s.onMessage = h }

// Start binds the UDP socket and spawns the receive loop. On failure the
// server state is unchanged and Start may be retried.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrServerClosed
	}
	if s.running.Load() {
		return ErrAlreadyRunning
	}

	addr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(s.ip, strconv.Itoa(int(s.port))))
	if err != nil {
		return fmt.Errorf("resolve %s:%d: %w", s.ip, s.port, err)
	}

	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return fmt.Errorf("bind %s:%d: %w", s.ip, s.port, err)
	}

	s.conn = conn
	s.recvDone = make(chan struct{})
	s.running.Store(true)

	go s.receiveLoop(conn, s.recvDone)

	s.config.Logger.Infof("server started on %s", conn.LocalAddr())

	return nil
}

// Stop closes the socket, joins the receive loop, and shuts down the
// worker pool. Idempotent; the server cannot be started again afterwards.
func (s *Server) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	wasRunning := s.running.Swap(false)
	s.mu.Unlock()

	if wasRunning {
		_ = s.conn.Close()
		<-s.recvDone
	}

	s.pool.Shutdown()

	s.config.Logger.Infof("server stopped")
}

// IsRunning reports whether the server is receiving.
func (s *Server) IsRunning() bool {
	return s.running.Load()
}

// Addr returns the bound socket address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Port returns the bound port. Useful when the server was configured with
// port 0.
func (s *Server) Port() uint16 {
	if s.conn == nil {
		return 0
	}
	if ua, ok := s.conn.LocalAddr().(*net.UDPAddr); ok {
		return uint16(ua.Port)
	}
	return 0
}

// SendTo sends one best-effort datagram. Success means the OS accepted the
// full payload, not that it was delivered.
func (s *Server) SendTo(host string, port uint16, data []byte) error {
	if !s.running.Load() {
		return ErrNotRunning
	}

	dest, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(host, strconv.Itoa(int(port))))
	if err != nil {
		return fmt.Errorf("resolve %s:%d: %w", host, port, err)
	}

	if _, err := s.conn.WriteToUDP(data, dest); err != nil {
		return fmt.Errorf("send to %s: %w", dest, err)
	}

	return nil
}

// receiveLoop reads datagrams with a bounded deadline so it observes Stop
// within one PollInterval. Each datagram is copied and its processing
// submitted to the pool, one submission per datagram.
func (s *Server) receiveLoop(conn *net.UDPConn, done chan struct{}) {
	defer close(done)

	buf := evnet.GetBuffer(s.config.ReadBufferSize)
	defer evnet.PutBuffer(buf)

	for s.running.Load() {
		_ = conn.SetReadDeadline(time.Now().Add(s.config.PollInterval))

		n, remote, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return
			}

			s.config.Logger.Warnf("read: %v", err)

			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		if _, err := s.pool.Submit(func() (any, error) {
			s.processDatagram(remote, data)
			return nil, nil
		}); err != nil {
			// Pool stopping; the server is shutting down.
			return
		}
	}
}

// processDatagram runs on a pool worker and fires the message callback.
func (s *Server) processDatagram(remote *net.UDPAddr, data []byte) {
	if s.onMessage != nil {
		s.onMessage(remote, data)
	}
}
