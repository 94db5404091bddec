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

	"golang.org/x/sync/errgroup"

	"github.com/evnet-io/evnet"
)

var (
	// ErrAlreadyRunning indicates Start was called while the server is
	// listening.
	ErrAlreadyRunning = errors.New("server is already running")

	// ErrServerClosed indicates the server has been stopped and cannot be
	// started again.
	ErrServerClosed = errors.New("server is closed")

	// ErrUnknownConn indicates a send to a connection id that is not
	// registered (already closed or never existed).
	ErrUnknownConn = errors.New("unknown connection")
)

// MessageHandler is invoked with each chunk received on a connection. The
// data slice is only valid for the duration of the call.
type MessageHandler func(id evnet.ConnID, data []byte)

// ConnectHandler is invoked when a new connection has been accepted and
// registered.
type ConnectHandler func(id evnet.ConnID, addr string)

// DisconnectHandler is invoked exactly once when a connection goes away.
type DisconnectHandler func(id evnet.ConnID)

// Server is a TCP server that accepts connections, registers them, and runs
// each connection's receive loop on a shared worker pool. Callbacks fire on
// goroutines owned by the server and never while an internal lock is held.
type Server struct {
	ip     string
	port   uint16
	config *ServerConfig

	pool    *evnet.WorkerPool
	clients *evnet.Registry

	mu         sync.Mutex // serializes Start and Stop transitions.
	running    atomic.Bool
	closed     bool
	listener   net.Listener
	acceptDone chan struct{}

	conns  sync.Map // evnet.ConnID -> *serverConn
	connWG sync.WaitGroup
	nextID atomic.Uint64

	onMessage    MessageHandler
	onConnect    ConnectHandler
	onDisconnect DisconnectHandler
}

// NewServer creates a server that will listen on ip:port. A nil config uses
// defaults. The worker pool is owned by the server and shut down by Stop.
func NewServer(ip string, port uint16, config *ServerConfig) *Server {
	if config == nil {
		config = &ServerConfig{}
	}
	config.applyDefaults()

	return &Server{
		ip:      ip,
		port:    port,
		config:  config,
		pool:    evnet.NewWorkerPool(config.PoolSize),
		clients: evnet.NewRegistry(),
	}
}

// OnMessage registers the message callback. Must be called before Start.
func (s *Server) OnMessage(h MessageHandler) { s.onMessage = h }

// OnConnect registers the connection-established callback. Must be called
// before Start.
func (s *Server) OnConnect(h ConnectHandler) { s.onConnect = h }

// OnDisconnect registers the disconnect callback. Must be called before
// Start.
func (s *Server) OnDisconnect(h DisconnectHandler) { s.onDisconnect = h }

// Start binds and listens on the configured address, then spawns the accept
// loop. On failure the server state is unchanged and Start may be retried.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrServerClosed
	}
	if s.running.Load() {
		return ErrAlreadyRunning
	}

	ln, err := net.Listen("tcp4", net.JoinHostPort(s.ip, strconv.Itoa(int(s.port))))
	if err != nil {
		return fmt.Errorf("listen on %s:%d: %w", s.ip, s.port, err)
	}

	s.listener = ln
	s.acceptDone = make(chan struct{})
	s.running.Store(true)

	go s.acceptLoop()

	s.config.Logger.Infof("server started on %s", ln.Addr())

	return nil
}

// Stop shuts the server down: it closes the listener, joins the accept
// loop, closes every registered connection (which makes their receive loops
// exit), waits for those loops, clears the registry, and shuts down the
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
		_ = s.listener.Close()
		<-s.acceptDone
	}

	s.conns.Range(func(_, v any) bool {
		sc := v.(*serverConn)
		_ = sc.conn.Close()
		return true
	})

	s.connWG.Wait()
	s.clients.Clear()
	s.pool.Shutdown()

	s.config.Logger.Infof("server stopped")
}

// IsRunning reports whether the server is listening.
func (s *Server) IsRunning() bool {
	return s.running.Load()
}

// Clients returns a snapshot of the registered connections (id -> peer
// address).
func (s *Server) Clients() map[evnet.ConnID]string {
	return s.clients.Snapshot()
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Port returns the bound port. Useful when the server was configured with
// port 0.
func (s *Server) Port() uint16 {
	if s.listener == nil {
		return 0
	}
	if ta, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return uint16(ta.Port)
	}
	return 0
}

// SendTo writes data to the identified connection. It fails with
// ErrUnknownConn if the id is not registered. A send error is reported to
// the caller and does not terminate the connection.
func (s *Server) SendTo(id evnet.ConnID, data []byte) error {
	if !s.clients.Contains(id) {
		return ErrUnknownConn
	}

	v, ok := s.conns.Load(id)
	if !ok {
		return ErrUnknownConn
	}
	sc := v.(*serverConn)

	if err := sc.write(data, s.config.WriteTimeout); err != nil {
		return fmt.Errorf("send to %s: %w", sc.addr, err)
	}

	return nil
}

// Broadcast writes data to every connection in a snapshot taken at call
// time. The writes fan out so a connection whose peer has stopped reading
// delays only its own delivery, and each write is bounded by WriteTimeout.
// Broadcast is best-effort: per-connection failures are logged, not
// surfaced.
func (s *Server) Broadcast(data []byte) {
	var eg errgroup.Group

	for id := range s.clients.Snapshot() {
		v, ok := s.conns.Load(id)
		if !ok {
			continue
		}
		sc := v.(*serverConn)

		eg.Go(func() error {
			if err := sc.write(data, s.config.WriteTimeout); err != nil {
				s.config.Logger.Warnf("broadcast to %s: %v", sc.addr, err)
			}
			return nil
		})
	}

	_ = eg.Wait()
}

// acceptLoop blocks on Accept until the listener is closed by Stop.
func (s *Server) acceptLoop() {
	defer close(s.acceptDone)

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			if ne, ok := err.(net.Error); ok && ne.Temporary() {
				time.Sleep(100 * time.Millisecond)
				continue
			}

			s.config.Logger.Errorf("accept: %v", err)

			// The listener cannot recover; stop so IsRunning reflects it.
			s.running.Store(false)
			_ = s.listener.Close()

			return
		}

		s.handleNewConn(conn)
	}
}

// handleNewConn registers the connection, fires the connect callback on the
// accept goroutine so "registered" and "callback fired" order
// deterministically, then submits the connection's receive loop to the pool.
func (s *Server) handleNewConn(conn net.Conn) {
	id := evnet.ConnID(s.nextID.Add(1))
	sc := &serverConn{id: id, conn: conn, addr: conn.RemoteAddr().String()}
	sc.init(s.config.KeepAlivePeriod)

	s.clients.Add(id, sc.addr)
	s.conns.Store(id, sc)

	s.config.Logger.Infof("client connected: %s (id=%d)", sc.addr, id)

	if s.onConnect != nil {
		s.onConnect(id, sc.addr)
	}

	s.connWG.Add(1)
	if _, err := s.pool.Submit(func() (any, error) {
		s.connLoop(sc)
		return nil, nil
	}); err != nil {
		// Pool already stopping; the server is shutting down.
		s.connWG.Done()
		s.closeConn(sc)
	}
}

// connLoop receives on one connection until it closes, errors, or the
// server stops. It runs on a pool worker, so a slow message callback delays
// only this connection's further receives. closeConn is deferred so the
// connection is released even when a message callback panics.
func (s *Server) connLoop(sc *serverConn) {
	defer s.connWG.Done()
	defer s.closeConn(sc)

	buf := evnet.GetBuffer(s.config.ReadBufferSize)
	defer evnet.PutBuffer(buf)

	for s.running.Load() {
		n, err := sc.conn.Read(buf)

		if n > 0 && s.onMessage != nil {
			s.onMessage(sc.id, buf[:n])
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				s.config.Logger.Infof("client disconnected: %s", sc.addr)
			} else if s.running.Load() && !errors.Is(err, net.ErrClosed) {
				s.config.Logger.Warnf("read from %s: %v", sc.addr, err)
			}
			break
		}
	}
}

// closeConn removes the connection from the registry, closes the socket,
// and fires the disconnect callback. The registry removal gates the
// callback so it fires exactly once even when loop exit races with Stop.
func (s *Server) closeConn(sc *serverConn) {
	removed := s.clients.Remove(sc.id)
	s.conns.Delete(sc.id)
	_ = sc.conn.Close()

	if removed && s.onDisconnect != nil {
		s.onDisconnect(sc.id)
	}
}
