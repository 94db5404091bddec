package tcp

import (
	"net"
	"sync"
	"time"

	"github.com/evnet-io/evnet"
)

// serverConn represents a client connection on the server side.
type serverConn struct {
	id      evnet.ConnID // registry handle for this connection.
	conn    net.Conn     // underlying network connection.
	addr    string       // peer address string.
	writeMu sync.Mutex   // serializes concurrent writes.
}

// init configures TCP keepalive settings on the connection.
func (sc *serverConn) init(keepAlive time.Duration) {
	if tcpConn, ok := sc.conn.(*net.TCPConn); ok && keepAlive > 0 {
		_ = tcpConn.SetKeepAlive(true)
		_ = tcpConn.SetKeepAlivePeriod(keepAlive)
	}
}

// write sends data on the connection under the write mutex. A positive
// timeout bounds how long the write may block on a peer that has stopped
// reading; the deadline is cleared afterwards so it cannot affect later
// writes. A nil error means the full payload was accepted by the OS.
func (sc *serverConn) write(data []byte, timeout time.Duration) error {
	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()

	if timeout > 0 {
		_ = sc.conn.SetWriteDeadline(time.Now().Add(timeout))
		defer func() { _ = sc.conn.SetWriteDeadline(time.Time{}) }()
	}

	_, err := sc.conn.Write(data)
	return err
}
