package tcp

import (
	"time"

	"github.com/evnet-io/evnet"
)

const (
	DefaultReadBufferSize  = 4096             // default receive buffer size in bytes.
	DefaultPollInterval    = time.Second      // default read deadline for client receive polling.
	DefaultDialTimeout     = 5 * time.Second  // default timeout for outbound connects.
	DefaultKeepAlivePeriod = 30 * time.Second // default TCP keepalive period.
	DefaultWriteTimeout    = 5 * time.Second  // default bound on a single blocking write.
)

// ServerConfig holds the tunable options of a Server.
type ServerConfig struct {
	PoolSize        int           // worker pool size; <= 0 means evnet.DefaultPoolSize.
	ReadBufferSize  int           // receive buffer size per connection.
	KeepAlivePeriod time.Duration // interval for TCP keepalive probes.
	WriteTimeout    time.Duration // bound on a single write; 0 means default, negative disables.
	Logger          evnet.Logger  // optional logger for server events.
}

func (c *ServerConfig) applyDefaults() {
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = DefaultReadBufferSize
	}

	if c.KeepAlivePeriod == 0 {
		c.KeepAlivePeriod = DefaultKeepAlivePeriod
	}

	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}

	if c.Logger == nil {
		c.Logger = &evnet.NopLogger{}
	}
}

// ClientConfig holds the tunable options of a Client.
type ClientConfig struct {
	ReadBufferSize int           // receive buffer size.
	PollInterval   time.Duration // bounded wait per read so Disconnect is observed promptly.
	DialTimeout    time.Duration // timeout for Connect.
	Logger         evnet.Logger  // optional logger for client events.
}

func (c *ClientConfig) applyDefaults() {
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = DefaultReadBufferSize
	}

	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}

	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}

	if c.Logger == nil {
		c.Logger = &evnet.NopLogger{}
	}
}
