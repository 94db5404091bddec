package udp

import (
	"time"

	"github.com/evnet-io/evnet"
)

const (
	DefaultReadBufferSize = 64 * 1024   // default receive buffer, large enough for any datagram.
	DefaultPollInterval   = time.Second // default read deadline so loops observe stop promptly.
)

// ServerConfig holds the tunable options of a Server.
type ServerConfig struct {
	PoolSize       int           // worker pool size; <= 0 means evnet.DefaultPoolSize.
	ReadBufferSize int           // receive buffer size.
	PollInterval   time.Duration // bounded wait per read.
	Logger         evnet.Logger  // optional logger for server events.
}

func (c *ServerConfig) applyDefaults() {
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = DefaultReadBufferSize
	}

	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}

	if c.Logger == nil {
		c.Logger = &evnet.NopLogger{}
	}
}

// ClientConfig holds the tunable options of a Client.
type ClientConfig struct {
	ReadBufferSize int           // receive buffer size.
	PollInterval   time.Duration // bounded wait per read.
	Logger         evnet.Logger  // optional logger for client events.
}

func (c *ClientConfig) applyDefaults() {
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = DefaultReadBufferSize
	}

	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}

	if c.Logger == nil {
		c.Logger = &evnet.NopLogger{}
	}
}
