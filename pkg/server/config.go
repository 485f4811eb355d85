package server

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Protocol defaults. The listening address is always 127.0.0.1.
const (
	DefaultPortStart       uint16 = 63783
	DefaultPortAttempts           = 10
	DefaultBacklog                = 10
	DefaultPollInterval           = time.Millisecond
	DefaultMaxReadsPerPoll        = 32
	DefaultRecvChunkSize          = 4096
	DefaultRecvBufferSize         = 16 * 1024
	DefaultWriteTimeout           = 5 * time.Second
	DefaultTracerName             = "tracestream"
)

// BindFunc binds a listener on the loopback interface.
type BindFunc func(port uint16, backlog int) (Listener, error)

// Config holds configuration for the Server and its connection.
type Config struct {
	// Port acquisition

	// PortStart is the first port tried.
	// Default: 63783.
	PortStart uint16

	// PortAttempts is the number of consecutive ports tried.
	// Default: 10.
	PortAttempts int

	// Backlog is the listen backlog.
	// Default: 10.
	Backlog int

	// Loop

	// PollInterval is the sleep between loop iterations.
	// Default: 1ms.
	PollInterval time.Duration

	// Connection buffers

	// MaxReadsPerPoll caps the reads issued by one Poll.
	// Default: 32.
	MaxReadsPerPoll int

	// RecvChunkSize is the size of a single read.
	// Default: 4096.
	RecvChunkSize int

	// RecvBufferSize is the initial capacity of the receive buffer.
	// Default: 16KB.
	RecvBufferSize int

	// WriteTimeout bounds a single frame write.
	// Default: 5 seconds.
	WriteTimeout time.Duration

	// Collaborators

	// Bind creates the listener. Default: a non-blocking loopback TCP
	// listener from package socket.
	Bind BindFunc

	// Logger is the base logger. Default: slog.Default().
	Logger *slog.Logger

	// Registerer receives the Prometheus collectors.
	// Default: prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer

	// TracerName is the OpenTelemetry tracer name.
	// Default: "tracestream".
	TracerName string
}

// DefaultConfig returns a Config with the protocol defaults.
func DefaultConfig() *Config {
	return &Config{
		PortStart:       DefaultPortStart,
		PortAttempts:    DefaultPortAttempts,
		Backlog:         DefaultBacklog,
		PollInterval:    DefaultPollInterval,
		MaxReadsPerPoll: DefaultMaxReadsPerPoll,
		RecvChunkSize:   DefaultRecvChunkSize,
		RecvBufferSize:  DefaultRecvBufferSize,
		WriteTimeout:    DefaultWriteTimeout,
		Bind:            bindLoopback(DefaultRecvChunkSize, DefaultWriteTimeout),
		Logger:          slog.Default(),
		Registerer:      prometheus.DefaultRegisterer,
		TracerName:      DefaultTracerName,
	}
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// withDefaults returns a copy with every unset field filled in. Sizes,
// counts and durations that are not positive fall back to their defaults.
func (c *Config) withDefaults() *Config {
	defaults := DefaultConfig()
	if c == nil {
		return defaults
	}

	cfg := c.Clone()
	if cfg.PortStart == 0 {
		cfg.PortStart = defaults.PortStart
	}
	if cfg.PortAttempts == 0 {
		cfg.PortAttempts = defaults.PortAttempts
	}
	if cfg.Backlog <= 0 {
		cfg.Backlog = defaults.Backlog
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	if cfg.MaxReadsPerPoll <= 0 {
		cfg.MaxReadsPerPoll = defaults.MaxReadsPerPoll
	}
	if cfg.RecvChunkSize <= 0 {
		cfg.RecvChunkSize = defaults.RecvChunkSize
	}
	if cfg.RecvBufferSize <= 0 {
		cfg.RecvBufferSize = defaults.RecvBufferSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.Bind == nil {
		cfg.Bind = bindLoopback(cfg.RecvChunkSize, cfg.WriteTimeout)
	}
	if cfg.Logger == nil {
		cfg.Logger = defaults.Logger
	}
	if cfg.Registerer == nil {
		cfg.Registerer = defaults.Registerer
	}
	if cfg.TracerName == "" {
		cfg.TracerName = defaults.TracerName
	}
	return cfg
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.PortAttempts < 0 {
		return fmt.Errorf("server: port attempts must not be negative: %d", c.PortAttempts)
	}
	if int(c.PortStart)+c.PortAttempts-1 > 65535 {
		return fmt.Errorf("server: port range %d+%d exceeds 65535", c.PortStart, c.PortAttempts)
	}
	if c.Backlog < 0 {
		return fmt.Errorf("server: backlog must not be negative: %d", c.Backlog)
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("server: poll interval must not be negative: %s", c.PollInterval)
	}
	if c.MaxReadsPerPoll < 0 {
		return fmt.Errorf("server: max reads per poll must not be negative: %d", c.MaxReadsPerPoll)
	}
	if c.RecvChunkSize < 0 || c.RecvBufferSize < 0 {
		return fmt.Errorf("server: receive sizes must not be negative")
	}
	return nil
}
