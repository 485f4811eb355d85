package config

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vango-dev/tracestream/internal/errors"
	"github.com/vango-dev/tracestream/pkg/server"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "tracestream.json"

	// DefaultStatusAddr is the default address of the HTTP status endpoint.
	DefaultStatusAddr = "127.0.0.1:9464"

	// DefaultRegion is the default video region of the simulated console.
	DefaultRegion = "ntsc"

	// DefaultTick is the default clock tick of the simulated console.
	DefaultTick = "10ms"

	// DefaultLogLevel is the default minimum log level.
	DefaultLogLevel = "info"

	// DefaultLogFormat is the default log handler.
	DefaultLogFormat = "text"
)

// Config represents the complete tracestream.json configuration.
type Config struct {
	// Streamer contains the trace streamer settings.
	Streamer StreamerConfig `json:"streamer"`

	// Status contains the HTTP status endpoint settings.
	Status StatusConfig `json:"status"`

	// Emulator contains the simulated console settings.
	Emulator EmulatorConfig `json:"emulator"`

	// Log contains logging settings.
	Log LogConfig `json:"log"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// StreamerConfig contains the trace streamer settings. Durations are Go
// duration strings ("1ms", "5s").
type StreamerConfig struct {
	// PortStart is the first port tried. The address is always 127.0.0.1.
	PortStart int `json:"portStart,omitempty"`

	// PortAttempts is the number of consecutive ports tried.
	PortAttempts int `json:"portAttempts,omitempty"`

	// Backlog is the listen backlog.
	Backlog int `json:"backlog,omitempty"`

	// PollInterval is the sleep between loop iterations.
	PollInterval string `json:"pollInterval,omitempty"`

	// MaxReadsPerPoll caps the reads issued by one poll.
	MaxReadsPerPoll int `json:"maxReadsPerPoll,omitempty"`

	// WriteTimeout bounds a single frame write.
	WriteTimeout string `json:"writeTimeout,omitempty"`
}

// StatusConfig contains the HTTP status endpoint settings.
type StatusConfig struct {
	// Addr is the listen address of the endpoint.
	Addr string `json:"addr,omitempty"`

	// Disabled turns the endpoint off.
	Disabled bool `json:"disabled,omitempty"`
}

// EmulatorConfig contains the simulated console settings.
type EmulatorConfig struct {
	// ROM is the iNES file loaded at startup. Empty starts without a game.
	ROM string `json:"rom,omitempty"`

	// Region is "ntsc" or "pal".
	Region string `json:"region,omitempty"`

	// Tick is the interval at which the clock advances.
	Tick string `json:"tick,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level,omitempty"`

	// Format is "text" or "json".
	Format string `json:"format,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads configuration from the specified directory.
// It looks for tracestream.json in the directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path. A missing file
// yields an error matching os.ErrNotExist.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		te := errors.New("T003").Wrap(err)
		if os.IsNotExist(err) {
			te.WithDetail("No " + ConfigFileName + " found at " + path)
		}
		return nil, te
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		te := errors.New("T001").Wrap(err)
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		switch {
		case stderrors.As(err, &syntaxErr):
			te.WithOffset(path, data, syntaxErr.Offset)
		case stderrors.As(err, &typeErr):
			te.WithOffset(path, data, typeErr.Offset).
				WithDetail(fmt.Sprintf("%s must be a %s, not a %s", typeErr.Field, typeErr.Type, typeErr.Value))
		}
		return nil, te
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// Exists checks if a tracestream.json exists in the directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("T003").Wrap(err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.New("T003").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Streamer.PortStart == 0 {
		c.Streamer.PortStart = int(server.DefaultPortStart)
	}
	if c.Streamer.PortAttempts == 0 {
		c.Streamer.PortAttempts = server.DefaultPortAttempts
	}
	if c.Streamer.Backlog == 0 {
		c.Streamer.Backlog = server.DefaultBacklog
	}
	if c.Streamer.PollInterval == "" {
		c.Streamer.PollInterval = server.DefaultPollInterval.String()
	}
	if c.Streamer.MaxReadsPerPoll == 0 {
		c.Streamer.MaxReadsPerPoll = server.DefaultMaxReadsPerPoll
	}
	if c.Streamer.WriteTimeout == "" {
		c.Streamer.WriteTimeout = server.DefaultWriteTimeout.String()
	}

	if c.Status.Addr == "" {
		c.Status.Addr = DefaultStatusAddr
	}

	if c.Emulator.Region == "" {
		c.Emulator.Region = DefaultRegion
	}
	if c.Emulator.Tick == "" {
		c.Emulator.Tick = DefaultTick
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		te := errors.New("T002").WithDetail(fmt.Sprintf(format, args...))
		if c.configPath != "" {
			te.Location = &errors.Location{File: c.configPath}
		}
		return te
	}

	s := c.Streamer
	if s.PortStart < 1 || s.PortStart > 65535 {
		return invalid("streamer.portStart must be between 1 and 65535, got %d", s.PortStart)
	}
	if s.PortAttempts < 1 {
		return invalid("streamer.portAttempts must be at least 1, got %d", s.PortAttempts)
	}
	if s.PortStart+s.PortAttempts-1 > 65535 {
		return invalid("streamer port range %d+%d exceeds 65535", s.PortStart, s.PortAttempts)
	}
	if s.Backlog < 1 {
		return invalid("streamer.backlog must be at least 1, got %d", s.Backlog)
	}
	if s.MaxReadsPerPoll < 1 {
		return invalid("streamer.maxReadsPerPoll must be at least 1, got %d", s.MaxReadsPerPoll)
	}
	for _, d := range []struct{ name, value string }{
		{"streamer.pollInterval", s.PollInterval},
		{"streamer.writeTimeout", s.WriteTimeout},
		{"emulator.tick", c.Emulator.Tick},
	} {
		v, err := time.ParseDuration(d.value)
		if err != nil {
			return invalid("%s is not a duration: %q", d.name, d.value)
		}
		if v <= 0 {
			return invalid("%s must be positive, got %s", d.name, d.value)
		}
	}

	switch c.Emulator.Region {
	case "ntsc", "pal":
	default:
		return invalid("emulator.region must be ntsc or pal, got %q", c.Emulator.Region)
	}

	if _, err := c.SlogLevel(); err != nil {
		return invalid("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return invalid("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

// ServerConfig converts the streamer section to a server.Config. It assumes
// Validate succeeded.
func (c *Config) ServerConfig(logger *slog.Logger) *server.Config {
	cfg := server.DefaultConfig()
	cfg.PortStart = uint16(c.Streamer.PortStart)
	cfg.PortAttempts = c.Streamer.PortAttempts
	cfg.Backlog = c.Streamer.Backlog
	cfg.MaxReadsPerPoll = c.Streamer.MaxReadsPerPoll
	if d, err := time.ParseDuration(c.Streamer.PollInterval); err == nil {
		cfg.PollInterval = d
	}
	if d, err := time.ParseDuration(c.Streamer.WriteTimeout); err == nil {
		cfg.WriteTimeout = d
	}
	// Bind captured the default write timeout.
	cfg.Bind = nil
	if logger != nil {
		cfg.Logger = logger
	}
	return cfg
}

// TickInterval returns the parsed emulator tick.
func (c *Config) TickInterval() time.Duration {
	d, err := time.ParseDuration(c.Emulator.Tick)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(DefaultTick)
	}
	return d
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(strings.ToLower(c.Log.Level)))
	return level, err
}
