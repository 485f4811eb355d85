package server

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.PortStart != 63783 {
		t.Errorf("PortStart = %d, want 63783", cfg.PortStart)
	}
	if cfg.PortAttempts != 10 {
		t.Errorf("PortAttempts = %d, want 10", cfg.PortAttempts)
	}
	if cfg.Backlog != 10 {
		t.Errorf("Backlog = %d, want 10", cfg.Backlog)
	}
	if cfg.PollInterval != time.Millisecond {
		t.Errorf("PollInterval = %s, want 1ms", cfg.PollInterval)
	}
	if cfg.MaxReadsPerPoll != 32 {
		t.Errorf("MaxReadsPerPoll = %d, want 32", cfg.MaxReadsPerPoll)
	}
	if cfg.RecvChunkSize != 4096 || cfg.RecvBufferSize != 16*1024 {
		t.Errorf("receive sizes = %d/%d", cfg.RecvChunkSize, cfg.RecvBufferSize)
	}
	if cfg.Bind == nil || cfg.Logger == nil || cfg.Registerer == nil {
		t.Error("collaborators not set")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestConfigWithDefaults(t *testing.T) {
	var nilCfg *Config
	if got := nilCfg.withDefaults(); got.PortStart != DefaultPortStart {
		t.Errorf("nil withDefaults().PortStart = %d", got.PortStart)
	}

	cfg := &Config{PortStart: 5000, PollInterval: 3 * time.Millisecond}
	got := cfg.withDefaults()
	if got.PortStart != 5000 || got.PollInterval != 3*time.Millisecond {
		t.Errorf("withDefaults() overwrote set fields: %+v", got)
	}
	if got.PortAttempts != DefaultPortAttempts || got.Bind == nil || got.TracerName != DefaultTracerName {
		t.Errorf("withDefaults() left fields unset: %+v", got)
	}
	if cfg.Bind != nil {
		t.Error("withDefaults() modified the receiver")
	}

	neg := (&Config{
		Backlog:         -1,
		PollInterval:    -time.Second,
		MaxReadsPerPoll: -1,
		RecvChunkSize:   -1,
		RecvBufferSize:  -1,
		WriteTimeout:    -time.Second,
	}).withDefaults()
	if neg.Backlog != DefaultBacklog || neg.PollInterval != DefaultPollInterval ||
		neg.MaxReadsPerPoll != DefaultMaxReadsPerPoll || neg.RecvChunkSize != DefaultRecvChunkSize ||
		neg.RecvBufferSize != DefaultRecvBufferSize || neg.WriteTimeout != DefaultWriteTimeout {
		t.Errorf("withDefaults() kept non-positive values: %+v", neg)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", *DefaultConfig(), false},
		{"negative attempts", Config{PortAttempts: -1}, true},
		{"range overflow", Config{PortStart: 65530, PortAttempts: 10}, true},
		{"range at top", Config{PortStart: 65526, PortAttempts: 10}, false},
		{"negative backlog", Config{Backlog: -1}, true},
		{"negative poll interval", Config{PollInterval: -time.Millisecond}, true},
		{"negative reads", Config{MaxReadsPerPoll: -1}, true},
		{"negative chunk", Config{RecvChunkSize: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigClone(t *testing.T) {
	var nilCfg *Config
	if nilCfg.Clone() != nil {
		t.Error("nil Clone() != nil")
	}

	cfg := DefaultConfig()
	clone := cfg.Clone()
	clone.PortStart = 1
	if cfg.PortStart == 1 {
		t.Error("Clone() shares state with the original")
	}
}
