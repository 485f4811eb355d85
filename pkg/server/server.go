package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vango-dev/tracestream/pkg/emulator"
	"github.com/vango-dev/tracestream/pkg/notifications"
	"github.com/vango-dev/tracestream/pkg/protocol"
)

// Notifier is the emulator's lifecycle notification source.
type Notifier interface {
	Subscribe(l notifications.Listener) *notifications.Subscription
}

// Server owns the listening socket and the single connection slot. One
// background goroutine accepts, polls and pushes; the observers below are
// safe to call from any goroutine.
type Server struct {
	host     emulator.Host
	notifier Notifier
	config   *Config

	logger  *slog.Logger
	metrics *metrics
	tracer  *tracer

	// Lifecycle, guarded by mu.
	mu    sync.Mutex
	sub   *notifications.Subscription
	stop  chan struct{}
	done  chan struct{}
	ready chan struct{}
	err   error

	// invalid is the validation failure found by New. Every run ends
	// with it before binding.
	invalid error

	// Observers.
	listening atomic.Bool
	connected atomic.Bool
	port      atomic.Uint32

	pending pendingPush
}

// New creates a Server reading snapshots from host and subscribing to
// notifier on StartAuto. Either may be nil. A nil config uses defaults.
func New(host emulator.Host, notifier Notifier, config *Config) *Server {
	cfg := config.withDefaults()
	logger := cfg.Logger.With("component", "tracestream")

	var invalid error
	if err := cfg.Validate(); err != nil {
		logger.Error("config validation failed", "error", err)
		invalid = fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return &Server{
		host:     host,
		notifier: notifier,
		config:   cfg,
		logger:   logger,
		metrics:  newMetrics(cfg.Registerer),
		tracer:   newTracer(cfg.TracerName),
		invalid:  invalid,
	}
}

// StartAuto subscribes to notifications and starts the background loop.
// It does nothing while a loop is running. A loop that ended because no
// port could be bound is replaced by a fresh attempt.
func (s *Server) StartAuto() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != nil {
		select {
		case <-s.done:
		default:
			return
		}
	}

	if s.sub == nil && s.notifier != nil {
		s.sub = s.notifier.Subscribe(notifications.ListenerFunc(s.handleNotice))
	}

	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.ready = make(chan struct{})
	s.err = nil
	go s.run(s.stop, s.done, s.ready)
}

// Stop ends the loop and waits for it to release the connection and the
// listener, then drops the notification subscription. It is safe to call
// when the server was never started and more than once.
func (s *Server) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done, s.ready = nil, nil, nil
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	sub.Unsubscribe()

	s.listening.Store(false)
	s.connected.Store(false)
	s.port.Store(0)
}

// IsListening reports whether the listener is bound.
func (s *Server) IsListening() bool {
	return s.listening.Load()
}

// GetPort returns the bound port, or 0 when not listening.
func (s *Server) GetPort() uint16 {
	return uint16(s.port.Load())
}

// IsConnected reports whether a healthy client occupies the slot.
func (s *Server) IsConnected() bool {
	return s.connected.Load()
}

// Err returns the start-up failure of the most recent run, or nil.
func (s *Server) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// WaitListening blocks until the current run has bound a port, the run
// fails, or ctx is done.
func (s *Server) WaitListening(ctx context.Context) (uint16, error) {
	s.mu.Lock()
	ready, done := s.ready, s.done
	s.mu.Unlock()

	if ready == nil {
		return 0, ErrServerStopped
	}

	select {
	case <-ready:
		if port := s.GetPort(); port != 0 {
			return port, nil
		}
		return 0, ErrServerStopped
	case <-done:
		if err := s.Err(); err != nil {
			return 0, err
		}
		return 0, ErrServerStopped
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// handleNotice runs on the notifier's goroutine and only touches the
// pending-push cells.
func (s *Server) handleNotice(notice notifications.Notice) {
	switch notice {
	case notifications.GameLoaded:
		s.pending.request(true, protocol.SyncInitial)
	case notifications.EmulationStopped:
		s.pending.request(false, protocol.SyncInitial)
	case notifications.StateLoaded:
		s.pending.request(true, protocol.SyncLoadState)
	case notifications.GameReset:
		s.pending.request(true, protocol.SyncReset)
	default:
		return
	}
	s.logger.Debug("push requested", "notice", notice)
}

// bind tries each port in the configured range in ascending order.
func (s *Server) bind() (Listener, uint16, error) {
	var errs []error
	for i := 0; i < s.config.PortAttempts; i++ {
		if int(s.config.PortStart)+i > 65535 {
			break
		}
		port := s.config.PortStart + uint16(i)

		ln, err := s.config.Bind(port, s.config.Backlog)
		if err != nil {
			errs = append(errs, &BindError{Port: port, Err: err})
			continue
		}
		if err := ln.Listen(s.config.Backlog); err != nil {
			ln.Close()
			errs = append(errs, &BindError{Port: port, Err: err})
			continue
		}
		return ln, port, nil
	}
	return nil, 0, errors.Join(append([]error{ErrNoPortAvailable}, errs...)...)
}

func (s *Server) run(stop <-chan struct{}, done, ready chan struct{}) {
	defer close(done)

	if s.invalid != nil {
		s.mu.Lock()
		s.err = s.invalid
		s.mu.Unlock()
		return
	}

	ln, port, err := s.bind()
	if err != nil {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		s.metrics.recordBindFailure()
		s.logger.Warn("failed to bind any port in range",
			"first", s.config.PortStart,
			"attempts", s.config.PortAttempts)
		s.logger.Debug("bind failures", "error", err)
		return
	}

	s.port.Store(uint32(port))
	s.listening.Store(true)
	s.metrics.setListening(true)
	s.logger.Info("listening", "address", fmt.Sprintf("127.0.0.1:%d", port))
	close(ready)

	var conn *Connection
	defer func() {
		if conn != nil {
			conn.Close()
		}
		ln.Close()
		s.listening.Store(false)
		s.connected.Store(false)
		s.port.Store(0)
		s.metrics.setListening(false)
		s.metrics.setConnected(false)
		s.logger.Info("stopped")
	}()

	timer := time.NewTimer(s.config.PollInterval)
	defer timer.Stop()

	listenFailed := false
	for {
		select {
		case <-stop:
			return
		default:
		}

		conn = s.acceptPending(ln, conn)

		if err := ln.Listen(s.config.Backlog); err != nil && !listenFailed {
			listenFailed = true
			s.logger.Warn("listener failed", "error", err)
		}

		capped := false
		if conn != nil {
			capped = conn.poll()
			if conn.ConnectionError() {
				s.logger.Info("client disconnected", "conn", conn.ID())
				s.metrics.recordConnectionError()
				conn.Close()
				conn = nil
			}
		}

		if conn != nil && conn.HandshakeComplete() {
			if sendSync, reason, ok := s.pending.take(); ok {
				conn.SendInfoUpdate(sendSync, reason)
			}
		}

		s.setConnected(conn != nil && !conn.ConnectionError())

		if capped {
			continue
		}
		timer.Reset(s.config.PollInterval)
		select {
		case <-stop:
			return
		case <-timer.C:
		}
	}
}

// acceptPending drains every pending socket. The first one fills an empty
// or failed slot; the rest are closed without a byte sent.
func (s *Server) acceptPending(ln Listener, conn *Connection) *Connection {
	if ln.ConnectionError() {
		return conn
	}

	for {
		sock, ok := ln.Accept()
		if !ok {
			return conn
		}
		if sock.ConnectionError() {
			sock.Close()
			continue
		}

		if conn == nil || conn.ConnectionError() {
			if conn != nil {
				conn.Close()
			}
			conn = newConnection(sock, s.host, s.config, s.metrics, s.tracer, s.logger)
			s.metrics.recordAccepted()
			s.logger.Info("client connected", "conn", conn.ID())
			continue
		}

		sock.Close()
		s.metrics.recordRejected()
		s.logger.Info("rejected connection: slot occupied", "active", conn.ID())
	}
}

func (s *Server) setConnected(on bool) {
	if s.connected.Swap(on) != on {
		s.metrics.setConnected(on)
	}
}
