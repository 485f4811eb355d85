package server

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/tracestream/pkg/emulator"
	"github.com/vango-dev/tracestream/pkg/protocol"
)

// Connection is the server side of one client session. It owns its socket
// and is driven exclusively by the poll loop: Poll and SendInfoUpdate must
// not be called concurrently. ConnectionError, HandshakeComplete and ID are
// safe from any goroutine.
type Connection struct {
	id   string
	sock Socket
	host emulator.Host

	maxReads int
	chunk    []byte
	rx       []byte

	handshake atomic.Bool

	logger  *slog.Logger
	metrics *metrics
	tracer  *tracer
}

// NewConnection wraps an accepted socket. Snapshots are read from host,
// which may be nil to always report no game. A nil config uses defaults.
func NewConnection(sock Socket, host emulator.Host, config *Config) *Connection {
	cfg := config.withDefaults()
	return newConnection(sock, host, cfg, nil, newTracer(cfg.TracerName),
		cfg.Logger.With("component", "connection"))
}

func newConnection(sock Socket, host emulator.Host, cfg *Config, m *metrics, t *tracer, logger *slog.Logger) *Connection {
	id := uuid.NewString()
	return &Connection{
		id:       id,
		sock:     sock,
		host:     host,
		maxReads: cfg.MaxReadsPerPoll,
		chunk:    make([]byte, cfg.RecvChunkSize),
		rx:       make([]byte, 0, cfg.RecvBufferSize),
		logger:   logger.With("conn", id),
		metrics:  m,
		tracer:   t,
	}
}

// ID returns the connection's unique identifier.
func (c *Connection) ID() string {
	return c.id
}

// ConnectionError reports whether the transport is unusable. Once true the
// owner must discard the connection.
func (c *Connection) ConnectionError() bool {
	return c.sock == nil || c.sock.ConnectionError()
}

// HandshakeComplete reports whether a valid Hello has been accepted.
func (c *Connection) HandshakeComplete() bool {
	return c.handshake.Load()
}

// Close closes the transport.
func (c *Connection) Close() {
	if c.sock != nil {
		c.sock.Close()
	}
}

// Poll reads whatever the socket has buffered and dispatches every complete
// frame. It never blocks.
func (c *Connection) Poll() {
	c.poll()
}

// poll reports whether it stopped at the read cap with data possibly
// still pending.
func (c *Connection) poll() (capped bool) {
	if c.ConnectionError() {
		return false
	}

	reads := 0
	for reads < c.maxReads {
		n, err := c.sock.Recv(c.chunk)
		if err != nil {
			c.logger.Debug("receive failed", "error", err)
			return false
		}
		if n == 0 {
			break
		}
		c.rx = append(c.rx, c.chunk[:n]...)
		c.metrics.recordReceived(n)
		reads++
	}

	if c.ConnectionError() {
		return false
	}

	c.processFrames()
	return reads == c.maxReads
}

// processFrames dispatches complete frames from the front of the receive
// buffer in arrival order. A partial frame stays buffered for the next Poll.
func (c *Connection) processFrames() {
	off := 0
	defer func() {
		if off > 0 {
			c.rx = append(c.rx[:0], c.rx[off:]...)
		}
	}()

	for {
		mt, length, err := protocol.DecodeFrameHeader(c.rx[off:])
		if err != nil {
			return
		}
		end := off + protocol.FrameHeaderSize + length
		if len(c.rx) < end {
			return
		}

		c.dispatch(mt, c.rx[off+protocol.FrameHeaderSize:end])
		off = end

		if c.ConnectionError() {
			return
		}
	}
}

func (c *Connection) dispatch(mt protocol.MsgType, payload []byte) {
	c.metrics.recordFrame(mt)

	switch mt {
	case protocol.MsgHello:
		if c.HandshakeComplete() {
			c.logger.Debug("ignoring hello after handshake")
			return
		}
		c.handleHello(payload)

	case protocol.MsgGoodbye:
		c.handleGoodbye(payload)

	default:
		c.logger.Debug("ignoring frame", "type", mt, "length", len(payload))
	}
}

func (c *Connection) handleHello(payload []byte) {
	hello, err := protocol.DecodeHello(payload)
	span := c.tracer.startHandshake(c.id, hello)

	if err != nil {
		c.violation(span, NewProtocolError(c.id, "hello", ViolationShortHello,
			fmt.Sprintf("payload is %d bytes, need 4", len(payload))))
		return
	}
	if hello.Major != protocol.VersionMajor {
		c.violation(span, NewProtocolError(c.id, "hello", ViolationVersionMismatch,
			fmt.Sprintf("unsupported major version %d", hello.Major)))
		return
	}

	c.send(protocol.MsgHelloAck, protocol.HelloAckFrame(protocol.VersionMajor, protocol.VersionMinor))
	c.handshake.Store(true)
	c.logger.Info("handshake complete",
		"client_major", hello.Major,
		"client_minor", hello.Minor)

	hasGame := c.sendInfo()
	syncSent := false
	if hasGame {
		syncSent = c.sendSync(protocol.SyncInitial)
	}

	span.SetAttributes(
		attribute.Bool(attrHasGame, hasGame),
		attribute.Bool(attrSyncSent, syncSent),
	)
	endSpan(span, nil)
}

// violation closes the transport without a reply.
func (c *Connection) violation(span trace.Span, perr *ProtocolError) {
	c.logger.Warn("protocol violation", "kind", perr.Kind, "error", perr.Message)
	c.metrics.recordViolation(perr.Kind)
	c.Close()
	endSpan(span, perr)
}

func (c *Connection) handleGoodbye(payload []byte) {
	reason := protocol.DecodeGoodbye(payload)
	span := c.tracer.startGoodbye(c.id, reason)

	c.send(protocol.MsgGoodbyeAck, protocol.GoodbyeAckFrame(reason))
	c.Close()
	c.logger.Info("client said goodbye", "reason", reason)
	endSpan(span, nil)
}

// SendInfoUpdate pushes an Info frame and, when sendSync is set and a game
// is loaded, a Sync frame carrying reason. It does nothing before the
// handshake or after a transport error.
func (c *Connection) SendInfoUpdate(sendSync bool, reason protocol.SyncReason) {
	if !c.HandshakeComplete() || c.ConnectionError() {
		return
	}

	span := c.tracer.startPush(c.id, sendSync, reason)
	hasGame := c.sendInfo()
	syncSent := false
	if sendSync && hasGame {
		syncSent = c.sendSync(reason)
	}
	c.metrics.recordPush(sendSync, reason)
	c.logger.Debug("pushed update",
		"has_game", hasGame,
		"sync", syncSent,
		"reason", reason)

	span.SetAttributes(
		attribute.Bool(attrHasGame, hasGame),
		attribute.Bool(attrSyncSent, syncSent),
	)
	endSpan(span, nil)
}

// sendInfo sends a fresh Info frame and reports whether a game is loaded.
func (c *Connection) sendInfo() bool {
	snap := infoSnapshot(c.host)
	c.send(protocol.MsgInfo, protocol.MakeFrame(protocol.MsgInfo, protocol.EncodeInfo(&snap)))
	return snap.HasGame
}

// sendSync sends a Sync frame when the snapshot is valid.
func (c *Connection) sendSync(reason protocol.SyncReason) bool {
	snap := syncSnapshot(c.host, reason)
	if !snap.Valid {
		return false
	}
	c.send(protocol.MsgSync, protocol.MakeFrame(protocol.MsgSync, protocol.EncodeSync(&snap)))
	return true
}

// send writes one frame. Frames are dropped silently once the transport has
// failed; the owner notices through ConnectionError.
func (c *Connection) send(mt protocol.MsgType, frame []byte) {
	if c.ConnectionError() {
		return
	}
	if len(frame)-protocol.FrameHeaderSize > protocol.MaxPayloadSize {
		c.logger.Warn("dropping oversized frame", "type", mt, "length", len(frame))
		return
	}
	if err := c.sock.Send(frame); err != nil {
		c.logger.Debug("send failed", "type", mt, "error", err)
		return
	}
	c.metrics.recordSent(mt, len(frame))
}
