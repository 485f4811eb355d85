// Package socket provides a non-blocking byte-stream socket over loopback TCP.
//
// The trace streamer runs a single polling goroutine that must never block
// on the network. Go's net package is blocking, so each Listener and Conn
// runs one helper goroutine that performs the blocking Accept or Read and
// hands results over a buffered channel. Accept and Recv only ever look at
// that channel, returning immediately when nothing is pending.
//
// Once a transport error is observed the socket latches it: ConnectionError
// reports true from then on and every further Send or Recv is a no-op.
package socket

import (
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"time"
)

// Sentinel errors.
var (
	// ErrClosed is latched when the socket is closed locally.
	ErrClosed = errors.New("socket: closed")
)

// Options tune buffering for accepted connections.
type Options struct {
	// ChunkSize is the size of each read issued by the reader goroutine.
	// Default: 4096.
	ChunkSize int

	// QueueDepth is the number of chunks buffered ahead of Recv.
	// Default: 32.
	QueueDepth int

	// WriteTimeout bounds a single Send. Zero means no deadline.
	// Default: 5 seconds.
	WriteTimeout time.Duration
}

// DefaultOptions returns Options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		ChunkSize:    4096,
		QueueDepth:   32,
		WriteTimeout: 5 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ChunkSize <= 0 {
		o.ChunkSize = d.ChunkSize
	}
	if o.QueueDepth <= 0 {
		o.QueueDepth = d.QueueDepth
	}
	if o.WriteTimeout < 0 {
		o.WriteTimeout = 0
	}
	return o
}

// latch holds the first error seen by a socket.
type latch struct {
	mu  sync.Mutex
	err error
}

func (l *latch) set(err error) {
	l.mu.Lock()
	if l.err == nil {
		l.err = err
	}
	l.mu.Unlock()
}

func (l *latch) get() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// =============================================================================
// Conn
// =============================================================================

// Conn is a connected byte stream with non-blocking receive.
type Conn struct {
	conn net.Conn
	opts Options

	chunks  chan []byte
	readErr error // written by readLoop before chunks is closed
	pending []byte

	done      chan struct{}
	closeOnce sync.Once
	err       latch
}

// NewConn wraps c and starts its reader goroutine.
func NewConn(c net.Conn, opts Options) *Conn {
	opts = opts.withDefaults()
	if tc, ok := c.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}

	sc := &Conn{
		conn:   c,
		opts:   opts,
		chunks: make(chan []byte, opts.QueueDepth),
		done:   make(chan struct{}),
	}
	go sc.readLoop()
	return sc
}

func (c *Conn) readLoop() {
	defer close(c.chunks)
	for {
		buf := make([]byte, c.opts.ChunkSize)
		n, err := c.conn.Read(buf)
		if n > 0 {
			select {
			case c.chunks <- buf[:n]:
			case <-c.done:
				return
			}
		}
		if err != nil {
			c.readErr = err
			return
		}
	}
}

// Recv copies pending inbound bytes into p. It returns 0, nil when nothing
// is available. Bytes received before the peer closed are delivered before
// the close is reported.
func (c *Conn) Recv(p []byte) (int, error) {
	if err := c.err.get(); err != nil {
		return 0, err
	}

	if len(c.pending) == 0 {
		select {
		case chunk, ok := <-c.chunks:
			if !ok {
				err := c.readErr
				if err == nil {
					err = io.EOF
				}
				c.err.set(err)
				return 0, c.err.get()
			}
			c.pending = chunk
		default:
			return 0, nil
		}
	}

	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

// Send writes p in full. A failed write latches the error and closes the
// connection.
func (c *Conn) Send(p []byte) error {
	if err := c.err.get(); err != nil {
		return err
	}

	if c.opts.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	}
	if _, err := c.conn.Write(p); err != nil {
		c.err.set(err)
		c.shutdown()
		return err
	}
	return nil
}

// Close closes the connection. Pending outbound bytes already handed to the
// kernel are still delivered.
func (c *Conn) Close() error {
	c.err.set(ErrClosed)
	return c.shutdown()
}

func (c *Conn) shutdown() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

// ConnectionError reports whether the connection is unusable.
func (c *Conn) ConnectionError() bool {
	return c.err.get() != nil
}

// Err returns the latched error, or nil.
func (c *Conn) Err() error {
	return c.err.get()
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// =============================================================================
// Listener
// =============================================================================

// Listener accepts loopback connections without blocking the caller.
type Listener struct {
	ln   net.Listener
	port uint16
	opts Options

	conns  chan net.Conn
	done   chan struct{}
	exited chan struct{}

	closeOnce sync.Once
	err       latch
}

// ListenLoopback binds 127.0.0.1:port and starts accepting. Port 0 picks a
// free port. Up to backlog accepted connections are queued ahead of Accept;
// beyond that the kernel's own backlog applies.
func ListenLoopback(port uint16, backlog int, opts Options) (*Listener, error) {
	if backlog <= 0 {
		backlog = 1
	}

	ln, err := net.Listen("tcp4", net.JoinHostPort("127.0.0.1", strconv.Itoa(int(port))))
	if err != nil {
		return nil, err
	}

	l := &Listener{
		ln:     ln,
		port:   uint16(ln.Addr().(*net.TCPAddr).Port),
		opts:   opts.withDefaults(),
		conns:  make(chan net.Conn, backlog),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go l.acceptLoop()
	return l, nil
}

func (l *Listener) acceptLoop() {
	defer close(l.exited)
	for {
		c, err := l.ln.Accept()
		if err != nil {
			select {
			case <-l.done:
			default:
				l.err.set(err)
			}
			return
		}

		select {
		case l.conns <- c:
		case <-l.done:
			c.Close()
			return
		}
	}
}

// Accept returns the next queued connection, or false when none is pending.
func (l *Listener) Accept() (*Conn, bool) {
	select {
	case c := <-l.conns:
		return NewConn(c, l.opts), true
	default:
		return nil, false
	}
}

// Listen re-arms the listener. A Go listener never leaves the listening
// state on its own, so this only reports whether the listener is still
// healthy.
func (l *Listener) Listen(backlog int) error {
	return l.err.get()
}

// Port returns the bound port.
func (l *Listener) Port() uint16 {
	return l.port
}

// ConnectionError reports whether the listener has failed or been closed.
func (l *Listener) ConnectionError() bool {
	return l.err.get() != nil
}

// Close stops accepting and closes every connection still queued.
func (l *Listener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		l.err.set(ErrClosed)
		close(l.done)
		err = l.ln.Close()
		<-l.exited

		for {
			select {
			case c := <-l.conns:
				c.Close()
			default:
				return
			}
		}
	})
	return err
}
