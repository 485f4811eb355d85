package server

import (
	"time"

	"github.com/vango-dev/tracestream/pkg/socket"
)

// Socket is the byte-stream primitive owned by a Connection. Recv and Send
// never block the poll loop for longer than a write timeout; Recv returns
// 0, nil when nothing is pending.
type Socket interface {
	Recv(p []byte) (int, error)
	Send(p []byte) error
	Close() error
	ConnectionError() bool
}

// Listener is a bound, listening socket with non-blocking accept.
type Listener interface {
	// Accept returns the next pending socket, or false when none is pending.
	Accept() (Socket, bool)

	// Listen re-arms the listening state.
	Listen(backlog int) error

	ConnectionError() bool
	Close() error
}

// loopbackListener adapts socket.Listener to Listener.
type loopbackListener struct {
	*socket.Listener
}

func (l loopbackListener) Accept() (Socket, bool) {
	c, ok := l.Listener.Accept()
	if !ok {
		return nil, false
	}
	return c, true
}

// bindLoopback returns a BindFunc creating non-blocking 127.0.0.1 listeners.
func bindLoopback(chunkSize int, writeTimeout time.Duration) BindFunc {
	opts := socket.Options{
		ChunkSize:    chunkSize,
		WriteTimeout: writeTimeout,
	}
	return func(port uint16, backlog int) (Listener, error) {
		l, err := socket.ListenLoopback(port, backlog, opts)
		if err != nil {
			return nil, err
		}
		return loopbackListener{l}, nil
	}
}
