// Package client implements the tool side of the trace streamer protocol.
//
// It is used by the probe command and by end-to-end tests. A Client is not
// safe for concurrent use.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/vango-dev/tracestream/pkg/protocol"
)

// Sentinel errors.
var (
	// ErrUnexpectedFrame is returned when the server answers with a frame of
	// the wrong type.
	ErrUnexpectedFrame = errors.New("client: unexpected frame")

	// ErrNoServer is returned by DialRange when no port in the range accepts.
	ErrNoServer = errors.New("client: no server in port range")
)

// DefaultTimeout bounds a single exchange.
const DefaultTimeout = 2 * time.Second

// Client is a connection to a trace streamer.
type Client struct {
	conn net.Conn
	r    *bufio.Reader

	// Timeout bounds each frame read and write. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Dial connects to addr.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if tc, ok := c.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	return &Client{conn: c, r: bufio.NewReader(c)}, nil
}

// DialRange tries host:start .. host:start+attempts-1 in order and returns
// the first connection that succeeds together with its port.
func DialRange(ctx context.Context, host string, start uint16, attempts int) (*Client, uint16, error) {
	var errs []error
	for i := 0; i < attempts; i++ {
		port := start + uint16(i)
		c, err := Dial(ctx, net.JoinHostPort(host, strconv.Itoa(int(port))))
		if err == nil {
			return c, port, nil
		}
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		errs = append(errs, err)
	}
	return nil, 0, errors.Join(append([]error{ErrNoServer}, errs...)...)
}

func (c *Client) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

// SendFrame writes a raw, already framed message.
func (c *Client) SendFrame(frame []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.timeout()))
	_, err := c.conn.Write(frame)
	return err
}

// ReadFrame reads the next frame, waiting at most timeout. Zero uses the
// client's Timeout.
func (c *Client) ReadFrame(timeout time.Duration) (*protocol.Frame, error) {
	if timeout <= 0 {
		timeout = c.timeout()
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	return protocol.ReadFrame(c.r)
}

// Hello performs the handshake and returns the server's HelloAck. The Info
// and Sync frames that follow are left for ReadFrame.
func (c *Client) Hello(major, minor uint16) (protocol.Hello, error) {
	if err := c.SendFrame(protocol.HelloFrame(major, minor)); err != nil {
		return protocol.Hello{}, err
	}
	f, err := c.ReadFrame(0)
	if err != nil {
		return protocol.Hello{}, err
	}
	if f.Type != protocol.MsgHelloAck {
		return protocol.Hello{}, fmt.Errorf("%w: %s, want HelloAck", ErrUnexpectedFrame, f.Type)
	}
	return protocol.DecodeHelloAck(f.Payload)
}

// Goodbye sends a Goodbye and waits for its acknowledgement. Pushes that
// arrive first are passed to skipped, which may be nil.
func (c *Client) Goodbye(reason protocol.GoodbyeReason, skipped func(*protocol.Frame)) (protocol.GoodbyeReason, error) {
	if err := c.SendFrame(protocol.GoodbyeFrame(reason)); err != nil {
		return 0, err
	}
	for {
		f, err := c.ReadFrame(0)
		if err != nil {
			return 0, err
		}
		if f.Type == protocol.MsgGoodbyeAck {
			return protocol.DecodeGoodbyeAck(f.Payload)
		}
		if skipped != nil {
			skipped(f)
		}
	}
}

// Close closes the connection without a Goodbye.
func (c *Client) Close() error {
	return c.conn.Close()
}

// LocalAddr returns the client's address.
func (c *Client) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// Decode returns the typed payload of f: protocol.Hello for HelloAck,
// protocol.GoodbyeReason for GoodbyeAck, *protocol.Info or *protocol.Sync.
func Decode(f *protocol.Frame) (any, error) {
	switch f.Type {
	case protocol.MsgHelloAck:
		return protocol.DecodeHelloAck(f.Payload)
	case protocol.MsgGoodbyeAck:
		return protocol.DecodeGoodbyeAck(f.Payload)
	case protocol.MsgInfo:
		return protocol.DecodeInfo(f.Payload)
	case protocol.MsgSync:
		return protocol.DecodeSync(f.Payload)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedFrame, f.Type)
	}
}
