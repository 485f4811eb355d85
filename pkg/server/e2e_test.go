package server

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/tracestream/pkg/client"
	"github.com/vango-dev/tracestream/pkg/notifications"
	"github.com/vango-dev/tracestream/pkg/protocol"
)

func startLoopback(t *testing.T, cfg *Config, bus *notifications.Bus, host *fakeHost) (*Server, uint16) {
	t.Helper()
	cfg.Logger = discardLogger()
	cfg.Registerer = prometheus.NewRegistry()

	var notifier Notifier
	if bus != nil {
		notifier = bus
	}
	s := New(host, notifier, cfg)
	s.StartAuto()
	t.Cleanup(s.Stop)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	port, err := s.WaitListening(ctx)
	if err != nil {
		t.Fatalf("WaitListening() error = %v", err)
	}
	return s, port
}

func dialPort(t *testing.T, port uint16) *client.Client {
	t.Helper()
	c, err := client.Dial(context.Background(), net.JoinHostPort("127.0.0.1", strconv.Itoa(int(port))))
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestEndToEnd(t *testing.T) {
	s, port := startLoopback(t, &Config{}, nil, emptyHost())

	if port < DefaultPortStart || port >= DefaultPortStart+DefaultPortAttempts {
		t.Fatalf("port %d outside the default range", port)
	}
	if port != DefaultPortStart {
		t.Logf("port %d in use, bound %d", DefaultPortStart, port)
	}

	c := dialPort(t, port)

	ack, err := c.Hello(1, 0)
	if err != nil {
		t.Fatalf("Hello() error = %v", err)
	}
	if ack != (protocol.Hello{Major: 1, Minor: 0}) {
		t.Errorf("HelloAck = %+v, want {1 0}", ack)
	}

	f, err := c.ReadFrame(0)
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if f.Type != protocol.MsgInfo || len(f.Payload) != 1 || f.Payload[0] != 0 {
		t.Fatalf("got %s %x, want Info{hasGame=0}", f.Type, f.Payload)
	}
	eventually(t, "connected", s.IsConnected)

	reason, err := c.Goodbye(protocol.GoodbyeClientRequest, func(f *protocol.Frame) {
		t.Errorf("unexpected frame before GoodbyeAck: %s", f.Type)
	})
	if err != nil {
		t.Fatalf("Goodbye() error = %v", err)
	}
	if reason != protocol.GoodbyeClientRequest {
		t.Errorf("GoodbyeAck reason = %v, want 0", reason)
	}

	if _, err := c.ReadFrame(time.Second); !errors.Is(err, io.EOF) {
		t.Errorf("ReadFrame() after goodbye error = %v, want EOF", err)
	}
	eventually(t, "slot released", func() bool { return !s.IsConnected() })
}

func TestEndToEndEmptyGoodbye(t *testing.T) {
	_, port := startLoopback(t, &Config{PortStart: 47100}, nil, emptyHost())
	c := dialPort(t, port)

	if _, err := c.Hello(1, 2); err != nil {
		t.Fatal(err)
	}
	if _, err := c.ReadFrame(0); err != nil {
		t.Fatal(err)
	}

	if err := c.SendFrame(protocol.MakeFrame(protocol.MsgGoodbye, nil)); err != nil {
		t.Fatal(err)
	}
	f, err := c.ReadFrame(0)
	if err != nil {
		t.Fatal(err)
	}
	if f.Type != protocol.MsgGoodbyeAck || len(f.Payload) != 1 || f.Payload[0] != 0 {
		t.Errorf("got %s %x, want GoodbyeAck{0}", f.Type, f.Payload)
	}
}

func TestEndToEndSecondClientRejected(t *testing.T) {
	s, port := startLoopback(t, &Config{PortStart: 47200}, nil, emptyHost())

	first := dialPort(t, port)
	if _, err := first.Hello(1, 0); err != nil {
		t.Fatal(err)
	}
	eventually(t, "connected", s.IsConnected)

	second := dialPort(t, port)
	f, err := second.ReadFrame(time.Second)
	if err == nil {
		t.Fatalf("second client received %s", f.Type)
	}
	if !errors.Is(err, io.EOF) {
		var ne net.Error
		if !errors.As(err, &ne) || ne.Timeout() {
			t.Fatalf("second client read error = %v, want closed connection", err)
		}
	}

	if _, err := first.ReadFrame(0); err != nil {
		t.Fatalf("first client lost its Info frame: %v", err)
	}
	if !s.IsConnected() {
		t.Error("first client dropped")
	}
}

func TestEndToEndPush(t *testing.T) {
	bus := notifications.NewBus()
	_, port := startLoopback(t, &Config{PortStart: 47300}, bus, loadedHost())
	c := dialPort(t, port)

	if _, err := c.Hello(1, 0); err != nil {
		t.Fatal(err)
	}
	for _, want := range []protocol.MsgType{protocol.MsgInfo, protocol.MsgSync} {
		f, err := c.ReadFrame(0)
		if err != nil {
			t.Fatal(err)
		}
		if f.Type != want {
			t.Fatalf("handshake frame %s, want %s", f.Type, want)
		}
	}

	bus.Notify(notifications.StateLoaded)

	info, err := c.ReadFrame(0)
	if err != nil {
		t.Fatal(err)
	}
	if info.Type != protocol.MsgInfo {
		t.Fatalf("push frame %s, want Info", info.Type)
	}
	f, err := c.ReadFrame(0)
	if err != nil {
		t.Fatal(err)
	}
	v, err := client.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	sync, ok := v.(*protocol.Sync)
	if !ok || sync.Reason != protocol.SyncLoadState {
		t.Errorf("push sync = %+v, want reason LoadState", v)
	}
	if sync != nil && sync.CPUCycleCount != 0x12_3456_789A {
		t.Errorf("CPUCycleCount = %#x", sync.CPUCycleCount)
	}
}
