package server

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/tracestream/pkg/emulator"
	"github.com/vango-dev/tracestream/pkg/protocol"
)

var errFakeClosed = errors.New("fake: closed")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// =============================================================================
// Socket
// =============================================================================

type fakeSocket struct {
	mu      sync.Mutex
	inbound [][]byte
	sent    []byte
	closed  bool
	failed  bool
	recvs   int
	onSend  func()
}

func (s *fakeSocket) feed(chunks ...[]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range chunks {
		s.inbound = append(s.inbound, append([]byte(nil), c...))
	}
}

func (s *fakeSocket) fail() {
	s.mu.Lock()
	s.failed = true
	s.mu.Unlock()
}

func (s *fakeSocket) Recv(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.failed {
		return 0, errFakeClosed
	}
	s.recvs++
	if len(s.inbound) == 0 {
		return 0, nil
	}
	n := copy(p, s.inbound[0])
	s.inbound[0] = s.inbound[0][n:]
	if len(s.inbound[0]) == 0 {
		s.inbound = s.inbound[1:]
	}
	return n, nil
}

func (s *fakeSocket) Send(p []byte) error {
	s.mu.Lock()
	onSend := s.onSend
	if s.closed || s.failed {
		s.mu.Unlock()
		return errFakeClosed
	}
	s.sent = append(s.sent, p...)
	s.mu.Unlock()

	if onSend != nil {
		onSend()
	}
	return nil
}

func (s *fakeSocket) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fakeSocket) ConnectionError() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed || s.failed
}

func (s *fakeSocket) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSocket) sentBytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.sent...)
}

// frames parses everything sent so far.
func (s *fakeSocket) frames(t *testing.T) []*protocol.Frame {
	t.Helper()
	data := s.sentBytes()
	var out []*protocol.Frame
	for len(data) > 0 {
		f, err := protocol.DecodeFrame(data)
		if err != nil {
			t.Fatalf("sent bytes do not parse as frames: %v", err)
		}
		out = append(out, f)
		data = data[protocol.FrameHeaderSize+len(f.Payload):]
	}
	return out
}

func frameTypes(frames []*protocol.Frame) []protocol.MsgType {
	types := make([]protocol.MsgType, len(frames))
	for i, f := range frames {
		types[i] = f.Type
	}
	return types
}

// =============================================================================
// Listener
// =============================================================================

type fakeListener struct {
	mu      sync.Mutex
	pending []Socket
	closed  bool
	listens int
}

func (l *fakeListener) push(s Socket) {
	l.mu.Lock()
	l.pending = append(l.pending, s)
	l.mu.Unlock()
}

func (l *fakeListener) Accept() (Socket, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || len(l.pending) == 0 {
		return nil, false
	}
	s := l.pending[0]
	l.pending = l.pending[1:]
	return s, true
}

func (l *fakeListener) Listen(int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listens++
	if l.closed {
		return errFakeClosed
	}
	return nil
}

func (l *fakeListener) ConnectionError() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

func (l *fakeListener) Close() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	return nil
}

func (l *fakeListener) isClosed() bool {
	return l.ConnectionError()
}

// fakeBinder hands out fakeListeners and fails the ports it is told to.
type fakeBinder struct {
	mu       sync.Mutex
	failAll  bool
	failing  map[uint16]bool
	attempts []uint16
	bound    []*fakeListener
}

func (b *fakeBinder) bind(port uint16, backlog int) (Listener, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempts = append(b.attempts, port)
	if b.failAll || b.failing[port] {
		return nil, errors.New("address already in use")
	}
	l := &fakeListener{}
	b.bound = append(b.bound, l)
	return l, nil
}

func (b *fakeBinder) setFailAll(on bool) {
	b.mu.Lock()
	b.failAll = on
	b.mu.Unlock()
}

func (b *fakeBinder) attempted() []uint16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]uint16(nil), b.attempts...)
}

func (b *fakeBinder) listener(t *testing.T) *fakeListener {
	t.Helper()
	var l *fakeListener
	eventually(t, "bind", func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		if len(b.bound) == 0 {
			return false
		}
		l = b.bound[len(b.bound)-1]
		return true
	})
	return l
}

// =============================================================================
// Emulator
// =============================================================================

type fakeHost struct {
	mu       sync.Mutex
	acquired int

	consoleType emulator.ConsoleType
	rom         emulator.RomInfo
	console     emulator.Console
}

func (h *fakeHost) AcquireLock() func() {
	h.mu.Lock()
	h.acquired++
	return h.mu.Unlock
}

// locked reports whether the lock is currently held by someone.
func (h *fakeHost) locked() bool {
	if h.mu.TryLock() {
		h.mu.Unlock()
		return false
	}
	return true
}

func (h *fakeHost) ConsoleType() emulator.ConsoleType { return h.consoleType }
func (h *fakeHost) RomInfo() emulator.RomInfo         { return h.rom }
func (h *fakeHost) Console() emulator.Console         { return h.console }

type fakeNES struct {
	cart *emulator.Cartridge
	cpu  *emulator.CPUState
	ppu  *emulator.PPUPosition
}

func (n *fakeNES) NES() (emulator.NES, bool) { return n, true }

func (n *fakeNES) Cartridge() (emulator.Cartridge, bool) {
	if n.cart == nil {
		return emulator.Cartridge{}, false
	}
	return *n.cart, true
}

func (n *fakeNES) CPU() (emulator.CPUState, bool) {
	if n.cpu == nil {
		return emulator.CPUState{}, false
	}
	return *n.cpu, true
}

func (n *fakeNES) PPU() (emulator.PPUPosition, bool) {
	if n.ppu == nil {
		return emulator.PPUPosition{}, false
	}
	return *n.ppu, true
}

// otherConsole is a console without NES capabilities.
type otherConsole struct{}

func (otherConsole) NES() (emulator.NES, bool) { return nil, false }

func testCartridge() *emulator.Cartridge {
	return &emulator.Cartridge{
		Crc32:          0xDEADBEEF,
		PrgCrc32:       0x01020304,
		PrgChrCrc32:    0x0A0B0C0D,
		MapperID:       4,
		SubmapperID:    1,
		Mirroring:      emulator.MirroringVertical,
		PrgRomSize:     128 * 1024,
		ChrRomSize:     128 * 1024,
		WorkRamSize:    8 * 1024,
		SaveRamSize:    8 * 1024,
		ChrRamSize:     0,
		SaveChrRamSize: 0,
	}
}

func loadedHost() *fakeHost {
	return &fakeHost{
		consoleType: emulator.ConsoleNES,
		rom: emulator.RomInfo{
			FileName: "smb3.nes",
			Sha1:     "A0B1C2D3E4F5A0B1C2D3E4F5A0B1C2D3E4F5A0B1",
			Format:   emulator.FormatINes,
		},
		console: &fakeNES{
			cart: testCartridge(),
			cpu: &emulator.CPUState{
				CycleCount: 0x12_3456_789A,
				PC:         0x8000,
				A:          1,
				X:          2,
				Y:          3,
				SP:         0xFD,
				PS:         0x24,
			},
			ppu: &emulator.PPUPosition{Scanline: -1, Dot: 340},
		},
	}
}

func emptyHost() *fakeHost {
	return &fakeHost{}
}

// =============================================================================
// Config
// =============================================================================

func testConfig(b *fakeBinder) *Config {
	return &Config{
		PortStart:    40000,
		PortAttempts: 10,
		Bind:         b.bind,
		Logger:       discardLogger(),
		Registerer:   prometheus.NewRegistry(),
	}
}

func newTestConnection(sock Socket, host emulator.Host) *Connection {
	return NewConnection(sock, host, &Config{
		Logger:     discardLogger(),
		Registerer: prometheus.NewRegistry(),
	})
}
