package sim

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vango-dev/tracestream/pkg/emulator"
	"github.com/vango-dev/tracestream/pkg/notifications"
)

// 6502 register state after power-on.
const (
	powerOnSP = 0xFD
	powerOnPS = 0x34
	flagI     = 0x04
)

// Notifier publishes lifecycle notices. *notifications.Bus implements it.
type Notifier interface {
	Notify(notice notifications.Notice)
}

// State is a save state of the simulated console.
type State struct {
	// Sha1 identifies the ROM the state belongs to.
	Sha1   string
	Master uint64
	CPU    emulator.CPUState
}

// Status is a point-in-time summary of the host.
type Status struct {
	Loaded    bool   `json:"loaded"`
	Paused    bool   `json:"paused"`
	FileName  string `json:"fileName,omitempty"`
	Sha1      string `json:"sha1,omitempty"`
	Region    string `json:"region"`
	Frame     uint64 `json:"frame"`
	CPUCycles uint64 `json:"cpuCycles"`
	Scanline  int    `json:"scanline"`
	Dot       int    `json:"dot"`
}

// Host is a simulated NES. It loads real iNES files and runs a free-running
// clock, but executes no instructions: the CPU registers only change on
// power-on, reset and state loads.
//
// Host implements emulator.Host. Lifecycle changes are published on the
// notifier after the lock has been released.
type Host struct {
	mu     sync.Mutex
	clock  *Clock
	rom    *ROM
	cpu    emulator.CPUState
	paused bool

	notifier Notifier
	logger   *slog.Logger
}

var _ emulator.Host = (*Host)(nil)

// NewHost creates a host with no game loaded. A nil notifier discards
// notices; a nil logger uses slog.Default().
func NewHost(notifier Notifier, region Region, logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.Default()
	}
	return &Host{
		clock:    NewClock(region),
		notifier: notifier,
		logger:   logger.With("component", "sim"),
	}
}

// AcquireLock implements emulator.Host.
func (h *Host) AcquireLock() func() {
	h.mu.Lock()
	return h.mu.Unlock
}

// ConsoleType implements emulator.Host.
func (h *Host) ConsoleType() emulator.ConsoleType {
	if h.rom == nil {
		return emulator.ConsoleNone
	}
	return emulator.ConsoleNES
}

// RomInfo implements emulator.Host.
func (h *Host) RomInfo() emulator.RomInfo {
	if h.rom == nil {
		return emulator.RomInfo{}
	}
	return h.rom.Info()
}

// Console implements emulator.Host.
func (h *Host) Console() emulator.Console {
	if h.rom == nil {
		return nil
	}
	return console{h}
}

// Load replaces the running game with rom and powers the console on.
func (h *Host) Load(rom *ROM) {
	release := h.AcquireLock()
	h.rom = rom
	h.clock.SetMaster(0)
	h.cpu = emulator.CPUState{
		PC: rom.ResetVector(),
		SP: powerOnSP,
		PS: powerOnPS,
	}
	h.paused = false
	release()

	h.logger.Info("game loaded",
		"file", rom.FileName,
		"sha1", rom.Sha1,
		"mapper", rom.Cartridge.MapperID,
		"prg", rom.Cartridge.PrgRomSize,
		"chr", rom.Cartridge.ChrRomSize)
	h.notify(notifications.GameLoaded)
}

// LoadFile parses the iNES file at path and loads it.
func (h *Host) LoadFile(path string) (*ROM, error) {
	rom, err := LoadROM(path)
	if err != nil {
		return nil, err
	}
	h.Load(rom)
	return rom, nil
}

// Unload stops emulation and removes the game. It reports false when
// nothing was loaded.
func (h *Host) Unload() bool {
	release := h.AcquireLock()
	loaded := h.rom != nil
	h.rom = nil
	h.paused = false
	release()

	if !loaded {
		return false
	}
	h.logger.Info("emulation stopped")
	h.notify(notifications.EmulationStopped)
	return true
}

// Reset performs a soft reset. It reports false when nothing is loaded.
func (h *Host) Reset() bool {
	release := h.AcquireLock()
	if h.rom == nil {
		release()
		return false
	}
	h.cpu.PC = h.rom.ResetVector()
	h.cpu.SP -= 3
	h.cpu.PS |= flagI
	release()

	h.logger.Info("console reset")
	h.notify(notifications.GameReset)
	return true
}

// SaveState captures the current state. It reports false when nothing is
// loaded.
func (h *Host) SaveState() (State, bool) {
	release := h.AcquireLock()
	defer release()
	if h.rom == nil {
		return State{}, false
	}
	return State{
		Sha1:   h.rom.Sha1,
		Master: h.clock.Master(),
		CPU:    h.cpu,
	}, true
}

// LoadState restores s. The state must belong to the loaded ROM.
func (h *Host) LoadState(s State) error {
	release := h.AcquireLock()
	switch {
	case h.rom == nil:
		release()
		return fmt.Errorf("sim: no game loaded")
	case h.rom.Sha1 != s.Sha1:
		release()
		return fmt.Errorf("sim: state belongs to %s, loaded game is %s", s.Sha1, h.rom.Sha1)
	}
	h.clock.SetMaster(s.Master)
	h.cpu = s.CPU
	release()

	h.logger.Info("state loaded", "master", s.Master)
	h.notify(notifications.StateLoaded)
	return nil
}

// Pause stops the clock.
func (h *Host) Pause() {
	if h.setPaused(true) {
		h.notify(notifications.EmulationPaused)
	}
}

// Resume restarts the clock.
func (h *Host) Resume() {
	if h.setPaused(false) {
		h.notify(notifications.EmulationResumed)
	}
}

func (h *Host) setPaused(paused bool) (changed bool) {
	release := h.AcquireLock()
	defer release()
	if h.rom == nil || h.paused == paused {
		return false
	}
	h.paused = paused
	return true
}

// Step advances the clock by d while a game is running.
func (h *Host) Step(d time.Duration) {
	release := h.AcquireLock()
	if h.rom != nil && !h.paused {
		h.clock.Advance(d)
	}
	release()
}

// Run advances the clock in real time every tick until ctx is done.
func (h *Host) Run(ctx context.Context, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			h.Step(now.Sub(last))
			last = now
		}
	}
}

// Status returns a summary of the host.
func (h *Host) Status() Status {
	release := h.AcquireLock()
	defer release()

	pos := h.clock.Position()
	s := Status{
		Loaded:    h.rom != nil,
		Paused:    h.paused,
		Region:    h.clock.Region().ID,
		Frame:     h.clock.Frame(),
		CPUCycles: h.clock.CPUCycles(),
		Scanline:  pos.Scanline,
		Dot:       pos.Dot,
	}
	if h.rom != nil {
		s.FileName = h.rom.FileName
		s.Sha1 = h.rom.Sha1
	}
	return s
}

func (h *Host) notify(n notifications.Notice) {
	if h.notifier != nil {
		h.notifier.Notify(n)
	}
}

// console and nes read host state and must only be used under the lock.
type console struct{ h *Host }

func (c console) NES() (emulator.NES, bool) {
	return nes(c), true
}

type nes struct{ h *Host }

func (n nes) Cartridge() (emulator.Cartridge, bool) {
	if n.h.rom == nil {
		return emulator.Cartridge{}, false
	}
	return n.h.rom.Cartridge, true
}

func (n nes) CPU() (emulator.CPUState, bool) {
	if n.h.rom == nil {
		return emulator.CPUState{}, false
	}
	cpu := n.h.cpu
	cpu.CycleCount = n.h.clock.CPUCycles()
	return cpu, true
}

func (n nes) PPU() (emulator.PPUPosition, bool) {
	if n.h.rom == nil {
		return emulator.PPUPosition{}, false
	}
	return n.h.clock.Position(), true
}
