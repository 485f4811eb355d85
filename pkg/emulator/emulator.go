// Package emulator defines the view of a running emulator that the trace
// streamer consumes.
//
// The streamer never drives the emulator. It takes the emulator's exclusive
// access scope, reads a handful of values through these interfaces and
// releases the scope again before touching the network.
//
// Platform specific state is reached through capability queries rather than
// type assertions on concrete console types:
//
//	release := host.AcquireLock()
//	defer release()
//	if console := host.Console(); console != nil {
//	    if nes, ok := console.NES(); ok {
//	        cpu, ok := nes.CPU()
//	        ...
//	    }
//	}
package emulator

// ConsoleType identifies the emulated platform.
type ConsoleType uint8

const (
	ConsoleNone ConsoleType = iota
	ConsoleNES
	ConsoleSNES
	ConsoleGameboy
	ConsolePCE
	ConsoleSMS
	ConsoleGBA
	ConsoleWS
)

// String returns the string representation of the console type.
func (c ConsoleType) String() string {
	switch c {
	case ConsoleNone:
		return "None"
	case ConsoleNES:
		return "NES"
	case ConsoleSNES:
		return "SNES"
	case ConsoleGameboy:
		return "Gameboy"
	case ConsolePCE:
		return "PCE"
	case ConsoleSMS:
		return "SMS"
	case ConsoleGBA:
		return "GBA"
	case ConsoleWS:
		return "WS"
	default:
		return "Unknown"
	}
}

// RomFormat identifies the container format of the loaded ROM.
type RomFormat uint8

const (
	FormatUnknown RomFormat = iota
	FormatINes
	FormatUnif
	FormatFds
	FormatNsf
)

// String returns the string representation of the ROM format.
func (f RomFormat) String() string {
	switch f {
	case FormatINes:
		return "iNES"
	case FormatUnif:
		return "UNIF"
	case FormatFds:
		return "FDS"
	case FormatNsf:
		return "NSF"
	default:
		return "Unknown"
	}
}

// RomInfo describes the file the current game was loaded from.
type RomInfo struct {
	FileName string
	Sha1     string
	Format   RomFormat
}

// Host is the emulator as seen by the streamer.
//
// Everything except AcquireLock must only be called while the scope returned
// by AcquireLock is held.
type Host interface {
	// AcquireLock blocks until the caller has exclusive access to emulator
	// state and returns the function that releases it.
	AcquireLock() (release func())

	// ConsoleType reports the platform of the running console, or
	// ConsoleNone.
	ConsoleType() ConsoleType

	// RomInfo describes the loaded ROM file.
	RomInfo() RomInfo

	// Console returns the running console, or nil when nothing is loaded.
	Console() Console
}

// Console is a running console. Platform specific accessors are exposed
// through capability queries that report false on other platforms.
type Console interface {
	NES() (NES, bool)
}

// NES exposes the parts of an NES console used for snapshots. Each accessor
// reports false when the component is not present.
type NES interface {
	Cartridge() (Cartridge, bool)
	CPU() (CPUState, bool)
	PPU() (PPUPosition, bool)
}

// Mirroring is the nametable mirroring mode of an NES cartridge.
type Mirroring uint8

const (
	MirroringHorizontal Mirroring = iota
	MirroringVertical
	MirroringScreenAOnly
	MirroringScreenBOnly
	MirroringFourScreens
)

// String returns the string representation of the mirroring mode.
func (m Mirroring) String() string {
	switch m {
	case MirroringHorizontal:
		return "Horizontal"
	case MirroringVertical:
		return "Vertical"
	case MirroringScreenAOnly:
		return "ScreenAOnly"
	case MirroringScreenBOnly:
		return "ScreenBOnly"
	case MirroringFourScreens:
		return "FourScreens"
	default:
		return "Unknown"
	}
}

// Cartridge is the mapper's view of the loaded NES cartridge. RAM sizes are
// the effective sizes after header defaults have been applied.
type Cartridge struct {
	Crc32       uint32
	PrgCrc32    uint32
	PrgChrCrc32 uint32

	MapperID    uint16
	SubmapperID uint8
	Mirroring   Mirroring

	PrgRomSize     uint32
	ChrRomSize     uint32
	WorkRamSize    uint32
	SaveRamSize    uint32
	ChrRamSize     uint32
	SaveChrRamSize uint32
}

// CPUState is the 6502 register file plus the master cycle counter.
type CPUState struct {
	CycleCount uint64
	PC         uint16
	A          uint8
	X          uint8
	Y          uint8
	SP         uint8
	PS         uint8
}

// PPUPosition is the PPU's current raster position. Scanline -1 is the
// pre-render line.
type PPUPosition struct {
	Scanline int
	Dot      int
}
