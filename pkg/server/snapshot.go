package server

import (
	"github.com/vango-dev/tracestream/pkg/emulator"
	"github.com/vango-dev/tracestream/pkg/protocol"
)

// nesConsole resolves the running NES, or false when the host is running
// something else or nothing at all. Must be called with the host lock held.
func nesConsole(host emulator.Host) (emulator.NES, bool) {
	console := host.Console()
	if console == nil {
		return nil, false
	}
	if host.ConsoleType() != emulator.ConsoleNES {
		return nil, false
	}
	return console.NES()
}

// infoSnapshot reads the loaded cartridge description under the host lock.
// Anything short of an iNES cartridge on an NES reports HasGame false.
func infoSnapshot(host emulator.Host) protocol.Info {
	var snap protocol.Info
	if host == nil {
		return snap
	}

	release := host.AcquireLock()
	defer release()

	rom := host.RomInfo()
	if rom.Format != emulator.FormatINes {
		return snap
	}
	nes, ok := nesConsole(host)
	if !ok {
		return snap
	}
	cart, ok := nes.Cartridge()
	if !ok {
		return snap
	}

	snap.HasGame = true
	snap.FileName = rom.FileName
	snap.Sha1 = rom.Sha1
	snap.Crc32 = cart.Crc32
	snap.PrgCrc32 = cart.PrgCrc32
	snap.PrgChrCrc32 = cart.PrgChrCrc32
	snap.MapperID = cart.MapperID
	snap.SubmapperID = cart.SubmapperID
	snap.Mirroring = uint8(cart.Mirroring)
	snap.PrgRomSize = int32(cart.PrgRomSize)
	snap.ChrRomSize = int32(cart.ChrRomSize)
	snap.WorkRamSize = int32(cart.WorkRamSize)
	snap.SaveRamSize = int32(cart.SaveRamSize)
	snap.ChrRamSize = int32(cart.ChrRamSize)
	snap.SaveChrRamSize = int32(cart.SaveChrRamSize)
	return snap
}

// syncSnapshot reads CPU registers and the PPU raster position under the
// host lock. Valid is false when either component is unavailable.
func syncSnapshot(host emulator.Host, reason protocol.SyncReason) protocol.Sync {
	snap := protocol.Sync{Reason: reason}
	if host == nil {
		return snap
	}

	release := host.AcquireLock()
	defer release()

	nes, ok := nesConsole(host)
	if !ok {
		return snap
	}
	cpu, ok := nes.CPU()
	if !ok {
		return snap
	}
	ppu, ok := nes.PPU()
	if !ok {
		return snap
	}

	snap.Valid = true
	snap.CPUCycleCount = cpu.CycleCount
	snap.Scanline = int16(ppu.Scanline)
	snap.Dot = uint16(ppu.Dot)
	snap.PC = cpu.PC
	snap.A = cpu.A
	snap.X = cpu.X
	snap.Y = cpu.Y
	snap.SP = cpu.SP
	snap.PS = cpu.PS
	return snap
}
