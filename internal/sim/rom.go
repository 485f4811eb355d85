package sim

import (
	"crypto/sha1"
	stderrors "errors"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"strings"

	"github.com/vango-dev/tracestream/internal/errors"
	"github.com/vango-dev/tracestream/pkg/emulator"
)

const (
	headerSize  = 16
	trainerSize = 512
	prgUnit     = 16 * 1024
	chrUnit     = 8 * 1024

	// DefaultRAMSize is the work RAM assumed for iNES 1.0 headers that leave
	// it at zero, and the CHR RAM of boards without CHR ROM.
	DefaultRAMSize = 8 * 1024
)

var inesMagic = []byte{'N', 'E', 'S', 0x1A}

// ErrInvalidHeader is wrapped by every header parsing failure.
var ErrInvalidHeader = stderrors.New("invalid iNES header")

// ROM is a parsed iNES or NES 2.0 file.
type ROM struct {
	FileName string
	// Sha1 is the upper case hex digest of the whole file.
	Sha1      string
	NES2      bool
	Battery   bool
	Trainer   bool
	Cartridge emulator.Cartridge

	PRG []byte
	CHR []byte
}

// Info returns the file description reported to the host.
func (r *ROM) Info() emulator.RomInfo {
	return emulator.RomInfo{
		FileName: r.FileName,
		Sha1:     r.Sha1,
		Format:   emulator.FormatINes,
	}
}

// ResetVector returns the address stored at $FFFC, assuming the last PRG bank
// is mapped at the top of the address space.
func (r *ROM) ResetVector() uint16 {
	if len(r.PRG) < 4 {
		return 0
	}
	n := len(r.PRG)
	return uint16(r.PRG[n-4]) | uint16(r.PRG[n-3])<<8
}

// LoadROM reads and parses the file at path.
func LoadROM(path string) (*ROM, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("T030").WithDetail("Could not read " + path).Wrap(err)
	}
	return ParseINES(filepath.Base(path), data)
}

// ParseINES parses an iNES or NES 2.0 image.
func ParseINES(name string, data []byte) (*ROM, error) {
	invalid := func(format string, args ...any) error {
		return errors.New("T031").
			WithDetail(fmt.Sprintf(format, args...)).
			Wrap(fmt.Errorf("%s: %w", name, ErrInvalidHeader))
	}

	if len(data) < headerSize {
		return nil, invalid("%s is %d bytes, shorter than the 16 byte header", name, len(data))
	}
	if string(data[:4]) != string(inesMagic) {
		return nil, invalid("%s does not start with the iNES magic", name)
	}

	h := data[:headerSize]
	rom := &ROM{
		FileName: name,
		NES2:     h[7]&0x0C == 0x08,
		Battery:  h[6]&0x02 != 0,
		Trainer:  h[6]&0x04 != 0,
	}
	cart := &rom.Cartridge

	switch {
	case h[6]&0x08 != 0:
		cart.Mirroring = emulator.MirroringFourScreens
	case h[6]&0x01 != 0:
		cart.Mirroring = emulator.MirroringVertical
	default:
		cart.Mirroring = emulator.MirroringHorizontal
	}

	if rom.NES2 {
		cart.MapperID = uint16(h[6]>>4) | uint16(h[7]&0xF0) | uint16(h[8]&0x0F)<<8
		cart.SubmapperID = h[8] >> 4
		cart.PrgRomSize = nes2RomSize(h[4], h[9]&0x0F, prgUnit)
		cart.ChrRomSize = nes2RomSize(h[5], h[9]>>4, chrUnit)
		cart.WorkRamSize = shiftSize(h[10] & 0x0F)
		cart.SaveRamSize = shiftSize(h[10] >> 4)
		cart.ChrRamSize = shiftSize(h[11] & 0x0F)
		cart.SaveChrRamSize = shiftSize(h[11] >> 4)
	} else {
		mapperHi := h[7] & 0xF0
		// Headers dirtied by old dumping tools carry text in bytes 7-15.
		if h[12] != 0 || h[13] != 0 || h[14] != 0 || h[15] != 0 {
			mapperHi = 0
		}
		cart.MapperID = uint16(h[6]>>4) | uint16(mapperHi)
		cart.PrgRomSize = uint32(h[4]) * prgUnit
		cart.ChrRomSize = uint32(h[5]) * chrUnit

		ram := uint32(h[8]) * DefaultRAMSize
		if ram == 0 {
			ram = DefaultRAMSize
		}
		if rom.Battery {
			cart.SaveRamSize = ram
		} else {
			cart.WorkRamSize = ram
		}
		if cart.ChrRomSize == 0 {
			cart.ChrRamSize = DefaultRAMSize
		}
	}

	if cart.PrgRomSize == 0 {
		return nil, invalid("%s declares no PRG ROM", name)
	}

	offset := headerSize
	if rom.Trainer {
		offset += trainerSize
	}
	need := offset + int(cart.PrgRomSize) + int(cart.ChrRomSize)
	if len(data) < need {
		return nil, invalid("%s is %d bytes but its header needs %d", name, len(data), need)
	}

	rom.PRG = data[offset : offset+int(cart.PrgRomSize)]
	rom.CHR = data[offset+int(cart.PrgRomSize) : need]

	sum := sha1.Sum(data)
	rom.Sha1 = strings.ToUpper(fmt.Sprintf("%x", sum))

	cart.Crc32 = crc32.ChecksumIEEE(data[headerSize:])
	cart.PrgCrc32 = crc32.ChecksumIEEE(rom.PRG)
	cart.PrgChrCrc32 = crc32.Update(cart.PrgCrc32, crc32.IEEETable, rom.CHR)

	return rom, nil
}

// nes2RomSize decodes a NES 2.0 ROM size from its LSB byte and MSB nibble.
// An MSB nibble of 0xF selects the exponent-multiplier form.
func nes2RomSize(lsb, msb uint8, unit uint32) uint32 {
	if msb == 0x0F {
		exp := uint32(lsb >> 2)
		mul := uint32(lsb&0x03)*2 + 1
		if exp > 28 {
			return 0
		}
		return (uint32(1) << exp) * mul
	}
	return (uint32(msb)<<8 | uint32(lsb)) * unit
}

// shiftSize decodes a NES 2.0 RAM shift count.
func shiftSize(shift uint8) uint32 {
	if shift == 0 {
		return 0
	}
	return 64 << shift
}
