package sim

import (
	"crypto/sha1"
	stderrors "errors"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vango-dev/tracestream/internal/errors"
	"github.com/vango-dev/tracestream/pkg/emulator"
)

// buildINES returns an image with the given header bytes 4-15 followed by
// deterministic PRG and CHR data.
func buildINES(t *testing.T, header [12]byte, prg, chr int) []byte {
	t.Helper()
	data := append([]byte("NES\x1A"), header[:]...)
	if header[2]&0x04 != 0 {
		data = append(data, make([]byte, trainerSize)...)
	}
	for i := 0; i < prg; i++ {
		data = append(data, byte(i*7))
	}
	for i := 0; i < chr; i++ {
		data = append(data, byte(i*13+1))
	}
	return data
}

func TestParseINES_V1(t *testing.T) {
	// 2x16K PRG, 1x8K CHR, mapper 4 (high nibble in flags7), vertical.
	data := buildINES(t, [12]byte{2, 1, 0x41, 0x00}, 2*prgUnit, chrUnit)
	// Reset vector $8123.
	data[headerSize+2*prgUnit-4] = 0x23
	data[headerSize+2*prgUnit-3] = 0x81

	rom, err := ParseINES("mmc3.nes", data)
	if err != nil {
		t.Fatalf("ParseINES() error = %v", err)
	}

	cart := rom.Cartridge
	if rom.NES2 {
		t.Error("NES2 = true for an iNES 1.0 header")
	}
	if cart.MapperID != 4 {
		t.Errorf("MapperID = %d, want 4", cart.MapperID)
	}
	if cart.Mirroring != emulator.MirroringVertical {
		t.Errorf("Mirroring = %v, want Vertical", cart.Mirroring)
	}
	if cart.PrgRomSize != 2*prgUnit || cart.ChrRomSize != chrUnit {
		t.Errorf("sizes = %d/%d", cart.PrgRomSize, cart.ChrRomSize)
	}
	if cart.WorkRamSize != DefaultRAMSize || cart.SaveRamSize != 0 {
		t.Errorf("RAM = work %d save %d, want work 8K", cart.WorkRamSize, cart.SaveRamSize)
	}
	if cart.ChrRamSize != 0 {
		t.Errorf("ChrRamSize = %d, want 0 with CHR ROM", cart.ChrRamSize)
	}

	wantSha := strings.ToUpper(fmt.Sprintf("%x", sha1.Sum(data)))
	if rom.Sha1 != wantSha {
		t.Errorf("Sha1 = %s, want %s", rom.Sha1, wantSha)
	}
	prg := data[headerSize : headerSize+2*prgUnit]
	chr := data[headerSize+2*prgUnit:]
	if cart.Crc32 != crc32.ChecksumIEEE(data[headerSize:]) {
		t.Error("Crc32 does not cover the data after the header")
	}
	if cart.PrgCrc32 != crc32.ChecksumIEEE(prg) {
		t.Error("PrgCrc32 mismatch")
	}
	if cart.PrgChrCrc32 != crc32.ChecksumIEEE(append(append([]byte(nil), prg...), chr...)) {
		t.Error("PrgChrCrc32 mismatch")
	}
	if got := rom.ResetVector(); got != 0x8123 {
		t.Errorf("ResetVector() = %#04x, want 0x8123", got)
	}

	info := rom.Info()
	if info.FileName != "mmc3.nes" || info.Format != emulator.FormatINes || info.Sha1 != rom.Sha1 {
		t.Errorf("Info() = %+v", info)
	}
}

func TestParseINES_V1Variants(t *testing.T) {
	tests := []struct {
		name      string
		header    [12]byte
		chr       int
		check     func(*testing.T, *ROM)
		extraTail int
	}{
		{
			name:   "battery moves RAM to save RAM",
			header: [12]byte{1, 1, 0x02, 0, 2},
			chr:    chrUnit,
			check: func(t *testing.T, r *ROM) {
				if r.Cartridge.SaveRamSize != 16*1024 || r.Cartridge.WorkRamSize != 0 {
					t.Errorf("RAM = work %d save %d", r.Cartridge.WorkRamSize, r.Cartridge.SaveRamSize)
				}
				if !r.Battery {
					t.Error("Battery = false")
				}
			},
		},
		{
			name:   "no CHR ROM means CHR RAM",
			header: [12]byte{1, 0, 0x00},
			check: func(t *testing.T, r *ROM) {
				if r.Cartridge.ChrRamSize != DefaultRAMSize {
					t.Errorf("ChrRamSize = %d", r.Cartridge.ChrRamSize)
				}
				if r.Cartridge.Mirroring != emulator.MirroringHorizontal {
					t.Errorf("Mirroring = %v", r.Cartridge.Mirroring)
				}
			},
		},
		{
			name:   "four screen wins over vertical",
			header: [12]byte{1, 1, 0x09},
			chr:    chrUnit,
			check: func(t *testing.T, r *ROM) {
				if r.Cartridge.Mirroring != emulator.MirroringFourScreens {
					t.Errorf("Mirroring = %v", r.Cartridge.Mirroring)
				}
			},
		},
		{
			name:   "dirty header ignores flags7 mapper bits",
			header: [12]byte{1, 1, 0x10, 0x40, 0, 0, 0, 'D', 'i', 's', 'k', 'D'},
			chr:    chrUnit,
			check: func(t *testing.T, r *ROM) {
				if r.Cartridge.MapperID != 1 {
					t.Errorf("MapperID = %d, want 1", r.Cartridge.MapperID)
				}
			},
		},
		{
			name:   "trainer is skipped",
			header: [12]byte{1, 1, 0x04},
			chr:    chrUnit,
			check: func(t *testing.T, r *ROM) {
				if !r.Trainer {
					t.Error("Trainer = false")
				}
				if len(r.PRG) != prgUnit || r.PRG[1] != 7 {
					t.Errorf("PRG not taken after the trainer: len %d first %v", len(r.PRG), r.PRG[:2])
				}
			},
		},
		{
			name:      "trailing data is allowed",
			header:    [12]byte{1, 1},
			chr:       chrUnit,
			extraTail: 100,
			check: func(t *testing.T, r *ROM) {
				if len(r.CHR) != chrUnit {
					t.Errorf("len(CHR) = %d", len(r.CHR))
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := buildINES(t, tt.header, int(tt.header[0])*prgUnit, tt.chr)
			data = append(data, make([]byte, tt.extraTail)...)
			rom, err := ParseINES("test.nes", data)
			if err != nil {
				t.Fatalf("ParseINES() error = %v", err)
			}
			tt.check(t, rom)
		})
	}
}

func TestParseINES_NES2(t *testing.T) {
	// Mapper 0x1A5 submapper 3, PRG 1 unit, CHR 2 units, work RAM 64<<7,
	// save RAM 64<<6, CHR RAM 64<<7.
	header := [12]byte{1, 2, 0x50, 0xA8, 0x31, 0x00, 0x67, 0x07}
	data := buildINES(t, header, prgUnit, 2*chrUnit)

	rom, err := ParseINES("nes2.nes", data)
	if err != nil {
		t.Fatalf("ParseINES() error = %v", err)
	}
	cart := rom.Cartridge
	if !rom.NES2 {
		t.Fatal("NES2 = false")
	}
	if cart.MapperID != 0x1A5 || cart.SubmapperID != 3 {
		t.Errorf("mapper = %#x/%d, want 0x1a5/3", cart.MapperID, cart.SubmapperID)
	}
	if cart.PrgRomSize != prgUnit || cart.ChrRomSize != 2*chrUnit {
		t.Errorf("sizes = %d/%d", cart.PrgRomSize, cart.ChrRomSize)
	}
	if cart.WorkRamSize != 8192 || cart.SaveRamSize != 4096 {
		t.Errorf("RAM = work %d save %d", cart.WorkRamSize, cart.SaveRamSize)
	}
	if cart.ChrRamSize != 8192 || cart.SaveChrRamSize != 0 {
		t.Errorf("CHR RAM = %d/%d", cart.ChrRamSize, cart.SaveChrRamSize)
	}
}

func TestNES2RomSize(t *testing.T) {
	tests := []struct {
		lsb, msb uint8
		unit     uint32
		want     uint32
	}{
		{2, 0, prgUnit, 2 * prgUnit},
		{0x00, 0x1, prgUnit, 256 * prgUnit},
		// 2^3 * (1*2+1)
		{0x0D, 0xF, prgUnit, 24},
		// 2^10 * 1
		{0x28, 0xF, chrUnit, 1024},
		{0xFF, 0xF, prgUnit, 0},
	}
	for _, tt := range tests {
		if got := nes2RomSize(tt.lsb, tt.msb, tt.unit); got != tt.want {
			t.Errorf("nes2RomSize(%#x, %#x) = %d, want %d", tt.lsb, tt.msb, got, tt.want)
		}
	}
}

func TestParseINES_Invalid(t *testing.T) {
	valid := buildINES(t, [12]byte{1, 1}, prgUnit, chrUnit)

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"empty", nil, "shorter than the 16 byte header"},
		{"short header", valid[:10], "shorter than the 16 byte header"},
		{"bad magic", append([]byte("NES\x00"), valid[4:]...), "iNES magic"},
		{"no PRG", buildINES(t, [12]byte{0, 1}, 0, chrUnit), "no PRG ROM"},
		{"truncated CHR", valid[:len(valid)-1], "header needs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseINES("bad.nes", tt.data)
			if !stderrors.Is(err, ErrInvalidHeader) {
				t.Fatalf("ParseINES() error = %v, want ErrInvalidHeader", err)
			}
			var te *errors.TraceError
			if !stderrors.As(err, &te) || te.Code != "T031" {
				t.Fatalf("ParseINES() error = %#v, want T031", err)
			}
			if !strings.Contains(te.Detail, tt.want) {
				t.Errorf("Detail = %q, want %q", te.Detail, tt.want)
			}
		})
	}
}

func TestLoadROM(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nrom.nes")
	if err := os.WriteFile(path, buildINES(t, [12]byte{1, 1}, prgUnit, chrUnit), 0o644); err != nil {
		t.Fatal(err)
	}

	rom, err := LoadROM(path)
	if err != nil {
		t.Fatalf("LoadROM() error = %v", err)
	}
	if rom.FileName != "nrom.nes" {
		t.Errorf("FileName = %q, want base name", rom.FileName)
	}

	_, err = LoadROM(filepath.Join(dir, "missing.nes"))
	var te *errors.TraceError
	if !stderrors.As(err, &te) || te.Code != "T030" {
		t.Errorf("LoadROM(missing) = %v, want T030", err)
	}
	if !stderrors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadROM(missing) does not wrap os.ErrNotExist")
	}
}
