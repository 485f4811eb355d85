package protocol

import (
	"bytes"
	"strings"
	"testing"
)

func TestEncoderFixedWidth(t *testing.T) {
	e := NewEncoder()
	e.WriteU8(0xAB)
	e.WriteU16LE(0x1234)
	e.WriteU32LE(0xDEADBEEF)
	e.WriteI16LE(-2)
	e.WriteI32LE(-1)

	want := []byte{
		0xAB,
		0x34, 0x12,
		0xEF, 0xBE, 0xAD, 0xDE,
		0xFE, 0xFF,
		0xFF, 0xFF, 0xFF, 0xFF,
	}
	if !bytes.Equal(e.Bytes(), want) {
		t.Errorf("Bytes() = %x, want %x", e.Bytes(), want)
	}

	e.Reset()
	if e.Len() != 0 {
		t.Errorf("Len() after Reset = %d, want 0", e.Len())
	}
}

func TestEncoderLen16(t *testing.T) {
	tests := []struct {
		name    string
		length  int
		wantLen int
	}{
		{"empty", 0, 0},
		{"short", 5, 5},
		{"exact_max", MaxLen16, MaxLen16},
		{"one_over", MaxLen16 + 1, MaxLen16},
		{"far_over", 3 * MaxLen16, MaxLen16},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			src := make([]byte, tc.length)
			for i := range src {
				src[i] = byte(i)
			}

			e := NewEncoder()
			e.WriteLen16Bytes(src)
			out := e.Bytes()
			if got := int(ReadU16LE(out, 0)); got != tc.wantLen {
				t.Fatalf("length prefix = %d, want %d", got, tc.wantLen)
			}
			if len(out) != 2+tc.wantLen {
				t.Fatalf("encoded size = %d, want %d", len(out), 2+tc.wantLen)
			}
			if !bytes.Equal(out[2:], src[:tc.wantLen]) {
				t.Error("payload is not the leading bytes of the input")
			}

			e.Reset()
			s := strings.Repeat("x", tc.length)
			e.WriteLen16String(s)
			out = e.Bytes()
			if got := int(ReadU16LE(out, 0)); got != tc.wantLen {
				t.Fatalf("string length prefix = %d, want %d", got, tc.wantLen)
			}
			if string(out[2:]) != s[:tc.wantLen] {
				t.Error("string payload is not the leading bytes of the input")
			}
		})
	}
}

func TestEncoderCPUCycle40(t *testing.T) {
	tests := []struct {
		name   string
		cycles uint64
		want   []byte
	}{
		{"zero", 0, []byte{0, 0, 0, 0, 0}},
		{"small", 0x0102, []byte{0x02, 0x01, 0, 0, 0}},
		{"max_40", 0xFF_FFFF_FFFF, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF}},
		{"truncated", 0x1234_5678_9ABC_DEF0, []byte{0xF0, 0xDE, 0xBC, 0x9A, 0x78}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := NewEncoder()
			e.WriteCPUCycle40LE(tc.cycles)
			if !bytes.Equal(e.Bytes(), tc.want) {
				t.Errorf("WriteCPUCycle40LE(%#x) = %x, want %x", tc.cycles, e.Bytes(), tc.want)
			}

			got, err := NewDecoder(e.Bytes()).ReadCPUCycle40LE()
			if err != nil {
				t.Fatalf("ReadCPUCycle40LE() error = %v", err)
			}
			if got != tc.cycles&cpuCycleMask {
				t.Errorf("ReadCPUCycle40LE() = %#x, want %#x", got, tc.cycles&cpuCycleMask)
			}
		})
	}
}

func TestDecoderShortBuffer(t *testing.T) {
	d := NewDecoder([]byte{0x01})
	if _, err := d.ReadU16LE(); err != ErrBufferTooShort {
		t.Errorf("ReadU16LE() error = %v, want ErrBufferTooShort", err)
	}
	if _, err := d.ReadU32LE(); err != ErrBufferTooShort {
		t.Errorf("ReadU32LE() error = %v, want ErrBufferTooShort", err)
	}

	d = NewDecoder([]byte{0x05, 0x00, 'a', 'b'})
	if _, err := d.ReadLen16String(); err != ErrBufferTooShort {
		t.Errorf("ReadLen16String() error = %v, want ErrBufferTooShort", err)
	}
}
