package protocol

// MaxLen16 is the largest length that fits in a u16 length prefix.
const MaxLen16 = 0xFFFF

// cpuCycleMask keeps the low 40 bits of the cycle counter.
const cpuCycleMask = 0xFF_FFFF_FFFF

// Encoder is a binary encoder that appends data to an internal buffer.
// Writes never fail; oversized length-prefixed values are truncated.
type Encoder struct {
	buf []byte
}

// NewEncoder creates a new encoder with a default initial capacity.
func NewEncoder() *Encoder {
	return &Encoder{
		buf: make([]byte, 0, 64),
	}
}

// NewEncoderWithCap creates a new encoder with the specified initial capacity.
func NewEncoderWithCap(cap int) *Encoder {
	return &Encoder{
		buf: make([]byte, 0, cap),
	}
}

// Reset resets the encoder to empty state, reusing the underlying buffer.
func (e *Encoder) Reset() {
	e.buf = e.buf[:0]
}

// Bytes returns the encoded bytes. The returned slice is valid until
// the next call to Reset or any Write method.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Len returns the number of bytes currently encoded.
func (e *Encoder) Len() int {
	return len(e.buf)
}

// WriteU8 appends a single byte.
func (e *Encoder) WriteU8(v uint8) {
	e.buf = append(e.buf, v)
}

// WriteBool appends a boolean as 0x00 or 0x01.
func (e *Encoder) WriteBool(b bool) {
	if b {
		e.buf = append(e.buf, 0x01)
	} else {
		e.buf = append(e.buf, 0x00)
	}
}

// WriteU16LE appends a uint16 in little-endian byte order.
func (e *Encoder) WriteU16LE(v uint16) {
	e.buf = append(e.buf, byte(v), byte(v>>8))
}

// WriteU32LE appends a uint32 in little-endian byte order.
func (e *Encoder) WriteU32LE(v uint32) {
	e.buf = append(e.buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// WriteI16LE appends an int16 in little-endian byte order.
func (e *Encoder) WriteI16LE(v int16) {
	e.WriteU16LE(uint16(v))
}

// WriteI32LE appends an int32 in little-endian byte order.
func (e *Encoder) WriteI32LE(v int32) {
	e.WriteU32LE(uint32(v))
}

// WriteLen16Bytes appends a u16 length prefix followed by the bytes.
// Input longer than MaxLen16 is truncated to its first MaxLen16 bytes.
func (e *Encoder) WriteLen16Bytes(b []byte) {
	if len(b) > MaxLen16 {
		b = b[:MaxLen16]
	}
	e.WriteU16LE(uint16(len(b)))
	e.buf = append(e.buf, b...)
}

// WriteLen16String appends a u16 length prefix followed by the string bytes.
// The length counts bytes, not runes; truncation may split a UTF-8 sequence.
func (e *Encoder) WriteLen16String(s string) {
	if len(s) > MaxLen16 {
		s = s[:MaxLen16]
	}
	e.WriteU16LE(uint16(len(s)))
	e.buf = append(e.buf, s...)
}

// WriteCPUCycle40LE appends the low 40 bits of a cycle counter as 5
// little-endian bytes.
func (e *Encoder) WriteCPUCycle40LE(cycles uint64) {
	v := cycles & cpuCycleMask
	e.buf = append(e.buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24), byte(v>>32))
}
