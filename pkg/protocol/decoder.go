package protocol

import (
	"errors"
)

// Common decoding errors.
var (
	ErrBufferTooShort = errors.New("protocol: buffer too short")
)

// ReadU16LE reads a little-endian uint16 at off. The caller guarantees that
// b holds at least off+2 bytes.
func ReadU16LE(b []byte, off int) uint16 {
	return uint16(b[off]) | uint16(b[off+1])<<8
}

// Decoder reads little-endian fields from a payload. It is used on the
// client side; the server decodes its two inbound payloads inline.
type Decoder struct {
	buf []byte
	pos int
}

// NewDecoder creates a new decoder from the given byte slice.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.buf) - d.pos
}

// EOF returns true if all bytes have been read.
func (d *Decoder) EOF() bool {
	return d.pos >= len(d.buf)
}

// ReadU8 reads a single byte.
func (d *Decoder) ReadU8() (uint8, error) {
	if d.pos >= len(d.buf) {
		return 0, ErrBufferTooShort
	}
	b := d.buf[d.pos]
	d.pos++
	return b, nil
}

// ReadBool reads a single byte; any non-zero value is true.
func (d *Decoder) ReadBool() (bool, error) {
	b, err := d.ReadU8()
	return b != 0, err
}

// ReadU16LE reads a uint16 in little-endian byte order.
func (d *Decoder) ReadU16LE() (uint16, error) {
	if d.pos+2 > len(d.buf) {
		return 0, ErrBufferTooShort
	}
	v := ReadU16LE(d.buf, d.pos)
	d.pos += 2
	return v, nil
}

// ReadU32LE reads a uint32 in little-endian byte order.
func (d *Decoder) ReadU32LE() (uint32, error) {
	if d.pos+4 > len(d.buf) {
		return 0, ErrBufferTooShort
	}
	v := uint32(d.buf[d.pos]) | uint32(d.buf[d.pos+1])<<8 |
		uint32(d.buf[d.pos+2])<<16 | uint32(d.buf[d.pos+3])<<24
	d.pos += 4
	return v, nil
}

// ReadI16LE reads an int16 in little-endian byte order.
func (d *Decoder) ReadI16LE() (int16, error) {
	v, err := d.ReadU16LE()
	return int16(v), err
}

// ReadI32LE reads an int32 in little-endian byte order.
func (d *Decoder) ReadI32LE() (int32, error) {
	v, err := d.ReadU32LE()
	return int32(v), err
}

// ReadLen16Bytes reads a u16 length prefix and that many bytes.
// The returned slice is a copy.
func (d *Decoder) ReadLen16Bytes() ([]byte, error) {
	n, err := d.ReadU16LE()
	if err != nil {
		return nil, err
	}
	if int(n) > d.Remaining() {
		return nil, ErrBufferTooShort
	}
	b := make([]byte, n)
	copy(b, d.buf[d.pos:d.pos+int(n)])
	d.pos += int(n)
	return b, nil
}

// ReadLen16String reads a u16 length-prefixed string.
func (d *Decoder) ReadLen16String() (string, error) {
	n, err := d.ReadU16LE()
	if err != nil {
		return "", err
	}
	if int(n) > d.Remaining() {
		return "", ErrBufferTooShort
	}
	s := string(d.buf[d.pos : d.pos+int(n)])
	d.pos += int(n)
	return s, nil
}

// ReadCPUCycle40LE reads a 5-byte little-endian cycle counter.
func (d *Decoder) ReadCPUCycle40LE() (uint64, error) {
	if d.pos+5 > len(d.buf) {
		return 0, ErrBufferTooShort
	}
	var v uint64
	for i := 4; i >= 0; i-- {
		v = v<<8 | uint64(d.buf[d.pos+i])
	}
	d.pos += 5
	return v, nil
}
