package protocol

import (
	"errors"
	"io"
)

// Frame constants.
const (
	// FrameHeaderSize is the size of the frame header in bytes.
	FrameHeaderSize = 3

	// MaxPayloadSize is the maximum payload size (2^16 - 1 bytes).
	MaxPayloadSize = 65535
)

// MsgType identifies the type of a frame.
type MsgType uint8

const (
	MsgHello      MsgType = 0x01 // Client → Server version request
	MsgHelloAck   MsgType = 0x02 // Server → Client accepted version
	MsgGoodbye    MsgType = 0x03 // Client → Server disconnect request
	MsgGoodbyeAck MsgType = 0x04 // Server → Client disconnect acknowledgement
	MsgInfo       MsgType = 0x05 // Server → Client cartridge metadata
	MsgSync       MsgType = 0x06 // Server → Client timing snapshot
)

// String returns the string representation of the message type.
func (mt MsgType) String() string {
	switch mt {
	case MsgHello:
		return "Hello"
	case MsgHelloAck:
		return "HelloAck"
	case MsgGoodbye:
		return "Goodbye"
	case MsgGoodbyeAck:
		return "GoodbyeAck"
	case MsgInfo:
		return "Info"
	case MsgSync:
		return "Sync"
	default:
		return "Unknown"
	}
}

// Known reports whether mt is one of the message types defined by this
// protocol version.
func (mt MsgType) Known() bool {
	return mt >= MsgHello && mt <= MsgSync
}

// Frame errors.
var (
	ErrFrameTooLarge = errors.New("protocol: frame payload too large")
)

// Frame represents a protocol frame with header and payload.
type Frame struct {
	Type    MsgType
	Payload []byte
}

// MakeFrame returns type || u16LE(len(payload)) || payload.
// The caller keeps payloads within MaxPayloadSize; every payload this
// package builds does.
func MakeFrame(mt MsgType, payload []byte) []byte {
	out := make([]byte, 0, FrameHeaderSize+len(payload))
	out = append(out, byte(mt), byte(len(payload)), byte(len(payload)>>8))
	return append(out, payload...)
}

// Encode encodes the frame to bytes including the header.
func (f *Frame) Encode() []byte {
	return MakeFrame(f.Type, f.Payload)
}

// DecodeFrameHeader decodes just the frame header, returning type and
// payload length.
func DecodeFrameHeader(data []byte) (MsgType, int, error) {
	if len(data) < FrameHeaderSize {
		return 0, 0, io.ErrUnexpectedEOF
	}
	return MsgType(data[0]), int(ReadU16LE(data, 1)), nil
}

// DecodeFrame decodes a frame from bytes.
// The input must contain at least the header and the full payload.
func DecodeFrame(data []byte) (*Frame, error) {
	mt, length, err := DecodeFrameHeader(data)
	if err != nil {
		return nil, err
	}
	if len(data) < FrameHeaderSize+length {
		return nil, io.ErrUnexpectedEOF
	}

	payload := make([]byte, length)
	copy(payload, data[FrameHeaderSize:FrameHeaderSize+length])

	return &Frame{
		Type:    mt,
		Payload: payload,
	}, nil
}

// ReadFrame reads a complete frame from an io.Reader.
func ReadFrame(r io.Reader) (*Frame, error) {
	var header [FrameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	mt := MsgType(header[0])
	length := int(ReadU16LE(header[:], 1))

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
	}

	return &Frame{
		Type:    mt,
		Payload: payload,
	}, nil
}

// WriteFrame writes a complete frame to an io.Writer.
func WriteFrame(w io.Writer, f *Frame) error {
	if len(f.Payload) > MaxPayloadSize {
		return ErrFrameTooLarge
	}

	_, err := w.Write(f.Encode())
	return err
}

// NewFrame creates a new frame with the given type and payload.
func NewFrame(mt MsgType, payload []byte) *Frame {
	return &Frame{
		Type:    mt,
		Payload: payload,
	}
}
