package protocol

// Protocol version spoken by this package. A Hello with a different major is
// refused; the server always answers with minor 0.
const (
	VersionMajor uint16 = 1
	VersionMinor uint16 = 0
)

// helloPayloadSize is the minimum Hello/HelloAck payload length.
const helloPayloadSize = 4

// GoodbyeReason is carried by Goodbye and echoed by GoodbyeAck.
type GoodbyeReason uint8

const (
	GoodbyeClientRequest  GoodbyeReason = 0
	GoodbyeServerShutdown GoodbyeReason = 1
	GoodbyeProtocolError  GoodbyeReason = 2
)

// String returns the string representation of the goodbye reason.
func (r GoodbyeReason) String() string {
	switch r {
	case GoodbyeClientRequest:
		return "ClientRequest"
	case GoodbyeServerShutdown:
		return "ServerShutdown"
	case GoodbyeProtocolError:
		return "ProtocolError"
	default:
		return "Unknown"
	}
}

// SyncReason tells the client why a Sync frame was sent.
type SyncReason uint8

const (
	SyncInitial   SyncReason = 0 // First sync after handshake or game load
	SyncLoadState SyncReason = 1 // A save state was restored
	SyncReset     SyncReason = 2 // The console was reset
)

// String returns the string representation of the sync reason.
func (r SyncReason) String() string {
	switch r {
	case SyncInitial:
		return "Initial"
	case SyncLoadState:
		return "LoadState"
	case SyncReset:
		return "Reset"
	default:
		return "Unknown"
	}
}

// Hello is the version handshake payload used by both Hello and HelloAck.
type Hello struct {
	Major uint16
	Minor uint16
}

// EncodeHello encodes a Hello payload.
func EncodeHello(h Hello) []byte {
	e := NewEncoderWithCap(helloPayloadSize)
	e.WriteU16LE(h.Major)
	e.WriteU16LE(h.Minor)
	return e.Bytes()
}

// DecodeHello decodes a Hello or HelloAck payload. Bytes past the first
// four are ignored.
func DecodeHello(data []byte) (Hello, error) {
	if len(data) < helloPayloadSize {
		return Hello{}, ErrBufferTooShort
	}
	return Hello{
		Major: ReadU16LE(data, 0),
		Minor: ReadU16LE(data, 2),
	}, nil
}

// EncodeHelloAck encodes a HelloAck payload.
func EncodeHelloAck(h Hello) []byte {
	return EncodeHello(h)
}

// DecodeHelloAck decodes a HelloAck payload.
func DecodeHelloAck(data []byte) (Hello, error) {
	return DecodeHello(data)
}

// EncodeGoodbye encodes a Goodbye payload.
func EncodeGoodbye(reason GoodbyeReason) []byte {
	return []byte{byte(reason)}
}

// EncodeGoodbyeAck encodes a GoodbyeAck payload.
func EncodeGoodbyeAck(reason GoodbyeReason) []byte {
	return []byte{byte(reason)}
}

// DecodeGoodbye returns the reason byte of a Goodbye payload, defaulting to
// GoodbyeClientRequest when the payload is empty.
func DecodeGoodbye(data []byte) GoodbyeReason {
	if len(data) == 0 {
		return GoodbyeClientRequest
	}
	return GoodbyeReason(data[0])
}

// DecodeGoodbyeAck decodes a GoodbyeAck payload. Unlike Goodbye, the
// acknowledgement always carries its reason.
func DecodeGoodbyeAck(data []byte) (GoodbyeReason, error) {
	if len(data) < 1 {
		return 0, ErrBufferTooShort
	}
	return GoodbyeReason(data[0]), nil
}

// HelloFrame builds a complete Hello frame.
func HelloFrame(major, minor uint16) []byte {
	return MakeFrame(MsgHello, EncodeHello(Hello{Major: major, Minor: minor}))
}

// HelloAckFrame builds a complete HelloAck frame.
func HelloAckFrame(major, minor uint16) []byte {
	return MakeFrame(MsgHelloAck, EncodeHelloAck(Hello{Major: major, Minor: minor}))
}

// GoodbyeFrame builds a Goodbye frame carrying reason.
func GoodbyeFrame(reason GoodbyeReason) []byte {
	return MakeFrame(MsgGoodbye, EncodeGoodbye(reason))
}

// GoodbyeAckFrame builds a GoodbyeAck frame carrying reason.
func GoodbyeAckFrame(reason GoodbyeReason) []byte {
	return MakeFrame(MsgGoodbyeAck, EncodeGoodbyeAck(reason))
}
