// Package protocol implements the binary wire protocol spoken by the trace
// streamer.
//
// The protocol is deliberately small: a debugger or trace tool connects over
// loopback TCP, performs a version handshake and then receives Info and Sync
// frames describing the loaded game and the CPU/PPU timing state.
//
// # Wire Format
//
// Every message is framed with a 3-byte header:
//
//	┌─────────────┬───────────────────────────────┐
//	│ Msg Type    │ Payload Length                │
//	│ (1 byte)    │ (2 bytes, little-endian)      │
//	└─────────────┴───────────────────────────────┘
//	│                                             │
//	│  Payload (0..65535 bytes)                   │
//	│                                             │
//	└─────────────────────────────────────────────┘
//
// # Message Types
//
//   - MsgHello (0x01): client → server, major:u16 minor:u16
//   - MsgHelloAck (0x02): server → client, major:u16 minor:u16
//   - MsgGoodbye (0x03): client → server, reason:u8 (optional)
//   - MsgGoodbyeAck (0x04): server → client, reason:u8
//   - MsgInfo (0x05): server → client, cartridge metadata
//   - MsgSync (0x06): server → client, CPU cycle and register snapshot
//
// Unknown message types are skipped by the server so that newer clients can
// talk to older servers.
//
// # Encoding
//
// All fixed-width integers are little-endian. Strings and byte sequences are
// prefixed with a u16 length and silently truncated to 65535 bytes. The CPU
// cycle counter is carried in 5 bytes (the low 40 bits).
package protocol
