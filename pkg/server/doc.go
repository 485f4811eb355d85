// Package server implements the trace streamer: a loopback TCP endpoint that
// exposes the loaded game and CPU/PPU timing of a running emulator to one
// external tool at a time.
//
// # Architecture
//
// The package consists of two components:
//
//   - Connection: per-client state machine that buffers partial reads into
//     frames, runs the Hello/Goodbye exchange and builds Info/Sync frames
//     from emulator snapshots
//   - Server: owns the listener and the single connection slot, runs the
//     poll loop and turns lifecycle notifications into pushes
//
// # Poll Loop
//
// One goroutine does all network work. Each iteration:
//  1. Drains pending accepts; the first fills an empty slot, the rest are closed
//  2. Re-arms the listener
//  3. Polls the connection and discards it on transport error
//  4. Consumes the pending push, if the handshake is complete
//  5. Sleeps for PollInterval unless the poll hit its read cap
//
// # Notifications
//
// Notifications arrive on the emulator's goroutine. The handler only sets
// three atomic cells; the loop consumes them once per iteration. Repeated
// notifications before a push coalesce and the latest one wins:
//
//	GameLoaded        Info + Sync(Initial)
//	StateLoaded       Info + Sync(LoadState)
//	GameReset         Info + Sync(Reset)
//	EmulationStopped  Info only
//
// # Example Usage
//
//	bus := notifications.NewBus()
//	streamer := server.New(host, bus, nil)
//	streamer.StartAuto()
//	defer streamer.Stop()
//
//	port, err := streamer.WaitListening(ctx)
package server
