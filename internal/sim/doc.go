// Package sim provides a simulated NES host for running the trace streamer
// without an emulator.
//
// The host loads iNES and NES 2.0 files, computes the same hashes an
// emulator reports for them and advances a master clock in real time. The
// CPU cycle counter and PPU raster position are derived from that clock
// using the NTSC or PAL dividers.
//
//	bus := notifications.NewBus()
//	host := sim.NewHost(bus, sim.RegionNTSC, logger)
//	if _, err := host.LoadFile("smb3.nes"); err != nil {
//	    return err
//	}
//	go host.Run(ctx, 10*time.Millisecond)
package sim
