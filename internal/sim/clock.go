package sim

import (
	"fmt"
	"strings"
	"time"

	"github.com/vango-dev/tracestream/pkg/emulator"
)

// DotsPerScanline is the PPU dot count of every scanline in both regions.
const DotsPerScanline = 341

// maxAdvance bounds a single clock step so a stalled ticker cannot overflow
// the cycle arithmetic.
const maxAdvance = time.Second

// Region is the video timing of the simulated console.
type Region struct {
	ID string

	// MasterHz is the master oscillator frequency.
	MasterHz uint64

	// CPUDivider and PPUDivider derive the CPU cycle and PPU dot clocks
	// from the master clock.
	CPUDivider uint64
	PPUDivider uint64

	// Scanlines is the frame height including the pre-render line.
	Scanlines int
}

// RegionNTSC is the timing of NTSC consoles.
var RegionNTSC = Region{
	ID:         "ntsc",
	MasterHz:   21_477_272,
	CPUDivider: 12,
	PPUDivider: 4,
	Scanlines:  262,
}

// RegionPAL is the timing of PAL consoles.
var RegionPAL = Region{
	ID:         "pal",
	MasterHz:   26_601_712,
	CPUDivider: 16,
	PPUDivider: 5,
	Scanlines:  312,
}

// ParseRegion returns the region named by id.
func ParseRegion(id string) (Region, error) {
	switch strings.ToLower(id) {
	case "ntsc", "":
		return RegionNTSC, nil
	case "pal":
		return RegionPAL, nil
	}
	return Region{}, fmt.Errorf("sim: unknown region %q", id)
}

// Clock counts master cycles and derives the CPU cycle count and the PPU
// raster position from them.
type Clock struct {
	region Region
	master uint64
	// frac carries the sub-cycle remainder in nanosecond-cycles.
	frac uint64
}

// NewClock creates a clock at master cycle zero.
func NewClock(region Region) *Clock {
	return &Clock{region: region}
}

// Region returns the clock's timing.
func (c *Clock) Region() Region {
	return c.region
}

// Advance moves the clock forward by d of emulated time.
func (c *Clock) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	if d > maxAdvance {
		d = maxAdvance
	}
	total := c.frac + uint64(d.Nanoseconds())*c.region.MasterHz
	c.master += total / uint64(time.Second)
	c.frac = total % uint64(time.Second)
}

// AdvanceCycles moves the clock forward by n CPU cycles.
func (c *Clock) AdvanceCycles(n uint64) {
	c.master += n * c.region.CPUDivider
}

// Master returns the master cycle count.
func (c *Clock) Master() uint64 {
	return c.master
}

// SetMaster moves the clock to an absolute master cycle.
func (c *Clock) SetMaster(master uint64) {
	c.master = master
	c.frac = 0
}

// CPUCycles returns the CPU cycle count.
func (c *Clock) CPUCycles() uint64 {
	return c.master / c.region.CPUDivider
}

// Position returns the PPU raster position. The first scanline of every
// frame is the pre-render line -1.
func (c *Clock) Position() emulator.PPUPosition {
	dots := c.master / c.region.PPUDivider
	frame := uint64(DotsPerScanline * c.region.Scanlines)
	within := dots % frame
	return emulator.PPUPosition{
		Scanline: int(within/DotsPerScanline) - 1,
		Dot:      int(within % DotsPerScanline),
	}
}

// Frame returns the number of completed frames.
func (c *Clock) Frame() uint64 {
	dots := c.master / c.region.PPUDivider
	return dots / uint64(DotsPerScanline*c.region.Scanlines)
}
