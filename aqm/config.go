// SPDX-License-Identifier: GPL-3.0

package aqm

import "github.com/heistp/l4ssim/units"

// Mode selects the unit the DualQueue measures capacity and the L4S minimum
// queue-length guard in.
type Mode int

const (
	Packets Mode = iota
	Bytes
)

func (m Mode) String() string {
	if m == Bytes {
		return "bytes"
	}
	return "packets"
}

// PIConfig holds the tunables for a PIController.
type PIConfig struct {
	TUpdate     units.Clock // sample period
	TargetDelay units.Clock // Classic queue-delay setpoint
	Alpha       float64     // integral gain (on the delay's error from TargetDelay), per second
	Beta        float64     // proportional gain (on the delay's change since the last sample), per second
	K           int         // L4S<->Classic coupling factor
}

// DefaultPIConfig returns the design-recommended PI defaults.
func DefaultPIConfig() PIConfig {
	return PIConfig{
		TUpdate:     units.Clock(16e6), // 16ms in ns
		TargetDelay: units.Clock(15e6), // 15ms in ns
		Alpha:       10,
		Beta:        100,
		K:           2,
	}
}

// validate checks the PiController invariants that must hold before it is
// started: T_update > 0 and a sane coupling factor.
func (c PIConfig) validate() error {
	if c.TUpdate <= 0 {
		return configErrorf("PIController", "T_update must be > 0, got %s", c.TUpdate)
	}
	if c.K < 1 {
		return configErrorf("PIController", "k must be >= 1, got %d", c.K)
	}
	return nil
}

// DualQueueConfig holds the tunables for a DualQueue.
type DualQueueConfig struct {
	Limit        uint64      // capacity, in the unit Mode selects
	Mode         Mode        // Packets or Bytes
	MeanPktSize  units.Bytes // basis for the min-L4S-length guard
	TargetDelay  units.Clock // basis for the L4S/Classic tie-break time-shift
	L4SThreshold units.Clock // step-marking sojourn threshold
}

// DefaultDualQueueConfig returns the design-recommended DualQueue defaults.
func DefaultDualQueueConfig() DualQueueConfig {
	return DualQueueConfig{
		Limit:        50,
		Mode:         Packets,
		MeanPktSize:  1000,
		TargetDelay:  units.Clock(15e6), // 15ms in ns
		L4SThreshold: units.Clock(1e6),  // 1ms in ns
	}
}

// validate checks the DualQueue invariants that must hold before it is
// built: a sane limit, and a mean packet size when measuring occupancy in
// Bytes mode.
func (c DualQueueConfig) validate() error {
	if c.Limit == 0 {
		return configErrorf("DualQueue", "limit must be > 0")
	}
	if c.Mode == Bytes && c.MeanPktSize == 0 {
		return configErrorf("DualQueue", "mean_pkt_size must be > 0 in Bytes mode")
	}
	return nil
}
