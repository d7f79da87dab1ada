// SPDX-License-Identifier: GPL-3.0

// Package congestion implements the DCTCP sender-side congestion-control
// logic: the smoothed ECN-marked-byte-fraction estimator and the CE-mirror
// state machine that preserves one ACK per CE flip across delayed ACKs.
package congestion

import "github.com/heistp/l4ssim/units"

// Config holds the tunables for a DCTCPSender.
type Config struct {
	SegmentSize units.Bytes // MSS used for byte accounting and the cwnd floor
	G           float64     // alpha estimation gain
	AlphaInit   float64     // starting alpha
}

// DefaultConfig returns the design-recommended DCTCP defaults.
func DefaultConfig() Config {
	return Config{
		SegmentSize: 1448,
		G:           1.0 / 16,
		AlphaInit:   0,
	}
}
