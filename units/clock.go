// SPDX-License-Identifier: GPL-3.0

// Package units holds the value types shared by the simulation-independent
// congestion-control and AQM packages: a virtual Clock, byte counts and
// bitrates. None of these types depend on the discrete-event harness, so the
// algorithmic core can be constructed and tested without a running
// simulation.
package units

import (
	"fmt"
	"math"
	"time"
)

// Clock represents a point in, or duration of, virtual simulation time.
type Clock time.Duration

// ClockInfinity is the maximum representable Clock value.
const ClockInfinity = Clock(math.MaxInt64)

// MultiplyScaled multiplies with the given Clock value, scaled to
// time.Second, for fixed-point style arithmetic on durations. The PI
// controller and DCTCP estimator do not use it; they compute in float64.
func (c Clock) MultiplyScaled(c2 Clock) Clock {
	return c * c2 / Clock(time.Second)
}

// Seconds returns the Clock value in floating-point seconds.
func (c Clock) Seconds() float64 {
	return time.Duration(c).Seconds()
}

// StringMS renders the Clock value in milliseconds.
func (c Clock) StringMS() string {
	return fmt.Sprintf("%f", c.Seconds()*1000)
}

func (c Clock) String() string {
	return fmt.Sprintf("%f", c.Seconds())
}

// Bytes is a count of bytes.
type Bytes uint64

const (
	Byte     Bytes = 1
	Kilobyte       = 1000 * Byte
	Megabyte       = 1000 * Kilobyte
)

func (b Bytes) String() string {
	return fmt.Sprintf("%d", uint64(b))
}

// Bitrate is a bitrate in bits per second.
type Bitrate int64

const (
	Bps  Bitrate = 1
	Yps          = 8 * Bps
	Kbps         = 1000 * Bps
	Mbps         = 1000 * Kbps
	Gbps         = 1000 * Mbps
)

// Bps returns the Bitrate in bits per second.
func (b Bitrate) Bps() float64 {
	return float64(b)
}

// Mbps returns the Bitrate in megabits per second.
func (b Bitrate) Mbps() float64 {
	return float64(b) / float64(Mbps)
}

// CalcBitrate returns the average Bitrate for the given bytes transferred
// over the given duration.
func CalcBitrate(bytes Bytes, dur time.Duration) Bitrate {
	return Bitrate(8 * float64(bytes) / dur.Seconds())
}

// TransferTime returns the time needed to transfer the given number of bytes
// at the given Bitrate.
func TransferTime(rate Bitrate, bytes Bytes) time.Duration {
	return time.Duration(8e9 * float64(bytes) / rate.Bps())
}
