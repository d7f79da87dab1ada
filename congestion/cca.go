// SPDX-License-Identifier: GPL-3.0

package congestion

import "github.com/heistp/l4ssim/units"

// Seq is a TCP sequence number.
type Seq int64

// TCB holds the window state a CCA grows. It stands in for the control
// block a real TCP implementation keeps per connection.
type TCB struct {
	Cwnd        units.Bytes
	Ssthresh    units.Bytes
	SegmentSize units.Bytes
}

// CCA is the slow-start/congestion-avoidance window-growth behavior a
// connection inherits. DCTCP does not override this: it forwards growth
// unchanged to a base CCA and only changes the multiplicative-decrease
// magnitude.
type CCA interface {
	// IncreaseWindow grows Cwnd in tcb in response to segsAcked segments
	// being freshly acknowledged.
	IncreaseWindow(tcb *TCB, segsAcked int)
}

// Reno implements the baseline NewReno-style growth: exponential in slow
// start, approximately linear (one segment per RTT-equivalent of acked
// data) in congestion avoidance.
type Reno struct{}

// IncreaseWindow implements CCA.
func (Reno) IncreaseWindow(tcb *TCB, segsAcked int) {
	acked := units.Bytes(segsAcked) * tcb.SegmentSize
	if tcb.Cwnd < tcb.Ssthresh {
		tcb.Cwnd += acked
		return
	}
	if tcb.Cwnd == 0 {
		return
	}
	tcb.Cwnd += acked * tcb.SegmentSize / tcb.Cwnd
}
