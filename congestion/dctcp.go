// SPDX-License-Identifier: GPL-3.0

package congestion

import (
	"math"

	"github.com/heistp/l4ssim/units"
)

// ECNState reports whether the most recent ACK in a packets-acked event
// carried ECE.
type ECNState int

const (
	ECNIdle ECNState = iota
	ECNECERcvd
)

// CEState is the CE-mirror state a DCTCPSender tracks on behalf of the
// receiver.
type CEState int

const (
	CE0 CEState = iota // not currently mirroring CE
	CE1                // currently mirroring CE
)

func (s CEState) String() string {
	if s == CE1 {
		return "CE1"
	}
	return "CE0"
}

// Socket is the narrow callback a DCTCPSender uses to emit a synthetic ACK
// for the CE-mirror trick. A real connection implements this by
// temporarily rewinding its receive-next pointer to rcvNxt, sending the
// packet, then restoring it.
type Socket interface {
	SendEmptyPacket(ece bool, rcvNxt Seq)
}

// DCTCPSender holds the per-connection DCTCP state: the smoothed
// ECN-marked-byte-fraction estimator and the CE-mirror state machine. It
// does not alter slow-start or congestion-avoidance window growth, which
// it forwards unchanged to a base CCA.
type DCTCPSender struct {
	cfg   Config
	base  CCA
	alpha float64

	ackedTotal       units.Bytes
	ackedECN         units.Bytes
	nextSeqThreshold Seq
	nextSeqValid     bool

	ceState            CEState
	delayedACKReserved bool
	priorRcvNxt        Seq
	priorRcvNxtValid   bool
}

// NewDCTCPSender returns a new DCTCPSender that forwards window growth to
// base.
func NewDCTCPSender(cfg Config, base CCA) *DCTCPSender {
	return &DCTCPSender{
		cfg:   cfg,
		base:  base,
		alpha: cfg.AlphaInit,
	}
}

// Alpha returns the current smoothed ECN-marked-byte fraction.
func (d *DCTCPSender) Alpha() float64 {
	return d.alpha
}

// IncreaseWindow implements CCA by forwarding to the base congestion
// control unchanged; DCTCP diverges from it only in ReduceCWND.
func (d *DCTCPSender) IncreaseWindow(tcb *TCB, segsAcked int) {
	d.base.IncreaseWindow(tcb, segsAcked)
}

// PacketsAcked processes one packets-acked event: segsAcked segments were
// acknowledged, the cumulative ack advanced to lastAckedSeq, the sender's
// next unsent sequence number is nextTxSeq, and ecnState reports whether
// the ack carried ECE. It accumulates the observation-window byte counts
// and, once the window closes, updates alpha and resets the window.
func (d *DCTCPSender) PacketsAcked(segsAcked int, lastAckedSeq, nextTxSeq Seq, ecnState ECNState) {
	acked := units.Bytes(segsAcked) * d.cfg.SegmentSize
	d.ackedTotal += acked
	if ecnState == ECNECERcvd {
		d.ackedECN += acked
	}
	if !d.nextSeqValid {
		d.nextSeqThreshold = nextTxSeq
		d.nextSeqValid = true
	}
	if lastAckedSeq >= d.nextSeqThreshold {
		var frac float64
		if d.ackedTotal > 0 {
			frac = float64(d.ackedECN) / float64(d.ackedTotal)
		}
		d.alpha = (1-d.cfg.G)*d.alpha + d.cfg.G*frac
		d.nextSeqThreshold = nextTxSeq
		d.ackedECN = 0
		d.ackedTotal = 0
	}
}

// ReduceCWND applies the ECN-triggered multiplicative decrease to tcb,
// floored at two segment sizes.
func (d *DCTCPSender) ReduceCWND(tcb *TCB) {
	floor := 2 * tcb.SegmentSize
	reduced := units.Bytes(math.Floor(float64(tcb.Cwnd) * (1 - d.alpha/2)))
	if reduced < floor {
		reduced = floor
	}
	tcb.Cwnd = reduced
}

// OnDelayedACK records that an ACK for this connection is currently
// deferred.
func (d *DCTCPSender) OnDelayedACK() {
	d.delayedACKReserved = true
}

// OnNonDelayedACK records that no ACK is currently deferred.
func (d *DCTCPSender) OnNonDelayedACK() {
	d.delayedACKReserved = false
}

// OnCEIsCE handles the receiver's CE state transitioning from 0 to 1.
// rcvNxt is the connection's current receive-next sequence number. If a
// delayed ACK is pending and a prior receive-next has been recorded, it
// emits an immediate ACK without ECE covering the previously-acked prefix
// via sock, preserving the one-ACK-per-flip property the alpha estimator
// depends on.
func (d *DCTCPSender) OnCEIsCE(sock Socket, rcvNxt Seq) {
	if d.ceState == CE0 && d.delayedACKReserved && d.priorRcvNxtValid {
		sock.SendEmptyPacket(false, d.priorRcvNxt)
	}
	d.priorRcvNxt = rcvNxt
	d.priorRcvNxtValid = true
	d.ceState = CE1
}

// OnCENoCE handles the receiver's CE state transitioning from 1 to 0,
// symmetric to OnCEIsCE but emitting the mirrored ACK with ECE set.
func (d *DCTCPSender) OnCENoCE(sock Socket, rcvNxt Seq) {
	if d.ceState == CE1 && d.delayedACKReserved && d.priorRcvNxtValid {
		sock.SendEmptyPacket(true, d.priorRcvNxt)
	}
	d.priorRcvNxt = rcvNxt
	d.priorRcvNxtValid = true
	d.ceState = CE0
}

// CEState returns the current CE-mirror state.
func (d *DCTCPSender) CEState() CEState {
	return d.ceState
}
