// SPDX-License-Identifier: GPL-3.0

// Package host wires the congestion package's DCTCP sender logic and the
// simnet package's discrete-event packet machinery together into the
// minimal TCP-like socket behavior a scenario needs: a data sender that
// grows its window and reduces it on ECN, and a receiver that
// acknowledges, delays ACKs, and mirrors CE across them.
package host

import (
	"github.com/heistp/l4ssim/congestion"
	"github.com/heistp/l4ssim/simnet"
	"github.com/heistp/l4ssim/units"
)

// FlowState is a Flow's position in the slow-start/congestion-avoidance
// state machine.
type FlowState int

const (
	StateSlowStart FlowState = iota
	StateCongestionAvoidance
)

// FlowConfig holds the per-flow parameters Sender needs to start a Flow.
type FlowConfig struct {
	ID           simnet.FlowID
	ECT          simnet.ECT // codepoint stamped on every packet the flow sends
	DCTCPEnabled bool       // true: alpha-scaled reduction; false: RFC 3168 halving, once per RTT
	InitialCwnd  units.Bytes
	Ssthresh     units.Bytes
	SegmentSize  units.Bytes
	Active       bool
}

// Flow is the per-connection sender state: window bookkeeping plus a
// DCTCPSender that estimates alpha from ECN-marked ACKs (when DCTCPEnabled)
// and reduces the window on ECN signals.
type Flow struct {
	cfg FlowConfig

	active bool
	open   bool

	seq         simnet.Seq
	receiveNext simnet.Seq

	srtt   units.Clock
	minRtt units.Clock

	tcb   congestion.TCB
	state FlowState
	dctcp *congestion.DCTCPSender

	reduceThreshold simnet.Seq
	reducePending   bool

	inFlight units.Bytes
	acked    units.Bytes
}

// NewFlow returns a new Flow per cfg, growing its window via a DCTCPSender
// wrapping base.
func NewFlow(cfg FlowConfig, dctcpCfg congestion.Config, base congestion.CCA) *Flow {
	return &Flow{
		cfg:    cfg,
		active: cfg.Active,
		tcb: congestion.TCB{
			Cwnd:        cfg.InitialCwnd,
			Ssthresh:    cfg.Ssthresh,
			SegmentSize: cfg.SegmentSize,
		},
		dctcp: congestion.NewDCTCPSender(dctcpCfg, base),
	}
}

// Cwnd returns the flow's current congestion window.
func (f *Flow) Cwnd() units.Bytes {
	return f.tcb.Cwnd
}

// Alpha returns the flow's current smoothed ECN-marked-byte fraction.
func (f *Flow) Alpha() float64 {
	return f.dctcp.Alpha()
}

// SetActive starts or stops the flow; starting an unopened flow sends a
// SYN.
func (f *Flow) SetActive(active bool, node simnet.Node) {
	f.active = active
	if !active {
		return
	}
	if !f.open {
		f.sendPacket(simnet.Packet{SYN: true, Len: 0}, node)
	} else {
		f.send(node)
	}
}

// send transmits packets up to the congestion window.
func (f *Flow) send(node simnet.Node) {
	if !f.active {
		return
	}
	for f.sendPacket(simnet.Packet{Len: f.cfg.SegmentSize}, node) {
	}
}

func (f *Flow) sendPacket(pkt simnet.Packet, node simnet.Node) bool {
	if f.inFlight+pkt.SegmentLen() > f.tcb.Cwnd {
		return false
	}
	pkt.Flow = f.cfg.ID
	pkt.Seq = f.seq
	pkt.ECT = f.cfg.ECT
	pkt.Sent = node.Now()
	node.Send(pkt)
	f.inFlight += pkt.SegmentLen()
	f.seq = pkt.NextSeq()
	return true
}

// Receive processes an incoming ACK.
func (f *Flow) Receive(pkt simnet.Packet, node simnet.Node) {
	if pkt.SYN {
		f.handleSynAck(pkt, node)
		return
	}
	f.handleAck(pkt, node)
}

func (f *Flow) handleSynAck(pkt simnet.Packet, node simnet.Node) {
	f.open = true
	f.seq = pkt.ACKNum
	f.receiveNext = pkt.ACKNum
	f.updateRTT(pkt, node)
	f.send(node)
}

func (f *Flow) handleAck(pkt simnet.Packet, node simnet.Node) {
	if pkt.ACKNum <= f.receiveNext {
		f.handleDupAck(pkt, node)
		return
	}
	acked := units.Bytes(pkt.ACKNum - f.receiveNext)
	if acked > f.inFlight {
		f.inFlight = 0
	} else {
		f.inFlight -= acked
	}
	f.receiveNext = pkt.ACKNum
	f.acked += acked
	f.updateRTT(pkt, node)

	segsAcked := 1
	if f.cfg.SegmentSize > 0 {
		if n := int(acked / f.cfg.SegmentSize); n > 0 {
			segsAcked = n
		}
	}

	ecnState := congestion.ECNIdle
	if pkt.ECE {
		ecnState = congestion.ECNECERcvd
	}
	if f.cfg.DCTCPEnabled {
		f.dctcp.PacketsAcked(segsAcked, congestion.Seq(pkt.ACKNum), congestion.Seq(f.seq), ecnState)
	}
	if pkt.ECE {
		f.reduce()
	} else {
		f.dctcp.IncreaseWindow(&f.tcb, segsAcked)
		if f.state == StateSlowStart && f.tcb.Cwnd >= f.tcb.Ssthresh {
			f.exitSlowStart()
		}
	}
	f.send(node)
}

// handleDupAck processes an ACK that advances nothing, such as the
// CE-mirror's synthetic ACK carrying a prior rcv_nxt or a deferred ACK
// arriving after the cumulative ack already passed it. Only its ECN echo
// matters to the sender.
func (f *Flow) handleDupAck(pkt simnet.Packet, node simnet.Node) {
	if !pkt.ECE {
		return
	}
	f.reduce()
	f.send(node)
}

func (f *Flow) exitSlowStart() {
	f.state = StateCongestionAvoidance
}

// reduce applies the flow's ECN response, at most once per round-trip
// window: the alpha-scaled DCTCP decrease, or the RFC 3168 halving for a
// Classic flow.
func (f *Flow) reduce() {
	if f.reducePending && f.receiveNext < f.reduceThreshold {
		return
	}
	if f.cfg.DCTCPEnabled {
		f.dctcp.ReduceCWND(&f.tcb)
		f.tcb.Ssthresh = f.tcb.Cwnd
	} else {
		floor := 2 * f.cfg.SegmentSize
		half := f.tcb.Cwnd / 2
		if half < floor {
			half = floor
		}
		f.tcb.Cwnd = half
		f.tcb.Ssthresh = half
	}
	f.reduceThreshold = f.seq
	f.reducePending = true
	f.exitSlowStart()
}

func (f *Flow) updateRTT(pkt simnet.Packet, node simnet.Node) {
	rtt := node.Now() - pkt.Sent
	if f.srtt == 0 {
		f.srtt = rtt
	} else {
		f.srtt = f.srtt - f.srtt/8 + rtt/8
	}
	if f.minRtt == 0 || rtt < f.minRtt {
		f.minRtt = rtt
	}
}
