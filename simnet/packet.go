// SPDX-License-Identifier: GPL-3.0

package simnet

import "github.com/heistp/l4ssim/units"

// Seq is a TCP sequence number carried on a Packet.
type Seq int64

// ECT is the ECN-Capable-Transport codepoint an IP header carries.
type ECT int

const (
	// NotECT is a non-ECN-capable packet: droppable, never marked.
	NotECT ECT = iota
	// ECT0 is the Classic codepoint (0x2).
	ECT0
	// ECT1 is the L4S codepoint (0x1).
	ECT1
)

// FlowID identifies which Flow a Packet belongs to.
type FlowID int

// Packet is a simulated TCP/IP segment: just enough header state for the
// DualQ AQM to classify and mark it, and for the DCTCP sender/receiver to
// run their CE-mirror and ACK logic.
type Packet struct {
	Flow FlowID
	Len  units.Bytes

	Seq    Seq
	ACKNum Seq
	SYN    bool
	ACK    bool

	ECT ECT
	CE  bool
	ECE bool

	Sent Clock
}

// SegmentLen returns the TCP payload size.
func (p Packet) SegmentLen() units.Bytes {
	return p.Len
}

// NextSeq returns the sequence number expected after this Packet.
func (p Packet) NextSeq() Seq {
	if p.SYN {
		return p.Seq + 1
	}
	return p.Seq + Seq(p.SegmentLen())
}

// Size implements aqm.Item.
func (p *Packet) Size() units.Bytes {
	return p.Len
}

// IsL4S implements aqm.Item.
func (p *Packet) IsL4S() bool {
	return p.ECT == ECT1
}

// IsECNCapable implements aqm.Item.
func (p *Packet) IsECNCapable() bool {
	return p.ECT != NotECT
}

// Mark implements aqm.Item.
func (p *Packet) Mark() bool {
	if p.ECT == NotECT {
		return false
	}
	p.CE = true
	return true
}

// handleSim implements output: a sent Packet is delivered to the next
// node in ring order.
func (p Packet) handleSim(sim *Sim, from NodeID) (error, bool) {
	to := sim.next(from)
	if sim.State[to] == running {
		return nil, false
	}
	sim.in[to] <- instant{p, sim.now}
	sim.setState(to, running)
	return nil, true
}

// handleNode implements input.
func (p Packet) handleNode(node *node) error {
	return node.handler.Handle(p, node)
}
