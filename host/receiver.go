// SPDX-License-Identifier: GPL-3.0

package host

import (
	"github.com/heistp/l4ssim/congestion"
	"github.com/heistp/l4ssim/simnet"
	"github.com/heistp/l4ssim/units"
)

// DelayedACKTime is the deadline a deferred ACK waits before it's sent
// unconditionally. Zero disables delayed ACKs.
var DelayedACKTime units.Clock

// rflow stores receiver state for a single flow: the next expected
// sequence number, whether the next ACK is currently deferred, and the
// CE-mirror state machine that preserves a CE flip across a deferred ACK.
type rflow struct {
	next     simnet.Seq
	delayAck bool
	mirror   *congestion.DCTCPSender

	priorAcked simnet.Seq
}

// ackSocket implements congestion.Socket by emitting a synthetic,
// zero-length ACK directly, rather than rewinding and restoring a
// receive-next pointer: rcvNxt is carried explicitly in the event, so
// there's no shared mutable state to rewind.
type ackSocket struct {
	flow simnet.FlowID
	node simnet.Node
}

func (s ackSocket) SendEmptyPacket(ece bool, rcvNxt congestion.Seq) {
	s.node.Send(simnet.Packet{
		Flow:   s.flow,
		ACK:    true,
		ACKNum: simnet.Seq(rcvNxt),
		ECE:    ece,
	})
}

// Receiver is the sink node for one or more Flows: it acknowledges
// in-order data, defers every other ACK when delayed ACKs are enabled,
// and mirrors CE across a deferred ACK so the sender's alpha estimator
// never misses a flip.
type Receiver struct {
	flow            []rflow
	receivedPackets int
	ackedPackets    int
}

// NewReceiver returns a new Receiver serving numFlows flows.
func NewReceiver(numFlows int) *Receiver {
	flow := make([]rflow, numFlows)
	for i := range flow {
		flow[i] = rflow{
			delayAck:   true,
			priorAcked: -1,
			mirror:     congestion.NewDCTCPSender(congestion.Config{}, congestion.Reno{}),
		}
	}
	return &Receiver{flow: flow}
}

// Start implements simnet.Starter.
func (r *Receiver) Start(node simnet.Node) error {
	return nil
}

// Handle implements simnet.Handler.
func (r *Receiver) Handle(pkt simnet.Packet, node simnet.Node) error {
	r.receive(pkt, node)
	r.receivedPackets++
	return nil
}

func (r *Receiver) receive(pkt simnet.Packet, node simnet.Node) {
	f := &r.flow[pkt.Flow]

	if pkt.SYN {
		f.next = pkt.NextSeq()
		r.sendAck(pkt, node)
		f.delayAck = true
		return
	}

	outOfOrder := pkt.Seq != f.next
	if !outOfOrder {
		f.next = pkt.NextSeq()
	}

	if pkt.CE {
		f.mirror.OnCEIsCE(ackSocket{pkt.Flow, node}, congestion.Seq(f.next))
	} else {
		f.mirror.OnCENoCE(ackSocket{pkt.Flow, node}, congestion.Seq(f.next))
	}

	if outOfOrder || DelayedACKTime == 0 {
		r.sendAck(pkt, node)
		f.delayAck = true
		f.mirror.OnNonDelayedACK()
		return
	}
	if !f.delayAck {
		r.sendAck(pkt, node)
		f.mirror.OnNonDelayedACK()
	} else {
		r.scheduleAck(pkt, node)
		f.mirror.OnDelayedACK()
	}
	f.delayAck = !f.delayAck
}

// Ding implements simnet.Dinger: a deferred ACK's deadline expired.
func (r *Receiver) Ding(data any, node simnet.Node) error {
	pkt := data.(simnet.Packet)
	f := &r.flow[pkt.Flow]
	if f.priorAcked < pkt.Seq {
		r.sendAck(pkt, node)
	}
	return nil
}

func (r *Receiver) sendAck(pkt simnet.Packet, node simnet.Node) {
	f := &r.flow[pkt.Flow]
	pkt.ACK = true
	pkt.ACKNum = f.next
	if pkt.CE {
		pkt.ECE = true
		pkt.CE = false
	}
	f.priorAcked = pkt.Seq
	node.Send(pkt)
	r.ackedPackets++
}

func (r *Receiver) scheduleAck(pkt simnet.Packet, node simnet.Node) {
	node.Timer(DelayedACKTime, pkt)
}

// AckRatio returns the ratio of ACKs sent to packets received.
func (r *Receiver) AckRatio() float64 {
	if r.receivedPackets == 0 {
		return 0
	}
	return float64(r.ackedPackets) / float64(r.receivedPackets)
}

// Stop implements simnet.Stopper.
func (r *Receiver) Stop(node simnet.Node) error {
	node.Logf("received %d packets, ack ratio %.3f", r.receivedPackets, r.AckRatio())
	return nil
}
