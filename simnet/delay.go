// SPDX-License-Identifier: GPL-3.0

package simnet

// Delay adds a fixed per-flow propagation delay to packets in transit.
type Delay struct {
	flowDelay []Clock
	at        []pktTime
}

// pktTime pairs a queued Packet with the simulated time it's due to be
// sent, avoiding one timer per in-flight packet.
type pktTime struct {
	packet Packet
	time   Clock
}

// NewDelay returns a new Delay applying flowDelay[pkt.Flow] to each packet.
func NewDelay(flowDelay []Clock) *Delay {
	return &Delay{flowDelay: flowDelay}
}

// Handle implements Handler.
func (d *Delay) Handle(pkt Packet, node Node) error {
	d.at = append(d.at, pktTime{pkt, node.Now() + d.flowDelay[pkt.Flow]})
	if len(d.at) == 1 {
		node.Timer(d.flowDelay[pkt.Flow], nil)
	}
	return nil
}

// Ding implements Dinger.
func (d *Delay) Ding(data any, node Node) error {
	var p pktTime
	p, d.at = d.at[0], d.at[1:]
	node.Send(p.packet)
	if len(d.at) > 0 {
		p = d.at[0]
		node.Timer(p.time-node.Now(), nil)
	}
	return nil
}
