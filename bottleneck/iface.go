// SPDX-License-Identifier: GPL-3.0

// Package bottleneck wires the aqm package's PI²/DualQ core into the
// simnet discrete-event harness: a single egress interface that enqueues
// arriving packets into the DualQueue, dequeues them on a link-rate timer,
// and drives the PI controller's periodic sample on its own timer.
package bottleneck

import (
	"github.com/heistp/l4ssim/aqm"
	"github.com/heistp/l4ssim/simnet"
	"github.com/heistp/l4ssim/units"
)

// RateAt schedules a link-rate change at a given simulated time.
type RateAt struct {
	At   units.Clock
	Rate units.Bitrate
}

// dequeueTick marks the Ding that fires when the link is ready to send
// its next packet.
type dequeueTick struct{}

// piTick marks the Ding that fires the PI controller's periodic sample.
type piTick struct{}

// Iface is the bottleneck egress interface: an aqm.DualQueue scheduled
// onto a link of the given rate, sampled by an aqm.PIController on its
// own timer.
type Iface struct {
	rate     units.Bitrate
	schedule []RateAt
	dq       *aqm.DualQueue
	pi       *aqm.PIController
	tUpdate  units.Clock
	empty    bool
	trace    *simnet.Trace
	plotQLen bool
}

// NewIface returns a new Iface serving dq at rate, sampling pi every
// T_update. If trace is non-nil, it's written a 'queue length' time series
// while the simulation runs.
func NewIface(rate units.Bitrate, schedule []RateAt, dq *aqm.DualQueue, pi *aqm.PIController, trace *simnet.Trace) *Iface {
	return &Iface{
		rate:     rate,
		schedule: schedule,
		dq:       dq,
		pi:       pi,
		tUpdate:  pi.Config().TUpdate,
		empty:    true,
		trace:    trace,
		plotQLen: trace != nil,
	}
}

// Start implements simnet.Starter.
func (i *Iface) Start(node simnet.Node) error {
	if i.plotQLen {
		if err := i.trace.Open("queue-length.xpl"); err != nil {
			return err
		}
	}
	for _, r := range i.schedule {
		node.Timer(r.At, r.Rate)
	}
	node.Timer(i.tUpdate, piTick{})
	return nil
}

// Handle implements simnet.Handler.
func (i *Iface) Handle(pkt simnet.Packet, node simnet.Node) error {
	if !i.dq.Enqueue(&pkt, node.Now()) {
		return nil
	}
	if i.plotQLen {
		i.trace.Dot(node.Now(), i.dq.Len(), simnet.ColorWhite)
	}
	if i.empty {
		i.empty = false
		i.armDequeue(node, pkt.Len)
	}
	return nil
}

// Ding implements simnet.Dinger.
func (i *Iface) Ding(data any, node simnet.Node) error {
	switch v := data.(type) {
	case units.Bitrate:
		i.rate = v
		return nil
	case piTick:
		i.pi.Sample(i.dq.ClassicSojourn(node.Now()), i.dq.Empty())
		node.Timer(i.tUpdate, piTick{})
		return nil
	case dequeueTick:
		item, ok := i.dq.Dequeue(node.Now())
		if !ok {
			i.empty = true
			return nil
		}
		pkt := item.(*simnet.Packet)
		node.Send(*pkt)
		if next, ok := i.dq.Peek(); ok {
			i.armDequeue(node, next.Size())
		} else {
			i.empty = true
		}
		return nil
	}
	return nil
}

func (i *Iface) armDequeue(node simnet.Node, size units.Bytes) {
	node.Timer(units.Clock(units.TransferTime(i.rate, size)), dequeueTick{})
}

// Stop implements simnet.Stopper.
func (i *Iface) Stop(node simnet.Node) error {
	if i.plotQLen {
		return i.trace.Close()
	}
	return nil
}

// Stats returns the DualQueue's cumulative counters, for metrics export.
func (i *Iface) Stats() aqm.Stats {
	return i.dq.Stats()
}
