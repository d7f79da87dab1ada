// SPDX-License-Identifier: GPL-3.0

package aqm

import (
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/heistp/l4ssim/telemetry"
	"github.com/heistp/l4ssim/units"
)

// tShiftFactor sets the time-shift applied to the L4S queue's tie-break
// timestamp relative to the Classic queue's, as a multiple of TargetDelay.
// A Classic-sojourn-scale shift gives L4S priority on an empty-queue tie
// without starving Classic once its queue has built up.
const tShiftFactor = 2

// Stats counts the per-reason outcomes of DualQueue's dequeue decisions.
type Stats struct {
	ForcedDrop          uint64 // dropped because the queue was full
	UnforcedClassicDrop uint64 // Classic coin-flip hit, item not ECN-capable
	UnforcedClassicMark uint64 // Classic coin-flip hit, item marked
	UnforcedL4SMark     uint64 // L4S item marked, by threshold or coin-flip
}

// DualQueue is a two-FIFO coupled AQM: a Classic queue serving ECT(0) (and
// non-ECN-capable) items, and an L4S queue serving ECT(1) items, arbitrated
// by a single shared PIController.
type DualQueue struct {
	cfg   DualQueueConfig
	pi    *PIController
	rng   *rand.Rand
	q0    fifo // Classic
	q1    fifo // L4S
	stats Stats
}

// NewDualQueue returns a new DualQueue, or a *ConfigError if cfg is
// invalid. pi must be non-nil; rng supplies the coin-flip and mark draws
// and should be a dedicated substream so the queue's outcomes are
// reproducible independent of any other random draws in the simulation.
func NewDualQueue(cfg DualQueueConfig, pi *PIController, rng *rand.Rand) (*DualQueue, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	d := &DualQueue{
		cfg: cfg,
		pi:  pi,
		rng: rng,
		q0:  newFIFO(cfg.Mode, cfg.Limit),
		q1:  newFIFO(cfg.Mode, cfg.Limit),
	}
	if err := d.checkConfiguration(); err != nil {
		return nil, err
	}
	return d, nil
}

// checkConfiguration verifies the internal queues agree with the shared
// configuration at install time: an internal queue in a different unit
// mode, or with less capacity than the shared limit, would silently
// change the drop behavior.
func (d *DualQueue) checkConfiguration() error {
	for _, f := range []*fifo{&d.q0, &d.q1} {
		if f.mode != d.cfg.Mode {
			return configErrorf("DualQueue", "internal queue mode %s does not match %s", f.mode, d.cfg.Mode)
		}
		if f.capacity < d.cfg.Limit {
			return configErrorf("DualQueue", "internal queue capacity %d below limit %d", f.capacity, d.cfg.Limit)
		}
	}
	return nil
}

// Stats returns a copy of the queue's cumulative counters.
func (d *DualQueue) Stats() Stats {
	return d.stats
}

// Empty reports whether both internal queues are empty.
func (d *DualQueue) Empty() bool {
	return d.q0.empty() && d.q1.empty()
}

// ClassicSojourn returns the sojourn time of the Classic queue's head item
// at the given time, or 0 if the Classic queue is empty. The harness
// passes this to PIController.Sample on each sample tick.
func (d *DualQueue) ClassicSojourn(now units.Clock) units.Clock {
	if d.q0.empty() {
		return 0
	}
	s := now - d.q0.headArrival()
	if s < 0 {
		telemetry.L().Warn("negative Classic sojourn, clamping to zero",
			zap.Stringer("sojourn", s), zap.Stringer("now", now))
		return 0
	}
	return s
}

// Len returns the combined packet count of both internal queues.
func (d *DualQueue) Len() int {
	return len(d.q0.items) + len(d.q1.items)
}

func (d *DualQueue) occupancy() uint64 {
	if d.cfg.Mode == Bytes {
		return uint64(d.q0.occBytes) + uint64(d.q1.occBytes)
	}
	return uint64(len(d.q0.items)) + uint64(len(d.q1.items))
}

func (d *DualQueue) size(item Item) uint64 {
	if d.cfg.Mode == Bytes {
		return uint64(item.Size())
	}
	return 1
}

// Enqueue classifies and queues item. It returns false if the combined
// occupancy of both queues would exceed the configured limit, in which
// case the item is dropped and counted as a forced drop.
func (d *DualQueue) Enqueue(item Item, now units.Clock) bool {
	if d.occupancy()+d.size(item) > d.cfg.Limit {
		d.stats.ForcedDrop++
		return false
	}
	e := queueEntry{item: item, arrival: now}
	if item.IsL4S() {
		d.q1.push(e)
	} else {
		d.q0.push(e)
	}
	return true
}

// Peek returns the item Dequeue would serve next, without removing it,
// marking it, or consuming a random draw. It's used by the harness to size
// a link-rate timer for the packet about to be sent. It returns false if
// both queues are empty.
func (d *DualQueue) Peek() (Item, bool) {
	if d.q0.empty() && d.q1.empty() {
		return nil, false
	}
	tShift := units.Clock(tShiftFactor) * d.cfg.TargetDelay
	ts0 := d.q0.headArrival()
	ts1 := d.q1.headArrival()
	if !d.q1.empty() && (d.q0.empty() || ts1+tShift >= ts0) {
		return d.q1.items[0].item, true
	}
	return d.q0.items[0].item, true
}

// Dequeue removes and returns the next item to serve, applying the DualQ
// scheduling, marking and dropping rules. It returns false if both queues
// are empty.
func (d *DualQueue) Dequeue(now units.Clock) (Item, bool) {
	tShift := units.Clock(tShiftFactor) * d.cfg.TargetDelay
	for {
		if d.q0.empty() && d.q1.empty() {
			return nil, false
		}
		ts0 := d.q0.headArrival()
		ts1 := d.q1.headArrival()
		serveL4S := !d.q1.empty() && (d.q0.empty() || ts1+tShift >= ts0)
		if serveL4S {
			e := d.q1.pop()
			sojourn := now - e.arrival
			if sojourn < 0 {
				telemetry.L().Warn("negative L4S sojourn, clamping to zero",
					zap.Stringer("sojourn", sojourn), zap.Stringer("now", now))
				sojourn = 0
			}
			minL4SOk := d.minL4SGuardOK()
			if (sojourn > d.cfg.L4SThreshold && minL4SOk) || d.rng.Float64() < d.pi.PL4S() {
				if e.item.Mark() {
					d.stats.UnforcedL4SMark++
				}
			}
			return e.item, true
		}

		e := d.q0.pop()
		if d.rng.Float64() < d.pi.PClassic()/float64(d.pi.Config().K) {
			if e.item.Mark() {
				d.stats.UnforcedClassicMark++
				return e.item, true
			}
			d.stats.UnforcedClassicDrop++
			continue
		}
		return e.item, true
	}
}

// minL4SGuardOK reports whether the L4S queue will still hold at least a
// minimal amount of data after the item currently being dequeued is
// removed, so step-marking doesn't fire on an L4S queue that's about to
// drain to empty.
func (d *DualQueue) minL4SGuardOK() bool {
	if d.cfg.Mode == Bytes {
		return d.q1.occBytes > 2*d.cfg.MeanPktSize
	}
	return len(d.q1.items) > 2
}
