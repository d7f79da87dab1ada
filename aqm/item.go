// SPDX-License-Identifier: GPL-3.0

package aqm

import "github.com/heistp/l4ssim/units"

// Item is the trait the DualQueue requires of whatever it queues. A real
// packet type (see the host and simnet packages) implements this over its
// own fields; the AQM core never depends on a concrete packet type.
type Item interface {
	// Size returns the item's length in bytes.
	Size() units.Bytes
	// IsL4S reports whether the item is L4S-eligible, i.e. carries the
	// ECT(1) codepoint rather than ECT(0).
	IsL4S() bool
	// IsECNCapable reports whether the item may be marked instead of
	// dropped.
	IsECNCapable() bool
	// Mark flips the item's CE bit. It returns false, without effect, if
	// the item is not ECN-capable.
	Mark() bool
}

// queueEntry pairs a queued Item with its enqueue timestamp.
type queueEntry struct {
	item    Item
	arrival units.Clock
}

// fifo is one of the DualQueue's two internal ordered queues.
type fifo struct {
	items    []queueEntry
	occBytes units.Bytes
	mode     Mode
	capacity uint64
}

func newFIFO(mode Mode, capacity uint64) fifo {
	return fifo{mode: mode, capacity: capacity}
}

func (f *fifo) push(e queueEntry) {
	f.items = append(f.items, e)
	f.occBytes += e.item.Size()
}

// pop removes and returns the head entry. The caller must check empty()
// first.
func (f *fifo) pop() queueEntry {
	e := f.items[0]
	f.items = f.items[1:]
	f.occBytes -= e.item.Size()
	return e
}

func (f *fifo) empty() bool {
	return len(f.items) == 0
}

// headArrival returns the arrival time of the head entry, or 0 if empty.
func (f *fifo) headArrival() units.Clock {
	if f.empty() {
		return 0
	}
	return f.items[0].arrival
}

// occupancy returns the queue's current occupancy in its configured Mode's
// unit.
func (f *fifo) occupancy() uint64 {
	if f.mode == Bytes {
		return uint64(f.occBytes)
	}
	return uint64(len(f.items))
}
