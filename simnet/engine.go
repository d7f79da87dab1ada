// SPDX-License-Identifier: GPL-3.0

// Package simnet is a single-threaded, channel-based discrete-event
// network simulator: a fixed set of nodes exchange packets and one-shot
// timers over a virtual clock, processed round-robin.
package simnet

import (
	"fmt"
	"sort"

	"github.com/heistp/l4ssim/units"
)

// Clock is the simulator's virtual time, re-exported from units so
// callers of this package don't need to import units just to read Now().
type Clock = units.Clock

// NodeID identifies a node by the order it was added to the Sim.
type NodeID int

// Node provides the API a Handler uses to interact with the simulator.
type Node interface {
	// Timer arms a one-shot timer that delivers data to Ding after delay.
	Timer(delay Clock, data any)
	// Send transmits a packet to whatever this node is wired to.
	Send(Packet)
	// Now returns the current virtual time.
	Now() Clock
	// Logf emits a log message tagged with the current time and node.
	Logf(format string, a ...any)
	// Shutdown ends the simulation after the current round.
	Shutdown()
}

// A Starter runs once at the start of the simulation.
type Starter interface {
	Start(node Node) error
}

// A Handler processes packets addressed to a node.
type Handler interface {
	Handle(pkt Packet, node Node) error
}

// A Dinger handles an elapsed Timer.
type Dinger interface {
	Ding(data any, node Node) error
}

// A Stopper runs once at the end of the simulation.
type Stopper interface {
	Stop(node Node) error
}

// Sim is the discrete-event engine: it runs each Handler in its own
// goroutine, communicating over per-node channels, and advances the
// virtual clock by processing whichever of packets or timers is next.
type Sim struct {
	handler []Handler
	now     Clock
	in      []chan instant
	out     []chan output
	timer   []pendingTimer
	table
	done bool
}

// NewSim returns a new Sim driving the given handlers, one per node.
func NewSim(handler []Handler) *Sim {
	in := make([]chan instant, len(handler))
	out := make([]chan output, len(handler))
	for i := range handler {
		in[i] = make(chan instant)
		out[i] = make(chan output)
	}
	return &Sim{
		handler: handler,
		in:      in,
		out:     out,
		table:   newTable(len(handler)),
	}
}

// Now returns the simulator's current virtual time. Valid only while
// Run is executing or after it returns.
func (s *Sim) Now() Clock {
	return s.now
}

// Run drives the simulation until the first node finishes (it calls
// Shutdown, or its Start, Handle or Ding returns an error, which Run then
// returns), or returns a deadlock error once every node is waiting with no
// timers pending.
func (s *Sim) Run() (err error) {
	for i, h := range s.handler {
		id := NodeID(i)
		nd := newNode(h, s.in[id], s.out[id], 0, id)
		s.setState(id, running)
		go nd.run()
	}

	n := NodeID(0)
	pending := make([]*output, len(s.handler))
	for {
		if s.State[n] == running {
			var o output
			if pending[n] != nil {
				o = *pending[n]
			} else {
				o = <-s.out[n]
			}
			var ok bool
			if err, ok = o.handleSim(s, n); err != nil {
				break
			}
			if !ok {
				pending[n] = &o
			} else {
				pending[n] = nil
			}
		}

		if s.done {
			break
		}

		if s.waiting == len(s.handler) {
			if len(s.timer) == 0 {
				return fmt.Errorf("simnet: deadlock, no nodes running and no timers pending")
			}
			var t pendingTimer
			t, s.timer = s.timer[0], s.timer[1:]
			s.now = t.at
			s.in[t.from] <- instant{ding{t.data, t.at}, t.at}
			s.setState(t.from, running)
			n = t.from
		} else {
			n = s.next(n)
		}
	}

	for i := range s.handler {
		close(s.in[i])
		for range s.out[i] {
		}
	}
	return
}

func (s *Sim) next(from NodeID) NodeID {
	if from >= NodeID(len(s.handler)-1) {
		return 0
	}
	return from + 1
}

// nodeState is the run/wait status of one node.
type nodeState int

const (
	running nodeState = iota
	waiting
)

// table tracks each node's nodeState and a waiting count, so Run can tell
// in O(1) whether every node is waiting.
type table struct {
	State   []nodeState
	waiting int
}

func newTable(size int) table {
	return table{State: make([]nodeState, size)}
}

func (t *table) setState(node NodeID, state nodeState) {
	if t.State[node] == state {
		return
	}
	if t.State[node] == waiting {
		t.waiting--
	}
	t.State[node] = state
	if state == waiting {
		t.waiting++
	}
}

// instant pairs an input event with the virtual time it's delivered at.
type instant struct {
	ev  input
	now Clock
}

// input is something delivered to a node's goroutine.
type input interface {
	handleNode(node *node) error
}

// output is something a node's goroutine sends back to the Sim loop.
type output interface {
	handleSim(sim *Sim, from NodeID) (err error, ok bool)
}

// done signals that a node's goroutine has returned.
type done struct {
	Err error
}

func (d done) handleSim(s *Sim, from NodeID) (error, bool) {
	s.done = true
	return d.Err, true
}

// wait signals that a node has finished its current round and is waiting
// for the next input.
type wait struct{}

func (wait) handleSim(sim *Sim, from NodeID) (error, bool) {
	sim.setState(from, waiting)
	return nil, true
}

// pendingTimer is a scheduled one-shot timer, held in the Sim's
// time-ordered queue until it fires.
type pendingTimer struct {
	from NodeID
	at   Clock
	data any
}

func (t pendingTimer) handleSim(sim *Sim, from NodeID) (error, bool) {
	i := sort.Search(len(sim.timer), func(i int) bool {
		return sim.timer[i].at > t.at
	})
	if len(sim.timer) == i {
		sim.timer = append(sim.timer, t)
		return nil, true
	}
	sim.timer = append(sim.timer[:i+1], sim.timer[i:]...)
	sim.timer[i] = t
	return nil, true
}

// ding is delivered to a node when one of its timers elapses.
type ding struct {
	data   any
	nowVal Clock
}

func (d ding) handleNode(node *node) (err error) {
	if r, ok := node.handler.(Dinger); ok {
		err = r.Ding(d.data, node)
	} else {
		err = fmt.Errorf("simnet: node %d called Timer but does not implement Dinger", node.id)
	}
	return
}
