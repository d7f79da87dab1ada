// SPDX-License-Identifier: GPL-3.0

package simnet

import "github.com/heistp/l4ssim/telemetry"

// node is the per-Handler goroutine driver.
type node struct {
	handler  Handler
	in       chan instant
	out      chan output
	now      Clock
	id       NodeID
	shutdown bool
}

func newNode(handler Handler, in chan instant, out chan output, t0 Clock, id NodeID) *node {
	return &node{handler: handler, in: in, out: out, now: t0, id: id}
}

func (n *node) run() {
	var err error
	defer func() {
		n.out <- done{err}
		close(n.out)
	}()
	if s, ok := n.handler.(Starter); ok {
		if err = s.Start(n); err != nil {
			return
		}
	}
	n.out <- wait{}
	for i := range n.in {
		n.now = i.now
		if err = i.ev.handleNode(n); err != nil {
			return
		}
		if n.shutdown {
			break
		}
		n.out <- wait{}
	}
	if s, ok := n.handler.(Stopper); ok {
		err = s.Stop(n)
	}
}

// Timer implements Node.
func (n *node) Timer(delay Clock, data any) {
	n.out <- pendingTimer{n.id, n.now + delay, data}
}

// Send implements Node.
func (n *node) Send(p Packet) {
	n.out <- p
}

// Now implements Node.
func (n *node) Now() Clock {
	return n.now
}

// Logf implements Node.
func (n *node) Logf(format string, a ...any) {
	telemetry.L().Sugar().Debugf("t=%s node=%d "+format, append([]any{n.now.StringMS(), n.id}, a...)...)
}

// Shutdown implements Node.
func (n *node) Shutdown() {
	n.shutdown = true
}
