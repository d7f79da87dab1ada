// SPDX-License-Identifier: GPL-3.0

package simnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoNode bounces anything it receives back around the ring, counting
// how many packets it has forwarded, until a shared limit is reached.
type echoNode struct {
	sent  *int
	limit int
}

func (e *echoNode) Handle(pkt Packet, node Node) error {
	if *e.sent >= e.limit {
		node.Shutdown()
		return nil
	}
	*e.sent++
	node.Send(pkt)
	return nil
}

// starterEchoNode is the ring's originator: it sends the first packet.
type starterEchoNode struct {
	echoNode
}

func (e *starterEchoNode) Start(node Node) error {
	node.Send(Packet{Len: 100})
	return nil
}

func TestRingDeliversAndShutsDown(t *testing.T) {
	count := 0
	a := &starterEchoNode{echoNode{sent: &count, limit: 5}}
	b := &echoNode{sent: &count, limit: 5}
	sim := NewSim([]Handler{a, b})
	require.NoError(t, sim.Run())
	assert.GreaterOrEqual(t, count, 5)
}

type timerNode struct {
	dinged bool
	data   any
}

func (n *timerNode) Start(node Node) error {
	node.Timer(Clock(1000), "hello")
	return nil
}

func (n *timerNode) Handle(pkt Packet, node Node) error { return nil }

func (n *timerNode) Ding(data any, node Node) error {
	n.dinged = true
	n.data = data
	node.Shutdown()
	return nil
}

func TestTimerFiresAndDings(t *testing.T) {
	tn := &timerNode{}
	sim := NewSim([]Handler{tn})
	require.NoError(t, sim.Run())
	assert.True(t, tn.dinged)
	assert.Equal(t, "hello", tn.data)
}
