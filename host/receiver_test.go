// SPDX-License-Identifier: GPL-3.0

package host

import (
	"testing"

	"github.com/heistp/l4ssim/simnet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPureACKCarriesECT checks that the first pure ACK the receiver
// sends back carries the same ECN-capable codepoint as the segment it
// acknowledges.
func TestPureACKCarriesECT(t *testing.T) {
	node := &recordingNode{}
	r := NewReceiver(1)
	syn := simnet.Packet{Flow: 0, SYN: true, ECT: simnet.ECT1}
	r.Handle(syn, node)
	require.Len(t, node.sent, 1)
	assert.True(t, node.sent[0].ACK)
	assert.Equal(t, simnet.ECT1, node.sent[0].ECT)

	// the first data segment's ACK is the first pure ACK
	node.sent = nil
	r.Handle(simnet.Packet{Flow: 0, Seq: 1, Len: 100, ECT: simnet.ECT1}, node)
	require.Len(t, node.sent, 1)
	assert.True(t, node.sent[0].ACK)
	assert.False(t, node.sent[0].SYN)
	assert.Equal(t, simnet.ECT1, node.sent[0].ECT)
}

// TestCEMirrorEmission checks that a CE 0→1 transition while a delayed
// ACK is pending emits exactly one synthetic ACK with no ECE carrying
// the prior rcv_nxt, and the symmetric 1→0 transition emits one ACK
// with ECE set.
func TestCEMirrorEmission(t *testing.T) {
	DelayedACKTime = 200
	defer func() { DelayedACKTime = 0 }()

	node := &recordingNode{}
	r := NewReceiver(1)

	syn := simnet.Packet{Flow: 0, SYN: true, ECT: simnet.ECT1}
	r.Handle(syn, node)
	node.sent = nil

	// pA, no CE: its ACK is deferred (the SYN's immediate ACK leaves
	// delayAck=true), leaving a delayed ACK outstanding when pB arrives.
	pA := simnet.Packet{Flow: 0, Seq: 1, Len: 100, ECT: simnet.ECT1}
	r.Handle(pA, node)
	assert.Empty(t, node.sent, "pA's ACK should be deferred")

	// pB flips CE 0->1 while pA's ACK is still outstanding: expect a
	// synthetic no-ECE ACK carrying pA's rcv_nxt (101), plus pB's own
	// (immediate, since delayAck alternates back) ACK with ECE set.
	pB := simnet.Packet{Flow: 0, Seq: 101, Len: 100, ECT: simnet.ECT1, CE: true}
	r.Handle(pB, node)
	require.Len(t, node.sent, 2)
	assert.False(t, node.sent[0].ECE)
	assert.Equal(t, simnet.Seq(101), node.sent[0].ACKNum)
	assert.True(t, node.sent[1].ECE)
	assert.Equal(t, simnet.Seq(201), node.sent[1].ACKNum)

	node.sent = nil
	// pC, CE still set: ceState is already CE1, so no new mirror
	// emission; its own ACK is deferred (delayAck alternates again).
	pC := simnet.Packet{Flow: 0, Seq: 201, Len: 100, ECT: simnet.ECT1, CE: true}
	r.Handle(pC, node)
	assert.Empty(t, node.sent, "pC's ACK should be deferred")

	// pD flips CE 1->0 while pC's ACK is still outstanding: the
	// symmetric case emits a synthetic ACK with ECE set, carrying pC's
	// rcv_nxt, plus pD's own (immediate) ACK with no ECE.
	pD := simnet.Packet{Flow: 0, Seq: 301, Len: 100, ECT: simnet.ECT1}
	r.Handle(pD, node)
	require.Len(t, node.sent, 2)
	assert.True(t, node.sent[0].ECE)
	assert.Equal(t, simnet.Seq(301), node.sent[0].ACKNum)
	assert.False(t, node.sent[1].ECE)
	assert.Equal(t, simnet.Seq(401), node.sent[1].ACKNum)
}
