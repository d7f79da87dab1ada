// SPDX-License-Identifier: GPL-3.0

package bottleneck

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heistp/l4ssim/aqm"
	"github.com/heistp/l4ssim/simnet"
	"github.com/heistp/l4ssim/units"
)

// offerTick marks the Ding that offers the next packet.
type offerTick struct{}

// offerStop marks the Ding that ends the run.
type offerStop struct{}

// offerer sends n packets of size bytes, one every interval, starting at
// t=0, tagged with the given ECT codepoint, then ends the simulation;
// it discards anything sent back to it.
type offerer struct {
	n        int
	interval units.Clock
	size     units.Bytes
	ect      simnet.ECT
	duration units.Clock
}

func (o *offerer) Start(node simnet.Node) error {
	for i := 0; i < o.n; i++ {
		node.Timer(units.Clock(i)*o.interval, offerTick{})
	}
	node.Timer(o.duration, offerStop{})
	return nil
}

func (o *offerer) Handle(pkt simnet.Packet, node simnet.Node) error { return nil }

func (o *offerer) Ding(data any, node simnet.Node) error {
	switch data.(type) {
	case offerTick:
		node.Send(simnet.Packet{Len: o.size, ECT: o.ect})
	case offerStop:
		node.Shutdown()
	}
	return nil
}

// alternatingOfferer offers alternating L4S/Classic traffic.
type alternatingOfferer struct {
	offerer
	sent int
}

func (o *alternatingOfferer) Ding(data any, node simnet.Node) error {
	switch data.(type) {
	case offerTick:
		ect := simnet.ECT0
		if o.sent%2 == 0 {
			ect = simnet.ECT1
		}
		o.sent++
		node.Send(simnet.Packet{Len: o.size, ECT: ect})
	case offerStop:
		node.Shutdown()
	}
	return nil
}

func newIfaceUnderTest(t *testing.T, cfg aqm.DualQueueConfig, rate units.Bitrate) (*Iface, *aqm.DualQueue) {
	t.Helper()
	pi, err := aqm.NewPIController(aqm.DefaultPIConfig())
	require.NoError(t, err)
	dq, err := aqm.NewDualQueue(cfg, pi, rand.New(rand.NewPCG(1, 1)))
	require.NoError(t, err)
	return NewIface(rate, nil, dq, pi, nil), dq
}

const (
	offerCount  = 400
	offerWindow = units.Clock(8e9)
	// offerGap is shorter than the ~12ms dequeue interval below, so the
	// 400 packets arrive faster than the link can drain them: sustained
	// overload, not just an initial burst.
	offerGap  = units.Clock(5e6)
	offerSize = units.Bytes(1000)
)

func overloadConfig() aqm.DualQueueConfig {
	cfg := aqm.DefaultDualQueueConfig()
	cfg.Limit = 50
	cfg.Mode = aqm.Packets
	cfg.MeanPktSize = offerSize
	return cfg
}

// dequeueRate is the link rate giving TransferTime(rate, offerSize) a
// ~12ms dequeue interval.
var dequeueRate = units.CalcBitrate(offerSize, 12*time.Millisecond)

// TestSustainedOverloadForcesDropsAndCouplesMarking checks that 400
// packets offered into a 50-packet queue over 8 simulated seconds,
// dequeued roughly every 12ms, force drops and mark L4S more than
// Classic.
func TestSustainedOverloadForcesDropsAndCouplesMarking(t *testing.T) {
	iface, dq := newIfaceUnderTest(t, overloadConfig(), dequeueRate)
	o := &alternatingOfferer{offerer: offerer{n: offerCount, interval: offerGap, size: offerSize, duration: offerWindow}}
	sim := simnet.NewSim([]simnet.Handler{o, iface})
	require.NoError(t, sim.Run())

	st := dq.Stats()
	assert.Greater(t, st.ForcedDrop, uint64(0))
	assert.Greater(t, st.UnforcedL4SMark, st.UnforcedClassicMark)
	assert.Greater(t, st.UnforcedClassicMark, uint64(0))
}

// TestECNCapableClassicOnlyNeverDrops checks that with Classic-only,
// ECN-capable traffic, overload marks instead of dropping.
func TestECNCapableClassicOnlyNeverDrops(t *testing.T) {
	iface, dq := newIfaceUnderTest(t, overloadConfig(), dequeueRate)
	o := &offerer{n: offerCount, interval: offerGap, size: offerSize, ect: simnet.ECT0, duration: offerWindow}
	sim := simnet.NewSim([]simnet.Handler{o, iface})
	require.NoError(t, sim.Run())

	st := dq.Stats()
	assert.Zero(t, st.UnforcedClassicDrop)
	assert.Greater(t, st.UnforcedClassicMark, uint64(0))
}

// TestNonECNCapableClassicOnlyDrops checks that without an ECN-capable
// codepoint, overload drops instead of marking.
func TestNonECNCapableClassicOnlyDrops(t *testing.T) {
	iface, dq := newIfaceUnderTest(t, overloadConfig(), dequeueRate)
	o := &offerer{n: offerCount, interval: offerGap, size: offerSize, ect: simnet.NotECT, duration: offerWindow}
	sim := simnet.NewSim([]simnet.Handler{o, iface})
	require.NoError(t, sim.Run())

	st := dq.Stats()
	assert.Greater(t, st.UnforcedClassicDrop, uint64(0))
}
