// SPDX-License-Identifier: GPL-3.0

package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/heistp/l4ssim/aqm"
)

type fakeDualQueue struct{ stats aqm.Stats }

func (f fakeDualQueue) Stats() aqm.Stats { return f.stats }

type fakePI struct{ p, pClassic, pL4S float64 }

func (f fakePI) P() float64        { return f.p }
func (f fakePI) PClassic() float64 { return f.pClassic }
func (f fakePI) PL4S() float64     { return f.pL4S }

type fakeFlow struct{ alpha float64 }

func (f fakeFlow) Alpha() float64 { return f.alpha }

func TestCollectEmitsDualQueueCounters(t *testing.T) {
	dq := fakeDualQueue{stats: aqm.Stats{ForcedDrop: 3, UnforcedClassicDrop: 1, UnforcedClassicMark: 2, UnforcedL4SMark: 5}}
	pi := fakePI{p: 0.1, pClassic: 0.01, pL4S: 0.2}
	c := NewCollector("test-run", dq, pi)

	expected := `
# HELP l4ssim_forced_drop_total Packets dropped because the queue was full.
# TYPE l4ssim_forced_drop_total counter
l4ssim_forced_drop_total{run="test-run"} 3
# HELP l4ssim_unforced_classic_drop_total Classic coin-flip drops of non-ECN-capable items.
# TYPE l4ssim_unforced_classic_drop_total counter
l4ssim_unforced_classic_drop_total{run="test-run"} 1
# HELP l4ssim_unforced_classic_mark_total Classic coin-flip marks.
# TYPE l4ssim_unforced_classic_mark_total counter
l4ssim_unforced_classic_mark_total{run="test-run"} 2
# HELP l4ssim_unforced_l4s_mark_total L4S marks, by threshold or coin-flip.
# TYPE l4ssim_unforced_l4s_mark_total counter
l4ssim_unforced_l4s_mark_total{run="test-run"} 5
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"l4ssim_forced_drop_total", "l4ssim_unforced_classic_drop_total",
		"l4ssim_unforced_classic_mark_total", "l4ssim_unforced_l4s_mark_total"))
}

func TestCollectEmitsPerFlowAlpha(t *testing.T) {
	dq := fakeDualQueue{}
	pi := fakePI{}
	c := NewCollector("test-run", dq, pi)
	c.AddFlow("l4s-0", fakeFlow{alpha: 0.25})

	expected := `
# HELP l4ssim_dctcp_alpha Current DCTCP smoothed ECN-marked-byte fraction.
# TYPE l4ssim_dctcp_alpha gauge
l4ssim_dctcp_alpha{flow="l4s-0",run="test-run"} 0.25
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected), "l4ssim_dctcp_alpha"))
}
