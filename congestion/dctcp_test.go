// SPDX-License-Identifier: GPL-3.0

package congestion

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/heistp/l4ssim/units"
)

func TestSlowStartEquivalence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SegmentSize = 1446

	baseline := &TCB{Cwnd: 2 * 1446, Ssthresh: 4 * 1446, SegmentSize: 1446}
	Reno{}.IncreaseWindow(baseline, 2)

	dctcpTCB := &TCB{Cwnd: 2 * 1446, Ssthresh: 4 * 1446, SegmentSize: 1446}
	d := NewDCTCPSender(cfg, Reno{})
	d.IncreaseWindow(dctcpTCB, 2)

	assert.Equal(t, baseline.Cwnd, dctcpTCB.Cwnd)
	assert.Equal(t, units.Bytes(4*1446), dctcpTCB.Cwnd)
}

func TestSingleFlipDecrement(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SegmentSize = 1446
	cfg.G = 1.0 / 16

	d := NewDCTCPSender(cfg, Reno{})
	d.PacketsAcked(2, Seq(4753), Seq(3216), ECNECERcvd)
	assert.InDelta(t, 1.0/16, d.Alpha(), 1e-12)

	tcb := &TCB{Cwnd: 4 * 1446, SegmentSize: 1446}
	d.ReduceCWND(tcb)
	assert.Equal(t, units.Bytes(5603), tcb.Cwnd)
}

func TestSingleFlipDecrementIdleUnchanged(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SegmentSize = 1446
	cfg.G = 1.0 / 16

	d := NewDCTCPSender(cfg, Reno{})
	d.PacketsAcked(2, Seq(4753), Seq(3216), ECNIdle)
	assert.Zero(t, d.Alpha())

	tcb := &TCB{Cwnd: 4 * 1446, SegmentSize: 1446}
	d.ReduceCWND(tcb)
	assert.Equal(t, units.Bytes(4*1446), tcb.Cwnd)
}

func TestReduceCWNDFloorsAtTwoSegments(t *testing.T) {
	cfg := DefaultConfig()
	d := NewDCTCPSender(cfg, Reno{})
	d.alpha = 1
	tcb := &TCB{Cwnd: 3 * cfg.SegmentSize, SegmentSize: cfg.SegmentSize}
	d.ReduceCWND(tcb)
	assert.Equal(t, 2*cfg.SegmentSize, tcb.Cwnd)
}

type recordingSocket struct {
	calls []mirrorCall
}

type mirrorCall struct {
	ece    bool
	rcvNxt Seq
}

func (r *recordingSocket) SendEmptyPacket(ece bool, rcvNxt Seq) {
	r.calls = append(r.calls, mirrorCall{ece, rcvNxt})
}

func TestCEMirrorEmission(t *testing.T) {
	d := NewDCTCPSender(DefaultConfig(), Reno{})
	sock := &recordingSocket{}

	d.OnDelayedACK()
	d.OnCEIsCE(sock, Seq(1000)) // first transition: no prior recorded, no emission
	assert.Empty(t, sock.calls)
	assert.Equal(t, CE1, d.CEState())

	d.OnDelayedACK()
	d.OnCENoCE(sock, Seq(2000))
	assert.Len(t, sock.calls, 1)
	assert.True(t, sock.calls[0].ece)
	assert.Equal(t, Seq(1000), sock.calls[0].rcvNxt)
	assert.Equal(t, CE0, d.CEState())

	d.OnDelayedACK()
	d.OnCEIsCE(sock, Seq(3000))
	assert.Len(t, sock.calls, 2)
	assert.False(t, sock.calls[1].ece)
	assert.Equal(t, Seq(2000), sock.calls[1].rcvNxt)
	assert.Equal(t, CE1, d.CEState())
}

func TestCEMirrorSkippedWithoutDelayedACK(t *testing.T) {
	d := NewDCTCPSender(DefaultConfig(), Reno{})
	sock := &recordingSocket{}

	d.OnCEIsCE(sock, Seq(1000))
	d.OnNonDelayedACK()
	d.OnCENoCE(sock, Seq(2000))
	assert.Empty(t, sock.calls)
}
