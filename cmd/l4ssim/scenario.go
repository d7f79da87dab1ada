// SPDX-License-Identifier: GPL-3.0

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/heistp/l4ssim/aqm"
	"github.com/heistp/l4ssim/bottleneck"
	"github.com/heistp/l4ssim/congestion"
	"github.com/heistp/l4ssim/host"
	"github.com/heistp/l4ssim/simnet"
	"github.com/heistp/l4ssim/units"
)

var scenarioCmd = &cobra.Command{
	Use:   "scenario",
	Short: "Replay the concrete end-to-end scenarios and print a pass/fail summary",
	RunE:  runScenarios,
}

func init() {
	rootCmd.AddCommand(scenarioCmd)
}

type result struct {
	name string
	ok   bool
	note string
}

func runScenarios(cmd *cobra.Command, args []string) error {
	results := []result{
		scenarioSlowStartEquivalence(),
		scenarioSingleFlipDecrement(),
		scenarioECTMarking(),
		scenarioCodepointRouting(),
		scenarioPIIntegrationUnderOverload(),
		scenarioCEMirrorEmission(),
	}

	fail := 0
	for _, r := range results {
		status := "PASS"
		if !r.ok {
			status = "FAIL"
			fail++
		}
		fmt.Printf("[%s] %-28s %s\n", status, r.name, r.note)
	}
	if fail > 0 {
		return fmt.Errorf("l4ssim: %d scenario(s) failed", fail)
	}
	return nil
}

// scenarioSlowStartEquivalence: with no ECN seen, a DCTCP sender's
// slow-start window growth matches a baseline NewReno sender's exactly.
func scenarioSlowStartEquivalence() result {
	const segSize = units.Bytes(1446)
	cfg := congestion.DefaultConfig()
	cfg.SegmentSize = segSize

	baseline := &congestion.TCB{Cwnd: 2 * segSize, Ssthresh: 4 * segSize, SegmentSize: segSize}
	congestion.Reno{}.IncreaseWindow(baseline, 2)

	dctcpTCB := &congestion.TCB{Cwnd: 2 * segSize, Ssthresh: 4 * segSize, SegmentSize: segSize}
	d := congestion.NewDCTCPSender(cfg, congestion.Reno{})
	d.IncreaseWindow(dctcpTCB, 2)

	ok := baseline.Cwnd == dctcpTCB.Cwnd
	return result{"slow-start-equivalence", ok, fmt.Sprintf("reno=%d dctcp=%d", baseline.Cwnd, dctcpTCB.Cwnd)}
}

// scenarioSingleFlipDecrement: a single CE-marked observation window
// reduces cwnd to floor(cwnd*(1-alpha/2)); an idle (unmarked) window
// leaves cwnd unchanged.
func scenarioSingleFlipDecrement() result {
	const segSize = units.Bytes(1446)
	cfg := congestion.DefaultConfig()
	cfg.SegmentSize = segSize
	cfg.G = 1.0 / 16

	marked := congestion.NewDCTCPSender(cfg, congestion.Reno{})
	marked.PacketsAcked(2, congestion.Seq(4753), congestion.Seq(3216), congestion.ECNECERcvd)
	tcb := &congestion.TCB{Cwnd: 4 * segSize, SegmentSize: segSize}
	marked.ReduceCWND(tcb)
	okMarked := tcb.Cwnd == 5603

	idle := congestion.NewDCTCPSender(cfg, congestion.Reno{})
	idle.PacketsAcked(2, congestion.Seq(4753), congestion.Seq(3216), congestion.ECNIdle)
	idleTCB := &congestion.TCB{Cwnd: 4 * segSize, SegmentSize: segSize}
	idle.ReduceCWND(idleTCB)
	okIdle := idleTCB.Cwnd == 4*segSize

	return result{"single-flip-decrement", okMarked && okIdle,
		fmt.Sprintf("marked_cwnd=%d (want 5603) idle_cwnd=%d (want %d)", tcb.Cwnd, idleTCB.Cwnd, 4*segSize)}
}

// scenarioECTMarking: the SYN, the first data segment, and the
// receiver's first pure ACK all carry the flow's ECT codepoint.
func scenarioECTMarking() result {
	node := &scenarioNode{}
	f := host.NewDCTCPFlow(0, true, 2*1448, units.Bytes(1<<40), 1448, congestion.DefaultConfig())
	r := host.NewReceiver(1)

	f.SetActive(true, node) // sends the SYN
	if len(node.sent) == 0 || node.sent[0].ECT != simnet.ECT1 {
		return result{"ect-marking", false, "SYN did not carry ECT(1)"}
	}
	syn := node.sent[0]

	node.sent = nil
	if err := r.Handle(syn, node); err != nil { // receiver replies with the SYN+ACK
		return result{"ect-marking", false, err.Error()}
	}
	if len(node.sent) == 0 || node.sent[0].ECT != simnet.ECT1 {
		return result{"ect-marking", false, "SYN+ACK reply did not carry ECT(1)"}
	}
	synAck := node.sent[0]

	node.sent = nil
	f.Receive(synAck, node) // flow opens and sends its first data segment
	if len(node.sent) == 0 || node.sent[0].ECT != simnet.ECT1 {
		return result{"ect-marking", false, "first data segment did not carry ECT(1)"}
	}
	data := node.sent[0]

	node.sent = nil
	if err := r.Handle(data, node); err != nil { // receiver's first pure ACK
		return result{"ect-marking", false, err.Error()}
	}
	if len(node.sent) == 0 || node.sent[0].ECT != simnet.ECT1 {
		return result{"ect-marking", false, "first pure ACK did not carry ECT(1)"}
	}
	return result{"ect-marking", true, "SYN, SYN+ACK, first data segment and first pure ACK all carry ECT(1)"}
}

// scenarioCodepointRouting: a DCTCP flow marks ECT(1), a non-DCTCP
// ECN-capable flow marks ECT(0), and the dual queue routes them to Q1
// and Q0 respectively.
func scenarioCodepointRouting() result {
	node := &scenarioNode{}
	dctcpFlow := host.NewDCTCPFlow(0, true, 2*1448, units.Bytes(1<<40), 1448, congestion.DefaultConfig())
	dctcpFlow.SetActive(true, node)
	dctcpECT := node.sent[0].ECT

	node.sent = nil
	classicFlow := host.NewClassicFlow(1, true, 2*1448, units.Bytes(1<<40), 1448)
	classicFlow.SetActive(true, node)
	classicECT := node.sent[0].ECT

	pi, _ := aqm.NewPIController(aqm.DefaultPIConfig())
	dq, _ := aqm.NewDualQueue(aqm.DefaultDualQueueConfig(), pi, units.NewSubstream(1, 0))
	l4sPkt := &simnet.Packet{Len: 1000, ECT: simnet.ECT1}
	classicPkt := &simnet.Packet{Len: 1000, ECT: simnet.ECT0}
	dq.Enqueue(classicPkt, 0)
	dq.Enqueue(l4sPkt, 0)
	// draining Q1 first at a tie proves L4S items never share the Classic
	// FIFO: a Classic-routed item would come out first if Q0 and Q1 were
	// the same queue in arrival order.
	first, _ := dq.Dequeue(units.Clock(1))
	firstIsL4S := first.(*simnet.Packet).ECT == simnet.ECT1

	ok := dctcpECT == simnet.ECT1 && classicECT == simnet.ECT0 && firstIsL4S
	return result{"codepoint-routing", ok,
		fmt.Sprintf("dctcp=%v classic=%v first_dequeued_is_l4s=%v", dctcpECT, classicECT, firstIsL4S)}
}

// scenarioPIIntegrationUnderOverload: 400 packets offered into a
// 50-packet DualQ over 8s, dequeued roughly every 12ms,
// forces drops and marks L4S more often than Classic; a Classic-only,
// ECN-capable run never drops; a non-ECN-capable Classic run does.
func scenarioPIIntegrationUnderOverload() result {
	const (
		numPackets = 400
		limit      = 50
		duration   = units.Clock(8e9)
		// arrivalGap is shorter than the ~12ms dequeue interval below, so
		// the 400 packets arrive faster than the link can drain them:
		// sustained overload, not just an initial burst.
		arrivalGap  = units.Clock(5e6)
		meanPktSize = units.Bytes(1000)
	)
	dqCfg := aqm.DefaultDualQueueConfig()
	dqCfg.Limit = limit
	dqCfg.Mode = aqm.Packets
	dqCfg.MeanPktSize = meanPktSize
	dqCfg.TargetDelay = units.Clock(15e6)
	// TransferTime(rate, meanPktSize) ~= 12ms.
	rate := units.CalcBitrate(meanPktSize, 12*time.Millisecond)

	runMixed := func() aqm.Stats {
		dq, pi := newOfferedQueue(dqCfg)
		sim := simnet.NewSim([]simnet.Handler{
			newOfferSender(numPackets, arrivalGap, meanPktSize, alternatingECT, duration),
			bottleneck.NewIface(rate, nil, dq, pi, nil),
		})
		sim.Run()
		return dq.Stats()
	}
	runClassicOnly := func(ect simnet.ECT) aqm.Stats {
		dq, pi := newOfferedQueue(dqCfg)
		sim := simnet.NewSim([]simnet.Handler{
			newOfferSender(numPackets, arrivalGap, meanPktSize, fixedECT(ect), duration),
			bottleneck.NewIface(rate, nil, dq, pi, nil),
		})
		sim.Run()
		return dq.Stats()
	}

	mixed := runMixed()
	classicECN := runClassicOnly(simnet.ECT0)
	classicNoECN := runClassicOnly(simnet.NotECT)

	ok := mixed.ForcedDrop > 0 &&
		mixed.UnforcedL4SMark > mixed.UnforcedClassicMark &&
		mixed.UnforcedClassicMark > 0 &&
		classicECN.UnforcedClassicDrop == 0 && classicECN.UnforcedClassicMark > 0 &&
		classicNoECN.UnforcedClassicDrop > 0

	return result{"pi-integration-overload", ok, fmt.Sprintf(
		"mixed={forced=%d l4s_mark=%d classic_mark=%d} classic_ecn={drop=%d mark=%d} classic_no_ecn={drop=%d}",
		mixed.ForcedDrop, mixed.UnforcedL4SMark, mixed.UnforcedClassicMark,
		classicECN.UnforcedClassicDrop, classicECN.UnforcedClassicMark, classicNoECN.UnforcedClassicDrop)}
}

// scenarioCEMirrorEmission: a CE 0->1 transition
// while a delayed ACK is pending emits exactly one synthetic ACK with no
// ECE carrying the prior rcv_nxt; the symmetric transition emits one ACK
// with ECE set.
func scenarioCEMirrorEmission() result {
	host.DelayedACKTime = 200
	defer func() { host.DelayedACKTime = 0 }()

	node := &scenarioNode{}
	r := host.NewReceiver(1)
	r.Handle(simnet.Packet{Flow: 0, SYN: true, ECT: simnet.ECT1}, node)
	node.sent = nil

	r.Handle(simnet.Packet{Flow: 0, Seq: 1, Len: 100, ECT: simnet.ECT1}, node)
	if len(node.sent) != 0 {
		return result{"ce-mirror-emission", false, "first segment's ACK should have been deferred"}
	}

	r.Handle(simnet.Packet{Flow: 0, Seq: 101, Len: 100, ECT: simnet.ECT1, CE: true}, node)
	if len(node.sent) != 2 || node.sent[0].ECE || !node.sent[1].ECE {
		return result{"ce-mirror-emission", false, fmt.Sprintf("unexpected packets on CE 0->1: %+v", node.sent)}
	}

	node.sent = nil
	r.Handle(simnet.Packet{Flow: 0, Seq: 201, Len: 100, ECT: simnet.ECT1, CE: true}, node)
	if len(node.sent) != 0 {
		return result{"ce-mirror-emission", false, "third segment's ACK should have been deferred"}
	}

	r.Handle(simnet.Packet{Flow: 0, Seq: 301, Len: 100, ECT: simnet.ECT1}, node)
	if len(node.sent) != 2 || !node.sent[0].ECE || node.sent[1].ECE {
		return result{"ce-mirror-emission", false, fmt.Sprintf("unexpected packets on CE 1->0: %+v", node.sent)}
	}

	return result{"ce-mirror-emission", true, "CE 0->1 emitted one no-ECE mirror ACK, CE 1->0 one ECE mirror ACK"}
}

func newOfferedQueue(cfg aqm.DualQueueConfig) (*aqm.DualQueue, *aqm.PIController) {
	pi, err := aqm.NewPIController(aqm.DefaultPIConfig())
	if err != nil {
		panic(err)
	}
	dq, err := aqm.NewDualQueue(cfg, pi, units.NewSubstream(1, 0))
	if err != nil {
		panic(err)
	}
	return dq, pi
}

// ectChooser picks the ECT codepoint for the i'th offered packet.
type ectChooser func(i int) simnet.ECT

func alternatingECT(i int) simnet.ECT {
	if i%2 == 0 {
		return simnet.ECT1
	}
	return simnet.ECT0
}

func fixedECT(ect simnet.ECT) ectChooser {
	return func(int) simnet.ECT { return ect }
}

// stopSignal marks the Ding that ends the run.
type stopSignal struct{}

// offerSender blasts a fixed number of packets into the bottleneck on a
// regular schedule, ignoring anything sent back to it: it exists only to
// drive the DualQ/PI pair under a known offered load.
type offerSender struct {
	n        int
	interval units.Clock
	size     units.Bytes
	ect      ectChooser
	duration units.Clock
}

func newOfferSender(n int, interval units.Clock, size units.Bytes, ect ectChooser, duration units.Clock) *offerSender {
	return &offerSender{n: n, interval: interval, size: size, ect: ect, duration: duration}
}

func (o *offerSender) Start(node simnet.Node) error {
	for i := 0; i < o.n; i++ {
		node.Timer(units.Clock(i)*o.interval, i)
	}
	node.Timer(o.duration, stopSignal{})
	return nil
}

func (o *offerSender) Handle(pkt simnet.Packet, node simnet.Node) error { return nil }

func (o *offerSender) Ding(data any, node simnet.Node) error {
	switch v := data.(type) {
	case int:
		node.Send(simnet.Packet{Len: o.size, ECT: o.ect(v)})
	case stopSignal:
		node.Shutdown()
	}
	return nil
}

// scenarioNode is a minimal simnet.Node recording every sent Packet, for
// driving host.Flow/host.Receiver outside a full Sim.
type scenarioNode struct {
	now  units.Clock
	sent []simnet.Packet
}

func (n *scenarioNode) Timer(delay units.Clock, data any) {}
func (n *scenarioNode) Send(pkt simnet.Packet)             { n.sent = append(n.sent, pkt) }
func (n *scenarioNode) Now() units.Clock                   { return n.now }
func (n *scenarioNode) Logf(format string, a ...any)       {}
func (n *scenarioNode) Shutdown()                          {}
