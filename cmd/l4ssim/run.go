// SPDX-License-Identifier: GPL-3.0

package main

import (
	"fmt"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/heistp/l4ssim/aqm"
	"github.com/heistp/l4ssim/bottleneck"
	"github.com/heistp/l4ssim/congestion"
	"github.com/heistp/l4ssim/host"
	"github.com/heistp/l4ssim/metrics"
	"github.com/heistp/l4ssim/simnet"
	"github.com/heistp/l4ssim/telemetry"
	"github.com/heistp/l4ssim/units"
)

// initialSsthresh is effectively unbounded: a flow leaves slow start on an
// ECN signal (DCTCP's ECE-triggered exit, or a Classic halving), not a
// preset threshold.
const initialSsthresh = units.Bytes(1 << 40)

var (
	numL4S          int
	numClassic      int
	numClassicNoECN int
	metricsAddr     string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the simulation for the configured duration",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().IntVar(&numL4S, "l4s-flows", 2, "number of DCTCP/L4S (ECT1) flows")
	runCmd.Flags().IntVar(&numClassic, "classic-flows", 2, "number of ECN-capable Classic (ECT0) flows")
	runCmd.Flags().IntVar(&numClassicNoECN, "classic-no-ecn-flows", 0, "number of non-ECN-capable Classic flows (dropped, never marked)")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address to serve Prometheus /metrics on (e.g. :9090); empty disables")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	runID := uuid.NewString()
	telemetry.SetLogger(telemetry.L().With(zap.String("run", runID)))

	numFlows := numL4S + numClassic + numClassicNoECN
	if numFlows == 0 {
		return fmt.Errorf("l4ssim: at least one flow is required")
	}

	dqCfg, err := cfg.DualQueueConfig()
	if err != nil {
		return err
	}
	pi, err := aqm.NewPIController(cfg.PIConfig())
	if err != nil {
		return err
	}
	dq, err := aqm.NewDualQueue(dqCfg, pi, units.NewSubstream(cfg.Sim.Seed, 0))
	if err != nil {
		return err
	}
	iface := bottleneck.NewIface(units.Bitrate(cfg.Sim.LinkRate), nil, dq, pi, nil)

	dctcpCfg := cfg.CongestionConfig()
	flows := make([]*host.Flow, 0, numFlows)
	var id simnet.FlowID
	for i := 0; i < numL4S; i++ {
		flows = append(flows, host.NewDCTCPFlow(id, true, 2*dctcpCfg.SegmentSize, initialSsthresh, dctcpCfg.SegmentSize, dctcpCfg))
		id++
	}
	for i := 0; i < numClassic; i++ {
		flows = append(flows, host.NewClassicFlow(id, true, 2*dctcpCfg.SegmentSize, initialSsthresh, dctcpCfg.SegmentSize))
		id++
	}
	for i := 0; i < numClassicNoECN; i++ {
		flows = append(flows, host.NewFlow(host.FlowConfig{
			ID:          id,
			ECT:         simnet.NotECT,
			InitialCwnd: 2 * dctcpCfg.SegmentSize,
			Ssthresh:    initialSsthresh,
			SegmentSize: dctcpCfg.SegmentSize,
			Active:      true,
		}, congestion.Config{SegmentSize: dctcpCfg.SegmentSize}, congestion.Reno{}))
		id++
	}

	flowDelay := make([]simnet.Clock, numFlows)
	for i := range flowDelay {
		flowDelay[i] = units.Clock(cfg.Sim.FlowDelay)
	}
	host.DelayedACKTime = units.Clock(cfg.Sim.DelayedACKTime)

	sender := host.NewSender(flows, nil, units.Clock(cfg.Sim.Duration), nil)
	receiver := host.NewReceiver(numFlows)
	delay := simnet.NewDelay(flowDelay)

	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		coll := metrics.NewCollector(runID, iface, pi)
		for i := 0; i < numL4S; i++ {
			coll.AddFlow(fmt.Sprintf("l4s-%d", i), flows[i])
		}
		reg.MustRegister(coll)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				telemetry.L().Error("metrics server stopped", zap.Error(err))
			}
		}()
		defer srv.Close()
	}

	fmt.Printf("run %s: %d L4S + %d Classic(ECN) + %d Classic(no ECN) flows, link rate %s, duration %s\n",
		runID, numL4S, numClassic, numClassicNoECN,
		humanize.SI(units.Bitrate(cfg.Sim.LinkRate).Bps(), "bps"), cfg.Sim.Duration)

	sim := simnet.NewSim([]simnet.Handler{sender, iface, delay, receiver})
	if err := sim.Run(); err != nil {
		return err
	}

	st := dq.Stats()
	fmt.Printf("forced_drop=%s unforced_classic_drop=%s unforced_classic_mark=%s unforced_l4s_mark=%s\n",
		humanize.Comma(int64(st.ForcedDrop)), humanize.Comma(int64(st.UnforcedClassicDrop)),
		humanize.Comma(int64(st.UnforcedClassicMark)), humanize.Comma(int64(st.UnforcedL4SMark)))
	return nil
}
