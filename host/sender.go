// SPDX-License-Identifier: GPL-3.0

package host

import (
	"github.com/heistp/l4ssim/congestion"
	"github.com/heistp/l4ssim/simnet"
	"github.com/heistp/l4ssim/units"
)

// FlowAt marks a flow active or inactive at a given simulated time,
// starting or stopping it.
type FlowAt struct {
	ID     simnet.FlowID
	At     units.Clock
	Active bool
}

// stopAt marks the Ding that ends the simulation once fired.
type stopAt struct{}

// Sender is the source node for one or more Flows, dispatching each
// incoming ACK to the flow it belongs to and applying a start/stop
// schedule.
type Sender struct {
	flow     []*Flow
	schedule []FlowAt
	duration units.Clock
	cwnd     *simnet.Trace
	plotCwnd bool
}

// NewSender returns a new Sender serving flows, applying schedule as a
// start/stop timeline. If cwnd is non-nil, it's written a congestion
// window time series while the simulation runs. If duration is non-zero,
// the simulation is shut down once that much virtual time has elapsed.
func NewSender(flows []*Flow, schedule []FlowAt, duration units.Clock, cwnd *simnet.Trace) *Sender {
	return &Sender{
		flow:     flows,
		schedule: schedule,
		duration: duration,
		cwnd:     cwnd,
		plotCwnd: cwnd != nil,
	}
}

// Start implements simnet.Starter.
func (s *Sender) Start(node simnet.Node) error {
	if s.plotCwnd {
		if err := s.cwnd.Open("cwnd.xpl"); err != nil {
			return err
		}
	}
	if s.duration > 0 {
		node.Timer(s.duration, stopAt{})
	}
	for _, a := range s.schedule {
		node.Timer(a.At, a)
	}
	for _, f := range s.flow {
		f.SetActive(f.active, node)
	}
	return nil
}

// Handle implements simnet.Handler.
func (s *Sender) Handle(pkt simnet.Packet, node simnet.Node) error {
	f := s.flow[pkt.Flow]
	f.Receive(pkt, node)
	if s.plotCwnd {
		s.cwnd.Dot(node.Now(), uint64(f.Cwnd()), simnet.Color(pkt.Flow))
	}
	return nil
}

// Ding implements simnet.Dinger, activating or deactivating flows per the
// schedule, or ending the simulation once the configured duration elapses.
func (s *Sender) Ding(data any, node simnet.Node) error {
	switch a := data.(type) {
	case FlowAt:
		s.flow[a.ID].SetActive(a.Active, node)
	case stopAt:
		node.Shutdown()
	}
	return nil
}

// Stop implements simnet.Stopper.
func (s *Sender) Stop(node simnet.Node) error {
	if s.plotCwnd {
		return s.cwnd.Close()
	}
	return nil
}

// NewDCTCPFlow is a convenience constructor for a Flow that marks ECT(1)
// (L4S) and runs DCTCP's alpha-scaled ECN response.
func NewDCTCPFlow(id simnet.FlowID, active bool, cwnd, ssthresh, segSize units.Bytes, cfg congestion.Config) *Flow {
	return NewFlow(FlowConfig{
		ID:           id,
		ECT:          simnet.ECT1,
		DCTCPEnabled: true,
		InitialCwnd:  cwnd,
		Ssthresh:     ssthresh,
		SegmentSize:  segSize,
		Active:       active,
	}, cfg, congestion.Reno{})
}

// NewClassicFlow is a convenience constructor for a Flow that marks
// ECT(0) (Classic) and applies the RFC 3168 halving response to ECN.
func NewClassicFlow(id simnet.FlowID, active bool, cwnd, ssthresh, segSize units.Bytes) *Flow {
	return NewFlow(FlowConfig{
		ID:          id,
		ECT:         simnet.ECT0,
		InitialCwnd: cwnd,
		Ssthresh:    ssthresh,
		SegmentSize: segSize,
		Active:      active,
	}, congestion.Config{SegmentSize: segSize}, congestion.Reno{})
}
