// SPDX-License-Identifier: GPL-3.0

package aqm

import "github.com/heistp/l4ssim/units"

// PIController is the PI-law probability integrator shared by the Classic
// and L4S queues. It holds no reference to the queue it samples; the
// harness (bottleneck.Iface) reads DualQueue.ClassicSojourn and passes it
// to Sample on each tick, so the controller never needs to reach back into
// the queue.
type PIController struct {
	cfg        PIConfig
	alphaU     float64
	betaU      float64
	p          float64
	qDelayPrev units.Clock
}

// NewPIController returns a new PIController, or a *ConfigError if cfg is
// invalid.
func NewPIController(cfg PIConfig) (*PIController, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &PIController{
		cfg:    cfg,
		alphaU: cfg.Alpha * cfg.TUpdate.Seconds(),
		betaU:  cfg.Beta * cfg.TUpdate.Seconds(),
	}, nil
}

// Config returns the controller's configuration.
func (c *PIController) Config() PIConfig {
	return c.cfg
}

// P returns the current base probability.
func (c *PIController) P() float64 {
	return c.p
}

// PClassic returns p_classic = p*p, the probability applied to the Classic
// queue's coin flip.
func (c *PIController) PClassic() float64 {
	return c.p * c.p
}

// PL4S returns p_l4s = min(k*p, 1), the probability applied to the L4S
// queue's mark decision.
func (c *PIController) PL4S() float64 {
	p := float64(c.cfg.K) * c.p
	if p > 1 {
		return 1
	}
	return p
}

// Sample runs one PI update step. qNow is the sojourn time of the oldest
// packet in the Classic queue, or zero if it's empty; dualQueueEmpty
// reports whether both the Classic and L4S queues are empty. A queue that
// is non-empty but whose head item just arrived (qNow == 0) is skipped
// rather than treated as idle; a queue empty across two consecutive
// samples gets the zero-delay PI step and then a further 2% decay of p.
func (c *PIController) Sample(qNow units.Clock, dualQueueEmpty bool) {
	if qNow == 0 && !dualQueueEmpty {
		return
	}
	delta := c.alphaU*(qNow.Seconds()-c.cfg.TargetDelay.Seconds()) +
		c.betaU*(qNow.Seconds()-c.qDelayPrev.Seconds())
	p := c.p + delta
	if qNow == 0 && c.qDelayPrev == 0 {
		p *= 0.98 // fast decay on sustained empty
	}
	c.p = clamp01(p)
	c.qDelayPrev = qNow
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
