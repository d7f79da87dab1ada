// SPDX-License-Identifier: GPL-3.0

// Package config loads the typed configuration tree the simulator runs
// from: compiled-in defaults overlaid with a YAML document unmarshaled
// via gopkg.in/yaml.v3.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/heistp/l4ssim/aqm"
	"github.com/heistp/l4ssim/congestion"
	"github.com/heistp/l4ssim/units"
)

// PI holds the YAML-facing tunables for the PI² controller.
type PI struct {
	TargetDelay time.Duration `yaml:"target_delay"`
	TUpdate     time.Duration `yaml:"t_update"`
	Alpha       float64       `yaml:"alpha"`
	Beta        float64       `yaml:"beta"`
	K           uint          `yaml:"k"`
}

func (p PI) toAQM() aqm.PIConfig {
	return aqm.PIConfig{
		TargetDelay: units.Clock(p.TargetDelay),
		TUpdate:     units.Clock(p.TUpdate),
		Alpha:       p.Alpha,
		Beta:        p.Beta,
		K:           int(p.K),
	}
}

// DualQueue holds the YAML-facing tunables for the DualQ scheduler.
type DualQueue struct {
	Mode         string        `yaml:"mode"` // "bytes" or "packets"
	Limit        uint64        `yaml:"limit"`
	MeanPktSize  units.Bytes   `yaml:"mean_pkt_size"`
	TargetDelay  time.Duration `yaml:"target_delay"`
	L4SThreshold time.Duration `yaml:"l4s_threshold"`
}

func (d DualQueue) toAQM() (aqm.DualQueueConfig, error) {
	var mode aqm.Mode
	switch d.Mode {
	case "", "bytes":
		mode = aqm.Bytes
	case "packets":
		mode = aqm.Packets
	default:
		return aqm.DualQueueConfig{}, fmt.Errorf("config: unknown dualqueue mode %q", d.Mode)
	}
	return aqm.DualQueueConfig{
		Mode:         mode,
		Limit:        d.Limit,
		MeanPktSize:  d.MeanPktSize,
		TargetDelay:  units.Clock(d.TargetDelay),
		L4SThreshold: units.Clock(d.L4SThreshold),
	}, nil
}

// DCTCP holds the YAML-facing tunables for the DCTCP sender.
type DCTCP struct {
	SegmentSize units.Bytes `yaml:"segment_size"`
	G           float64     `yaml:"g"`
	AlphaInit   float64     `yaml:"alpha_init"`
}

func (d DCTCP) toCongestion() congestion.Config {
	return congestion.Config{
		SegmentSize: d.SegmentSize,
		G:           d.G,
		AlphaInit:   d.AlphaInit,
	}
}

// Sim holds the top-level simulation run parameters.
type Sim struct {
	Duration       time.Duration `yaml:"duration"`
	Seed           uint64        `yaml:"seed"`
	LinkRate       int64         `yaml:"link_rate_bps"`
	DelayedACKTime time.Duration `yaml:"delayed_ack_time"`
	FlowDelay      time.Duration `yaml:"flow_delay"` // one-way propagation delay applied to every flow
}

// Config is the full typed configuration tree for one simulation run.
type Config struct {
	Sim       Sim       `yaml:"sim"`
	PI        PI        `yaml:"pi"`
	DualQueue DualQueue `yaml:"dualqueue"`
	DCTCP     DCTCP     `yaml:"dctcp"`
}

// Default returns the compiled-in run configuration. Its PI and DCTCP
// values equal aqm.DefaultPIConfig and congestion.DefaultConfig; its
// DualQueue section measures capacity in bytes (150 kB limit, 1500-byte
// mean packet size), unlike aqm.DefaultDualQueueConfig's 50-packet limit
// with a 1000-byte mean packet size.
func Default() Config {
	return Config{
		Sim: Sim{
			Duration:       30 * time.Second,
			Seed:           1,
			LinkRate:       1_000_000_000,
			DelayedACKTime: 0,
			FlowDelay:      10 * time.Millisecond,
		},
		PI: PI{
			TargetDelay: 15 * time.Millisecond,
			TUpdate:     16 * time.Millisecond,
			Alpha:       10,
			Beta:        100,
			K:           2,
		},
		DualQueue: DualQueue{
			Mode:         "bytes",
			Limit:        uint64(150 * units.Kilobyte),
			MeanPktSize:  1500,
			TargetDelay:  15 * time.Millisecond,
			L4SThreshold: time.Millisecond,
		},
		DCTCP: DCTCP{
			SegmentSize: 1448,
			G:           1.0 / 16,
			AlphaInit:   0,
		},
	}
}

// Load reads and unmarshals a YAML config file, overlaying it onto
// Default so a partial file only overrides what it specifies.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// PIConfig returns the aqm.PIConfig this Config describes.
func (c Config) PIConfig() aqm.PIConfig {
	return c.PI.toAQM()
}

// DualQueueConfig returns the aqm.DualQueueConfig this Config describes.
func (c Config) DualQueueConfig() (aqm.DualQueueConfig, error) {
	return c.DualQueue.toAQM()
}

// CongestionConfig returns the congestion.Config this Config describes.
func (c Config) CongestionConfig() congestion.Config {
	return c.DCTCP.toCongestion()
}
