// SPDX-License-Identifier: GPL-3.0

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heistp/l4ssim/aqm"
)

func TestDefaultValidatesAgainstAQM(t *testing.T) {
	cfg := Default()

	_, err := aqm.NewPIController(cfg.PIConfig())
	require.NoError(t, err)

	dqCfg, err := cfg.DualQueueConfig()
	require.NoError(t, err)
	_, err = aqm.NewDualQueue(dqCfg, &aqm.PIController{}, nil)
	assert.NoError(t, err)
}

func TestDualQueueRejectsUnknownMode(t *testing.T) {
	d := DualQueue{Mode: "frobnicate", Limit: 1}
	_, err := d.toAQM()
	assert.Error(t, err)
}

func TestLoadOverlaysOntoDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "l4ssim.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pi:\n  alpha: 5\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5.0, cfg.PI.Alpha)
	assert.Equal(t, Default().PI.Beta, cfg.PI.Beta) // untouched field keeps its default
	assert.Equal(t, Default().DualQueue, cfg.DualQueue)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
