// SPDX-License-Identifier: GPL-3.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/heistp/l4ssim/config"
	"github.com/heistp/l4ssim/telemetry"
)

var (
	cfgPath  string
	logLevel string
	cfg      config.Config
)

var rootCmd = &cobra.Command{
	Use:           "l4ssim",
	Short:         "DCTCP sender / PI² DualQ Coupled AQM simulator",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a YAML config file overlaying the defaults")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func initConfig() error {
	if cfgPath == "" {
		cfg = config.Default()
	} else {
		var err error
		if cfg, err = config.Load(cfgPath); err != nil {
			return err
		}
	}

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := zcfg.Build()
	if err != nil {
		return err
	}
	telemetry.SetLogger(logger)
	return nil
}
