package main

import (
	"github.com/Wyydra/callcore/internal/config"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "callcore",
	Short: "Single-call control server",
	Long: `callcore keeps track of one voice call at a time and applies control
actions (answer, hold, resume, mute, route changes, hang up) to it in order.

Calls are started over HTTP and watched over a websocket:
  POST /calls                  start a call
  GET  /calls/current          current call state
  POST /calls/current/actions  queue an action
  GET  /ws                     live call state

Settings come from an optional YAML file, overridden by CALLCORE_*
environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
		if err := cfg.Validate(); err != nil {
			return config.Config{}, err
		}
	}
	return cfg, nil
}
