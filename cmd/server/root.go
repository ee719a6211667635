package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/smartcity/saferoute/internal/config"
	"github.com/smartcity/saferoute/internal/logging"
)

const serviceName = "saferoute"

var version = "1.0.0"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "saferoute",
	Short: "Safety-aware route selection API",
	Long:  `saferoute picks the route between two points that keeps farthest from recently reported incidents, and serves incident reports, hotspots and reverse geocoding over HTTP.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	rootCmd.AddCommand(serveCmd, routeCmd, seedCmd)
}

// loadConfig reads configuration and initializes logging
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	logging.Init(serviceName, cfg.LogJSON, cfg.LogLevel)
	return cfg, nil
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
