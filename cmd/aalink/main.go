// Aalink is a head-unit side link for Android Auto phones.
//
// It connects to a phone over TCP, USB accessory mode or a WebSocket
// bridge, runs the version exchange and TLS handshake on the control
// channel and then carries the multiplexed channel traffic.
//
// Usage:
//
//	aalink [command] [flags]
//
// See 'aalink --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/aalink/internal/config"
	"github.com/muurk/aalink/internal/logging"
	"github.com/muurk/aalink/internal/version"
)

func main() {
	defer logging.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	configPath    string
	logLevel      string
	transportKind string
)

// cfg is the effective configuration, loaded before any command runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "aalink",
	Short: "Android Auto head-unit link",
	Long: `A head-unit side implementation of the Android Auto link protocol.

aalink frames messages on the wire, multiplexes them over logical channels,
negotiates the protocol version and TLS session with the phone and then
carries the channel traffic.

Settings are read from the configuration file (see 'aalink config path');
flags override them for a single run.`,
	Version:           version.Version,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the configuration file (default: user config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides log_level and AALINK_LOG_LEVEL")
	rootCmd.PersistentFlags().StringVarP(&transportKind, "transport", "t", "", "Transport to the phone (tcp, usb, websocket)")

	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return err
	}

	if err := applyOverrides(cfg, logLevel, transportKind); err != nil {
		return err
	}

	if err := logging.Initialize(cfg.LogLevel); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	return nil
}

// applyOverrides layers the global flags over the loaded file.
func applyOverrides(c *config.Config, level, kind string) error {
	if level != "" {
		c.LogLevel = level
	}
	if kind != "" {
		c.Transport = kind
	}
	return c.Validate()
}
