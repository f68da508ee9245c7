package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/muurk/aalink/internal/logging"
	"github.com/muurk/aalink/internal/messenger"
	"github.com/muurk/aalink/internal/monitor"
)

var refreshInterval time.Duration

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Connect to a phone and show live channel traffic",
	Long: `Connect to a phone like 'aalink connect' and show per-channel message and
byte counters in a live terminal view. Press q to quit.

When stdout is not a terminal, the traffic is printed line by line instead.`,
	RunE: runMonitor,
}

func init() {
	addConnectFlags(monitorCmd)
	monitorCmd.Flags().DurationVar(&refreshInterval, "refresh", monitor.DefaultInterval, "View refresh interval")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return runConnect(cmd, args)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := establish(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer sess.Close()

	// log lines would tear the view
	logging.SetLogger(zap.NewNop())

	done := make(chan error, 1)
	go func() {
		done <- sess.Serve(ctx, func(*messenger.Message) {})
	}()
	go pingLoop(ctx, sess, pingInterval, nil)

	return serveResult(monitor.Run(ctx, sess, done, refreshInterval))
}
