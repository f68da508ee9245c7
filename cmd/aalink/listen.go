package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/muurk/aalink/internal/discovery"
	"github.com/muurk/aalink/internal/server"
	"github.com/muurk/aalink/internal/session"
	"github.com/muurk/aalink/internal/version"
)

// Listen command flags
var (
	listenAddr   string
	wsListenAddr string
	noAdvertise  bool
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Accept phones over TCP or a WebSocket bridge",
	Long: `Accept phones that connect to this head unit. Every connection gets its own
session: the version exchange and TLS handshake run as soon as it is
accepted, then channel traffic is logged.

The TCP listener is advertised over mDNS unless discovery is disabled.`,
	Example: `  # Accept phones on the default port
  aalink listen

  # Also accept bridged phones over WebSocket
  aalink listen --ws-listen :8080

  # Debug logging, no mDNS
  aalink listen --log-level debug --no-advertise`,
	RunE: runListen,
}

func init() {
	listenCmd.Flags().StringVar(&listenAddr, "listen", "", "TCP listen address (default: tcp.listen)")
	listenCmd.Flags().StringVar(&wsListenAddr, "ws-listen", "", "WebSocket listen address (default: websocket.listen)")
	listenCmd.Flags().BoolVar(&noAdvertise, "no-advertise", false, "Do not advertise over mDNS")
}

func runListen(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessConfig, err := cfg.SessionConfig()
	if err != nil {
		return err
	}

	srvConfig := server.Config{
		TCPAddress:       firstNonEmpty(listenAddr, cfg.TCP.Listen),
		WebSocketAddress: firstNonEmpty(wsListenAddr, cfg.WebSocket.Listen),
		Session:          sessConfig,
		Handler:          server.LogMessages,
	}
	srv, err := server.New(srvConfig)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	if err := srv.Listen(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if addr := srv.TCPAddr(); addr != nil {
		fmt.Fprintf(out, "Listening for phones on %s\n", addr)

		if cfg.Discovery.Enabled && !noAdvertise {
			adv, err := discovery.Advertise(cfg.Discovery.Instance, tcpPort(addr), advertisedTXT(sessConfig))
			if err != nil {
				return err
			}
			defer adv.Shutdown()
		}
	}
	if addr := srv.WebSocketAddr(); addr != nil {
		fmt.Fprintf(out, "Listening for bridged phones on ws://%s%s\n", addr, server.DefaultWebSocketPath)
	}

	// Serve closes every session once ctx ends
	if err := srv.Serve(ctx); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	fmt.Fprintln(out, "Server stopped")
	return nil
}

func advertisedTXT(sc session.Config) map[string]string {
	major, minor := sc.VersionMajor, sc.VersionMinor
	if major == 0 {
		major, minor = session.DefaultVersionMajor, session.DefaultVersionMinor
	}
	return map[string]string{
		"protocol": fmt.Sprintf("%d.%d", major, minor),
		"version":  version.Version,
	}
}

func tcpPort(addr net.Addr) int {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
