package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/gousb"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/aalink/internal/config"
	"github.com/muurk/aalink/internal/discovery"
	"github.com/muurk/aalink/internal/logging"
	"github.com/muurk/aalink/internal/messenger"
	"github.com/muurk/aalink/internal/session"
	"github.com/muurk/aalink/internal/transport"
)

// Connect command flags
var (
	address      string
	wsURL        string
	peerName     string
	pingInterval time.Duration
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect to a phone and log its channel traffic",
	Long: `Connect to a phone, run the version exchange and TLS handshake and then
print every message received until interrupted.

With the tcp transport and no address, the phone is located over mDNS.
With the usb transport, a phone attached in its normal mode is switched to
accessory mode first.`,
	Example: `  # Dial a phone in wireless projection mode
  aalink connect --address 192.168.1.23:5277

  # Use the first phone found over mDNS
  aalink connect

  # Phone attached over USB
  aalink connect --transport usb

  # Phone reachable through a WebSocket bridge
  aalink connect -t websocket --url ws://bridge.local:8080/aa`,
	RunE: runConnect,
}

func init() {
	addConnectFlags(connectCmd)
}

func addConnectFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&address, "address", "", "Phone address for the tcp transport (host:port)")
	cmd.Flags().StringVar(&wsURL, "url", "", "Bridge URL for the websocket transport")
	cmd.Flags().StringVar(&peerName, "peer", "", "mDNS instance name of the phone (empty = first found)")
	cmd.Flags().DurationVar(&pingInterval, "ping-interval", 5*time.Second, "Interval between control pings (0 disables)")
}

func runConnect(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := establish(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer sess.Close()

	out := cmd.OutOrStdout()
	done := make(chan error, 1)
	go func() {
		done <- sess.Serve(ctx, printMessage(out))
	}()
	go pingLoop(ctx, sess, pingInterval, out)

	return serveResult(<-done)
}

// establish opens the configured transport and completes the bootstrap.
func establish(ctx context.Context, status io.Writer) (*session.Session, error) {
	sessConfig, err := cfg.SessionConfig()
	if err != nil {
		return nil, err
	}

	endpoint, release, err := openEndpoint(ctx, cfg, status)
	if err != nil {
		return nil, err
	}

	sess, err := session.New(releasingEndpoint{endpoint, release}, sessConfig)
	if err != nil {
		_ = endpoint.Close()
		release()
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	fmt.Fprintf(status, "Connected over %s, negotiating...\n", cfg.Transport)
	if err := sess.Handshake(ctx); err != nil {
		_ = sess.Close()
		return nil, err
	}

	st := sess.Stats()
	fmt.Fprintf(status, "Session %s established (protocol %d.%d)\n", st.ID, st.Version.Major, st.Version.Minor)
	return sess, nil
}

// openEndpoint returns the endpoint for c.Transport and a release func for
// resources that outlive it.
func openEndpoint(ctx context.Context, c *config.Config, status io.Writer) (transport.Endpoint, func(), error) {
	noop := func() {}

	switch c.Transport {
	case config.TransportTCP:
		addr := address
		if addr == "" {
			addr = c.TCP.Address
		}
		if addr == "" {
			if !c.Discovery.Enabled {
				return nil, nil, errors.New("no phone address: set tcp.address or --address")
			}
			fmt.Fprintln(status, "Looking for a phone over mDNS...")
			peer, err := discovery.NewScanner().WaitForPeer(ctx, peerName)
			if err != nil {
				return nil, nil, err
			}
			addr = peer.Address()
			fmt.Fprintf(status, "Found %s\n", peer)
		}
		endpoint, err := transport.DialTCP(ctx, addr, c.DialTimeout())
		if err != nil {
			return nil, nil, err
		}
		return endpoint, noop, nil

	case config.TransportUSB:
		usbCtx := gousb.NewContext()
		endpoint, err := transport.ConnectUSB(usbCtx,
			gousb.ID(c.USB.VendorID), gousb.ID(c.USB.ProductID),
			transport.DefaultAccessoryStrings, c.USBSwitchTimeout(), c.USBSendTimeout())
		if err != nil {
			_ = usbCtx.Close()
			return nil, nil, err
		}
		return endpoint, func() { _ = usbCtx.Close() }, nil

	case config.TransportWebSocket:
		url := wsURL
		if url == "" {
			url = c.WebSocket.URL
		}
		if url == "" {
			return nil, nil, errors.New("no bridge URL: set websocket.url or --url")
		}
		endpoint, err := transport.DialWebSocket(ctx, url, nil)
		if err != nil {
			return nil, nil, err
		}
		return endpoint, noop, nil
	}
	return nil, nil, fmt.Errorf("unknown transport %q", c.Transport)
}

// releasingEndpoint runs release after the endpoint is closed.
type releasingEndpoint struct {
	transport.Endpoint
	release func()
}

func (e releasingEndpoint) Close() error {
	err := e.Endpoint.Close()
	e.release()
	return err
}

func printMessage(w io.Writer) session.Handler {
	return func(msg *messenger.Message) {
		id := "-"
		if len(msg.Payload) >= 2 {
			id = fmt.Sprintf("0x%02x%02x", msg.Payload[0], msg.Payload[1])
		}
		fmt.Fprintf(w, "%s  %-13s %-9s %-8s id=%s  %d bytes\n",
			time.Now().Format("15:04:05.000"), msg.ChannelID, msg.EncryptionType,
			msg.MessageType, id, len(msg.Payload))
	}
}

// pingLoop pings the phone every interval and reports the round trip.
func pingLoop(ctx context.Context, sess *session.Session, interval time.Duration, w io.Writer) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		pingCtx, cancel := context.WithTimeout(ctx, interval)
		rtt, err := sess.Ping(pingCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logging.Warn("Ping failed", zap.String("session", sess.ID()), zap.Error(err))
			if w != nil {
				fmt.Fprintf(w, "ping failed: %v\n", err)
			}
			continue
		}
		if w != nil {
			fmt.Fprintf(w, "ping %s\n", rtt.Round(time.Microsecond))
		}
	}
}

// serveResult maps an interrupted Serve to a clean exit.
func serveResult(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
