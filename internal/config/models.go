package config

import (
	"fmt"
	"time"

	"github.com/muurk/aalink/internal/cryptor"
	"github.com/muurk/aalink/internal/session"
	"github.com/muurk/aalink/internal/transport"
)

// CurrentVersion is the only configuration format version understood.
const CurrentVersion = 1

// Transport kinds.
const (
	TransportTCP       = "tcp"
	TransportUSB       = "usb"
	TransportWebSocket = "websocket"
)

// DefaultPort is the TCP port a phone in wireless projection mode listens on.
const DefaultPort = 5277

// Config is the whole configuration file.
type Config struct {
	Version   int             `yaml:"version"`
	LogLevel  string          `yaml:"log_level,omitempty"`
	Transport string          `yaml:"transport"`
	TCP       TCPConfig       `yaml:"tcp"`
	USB       USBConfig       `yaml:"usb"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	TLS       TLSConfig       `yaml:"tls"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Handshake HandshakeConfig `yaml:"handshake"`
	Protocol  VersionConfig   `yaml:"protocol"`
}

// TCPConfig configures the TCP transport.
type TCPConfig struct {
	Address       string `yaml:"address,omitempty"` // phone to dial
	Listen        string `yaml:"listen"`            // where listen accepts phones
	DialTimeoutMs int    `yaml:"dial_timeout_ms"`
}

// USBConfig configures the USB accessory transport.
type USBConfig struct {
	VendorID        uint16 `yaml:"vendor_id"`  // phone before the accessory switch
	ProductID       uint16 `yaml:"product_id"` // 0 matches any product
	SwitchTimeoutMs int    `yaml:"switch_timeout_ms"`
	TimeoutMs       int    `yaml:"timeout_ms"` // per bulk send
}

// WebSocketConfig configures the WebSocket bridge.
type WebSocketConfig struct {
	URL    string `yaml:"url,omitempty"`    // bridge to dial
	Listen string `yaml:"listen,omitempty"` // where listen accepts bridged phones
}

// TLSConfig overrides the compiled-in accessory credentials. Both files
// must be set together.
type TLSConfig struct {
	CertificateFile string `yaml:"certificate_file,omitempty"`
	PrivateKeyFile  string `yaml:"private_key_file,omitempty"`
}

// DiscoveryConfig controls mDNS advertisement in listen mode.
type DiscoveryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Instance string `yaml:"instance,omitempty"`
}

// HandshakeConfig bounds the connection bootstrap.
type HandshakeConfig struct {
	TimeoutMs int `yaml:"timeout_ms"`
}

// VersionConfig is the protocol version announced to the phone.
type VersionConfig struct {
	Major uint16 `yaml:"major"`
	Minor uint16 `yaml:"minor"`
}

// New returns a configuration holding every default.
func New() *Config {
	return &Config{
		Version:   CurrentVersion,
		Transport: TransportTCP,
		TCP: TCPConfig{
			Listen:        fmt.Sprintf(":%d", DefaultPort),
			DialTimeoutMs: 5000,
		},
		USB: USBConfig{
			VendorID:        uint16(transport.AccessoryVendorID),
			SwitchTimeoutMs: 5000,
			TimeoutMs:       int(transport.DefaultUSBSendTimeout / time.Millisecond),
		},
		Discovery: DiscoveryConfig{
			Enabled:  true,
			Instance: "aalink",
		},
		Handshake: HandshakeConfig{
			TimeoutMs: int(session.DefaultHandshakeTimeout / time.Millisecond),
		},
		Protocol: VersionConfig{
			Major: session.DefaultVersionMajor,
			Minor: session.DefaultVersionMinor,
		},
	}
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("unsupported config version: %d (expected %d)", c.Version, CurrentVersion)
	}

	switch c.Transport {
	case TransportTCP, TransportUSB, TransportWebSocket:
	default:
		return fmt.Errorf("unknown transport %q (want %s, %s or %s)",
			c.Transport, TransportTCP, TransportUSB, TransportWebSocket)
	}

	if (c.TLS.CertificateFile == "") != (c.TLS.PrivateKeyFile == "") {
		return fmt.Errorf("tls.certificate_file and tls.private_key_file must be set together")
	}

	timeouts := []struct {
		name  string
		value int
	}{
		{"tcp.dial_timeout_ms", c.TCP.DialTimeoutMs},
		{"usb.switch_timeout_ms", c.USB.SwitchTimeoutMs},
		{"usb.timeout_ms", c.USB.TimeoutMs},
		{"handshake.timeout_ms", c.Handshake.TimeoutMs},
	}
	for _, t := range timeouts {
		if t.value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", t.name, t.value)
		}
	}

	if c.Protocol.Major == 0 {
		return fmt.Errorf("protocol.major must be positive")
	}
	return nil
}

// SessionConfig builds the session configuration, loading the TLS override
// files when set.
func (c *Config) SessionConfig() (session.Config, error) {
	sc := session.Config{
		VersionMajor:     c.Protocol.Major,
		VersionMinor:     c.Protocol.Minor,
		HandshakeTimeout: millis(c.Handshake.TimeoutMs),
	}

	if c.TLS.CertificateFile != "" {
		creds, err := cryptor.LoadCredentials(c.TLS.CertificateFile, c.TLS.PrivateKeyFile)
		if err != nil {
			return session.Config{}, fmt.Errorf("failed to load TLS credentials: %w", err)
		}
		sc.Cryptor.Credentials = creds
	}
	return sc, nil
}

// DialTimeout returns tcp.dial_timeout_ms as a duration.
func (c *Config) DialTimeout() time.Duration { return millis(c.TCP.DialTimeoutMs) }

// USBSwitchTimeout returns usb.switch_timeout_ms as a duration.
func (c *Config) USBSwitchTimeout() time.Duration { return millis(c.USB.SwitchTimeoutMs) }

// USBSendTimeout returns usb.timeout_ms as a duration.
func (c *Config) USBSendTimeout() time.Duration { return millis(c.USB.TimeoutMs) }

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
