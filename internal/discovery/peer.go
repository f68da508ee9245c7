package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Peer is an endpoint found by browsing.
type Peer struct {
	// Instance is the advertised service instance name
	Instance string

	// Hostname is the mDNS hostname (e.g., "aalink-hu.local.")
	Hostname string

	// IP is the preferred address, IPv4 when available
	IP string

	Port int

	// Metadata holds the TXT record key/value pairs
	Metadata map[string]string

	DiscoveredAt time.Time
}

func (p *Peer) String() string {
	return fmt.Sprintf("%s (%s) at %s", p.Instance, p.Hostname, p.Address())
}

// Address returns host:port suitable for dialing.
func (p *Peer) Address() string {
	return net.JoinHostPort(p.IP, strconv.Itoa(p.Port))
}

// GetMetadata returns a TXT value, or "" when absent.
func (p *Peer) GetMetadata(key string) string {
	if p.Metadata == nil {
		return ""
	}
	return p.Metadata[key]
}
