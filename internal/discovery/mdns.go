package discovery

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/muurk/aalink/internal/logging"
	"go.uber.org/zap"
)

const (
	// ServiceType is the mDNS service type of wireless projection endpoints
	ServiceType = "_aawireless._tcp"

	// ServiceDomain is the mDNS domain
	ServiceDomain = "local."

	// DefaultScanTimeout bounds a Scan
	DefaultScanTimeout = 5 * time.Second

	// DefaultPort is used when an entry does not carry a port
	DefaultPort = 5277
)

// Advertisement is a registered mDNS service.
type Advertisement struct {
	server *zeroconf.Server
	once   sync.Once
}

// Advertise registers instance on port with the given TXT records.
func Advertise(instance string, port int, txt map[string]string) (*Advertisement, error) {
	server, err := zeroconf.Register(instance, ServiceType, ServiceDomain, port, encodeTXT(txt), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}

	logging.Info("Advertising over mDNS",
		zap.String("instance", instance),
		zap.String("service", ServiceType),
		zap.Int("port", port),
	)
	return &Advertisement{server: server}, nil
}

// Shutdown withdraws the advertisement. It is safe to call more than once.
func (a *Advertisement) Shutdown() {
	a.once.Do(func() {
		a.server.Shutdown()
		logging.Debug("mDNS advertisement withdrawn")
	})
}

// Scanner browses for peers.
type Scanner struct {
	// Timeout is the maximum time a browse runs
	Timeout time.Duration
}

// NewScanner creates a scanner with default settings.
func NewScanner() *Scanner {
	return &Scanner{Timeout: DefaultScanTimeout}
}

// Scan collects every peer seen until the timeout or ctx ends.
func (s *Scanner) Scan(ctx context.Context) ([]*Peer, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	var (
		mu    sync.Mutex
		peers []*Peer
		seen  = make(map[string]bool)
	)
	err := s.browse(ctx, func(p *Peer) bool {
		mu.Lock()
		defer mu.Unlock()
		if !seen[p.Instance] {
			seen[p.Instance] = true
			peers = append(peers, p)
		}
		return false
	})
	if err != nil {
		return nil, err
	}

	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()
	sort.Slice(peers, func(i, j int) bool { return peers[i].Instance < peers[j].Instance })
	return peers, nil
}

// WaitForPeer browses until a peer named instance appears. An empty
// instance accepts the first peer found.
func (s *Scanner) WaitForPeer(ctx context.Context, instance string) (*Peer, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	found := make(chan *Peer, 1)
	err := s.browse(ctx, func(p *Peer) bool {
		if instance != "" && p.Instance != instance {
			return false
		}
		select {
		case found <- p:
		default:
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	select {
	case p := <-found:
		return p, nil
	case <-ctx.Done():
		if instance == "" {
			return nil, fmt.Errorf("no %s peer found within %s", ServiceType, s.Timeout)
		}
		return nil, fmt.Errorf("peer %q not found within %s", instance, s.Timeout)
	}
}

// browse feeds parsed entries to visit until visit returns true or ctx ends.
func (s *Scanner) browse(ctx context.Context, visit func(*Peer) bool) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	entries := make(chan *zeroconf.ServiceEntry)
	go func() {
		for entry := range entries {
			peer := parseServiceEntry(entry)
			if peer == nil {
				continue
			}
			logging.Debug("mDNS peer found", zap.Stringer("peer", peer))
			if visit(peer) {
				cancel()
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		cancel()
		return fmt.Errorf("failed to browse for mDNS services: %w", err)
	}
	return nil
}

// parseServiceEntry converts a zeroconf entry to a Peer. Entries without a
// usable address yield nil.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Peer {
	if entry == nil {
		return nil
	}

	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	return &Peer{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Metadata:     decodeTXT(entry.Text),
		DiscoveredAt: time.Now(),
	}
}

// encodeTXT renders key=value records in key order.
func encodeTXT(txt map[string]string) []string {
	records := make([]string, 0, len(txt))
	for k, v := range txt {
		records = append(records, k+"="+v)
	}
	sort.Strings(records)
	return records
}

func decodeTXT(records []string) map[string]string {
	metadata := make(map[string]string, len(records))
	for _, txt := range records {
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}
	return metadata
}
