package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/muurk/tuyalocal/internal/version"
)

const (
	// BridgeServiceType is the mDNS service type the bridge server advertises
	BridgeServiceType = "_tuyalocal._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."
)

// Bridge is a tuyalocal bridge server found via mDNS
type Bridge struct {
	// Instance is the advertised instance name
	Instance string

	// Hostname is the mDNS hostname (e.g., "pi.local.")
	Hostname string

	// IP is the IPv4 address (IPv6 if no IPv4 was advertised)
	IP string

	// Port is the HTTP port of the bridge
	Port int

	// Metadata contains the TXT record data ("version=...", "devices=...")
	Metadata map[string]string
}

// String returns a human-readable string representation of the bridge
func (b *Bridge) String() string {
	return fmt.Sprintf("Bridge %s (%s) at %s:%d", b.Instance, b.Hostname, b.IP, b.Port)
}

// URL returns the HTTP base URL of the bridge
func (b *Bridge) URL() string {
	return fmt.Sprintf("http://%s:%d", b.IP, b.Port)
}

// Advertise registers a bridge instance on mDNS. Call Shutdown on the
// returned server to withdraw it.
func Advertise(instance string, port int, deviceCount int) (*zeroconf.Server, error) {
	txt := []string{
		"version=" + version.Version,
		fmt.Sprintf("devices=%d", deviceCount),
	}
	server, err := zeroconf.Register(instance, BridgeServiceType, ServiceDomain, port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}
	return server, nil
}

// BrowseBridges lists bridge servers advertised on the LAN within timeout
func BrowseBridges(ctx context.Context, timeout time.Duration) ([]*Bridge, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	done := make(chan []*Bridge)

	go func() {
		bridges := make([]*Bridge, 0)
		for entry := range entries {
			if b := parseServiceEntry(entry); b != nil {
				bridges = append(bridges, b)
			}
		}
		done <- bridges
	}()

	if err := resolver.Browse(ctx, BridgeServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	// The resolver closes entries once the browse context ends
	select {
	case bridges := <-done:
		return bridges, nil
	case <-time.After(time.Second):
		return nil, fmt.Errorf("mDNS browse did not finish")
	}
}

// parseServiceEntry converts a zeroconf service entry to a Bridge.
// Returns nil if the entry has no usable address.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Bridge {
	if entry == nil {
		return nil
	}

	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" || entry.Port == 0 {
		return nil
	}

	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}

	return &Bridge{
		Instance: entry.Instance,
		Hostname: entry.HostName,
		IP:       ip,
		Port:     entry.Port,
		Metadata: metadata,
	}
}
