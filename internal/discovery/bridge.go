package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Bridge represents a probekit bridge discovered on the network
type Bridge struct {
	// Instance is the mDNS instance name (e.g., "kitchen")
	Instance string

	// Hostname is the mDNS hostname (e.g., "pi.local.")
	Hostname string

	// IP is the IPv4 address, or IPv6 when the bridge has none
	IP string

	// Port is the HTTP port serving /probes and /ws
	Port int

	// Metadata contains the TXT record data
	// Common fields: "version=1.2.0", "probes=2"
	Metadata map[string]string

	// DiscoveredAt is when the bridge was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the bridge
func (b *Bridge) String() string {
	return fmt.Sprintf("probekit bridge %s (%s) at %s", b.Instance, b.Hostname, b.hostPort())
}

// BaseURL returns the HTTP base URL for the bridge
func (b *Bridge) BaseURL() string {
	return "http://" + b.hostPort()
}

// WebSocketURL returns the URL of the live snapshot stream
func (b *Bridge) WebSocketURL() string {
	return "ws://" + b.hostPort() + "/ws"
}

func (b *Bridge) hostPort() string {
	return net.JoinHostPort(b.IP, strconv.Itoa(b.Port))
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (b *Bridge) GetMetadata(key string) string {
	if b.Metadata == nil {
		return ""
	}
	return b.Metadata[key]
}
