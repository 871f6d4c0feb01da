// Package discovery announces and finds probekit bridges with mDNS.
//
// A bridge (probekit serve) registers itself as a "_probekit._tcp" service
// so that other machines on the network can find its HTTP and websocket
// endpoints without configuration.
//
// # Usage Example
//
//	// Advertise a bridge until ctx is cancelled
//	go discovery.Announce(ctx, "kitchen", 8080, "version=1.0.0")
//
//	// Find bridges elsewhere on the network
//	bridges, err := discovery.Browse(ctx, 5*time.Second)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, b := range bridges {
//	    fmt.Println(b.Instance, b.WebSocketURL())
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Bridges must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
