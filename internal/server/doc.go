// Package server bridges live probe snapshots to HTTP and websocket clients.
//
// A Server wraps a manager.Manager and exposes:
//
//	GET /probes           JSON array of every tracked probe's snapshot
//	GET /probes/{serial}  one snapshot, 404 when the serial is unknown
//	GET /ws               websocket stream of probe events
//
// # Websocket Stream
//
// On connect the client receives one "snapshot" message per tracked probe,
// followed by a message for every event the manager publishes:
//
//	{"kind":"status","at":"2024-06-01T18:00:00Z","probe":{"serial":"10001234",...}}
//
// Each connection has a single writer goroutine. Writes carry a deadline and
// the server pings every 54 seconds; a client that misses pongs for a minute
// is dropped. A client that cannot keep up loses events rather than stalling
// the manager.
//
// # Usage Example
//
//	m := manager.New()
//	srv := server.New(server.Config{Listen: ":8080"}, m)
//	go m.Run(ctx, adapter)
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
