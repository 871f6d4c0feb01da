// Package manager keeps track of every probe heard on the air.
//
// A Manager is an explicit arena keyed by serial number. It consumes
// advertisements from a transport.Scanner, creates probes on first sight,
// and sweeps them for staleness. Events from every probe it owns are
// re-published on the manager's own broker alongside EventDiscovered and
// EventRemoved.
//
//	m := manager.New()
//	sub := m.Subscribe(64)
//	go m.Run(ctx, adapter)
//	for ev := range sub.C() {
//	    fmt.Println(ev.Kind, ev.Snapshot.Serial)
//	}
package manager
