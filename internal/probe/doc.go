// Package probe reconciles everything known about one physical probe into a
// single snapshot.
//
// Two independent streams feed a Probe: broadcast advertisements, which
// arrive whether or not a session is open, and status notifications, which
// arrive only while a Session is connected. Both are applied under one lock
// with a fixed precedence policy:
//
//   - Temperatures, mode, battery and overheat are always overwritten.
//   - ID and colour are ignored for a grace period after a local set, so a
//     broadcast that predates a SetID command cannot undo it.
//   - Optional status sections (food safe, alarms, preferences) are additive:
//     a payload without a section leaves the last known value in place.
//
// Readers never see the live state. Snapshot returns a deep copy, and
// Subscribe delivers copies on a channel until the Subscription is closed.
//
// # Usage Example
//
//	p := probe.New(serial)
//	sub := p.Subscribe(16)
//	defer sub.Close()
//
//	sess := probe.NewSession(p, dialer, identity)
//	if err := sess.Connect(ctx); err != nil {
//	    return err
//	}
//	defer sess.Disconnect()
//
//	for ev := range sub.C() {
//	    fmt.Println(ev.Kind, ev.Snapshot.Virtual.Core)
//	}
package probe
