// Package mqtt publishes probe snapshots to an MQTT broker.
//
// Every advertising, status or local-change event is published as JSON to
// <prefix>/<serial>/state with QoS 1. Health transitions (discovered,
// stale, fresh again, removed) go to <prefix>/<serial>/health as retained
// messages so late subscribers see the last known state.
package mqtt
