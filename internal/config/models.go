package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/muurk/probekit/internal/probe"
)

// currentVersion is the only config file layout understood.
const currentVersion = 1

// Registry represents the entire user configuration file.
// This stores user-defined metadata for probes and application preferences.
type Registry struct {
	Version     int                   `yaml:"version"`
	Probes      map[string]*ProbeMeta `yaml:"probes,omitempty"` // Keyed by probe serial number
	Preferences *Preferences          `yaml:"preferences,omitempty"`
}

// ProbeMeta represents user-defined metadata for a single probe.
// This is keyed by the probe's serial number in the Registry.
type ProbeMeta struct {
	Nickname     string    `yaml:"nickname,omitempty"`      // User-friendly name
	LastIdentity string    `yaml:"last_identity,omitempty"` // Last transport address
	LastSeen     time.Time `yaml:"last_seen,omitempty"`     // Last scan or connection time
}

// Preferences represents application-wide user preferences. Durations are
// written as Go duration strings ("15s").
type Preferences struct {
	Adapter           string        `yaml:"adapter,omitempty"`   // BLE controller, e.g. hci0
	LogLevel          string        `yaml:"log_level,omitempty"` // debug, info, warn or error
	ScanTimeout       time.Duration `yaml:"scan_timeout"`
	StaleTimeout      time.Duration `yaml:"stale_timeout"`
	GracePeriod       time.Duration `yaml:"grace_period"`
	ConnectAttempts   int           `yaml:"connect_attempts"`
	ConnectRetryDelay time.Duration `yaml:"connect_retry_delay"`
	ResponseTimeout   time.Duration `yaml:"response_timeout"`
	Server            *ServerPrefs  `yaml:"server,omitempty"`
	MQTT              *MQTTPrefs    `yaml:"mqtt,omitempty"`
}

// ServerPrefs configures the snapshot bridge.
type ServerPrefs struct {
	Listen   string `yaml:"listen"`   // host:port for HTTP and websocket
	Announce bool   `yaml:"announce"` // Advertise over mDNS
}

// MQTTPrefs configures the snapshot publisher. An empty broker disables it.
type MQTTPrefs struct {
	Broker      string `yaml:"broker,omitempty"` // e.g. tcp://localhost:1883
	ClientID    string `yaml:"client_id,omitempty"`
	TopicPrefix string `yaml:"topic_prefix,omitempty"`
}

// Default preference values.
const (
	DefaultScanTimeout = 10 * time.Second
	DefaultListen      = ":8080"
)

// DefaultPreferences returns the preferences used when the file has none.
func DefaultPreferences() *Preferences {
	return &Preferences{
		ScanTimeout:       DefaultScanTimeout,
		StaleTimeout:      probe.DefaultStaleTimeout,
		GracePeriod:       probe.DefaultGracePeriod,
		ConnectAttempts:   probe.DefaultMaxAttempts,
		ConnectRetryDelay: probe.DefaultRetryDelay,
		ResponseTimeout:   probe.DefaultResponseTimeout,
		Server: &ServerPrefs{
			Listen:   DefaultListen,
			Announce: true,
		},
	}
}

// applyDefaults fills zero values left out of a config file.
func (p *Preferences) applyDefaults() {
	d := DefaultPreferences()
	if p.ScanTimeout == 0 {
		p.ScanTimeout = d.ScanTimeout
	}
	if p.StaleTimeout == 0 {
		p.StaleTimeout = d.StaleTimeout
	}
	if p.GracePeriod == 0 {
		p.GracePeriod = d.GracePeriod
	}
	if p.ConnectAttempts == 0 {
		p.ConnectAttempts = d.ConnectAttempts
	}
	if p.ConnectRetryDelay == 0 {
		p.ConnectRetryDelay = d.ConnectRetryDelay
	}
	if p.ResponseTimeout == 0 {
		p.ResponseTimeout = d.ResponseTimeout
	}
	if p.Server == nil {
		p.Server = d.Server
	}
	if p.Server.Listen == "" {
		p.Server.Listen = DefaultListen
	}
}

// Validate rejects non-positive timeouts and attempt counts.
func (p *Preferences) Validate() error {
	var errs []error
	positive := []struct {
		name string
		v    time.Duration
	}{
		{"scan_timeout", p.ScanTimeout},
		{"stale_timeout", p.StaleTimeout},
		{"grace_period", p.GracePeriod},
		{"connect_retry_delay", p.ConnectRetryDelay},
		{"response_timeout", p.ResponseTimeout},
	}
	for _, f := range positive {
		if f.v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", f.name, f.v))
		}
	}
	if p.ConnectAttempts <= 0 {
		errs = append(errs, fmt.Errorf("connect_attempts must be positive, got %d", p.ConnectAttempts))
	}
	switch p.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log_level %q", p.LogLevel))
	}
	return errors.Join(errs...)
}

// ProbeOptions returns the reconciler settings for new probes.
func (p *Preferences) ProbeOptions() []probe.Option {
	return []probe.Option{
		probe.WithStaleTimeout(p.StaleTimeout),
		probe.WithGracePeriod(p.GracePeriod),
	}
}

// SessionConfig returns the connection settings for new sessions.
func (p *Preferences) SessionConfig() probe.SessionConfig {
	return probe.SessionConfig{
		MaxAttempts:     p.ConnectAttempts,
		RetryDelay:      p.ConnectRetryDelay,
		ResponseTimeout: p.ResponseTimeout,
	}
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     currentVersion,
		Probes:      make(map[string]*ProbeMeta),
		Preferences: DefaultPreferences(),
	}
}

// GetProbe retrieves probe metadata by serial number.
// Returns nil if the probe doesn't exist in the registry.
func (r *Registry) GetProbe(serial string) *ProbeMeta {
	return r.Probes[serial]
}

// EnsureProbe ensures a probe entry exists in the registry.
func (r *Registry) EnsureProbe(serial string) *ProbeMeta {
	if r.Probes == nil {
		r.Probes = make(map[string]*ProbeMeta)
	}
	if meta, exists := r.Probes[serial]; exists {
		return meta
	}
	meta := &ProbeMeta{}
	r.Probes[serial] = meta
	return meta
}

// UpdateProbeLastSeen records when and where a probe was last heard.
func (r *Registry) UpdateProbeLastSeen(serial, identity string, at time.Time) {
	meta := r.EnsureProbe(serial)
	meta.LastSeen = at
	meta.LastIdentity = identity
}

// SetProbeNickname sets a user-friendly nickname for a probe. An empty
// nickname clears it.
func (r *Registry) SetProbeNickname(serial, nickname string) {
	meta := r.EnsureProbe(serial)
	meta.Nickname = nickname
}

// Nickname returns the nickname of serial, or "" when none is set.
func (r *Registry) Nickname(serial string) string {
	if meta := r.Probes[serial]; meta != nil {
		return meta.Nickname
	}
	return ""
}

// Nicknames returns every non-empty nickname keyed by serial.
func (r *Registry) Nicknames() map[string]string {
	out := make(map[string]string)
	for serial, meta := range r.Probes {
		if meta != nil && meta.Nickname != "" {
			out[serial] = meta.Nickname
		}
	}
	return out
}
