// Package config provides user configuration management for probekit.
//
// This package manages a YAML-based configuration file that stores probe
// nicknames and application preferences such as timeouts, the BLE adapter,
// and the bridge and MQTT settings. The configuration follows OS-specific
// conventions for storage location.
//
// # Configuration File Location
//
// PROBEKIT_CONFIG names the file explicitly. Otherwise it is stored in
// platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/probekit/config.yaml or $HOME/.config/probekit/config.yaml
//   - macOS: $HOME/.config/probekit/config.yaml
//   - Windows: %LOCALAPPDATA%\probekit\config.yaml
//
// # Usage Example
//
//	registry, err := config.GetGlobalRegistry()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	registry.SetProbeNickname("10001234", "Brisket")
//	registry.UpdateProbeLastSeen("10001234", "C2:4A:11:90:3E:07", time.Now())
//
//	if err := registry.Save(); err != nil {
//	    log.Fatal(err)
//	}
//
// Preferences convert directly into the options the probe layer takes:
//
//	m := manager.New(manager.WithProbeOptions(registry.Preferences.ProbeOptions()...))
//	s := probe.NewSession(p, adapter, identity, registry.Preferences.SessionConfig())
//
// Saves go through a temporary file and rename. The global registry is loaded
// once per process.
package config
