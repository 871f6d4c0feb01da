//go:build linux

package ble

import "tinygo.org/x/bluetooth"

// controller selects a BlueZ controller by HCI name.
func controller(name string) *bluetooth.Adapter {
	if name == DefaultAdapterName {
		return bluetooth.DefaultAdapter
	}
	return bluetooth.NewAdapter(name)
}
