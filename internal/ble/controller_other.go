//go:build !linux

package ble

import "tinygo.org/x/bluetooth"

// controller returns the only controller the platform exposes.
func controller(string) *bluetooth.Adapter {
	return bluetooth.DefaultAdapter
}
