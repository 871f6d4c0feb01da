// Package ble carries the probe transport over Bluetooth Low Energy using
// tinygo.org/x/bluetooth.
//
// An Adapter is both a transport.Scanner and a transport.Dialer. Scanning
// reports manufacturer data tagged with the probe vendor's company
// identifier; the identity of each advertisement is the device address
// string, which Dial accepts once the address has been seen by a scan.
//
// On Linux the adapter talks to BlueZ over D-Bus; the process needs
// permission to use the controller.
package ble
