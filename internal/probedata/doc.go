// Package probedata defines the decoded data model of a predictive
// temperature probe and the fixed-size codecs for its configuration blocks.
//
// # Temperatures
//
// Each probe carries eight thermistors, T1 at the tip through T8 at the
// handle. A reading is a 13-bit raw value in 0.05 °C steps offset by -20 °C;
// 0x1FFF marks a sensor with no valid reading. Eight readings pack LSB first
// into 13 bytes.
//
// # Configuration Blocks
//
// Alarm thresholds (44 bytes), food-safe configuration (10 bytes), food-safe
// status (8 bytes) and thermometer preferences (1 byte) each have a
// FromBytes decoder over a fixed-size array and a Bytes encoder. Decoders
// never fail: reserved or unknown sub-field values resolve to a documented
// default variant so one odd field cannot reject a whole payload.
//
// # Derived Values
//
// ComputeVirtual, PredictionProgress and FoodSafeProgress are pure functions
// over decoded values.
package probedata
