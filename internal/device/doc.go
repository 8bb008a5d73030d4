// Package device provides devices, their telemetry signals, and
// recorded signal states.
//
// A Device optionally belongs to a Room and owns Signals; each Signal
// accumulates timestamped SignalState rows. Device management goes
// through the Service, which audits every mutation. Signals and states
// are written by the MQTT ingest pipeline and read back over the API,
// so they stay at the repository level.
package device
