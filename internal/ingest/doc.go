// Package ingest records Home Assistant MQTT traffic as signal states.
//
// The pipeline subscribes to a topic tree such as homeassistant/# where each
// message carries one attribute of one entity
// (homeassistant/<domain>/<entity>/<attribute>). Attribute updates for an
// entity are merged into an in-memory cache and debounced, so a burst of
// messages for the same entity collapses into a single recorded state. A
// flush auto-provisions the device and its "state" signal on first sight,
// then appends one signal_states row.
//
// Ingest writes are telemetry, not management mutations, and deliberately
// bypass the audit trail.
package ingest
