package device

import (
	"time"

	"github.com/home-sentry/core/internal/home"
)

// DefaultSource is the source system tag applied when a device is
// created without one.
const DefaultSource = "home_assistant"

// Device represents a controllable or observable unit, such as a
// thermostat or a presence sensor.
//
// Room is populated on reads when the device is assigned to one.
type Device struct {
	ID        int64      `json:"id"`
	RoomID    *int64     `json:"roomId"`
	Name      string     `json:"name"`
	Kind      string     `json:"kind"`
	Source    string     `json:"source"`
	SourceRef *string    `json:"sourceRef"`
	Room      *home.Room `json:"room,omitempty"`
}

// Signal represents a named telemetry or control channel exposed by a
// device, such as its temperature reading.
type Signal struct {
	ID        int64   `json:"id"`
	DeviceID  int64   `json:"deviceId"`
	Name      string  `json:"name"`
	Unit      *string `json:"unit"`
	ValueType *string `json:"valueType"`
	Category  *string `json:"category"`
}

// SignalState is a timestamped observation of a signal's value. The
// raw value keeps the source's text form; NumericValue is set when the
// raw value parses as a number. ExtraJSON carries any remaining source
// attributes as opaque JSON text.
type SignalState struct {
	ID           int64     `json:"id"`
	SignalID     int64     `json:"signalId"`
	Timestamp    time.Time `json:"timestamp"`
	RawValue     string    `json:"rawValue"`
	NumericValue *float64  `json:"numericValue"`
	ExtraJSON    *string   `json:"extraJson"`
}
