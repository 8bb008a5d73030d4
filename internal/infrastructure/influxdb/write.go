package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteSignalMetric records a numeric signal value against its device.
//
// deviceRef is the device's source reference (e.g. "sensor.hall_temp"),
// signal is the signal name (usually "state"). The write is non-blocking;
// data is batched and sent asynchronously.
func (c *Client) WriteSignalMetric(deviceRef, signal string, value float64) {
	c.WritePointWithTime("signal_states",
		map[string]string{
			"device_ref": deviceRef,
			"signal":     signal,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)
}

// WritePointWithTime writes a custom point with a specific timestamp.
// Use this when the sample time is not "now" (e.g. debounced readings).
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
