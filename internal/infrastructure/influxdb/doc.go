// Package influxdb forwards recorded signal states to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with connection
// management and non-blocking, batched writes. The forwarder is optional:
// when disabled in configuration the ingest pipeline simply skips it.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package influxdb
