// Package mqtt wraps paho.mqtt.golang for the Home Assistant ingest pipeline.
//
// It provides connection management with automatic reconnection, Last Will
// and Testament on the system status topic, and subscription tracking so
// handlers are restored after a broker reconnect.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package mqtt
