// Package influxdb wraps the InfluxDB v2 client for domofon telemetry.
//
// Telemetry is optional (disabled by default) and strictly fire and
// forget: writes are non-blocking and batched, and a down InfluxDB
// never affects the door path. Recorded series cover door events,
// face-match distances and watcher cycle durations.
package influxdb
