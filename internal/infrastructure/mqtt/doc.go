// Package mqtt wraps paho.mqtt.golang for the domofon integration
// surface.
//
// MQTT is how home-automation hosts talk to the daemon without the
// local HTTP API: door events and watcher telemetry are published under
// domofon/..., and command topics accept door-open and manual-cycle
// requests. The broker connection is optional; with mqtt.enabled false
// the daemon runs without it.
//
// The wrapper provides connection management with Last Will and
// Testament for offline detection, automatic reconnection with
// re-subscription, and panic-safe message handlers.
package mqtt
