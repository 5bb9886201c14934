package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteDoorEvent records one door event (opened, open_failed,
// face_matched). The write is non-blocking; a disconnected client drops
// the point.
func (c *Client) WriteDoorEvent(doorUID, address, event string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"door_events",
		map[string]string{
			"door_uid": doorUID,
			"event":    event,
		},
		map[string]interface{}{
			"address": address,
			"count":   1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteMatchDistance records the distance of an accepted face match.
// Distances trend toward the threshold as a reference image ages; this
// series is what tells you to re-enroll a face.
func (c *Client) WriteMatchDistance(doorUID, name string, distance float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"face_matches",
		map[string]string{
			"door_uid": doorUID,
			"name":     name,
		},
		map[string]interface{}{
			"distance": distance,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteCycleDuration records one watcher cycle.
func (c *Client) WriteCycleDuration(doors int, duration time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"watcher_cycles",
		map[string]string{},
		map[string]interface{}{
			"doors":       doors,
			"duration_ms": float64(duration.Milliseconds()),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point for measurements the helpers do not
// cover.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}
