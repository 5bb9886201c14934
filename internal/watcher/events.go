package watcher

import "time"

// EventType classifies watcher events.
type EventType string

const (
	// EventFaceMatched fires when a frame matches a known face,
	// regardless of whether the door can be opened.
	EventFaceMatched EventType = "face_matched"

	// EventDoorOpened fires after a confirmed successful automatic open.
	EventDoorOpened EventType = "door_opened"

	// EventOpenFailed fires when the open command fails; the cooldown is
	// not consumed.
	EventOpenFailed EventType = "open_failed"

	// EventCycleCompleted fires at the end of every cycle.
	EventCycleCompleted EventType = "cycle_completed"
)

// Event is one observable watcher occurrence.
type Event struct {
	Type     EventType
	DoorUID  string
	Address  string
	Name     string
	Distance float64
	Doors    int
	Duration time.Duration
	Error    string
	At       time.Time
}

// Sink receives watcher events. Sinks must not block; slow consumers
// should buffer on their side.
type Sink func(Event)
