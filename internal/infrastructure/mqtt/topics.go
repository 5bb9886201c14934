package mqtt

import "fmt"

// Topic prefixes for the domofon MQTT surface.
//
// Door topics use the scheme: domofon/door/{uid}/{category}.
// Door uids contain colons (scope:mac:doorId); colons are legal in MQTT
// topic levels, so uids pass through unmodified.
const (
	// TopicPrefix is the base for all domofon topics.
	TopicPrefix = "domofon"

	// TopicPrefixDoor is the base for per-door topics.
	TopicPrefixDoor = "domofon/door"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "domofon/system"

	// TopicPrefixWatcher is the base for watcher topics.
	TopicPrefixWatcher = "domofon/watcher"
)

// Topics provides builders for domofon MQTT topics. Using these helpers
// keeps topic naming consistent across publisher and subscribers.
type Topics struct{}

// SystemStatus returns the daemon online/offline status topic. Status
// messages are retained; the LWT publishes here on unexpected death.
//
// Example: domofon/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// DoorEvent returns the topic for events of one door (face matched,
// opened, open failed).
//
// Example: domofon/door/900111:08:13:CD:00:0D:7F:1/event
func (Topics) DoorEvent(uid string) string {
	return fmt.Sprintf("%s/%s/event", TopicPrefixDoor, uid)
}

// DoorCommand returns the command topic of one door. Publishing any
// payload requests an open.
//
// Example: domofon/door/900111:08:13:CD:00:0D:7F:1/command/open
func (Topics) DoorCommand(uid string) string {
	return fmt.Sprintf("%s/%s/command/open", TopicPrefixDoor, uid)
}

// AllDoorCommands returns the wildcard subscription matching every
// door's open command topic.
func (Topics) AllDoorCommands() string {
	return TopicPrefixDoor + "/+/command/open"
}

// WatcherEvent returns the topic for watcher cycle telemetry.
//
// Example: domofon/watcher/event
func (Topics) WatcherEvent() string {
	return TopicPrefixWatcher + "/event"
}

// WatcherCommand returns the topic that triggers one manual watcher
// cycle.
//
// Example: domofon/watcher/command/cycle
func (Topics) WatcherCommand() string {
	return TopicPrefixWatcher + "/command/cycle"
}

// DoorUIDFromCommandTopic extracts the door uid from a door command
// topic. Returns false when the topic does not match the scheme.
func DoorUIDFromCommandTopic(topic string) (string, bool) {
	const prefix = TopicPrefixDoor + "/"
	const suffix = "/command/open"
	if len(topic) <= len(prefix)+len(suffix) {
		return "", false
	}
	if topic[:len(prefix)] != prefix || topic[len(topic)-len(suffix):] != suffix {
		return "", false
	}
	return topic[len(prefix) : len(topic)-len(suffix)], true
}
