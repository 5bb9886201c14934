package mqtt

import "testing"

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}
	uid := "9001112233:08:13:CD:00:0D:7F:1"

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"system status", topics.SystemStatus(), "domofon/system/status"},
		{"door event", topics.DoorEvent(uid), "domofon/door/" + uid + "/event"},
		{"door command", topics.DoorCommand(uid), "domofon/door/" + uid + "/command/open"},
		{"all door commands", topics.AllDoorCommands(), "domofon/door/+/command/open"},
		{"watcher event", topics.WatcherEvent(), "domofon/watcher/event"},
		{"watcher command", topics.WatcherCommand(), "domofon/watcher/command/cycle"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestDoorUIDFromCommandTopic(t *testing.T) {
	uid := "9001112233:08:13:CD:00:0D:7F:1"

	got, ok := DoorUIDFromCommandTopic("domofon/door/" + uid + "/command/open")
	if !ok || got != uid {
		t.Errorf("DoorUIDFromCommandTopic() = %q, %v", got, ok)
	}

	bad := []string{
		"domofon/door//command/open",
		"domofon/watcher/command/cycle",
		"other/door/x/command/open",
		"domofon/door/x/command/close",
		"",
	}
	for _, topic := range bad {
		if _, ok := DoorUIDFromCommandTopic(topic); ok {
			t.Errorf("DoorUIDFromCommandTopic(%q) matched, want no match", topic)
		}
	}
}
