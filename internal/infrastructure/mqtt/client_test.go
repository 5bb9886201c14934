package mqtt

import (
	"context"
	"errors"
	"testing"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// ─── Mock Dependencies ───────────────────────────────────────────────

type captureLogger struct {
	errors []string
	warns  []string
}

func (l *captureLogger) Error(msg string, _ ...any) { l.errors = append(l.errors, msg) }
func (l *captureLogger) Warn(msg string, _ ...any)  { l.warns = append(l.warns, msg) }

// fakeMessage implements pahomqtt.Message for handler tests.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 0 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

// ─── Validation ──────────────────────────────────────────────────────

func TestPublishValidation(t *testing.T) {
	client := &Client{}

	tests := []struct {
		name  string
		topic string
		qos   byte
		want  error
	}{
		{"empty topic", "", 0, ErrInvalidTopic},
		{"invalid qos", "domofon/door/x/event", 3, ErrInvalidQoS},
		{"not connected", "domofon/door/x/event", 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Publish(tt.topic, []byte("{}"), tt.qos, false)
			if !errors.Is(err, tt.want) {
				t.Errorf("Publish() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSubscribeValidation(t *testing.T) {
	client := &Client{subscriptions: map[string]subscription{}}
	handler := func(string, []byte) error { return nil }

	tests := []struct {
		name    string
		topic   string
		qos     byte
		handler MessageHandler
		want    error
	}{
		{"empty topic", "", 0, handler, ErrInvalidTopic},
		{"invalid qos", "domofon/door/+/command/open", 5, handler, ErrInvalidQoS},
		{"nil handler", "domofon/door/+/command/open", 1, nil, ErrSubscribeFailed},
		{"not connected", "domofon/door/+/command/open", 1, handler, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Subscribe(tt.topic, tt.qos, tt.handler)
			if !errors.Is(err, tt.want) {
				t.Errorf("Subscribe() error = %v, want %v", err, tt.want)
			}
		})
	}
}

// ─── Lifecycle ───────────────────────────────────────────────────────

func TestCloseNil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on unconnected client error = %v, want nil", err)
	}
}

func TestHealthCheckNotConnected(t *testing.T) {
	client := &Client{}
	err := client.HealthCheck(context.Background())
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestHealthCheckCancelled(t *testing.T) {
	client := &Client{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.HealthCheck(ctx)
	if err == nil || errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want context error", err)
	}
}

// ─── Handler Wrapping ────────────────────────────────────────────────

func TestWrapHandlerRecoversPanic(t *testing.T) {
	log := &captureLogger{}
	client := &Client{}
	client.SetLogger(log)

	wrapped := client.wrapHandler(func(string, []byte) error {
		panic("handler exploded")
	})

	var paho pahomqtt.Client
	wrapped(paho, &fakeMessage{topic: "domofon/door/x/command/open"})

	if len(log.errors) != 1 {
		t.Fatalf("expected one logged panic, got %d", len(log.errors))
	}
}

func TestWrapHandlerLogsErrors(t *testing.T) {
	log := &captureLogger{}
	client := &Client{}
	client.SetLogger(log)

	wrapped := client.wrapHandler(func(string, []byte) error {
		return errors.New("boom")
	})

	var paho pahomqtt.Client
	wrapped(paho, &fakeMessage{topic: "domofon/watcher/command/cycle"})

	if len(log.warns) != 1 {
		t.Fatalf("expected one logged warning, got %d", len(log.warns))
	}
}
