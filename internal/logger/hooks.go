package logger

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shyam-habarakada/agent-md/internal/bus"
)

// BridgeLogHook mirrors log entries onto the event bus so the debug API's
// WebSocket clients can follow what the bridge is doing. Trace and debug
// entries are not mirrored; they are too chatty for a live stream.
type BridgeLogHook struct {
	eventBus *bus.EventBus
	source   string
}

// NewBridgeLogHook creates a hook publishing under the given source name.
func NewBridgeLogHook(eventBus *bus.EventBus, source string) *BridgeLogHook {
	return &BridgeLogHook{
		eventBus: eventBus,
		source:   source,
	}
}

// Levels returns the log levels this hook is interested in.
func (h *BridgeLogHook) Levels() []logrus.Level {
	return []logrus.Level{
		logrus.PanicLevel,
		logrus.FatalLevel,
		logrus.ErrorLevel,
		logrus.WarnLevel,
		logrus.InfoLevel,
	}
}

// Fire publishes one log entry as a bridgeLog event.
func (h *BridgeLogHook) Fire(entry *logrus.Entry) error {
	if h.eventBus == nil {
		return nil
	}

	payload := map[string]interface{}{
		"level":     entry.Level.String(),
		"message":   entry.Message,
		"source":    h.source,
		"timestamp": entry.Time.Format(time.RFC3339),
	}

	for key, value := range entry.Data {
		payload[key] = value
	}

	h.eventBus.PublishAsync(bus.EventBridgeLog, payload)
	return nil
}
