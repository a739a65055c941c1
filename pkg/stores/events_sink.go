package stores

import (
	"context"
	"encoding/json"
	"time"

	"github.com/openlaunch/openlaunch/pkg/telemetry"
)

// SubscribeEvents attaches the store to a telemetry event publisher so every
// published workflow event lands in the events table. Persistence failures
// are dropped silently; the event stream must never block a workflow run.
//
// The write context is detached from ctx's cancellation so events delivered
// during the publisher's shutdown drain are still persisted.
func (j *Journal) SubscribeEvents(ctx context.Context, publisher *telemetry.EventPublisher) {
	ctx = context.WithoutCancel(ctx)
	publisher.Subscribe(func(ev telemetry.Event) {
		row := &Event{
			Level:     eventLevel(ev.Level),
			Message:   ev.Message,
			Timestamp: ev.Timestamp,
		}
		if row.Timestamp.IsZero() {
			row.Timestamp = time.Now()
		}
		if ev.ProjectID != "" {
			projectID := ev.ProjectID
			row.ProjectID = &projectID
		}
		if details := eventDetails(ev); details != "" {
			row.Details = &details
		}
		_ = j.store.AppendEvent(ctx, row)
	}, nil)
}

// eventDetails packs the event's type, correlation id, and payload into one
// JSON blob for the details column.
func eventDetails(ev telemetry.Event) string {
	payload := map[string]interface{}{
		"type":   ev.Type,
		"source": ev.Source,
	}
	if ev.Transition != "" {
		payload["transition"] = ev.Transition
	}
	if ev.CorrelationID != "" {
		payload["correlationId"] = ev.CorrelationID
	}
	if len(ev.Data) > 0 {
		payload["data"] = ev.Data
	}
	blob, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	return string(blob)
}

func eventLevel(level string) EventLevel {
	switch level {
	case telemetry.EventLevelWarning:
		return EventLevelWarning
	case telemetry.EventLevelError:
		return EventLevelError
	default:
		return EventLevelInfo
	}
}
