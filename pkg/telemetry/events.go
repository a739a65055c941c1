package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event represents a telemetry event in the OpenLaunch system. Data is
// sanitized on publish; subscribers never see credentials or unbounded
// payloads.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Source identifies where the event originated.
	Source string `json:"source"`

	// ProjectID is the associated project, if applicable.
	ProjectID string `json:"project_id,omitempty"`

	// Transition is the associated transition type, if applicable.
	Transition string `json:"transition,omitempty"`

	// CorrelationID is the per-run traceability token, if applicable.
	CorrelationID string `json:"correlation_id,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// Event types emitted at the fixed points of a workflow run.
const (
	EventTypeWorkflowStart         = "workflow-start"
	EventTypeValidationStart       = "validation-start"
	EventTypeFilesystemChecksStart = "filesystem-checks-start"
	EventTypeTransitionStart       = "transition-start"
	EventTypeVerificationStart     = "verification-start"
	EventTypeCleanupStart          = "cleanup-start"
	EventTypeWorkflowSuccess       = "workflow-success"
	EventTypeWorkflowError         = "workflow-error"
	EventTypeRecoveryResult        = "recovery-result"
)

// EventLevel constants for event severity.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher manages event publishing and subscriptions.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	ep := &EventPublisher{
		config:      cfg,
		buffer:      make(chan Event, cfg.BufferSize),
		subscribers: make([]subscriberEntry, 0),
		ctx:         ctx,
		cancel:      cancel,
	}

	if cfg.EnableAsync {
		ep.wg.Add(1)
		go ep.processEvents()
	}

	return ep, nil
}

// Subscribe registers a subscriber; a nil filter receives every event.
func (ep *EventPublisher) Subscribe(sub EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	ep.subscribers = append(ep.subscribers, subscriberEntry{subscriber: sub, filter: filter})
}

// Publish publishes an event to all subscribers. The event's Data map is
// sanitized before delivery.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.Data = Sanitize(event.Data)
	event.Message = Truncate(event.Message)

	if ep.config.EnableAsync {
		select {
		case ep.buffer <- event:
			return nil
		case <-ep.ctx.Done():
			return fmt.Errorf("event publisher stopped")
		default:
			return fmt.Errorf("event buffer full, event dropped")
		}
	}

	ep.deliverEvent(event)
	return nil
}

// processEvents drains the buffer until the publisher is closed.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()
	for {
		select {
		case event := <-ep.buffer:
			ep.deliverEvent(event)
		case <-ep.ctx.Done():
			// Drain what is left so Close does not drop published events.
			for {
				select {
				case event := <-ep.buffer:
					ep.deliverEvent(event)
				default:
					return
				}
			}
		}
	}
}

func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	subs := make([]subscriberEntry, len(ep.subscribers))
	copy(subs, ep.subscribers)
	ep.mu.RUnlock()

	for _, entry := range subs {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Close stops the publisher and waits for the delivery goroutine.
func (ep *EventPublisher) Close() {
	if ep.cancel == nil {
		return
	}
	ep.cancel()
	ep.wg.Wait()
}

// Shutdown stops the publisher, draining buffered events. The context bounds
// how long the drain may take.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if ep.cancel == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		ep.Close()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FilterByLevel returns a filter that matches events of the given level.
func FilterByLevel(level string) EventFilter {
	return func(event Event) bool {
		return event.Level == level
	}
}

// FilterByType returns a filter that matches events of the given type.
func FilterByType(eventType string) EventFilter {
	return func(event Event) bool {
		return event.Type == eventType
	}
}

// FilterByProjectID returns a filter that matches events for one project.
func FilterByProjectID(projectID string) EventFilter {
	return func(event Event) bool {
		return event.ProjectID == projectID
	}
}

// PublishWorkflowEvent emits one of the fixed workflow events.
func (ep *EventPublisher) PublishWorkflowEvent(eventType, transition, projectID, correlationID, message string, data map[string]interface{}) error {
	level := EventLevelInfo
	if eventType == EventTypeWorkflowError {
		level = EventLevelError
	}
	return ep.Publish(Event{
		Type:          eventType,
		Source:        "workflow",
		ProjectID:     projectID,
		Transition:    transition,
		CorrelationID: correlationID,
		Message:       message,
		Level:         level,
		Data:          data,
	})
}

// PublishRecoveryResult emits the outcome of a recovery classification.
func (ep *EventPublisher) PublishRecoveryResult(transition, projectID, strategy string, recovered bool) error {
	level := EventLevelWarning
	if recovered {
		level = EventLevelInfo
	}
	return ep.Publish(Event{
		Type:       EventTypeRecoveryResult,
		Source:     "recovery",
		ProjectID:  projectID,
		Transition: transition,
		Message:    fmt.Sprintf("Recovery strategy %s applied (recovered=%t)", strategy, recovered),
		Level:      level,
		Data: map[string]interface{}{
			"strategy":  strategy,
			"recovered": recovered,
		},
	})
}
