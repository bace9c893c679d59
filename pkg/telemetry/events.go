package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one progress event of a provisioning run. Phase and Subject are
// set when the event concerns a single phase or graph subject; Data carries
// counters such as durations and failure reasons.
type Event struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Type      string         `json:"type"`
	RunID     string         `json:"run_id,omitempty"`
	Phase     string         `json:"phase,omitempty"`
	Subject   string         `json:"subject,omitempty"`
	Message   string         `json:"message"`
	Level     string         `json:"level"` // info, warning or error
	Data      map[string]any `json:"data,omitempty"`
}

// Event types.
const (
	EventTypeRunStarted        = "run.started"
	EventTypeRunCompleted      = "run.completed"
	EventTypeRunFailed         = "run.failed"
	EventTypePhaseStarted      = "phase.started"
	EventTypePhaseCompleted    = "phase.completed"
	EventTypeEntityProvisioned = "entity.provisioned"
	EventTypeEntityFailed      = "entity.failed"
	EventTypeLinkCreated       = "link.created"
	EventTypeLinkDropped       = "link.dropped"
	EventTypeWarning           = "warning"
	EventTypePolicyViolation   = "policy.violation"
)

// Event levels, lowest first.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber receives delivered events on the publisher goroutine.
type EventSubscriber func(event Event)

// EventFilter reports whether an event is delivered.
type EventFilter func(event Event) bool

// EventPublisher buffers events and delivers them, in publication order, to
// its subscribers from a single goroutine. A nil *EventPublisher and one
// created with events disabled drop every event.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	wg          sync.WaitGroup
	mu          sync.RWMutex
	closeOnce   sync.Once
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher starts the delivery goroutine unless events are disabled.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}
	if cfg.BufferSize <= 0 {
		return nil, fmt.Errorf("event buffer size must be positive, got %d", cfg.BufferSize)
	}

	ep := &EventPublisher{
		config: cfg,
		buffer: make(chan Event, cfg.BufferSize),
	}

	ep.wg.Add(1)
	go ep.processEvents()

	return ep, nil
}

func (ep *EventPublisher) enabled() bool {
	return ep != nil && ep.buffer != nil
}

// Publish queues an event for delivery. A full buffer drops the event and
// returns an error.
func (ep *EventPublisher) Publish(event Event) (err error) {
	if !ep.enabled() {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	defer func() {
		if recover() != nil {
			err = fmt.Errorf("event publisher stopped")
		}
	}()

	select {
	case ep.buffer <- event:
		return nil
	default:
		return fmt.Errorf("event buffer full, event dropped")
	}
}

// PublishRunStarted publishes a run started event.
func (ep *EventPublisher) PublishRunStarted(runID string) error {
	return ep.Publish(Event{
		Type:    EventTypeRunStarted,
		RunID:   runID,
		Message: fmt.Sprintf("Run %s started", runID),
		Level:   EventLevelInfo,
	})
}

// PublishRunCompleted publishes a run completed event.
func (ep *EventPublisher) PublishRunCompleted(runID, status string, duration time.Duration) error {
	level := EventLevelInfo
	if status != "succeeded" {
		level = EventLevelWarning
	}
	return ep.Publish(Event{
		Type:    EventTypeRunCompleted,
		RunID:   runID,
		Message: fmt.Sprintf("Run %s completed with status: %s", runID, status),
		Level:   level,
		Data: map[string]any{
			"status":   status,
			"duration": duration.Seconds(),
		},
	})
}

// PublishRunFailed publishes a run failed event.
func (ep *EventPublisher) PublishRunFailed(runID, reason string) error {
	return ep.Publish(Event{
		Type:    EventTypeRunFailed,
		RunID:   runID,
		Message: fmt.Sprintf("Run %s failed: %s", runID, reason),
		Level:   EventLevelError,
		Data: map[string]any{
			"reason": reason,
		},
	})
}

// PublishPhaseStarted publishes a phase started event.
func (ep *EventPublisher) PublishPhaseStarted(runID, phase string) error {
	return ep.Publish(Event{
		Type:    EventTypePhaseStarted,
		RunID:   runID,
		Phase:   phase,
		Message: fmt.Sprintf("Phase %s started", phase),
		Level:   EventLevelInfo,
	})
}

// PublishPhaseCompleted publishes a phase completed event.
func (ep *EventPublisher) PublishPhaseCompleted(runID, phase string, duration time.Duration) error {
	return ep.Publish(Event{
		Type:    EventTypePhaseCompleted,
		RunID:   runID,
		Phase:   phase,
		Message: fmt.Sprintf("Phase %s completed", phase),
		Level:   EventLevelInfo,
		Data: map[string]any{
			"duration": duration.Seconds(),
		},
	})
}

// PublishEntityProvisioned publishes an event for a created remote object.
func (ep *EventPublisher) PublishEntityProvisioned(runID, subject, kind, remoteID string) error {
	return ep.Publish(Event{
		Type:    EventTypeEntityProvisioned,
		RunID:   runID,
		Subject: subject,
		Message: fmt.Sprintf("Provisioned %s as %s %s", subject, kind, remoteID),
		Level:   EventLevelInfo,
		Data: map[string]any{
			"kind":      kind,
			"remote_id": remoteID,
		},
	})
}

// PublishEntityFailed publishes a per-entity failure.
func (ep *EventPublisher) PublishEntityFailed(runID, subject, phase, reason string) error {
	return ep.Publish(Event{
		Type:    EventTypeEntityFailed,
		RunID:   runID,
		Phase:   phase,
		Subject: subject,
		Message: fmt.Sprintf("Failed %s: %s", subject, reason),
		Level:   EventLevelError,
		Data: map[string]any{
			"reason": reason,
		},
	})
}

// PublishLinkCreated publishes an event for a created connection.
func (ep *EventPublisher) PublishLinkCreated(runID, source, target, connectionID string) error {
	return ep.Publish(Event{
		Type:    EventTypeLinkCreated,
		RunID:   runID,
		Subject: source,
		Message: fmt.Sprintf("Connected %s -> %s", source, target),
		Level:   EventLevelInfo,
		Data: map[string]any{
			"target":        target,
			"connection_id": connectionID,
		},
	})
}

// PublishLinkDropped publishes an event for a link that was not wired.
func (ep *EventPublisher) PublishLinkDropped(runID, source, target, reason string) error {
	return ep.Publish(Event{
		Type:    EventTypeLinkDropped,
		RunID:   runID,
		Subject: source,
		Message: fmt.Sprintf("Dropped link %s -> %s: %s", source, target, reason),
		Level:   EventLevelWarning,
		Data: map[string]any{
			"target": target,
			"reason": reason,
		},
	})
}

// PublishWarning publishes a non-fatal condition.
func (ep *EventPublisher) PublishWarning(runID, subject, message string) error {
	return ep.Publish(Event{
		Type:    EventTypeWarning,
		RunID:   runID,
		Subject: subject,
		Message: message,
		Level:   EventLevelWarning,
	})
}

// PublishPolicyViolation publishes a denied plan.
func (ep *EventPublisher) PublishPolicyViolation(planID, policyName, reason string) error {
	return ep.Publish(Event{
		Type:    EventTypePolicyViolation,
		Message: fmt.Sprintf("Policy %s denied plan %s: %s", policyName, planID, reason),
		Level:   EventLevelError,
		Data: map[string]any{
			"plan_id": planID,
			"policy":  policyName,
			"reason":  reason,
		},
	})
}

// Subscribe adds a new event subscriber. A nil filter accepts every event.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	if !ep.enabled() {
		return
	}
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// processEvents delivers buffered events until the buffer is closed.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	for event := range ep.buffer {
		ep.deliverEvent(event)
	}
}

func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Shutdown stops accepting events and waits until every buffered event has
// been delivered or ctx is done.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if !ep.enabled() {
		return nil
	}

	ep.closeOnce.Do(func() { close(ep.buffer) })

	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("events not drained: %w", ctx.Err())
	}
}

var levelRank = map[string]int{
	EventLevelInfo:    0,
	EventLevelWarning: 1,
	EventLevelError:   2,
}

// FilterByLevel accepts events at minLevel or above.
func FilterByLevel(minLevel string) EventFilter {
	floor := levelRank[minLevel]
	return func(event Event) bool {
		return levelRank[event.Level] >= floor
	}
}

// FilterByType accepts events of the given types.
func FilterByType(types ...string) EventFilter {
	accepted := make(map[string]struct{}, len(types))
	for _, t := range types {
		accepted[t] = struct{}{}
	}
	return func(event Event) bool {
		_, ok := accepted[event.Type]
		return ok
	}
}
