// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven parts of the engine.
// Each event represents something significant that happened while scoring.
const (
	// Take events
	EventTakeGraded      EventType = "take.graded"
	EventTakeOverwritten EventType = "take.overwritten"

	// Leaderboard events
	EventLeaderboardBuilt EventType = "leaderboard.built"

	// Grading events
	EventScopeGradedWithWinner EventType = "grading.graded_with_winner"
	EventScopeGradedNoWinner   EventType = "grading.graded_no_winner"

	// Achievement events
	EventMilestoneAwarded EventType = "achievement.milestone_awarded"
	EventAwardBatchDone   EventType = "achievement.award_batch_done"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Grading Events
// ═══════════════════════════════════════════════════════════════════════════

// ScopeGradedEvent is emitted when a scope (pack or contest) finishes grading.
// WinnerProfileID is empty for the graded-no-winner terminal state.
type ScopeGradedEvent struct {
	BaseEvent
	ScopeRef        string `json:"scope_ref"`
	WinnerSubject   string `json:"winner_subject,omitempty"`
	WinnerProfileID string `json:"winner_profile_id,omitempty"`
	WinnerPoints    int    `json:"winner_points,omitempty"`
}

// Payload implements Event interface.
func (e ScopeGradedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"scope_ref":         e.ScopeRef,
		"winner_subject":    e.WinnerSubject,
		"winner_profile_id": e.WinnerProfileID,
		"winner_points":     e.WinnerPoints,
	}
}

// NewScopeGradedEvent creates a ScopeGradedEvent for either terminal state.
func NewScopeGradedEvent(scopeRef, winnerSubject, winnerProfileID string, winnerPoints int) ScopeGradedEvent {
	eventType := EventScopeGradedWithWinner
	if winnerSubject == "" {
		eventType = EventScopeGradedNoWinner
	}
	return ScopeGradedEvent{
		BaseEvent:       NewBaseEvent(eventType, scopeRef),
		ScopeRef:        scopeRef,
		WinnerSubject:   winnerSubject,
		WinnerProfileID: winnerProfileID,
		WinnerPoints:    winnerPoints,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Achievement Events
// ═══════════════════════════════════════════════════════════════════════════

// MilestoneAwardedEvent is emitted once per newly created achievement row.
type MilestoneAwardedEvent struct {
	BaseEvent
	ProfileRef     string `json:"profile_ref"`
	AchievementKey string `json:"achievement_key"`
	Threshold      int    `json:"threshold"`
}

// Payload implements Event interface.
func (e MilestoneAwardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"profile_ref":     e.ProfileRef,
		"achievement_key": e.AchievementKey,
		"threshold":       e.Threshold,
	}
}

// NewMilestoneAwardedEvent creates a new MilestoneAwardedEvent.
func NewMilestoneAwardedEvent(profileRef, key string, threshold int) MilestoneAwardedEvent {
	return MilestoneAwardedEvent{
		BaseEvent:      NewBaseEvent(EventMilestoneAwarded, profileRef),
		ProfileRef:     profileRef,
		AchievementKey: key,
		Threshold:      threshold,
	}
}

// AwardBatchDoneEvent is emitted after an award fan-out pass over updated props.
type AwardBatchDoneEvent struct {
	BaseEvent
	PropCount    int  `json:"prop_count"`
	SubjectCount int  `json:"subject_count"`
	CreatedCount int  `json:"created_count"`
	FailedCount  int  `json:"failed_count"`
	Truncated    bool `json:"truncated"`
}

// Payload implements Event interface.
func (e AwardBatchDoneEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"prop_count":    e.PropCount,
		"subject_count": e.SubjectCount,
		"created_count": e.CreatedCount,
		"failed_count":  e.FailedCount,
		"truncated":     e.Truncated,
	}
}

// NewAwardBatchDoneEvent creates a new AwardBatchDoneEvent.
func NewAwardBatchDoneEvent(batchID string, props, subjects, created, failed int, truncated bool) AwardBatchDoneEvent {
	return AwardBatchDoneEvent{
		BaseEvent:    NewBaseEvent(EventAwardBatchDone, batchID),
		PropCount:    props,
		SubjectCount: subjects,
		CreatedCount: created,
		FailedCount:  failed,
		Truncated:    truncated,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Bus Contracts
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to all subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for a specific event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all event types.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
