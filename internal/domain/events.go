package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event type names
const (
	EventLessonCompleted     = "lesson.completed"
	EventAchievementUnlocked = "achievement.unlocked"
	EventLevelUp             = "level.up"
	EventLessonStarted       = "lesson.started"
)

// Event represents a domain event
type Event interface {
	// EventID returns the unique identifier for this event
	EventID() uuid.UUID
	// EventType returns the type name of this event
	EventType() string
	// OccurredAt returns when this event occurred
	OccurredAt() time.Time
	// Subject returns the id of the lesson or achievement the event concerns
	Subject() string
}

// BaseEvent provides common event fields
type BaseEvent struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	SubjectID string    `json:"subject"`
}

// NewBaseEvent creates a new BaseEvent
func NewBaseEvent(eventType, subject string, at time.Time) BaseEvent {
	if at.IsZero() {
		at = time.Now()
	}
	return BaseEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Timestamp: at,
		SubjectID: subject,
	}
}

func (e BaseEvent) EventID() uuid.UUID    { return e.ID }
func (e BaseEvent) EventType() string     { return e.Type }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }
func (e BaseEvent) Subject() string       { return e.SubjectID }

// EventHandler processes domain events
type EventHandler func(event Event)

// EventDispatcher manages event subscriptions and publishing
type EventDispatcher struct {
	mu          sync.RWMutex
	handlers    map[string][]EventHandler
	allHandlers []EventHandler
}

// NewEventDispatcher creates a new event dispatcher
func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{
		handlers: make(map[string][]EventHandler),
	}
}

// Subscribe registers a handler for a specific event type
func (d *EventDispatcher) Subscribe(eventType string, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], handler)
}

// SubscribeAll registers a handler for all event types
func (d *EventDispatcher) SubscribeAll(handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.allHandlers = append(d.allHandlers, handler)
}

// Publish dispatches an event to all registered handlers
func (d *EventDispatcher) Publish(event Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, h := range d.handlers[event.EventType()] {
		h(event)
	}
	for _, h := range d.allHandlers {
		h(event)
	}
}

// PublishAll dispatches multiple events in order
func (d *EventDispatcher) PublishAll(events []Event) {
	for _, event := range events {
		d.Publish(event)
	}
}

// LessonCompletedEvent is published when all tests of a lesson pass
type LessonCompletedEvent struct {
	BaseEvent
	LessonID string `json:"lesson_id"`
	EarnedXP int    `json:"earned_xp"`
	TotalXP  int    `json:"total_xp"`
	Repeat   bool   `json:"repeat"`
}

// NewLessonCompletedEvent creates a new lesson completed event
func NewLessonCompletedEvent(lessonID string, earnedXP, totalXP int, repeat bool, at time.Time) LessonCompletedEvent {
	return LessonCompletedEvent{
		BaseEvent: NewBaseEvent(EventLessonCompleted, lessonID, at),
		LessonID:  lessonID,
		EarnedXP:  earnedXP,
		TotalXP:   totalXP,
		Repeat:    repeat,
	}
}

// AchievementUnlockedEvent is published when a badge is granted
type AchievementUnlockedEvent struct {
	BaseEvent
	AchievementID string `json:"achievement_id"`
	Title         string `json:"title"`
	XPReward      int    `json:"xp_reward"`
}

// NewAchievementUnlockedEvent creates a new achievement unlocked event
func NewAchievementUnlockedEvent(a *Achievement, at time.Time) AchievementUnlockedEvent {
	return AchievementUnlockedEvent{
		BaseEvent:     NewBaseEvent(EventAchievementUnlocked, a.ID, at),
		AchievementID: a.ID,
		Title:         a.Title,
		XPReward:      a.XPReward,
	}
}

// LevelUpEvent is published when the learner's level increases
type LevelUpEvent struct {
	BaseEvent
	OldLevel int `json:"old_level"`
	NewLevel int `json:"new_level"`
}

// NewLevelUpEvent creates a new level up event
func NewLevelUpEvent(lessonID string, oldLevel, newLevel int, at time.Time) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, lessonID, at),
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
	}
}

// LessonStartedEvent is published when the learner opens a lesson
type LessonStartedEvent struct {
	BaseEvent
	LessonID string `json:"lesson_id"`
}

// NewLessonStartedEvent creates a new lesson started event
func NewLessonStartedEvent(lessonID string, at time.Time) LessonStartedEvent {
	return LessonStartedEvent{
		BaseEvent: NewBaseEvent(EventLessonStarted, lessonID, at),
		LessonID:  lessonID,
	}
}
