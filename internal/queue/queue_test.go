package queue_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/academy/internal/domain"
	"github.com/felixgeelhaar/academy/internal/queue"
)

// fakeSender records published documents
type fakeSender struct {
	mu       sync.Mutex
	queues   []string
	messages []*queue.ActivityMessage
	err      error
	block    chan struct{}
}

func (f *fakeSender) PublishJSON(ctx context.Context, name string, data any) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.queues = append(f.queues, name)
	f.messages = append(f.messages, data.(*queue.ActivityMessage))
	return nil
}

var at = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func TestNewActivityMessage(t *testing.T) {
	event := domain.NewLessonCompletedEvent("1.1", 75, 75, false, at)

	msg, err := queue.NewActivityMessage("laptop", event)
	if err != nil {
		t.Fatalf("NewActivityMessage() error = %v", err)
	}
	if msg.ID != event.EventID().String() {
		t.Errorf("ID = %q; want %q", msg.ID, event.EventID())
	}
	if msg.Type != domain.EventLessonCompleted || msg.Subject != "1.1" || msg.Source != "laptop" {
		t.Errorf("msg = %+v", msg)
	}
	if !msg.OccurredAt.Equal(at) {
		t.Errorf("OccurredAt = %v; want %v", msg.OccurredAt, at)
	}

	var payload struct {
		EarnedXP int `json:"earned_xp"`
	}
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if payload.EarnedXP != 75 {
		t.Errorf("payload earned_xp = %d; want 75", payload.EarnedXP)
	}
}

func TestPublisher_ForwardsEventsInOrder(t *testing.T) {
	sender := &fakeSender{}
	pub := queue.NewPublisher(sender, queue.PublisherConfig{Queue: "test.activity"})

	dispatcher := domain.NewEventDispatcher()
	dispatcher.SubscribeAll(pub.Handle)

	badge := &domain.Achievement{ID: "first-hello", Title: "Primeiro Hello World", XPReward: 25}
	dispatcher.PublishAll([]domain.Event{
		domain.NewLessonCompletedEvent("1.1", 75, 75, false, at),
		domain.NewAchievementUnlockedEvent(badge, at),
	})

	if err := pub.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if len(sender.messages) != 2 {
		t.Fatalf("published %d messages; want 2", len(sender.messages))
	}
	if sender.messages[0].Type != domain.EventLessonCompleted || sender.messages[1].Subject != "first-hello" {
		t.Errorf("messages out of order: %s, %s", sender.messages[0].Type, sender.messages[1].Subject)
	}
	for _, q := range sender.queues {
		if q != "test.activity" {
			t.Errorf("queue = %q; want test.activity", q)
		}
	}
	if sent, dropped, failed := pub.Stats(); sent != 2 || dropped != 0 || failed != 0 {
		t.Errorf("Stats() = %d/%d/%d; want 2/0/0", sent, dropped, failed)
	}
}

func TestPublisher_DefaultQueue(t *testing.T) {
	sender := &fakeSender{}
	pub := queue.NewPublisher(sender, queue.PublisherConfig{})

	if err := pub.Publish(context.Background(), domain.NewLessonStartedEvent("1.1", at)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	_ = pub.Close(context.Background())

	if len(sender.queues) != 1 || sender.queues[0] != queue.DefaultQueueName {
		t.Errorf("queues = %v; want [%s]", sender.queues, queue.DefaultQueueName)
	}
	if sender.messages[0].Source != "academyd" {
		t.Errorf("Source = %q; want academyd", sender.messages[0].Source)
	}
}

func TestPublisher_CountsFailures(t *testing.T) {
	sender := &fakeSender{err: errors.New("channel closed")}
	pub := queue.NewPublisher(sender, queue.PublisherConfig{})

	if err := pub.Publish(context.Background(), domain.NewLessonStartedEvent("1.1", at)); err == nil {
		t.Error("Publish() should surface sender errors")
	}

	pub.Handle(domain.NewLessonStartedEvent("1.2", at))
	_ = pub.Close(context.Background())

	if _, _, failed := pub.Stats(); failed != 1 {
		t.Errorf("failed = %d; want 1", failed)
	}
}

func TestPublisher_DropsWhenBufferFull(t *testing.T) {
	sender := &fakeSender{block: make(chan struct{})}
	pub := queue.NewPublisher(sender, queue.PublisherConfig{Buffer: 1})

	for i := 0; i < 5; i++ {
		pub.Handle(domain.NewLessonStartedEvent("1.1", at))
	}

	_, dropped, _ := pub.Stats()
	if dropped < 3 {
		t.Errorf("dropped = %d; want at least 3", dropped)
	}

	close(sender.block)
	if err := pub.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestPublisher_IgnoresEventsAfterClose(t *testing.T) {
	sender := &fakeSender{}
	pub := queue.NewPublisher(sender, queue.PublisherConfig{})
	_ = pub.Close(context.Background())

	pub.Handle(domain.NewLessonStartedEvent("1.1", at))
	if err := pub.Close(context.Background()); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if len(sender.messages) != 0 {
		t.Errorf("published %d messages after close", len(sender.messages))
	}
}

func TestDefaultConsumerConfig(t *testing.T) {
	cfg := queue.DefaultConsumerConfig()
	if cfg.Workers != 1 {
		t.Errorf("Default Workers = %d; want 1", cfg.Workers)
	}
	if cfg.Prefetch <= 0 {
		t.Error("Prefetch should be positive")
	}
}
