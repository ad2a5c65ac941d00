//go:build integration

package queue_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/academy/internal/domain"
	"github.com/felixgeelhaar/academy/internal/queue"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
)

// setupRabbitMQ creates a RabbitMQ container for testing
func setupRabbitMQ(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := rabbitmq.Run(ctx, "rabbitmq:3.12-management")
	if err != nil {
		t.Fatalf("failed to start RabbitMQ container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	amqpURL, err := container.AmqpURL(ctx)
	if err != nil {
		t.Fatalf("failed to get AMQP URL: %v", err)
	}
	return amqpURL
}

func TestIntegration_Connection_ConnectAndClose(t *testing.T) {
	amqpURL := setupRabbitMQ(t)

	conn, err := queue.NewConnection(amqpURL, "")
	if err != nil {
		t.Fatalf("failed to create connection: %v", err)
	}

	if !conn.IsConnected() {
		t.Error("expected connection to be active")
	}
	if conn.Queue() != queue.DefaultQueueName {
		t.Errorf("Queue() = %q; want %q", conn.Queue(), queue.DefaultQueueName)
	}

	if err := conn.Close(); err != nil {
		t.Errorf("failed to close connection: %v", err)
	}
}

func TestIntegration_Connection_InvalidURL(t *testing.T) {
	if _, err := queue.NewConnection("amqp://invalid:5672", ""); err == nil {
		t.Error("expected error for invalid URL")
	}
}

func TestIntegration_Publisher_QueuesEvents(t *testing.T) {
	amqpURL := setupRabbitMQ(t)

	conn, err := queue.NewConnection(amqpURL, "academy.test")
	if err != nil {
		t.Fatalf("failed to create connection: %v", err)
	}
	defer conn.Close()

	pub := queue.NewPublisher(conn, queue.PublisherConfig{Queue: conn.Queue()})
	pub.Handle(domain.NewLessonCompletedEvent("1.1", 75, 75, false, time.Now()))
	pub.Handle(domain.NewLevelUpEvent("1.2", 1, 2, time.Now()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := pub.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	q, err := conn.Channel().QueueInspect(conn.Queue())
	if err != nil {
		t.Fatalf("failed to inspect queue: %v", err)
	}
	if q.Messages != 2 {
		t.Errorf("expected 2 messages in queue, got %d", q.Messages)
	}
}

func TestIntegration_Consumer_ReceivesActivity(t *testing.T) {
	amqpURL := setupRabbitMQ(t)

	conn, err := queue.NewConnection(amqpURL, "")
	if err != nil {
		t.Fatalf("failed to create connection: %v", err)
	}
	defer conn.Close()

	var (
		mu       sync.Mutex
		received []*queue.ActivityMessage
	)
	done := make(chan struct{})
	consumer := queue.NewConsumer(conn, func(ctx context.Context, msg *queue.ActivityMessage) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, msg)
		if len(received) == 2 {
			close(done)
		}
		return nil
	}, queue.DefaultConsumerConfig())

	ctx := context.Background()
	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("failed to start consumer: %v", err)
	}
	defer consumer.Stop()

	pub := queue.NewPublisher(conn, queue.PublisherConfig{Queue: conn.Queue(), Source: "it"})
	badge := &domain.Achievement{ID: "first-hello", Title: "Primeiro Hello World", XPReward: 25}
	if err := pub.Publish(ctx, domain.NewLessonCompletedEvent("1.1", 75, 75, false, time.Now())); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if err := pub.Publish(ctx, domain.NewAchievementUnlockedEvent(badge, time.Now())); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	_ = pub.Close(ctx)

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for activity")
	}

	mu.Lock()
	defer mu.Unlock()
	if received[0].Subject != "1.1" || received[1].Subject != "first-hello" {
		t.Errorf("received subjects %q, %q", received[0].Subject, received[1].Subject)
	}
	if received[0].Source != "it" {
		t.Errorf("Source = %q; want it", received[0].Source)
	}
}
