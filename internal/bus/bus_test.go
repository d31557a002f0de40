package bus

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestChannelBus(t *testing.T) {
	bus := NewChannelBus(100)
	defer bus.Close()

	ctx := context.Background()

	t.Run("PublishAndSubscribe", func(t *testing.T) {
		received := make(chan []byte, 1)

		sub, err := bus.Subscribe(ctx, domain.TopicVerificationRequested, func(ctx context.Context, msg *domain.Message) error {
			received <- msg.Payload
			return nil
		})
		if err != nil {
			t.Fatalf("Subscribe failed: %v", err)
		}
		defer sub.Unsubscribe()

		if err := bus.Publish(ctx, domain.TopicVerificationRequested, []byte(`{"requestId":"req-1"}`)); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		select {
		case payload := <-received:
			if string(payload) != `{"requestId":"req-1"}` {
				t.Errorf("unexpected payload: %s", payload)
			}
		case <-time.After(time.Second):
			t.Fatal("message not delivered")
		}
	})

	t.Run("TopicIsolation", func(t *testing.T) {
		var count atomic.Int64

		sub, err := bus.Subscribe(ctx, domain.TopicVerificationCompleted, func(ctx context.Context, msg *domain.Message) error {
			count.Add(1)
			return nil
		})
		if err != nil {
			t.Fatalf("Subscribe failed: %v", err)
		}
		defer sub.Unsubscribe()

		bus.Publish(ctx, domain.TopicVerificationFailed, []byte("x"))
		time.Sleep(50 * time.Millisecond)

		if count.Load() != 0 {
			t.Error("subscriber received a message from another topic")
		}
	})

	t.Run("MultipleSubscribers", func(t *testing.T) {
		var count atomic.Int64
		for i := 0; i < 3; i++ {
			sub, err := bus.Subscribe(ctx, domain.TopicVerificationReview, func(ctx context.Context, msg *domain.Message) error {
				count.Add(1)
				return nil
			})
			if err != nil {
				t.Fatalf("Subscribe failed: %v", err)
			}
			defer sub.Unsubscribe()
		}

		bus.Publish(ctx, domain.TopicVerificationReview, []byte("x"))

		deadline := time.Now().Add(time.Second)
		for count.Load() < 3 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		if count.Load() != 3 {
			t.Errorf("expected 3 deliveries, got %d", count.Load())
		}
	})

	t.Run("SubscriptionTopic", func(t *testing.T) {
		sub, _ := bus.Subscribe(ctx, "some.topic", func(ctx context.Context, msg *domain.Message) error { return nil })
		defer sub.Unsubscribe()
		if sub.Topic() != "some.topic" {
			t.Errorf("Topic() = %q", sub.Topic())
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := bus.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})
}

func TestChannelBusClose(t *testing.T) {
	bus := NewChannelBus(10)
	ctx := context.Background()

	if err := bus.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := bus.Publish(ctx, "topic", []byte("x")); err == nil {
		t.Error("expected publish on closed bus to fail")
	}
	if _, err := bus.Subscribe(ctx, "topic", func(ctx context.Context, msg *domain.Message) error { return nil }); err == nil {
		t.Error("expected subscribe on closed bus to fail")
	}
	if err := bus.Ping(ctx); err == nil {
		t.Error("expected ping on closed bus to fail")
	}

	// Closing twice is fine.
	if err := bus.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestNewFromConfig(t *testing.T) {
	b, err := New(domain.EventBusConfig{Type: "channel", ChannelBufferSize: 10})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer b.Close()

	if err := b.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}

	t.Run("UnknownType", func(t *testing.T) {
		if _, err := New(domain.EventBusConfig{Type: "telegraph"}); err == nil {
			t.Error("expected error for unknown bus type")
		}
	})
}
