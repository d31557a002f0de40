// Package worker provides async verification processing from the EventBus.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/verify"
)

// Worker processes verification requests asynchronously from the EventBus.
type Worker struct {
	bus          domain.EventBus
	orchestrator *verify.Orchestrator
	logger       *slog.Logger

	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, orchestrator *verify.Orchestrator, logger *slog.Logger) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:          bus,
		orchestrator: orchestrator,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start subscribes to the verification request topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicVerificationRequested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	w.logger.Info("worker started", "topic", domain.TopicVerificationRequested)
	return nil
}

// RequestMessage is the message payload announcing a submitted request.
type RequestMessage struct {
	RequestID  string `json:"requestId"`
	CustomerID string `json:"customerId"`
}

// handleMessage runs the pipeline for one announced request.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var reqMsg RequestMessage
	if err := json.Unmarshal(msg.Payload, &reqMsg); err != nil {
		w.logger.Error("failed to parse request message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}
	if reqMsg.RequestID == "" {
		w.logger.Error("request message missing request ID", "message_id", msg.ID)
		return nil
	}

	outcome, err := w.orchestrator.Process(ctx, reqMsg.RequestID)
	if err != nil {
		w.logger.Error("verification processing failed",
			"request_id", reqMsg.RequestID,
			"error", err,
		)
		return err
	}

	w.logger.Info("verification processed",
		"request_id", reqMsg.RequestID,
		"decision", string(outcome.Decision),
		"score", outcome.OverallScore,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			w.logger.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.logger.Info("worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
