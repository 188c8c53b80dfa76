// Package events publishes analysis lifecycle events to Kafka. The publisher
// is nil-safe: with no brokers configured every publish is a logged no-op, so
// deployments without Kafka need no special casing.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const (
	TypeAnalysisCompleted = "analysis.completed"
	TypeAnalysisFailed    = "analysis.failed"
)

// Event is the envelope published for every finished analysis.
type Event struct {
	EventID    string         `json:"event_id"`
	Type       string         `json:"type"`
	CallID     string         `json:"call_id"`
	RunID      string         `json:"run_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload,omitempty"`
	Error      string         `json:"error,omitempty"`
}

type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes analysis events to one Kafka topic.
type Publisher struct {
	writer kafkaWriter
	log    zerolog.Logger
}

// NewPublisher connects a publisher to the given brokers and topic. Empty
// brokers yield a disabled publisher.
func NewPublisher(brokers []string, topic string, log zerolog.Logger) *Publisher {
	if len(brokers) == 0 || topic == "" {
		log.Info().Msg("kafka publishing disabled")
		return &Publisher{log: log}
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
		},
		log: log.With().Str("component", "events").Logger(),
	}
}

// Completed publishes an analysis.completed event.
func (p *Publisher) Completed(ctx context.Context, callID, runID string, payload map[string]any) error {
	return p.publish(ctx, Event{
		Type:    TypeAnalysisCompleted,
		CallID:  callID,
		RunID:   runID,
		Payload: payload,
	})
}

// Failed publishes an analysis.failed event.
func (p *Publisher) Failed(ctx context.Context, callID, runID, reason string) error {
	return p.publish(ctx, Event{
		Type:   TypeAnalysisFailed,
		CallID: callID,
		RunID:  runID,
		Error:  reason,
	})
}

func (p *Publisher) publish(ctx context.Context, ev Event) error {
	if p == nil || p.writer == nil {
		return nil
	}
	ev.EventID = uuid.NewString()
	ev.OccurredAt = time.Now().UTC()

	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Type, err)
	}
	msg := kafka.Message{
		Key:   []byte(ev.CallID),
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s event: %w", ev.Type, err)
	}
	p.log.Debug().Str("type", ev.Type).Str("call_id", ev.CallID).Msg("event published")
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
