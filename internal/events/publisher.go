// Package events publishes score-change notifications to a Redis Stream so
// downstream consumers (alerting, webhooks, analytics) can react without
// polling the API.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/propplyai/propply-ai-sub002/internal/domain"
)

// Trigger names what caused a recompute.
const (
	TriggerSync    = "sync"
	TriggerDismiss = "dismiss"
	TriggerRestore = "restore"
	TriggerRebuild = "rebuild"
)

// ScoreEvent is emitted once per stored snapshot.
type ScoreEvent struct {
	PropertyID   string    `json:"property_id"`
	OverallScore int       `json:"overall_score"`
	RiskLevel    string    `json:"risk_level"`
	Trigger      string    `json:"trigger"`
	ComputedAt   time.Time `json:"computed_at"`
}

// NewScoreEvent builds the event for a freshly stored snapshot.
func NewScoreEvent(snapshot *domain.ScoreSnapshot, trigger string) *ScoreEvent {
	return &ScoreEvent{
		PropertyID:   snapshot.PropertyID,
		OverallScore: snapshot.OverallScore,
		RiskLevel:    string(snapshot.RiskLevel),
		Trigger:      trigger,
		ComputedAt:   snapshot.ComputedAt,
	}
}

// Publisher abstracts the stream so services can run with events disabled.
type Publisher interface {
	PublishScoreEvent(ctx context.Context, event *ScoreEvent) error
}

// StreamPublisher appends events to a Redis Stream with XADD.
type StreamPublisher struct {
	client *redis.Client
	stream string
}

func NewStreamPublisher(client *redis.Client, stream string) *StreamPublisher {
	return &StreamPublisher{client: client, stream: stream}
}

var _ Publisher = (*StreamPublisher)(nil)

func (p *StreamPublisher) PublishScoreEvent(ctx context.Context, event *ScoreEvent) error {
	jsonBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal score event: %w", err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"data":      string(jsonBytes),
			"timestamp": fmt.Sprintf("%d", event.ComputedAt.Unix()),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish score event: %w", err)
	}
	return nil
}

// NopPublisher drops events. Used when EVENTS_ENABLED is off.
type NopPublisher struct{}

var _ Publisher = (*NopPublisher)(nil)

func (NopPublisher) PublishScoreEvent(context.Context, *ScoreEvent) error { return nil }
