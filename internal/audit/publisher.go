// Package audit records token lifecycle events on a Redis stream.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tokenapi/tokenapi/internal/metrics"
)

const (
	// StreamKey is the Redis stream for token lifecycle events.
	StreamKey = "stream:token_events"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000

	// PublishTimeout is the max time to wait for Redis publish.
	PublishTimeout = 100 * time.Millisecond
)

// Event types.
const (
	EventIssued      = "token.issued"
	EventRefreshed   = "token.refreshed"
	EventDeactivated = "token.deactivated"
	EventExpired     = "token.expired"
)

// Event is a token lifecycle transition. Only a key prefix is recorded.
type Event struct {
	Type        string `json:"type"`
	TokenPrefix string `json:"token_prefix"`
	UserID      int64  `json:"user_id"`
	Actor       string `json:"actor,omitempty"`
	At          int64  `json:"t"` // Unix milliseconds
}

// Time returns the event timestamp.
func (e Event) Time() time.Time {
	return time.UnixMilli(e.At).UTC()
}

// Sink accepts audit events without blocking the caller.
type Sink interface {
	PublishAsync(event Event)
}

// Publisher appends audit events to a Redis stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
	pending sync.WaitGroup
}

// NewPublisher creates a new audit event publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "audit.publisher"),
		metrics: recorder,
	}
}

// Publish adds an event to the stream synchronously.
func (p *Publisher) Publish(ctx context.Context, event Event) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	result, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"type":    event.Type,
			"payload": string(data),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	return result, nil
}

// PublishAsync publishes without blocking the caller.
// Errors are logged but not returned (fire-and-forget).
func (p *Publisher) PublishAsync(event Event) {
	p.pending.Add(1)
	go func() {
		defer p.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		defer cancel()

		streamID, err := p.Publish(ctx, event)
		if err != nil {
			p.logger.Warn("failed to publish audit event",
				"type", event.Type,
				"token_prefix", event.TokenPrefix,
				"error", err,
			)
			p.metrics.IncAuditEventPublished("dropped")
			return
		}

		p.logger.Debug("audit event published",
			"type", event.Type,
			"stream_id", streamID,
		)
		p.metrics.IncAuditEventPublished("success")
	}()
}

// Flush waits for in-flight async publishes or until ctx is done.
func (p *Publisher) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Entry is an event read back from the stream.
type Entry struct {
	ID    string `json:"id"`
	Event Event  `json:"event"`
}

// Recent returns up to count events, newest first.
func Recent(ctx context.Context, client *redis.Client, count int64) ([]Entry, error) {
	msgs, err := client.XRevRangeN(ctx, StreamKey, "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("xrevrange: %w", err)
	}

	entries := make([]Entry, 0, len(msgs))
	for _, msg := range msgs {
		event, err := decodeEvent(msg.Values)
		if err != nil {
			continue
		}
		entries = append(entries, Entry{ID: msg.ID, Event: event})
	}
	return entries, nil
}

// Recent returns up to count events from the publisher's stream, newest first.
func (p *Publisher) Recent(ctx context.Context, count int64) ([]Entry, error) {
	return Recent(ctx, p.redis, count)
}

func decodeEvent(values map[string]interface{}) (Event, error) {
	raw, ok := values["payload"].(string)
	if !ok {
		return Event{}, fmt.Errorf("missing payload")
	}
	var event Event
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		return Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return event, nil
}

// Recorder is an in-memory Sink for tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// PublishAsync stores the event synchronously.
func (r *Recorder) PublishAsync(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Recent returns up to count recorded events, newest first.
func (r *Recorder) Recent(_ context.Context, count int64) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := make([]Entry, 0, len(r.events))
	for i := len(r.events) - 1; i >= 0 && int64(len(entries)) < count; i-- {
		entries = append(entries, Entry{ID: fmt.Sprintf("%d-0", i+1), Event: r.events[i]})
	}
	return entries, nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
