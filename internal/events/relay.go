package events

import (
	"context"
	"fmt"
	"time"

	"live-interpreter-service/internal/models"
	"live-interpreter-service/internal/service/segment"
	"live-interpreter-service/internal/service/transcript"
)

// Event types carried in the eventType field and Kafka header.
const (
	EventTypeFinal   = "interpreter.transcript.final"
	EventTypePartial = "interpreter.transcript.partial"
)

// FinalEvent is the payload written to the final topic.
type FinalEvent struct {
	EventType string                 `json:"eventType"`
	SessionID string                 `json:"sessionId"`
	Entry     models.TranscriptEntry `json:"entry"`
	Timestamp int64                  `json:"timestamp"`
}

// PartialEvent is the payload written to the partial topic.
type PartialEvent struct {
	EventType string               `json:"eventType"`
	SessionID string               `json:"sessionId"`
	Partial   models.PartialUpdate `json:"partial"`
	Timestamp int64                `json:"timestamp"`
}

// Relay publishes transcript log events until ch is closed or ctx is done.
// It runs on its own goroutine so Kafka latency never reaches the session loop.
func (p *Publisher) Relay(ctx context.Context, ch <-chan transcript.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := p.publishEvent(ctx, ev); err != nil {
				p.log.Warn().Err(err).Msg("Dropped transcript event")
			}
		}
	}
}

func (p *Publisher) publishEvent(ctx context.Context, ev transcript.Event) error {
	switch {
	case ev.Entry != nil:
		return p.PublishEntry(ctx, *ev.Entry)
	case ev.Partial != nil:
		return p.PublishSnapshot(ctx, *ev.Partial)
	}
	return nil
}

// PublishEntry validates e and writes it to the final topic keyed by session.
func (p *Publisher) PublishEntry(ctx context.Context, e models.TranscriptEntry) error {
	if err := p.validator.Validate(e); err != nil {
		return fmt.Errorf("entry %s: %w", e.ID, err)
	}
	session := segment.SessionOf(e.ID)
	return p.PublishFinal(ctx, session, FinalEvent{
		EventType: EventTypeFinal,
		SessionID: session,
		Entry:     e,
		Timestamp: time.Now().UnixMilli(),
	})
}

// PublishSnapshot validates u and writes it to the partial topic keyed by session.
func (p *Publisher) PublishSnapshot(ctx context.Context, u models.PartialUpdate) error {
	if err := p.validator.Validate(u); err != nil {
		return fmt.Errorf("partial: %w", err)
	}
	return p.PublishPartial(ctx, u.SessionID, PartialEvent{
		EventType: EventTypePartial,
		SessionID: u.SessionID,
		Partial:   u,
		Timestamp: time.Now().UnixMilli(),
	})
}
