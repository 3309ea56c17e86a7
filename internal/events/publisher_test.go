package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"live-interpreter-service/internal/models"
	"live-interpreter-service/internal/schema"
	"live-interpreter-service/internal/service/transcript"
)

func TestNew_DisabledMode(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"disabled", &Config{Enabled: false, Brokers: []string{"localhost:9092"}}},
		{"no brokers", &Config{Enabled: true, Brokers: []string{}}},
		{"empty brokers", &Config{Enabled: true, Brokers: nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.cfg)
			if p == nil {
				t.Fatal("expected non-nil publisher")
			}
			if p.enabled {
				t.Error("expected publisher to be disabled")
			}
			if p.writerPartial != nil {
				t.Error("expected nil partial writer when disabled")
			}
			if p.writerFinal != nil {
				t.Error("expected nil final writer when disabled")
			}
		})
	}
}

func TestNew_ConfigValues(t *testing.T) {
	cfg := &Config{
		Enabled:      false,
		Brokers:      []string{"localhost:9092"},
		TopicPartial: "test.partial",
		TopicFinal:   "test.final",
		Principal:    "test-principal",
	}

	p := New(cfg)

	if p.principal != "test-principal" {
		t.Errorf("expected principal 'test-principal', got %s", p.principal)
	}
	if p.topicPartial != "test.partial" {
		t.Errorf("expected topic partial 'test.partial', got %s", p.topicPartial)
	}
	if p.topicFinal != "test.final" {
		t.Errorf("expected topic final 'test.final', got %s", p.topicFinal)
	}
}

func TestPublisher_Disabled(t *testing.T) {
	p := New(&Config{Enabled: false})
	ctx := context.Background()

	publishers := map[string]func(context.Context, string, any) error{
		"partial": p.PublishPartial,
		"final":   p.PublishFinal,
	}

	for name, publish := range publishers {
		t.Run(name, func(t *testing.T) {
			if err := publish(ctx, "sess-1", map[string]string{"text": "hola"}); err != nil {
				t.Errorf("expected no error when disabled, got %v", err)
			}
			// channels cannot be marshalled
			if err := publish(ctx, "sess-1", make(chan int)); err == nil {
				t.Error("expected error for unmarshalable event")
			}
		})
	}
}

func TestNewWriter_KeyedBalancer(t *testing.T) {
	w := newWriter([]string{"localhost:9092"}, "interpreter.transcript.final", &kafka.Transport{})
	defer w.Close()

	if w.Topic != "interpreter.transcript.final" {
		t.Errorf("topic = %s", w.Topic)
	}
	if _, ok := w.Balancer.(*kafka.Hash); !ok {
		t.Errorf("expected key hash balancer, got %T", w.Balancer)
	}
}

func TestPublisher_Close_NoWriters(t *testing.T) {
	p := New(&Config{Enabled: false})

	err := p.Close()
	if err != nil {
		t.Errorf("expected no error closing disabled publisher, got %v", err)
	}
}

func TestPublisher_Close_NilPublisher(t *testing.T) {
	p := &Publisher{
		writerPartial: nil,
		writerFinal:   nil,
	}

	err := p.Close()
	if err != nil {
		t.Errorf("expected no error closing publisher with nil writers, got %v", err)
	}
}

func TestPublisher_PublishEntry_Validates(t *testing.T) {
	p := New(&Config{Enabled: false, TopicFinal: "test.final"})

	valid := models.TranscriptEntry{
		ID:           "sess-1-seg-1",
		Speaker:      models.RoleProvider,
		OriginalText: "How are you feeling?",
		Timestamp:    time.Now(),
		IsFinal:      true,
	}
	if err := p.PublishEntry(context.Background(), valid); err != nil {
		t.Errorf("expected no error, got %v", err)
	}

	invalid := valid
	invalid.OriginalText = ""
	if err := p.PublishEntry(context.Background(), invalid); !errors.Is(err, schema.ErrInvalidEvent) {
		t.Errorf("expected ErrInvalidEvent, got %v", err)
	}
}

func TestPublisher_PublishSnapshot_Validates(t *testing.T) {
	p := New(&Config{Enabled: false})

	if err := p.PublishSnapshot(context.Background(), models.PartialUpdate{SessionID: "s", Speaker: models.RolePatient, Timestamp: time.Now()}); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if err := p.PublishSnapshot(context.Background(), models.PartialUpdate{SessionID: "s"}); !errors.Is(err, schema.ErrInvalidEvent) {
		t.Errorf("expected ErrInvalidEvent, got %v", err)
	}
}

func TestPublisher_Relay_StopsWhenLogUnsubscribes(t *testing.T) {
	p := New(&Config{Enabled: false})
	log := transcript.NewLog(8)
	ch, unsubscribe := log.Subscribe()

	done := make(chan struct{})
	go func() {
		p.Relay(context.Background(), ch)
		close(done)
	}()

	log.EmitEntry(models.TranscriptEntry{ID: "s-seg-1", Speaker: models.RoleProvider, OriginalText: "Hi there.", Timestamp: time.Now(), IsFinal: true})
	log.EmitPartial(models.PartialUpdate{SessionID: "s", Speaker: models.RoleProvider, Timestamp: time.Now()})
	log.EmitSpoken(models.SpokenTranslation{EntryID: "s-seg-1"})
	unsubscribe()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Relay did not return after the channel closed")
	}
}

func TestPublisher_Relay_StopsOnContextCancel(t *testing.T) {
	p := New(&Config{Enabled: false})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Relay(ctx, make(chan transcript.Event))
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Relay did not return after cancel")
	}
}
