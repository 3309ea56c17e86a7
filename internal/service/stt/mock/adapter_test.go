package mock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"live-interpreter-service/internal/models"
	"live-interpreter-service/internal/service/stt"
)

// testCallback implements stt.Callback for testing
type testCallback struct {
	mu      sync.Mutex
	batches []models.TokenBatch
	errors  []error
	closes  int
}

func (c *testCallback) OnTokens(b models.TokenBatch) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, b)
}

func (c *testCallback) OnError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, err)
}

func (c *testCallback) OnClose(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
}

func (c *testCallback) getBatches() []models.TokenBatch {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.TokenBatch{}, c.batches...)
}

func (c *testCallback) getCloses() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

var enEs = stt.StreamConfig{SourceLanguage: "en", TargetLanguage: "es"}

func fastConfig() Config {
	return Config{
		OpenDelay:     5 * time.Millisecond,
		ResponseDelay: time.Millisecond,
		Utterances:    []Utterance{{"Good morning doctor.", "Buenos días doctor."}},
	}
}

func waitOpen(t *testing.T, a *Adapter) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for a.State() != stt.StateOpen {
		if time.Now().After(deadline) {
			t.Fatal("adapter never opened")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestScript(t *testing.T) {
	steps := Script([]Utterance{{"Good morning doctor.", "Buenos días doctor."}}, enEs)

	if len(steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(steps))
	}
	if tok := steps[0].Tokens[0]; tok.IsFinal || tok.LanguageCode != "en" || tok.Text != " Good morning" {
		t.Errorf("unexpected first step %+v", tok)
	}
	if tok := steps[1].Tokens[0]; !tok.IsFinal || tok.Text != " Good morning doctor." {
		t.Errorf("unexpected final original %+v", tok)
	}
	if tok := steps[1].Tokens[1]; tok.IsFinal || !tok.TranslationMarker || tok.LanguageCode != "es" {
		t.Errorf("unexpected partial translation %+v", tok)
	}
	if tok := steps[2].Tokens[0]; !tok.IsFinal || !tok.TranslationMarker || tok.Text != " Buenos días doctor." {
		t.Errorf("unexpected final translation %+v", tok)
	}
}

func TestAdapter_OpensAfterDelay(t *testing.T) {
	a := New(fastConfig(), enEs)
	if a.State() != stt.StateConnecting {
		t.Fatalf("State = %s, want CONNECTING", a.State())
	}
	if err := a.SendAudio(context.Background(), []byte("audio")); !errors.Is(err, stt.ErrNotOpen) {
		t.Errorf("SendAudio before open = %v", err)
	}

	cb := &testCallback{}
	if err := a.Start(context.Background(), cb); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := a.Start(context.Background(), cb); !errors.Is(err, stt.ErrAlreadyStarted) {
		t.Errorf("second Start = %v", err)
	}
	waitOpen(t, a)
	a.Close()
}

func TestAdapter_SendAudioReplaysScriptInOrder(t *testing.T) {
	a := New(fastConfig(), enEs)
	cb := &testCallback{}
	a.Start(context.Background(), cb)
	waitOpen(t, a)

	for i := 0; i < 3; i++ {
		if err := a.SendAudio(context.Background(), []byte("audio")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	deadline := time.Now().Add(time.Second)
	for len(cb.getBatches()) < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	batches := cb.getBatches()
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	if batches[2].Tokens[0].Text != " Buenos días doctor." {
		t.Errorf("batches out of order: %+v", batches)
	}
	a.Close()
}

func TestAdapter_Close(t *testing.T) {
	a := New(fastConfig(), enEs)
	cb := &testCallback{}
	a.Start(context.Background(), cb)
	waitOpen(t, a)

	if err := a.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("unexpected error on second close: %v", err)
	}
	if a.State() != stt.StateClosed {
		t.Errorf("State = %s", a.State())
	}
	if err := a.SendAudio(context.Background(), []byte("audio")); !errors.Is(err, stt.ErrNotOpen) {
		t.Errorf("SendAudio after close = %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if got := cb.getCloses(); got != 1 {
		t.Errorf("expected 1 close callback, got %d", got)
	}
}

func TestAdapter_CloseBeforeStart(t *testing.T) {
	a := New(fastConfig(), enEs)
	if err := a.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := a.Start(context.Background(), &testCallback{}); !errors.Is(err, stt.ErrNotOpen) {
		t.Errorf("Start after Close = %v", err)
	}
}

func TestAdapter_ContextCancelCloses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a := New(fastConfig(), enEs)
	a.Start(ctx, &testCallback{})
	waitOpen(t, a)

	cancel()
	deadline := time.Now().Add(time.Second)
	for a.State() != stt.StateClosed {
		if time.Now().After(deadline) {
			t.Fatal("adapter did not close on context cancel")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestAdapter_ThreadSafety(t *testing.T) {
	a := New(fastConfig(), enEs)
	a.Start(context.Background(), &testCallback{})
	waitOpen(t, a)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				a.SendAudio(context.Background(), []byte("audio"))
			}
		}()
	}

	wg.Wait()
	a.Close()
}

func TestNewFactory(t *testing.T) {
	f := NewFactory(fastConfig())
	a := f.New(enEs)
	if a.State() != stt.StateConnecting {
		t.Errorf("State = %s", a.State())
	}
}
