package soniox

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"live-interpreter-service/internal/models"
	"live-interpreter-service/internal/service/stt"
)

type closeInfo struct {
	code   int
	reason string
}

type testCallback struct {
	mu      sync.Mutex
	batches []models.TokenBatch
	errors  []error
	closed  chan closeInfo
}

func newTestCallback() *testCallback {
	return &testCallback{closed: make(chan closeInfo, 1)}
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
	c.closed <- closeInfo{code, reason}
}

func (c *testCallback) getBatches() []models.TokenBatch {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.TokenBatch{}, c.batches...)
}

func (c *testCallback) getErrors() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]error{}, c.errors...)
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestAdapter_StreamsConfigTokensAndAudio(t *testing.T) {
	configCh := make(chan []byte, 1)
	audioCh := make(chan []byte, 1)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, cfg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		configCh <- cfg

		conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"error_code": 400, "error_message": "bad"}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"tokens":[
			{"text":"Hello.","language":"en","is_final":true},
			{"text":"Hola.","language":"es","translation_status":"translation","is_final":true}]}`))

		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt == websocket.BinaryMessage {
				audioCh <- data
			}
		}
	}))
	defer srv.Close()

	cb := newTestCallback()
	a := New(Config{URL: wsURL(srv), APIKey: "test-key"}, stt.StreamConfig{SourceLanguage: "en", TargetLanguage: "es"})

	if err := a.SendAudio(context.Background(), []byte{1}); !errors.Is(err, stt.ErrNotOpen) {
		t.Errorf("SendAudio before open = %v, want ErrNotOpen", err)
	}
	if err := a.Start(context.Background(), cb); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := a.Start(context.Background(), cb); !errors.Is(err, stt.ErrAlreadyStarted) {
		t.Errorf("second Start = %v, want ErrAlreadyStarted", err)
	}
	waitFor(t, "open", func() bool { return a.State() == stt.StateOpen })

	var req map[string]any
	if err := json.Unmarshal(<-configCh, &req); err != nil {
		t.Fatalf("config is not JSON: %v", err)
	}
	if req["api_key"] != "test-key" || req["model"] != "stt-rt-preview" || req["audio_format"] != "auto" {
		t.Errorf("unexpected config %v", req)
	}
	if req["include_nonfinal"] != true {
		t.Errorf("include_nonfinal = %v", req["include_nonfinal"])
	}
	hints, _ := req["language_hints"].([]any)
	if len(hints) != 1 || hints[0] != "en" {
		t.Errorf("language_hints = %v", req["language_hints"])
	}
	translation, _ := req["translation"].(map[string]any)
	if translation["type"] != "one_way" || translation["target_language"] != "es" {
		t.Errorf("translation = %v", req["translation"])
	}

	waitFor(t, "tokens", func() bool { return len(cb.getBatches()) == 1 })
	batch := cb.getBatches()[0]
	if len(batch.Tokens) != 2 || !batch.Tokens[1].TranslationMarker {
		t.Errorf("unexpected batch %+v", batch)
	}

	if err := a.SendAudio(context.Background(), []byte{1, 2, 3}); err != nil {
		t.Fatalf("SendAudio failed: %v", err)
	}
	select {
	case got := <-audioCh:
		if len(got) != 3 {
			t.Errorf("server got %d bytes", len(got))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("audio not received")
	}

	if err := a.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	select {
	case info := <-cb.closed:
		if info.code != websocket.CloseNormalClosure {
			t.Errorf("close code = %d", info.code)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("OnClose not called")
	}
	<-a.Done()

	if a.State() != stt.StateClosed {
		t.Errorf("State = %s, want CLOSED", a.State())
	}
	if errs := cb.getErrors(); len(errs) != 0 {
		t.Errorf("unexpected errors %v", errs)
	}
	if err := a.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
}

func TestAdapter_RequestWithoutTranslation(t *testing.T) {
	a := New(Config{APIKey: "k"}, stt.StreamConfig{SourceLanguage: "en", TargetLanguage: "en"})
	req := a.Request()
	if req.Translation != nil {
		t.Errorf("translation requested for identical languages: %+v", req.Translation)
	}
	if len(req.LanguageHints) != 1 || req.LanguageHints[0] != "en" {
		t.Errorf("LanguageHints = %v", req.LanguageHints)
	}
}

func TestAdapter_DialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	cb := newTestCallback()
	a := New(Config{URL: wsURL(srv)}, stt.StreamConfig{SourceLanguage: "en", TargetLanguage: "es"})
	if err := a.Start(context.Background(), cb); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	select {
	case info := <-cb.closed:
		if info.code != websocket.CloseAbnormalClosure {
			t.Errorf("close code = %d", info.code)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("OnClose not called")
	}
	if len(cb.getErrors()) != 1 {
		t.Errorf("expected one error, got %v", cb.getErrors())
	}
	if a.State() != stt.StateClosed {
		t.Errorf("State = %s", a.State())
	}
}

func TestAdapter_UnexpectedDrop(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.ReadMessage()
		conn.UnderlyingConn().Close()
	}))
	defer srv.Close()

	cb := newTestCallback()
	a := New(Config{URL: wsURL(srv)}, stt.StreamConfig{SourceLanguage: "es", TargetLanguage: "en"})
	if err := a.Start(context.Background(), cb); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	select {
	case info := <-cb.closed:
		if info.code == websocket.CloseNormalClosure {
			t.Error("abrupt drop reported as normal closure")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("OnClose not called")
	}
	if len(cb.getErrors()) == 0 {
		t.Error("expected an error for the dropped connection")
	}
}

func TestAdapter_CloseBeforeStart(t *testing.T) {
	a := New(Config{}, stt.StreamConfig{SourceLanguage: "en", TargetLanguage: "es"})
	if err := a.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	<-a.Done()

	if a.State() != stt.StateClosed {
		t.Errorf("State = %s", a.State())
	}
	if err := a.Start(context.Background(), newTestCallback()); !errors.Is(err, stt.ErrNotOpen) {
		t.Errorf("Start after Close = %v, want ErrNotOpen", err)
	}
}
