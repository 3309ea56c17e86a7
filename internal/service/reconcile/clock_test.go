package reconcile

import (
	"time"

	"live-interpreter-service/internal/models"
)

// manualClock fires timers only when Advance is called.
type manualClock struct {
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time { return c.now }

func (c *manualClock) AfterFunc(d time.Duration, fn func()) Timer {
	t := &manualTimer{at: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward and fires due timers in deadline order.
func (c *manualClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
	for {
		var next *manualTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at.After(c.now) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			return
		}
		next.fired = true
		next.fn()
	}
}

type recordingEmitter struct {
	entries  []models.TranscriptEntry
	partials []models.PartialUpdate
}

func (r *recordingEmitter) EmitEntry(e models.TranscriptEntry)  { r.entries = append(r.entries, e) }
func (r *recordingEmitter) EmitPartial(p models.PartialUpdate) { r.partials = append(r.partials, p) }

type spoken struct {
	entry    models.TranscriptEntry
	language string
}

type chanSpeaker struct {
	ch chan spoken
}

func (s *chanSpeaker) Speak(e models.TranscriptEntry, language string) {
	s.ch <- spoken{entry: e, language: language}
}

func src(text string, final bool) models.Token {
	return models.Token{Text: text, LanguageCode: "en", IsFinal: final}
}

func tr(text string, final bool) models.Token {
	return models.Token{Text: text, LanguageCode: "es", IsFinal: final, TranslationMarker: true}
}

func patientSrc(text string, final bool) models.Token {
	return models.Token{Text: text, LanguageCode: "es", IsFinal: final}
}

func patientTr(text string, final bool) models.Token {
	return models.Token{Text: text, LanguageCode: "en", IsFinal: final, TranslationMarker: true}
}
