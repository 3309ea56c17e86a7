package reconcile

import (
	"strings"
	"time"

	"live-interpreter-service/internal/models"
)

// Buffer accumulates one speaker's text between finalizations.
type Buffer struct {
	FinalOriginal       string
	FinalTranslated     string
	PartialOriginal     string
	PartialTranslated   string
	SawSourceSinceReset bool
	LastUpdate          time.Time

	timer    Timer
	timerGen uint64
}

// ApplyResult summarizes what a single Apply call did.
type ApplyResult struct {
	Source      int
	Translation int
	Discarded   int
	// StaleTranslations counts translation tokens dropped for lack of source context.
	StaleTranslations int
}

// Apply folds one message worth of tokens into the buffer.
//
// Final text is appended. Partial text is recomputed from this message alone and
// replaces the previous partial, since non-final tokens are the recognizer's current
// guess for the whole unfinalized span. Translation tokens are accepted only when
// source speech has been seen since the last reset or appears in the same message.
func (b *Buffer) Apply(tokens []models.Token, source, target string, now time.Time) ApplyResult {
	var res ApplyResult
	classes := make([]Class, len(tokens))
	sourceInMessage := false
	for i, tok := range tokens {
		classes[i] = Classify(tok, source, target)
		if classes[i] == ClassSource && strings.TrimSpace(tok.Text) != "" {
			sourceInMessage = true
		}
	}
	hasContext := b.SawSourceSinceReset || sourceInMessage

	var finalOrig, finalTrans, partialOrig, partialTrans strings.Builder
	for i, tok := range tokens {
		if tok.Text == "" {
			continue
		}
		switch classes[i] {
		case ClassSource:
			res.Source++
			if tok.IsFinal {
				finalOrig.WriteString(tok.Text)
			} else {
				partialOrig.WriteString(tok.Text)
			}
		case ClassTranslation:
			if !hasContext {
				res.StaleTranslations++
				continue
			}
			res.Translation++
			if tok.IsFinal {
				finalTrans.WriteString(tok.Text)
			} else {
				partialTrans.WriteString(tok.Text)
			}
		default:
			res.Discarded++
		}
	}

	if sourceInMessage {
		b.SawSourceSinceReset = true
	}
	if s := finalOrig.String(); strings.TrimSpace(s) != "" {
		b.FinalOriginal += s
		b.LastUpdate = now
	}
	if s := finalTrans.String(); strings.TrimSpace(s) != "" {
		b.FinalTranslated += s
		b.LastUpdate = now
	}
	b.PartialOriginal = partialOrig.String()
	b.PartialTranslated = partialTrans.String()
	return res
}

// Committed returns the trimmed final texts.
func (b *Buffer) Committed() (original, translated string) {
	return strings.TrimSpace(b.FinalOriginal), strings.TrimSpace(b.FinalTranslated)
}

// Reset clears the text fields and the source-seen flag. The pending timer is
// left to the caller, which must cancel it first.
func (b *Buffer) Reset() {
	b.FinalOriginal = ""
	b.FinalTranslated = ""
	b.PartialOriginal = ""
	b.PartialTranslated = ""
	b.SawSourceSinceReset = false
}

// cancel stops the pending timer, if any, and invalidates its generation.
func (b *Buffer) cancel() bool {
	b.timerGen++
	if b.timer == nil {
		return false
	}
	stopped := b.timer.Stop()
	b.timer = nil
	return stopped
}

// pending reports whether a debounce timer is armed.
func (b *Buffer) pending() bool {
	return b.timer != nil
}
