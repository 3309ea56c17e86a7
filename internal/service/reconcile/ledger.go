package reconcile

import "strings"

// SegmentKey is the dedup identity of a finalized (original, translated) pair.
type SegmentKey string

// Key builds the SegmentKey for a pair of final texts.
func Key(original, translated string) SegmentKey {
	return SegmentKey(strings.TrimSpace(original) + "|" + strings.TrimSpace(translated))
}

// Ledger is the per-session set of emitted segment keys.
// It survives speaker switches and is only emptied by Reset.
type Ledger struct {
	keys map[SegmentKey]struct{}
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{keys: make(map[SegmentKey]struct{})}
}

// Has reports whether k was already emitted.
func (l *Ledger) Has(k SegmentKey) bool {
	_, ok := l.keys[k]
	return ok
}

// Add records k and reports whether it was new. Check and insert happen in one step.
func (l *Ledger) Add(k SegmentKey) bool {
	if _, ok := l.keys[k]; ok {
		return false
	}
	l.keys[k] = struct{}{}
	return true
}

// Len returns the number of recorded keys.
func (l *Ledger) Len() int {
	return len(l.keys)
}

// Reset forgets every key.
func (l *Ledger) Reset() {
	l.keys = make(map[SegmentKey]struct{})
}
