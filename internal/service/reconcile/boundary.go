package reconcile

import "strings"

// sentenceTerminals are the characters treated as the end of a complete thought.
const sentenceTerminals = ".!?…"

// IsCandidate reports whether either final stream ends in terminal punctuation.
// This is a heuristic biased toward finalizing early, not sentence detection.
func IsCandidate(b *Buffer) bool {
	return endsSentence(b.FinalOriginal) || endsSentence(b.FinalTranslated)
}

func endsSentence(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	r := []rune(s)
	return strings.ContainsRune(sentenceTerminals, r[len(r)-1])
}
