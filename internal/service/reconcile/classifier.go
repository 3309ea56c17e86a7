// Package reconcile turns an interleaved stream of source and translation tokens
// into deduplicated bilingual transcript entries.
//
// Nothing in this package is safe for concurrent use. The session event loop owns
// the Engine and drives it one event at a time.
package reconcile

import "live-interpreter-service/internal/models"

// Class is the classification of a token relative to the active language pair.
type Class int

const (
	// ClassUnknown tokens are discarded.
	ClassUnknown Class = iota
	// ClassSource tokens are the active speaker's own speech.
	ClassSource
	// ClassTranslation tokens are the translation of that speech.
	ClassTranslation
)

// String returns the string representation of the class.
func (c Class) String() string {
	switch c {
	case ClassSource:
		return "source"
	case ClassTranslation:
		return "translation"
	default:
		return "unknown"
	}
}

// NormalizeLanguage is models.NormalizeLanguage.
func NormalizeLanguage(code string) string {
	return models.NormalizeLanguage(code)
}

// Classify labels tok for the (source, target) pair of the speaking role.
// The translation marker wins over language equality; an untagged, unmarked
// token is assumed to be the speaker's own language.
func Classify(tok models.Token, source, target string) Class {
	lang := NormalizeLanguage(tok.LanguageCode)
	source = NormalizeLanguage(source)
	target = NormalizeLanguage(target)

	switch {
	case tok.TranslationMarker || (lang != "" && lang == target):
		return ClassTranslation
	case lang != "" && lang == source:
		return ClassSource
	case lang == "":
		return ClassSource
	default:
		return ClassUnknown
	}
}
