package ocr

import (
	"regexp"
	"strings"
)

var (
	whitespaceRe  = regexp.MustCompile(`\s+`)
	lowerUpperRe  = regexp.MustCompile(`([a-z])([A-Z])`)
	digitLetterRe = regexp.MustCompile(`([0-9])([A-Za-z])`)
	letterDigitRe = regexp.MustCompile(`([A-Za-z])([0-9])`)
	sentenceRe    = regexp.MustCompile(`([.!?])\s*([A-Z])`)
	clauseRe      = regexp.MustCompile(`([,;:])\s*(\S)`)
	disallowedRe  = regexp.MustCompile(`[^\w\s.,;:!?'"()\[\]{}/@#$%&*+=<>-]+`)
)

// Clean normalizes raw OCR output: it collapses whitespace, repairs
// run-together word boundaries, fixes spacing around punctuation, and drops
// noise glyphs outside the allowed character set. Clean is idempotent.
func Clean(text string) string {
	if text == "" {
		return ""
	}

	s := whitespaceRe.ReplaceAllString(text, " ")
	s = strings.TrimSpace(s)

	// Word-boundary repair for text Tesseract ran together.
	s = lowerUpperRe.ReplaceAllString(s, "$1 $2")
	s = digitLetterRe.ReplaceAllString(s, "$1 $2")
	s = letterDigitRe.ReplaceAllString(s, "$1 $2")

	s = sentenceRe.ReplaceAllString(s, "$1 $2")
	s = clauseRe.ReplaceAllString(s, "$1 $2")

	// Replace disallowed runs with a space rather than deleting them, so
	// removal never glues two words back together.
	s = disallowedRe.ReplaceAllString(s, " ")

	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
