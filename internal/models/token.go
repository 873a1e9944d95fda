// Package models defines the data structures shared across the transcription pipeline.
package models

import "strings"

// PunctuationKind classifies a token's punctuation role for segmentation.
type PunctuationKind int

const (
	// PunctuationNone - Regular word token, not punctuation.
	PunctuationNone PunctuationKind = iota
	// PunctuationComma - Clause separator (comma, semicolon, colon and CJK equivalents).
	PunctuationComma
	// PunctuationSentence - Sentence-ending mark (period, question/exclamation mark and CJK equivalents).
	PunctuationSentence
)

// String returns the string representation of the punctuation kind.
func (k PunctuationKind) String() string {
	switch k {
	case PunctuationNone:
		return "none"
	case PunctuationComma:
		return "comma"
	case PunctuationSentence:
		return "sentence"
	default:
		return "unknown"
	}
}

var (
	sentenceMarks = map[string]struct{}{
		".": {}, "!": {}, "?": {}, "。": {}, "！": {}, "？": {}, "…": {},
	}
	commaMarks = map[string]struct{}{
		",": {}, ";": {}, ":": {}, "、": {}, "，": {}, "；": {}, "：": {},
	}
)

// ClassifyPunctuation derives the punctuation kind from a token's text.
// The remote service emits punctuation as standalone tokens, sometimes with
// surrounding whitespace, so the text is trimmed before matching.
func ClassifyPunctuation(text string) PunctuationKind {
	trimmed := strings.TrimSpace(text)
	if _, ok := sentenceMarks[trimmed]; ok {
		return PunctuationSentence
	}
	if _, ok := commaMarks[trimmed]; ok {
		return PunctuationComma
	}
	return PunctuationNone
}

// Token is one recognized word or phrase from the speech service.
// Tokens are built once from the remote response and never mutated;
// they exist only long enough to be grouped into segments.
type Token struct {
	Text        string
	StartMs     int64
	EndMs       int64
	Speaker     string   // empty when diarization produced no label
	Language    string   // empty when language identification produced no label
	Confidence  *float64 // nil when the service reported none, otherwise in [0,1]
	Punctuation PunctuationKind
}

// IsPunctuation reports whether the token is a punctuation mark.
func (t Token) IsPunctuation() bool {
	return t.Punctuation != PunctuationNone
}

// DurationMs returns the token's duration in milliseconds.
func (t Token) DurationMs() int64 {
	return t.EndMs - t.StartMs
}
