package segment

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"audiobook-transcription-service/internal/models"
)

// JoinTokenText concatenates token texts into segment text. Joining is
// language-aware: no space is inserted before a punctuation token, and none
// between characters of scripts written without word spacing (Han, kana,
// Hangul). Everything else gets a single space.
func JoinTokenText(tokens []models.Token) string {
	var b strings.Builder
	prev := ""
	for _, tok := range tokens {
		text := strings.TrimSpace(tok.Text)
		if text == "" {
			continue
		}
		if prev != "" && !tok.IsPunctuation() && needsSpace(prev, text) {
			b.WriteByte(' ')
		}
		b.WriteString(text)
		prev = text
	}
	return b.String()
}

// JoinSegmentText assembles a transcript's full text from its segments,
// applying the same spacing rules between segment boundaries.
func JoinSegmentText(segments []models.Segment) string {
	var b strings.Builder
	prev := ""
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if prev != "" {
			if needsSpace(prev, text) {
				b.WriteByte(' ')
			}
		}
		b.WriteString(text)
		prev = text
	}
	return b.String()
}

// needsSpace decides whether a space belongs between two adjacent chunks of
// text, based on the boundary runes.
func needsSpace(left, right string) bool {
	l, _ := utf8.DecodeLastRuneInString(left)
	r, _ := utf8.DecodeRuneInString(right)
	if unspacedScript(l) || unspacedScript(r) {
		return false
	}
	return true
}

func unspacedScript(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}
