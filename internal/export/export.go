// Package export renders persisted transcripts into delivery formats.
package export

import (
	"fmt"
	"strings"

	"audiobook-transcription-service/internal/models"
)

// SRT renders segments as SubRip subtitles: numbered cues with
// HH:MM:SS,mmm time ranges.
func SRT(segments []models.Segment) string {
	var b strings.Builder
	cue := 0
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		cue++
		if cue > 1 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d\n", cue)
		fmt.Fprintf(&b, "%s --> %s\n", srtTime(seg.StartMs), srtTime(seg.EndMs))
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String()
}

// TimestampedText renders segments as a readable transcript with time
// ranges and speaker labels:
//
//	[00:00:01.250 --> 00:00:04.800] Speaker 1:
//	Chapter one. It was a bright cold day in April.
func TimestampedText(segments []models.Segment) string {
	var blocks []string
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		header := fmt.Sprintf("[%s --> %s]", clockTime(seg.StartMs), clockTime(seg.EndMs))
		if seg.Speaker != "" {
			header += fmt.Sprintf(" Speaker %s:", seg.Speaker)
		}
		blocks = append(blocks, header+"\n"+text+"\n")
	}
	return strings.TrimSpace(strings.Join(blocks, "\n"))
}

// srtTime formats milliseconds as HH:MM:SS,mmm.
func srtTime(ms int64) string {
	return formatTime(ms, ',')
}

// clockTime formats milliseconds as HH:MM:SS.mmm.
func clockTime(ms int64) string {
	return formatTime(ms, '.')
}

func formatTime(ms int64, sep rune) string {
	if ms < 0 {
		ms = 0
	}
	hours := ms / 3600000
	minutes := (ms % 3600000) / 60000
	seconds := (ms % 60000) / 1000
	millis := ms % 1000
	return fmt.Sprintf("%02d:%02d:%02d%c%03d", hours, minutes, seconds, sep, millis)
}
