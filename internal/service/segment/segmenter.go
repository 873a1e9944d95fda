// Package segment turns the ordered token stream returned by the speech
// service into time-bounded transcript segments. The transform is pure and
// deterministic: the same token sequence always yields the same segments.
package segment

import (
	"audiobook-transcription-service/internal/models"
)

// DefaultMaxDurationMs is the hard cap on segment duration.
const DefaultMaxDurationMs int64 = 20000

// Options tunes the segmentation rules.
type Options struct {
	// MaxDurationMs is the hard cap on segment duration. Zero or negative
	// falls back to DefaultMaxDurationMs.
	MaxDurationMs int64

	// MaxGapMs, when positive, starts a new segment whenever a token begins
	// more than MaxGapMs after the running segment ends (a long same-speaker
	// pause). Zero disables the rule.
	MaxGapMs int64
}

func (o Options) maxDuration() int64 {
	if o.MaxDurationMs > 0 {
		return o.MaxDurationMs
	}
	return DefaultMaxDurationMs
}

// Split groups tokens into segments in a single pass.
//
// A segment is flushed, in priority order, when:
//  1. the next token belongs to a different speaker (flush before appending),
//  2. a long pause precedes the next token, if MaxGapMs is enabled,
//  3. the just-appended token is sentence-ending punctuation (flush after),
//  4. the segment reached the duration cap - preferring a split at the most
//     recent clause punctuation over a blind cut.
//
// The cap check loops after every split so an oversized remainder is split
// again. A single run of tokens with no clause punctuation is cut as-is;
// that is the only way a segment may exceed the cap.
func Split(tokens []models.Token, opts Options) []models.Segment {
	maxDur := opts.maxDuration()

	var segments []models.Segment
	var acc accumulator

	flush := func() {
		if seg, ok := acc.build(len(segments)); ok {
			segments = append(segments, seg)
		}
		acc.reset()
	}

	for _, tok := range tokens {
		if acc.speakerDiffers(tok) {
			flush()
		} else if opts.MaxGapMs > 0 && !acc.empty() && tok.StartMs-acc.endMs > opts.MaxGapMs {
			flush()
		}

		acc.append(tok)

		if tok.Punctuation == models.PunctuationSentence {
			flush()
			continue
		}

		for acc.endMs-acc.startMs >= maxDur {
			cut, rest, ok := acc.splitAtClause()
			if !ok {
				// No clause punctuation to split at: hard cut.
				flush()
				break
			}
			if seg, built := cut.build(len(segments)); built {
				segments = append(segments, seg)
			}
			acc = rest
			if acc.empty() {
				break
			}
		}
	}

	flush()
	return segments
}

// accumulator collects the tokens of the segment under construction.
type accumulator struct {
	tokens  []models.Token
	startMs int64
	endMs   int64
	speaker string // first non-empty speaker seen
}

func (a *accumulator) empty() bool {
	return len(a.tokens) == 0
}

func (a *accumulator) reset() {
	*a = accumulator{}
}

// speakerDiffers reports whether tok belongs to a different speaker than
// the accumulated tokens. Unlabeled tokens (punctuation usually carries no
// speaker tag) never force a split.
func (a *accumulator) speakerDiffers(tok models.Token) bool {
	return a.speaker != "" && tok.Speaker != "" && tok.Speaker != a.speaker
}

func (a *accumulator) append(tok models.Token) {
	if a.empty() {
		a.startMs = tok.StartMs
		a.endMs = tok.EndMs
	} else if tok.EndMs > a.endMs {
		a.endMs = tok.EndMs
	}
	if a.speaker == "" {
		a.speaker = tok.Speaker
	}
	a.tokens = append(a.tokens, tok)
}

// splitAtClause looks backward for the most recent clause punctuation whose
// resulting first half has a positive duration. It returns the two halves,
// or ok=false when no usable split point exists.
func (a *accumulator) splitAtClause() (cut, rest accumulator, ok bool) {
	for i := len(a.tokens) - 1; i >= 0; i-- {
		if a.tokens[i].Punctuation != models.PunctuationComma {
			continue
		}
		if a.tokens[i].EndMs-a.tokens[0].StartMs <= 0 {
			continue
		}
		for _, t := range a.tokens[:i+1] {
			cut.append(t)
		}
		for _, t := range a.tokens[i+1:] {
			rest.append(t)
		}
		return cut, rest, true
	}
	return accumulator{}, accumulator{}, false
}

// build assembles a Segment from the accumulated tokens. Returns ok=false
// for an empty accumulator.
func (a *accumulator) build(orderIndex int) (models.Segment, bool) {
	if a.empty() {
		return models.Segment{}, false
	}

	seg := models.Segment{
		Text:       JoinTokenText(a.tokens),
		StartMs:    a.startMs,
		EndMs:      a.endMs,
		Speaker:    a.speaker,
		OrderIndex: orderIndex,
	}

	var sum float64
	var n int
	for _, t := range a.tokens {
		if seg.Language == "" {
			seg.Language = t.Language
		}
		if t.Confidence != nil {
			sum += *t.Confidence
			n++
		}
	}
	if n > 0 {
		mean := sum / float64(n)
		seg.Confidence = &mean
	}

	return seg, true
}
