package segment

import (
	"reflect"
	"testing"

	"audiobook-transcription-service/internal/models"
)

func conf(v float64) *float64 { return &v }

func word(text string, startMs, endMs int64) models.Token {
	return models.Token{Text: text, StartMs: startMs, EndMs: endMs}
}

func punct(text string, atMs int64) models.Token {
	return models.Token{
		Text:        text,
		StartMs:     atMs,
		EndMs:       atMs,
		Punctuation: models.ClassifyPunctuation(text),
	}
}

func TestSplit_EmptyInput(t *testing.T) {
	if segs := Split(nil, Options{}); len(segs) != 0 {
		t.Errorf("expected zero segments for empty input, got %d", len(segs))
	}
}

func TestSplit_SentencePunctuationFlush(t *testing.T) {
	tokens := []models.Token{
		{Text: "Hello", StartMs: 0, EndMs: 400, Confidence: conf(1.0)},
		{Text: "world", StartMs: 450, EndMs: 900, Confidence: conf(1.0)},
		{Text: ".", StartMs: 900, EndMs: 900, Confidence: conf(1.0), Punctuation: models.PunctuationSentence},
	}

	segs := Split(tokens, Options{})
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	if segs[0].Text != "Hello world." {
		t.Errorf("expected text %q, got %q", "Hello world.", segs[0].Text)
	}
	if segs[0].Confidence == nil || *segs[0].Confidence != 1.0 {
		t.Errorf("expected confidence 1.0, got %v", segs[0].Confidence)
	}
	if segs[0].StartMs != 0 || segs[0].EndMs != 900 {
		t.Errorf("unexpected bounds [%d, %d]", segs[0].StartMs, segs[0].EndMs)
	}
}

func TestSplit_Deterministic(t *testing.T) {
	tokens := []models.Token{
		word("one", 0, 500),
		punct(",", 500),
		word("two", 600, 1100),
		punct(".", 1100),
		word("three", 1500, 2000),
	}

	first := Split(tokens, Options{})
	second := Split(tokens, Options{})
	if !reflect.DeepEqual(first, second) {
		t.Error("expected identical segment sequences on repeated runs")
	}
}

func TestSplit_SpeakerChangeFlushesBefore(t *testing.T) {
	tokens := []models.Token{
		{Text: "Chapter", StartMs: 0, EndMs: 400, Speaker: "1"},
		{Text: "one", StartMs: 450, EndMs: 700, Speaker: "1"},
		{Text: "Thanks", StartMs: 800, EndMs: 1200, Speaker: "2"},
	}

	segs := Split(tokens, Options{})
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segs))
	}
	if segs[0].Text != "Chapter one" || segs[0].Speaker != "1" {
		t.Errorf("unexpected first segment %q speaker %q", segs[0].Text, segs[0].Speaker)
	}
	if segs[1].Text != "Thanks" || segs[1].Speaker != "2" {
		t.Errorf("unexpected second segment %q speaker %q", segs[1].Text, segs[1].Speaker)
	}
}

func TestSplit_SpeakerIsolation(t *testing.T) {
	// Unlabeled punctuation stays with the running speaker; no segment may
	// mix two labeled speakers.
	tokens := []models.Token{
		{Text: "Hi", StartMs: 0, EndMs: 300, Speaker: "1"},
		punct(",", 300),
		{Text: "there", StartMs: 400, EndMs: 800, Speaker: "1"},
		{Text: "Hello", StartMs: 900, EndMs: 1300, Speaker: "2"},
		punct(",", 1300),
		{Text: "friend", StartMs: 1400, EndMs: 1800, Speaker: "2"},
	}

	segs := Split(tokens, Options{})
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segs))
	}
	if segs[0].Speaker != "1" || segs[1].Speaker != "2" {
		t.Errorf("unexpected speakers %q, %q", segs[0].Speaker, segs[1].Speaker)
	}
}

func TestSplit_DurationCap_PrefersClausePunctuation(t *testing.T) {
	// Comma at 18500ms, no sentence end before the 20000ms cap: the split
	// must land on the comma, not the raw boundary.
	tokens := []models.Token{
		word("alpha", 0, 9000),
		word("beta", 9100, 18400),
		punct(",", 18500),
		word("gamma", 18600, 20500),
		punct(".", 20500),
	}

	segs := Split(tokens, Options{})
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segs))
	}
	if segs[0].Text != "alpha beta," {
		t.Errorf("expected first segment to end at the comma, got %q", segs[0].Text)
	}
	if segs[0].EndMs != 18500 {
		t.Errorf("expected first segment to end at 18500, got %d", segs[0].EndMs)
	}
	if segs[1].Text != "gamma." {
		t.Errorf("expected remainder to seed the next segment, got %q", segs[1].Text)
	}
	if segs[1].StartMs != 18600 {
		t.Errorf("expected remainder to start at 18600, got %d", segs[1].StartMs)
	}
}

func TestSplit_DurationCap_HardCutWithoutClause(t *testing.T) {
	tokens := []models.Token{
		word("one", 0, 10000),
		word("two", 10100, 20100),
		word("three", 20200, 21000),
	}

	segs := Split(tokens, Options{})
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segs))
	}
	if segs[0].Text != "one two" {
		t.Errorf("expected hard cut after the cap token, got %q", segs[0].Text)
	}
	if segs[1].Text != "three" {
		t.Errorf("expected %q, got %q", "three", segs[1].Text)
	}
}

func TestSplit_DurationInvariant(t *testing.T) {
	// A long stream with regular commas: every segment must respect the cap.
	var tokens []models.Token
	var at int64
	for i := 0; i < 40; i++ {
		tokens = append(tokens, word("word", at, at+2000))
		at += 2100
		if i%3 == 2 {
			tokens = append(tokens, punct(",", at-100))
		}
	}

	segs := Split(tokens, Options{})
	if len(segs) < 2 {
		t.Fatalf("expected multiple segments, got %d", len(segs))
	}
	for _, s := range segs {
		if s.DurationMs() > DefaultMaxDurationMs {
			t.Errorf("segment %d exceeds cap: %dms", s.OrderIndex, s.DurationMs())
		}
	}
}

func TestSplit_OversizedRemainderSplitsAgain(t *testing.T) {
	// After the comma split the remainder still exceeds the cap and carries
	// another comma: the cap check must loop, not assume one split suffices.
	tokens := []models.Token{
		word("a", 0, 1000),
		punct(",", 1000),
		word("b", 1100, 20000),
		punct(",", 20000),
		word("c", 20100, 41000),
	}

	segs := Split(tokens, Options{})
	if len(segs) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segs))
	}
	if segs[0].Text != "a," {
		t.Errorf("expected %q, got %q", "a,", segs[0].Text)
	}
	if segs[1].Text != "b," {
		t.Errorf("expected %q, got %q", "b,", segs[1].Text)
	}
	if segs[2].Text != "c" {
		t.Errorf("expected %q, got %q", "c", segs[2].Text)
	}
}

func TestSplit_SingleOversizedToken(t *testing.T) {
	tokens := []models.Token{word("monologue", 0, 25000)}

	segs := Split(tokens, Options{})
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	if segs[0].DurationMs() != 25000 {
		t.Errorf("over-cap single token must be emitted as-is, got %dms", segs[0].DurationMs())
	}
}

func TestSplit_ConfidenceAggregation(t *testing.T) {
	tokens := []models.Token{
		{Text: "a", StartMs: 0, EndMs: 100, Confidence: conf(0.9)},
		{Text: "b", StartMs: 150, EndMs: 300},
		{Text: "c", StartMs: 350, EndMs: 500, Confidence: conf(0.7)},
	}

	segs := Split(tokens, Options{})
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	if segs[0].Confidence == nil {
		t.Fatal("expected aggregated confidence, got nil")
	}
	if got := *segs[0].Confidence; got < 0.799 || got > 0.801 {
		t.Errorf("expected mean confidence 0.8, got %f", got)
	}

	noConf := Split([]models.Token{word("x", 0, 100), word("y", 150, 300)}, Options{})
	if noConf[0].Confidence != nil {
		t.Errorf("expected nil confidence when no token had one, got %v", *noConf[0].Confidence)
	}
}

func TestSplit_MaxGap(t *testing.T) {
	tokens := []models.Token{
		word("before", 0, 500),
		word("after", 2500, 3000), // 2000ms pause
	}

	// Disabled by default: one segment.
	if segs := Split(tokens, Options{}); len(segs) != 1 {
		t.Errorf("expected 1 segment with gap rule disabled, got %d", len(segs))
	}

	// Enabled: the pause forces a new segment.
	segs := Split(tokens, Options{MaxGapMs: 1500})
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments with gap rule enabled, got %d", len(segs))
	}
	if segs[0].Text != "before" || segs[1].Text != "after" {
		t.Errorf("unexpected texts %q, %q", segs[0].Text, segs[1].Text)
	}
}

func TestSplit_OrderIndexContiguity(t *testing.T) {
	tokens := []models.Token{
		word("a", 0, 100), punct(".", 100),
		word("b", 200, 300), punct(".", 300),
		word("c", 400, 500),
	}

	segs := Split(tokens, Options{})
	for i, s := range segs {
		if s.OrderIndex != i {
			t.Errorf("expected order index %d, got %d", i, s.OrderIndex)
		}
	}
	for i := 1; i < len(segs); i++ {
		if segs[i].StartMs < segs[i-1].EndMs {
			t.Errorf("segments %d and %d overlap in time", i-1, i)
		}
	}
}

func TestSplit_SegmentLanguage(t *testing.T) {
	tokens := []models.Token{
		{Text: "hola", StartMs: 0, EndMs: 300, Language: "es"},
		{Text: "amigo", StartMs: 350, EndMs: 700, Language: "es"},
	}
	segs := Split(tokens, Options{})
	if len(segs) != 1 || segs[0].Language != "es" {
		t.Fatalf("expected language 'es', got %+v", segs)
	}
}

func TestJoinTokenText_CJK(t *testing.T) {
	tokens := []models.Token{
		{Text: "这部", StartMs: 0, EndMs: 200},
		{Text: "电影", StartMs: 250, EndMs: 500},
		{Text: "。", StartMs: 500, EndMs: 500, Punctuation: models.PunctuationSentence},
	}
	segs := Split(tokens, Options{})
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	if segs[0].Text != "这部电影。" {
		t.Errorf("expected no inserted spaces in CJK text, got %q", segs[0].Text)
	}
}

func TestJoinSegmentText(t *testing.T) {
	segs := []models.Segment{
		{Text: "Hello world."},
		{Text: "Goodbye."},
	}
	if got := JoinSegmentText(segs); got != "Hello world. Goodbye." {
		t.Errorf("unexpected full text %q", got)
	}

	cjk := []models.Segment{{Text: "你好。"}, {Text: "再见。"}}
	if got := JoinSegmentText(cjk); got != "你好。再见。" {
		t.Errorf("expected no space between CJK segments, got %q", got)
	}
}
