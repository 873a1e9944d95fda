// Command simulate exercises the pipeline end to end against the mock STT
// provider: no network, no API key. Handy for demos and for watching the
// job lifecycle events flow.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"time"

	"audiobook-transcription-service/internal/audio"
	"audiobook-transcription-service/internal/events"
	"audiobook-transcription-service/internal/models"
	"audiobook-transcription-service/internal/service/pipeline"
	"audiobook-transcription-service/internal/service/stt"
	"audiobook-transcription-service/internal/service/stt/mock"
	"audiobook-transcription-service/internal/store"
)

func conf(v float64) *float64 { return &v }

func main() {
	tracks := flag.Int("tracks", 3, "Number of tracks to transcribe concurrently")
	polls := flag.Int("polls", 4, "Polls before the mock job completes")
	flag.Parse()

	workDir, err := os.MkdirTemp("", "simulate-*")
	if err != nil {
		log.Fatalf("Failed to create work directory: %v", err)
	}
	defer os.RemoveAll(workDir)

	st, err := store.Open(filepath.Join(workDir, "jobs.db"))
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	statuses := make([]stt.StatusInfo, 0, *polls)
	for i := 1; i < *polls; i++ {
		hint := float64(i) / float64(*polls)
		statuses = append(statuses, stt.StatusInfo{Status: stt.StatusProcessing, ProgressHint: &hint})
	}
	statuses = append(statuses, stt.StatusInfo{Status: stt.StatusCompleted})

	client := mock.New(mock.Script{
		Statuses: statuses,
		Tokens: []models.Token{
			{Text: "Chapter", StartMs: 0, EndMs: 500, Speaker: "1", Confidence: conf(0.98)},
			{Text: "one", StartMs: 550, EndMs: 900, Speaker: "1", Confidence: conf(0.97)},
			{Text: ".", StartMs: 900, EndMs: 900, Confidence: conf(1.0), Punctuation: models.PunctuationSentence},
			{Text: "It", StartMs: 1400, EndMs: 1600, Speaker: "2", Confidence: conf(0.95)},
			{Text: "begins", StartMs: 1650, EndMs: 2200, Speaker: "2", Confidence: conf(0.96)},
			{Text: ".", StartMs: 2200, EndMs: 2200, Confidence: conf(1.0), Punctuation: models.PunctuationSentence},
		},
	})

	cfg := pipeline.DefaultConfig()
	cfg.PollInterval = 200 * time.Millisecond

	orch := pipeline.New(st, client, audio.NewResolver(workDir), events.New(nil), cfg)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = orch.Shutdown(ctx)
	}()

	handles := make([]*pipeline.Handle, 0, *tracks)
	for i := 0; i < *tracks; i++ {
		trackID := filepath.Base(workDir) + "-track-" + string(rune('a'+i))
		// The resolver insists on a real, non-empty file.
		if err := os.WriteFile(filepath.Join(workDir, trackID+".mp3"), []byte("simulated audio"), 0o644); err != nil {
			log.Fatalf("Failed to write audio stub: %v", err)
		}
		h, err := orch.RequestTranscription(context.Background(), pipeline.Request{TrackID: trackID})
		if err != nil {
			log.Fatalf("Failed to start job for %s: %v", trackID, err)
		}
		log.Printf("Started job %s for %s", h.JobID(), trackID)
		handles = append(handles, h)
	}

	for _, h := range handles {
		updates := h.Updates()
		for rec := range updates {
			log.Printf("  %s: %s %.0f%%", rec.TrackID, rec.Status, rec.Progress*100)
		}
		if err := h.Err(); err != nil {
			log.Printf("Job %s failed: %v", h.JobID(), err)
			continue
		}
		tr := h.Transcript()
		log.Printf("Job %s done: %q", h.JobID(), tr.FullText)
	}
}
