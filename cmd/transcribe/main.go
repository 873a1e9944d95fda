// Command transcribe runs a single audio file through the full pipeline
// and writes the transcript artifacts next to it. Useful for trying out
// provider settings without the service running.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"audiobook-transcription-service/internal/audio"
	"audiobook-transcription-service/internal/events"
	"audiobook-transcription-service/internal/export"
	"audiobook-transcription-service/internal/service/pipeline"
	"audiobook-transcription-service/internal/service/stt/soniox"
	"audiobook-transcription-service/internal/store"
)

func main() {
	audioFile := flag.String("audio", "", "Path to the audio file to transcribe")
	outputDir := flag.String("output", "", "Output directory (defaults to the audio file's directory)")
	languages := flag.String("languages", "", "Comma-separated language hints, e.g. en,de")
	contextFile := flag.String("context", "", "Optional text file with domain context for the model")
	model := flag.String("model", "stt-async-preview", "Remote STT model")
	pollInterval := flag.Duration("poll", 2*time.Second, "Remote status poll interval")
	flag.Parse()

	if *audioFile == "" {
		flag.Usage()
		os.Exit(2)
	}
	apiKey := os.Getenv("SONIOX_API_KEY")
	if apiKey == "" {
		_ = godotenv.Load()
		apiKey = os.Getenv("SONIOX_API_KEY")
	}
	if apiKey == "" {
		log.Fatal("SONIOX_API_KEY must be set")
	}

	absPath, err := filepath.Abs(*audioFile)
	if err != nil {
		log.Fatalf("Bad audio path: %v", err)
	}
	dir := filepath.Dir(absPath)
	ext := filepath.Ext(absPath)
	trackID := strings.TrimSuffix(filepath.Base(absPath), ext)

	outDir := *outputDir
	if outDir == "" {
		outDir = dir
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	var contextHint string
	if *contextFile != "" {
		data, err := os.ReadFile(*contextFile)
		if err != nil {
			log.Fatalf("Failed to read context file: %v", err)
		}
		contextHint = string(data)
	}

	// Job state lives in a scratch database; this is a one-shot run.
	dbPath := filepath.Join(os.TempDir(), fmt.Sprintf("transcribe-%d.db", os.Getpid()))
	defer os.Remove(dbPath)
	st, err := store.Open(dbPath)
	if err != nil {
		log.Fatalf("Failed to open scratch store: %v", err)
	}
	defer st.Close()

	client := soniox.New(soniox.Config{
		APIKey: apiKey,
		Model:  *model,
	})

	cfg := pipeline.DefaultConfig()
	cfg.PollInterval = *pollInterval
	if *languages != "" {
		cfg.LanguageHints = strings.Split(*languages, ",")
	}
	cfg.DefaultContext = contextHint

	orch := pipeline.New(st, client, audio.NewResolver(dir), events.New(nil), cfg)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = orch.Shutdown(ctx)
	}()

	log.Printf("Transcribing %s (track %s)", absPath, trackID)
	handle, err := orch.RequestTranscription(context.Background(), pipeline.Request{TrackID: trackID})
	if err != nil {
		log.Fatalf("Failed to start job: %v", err)
	}

	for {
		select {
		case <-handle.Done():
		case <-time.After(5 * time.Second):
			snap := handle.Snapshot()
			log.Printf("  %s %.0f%%", snap.Status, snap.Progress*100)
			continue
		}
		break
	}

	if err := handle.Err(); err != nil {
		log.Fatalf("Transcription failed: %v", err)
	}
	tr := handle.Transcript()
	segs, err := st.LoadSegments(context.Background(), tr.ID)
	if err != nil {
		log.Fatalf("Failed to load segments: %v", err)
	}

	txtPath := filepath.Join(outDir, trackID+"_transcript.txt")
	srtPath := filepath.Join(outDir, trackID+".srt")
	fullPath := filepath.Join(outDir, trackID+"_full.txt")

	if err := os.WriteFile(txtPath, []byte(export.TimestampedText(segs)+"\n"), 0o644); err != nil {
		log.Fatalf("Failed to write transcript: %v", err)
	}
	if err := os.WriteFile(srtPath, []byte(export.SRT(segs)), 0o644); err != nil {
		log.Fatalf("Failed to write SRT: %v", err)
	}
	if err := os.WriteFile(fullPath, []byte(tr.FullText+"\n"), 0o644); err != nil {
		log.Fatalf("Failed to write full text: %v", err)
	}

	log.Printf("Done: %d segments", len(segs))
	log.Printf("  transcript: %s", txtPath)
	log.Printf("  subtitles:  %s", srtPath)
	log.Printf("  full text:  %s", fullPath)
}
