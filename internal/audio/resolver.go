// Package audio resolves track identifiers to local audio files.
package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"audiobook-transcription-service/internal/models"
	"audiobook-transcription-service/internal/observability/logging"
)

// extensions are probed in order when resolving a track.
var extensions = []string{".mp3", ".m4a", ".m4b", ".wav", ".flac", ".ogg", ".aac"}

// Resolver maps track ids to audio files inside a local cache directory.
// The track's file must be fully downloaded before a job references it;
// the resolver only checks presence and non-emptiness.
type Resolver struct {
	cacheDir string
	log      zerolog.Logger
}

// NewResolver creates a resolver over the given cache directory.
func NewResolver(cacheDir string) *Resolver {
	return &Resolver{
		cacheDir: cacheDir,
		log:      logging.WithComponent("audio"),
	}
}

// LocalPath returns the audio file path for trackID. A missing or empty
// file is a terminal error: retrying the job cannot make the file appear.
func (r *Resolver) LocalPath(ctx context.Context, trackID string) (string, error) {
	if trackID == "" {
		return "", models.NewTerminalError(models.ErrKindInvalidAudioFile, "empty track id", nil)
	}

	for _, ext := range extensions {
		path := filepath.Join(r.cacheDir, trackID+ext)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.IsDir() {
			continue
		}
		if info.Size() == 0 {
			return "", models.NewTerminalError(models.ErrKindInvalidAudioFile,
				fmt.Sprintf("audio file %s is empty", path), nil)
		}
		r.log.Debug().Str("trackId", trackID).Str("path", path).Int64("bytes", info.Size()).Msg("Audio file resolved")
		return path, nil
	}

	return "", models.NewTerminalError(models.ErrKindInvalidAudioFile,
		fmt.Sprintf("no audio file for track %s in %s", trackID, r.cacheDir), nil)
}
