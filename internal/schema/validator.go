// Package schema validates remote token payloads before they enter the pipeline.
package schema

import (
	"fmt"

	"audiobook-transcription-service/internal/models"
)

// Validator checks invariants on decoded remote responses. A payload that
// fails validation is a malformed response: terminal, never retried.
type Validator struct{}

// New creates a new Validator.
func New() *Validator {
	return &Validator{}
}

// ValidateTokens checks the time bounds of a decoded token stream.
// An empty stream is valid (silent audio transcribes to nothing).
func (v *Validator) ValidateTokens(tokens []models.Token) error {
	for i, tok := range tokens {
		if tok.StartMs < 0 {
			return malformed(fmt.Sprintf("token %d has negative start %dms", i, tok.StartMs))
		}
		if tok.EndMs < tok.StartMs {
			return malformed(fmt.Sprintf("token %d ends before it starts (%dms > %dms)", i, tok.StartMs, tok.EndMs))
		}
		if tok.Confidence != nil && (*tok.Confidence < 0 || *tok.Confidence > 1) {
			return malformed(fmt.Sprintf("token %d confidence %f outside [0,1]", i, *tok.Confidence))
		}
	}
	return nil
}

func malformed(msg string) error {
	return models.NewTerminalError(models.ErrKindMalformedResponse, msg, nil)
}
