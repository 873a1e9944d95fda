package schema

import (
	"testing"

	"audiobook-transcription-service/internal/models"
)

func TestValidateTokens(t *testing.T) {
	v := New()
	bad := 1.5
	good := 0.9

	tests := []struct {
		name    string
		tokens  []models.Token
		wantErr bool
	}{
		{"empty stream", nil, false},
		{"valid", []models.Token{{Text: "hi", StartMs: 0, EndMs: 100, Confidence: &good}}, false},
		{"zero length token", []models.Token{{Text: ".", StartMs: 100, EndMs: 100}}, false},
		{"negative start", []models.Token{{Text: "hi", StartMs: -1, EndMs: 100}}, true},
		{"end before start", []models.Token{{Text: "hi", StartMs: 200, EndMs: 100}}, true},
		{"confidence out of range", []models.Token{{Text: "hi", StartMs: 0, EndMs: 100, Confidence: &bad}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateTokens(tt.tokens)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTokens() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if models.KindOf(err) != models.ErrKindMalformedResponse {
					t.Errorf("expected malformed_response kind, got %s", models.KindOf(err))
				}
				if models.IsTransient(err) {
					t.Error("malformed payloads must never be retried")
				}
			}
		})
	}
}
