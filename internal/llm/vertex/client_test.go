package vertex

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/vertexai/genai"

	"github.com/joseph-ayodele/labcert-validator/internal/common"
)

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"is_signature":`), genai.Text(`false}`)}},
	}}}
	if got := responseText(resp); got != `{"is_signature":false}` {
		t.Errorf("responseText = %q", got)
	}
	if responseText(&genai.GenerateContentResponse{}) != "" {
		t.Error("no candidates should give empty text")
	}
}

func TestNewClientRequiresProject(t *testing.T) {
	_, err := NewClient(context.Background(), Config{Region: "us-central1"}, nil)
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput, got %v", err)
	}
}
