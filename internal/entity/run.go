package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Run represents one validation run for data transfer between layers.
type Run struct {
	ID                 uuid.UUID       `json:"id" firestore:"id"`
	SourcePath         string          `json:"source_path" firestore:"source_path"`
	ContentHash        string          `json:"content_hash" firestore:"content_hash"`
	StartedAt          time.Time       `json:"started_at" firestore:"started_at"`
	FinishedAt         *time.Time      `json:"finished_at,omitempty" firestore:"finished_at,omitempty"`
	Status             string          `json:"status" firestore:"status"`
	ErrorMessage       *string         `json:"error_message,omitempty" firestore:"error_message,omitempty"`
	ExpectedSignatures int             `json:"expected_signatures" firestore:"expected_signatures"`
	ActualSignatures   int             `json:"actual_signatures" firestore:"actual_signatures"`
	ResultsComply      string          `json:"results_comply" firestore:"results_comply"`
	ModelName          *string         `json:"model_name,omitempty" firestore:"model_name,omitempty"`
	RecordJSON         json.RawMessage `json:"record_json,omitempty" firestore:"-"`
}
