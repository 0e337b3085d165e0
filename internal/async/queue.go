package async

import (
	"context"
	"time"
)

// Job is one document waiting for processing.
type Job struct {
	Path        string
	ContentHash string
	Force       bool // process even if identical content already succeeded
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// Handler processes one job. Each call gets its own timeout-bound context.
type Handler interface {
	Handle(ctx context.Context, job Job) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job Job) error

func (f HandlerFunc) Handle(ctx context.Context, job Job) error { return f(ctx, job) }
