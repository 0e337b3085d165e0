package common

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestLoggerFrom(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := context.Background()
	LoggerFrom(ctx, base).Info("plain")
	if strings.Contains(buf.String(), "run_id") {
		t.Errorf("untagged ctx added run_id: %s", buf.String())
	}

	buf.Reset()
	ctx = WithRequestID(WithRunID(ctx, "run-1"), "req-9")
	LoggerFrom(ctx, base).Info("tagged")
	out := buf.String()
	for _, want := range []string{`"run_id":"run-1"`, `"req_id":"req-9"`} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s in %s", want, out)
		}
	}
	if RunIDFromContext(ctx) != "run-1" || RequestIDFromContext(ctx) != "req-9" {
		t.Error("ids not readable back from ctx")
	}
}
