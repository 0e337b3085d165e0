package app

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joseph-ayodele/labcert-validator/internal/common"
)

func testConfig() *common.Config {
	cfg := common.LoadConfig()
	cfg.OCR.Provider = common.TextProviderAuto
	cfg.DocIntel.Endpoint = ""
	cfg.DocIntel.APIKey = ""
	cfg.LLM.Provider = common.LLMProviderOpenAI
	cfg.LLM.APIKey = ""
	cfg.LLM.ExtractEntities = false
	cfg.Database.Store = common.RunStoreAuto
	cfg.Database.DSN = ""
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestNewTextProviderSelection(t *testing.T) {
	tests := []struct {
		provider string
		want     string
	}{
		{common.TextProviderAuto, "pdftotext>tabula"},
		{common.TextProviderPdftotext, "pdftotext"},
		{common.TextProviderTabula, "tabula"},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := testConfig()
			cfg.OCR.Provider = tt.provider
			a, err := New(context.Background(), cfg, quietLogger(), Options{})
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			defer a.Close()
			if got := a.Processor.Text.Name(); got != tt.want {
				t.Errorf("text provider = %q, want %q", got, tt.want)
			}
			if a.Processor.Extract.Name() != "rules" {
				t.Errorf("extractor = %q, want rules", a.Processor.Extract.Name())
			}
			if a.Processor.Detector != nil {
				t.Error("detector built without Signatures")
			}
			if a.Processor.Runs != nil || a.Runs != nil {
				t.Error("run store opened without Persist")
			}
		})
	}
}

func TestNewAzureTextNeedsCredentials(t *testing.T) {
	cfg := testConfig()
	cfg.OCR.Provider = common.TextProviderAzure
	_, err := New(context.Background(), cfg, quietLogger(), Options{})
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestNewSignaturesNeedModelKey(t *testing.T) {
	cfg := testConfig()
	_, err := New(context.Background(), cfg, quietLogger(), Options{Signatures: true})
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	if !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Errorf("error should name the missing key: %v", err)
	}
}

func TestNewWithSignatures(t *testing.T) {
	cfg := testConfig()
	cfg.LLM.APIKey = "sk-test"
	cfg.LLM.Model = "gpt-4o"
	cfg.LLM.ExtractEntities = true
	a, err := New(context.Background(), cfg, quietLogger(), Options{Signatures: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()
	if a.Processor.Detector == nil {
		t.Fatal("detector missing")
	}
	if a.Processor.Extract.Name() != "llm" {
		t.Errorf("extractor = %q, want llm", a.Processor.Extract.Name())
	}
	if a.Processor.Cfg.ModelName != "openai:gpt-4o" {
		t.Errorf("model name = %q", a.Processor.Cfg.ModelName)
	}
}

func TestNewPersistSQLite(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Database.DSN = "sqlite:" + filepath.Join(t.TempDir(), "runs.db")
	a, err := New(ctx, cfg, quietLogger(), Options{Persist: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.Runs == nil || a.Processor.Runs == nil {
		t.Fatal("run store not wired")
	}
	if err := a.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestPingWithoutStore(t *testing.T) {
	a, err := New(context.Background(), testConfig(), quietLogger(), Options{Persist: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()
	if a.Processor.Runs != nil {
		t.Error("auto store without DB_URL should stay off")
	}
	if err := a.Ping(context.Background()); !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("Ping err = %v, want ErrInvalidInput", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLoggerFiltersBelowLevel(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn")
	logger.Info("dropped")
	logger.Warn("kept")
	out := buf.String()
	if strings.Contains(out, "dropped") || !strings.Contains(out, `"msg":"kept"`) {
		t.Errorf("unexpected output: %s", out)
	}
}
