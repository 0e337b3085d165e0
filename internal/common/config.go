package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig
	OCR        OCRConfig
	DocIntel   DocIntelConfig
	LLM        LLMConfig
	Signature  SignatureConfig
	Validation ValidationConfig
	Output     OutputConfig
	Batch      BatchConfig
	GCP        GCPConfig
}

// Run store selections. auto uses SQL when DB_URL is set and no store otherwise.
const (
	RunStoreAuto      = "auto"
	RunStoreSQL       = "sql"
	RunStoreFirestore = "firestore"
	RunStoreNone      = "none"
)

// DatabaseConfig holds run-store configuration
type DatabaseConfig struct {
	Store            string
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// Text provider selections.
const (
	TextProviderAuto      = "auto"
	TextProviderAzure     = "azure"
	TextProviderPdftotext = "pdftotext"
	TextProviderTabula    = "tabula"
)

// OCRConfig holds local text extraction configuration
type OCRConfig struct {
	Provider    string
	TessdataDir string
	Lang        string
	DPI         int
	MaxPages    int
}

// DocIntelConfig holds Azure Document Intelligence configuration
type DocIntelConfig struct {
	Endpoint     string
	APIKey       string
	APIVersion   string
	PollInterval time.Duration
	Timeout      time.Duration
}

// Enabled reports whether layout analysis credentials are present.
func (c DocIntelConfig) Enabled() bool {
	return c.Endpoint != "" && c.APIKey != ""
}

// LLM provider selections.
const (
	LLMProviderOpenAI = "openai"
	LLMProviderAzure  = "azure"
	LLMProviderGemini = "gemini"
	LLMProviderVertex = "vertex"
)

// LLMConfig holds vision classifier and entity extractor configuration
type LLMConfig struct {
	Provider        string
	Model           string
	APIKey          string
	BaseURL         string
	AzureEndpoint   string
	AzureAPIKey     string
	AzureDeployment string
	AzureAPIVersion string
	GeminiAPIKey    string
	GeminiModel     string
	Temperature     float32
	MaxTokens       int
	Timeout         time.Duration
	// ExtractEntities routes entity extraction through the model instead of
	// the deterministic rule extractor.
	ExtractEntities bool
}

// Channel policies for image collection.
const (
	ChannelsBoth          = "both"
	ChannelsEmbeddedFirst = "embedded_first"
)

// SignatureConfig holds signature detection configuration
type SignatureConfig struct {
	Channels         string
	Concurrency      int
	ClassifyTimeout  time.Duration
	MinConfidence    float64
	Dedup            bool
	DedupMaxDistance int
	MaxImageDim      int
	MinImageBytes    int
}

// Signature conditions for results_comply.
const (
	PolicyPresence   = "presence"
	PolicyCountMatch = "count_match"
)

// ValidationConfig holds compliance rules
type ValidationConfig struct {
	SignaturePolicy string
}

// OutputConfig holds report destination configuration
type OutputConfig struct {
	Dir       string
	GCSBucket string
	GCSPrefix string
}

// BatchConfig holds directory-mode worker configuration
type BatchConfig struct {
	Workers     int
	QueueSize   int
	DocTimeout  time.Duration
	MaxDocBytes int64
}

// GCPConfig holds Google Cloud configuration shared by Vertex and Firestore
type GCPConfig struct {
	ProjectID           string
	Region              string
	VertexModel         string
	FirestoreCollection string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Store:            strings.ToLower(getEnv("RUN_STORE", RunStoreAuto)),
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 1),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		OCR: OCRConfig{
			Provider:    strings.ToLower(getEnv("TEXT_PROVIDER", TextProviderAuto)),
			TessdataDir: getEnv("TESSDATA_PREFIX", ""),
			Lang:        getEnv("TESSERACT_LANG", "eng"),
			DPI:         getEnvAsInt("OCR_DPI", 300),
			MaxPages:    getEnvAsInt("OCR_MAX_PAGES", 50),
		},
		DocIntel: DocIntelConfig{
			Endpoint:     strings.TrimRight(getEnv("AZURE_DOCUMENT_INTELLIGENCE_ENDPOINT", ""), "/"),
			APIKey:       getEnv("AZURE_DOCUMENT_INTELLIGENCE_KEY", ""),
			APIVersion:   getEnv("AZURE_DOCUMENT_INTELLIGENCE_API_VERSION", "2024-11-30"),
			PollInterval: getEnvAsDuration("DOCINTEL_POLL_INTERVAL", time.Second),
			Timeout:      getEnvAsDuration("DOCINTEL_TIMEOUT", 2*time.Minute),
		},
		LLM: LLMConfig{
			Provider:        strings.ToLower(getEnv("LLM_PROVIDER", LLMProviderOpenAI)),
			Model:           getEnv("OPENAI_MODEL", "gpt-4o"),
			APIKey:          getEnv("OPENAI_API_KEY", ""),
			BaseURL:         getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			AzureEndpoint:   strings.TrimRight(getEnv("AZURE_OPENAI_ENDPOINT", ""), "/"),
			AzureAPIKey:     getEnv("AZURE_OPENAI_API_KEY", ""),
			AzureDeployment: getEnv("AZURE_OPENAI_DEPLOYMENT", "gpt-4o"),
			AzureAPIVersion: getEnv("AZURE_OPENAI_API_VERSION", "2024-10-21"),
			GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
			GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			Temperature:     getEnvAsFloat32("LLM_TEMPERATURE", 0.1),
			MaxTokens:       getEnvAsInt("LLM_MAX_TOKENS", 1000),
			Timeout:         getEnvAsDuration("LLM_TIMEOUT", 45*time.Second),
			ExtractEntities: getEnvAsBool("LLM_EXTRACT_ENTITIES", false),
		},
		Signature: SignatureConfig{
			Channels:         strings.ToLower(getEnv("SIGNATURE_CHANNELS", ChannelsBoth)),
			Concurrency:      getEnvAsInt("SIGNATURE_CONCURRENCY", 4),
			ClassifyTimeout:  getEnvAsDuration("SIGNATURE_CLASSIFY_TIMEOUT", 60*time.Second),
			MinConfidence:    float64(getEnvAsFloat32("SIGNATURE_MIN_CONFIDENCE", 0.5)),
			Dedup:            getEnvAsBool("SIGNATURE_DEDUP", true),
			DedupMaxDistance: getEnvAsInt("SIGNATURE_DEDUP_DISTANCE", 6),
			MaxImageDim:      getEnvAsInt("SIGNATURE_MAX_IMAGE_DIM", 1568),
			MinImageBytes:    getEnvAsInt("SIGNATURE_MIN_IMAGE_BYTES", 0),
		},
		Validation: ValidationConfig{
			SignaturePolicy: strings.ToLower(getEnv("COMPLIANCE_SIGNATURE_POLICY", PolicyPresence)),
		},
		Output: OutputConfig{
			Dir:       getEnv("OUTPUT_DIR", "output"),
			GCSBucket: getEnv("OUTPUT_GCS_BUCKET", ""),
			GCSPrefix: getEnv("OUTPUT_GCS_PREFIX", ""),
		},
		Batch: BatchConfig{
			Workers:     getEnvAsInt("BATCH_WORKERS", 2),
			QueueSize:   getEnvAsInt("BATCH_QUEUE_SIZE", 64),
			DocTimeout:  getEnvAsDuration("BATCH_DOC_TIMEOUT", 10*time.Minute),
			MaxDocBytes: int64(getEnvAsInt("MAX_DOCUMENT_BYTES", 50<<20)),
		},
		GCP: GCPConfig{
			ProjectID:           getEnv("GCP_PROJECT_ID", ""),
			Region:              getEnv("GCP_REGION", "us-central1"),
			VertexModel:         getEnv("VERTEX_MODEL", "gemini-2.0-flash"),
			FirestoreCollection: getEnv("FIRESTORE_COLLECTION", "validation_runs"),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate checks settings that every entry point depends on. Credentials
// are checked per provider so that a run without signature detection does
// not need a vision key.
func (c *Config) Validate() error {
	v := NewValidator().
		Field("TEXT_PROVIDER", c.OCR.Provider, OneOf(TextProviderAuto, TextProviderAzure, TextProviderPdftotext, TextProviderTabula)).
		Field("LLM_PROVIDER", c.LLM.Provider, OneOf(LLMProviderOpenAI, LLMProviderAzure, LLMProviderGemini, LLMProviderVertex)).
		Field("SIGNATURE_CHANNELS", c.Signature.Channels, OneOf(ChannelsBoth, ChannelsEmbeddedFirst)).
		Field("COMPLIANCE_SIGNATURE_POLICY", c.Validation.SignaturePolicy, OneOf(PolicyPresence, PolicyCountMatch)).
		Field("SIGNATURE_CONCURRENCY", c.Signature.Concurrency, IntRange(1, 64)).
		Field("SIGNATURE_MIN_CONFIDENCE", c.Signature.MinConfidence, FloatRange(0, 1)).
		Field("BATCH_WORKERS", c.Batch.Workers, IntRange(1, 256)).
		Field("OCR_DPI", c.OCR.DPI, IntRange(72, 1200)).
		Field("RUN_STORE", c.Database.Store, OneOf(RunStoreAuto, RunStoreSQL, RunStoreFirestore, RunStoreNone))
	if c.OCR.Provider == TextProviderAzure {
		v.Field("AZURE_DOCUMENT_INTELLIGENCE_ENDPOINT", c.DocIntel.Endpoint, Required).
			Field("AZURE_DOCUMENT_INTELLIGENCE_KEY", c.DocIntel.APIKey, Required)
	}
	switch c.Database.Store {
	case RunStoreSQL:
		v.Field("DB_URL", c.Database.DSN, Required)
	case RunStoreFirestore:
		v.Field("GCP_PROJECT_ID", c.GCP.ProjectID, Required)
	}
	return v.Err()
}

// RunStore resolves the auto selection.
func (c DatabaseConfig) RunStore() string {
	if c.Store == RunStoreAuto || c.Store == "" {
		if c.DSN != "" {
			return RunStoreSQL
		}
		return RunStoreNone
	}
	return c.Store
}

// ValidateLLM checks the credentials of the selected model provider.
func (c *Config) ValidateLLM() error {
	v := NewValidator()
	switch c.LLM.Provider {
	case LLMProviderOpenAI:
		v.Field("OPENAI_API_KEY", c.LLM.APIKey, Required)
	case LLMProviderAzure:
		v.Field("AZURE_OPENAI_ENDPOINT", c.LLM.AzureEndpoint, Required).
			Field("AZURE_OPENAI_API_KEY", c.LLM.AzureAPIKey, Required)
	case LLMProviderGemini:
		v.Field("GEMINI_API_KEY", c.LLM.GeminiAPIKey, Required)
	case LLMProviderVertex:
		v.Field("GCP_PROJECT_ID", c.GCP.ProjectID, Required)
	}
	return v.Err()
}
