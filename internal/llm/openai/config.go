package openai

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Config for the OpenAI client. Setting AzureEndpoint switches the client to
// Azure OpenAI deployments (api-key header, deployment URL, api-version).
type Config struct {
	APIKey          string        // bearer token, or the Azure api-key
	BaseURL         string        // default https://api.openai.com/v1
	Model           string        // model name, or the Azure deployment
	AzureEndpoint   string        // e.g. https://myres.openai.azure.com
	AzureAPIVersion string        // e.g. 2024-10-21
	Temperature     float32       // 0..2
	MaxTokens       int           // completion cap for classification
	Timeout         time.Duration // http client timeout
	Attempts        int           // tries per call on transient errors
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.AzureEndpoint != "" && cfg.AzureAPIVersion == "" {
		cfg.AzureAPIVersion = "2024-10-21"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 2
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Name identifies the backend in logs and detection_method.
func (c *Client) Name() string {
	if c.cfg.AzureEndpoint != "" {
		return "azure-openai:" + c.cfg.Model
	}
	return "openai:" + c.cfg.Model
}

func (c *Client) endpoint() string {
	if c.cfg.AzureEndpoint != "" {
		return strings.TrimRight(c.cfg.AzureEndpoint, "/") + "/openai/deployments/" + c.cfg.Model +
			"/chat/completions?api-version=" + c.cfg.AzureAPIVersion
	}
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
}

func (c *Client) headers() map[string]string {
	if c.cfg.AzureEndpoint != "" {
		return map[string]string{"api-key": c.cfg.APIKey}
	}
	return map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
}
