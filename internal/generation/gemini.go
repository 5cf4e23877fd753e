package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	MinInterval time.Duration
	Logger      *zap.Logger
}

// DefaultGeminiConfig returns sensible defaults.
func DefaultGeminiConfig(apiKey string) GeminiConfig {
	return GeminiConfig{
		APIKey:      apiKey,
		BaseURL:     "https://generativelanguage.googleapis.com/v1beta",
		Model:       "gemini-1.5-pro",
		Temperature: 0.7,
		MaxTokens:   8192,
		Timeout:     120 * time.Second,
		MinInterval: 500 * time.Millisecond,
	}
}

// GeminiClient implements Client against the Google Gemini REST API.
type GeminiClient struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	minInterval time.Duration
	httpClient  *http.Client
	logger      *zap.Logger

	mu          sync.Mutex
	lastRequest time.Time
}

// NewGeminiClient creates a Gemini client with default config.
func NewGeminiClient(apiKey string) *GeminiClient {
	return NewGeminiClientWithConfig(DefaultGeminiConfig(apiKey))
}

// NewGeminiClientWithConfig creates a Gemini client with custom config.
func NewGeminiClientWithConfig(config GeminiConfig) *GeminiClient {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	model := strings.TrimSpace(config.Model)
	if model == "" {
		model = "gemini-1.5-pro"
	}
	return &GeminiClient{
		apiKey:      config.APIKey,
		baseURL:     strings.TrimRight(config.BaseURL, "/"),
		model:       model,
		temperature: config.Temperature,
		maxTokens:   config.MaxTokens,
		minInterval: config.MinInterval,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger,
	}
}

// Model returns the model used for generation.
func (c *GeminiClient) Model() string {
	return c.model
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature,omitempty"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// Generate sends the prompt and parses the response into record candidates.
// expectedCount is advisory; the service may return fewer or more candidates
// and the caller reconciles counts.
func (c *GeminiClient) Generate(ctx context.Context, prompt string, expectedCount int) ([]Record, error) {
	if c.apiKey == "" {
		return nil, &FatalAuthError{Message: "API key not configured"}
	}

	c.pace()

	reqBody := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: prompt}}},
		},
		GenerationConfig: &geminiGenerationConfig{
			Temperature:      c.temperature,
			MaxOutputTokens:  c.maxTokens,
			ResponseMIMEType: "application/json",
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransientError{Op: "request", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{Op: "read response", Err: err}
	}

	if err := c.classifyStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	var gr geminiResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return nil, &MalformedResponseError{Snippet: snippet(body), Err: err}
	}
	if gr.Error != nil {
		if isAuthStatus(gr.Error.Status) {
			return nil, &FatalAuthError{Status: gr.Error.Code, Message: gr.Error.Message}
		}
		return nil, &TransientError{Op: "api error", Err: fmt.Errorf("%s: %s", gr.Error.Status, gr.Error.Message)}
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return nil, &MalformedResponseError{Snippet: snippet(body), Err: fmt.Errorf("no candidates returned")}
	}

	var text strings.Builder
	for _, part := range gr.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}

	records, err := ParseRecords(text.String())
	if err != nil {
		return nil, err
	}

	c.logger.Debug("generation call complete",
		zap.Int("expected", expectedCount),
		zap.Int("parsed", len(records)))

	return records, nil
}

// classifyStatus maps HTTP statuses into the failure taxonomy. 401/403 are
// credential failures; 429 and 5xx are retryable.
func (c *GeminiClient) classifyStatus(status int, body []byte) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &FatalAuthError{Status: status, Message: apiErrorMessage(body)}
	case status == http.StatusTooManyRequests:
		return &TransientError{Op: "rate limit", Err: fmt.Errorf("status 429: %s", apiErrorMessage(body))}
	case status >= 500:
		return &TransientError{Op: "server error", Err: fmt.Errorf("status %d: %s", status, apiErrorMessage(body))}
	default:
		// Gemini reports bad API keys as 400 INVALID_ARGUMENT.
		var gr geminiResponse
		if json.Unmarshal(body, &gr) == nil && gr.Error != nil && isAuthStatus(gr.Error.Status) {
			return &FatalAuthError{Status: status, Message: gr.Error.Message}
		}
		return &TransientError{Op: "unexpected status", Err: fmt.Errorf("status %d: %s", status, apiErrorMessage(body))}
	}
}

// pace enforces a minimum interval between requests.
func (c *GeminiClient) pace() {
	if c.minInterval <= 0 {
		return
	}
	c.mu.Lock()
	if elapsed := time.Since(c.lastRequest); elapsed < c.minInterval {
		time.Sleep(c.minInterval - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()
}

func isAuthStatus(status string) bool {
	switch status {
	case "UNAUTHENTICATED", "PERMISSION_DENIED":
		return true
	}
	return strings.Contains(status, "API_KEY")
}

func apiErrorMessage(body []byte) string {
	var gr geminiResponse
	if json.Unmarshal(body, &gr) == nil && gr.Error != nil && gr.Error.Message != "" {
		return gr.Error.Message
	}
	return snippet(body)
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
