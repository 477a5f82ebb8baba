package report

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	ProviderGemini = "gemini"

	geminiAPIBase      = "https://generativelanguage.googleapis.com/v1beta/models"
	defaultGeminiModel = "gemini-2.0-flash"
)

func init() {
	Register(ProviderGemini, func(apiKey, model string) Provider {
		return NewGeminiProvider(apiKey, model)
	})
}

// GeminiProvider implements Provider using Google's Gemini API over plain
// HTTP.
type GeminiProvider struct {
	apiKey string
	model  string
	client *http.Client
}

// NewGeminiProvider creates a new Gemini provider.
func NewGeminiProvider(apiKey, model string) *GeminiProvider {
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiProvider{
		apiKey: apiKey,
		model:  model,
		client: &http.Client{
			Timeout: 120 * time.Second, // LLM calls can be slow
		},
	}
}

func (p *GeminiProvider) Name() string {
	return ProviderGemini
}

// geminiRequest represents the request body for the generateContent endpoint
type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string          `json:"text,omitempty"`
	InlineData *geminiBlobPart `json:"inline_data,omitempty"`
}

type geminiBlobPart struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

// geminiResponse represents the response from the generateContent endpoint
type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate sends the request to Gemini and returns the response text.
func (p *GeminiProvider) Generate(ctx context.Context, req Request) (string, error) {
	parts := make([]geminiPart, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, geminiPart{InlineData: &geminiBlobPart{
			MIMEType: img.MIME,
			Data:     base64.StdEncoding.EncodeToString(img.Data),
		}})
	}
	parts = append(parts, geminiPart{Text: req.Prompt})

	jsonBody, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: parts}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent", geminiAPIBase, p.model)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to call Gemini API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyGeminiStatus(resp.StatusCode, body)
	}

	var geminiResp geminiResponse
	if err := json.Unmarshal(body, &geminiResp); err != nil {
		return "", fmt.Errorf("failed to parse Gemini response: %w", err)
	}
	if geminiResp.Error != nil {
		return "", fmt.Errorf("Gemini API error: %s - %s", geminiResp.Error.Status, geminiResp.Error.Message)
	}
	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("Gemini returned empty response")
	}
	return geminiResp.Candidates[0].Content.Parts[0].Text, nil
}

func classifyGeminiStatus(status int, body []byte) error {
	base := fmt.Errorf("Gemini API returned status %d: %s", status, string(body))
	switch status {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %v", ErrUnauthorized, base)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %v", ErrPermissionDenied, base)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %v", ErrBadRequest, base)
	}
	return base
}
