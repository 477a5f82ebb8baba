package report

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	ProviderAnthropic = "anthropic"

	defaultAnthropicModel = "claude-sonnet-4-20250514"
	maxReportTokens       = 2048
)

func init() {
	Register(ProviderAnthropic, func(apiKey, model string) Provider {
		return NewAnthropicProvider(apiKey, model)
	})
}

// AnthropicProvider implements Provider using Anthropic's Claude API.
type AnthropicProvider struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(apiKey, model string) *AnthropicProvider {
	if model == "" {
		model = defaultAnthropicModel
	}
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)
	return &AnthropicProvider{
		client: &client,
		model:  model,
	}
}

func (p *AnthropicProvider) Name() string {
	return ProviderAnthropic
}

// Generate sends the request to Claude and returns the response text.
func (p *AnthropicProvider) Generate(ctx context.Context, req Request) (string, error) {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(req.Images)+1)
	for _, img := range req.Images {
		blocks = append(blocks, anthropic.NewImageBlockBase64(
			img.MIME, base64.StdEncoding.EncodeToString(img.Data)))
	}
	blocks = append(blocks, anthropic.NewTextBlock(req.Prompt))

	message, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: maxReportTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(blocks...),
		},
	})
	if err != nil {
		return "", classifyAnthropicError(err)
	}

	var responseText string
	for _, block := range message.Content {
		if block.Type == "text" {
			responseText = block.Text
			break
		}
	}
	if responseText == "" {
		return "", fmt.Errorf("claude returned empty response")
	}
	return responseText, nil
}

// classifyAnthropicError maps API status codes onto the non-retryable
// sentinel categories; everything else passes through unchanged.
func classifyAnthropicError(err error) error {
	var apierr *anthropic.Error
	if !errors.As(err, &apierr) {
		return err
	}
	switch apierr.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return err
}
