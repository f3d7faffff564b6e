package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	domai "github.com/clearlane/claims-intake/internal/domain/ai"
	"github.com/clearlane/claims-intake/internal/infra/ai/prompt"
)

const maxTokens = 2048

// maxPolicyChars bounds how much extracted policy text goes into the prompt.
const maxPolicyChars = 12000

type Client struct {
	*openai.Client
}

func NewClient(apiKey string) *Client {
	return &Client{Client: openai.NewClient(apiKey)}
}

// Analyze sends one vision call to the given model and returns its structured
// JSON plus reported token usage. Provider failures are mapped onto the
// domain error taxonomy.
func (c *Client) Analyze(ctx context.Context, model string, inv domai.Invocation) (*domai.RawResult, error) {
	policyText := inv.PolicyText
	if len(policyText) > maxPolicyChars {
		policyText = policyText[:maxPolicyChars]
	}

	parts := []openai.ChatMessagePart{
		{
			Type: openai.ChatMessagePartTypeText,
			Text: prompt.GetUserPrompt(len(inv.Images), inv.HasVideo, policyText),
		},
	}
	for _, img := range inv.Images {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    dataURL(img),
				Detail: openai.ImageURLDetailAuto,
			},
		})
	}

	req := openai.ChatCompletionRequest{
		Model: model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.GetSystemPrompt(inv.Enhanced)},
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, mapProviderError(err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("%w: empty completion", domai.ErrMalformedResponse)
	}

	return &domai.RawResult{
		JSON:       []byte(resp.Choices[0].Message.Content),
		TokensUsed: resp.Usage.TotalTokens,
		Model:      resp.Model,
	}, nil
}

func dataURL(m domai.Media) string {
	ct := m.ContentType
	if ct == "" {
		ct = "image/jpeg"
	}
	return fmt.Sprintf("data:%s;base64,%s", ct, base64.StdEncoding.EncodeToString(m.Data))
}

func mapProviderError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429:
			return fmt.Errorf("%w: %v", domai.ErrQuotaExceeded, err)
		case apiErr.HTTPStatusCode >= 500:
			return fmt.Errorf("%w: %v", domai.ErrProviderUnavailable, err)
		}
		return err
	}
	// Transport-level failures (DNS, TLS, refused connections).
	return fmt.Errorf("%w: %v", domai.ErrProviderUnavailable, err)
}
