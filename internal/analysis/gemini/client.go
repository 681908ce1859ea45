// Package gemini is the analysis client for the hosted multimodal model.
// Every call opens a fresh stateless chat session; no history is retained
// between requests.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/licenselens/licenselens-backend/pkg/config"
	"github.com/licenselens/licenselens-backend/pkg/logger"
)

// Client talks to the Gemini API.
type Client struct {
	client *genai.Client
	cfg    *config.GeminiConfig
	log    *logger.Logger
}

// NewClient creates a Gemini client from the configured credential.
func NewClient(ctx context.Context, cfg *config.GeminiConfig, log *logger.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: missing API key")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini init: %w", err)
	}

	return &Client{
		client: client,
		cfg:    cfg,
		log:    log.WithComponent("gemini"),
	}, nil
}

// Close releases the underlying API client.
func (c *Client) Close() error {
	return c.client.Close()
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Analyze sends the composed prompt and the normalized JPEG to the model in
// a single-turn chat session and returns the raw text reply unmodified.
// Any failure - network, quota, empty candidates - comes back as one opaque
// error; the caller does not classify causes.
func (c *Client) Analyze(ctx context.Context, promptText string, imageJPEG []byte) (string, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	model := c.client.GenerativeModel(c.cfg.Model)
	model.SetTemperature(c.cfg.Temperature)
	model.SetTopP(c.cfg.TopP)
	model.SetTopK(c.cfg.TopK)
	model.SetMaxOutputTokens(c.cfg.MaxOutputTokens)
	model.ResponseMIMEType = "text/plain"

	// Fresh session per call: no history carried between analyses.
	session := model.StartChat()

	resp, err := session.SendMessage(ctx,
		genai.Text(promptText),
		genai.ImageData("jpeg", imageJPEG),
	)
	if err != nil {
		return "", fmt.Errorf("gemini send: %w", err)
	}

	text, err := responseText(resp)
	if err != nil {
		return "", err
	}

	c.log.Debug().
		Str("model", c.cfg.Model).
		Int("reply_chars", len(text)).
		Msg("model reply received")

	return text, nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini: empty response")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}

	if sb.Len() == 0 {
		return "", errors.New("gemini: response contained no text")
	}
	return sb.String(), nil
}
