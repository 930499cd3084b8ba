package llm

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/vintera/labelforge/internal/fault"
)

// GoogleClient backs Client and ImageClient with the Gemini API. A shared
// token-bucket limiter gates every attempt, retries included, so backoff
// and rate limiting compose instead of fighting.
type GoogleClient struct {
	client  *genai.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewGoogleClient creates a client for the Gemini API. rps/burst bound
// outbound call rate across all steps.
func NewGoogleClient(ctx context.Context, apiKey string, rps float64, burst int, logger *slog.Logger) (*GoogleClient, error) {
	if apiKey == "" {
		return nil, fault.Validation("GEMINI_API_KEY is not set")
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	if rps <= 0 {
		rps = 1
	}
	if burst < 1 {
		burst = 1
	}

	return &GoogleClient{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger,
	}, nil
}

// Generate sends a prompt (optionally with an inline image) and returns
// the raw response text.
func (c *GoogleClient) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	if req.Image != nil {
		parts = append(parts, genai.NewPartFromBytes(req.Image.Data, req.Image.MIMEType))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}

	resp, err := c.client.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return "", fmt.Errorf("generate content with %s: %w", req.Model, err)
	}

	text := resp.Text()
	if text == "" {
		return "", fault.New(fault.KindNetwork, true, "model returned an empty response").
			With("model", req.Model)
	}

	c.logger.Debug("model response received",
		"model", req.Model,
		"prompt_len", len(req.Prompt),
		"response_len", len(text))
	return text, nil
}

// GenerateImage produces one image for the prompt at the requested
// aspect ratio.
func (c *GoogleClient) GenerateImage(ctx context.Context, req ImageRequest) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	config := &genai.GenerateImagesConfig{
		NumberOfImages: 1,
	}
	if req.AspectRatio != "" {
		config.AspectRatio = req.AspectRatio
	}

	resp, err := c.client.Models.GenerateImages(ctx, req.Model, req.Prompt, config)
	if err != nil {
		return nil, fmt.Errorf("generate image with %s: %w", req.Model, err)
	}
	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		return nil, fault.New(fault.KindNetwork, true, "image model returned no images").
			With("model", req.Model)
	}

	return resp.GeneratedImages[0].Image.ImageBytes, nil
}
