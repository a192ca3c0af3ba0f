package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// GeminiClient calls the Gemini API through the genai SDK. The SDK client
// is created on first use so a missing key surfaces as ErrNoAPIKey at call
// time rather than at startup.
type GeminiClient struct {
	opts   Options
	logger *zap.Logger

	once    sync.Once
	client  *genai.Client
	initErr error
}

func NewGeminiClient(opts Options, logger *zap.Logger) *GeminiClient {
	if opts.Model == "" {
		opts.Model = "gemini-2.0-flash"
	}
	return &GeminiClient{opts: opts, logger: logger}
}

func (c *GeminiClient) init(ctx context.Context) error {
	c.once.Do(func() {
		c.client, c.initErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  c.opts.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if c.initErr != nil {
			c.initErr = fmt.Errorf("creating GenAI client: %w", c.initErr)
		}
	})
	return c.initErr
}

func (c *GeminiClient) Complete(ctx context.Context, req Request) (string, error) {
	if c.opts.APIKey == "" {
		return "", ErrNoAPIKey
	}
	if err := c.init(ctx); err != nil {
		return "", err
	}
	start := time.Now()

	temp := float32(c.opts.temperature(req))
	genCfg := &genai.GenerateContentConfig{
		Temperature: &temp,
	}
	if n := c.opts.maxTokens(req); n > 0 {
		genCfg.MaxOutputTokens = int32(n)
	}
	if strings.TrimSpace(req.System) != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	result, err := c.client.Models.GenerateContent(ctx, c.opts.Model,
		[]*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)},
		genCfg,
	)
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}

	text := strings.TrimSpace(candidateText(result))
	if text == "" {
		return "", ErrEmptyCompletion
	}
	c.logger.Debug("completion finished",
		zap.String("model", c.opts.Model),
		zap.Duration("elapsed", time.Since(start)),
	)
	return text, nil
}

func candidateText(result *genai.GenerateContentResponse) string {
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part != nil && !part.Thought {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}
