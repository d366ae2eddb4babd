package generation

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/config"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/types"
)

const geminiProvider = "gemini"

// GeminiClient calls the Gemini API through the Google GenAI SDK.
type GeminiClient struct {
	log logrus.FieldLogger
	cfg config.GeminiConfig

	once   sync.Once
	client *genai.Client
	err    error
}

var _ LLMClient = (*GeminiClient)(nil)

// NewGeminiClient creates a Gemini client. The SDK client is built on first use.
func NewGeminiClient(log logrus.FieldLogger, cfg config.GeminiConfig) *GeminiClient {
	return &GeminiClient{
		log: log.WithField("provider", geminiProvider),
		cfg: cfg,
	}
}

func (c *GeminiClient) Name() string {
	return geminiProvider
}

func (c *GeminiClient) sdk(ctx context.Context) (*genai.Client, error) {
	c.once.Do(func() {
		cc := &genai.ClientConfig{
			APIKey:  c.cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		}

		if c.cfg.BaseURL != "" {
			cc.HTTPOptions = genai.HTTPOptions{BaseURL: c.cfg.BaseURL}
		}

		c.client, c.err = genai.NewClient(ctx, cc)
	})

	return c.client, c.err
}

// Complete implements LLMClient.
func (c *GeminiClient) Complete(ctx context.Context, prompt Prompt, cfg types.DaemonConfig) (string, error) {
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("%w: gemini api key required", ErrMissingCredentials)
	}

	client, err := c.sdk(ctx)
	if err != nil {
		return "", fmt.Errorf("creating genai client: %w", err)
	}

	model := c.cfg.Model
	if cfg.Model != "" {
		model = cfg.Model
	}

	gc := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(prompt.System, genai.RoleUser),
		Temperature:       genai.Ptr(float32(cfg.Temperature)),
		ResponseMIMEType:  "application/json",
	}

	if cfg.MaxTokens != nil {
		gc.MaxOutputTokens = int32(*cfg.MaxTokens)
	}

	c.log.WithField("model", model).Debug("Generating content")

	resp, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt.User), gc)
	if err != nil {
		return "", fmt.Errorf("%w: gemini: %v", ErrUpstream, err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w: gemini returned no text", ErrMalformedResponse)
	}

	return text, nil
}
