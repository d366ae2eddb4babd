package generation

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/sirupsen/logrus"

	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/config"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/types"
)

const openAIProvider = "openai"

// OpenAIClient talks to an OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	log  logrus.FieldLogger
	cfg  config.OpenAIConfig
	opts []option.RequestOption
}

var _ LLMClient = (*OpenAIClient)(nil)

// NewOpenAIClient creates an OpenAI client. Extra options are appended
// after the configured key and base URL.
func NewOpenAIClient(log logrus.FieldLogger, cfg config.OpenAIConfig, extra ...option.RequestOption) *OpenAIClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}

	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		log:  log.WithField("provider", openAIProvider),
		cfg:  cfg,
		opts: append(opts, extra...),
	}
}

func (c *OpenAIClient) Name() string {
	return openAIProvider
}

// Complete implements LLMClient.
func (c *OpenAIClient) Complete(ctx context.Context, prompt Prompt, cfg types.DaemonConfig) (string, error) {
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("%w: openai api key required", ErrMissingCredentials)
	}

	model := c.cfg.Model
	if cfg.Model != "" {
		model = cfg.Model
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt.System),
			openai.UserMessage(prompt.User),
		},
		Temperature: openai.Float(cfg.Temperature),
	}

	if cfg.MaxTokens != nil {
		params.MaxTokens = openai.Int(int64(*cfg.MaxTokens))
	}

	c.log.WithField("model", model).Debug("Requesting chat completion")

	client := openai.NewClient(c.opts...)

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: openai: %v", ErrUpstream, err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: openai returned no content", ErrMalformedResponse)
	}

	return resp.Choices[0].Message.Content, nil
}
