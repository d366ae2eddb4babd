package generation

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/sirupsen/logrus"

	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/config"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/types"
)

const (
	bedrockService          = "bedrock"
	bedrockAnthropicVersion = "bedrock-2023-05-31"
	bedrockAPIKeyPrefix     = "ABSK"
	maxErrorBody            = 512
)

// BedrockClient invokes Anthropic models on AWS Bedrock with SigV4 signed
// InvokeModel requests.
type BedrockClient struct {
	log        logrus.FieldLogger
	cfg        config.BedrockConfig
	httpClient *http.Client
	signer     *v4.Signer
	now        func() time.Time
}

var _ LLMClient = (*BedrockClient)(nil)

// NewBedrockClient creates a Bedrock client. Credentials are resolved per
// call so a missing key surfaces as ErrMissingCredentials, not at startup.
func NewBedrockClient(log logrus.FieldLogger, cfg config.BedrockConfig, httpClient *http.Client) *BedrockClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &BedrockClient{
		log:        log.WithField("provider", bedrockService),
		cfg:        cfg,
		httpClient: httpClient,
		signer:     v4.NewSigner(),
		now:        time.Now,
	}
}

func (c *BedrockClient) Name() string {
	return bedrockService
}

type bedrockMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	Temperature      float64          `json:"temperature"`
	System           string           `json:"system"`
	Messages         []bedrockMessage `json:"messages"`
}

type bedrockResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Complete implements LLMClient.
func (c *BedrockClient) Complete(ctx context.Context, prompt Prompt, cfg types.DaemonConfig) (string, error) {
	creds, err := c.credentials(ctx)
	if err != nil {
		return "", err
	}

	maxTokens := c.cfg.MaxTokens
	if cfg.MaxTokens != nil {
		maxTokens = *cfg.MaxTokens
	}

	body, err := json.Marshal(bedrockRequest{
		AnthropicVersion: bedrockAnthropicVersion,
		MaxTokens:        maxTokens,
		Temperature:      cfg.Temperature,
		System:           prompt.System,
		Messages:         []bedrockMessage{{Role: "user", Content: prompt.User}},
	})
	if err != nil {
		return "", fmt.Errorf("encoding bedrock request: %w", err)
	}

	modelID := c.cfg.ModelID
	if cfg.Model != "" {
		modelID = cfg.Model
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.invokeURL(modelID), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating bedrock request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	hash := sha256.Sum256(body)
	if err := c.signer.SignHTTP(ctx, creds, req, hex.EncodeToString(hash[:]), bedrockService, c.cfg.Region, c.now()); err != nil {
		return "", fmt.Errorf("signing bedrock request: %w", err)
	}

	c.log.WithField("model_id", modelID).Debug("Invoking Bedrock model")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("bedrock request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading bedrock response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: bedrock status %d: %s", ErrUpstream, resp.StatusCode, truncate(respBody))
	}

	var decoded bedrockResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return "", fmt.Errorf("%w: bedrock envelope: %v", ErrMalformedResponse, err)
	}

	if len(decoded.Content) == 0 || decoded.Content[0].Text == "" {
		return "", fmt.Errorf("%w: no text content in bedrock response", ErrMalformedResponse)
	}

	return decoded.Content[0].Text, nil
}

func (c *BedrockClient) invokeURL(modelID string) string {
	base := c.cfg.Endpoint
	if base == "" {
		base = fmt.Sprintf("https://bedrock-runtime.%s.amazonaws.com", c.cfg.Region)
	}

	return strings.TrimRight(base, "/") + "/model/" + url.PathEscape(modelID) + "/invoke"
}

// credentials resolves signing credentials from the API key or the explicit
// access key pair, the API key taking precedence.
func (c *BedrockClient) credentials(ctx context.Context) (aws.Credentials, error) {
	id, secret := c.cfg.AccessKeyID, c.cfg.SecretAccessKey

	if c.cfg.APIKey != "" {
		var err error

		id, secret, err = decodeBedrockAPIKey(c.cfg.APIKey)
		if err != nil {
			return aws.Credentials{}, err
		}
	}

	if id == "" || secret == "" {
		return aws.Credentials{}, fmt.Errorf("%w: bedrock api key or access key pair required", ErrMissingCredentials)
	}

	creds, err := credentials.NewStaticCredentialsProvider(id, secret, c.cfg.SessionToken).Retrieve(ctx)
	if err != nil {
		return aws.Credentials{}, fmt.Errorf("%w: %v", ErrMissingCredentials, err)
	}

	return creds, nil
}

// decodeBedrockAPIKey splits an ABSK<base64(id:secret)> key.
func decodeBedrockAPIKey(key string) (string, string, error) {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(strings.TrimSpace(key), bedrockAPIKeyPrefix))
	if err != nil {
		return "", "", fmt.Errorf("%w: decoding bedrock api key: %v", ErrMissingCredentials, err)
	}

	id, secret, ok := strings.Cut(string(decoded), ":")
	if !ok || id == "" || secret == "" {
		return "", "", fmt.Errorf("%w: bedrock api key is not id:secret", ErrMissingCredentials)
	}

	return id, secret, nil
}

func truncate(b []byte) string {
	if len(b) > maxErrorBody {
		return string(b[:maxErrorBody]) + "..."
	}

	return string(b)
}
