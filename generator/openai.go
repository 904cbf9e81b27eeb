package generator

import (
	"context"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const (
	defaultOpenAIBaseURL = "https://api.deepseek.com"
	defaultOpenAIModel   = "deepseek-chat"
)

var _ Generator = &OpenAI{}

// OpenAI generates candidates with an OpenAI compatible chat completions
// endpoint (DeepSeek by default)
type OpenAI struct {
	client openai.Client
	model  string
}

// OpenAIConfig configures the OpenAI compatible generator
type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	// MaxRetries on rate limit and server errors, the fallback chain
	// handles the rest
	MaxRetries int
	Client     *http.Client
}

// NewOpenAI creates the OpenAI compatible generator
func NewOpenAI(c OpenAIConfig) (*OpenAI, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	baseURL := c.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	model := c.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	opts := []option.RequestOption{
		option.WithAPIKey(c.APIKey),
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(c.MaxRetries),
	}
	if c.Client != nil {
		opts = append(opts, option.WithHTTPClient(c.Client))
	}
	return &OpenAI{
		client: openai.NewClient(opts...),
		model:  model,
	}, nil
}

// Name returns the generator name
func (o *OpenAI) Name() string {
	return "openai:" + o.model
}

// Generate asks the model for a JSON packet
func (o *OpenAI) Generate(ctx context.Context, req Request) (*Packet, error) {
	system, user := buildPrompt(req)
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
		Temperature: openai.Float(0.2),
		TopP:        openai.Float(0.95),
		MaxTokens:   openai.Int(8192),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, o.Name(), err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: %s: no choices", ErrUnavailable, o.Name())
	}
	p, err := DecodePacket(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, o.Name(), err)
	}
	p.Source = o.Name()
	return p, nil
}
