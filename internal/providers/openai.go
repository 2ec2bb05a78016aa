package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

const defaultSystemPrompt = "You are a research assistant analysing academic papers. Keep responses concise and grounded in the provided text."

// OpenAIProvider talks to any OpenAI-compatible endpoint (OpenAI, Groq,
// OpenRouter) through go-openai.
type OpenAIProvider struct {
	name       string
	keyName    string
	apiKey     string
	chatModel  string
	embedModel string
	client     *openai.Client
}

type OpenAIOptions struct {
	Name       string
	KeyName    string
	APIKey     string
	BaseURL    string
	ChatModel  string
	EmbedModel string
	Timeout    time.Duration
}

func NewOpenAIProvider(opts OpenAIOptions) *OpenAIProvider {
	if opts.Name == "" {
		opts.Name = "openai"
	}
	if opts.ChatModel == "" {
		opts.ChatModel = "gpt-4o-mini"
	}
	if opts.EmbedModel == "" {
		opts.EmbedModel = string(openai.SmallEmbedding3)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	if strings.TrimSpace(opts.BaseURL) != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: opts.Timeout}
	return &OpenAIProvider{
		name:       opts.Name,
		keyName:    opts.KeyName,
		apiKey:     opts.APIKey,
		chatModel:  opts.ChatModel,
		embedModel: opts.EmbedModel,
		client:     openai.NewClientWithConfig(cfg),
	}
}

func (o *OpenAIProvider) info(model string) ProviderInfo {
	return ProviderInfo{Name: o.name, Model: model, Key: o.keyName}
}

func (o *OpenAIProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	info := o.info(o.embedModel)
	if o.apiKey == "" {
		return nil, info, fmt.Errorf("%s key missing", o.name)
	}
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      req.Inputs,
		Model:      openai.EmbeddingModel(o.embedModel),
		Dimensions: req.Dimension,
	})
	if err != nil {
		return nil, info, fmt.Errorf("%s embedding request failed: %w", o.name, err)
	}
	out := make([][]float32, len(req.Inputs))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, info, fmt.Errorf("%s embedding index %d out of range", o.name, d.Index)
		}
		out[d.Index] = d.Embedding
	}
	for i, v := range out {
		if len(v) == 0 {
			return nil, info, fmt.Errorf("%s returned no embedding for input %d", o.name, i)
		}
	}
	return out, info, nil
}

func (o *OpenAIProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	model := req.Model
	if model == "" {
		model = o.chatModel
	}
	info := o.info(model)
	if o.apiKey == "" {
		return GenerateResponse{}, info, fmt.Errorf("%s key missing", o.name)
	}
	system := req.System
	if system == "" {
		system = defaultSystemPrompt
	}
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return GenerateResponse{}, info, fmt.Errorf("%s generate request failed: %w", o.name, err)
	}
	if len(resp.Choices) == 0 {
		return GenerateResponse{}, info, fmt.Errorf("%s returned empty choices", o.name)
	}
	return GenerateResponse{Text: resp.Choices[0].Message.Content}, info, nil
}
