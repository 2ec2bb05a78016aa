package providers

import (
	"fmt"
	"strings"

	"citegraph/internal/config"
	"citegraph/internal/logger"
)

type NamedLLMProvider struct {
	Ref      ProviderRef
	Provider LLMProvider
}

type NamedEmbedProvider struct {
	Ref      ProviderRef
	Provider EmbeddingProvider
}

type Manager struct {
	cfg            *config.Config
	llmProviders   []NamedLLMProvider
	embedProviders []NamedEmbedProvider
	image          ImageEmbedder
}

func NewManager(cfg *config.Config) (*Manager, error) {
	m := &Manager{cfg: cfg}
	for _, ref := range ParseProviderList(cfg.LLMProviders) {
		p, err := buildProvider(ref, cfg)
		if err != nil {
			return nil, err
		}
		llm, ok := p.(LLMProvider)
		if !ok {
			return nil, fmt.Errorf("provider %s does not support llm", ref.Entry)
		}
		m.llmProviders = append(m.llmProviders, NamedLLMProvider{Ref: ref, Provider: llm})
	}
	for _, ref := range ParseProviderList(cfg.EmbedProviders) {
		p, err := buildProvider(ref, cfg)
		if err != nil {
			return nil, err
		}
		embed, ok := p.(EmbeddingProvider)
		if !ok {
			return nil, fmt.Errorf("provider %s does not support embeddings", ref.Entry)
		}
		m.embedProviders = append(m.embedProviders, NamedEmbedProvider{Ref: ref, Provider: embed})
	}

	switch strings.ToLower(cfg.ImageEmbedder) {
	case "mock":
		m.image = NewImageEmbedder(NewMockProvider(cfg.ImageEmbedDim), cfg.ImageEmbedDim)
	case "http":
		m.image = NewImageEmbedder(NewHTTPImageEmbedder(cfg.ImageEmbedURL, cfg.HTTPTimeout), cfg.ImageEmbedDim)
	}
	return m, nil
}

// TextEmbedder returns the first preferred embedding provider. Providers are
// never mixed within one collection, so there is no failover here.
func (m *Manager) TextEmbedder() *Embedder {
	order := m.PreferredEmbedOrder()
	return NewEmbedder(m.embedProviders[order[0]].Provider, m.cfg.TextEmbedDim)
}

// ImageEmbedder returns nil when no image embedder is configured.
func (m *Manager) ImageEmbedder() ImageEmbedder {
	return m.image
}

func (m *Manager) Chat(audit AuditSink, log *logger.Logger) *Chat {
	order := m.PreferredLLMOrder()
	return NewChat(m.llmProviders[order[0]].Provider, audit, log)
}

func (m *Manager) EmbedCount() int {
	return len(m.embedProviders)
}

func (m *Manager) LLMCount() int {
	return len(m.llmProviders)
}

func (m *Manager) PreferredLLMOrder() []int {
	return preferredOrder(len(m.llmProviders), func(i int) string { return strings.ToLower(m.llmProviders[i].Ref.Name) })
}

func (m *Manager) PreferredEmbedOrder() []int {
	return preferredOrder(len(m.embedProviders), func(i int) string { return strings.ToLower(m.embedProviders[i].Ref.Name) })
}

func preferredOrder(n int, nameAt func(i int) string) []int {
	if n <= 0 {
		return nil
	}
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if nameAt(i) != "mock" {
			out = append(out, i)
		}
	}
	for i := 0; i < n; i++ {
		if nameAt(i) == "mock" {
			out = append(out, i)
		}
	}
	return out
}

// buildProvider applies ref.Model as a model override, e.g.
// "ollama:bge" or "openai:gpt-4o".
func buildProvider(ref ProviderRef, cfg *config.Config) (any, error) {
	switch strings.ToLower(ref.Name) {
	case "mock":
		return NewMockProvider(cfg.TextEmbedDim), nil
	case "openai":
		chatModel := cfg.ChatModel
		embedModel := cfg.OpenAIEmbedModel
		if ref.Model != "" {
			if strings.Contains(ref.Model, "embedding") {
				embedModel = ref.Model
			} else {
				chatModel = ref.Model
			}
		}
		return NewOpenAIProvider(OpenAIOptions{
			Name:       "openai",
			KeyName:    ref.Model,
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			ChatModel:  chatModel,
			EmbedModel: embedModel,
			Timeout:    cfg.LLMTimeout,
		}), nil
	case "groq":
		model := cfg.ChatModel
		if ref.Model != "" {
			model = ref.Model
		}
		return NewGroqProvider(ref.Model, cfg.GroqAPIKey, cfg.GroqBaseURL, model, cfg.LLMTimeout), nil
	case "ollama":
		return NewOllamaEmbeddingProvider(ref.Model, cfg.OllamaBaseURL, cfg.OllamaEmbedModel, cfg.HTTPTimeout), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", ref.Name)
	}
}
