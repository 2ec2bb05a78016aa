package providers

import "time"

const defaultGroqBaseURL = "https://api.groq.com/openai/v1"

// NewGroqProvider returns a chat provider for Groq's OpenAI-compatible API.
func NewGroqProvider(keyName, apiKey, baseURL, model string, timeout time.Duration) *OpenAIProvider {
	if baseURL == "" {
		baseURL = defaultGroqBaseURL
	}
	if model == "" {
		model = "llama-3.1-8b-instant"
	}
	return NewOpenAIProvider(OpenAIOptions{
		Name:      "groq",
		KeyName:   keyName,
		APIKey:    apiKey,
		BaseURL:   baseURL,
		ChatModel: model,
		Timeout:   timeout,
	})
}
