package providers

import "context"

// Request is a single-turn completion request.
type Request struct {
	System      string
	User        string
	Model       string
	Temperature float64
	MaxTokens   int
}

// Usage carries the token counts reported by the provider.
// Fields missing from the provider response stay zero.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

func (u Usage) Total() int {
	return u.PromptTokens + u.CompletionTokens
}

// Response is the provider's raw text output plus token accounting.
type Response struct {
	Text  string
	Usage Usage
}

// Provider defines the minimal interface to run a completion against an LLM API.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (Response, error)
}
