package ratelimit

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tiktoken-go/tokenizer"
)

// CountTokens estimates the number of tokens in the given text.
// Uses tiktoken with model-specific encoding when possible.
func CountTokens(text, model string) int {
	if text == "" {
		return 0
	}

	enc, err := getEncoderForModel(model)
	if err != nil {
		slog.Debug("Using default encoder for model",
			"model", model,
			"reason", err.Error(),
		)
		enc, err = tokenizer.Get(tokenizer.Cl100kBase)
		if err != nil {
			slog.Warn("Failed to load tokenizer, using character estimation",
				"error", err,
			)
			return estimateTokensByChars(text)
		}
	}

	ids, _, err := enc.Encode(text)
	if err != nil {
		slog.Warn("Failed to encode text, using character estimation",
			"error", err,
		)
		return estimateTokensByChars(text)
	}

	return len(ids)
}

// getEncoderForModel attempts to get the appropriate tokenizer encoder for a model.
func getEncoderForModel(model string) (tokenizer.Codec, error) {
	model = strings.ToLower(model)

	// Direct model match first (for OpenAI models).
	if enc, err := tokenizer.ForModel(tokenizer.Model(model)); err == nil {
		return enc, nil
	}

	switch {
	// O-series, GPT-4o and newer use o200k_base
	case strings.HasPrefix(model, "o1"),
		strings.HasPrefix(model, "o3"),
		strings.HasPrefix(model, "o4"),
		strings.HasPrefix(model, "gpt-4o"),
		strings.HasPrefix(model, "gpt-5"),
		strings.HasPrefix(model, "gpt-4.1"):
		return tokenizer.Get(tokenizer.O200kBase)

	// GPT-4 and GPT-3.5 use cl100k_base
	case strings.HasPrefix(model, "gpt-4"),
		strings.HasPrefix(model, "gpt-3.5"):
		return tokenizer.Get(tokenizer.Cl100kBase)

	// Claude uses its own tokenizer; cl100k_base is a close-enough estimate
	case strings.HasPrefix(model, "claude"):
		return tokenizer.Get(tokenizer.Cl100kBase)

	default:
		return tokenizer.Get(tokenizer.Cl100kBase)
	}
}

// estimateTokensByChars provides a rough token estimate based on character
// count, ~4 characters per token. Fallback when tiktoken encoding fails.
func estimateTokensByChars(text string) int {
	return (len(text) + 3) / 4
}

// TokenBudget limits the estimated prompt tokens spent within a trailing
// window. Same sliding-window shape as Limiter, weighted by token count.
type TokenBudget struct {
	mu        sync.Mutex
	maxTokens int
	window    time.Duration
	spent     []tokenSpend

	now func() time.Time
}

type tokenSpend struct {
	at     time.Time
	tokens int
}

// NewTokenBudget creates a token budget. maxTokens <= 0 means unbounded.
func NewTokenBudget(maxTokens int, window time.Duration) *TokenBudget {
	return &TokenBudget{maxTokens: maxTokens, window: window, now: time.Now}
}

// Spend records estimated token usage for text against the budget, rejecting
// with ErrLimitExceeded when the trailing window is already exhausted.
// Always non-blocking: a caller over budget should back off, not queue.
func (b *TokenBudget) Spend(_ context.Context, text, model string) error {
	if b == nil || b.maxTokens <= 0 {
		return nil
	}

	tokens := CountTokens(text, model)

	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	cutoff := now.Add(-b.window)
	i := 0
	for i < len(b.spent) && !b.spent[i].at.After(cutoff) {
		i++
	}
	if i > 0 {
		b.spent = append(b.spent[:0], b.spent[i:]...)
	}

	total := 0
	for _, s := range b.spent {
		total += s.tokens
	}
	if total+tokens > b.maxTokens {
		return ErrLimitExceeded
	}

	b.spent = append(b.spent, tokenSpend{at: now, tokens: tokens})
	return nil
}
