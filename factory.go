package llmparse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"llmparse/internal/config"
	"llmparse/internal/parser"
	"llmparse/internal/providers"
	"llmparse/internal/providers/anthropic"
	"llmparse/internal/providers/openai"
	"llmparse/internal/ratelimit"
	"llmparse/internal/telemetry"
	"llmparse/internal/textconv"
	"llmparse/internal/usagelog"
)

// GetParser builds a ParseFunc that extracts the fields described by prompt
// from plain text.
func GetParser(prompt string, opts ...Option) (ParseFunc, error) {
	r, err := build(opts)
	if err != nil {
		return nil, err
	}
	return r.parseFunc(prompt, nil), nil
}

// GetHTMLParser is GetParser for HTML input, raw or base64-encoded. The
// markup is reduced to plain text before the model sees it.
func GetHTMLParser(prompt string, opts ...Option) (ParseFunc, error) {
	r, err := build(opts)
	if err != nil {
		return nil, err
	}
	convert := func(text string) (string, error) {
		converted, err := textconv.HTMLToText([]byte(text), r.logger)
		if err != nil {
			return "", &ConversionError{Format: "html", Err: err}
		}
		return converted, nil
	}
	return r.parseFunc(prompt, convert), nil
}

// GetPDFParser is GetParser for base64-encoded PDF input. Page text is
// extracted before the model sees it.
func GetPDFParser(prompt string, opts ...Option) (ParseFunc, error) {
	r, err := build(opts)
	if err != nil {
		return nil, err
	}
	convert := func(text string) (string, error) {
		converted, err := textconv.PDFToText([]byte(text), r.logger)
		if err != nil {
			return "", &ConversionError{Format: "pdf", Err: err}
		}
		return converted, nil
	}
	return r.parseFunc(prompt, convert), nil
}

// GetFilter builds a FilterFunc that answers the yes/no question in prompt
// about each input text.
func GetFilter(prompt string, opts ...Option) (FilterFunc, error) {
	r, err := build(opts)
	if err != nil {
		return nil, err
	}
	system := filterSystem(prompt)
	return func(ctx context.Context, text string) (bool, error) {
		raw, err := r.invoke(ctx, "filter", system, text)
		if err != nil {
			return false, err
		}
		verdict, err := parser.ParseBool(raw)
		if err != nil {
			return false, &ParseError{Raw: raw, Err: err}
		}
		return verdict, nil
	}, nil
}

// runner holds everything a built function needs per invocation.
type runner struct {
	provider providers.Provider
	model    string
	temp     float64
	gate     ratelimit.Gate
	budget   *ratelimit.TokenBudget
	sink     usagelog.Sink
	schema   map[string]any
	logger   *slog.Logger
}

// build resolves configuration, applies options, and wires the provider
// client plus ambient machinery shared by all factories.
func build(opts []Option) (*runner, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	o := options{
		provider:     cfg.Provider,
		model:        cfg.Model,
		temperature:  cfg.Temperature,
		usageLogPath: cfg.UsageLog,
	}
	if cfg.RateLimit.MaxCalls > 0 {
		o.gate = ratelimit.New(cfg.RateLimit.MaxCalls, cfg.RateLimit.Window, ratelimit.Block)
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	if o.temperature < 0 || o.temperature > 2 {
		return nil, fmt.Errorf("temperature %v out of range [0, 2]", o.temperature)
	}

	r := &runner{
		model:  o.model,
		temp:   o.temperature,
		gate:   o.gate,
		budget: o.budget,
		schema: o.schema,
		logger: o.logger,
	}

	switch strings.ToLower(o.provider) {
	case "openai":
		r.provider = openai.New(openai.Config{BaseURL: o.baseURL}, o.httpClient, o.logger)
		if r.model == "" {
			r.model = openai.DefaultModel
		}
	case "anthropic":
		r.provider = anthropic.New(anthropic.Config{BaseURL: o.baseURL}, o.httpClient, o.logger)
		if r.model == "" {
			r.model = anthropic.DefaultModel
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, o.provider)
	}

	r.sink = o.sink
	if r.sink == nil {
		path := usagelog.ResolvePath(o.usageLogPath)
		sink, err := usagelog.NewFileSink(path, o.logger)
		if err != nil {
			// Usage logging is best-effort; an unwritable destination
			// must not disable parsing.
			o.logger.Warn("usage log unavailable", "path", path, "error", err)
		} else {
			r.sink = sink
		}
	}

	return r, nil
}

func (r *runner) parseFunc(prompt string, convert func(string) (string, error)) ParseFunc {
	system := parserSystem(prompt)
	return func(ctx context.Context, text string) (Fields, error) {
		input := text
		if convert != nil {
			converted, err := convert(text)
			if err != nil {
				return nil, err
			}
			input = converted
		}

		raw, err := r.invoke(ctx, "parse", system, input)
		if err != nil {
			return nil, err
		}

		fields, err := parser.ParseFields(raw)
		if err != nil {
			return nil, &ParseError{Raw: raw, Err: err}
		}
		if r.schema != nil {
			if err := parser.Validate(r.schema, fields); err != nil {
				return nil, &ParseError{Raw: raw, Err: err}
			}
		}
		return Fields(fields), nil
	}
}

// invoke runs the shared pipeline: limiter, token budget, traced provider
// call, then the usage record. The record is written before the caller gets
// to interpret the output, so failed parses still account for their tokens.
func (r *runner) invoke(ctx context.Context, kind, system, text string) (string, error) {
	if r.gate != nil {
		if err := r.gate.Acquire(ctx); err != nil {
			return "", err
		}
	}
	if err := r.budget.Spend(ctx, system+text, r.model); err != nil {
		return "", err
	}

	ctx, span := telemetry.StartInvocation(ctx, kind, r.provider.Name(), r.model)
	resp, err := r.provider.Complete(ctx, providers.Request{
		System:      system,
		User:        text,
		Model:       r.model,
		Temperature: r.temp,
	})
	telemetry.EndInvocation(span, resp.Usage.PromptTokens, resp.Usage.CompletionTokens, err)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", &InvocationError{Provider: r.provider.Name(), Err: err}
	}

	usagelog.Log(r.sink, usagelog.Record{
		Timestamp:        time.Now(),
		Model:            r.model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.Total(),
	}, r.logger)

	return resp.Text, nil
}
