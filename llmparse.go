// Package llmparse turns free-form text, HTML, and PDFs into structured data
// by delegating interpretation to a language model. Factories return plain
// functions: GetParser yields a ParseFunc that extracts a field mapping per a
// natural-language prompt, GetFilter yields a FilterFunc that answers a
// yes/no question about the text. OpenAI and Anthropic are supported; every
// invocation is rate-limit gated and its token usage appended to a local log.
package llmparse

import "context"

// Fields is the mapping a parser extracts. Values are what the model's JSON
// decodes to: strings, json.Number, bools, nested maps and slices. Keys the
// prompt did not ask for are preserved, not rejected.
type Fields map[string]any

// ParseFunc extracts structured fields from one input text.
type ParseFunc func(ctx context.Context, text string) (Fields, error)

// FilterFunc answers the configured question about one input text.
type FilterFunc func(ctx context.Context, text string) (bool, error)

// parserSystem frames the caller's prompt so the model answers with bare
// JSON. The exact phrasing matters less than forbidding surrounding prose;
// the parser still tolerates fences and chatter as a fallback.
func parserSystem(prompt string) string {
	return "You are a parser that extracts structured data from text.\n" +
		prompt + "\n" +
		"Respond with a single valid JSON object containing the extracted fields and nothing else."
}

// filterSystem frames the caller's question as a strict boolean judgement.
func filterSystem(prompt string) string {
	return "You are a filter that evaluates text against a condition.\n" +
		prompt + "\n" +
		"Respond with exactly one word, true or false, and nothing else."
}
