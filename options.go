package llmparse

import (
	"log/slog"
	"net/http"
	"time"

	"llmparse/internal/ratelimit"
	"llmparse/internal/usagelog"
)

// Policy decides what an over-limit invocation does.
type Policy int

const (
	// Block waits for a slot in the rate limit window.
	Block Policy = iota
	// Reject fails immediately with ErrRateLimited.
	Reject
)

// UsageRecord is one entry in the usage log.
type UsageRecord struct {
	Timestamp        time.Time
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// UsageSink receives one record per model invocation. Append errors are
// logged and swallowed; a broken sink never fails a call.
type UsageSink interface {
	Append(rec UsageRecord) error
	Close() error
}

type options struct {
	provider    string
	model       string
	temperature float64
	baseURL     string
	httpClient  *http.Client
	logger      *slog.Logger

	usageLogPath string
	sink         usagelog.Sink

	gate   ratelimit.Gate
	budget *ratelimit.TokenBudget

	schema map[string]any
}

// Option adjusts factory behavior.
type Option func(*options)

// WithProvider selects the model provider, "openai" or "anthropic".
func WithProvider(name string) Option {
	return func(o *options) { o.provider = name }
}

// WithModel overrides the provider's default model.
func WithModel(model string) Option {
	return func(o *options) { o.model = model }
}

// WithTemperature sets the sampling temperature, 0 to 2.
func WithTemperature(t float64) Option {
	return func(o *options) { o.temperature = t }
}

// WithBaseURL points the provider client at a different API endpoint, for
// proxies and tests.
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithHTTPClient substitutes the HTTP client used for provider calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithLogger substitutes the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithUsageLog writes usage records to the given file, one JSON line per
// invocation. Without this the LLMPARSE_USAGE_LOG environment variable and
// then a default path apply.
func WithUsageLog(path string) Option {
	return func(o *options) { o.usageLogPath = path }
}

// WithUsageSink routes usage records to a custom sink instead of the log
// file.
func WithUsageSink(sink UsageSink) Option {
	return func(o *options) { o.sink = toInternalSink(sink) }
}

// WithRateLimit caps invocations per sliding window. maxCalls <= 0 means
// unlimited. The window lives in the Option value: reusing one Option across
// several factories makes their functions share the limit.
func WithRateLimit(maxCalls int, window time.Duration, policy Policy) Option {
	lim := ratelimit.New(maxCalls, window, ratelimit.Policy(policy))
	return func(o *options) { o.gate = lim }
}

// WithSharedRateLimit backs the window with Redis so the cap holds across
// processes. Requires REDIS_URL; when Redis is unreachable the limiter fails
// open to unbounded.
func WithSharedRateLimit(name string, maxCalls int, window time.Duration, policy Policy) Option {
	rl := ratelimit.NewRedisLimiter(name, maxCalls, window, ratelimit.Policy(policy))
	return func(o *options) {
		if rl != nil {
			o.gate = rl
		}
	}
}

// WithTokenBudget caps estimated prompt tokens per sliding window. Always
// rejecting: an over-budget call fails with ErrRateLimited. Like
// WithRateLimit, reusing one Option value shares the budget.
func WithTokenBudget(maxTokens int, window time.Duration) Option {
	budget := ratelimit.NewTokenBudget(maxTokens, window)
	return func(o *options) { o.budget = budget }
}

// WithSchema validates extracted fields against a JSON-Schema, given as a
// generic map. Violations surface as ParseError.
func WithSchema(schema map[string]any) Option {
	return func(o *options) { o.schema = schema }
}

// sinkAdapter bridges a caller-supplied UsageSink to the internal record
// type. Field layouts match, so records convert directly.
type sinkAdapter struct {
	s UsageSink
}

func (a sinkAdapter) Append(rec usagelog.Record) error {
	return a.s.Append(UsageRecord{
		Timestamp:        rec.Timestamp,
		Model:            rec.Model,
		PromptTokens:     rec.PromptTokens,
		CompletionTokens: rec.CompletionTokens,
		TotalTokens:      rec.TotalTokens,
	})
}

func (a sinkAdapter) Close() error { return a.s.Close() }

func toInternalSink(s UsageSink) usagelog.Sink {
	if s == nil {
		return nil
	}
	return sinkAdapter{s: s}
}

// NewSQLiteUsageSink stores usage records in a SQLite database at path, for
// use with WithUsageSink when queryable history beats a flat log file.
func NewSQLiteUsageSink(path string) (UsageSink, error) {
	inner, err := usagelog.NewSQLiteSink(path)
	if err != nil {
		return nil, err
	}
	return exportedSink{inner: inner}, nil
}

type exportedSink struct {
	inner usagelog.Sink
}

func (e exportedSink) Append(rec UsageRecord) error {
	return e.inner.Append(usagelog.Record{
		Timestamp:        rec.Timestamp,
		Model:            rec.Model,
		PromptTokens:     rec.PromptTokens,
		CompletionTokens: rec.CompletionTokens,
		TotalTokens:      rec.TotalTokens,
	})
}

func (e exportedSink) Close() error { return e.inner.Close() }
