// Command llmparse runs a one-shot parse or filter over text from a file or
// stdin. Exit status is 0 on success; a filter that answers false exits 1,
// errors exit 2.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"llmparse"
	"llmparse/internal/config"
	"llmparse/internal/telemetry"
)

func main() {
	var (
		prompt      = flag.String("prompt", "", "extraction instructions or filter question (required)")
		filter      = flag.Bool("filter", false, "ask a yes/no question instead of extracting fields")
		provider    = flag.String("provider", "", "model provider: openai or anthropic")
		model       = flag.String("model", "", "model name, provider default if empty")
		temperature = flag.Float64("temperature", 0, "sampling temperature, 0 to 2")
		htmlIn      = flag.Bool("html", false, "treat input as HTML, raw or base64")
		pdfIn       = flag.Bool("pdf", false, "treat input as a base64-encoded PDF")
		inPath      = flag.String("in", "", "input file, stdin if empty")
		usageLog    = flag.String("usage-log", "", "usage log destination")
		timeout     = flag.Duration("timeout", 2*time.Minute, "overall deadline")
	)
	flag.Parse()

	config.ConfigureLogging()

	if *prompt == "" {
		fmt.Fprintln(os.Stderr, "llmparse: -prompt is required")
		flag.Usage()
		os.Exit(2)
	}
	if *htmlIn && *pdfIn {
		fmt.Fprintln(os.Stderr, "llmparse: -html and -pdf are mutually exclusive")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	shutdown := telemetry.InitTracing()
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			slog.Warn("tracing shutdown failed", "error", err)
		}
	}()

	input, err := readInput(*inPath)
	if err != nil {
		slog.Error("read input failed", "error", err)
		os.Exit(2)
	}

	var opts []llmparse.Option
	if *provider != "" {
		opts = append(opts, llmparse.WithProvider(*provider))
	}
	if *model != "" {
		opts = append(opts, llmparse.WithModel(*model))
	}
	if *temperature != 0 {
		opts = append(opts, llmparse.WithTemperature(*temperature))
	}
	if *usageLog != "" {
		opts = append(opts, llmparse.WithUsageLog(*usageLog))
	}

	if *filter {
		os.Exit(runFilter(ctx, *prompt, input, opts))
	}
	os.Exit(runParse(ctx, *prompt, input, *htmlIn, *pdfIn, opts))
}

func readInput(path string) (string, error) {
	if path == "" {
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	}
	b, err := os.ReadFile(path)
	return string(b), err
}

func runParse(ctx context.Context, prompt, input string, htmlIn, pdfIn bool, opts []llmparse.Option) int {
	var (
		p   llmparse.ParseFunc
		err error
	)
	switch {
	case htmlIn:
		p, err = llmparse.GetHTMLParser(prompt, opts...)
	case pdfIn:
		p, err = llmparse.GetPDFParser(prompt, opts...)
	default:
		p, err = llmparse.GetParser(prompt, opts...)
	}
	if err != nil {
		slog.Error("build parser failed", "error", err)
		return 2
	}

	fields, err := p(ctx, input)
	if err != nil {
		slog.Error("parse failed", "error", err)
		return 2
	}

	out, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		slog.Error("encode result failed", "error", err)
		return 2
	}
	fmt.Println(string(out))
	return 0
}

func runFilter(ctx context.Context, prompt, input string, opts []llmparse.Option) int {
	f, err := llmparse.GetFilter(prompt, opts...)
	if err != nil {
		slog.Error("build filter failed", "error", err)
		return 2
	}

	verdict, err := f(ctx, input)
	if err != nil {
		slog.Error("filter failed", "error", err)
		return 2
	}

	fmt.Println(verdict)
	if !verdict {
		return 1
	}
	return 0
}
