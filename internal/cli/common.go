package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/jurraca/req-llm"
	"github.com/jurraca/req-llm/adapter/jsonmode"
	"github.com/jurraca/req-llm/adapter/openaicompat"
	"github.com/jurraca/req-llm/generate"
	"github.com/jurraca/req-llm/internal/config"
	"github.com/jurraca/req-llm/internal/logger"
	"github.com/jurraca/req-llm/internal/tracer"
	"github.com/jurraca/req-llm/transport"
)

const commonFlagsUsage = `  --config      string   Path to YAML configuration file
  --model       string   Model reference, provider:model (default "openai:gpt-4o-mini")
  --system      string   System prompt
  --temperature float    Sampling temperature
  --max-tokens  int      Output token budget`

const defaultModel = "openai:gpt-4o-mini"

// commonFlags are shared by every generation command.
type commonFlags struct {
	configPath  string
	model       string
	system      string
	temperature float64
	maxTokens   int
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "path to configuration file")
	fs.StringVar(&c.model, "model", defaultModel, "model reference provider:model")
	fs.StringVar(&c.system, "system", "", "system prompt")
	fs.Float64Var(&c.temperature, "temperature", 0, "sampling temperature")
	fs.IntVar(&c.maxTokens, "max-tokens", 0, "output token budget")
}

// options builds the call options from the flags that were set explicitly.
func (c *commonFlags) options(fs *flag.FlagSet) reqllm.Options {
	var opts reqllm.Options
	if c.system != "" {
		opts = opts.With(reqllm.OptionSystemPrompt, c.system)
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "temperature":
			opts = opts.With(reqllm.OptionTemperature, c.temperature)
		case "max-tokens":
			opts = opts.With(reqllm.OptionMaxTokens, c.maxTokens)
		}
	})
	return opts
}

// parseFlags parses args and reports whether the command should stop (help requested).
func parseFlags(fs *flag.FlagSet, args []string) (bool, error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return true, nil
		}
		return false, fmt.Errorf("parse %s flags: %w", fs.Name(), err)
	}
	return false, nil
}

// prompt returns the positional arguments joined, or stdin when there are none.
func prompt(fs *flag.FlagSet, stdin io.Reader) (string, error) {
	if fs.NArg() > 0 {
		return strings.Join(fs.Args(), " "), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read prompt from stdin: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", errors.New("a prompt is required as arguments or on stdin")
	}
	return text, nil
}

// env is everything a generation command needs, built from configuration.
type env struct {
	client *generate.Client
	model  reqllm.Model
	close  func(context.Context)
}

type clientOptions struct {
	validate    bool
	concurrency int
}

func newEnv(ctx context.Context, flags *commonFlags, co clientOptions) (*env, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	model, err := reqllm.ParseModel(flags.model)
	if err != nil {
		return nil, err
	}

	log, closeLog, err := logger.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	tp, shutdown, err := tracer.Setup(ctx, cfg.Tracing)
	if err != nil {
		_ = closeLog()
		return nil, err
	}

	codec := openaicompat.New(
		openaicompat.WithProvider(cfg.Provider.Name),
		openaicompat.WithBaseURL(cfg.Provider.BaseURL),
		openaicompat.WithLogger(log),
	)
	provider := jsonmode.New(codec,
		jsonmode.WithLogger(log),
		jsonmode.WithValidation(co.validate),
	)

	topts := []transport.Option{
		transport.WithHTTPClient(&http.Client{Timeout: cfg.Provider.Timeout}),
		transport.WithAPIKey(cfg.Provider.APIKey),
		transport.WithMaxBodySize(cfg.Provider.MaxBodyBytes),
		transport.WithRateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
		transport.WithLogger(log),
	}
	if cfg.Breaker.Enabled {
		topts = append(topts, transport.WithBreaker(transport.BreakerConfig{
			MaxFailures: cfg.Breaker.MaxFailures,
			Timeout:     cfg.Breaker.Timeout,
			Interval:    cfg.Breaker.Interval,
		}))
	}

	client := generate.New(provider, transport.New(topts...),
		generate.WithLogger(log),
		generate.WithTracerProvider(tp),
		generate.WithConcurrency(co.concurrency),
	)
	return &env{
		client: client,
		model:  model,
		close: func(ctx context.Context) {
			if err := shutdown(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "tracer shutdown: %v\n", err)
			}
			_ = closeLog()
		},
	}, nil
}
