// Package cli implements the reqllm command-line dispatcher.
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
)

const usage = `reqllm sends chat and structured-object requests to an OpenAI-compatible API.

Usage:
  reqllm <command> [flags] [prompt]

Commands:
  chat     Generate a text reply
  object   Generate a JSON object matching a YAML schema
  batch    Generate one object per input line, concurrently

Configuration is read from reqllm.yaml (or --config) and REQLLM_* environment
variables. The API key comes from REQLLM_PROVIDER_API_KEY or OPENAI_API_KEY.

Flags:
  -h, --help  Show this help message`

// Execute runs the CLI dispatcher with the provided arguments.
func Execute(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		return printUsage(stdout)
	}

	switch args[0] {
	case "chat":
		return chat(ctx, args[1:], stdin, stdout)
	case "object":
		return object(ctx, args[1:], stdin, stdout)
	case "batch":
		return batch(ctx, args[1:], stdin, stdout)
	case "help", "-h", "--help":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command %q\n\n%s", args[0], usage)
	}
}

func printUsage(w io.Writer) error {
	_, err := fmt.Fprintln(w, strings.TrimSpace(usage))
	return err
}
