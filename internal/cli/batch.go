package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jurraca/req-llm"
)

const batchUsage = `Usage:
  reqllm batch --schema <path> [--input <path>] [--concurrency <n>] [flags]

Reads one prompt per non-empty line (from --input or stdin) and prints one
compact JSON object per line, in input order.

Flags:
  --schema      string   Path to YAML schema description, or a schema name with --schema-dir (required)
  --schema-dir  string   Directory of YAML schema descriptions
  --input       string   Prompt file, one prompt per line (default stdin)
  --concurrency int      Maximum requests in flight (default 4)
  --tool        string   Synthetic tool name (default "structured_output")
  --validate             Validate each object against the schema
` + commonFlagsUsage

func batch(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, batchUsage)
	}
	var flags objectFlags
	flags.register(fs)
	var inputPath string
	var concurrency int
	fs.StringVar(&inputPath, "input", "", "prompt file, one prompt per line")
	fs.IntVar(&concurrency, "concurrency", 4, "maximum requests in flight")
	if stop, err := parseFlags(fs, args); stop || err != nil {
		return err
	}
	if concurrency < 1 {
		return fmt.Errorf("concurrency %d must be at least 1", concurrency)
	}
	compiled, err := flags.compile()
	if err != nil {
		return err
	}

	in := stdin
	if inputPath != "" && inputPath != "-" {
		f, err := os.Open(inputPath)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer func() { _ = f.Close() }()
		in = f
	}
	convs, err := readPrompts(in)
	if err != nil {
		return err
	}

	e, err := newEnv(ctx, &flags.commonFlags, clientOptions{validate: flags.validate, concurrency: concurrency})
	if err != nil {
		return err
	}
	defer e.close(context.WithoutCancel(ctx))

	out, err := e.client.Objects(ctx, e.model, convs, compiled, flags.options(fs))
	if err != nil {
		return err
	}
	enc := json.NewEncoder(stdout)
	for _, resp := range out {
		if err := enc.Encode(resp.Object); err != nil {
			return err
		}
	}
	return nil
}

func readPrompts(r io.Reader) ([]reqllm.Conversation, error) {
	var convs []reqllm.Conversation
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		convs = append(convs, reqllm.Conversation{reqllm.UserMessage(line)})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read prompts: %w", err)
	}
	if len(convs) == 0 {
		return nil, errors.New("no prompts in input")
	}
	return convs, nil
}
