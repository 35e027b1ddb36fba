package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/jurraca/req-llm"
)

const chatUsage = `Usage:
  reqllm chat [flags] [prompt]

The prompt is read from stdin when no arguments are given.

Flags:
` + commonFlagsUsage

func chat(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, chatUsage)
	}
	var flags commonFlags
	flags.register(fs)
	if stop, err := parseFlags(fs, args); stop || err != nil {
		return err
	}
	text, err := prompt(fs, stdin)
	if err != nil {
		return err
	}

	e, err := newEnv(ctx, &flags, clientOptions{})
	if err != nil {
		return err
	}
	defer e.close(context.WithoutCancel(ctx))

	resp, err := e.client.Text(ctx, e.model, reqllm.Conversation{reqllm.UserMessage(text)}, flags.options(fs))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, resp.Text())
	return err
}
