package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/jurraca/req-llm"
	"github.com/jurraca/req-llm/schema"
)

const objectUsage = `Usage:
  reqllm object --schema <path> [flags] [prompt]

Prints the generated object as indented JSON.

Flags:
  --schema     string   Path to YAML schema description, or a schema name with --schema-dir (required)
  --schema-dir string   Directory of YAML schema descriptions
  --tool       string   Synthetic tool name (default "structured_output")
  --validate            Validate the object against the schema
` + commonFlagsUsage

// objectFlags extends commonFlags with the schema settings.
type objectFlags struct {
	commonFlags
	schemaPath string
	schemaDir  string
	toolName   string
	validate   bool
}

func (o *objectFlags) register(fs *flag.FlagSet) {
	o.commonFlags.register(fs)
	fs.StringVar(&o.schemaPath, "schema", "", "path to YAML schema description, or a name with --schema-dir")
	fs.StringVar(&o.schemaDir, "schema-dir", "", "directory of YAML schema descriptions")
	fs.StringVar(&o.toolName, "tool", schema.DefaultToolName, "synthetic tool name")
	fs.BoolVar(&o.validate, "validate", false, "validate the object against the schema")
}

func (o *objectFlags) compile() (*schema.Compiled, error) {
	if o.schemaPath == "" {
		return nil, errors.New("--schema <path> is required")
	}
	if o.schemaDir == "" {
		return schema.CompileFile(o.schemaPath, o.toolName)
	}
	reg, err := schema.NewRegistry(os.DirFS(o.schemaDir), ".", o.toolName)
	if err != nil {
		return nil, err
	}
	return reg.Get(o.schemaPath)
}

func object(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("object", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, objectUsage)
	}
	var flags objectFlags
	flags.register(fs)
	if stop, err := parseFlags(fs, args); stop || err != nil {
		return err
	}
	compiled, err := flags.compile()
	if err != nil {
		return err
	}
	text, err := prompt(fs, stdin)
	if err != nil {
		return err
	}

	e, err := newEnv(ctx, &flags.commonFlags, clientOptions{validate: flags.validate})
	if err != nil {
		return err
	}
	defer e.close(context.WithoutCancel(ctx))

	resp, err := e.client.Object(ctx, e.model, reqllm.Conversation{reqllm.UserMessage(text)}, compiled, flags.options(fs))
	if err != nil {
		return err
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resp.Object)
}
