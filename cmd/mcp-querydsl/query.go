package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	mcpserver "github.com/txn2/mcp-querydsl/internal/server"
	"github.com/txn2/mcp-querydsl/pkg/action"
	"github.com/txn2/mcp-querydsl/pkg/engine"
	"github.com/txn2/mcp-querydsl/pkg/params"
)

// paramFlags are the parameter sources shared by the query commands.
type paramFlags struct {
	params     []string
	paramsFile string
}

func (f *paramFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.params, "param", "p", nil, "Parameter as key=value; values are parsed as JSON when possible")
	cmd.Flags().StringVar(&f.paramsFile, "params-file", "", "YAML or JSON file of parameters")
}

// resolve merges the params file with --param values, which win.
func (f *paramFlags) resolve() (params.Map, error) {
	p := params.Map{}
	if f.paramsFile != "" {
		data, err := os.ReadFile(f.paramsFile)
		if err != nil {
			return nil, fmt.Errorf("reading params file: %w", err)
		}
		var fromFile map[string]any
		if err := yaml.Unmarshal(data, &fromFile); err != nil {
			return nil, fmt.Errorf("parsing params file: %w", err)
		}
		for k, v := range fromFile {
			p[k] = v
		}
	}
	for _, kv := range f.params {
		key, raw, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --param %q: want key=value", kv)
		}
		p[key] = parseValue(raw)
	}
	return p, nil
}

// parseValue reads s as JSON, falling back to the literal string.
func parseValue(s string) any {
	v, err := decodeJSON([]byte(s))
	if err != nil {
		return s
	}
	return v
}

func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after JSON value")
	}
	return action.NormalizeNumbers(v), nil
}

// readInput reads a file argument; "-" reads stdin.
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading definition: %w", err)
	}
	return data, nil
}

func newExecuteCmd(root *rootOptions) *cobra.Command {
	var (
		pf         paramFlags
		format     string
		datasource string
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "execute FILE",
		Short: "Run a query definition and print the formatted result",
		Long: `Run a query definition read from FILE ("-" for stdin) against a
configured datasource and print the result as JSON.

The return format is taken from --format, then the executor's returnFormat,
then defaults.return_format. Use --format '["struct","id"]' for keyed output.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			def, err := engine.ParseDefinition(data)
			if err != nil {
				return err
			}
			p, err := pf.resolve()
			if err != nil {
				return err
			}

			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			platform, err := mcpserver.NewPlatform(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = platform.Close() }()

			opts := engine.Options{
				Params:     p,
				Datasource: datasource,
				Timeout:    timeout,
			}
			if format != "" {
				opts.ReturnFormat = parseValue(format)
			}

			result, err := platform.Engine().Execute(cmd.Context(), def, opts)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result, root.pretty)
		},
	}

	pf.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", "", "Return format: array, query, tabular, struct, or a JSON list")
	cmd.Flags().StringVarP(&datasource, "datasource", "d", "", "Datasource name (default from config)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Query timeout (default from config)")
	return cmd
}

func newSQLCmd(root *rootOptions) *cobra.Command {
	var pf paramFlags

	cmd := &cobra.Command{
		Use:   "sql FILE",
		Short: "Render a query definition to SQL without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			def, err := engine.ParseDefinition(data)
			if err != nil {
				return err
			}
			p, err := pf.resolve()
			if err != nil {
				return err
			}

			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			// Rendering never records an audit event.
			cfg.Audit.Enabled = false
			platform, err := mcpserver.NewPlatform(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = platform.Close() }()

			sql, bindings, err := platform.Engine().ToSQL(def, p)
			if err != nil {
				return err
			}
			if bindings == nil {
				bindings = []any{}
			}
			return writeJSON(cmd.OutOrStdout(), engine.Statement{SQL: sql, Bindings: bindings}, root.pretty)
		},
	}

	pf.register(cmd)
	return cmd
}

func newResolveCmd(root *rootOptions) *cobra.Command {
	var pf paramFlags

	cmd := &cobra.Command{
		Use:   "resolve FILE",
		Short: "Substitute $param references in a JSON document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			doc, err := decodeJSON(data)
			if err != nil {
				return fmt.Errorf("decoding document: %w", err)
			}
			p, err := pf.resolve()
			if err != nil {
				return err
			}
			resolved, err := engine.ResolveParamRefs(doc, p)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), resolved, root.pretty)
		},
	}

	pf.register(cmd)
	return cmd
}
