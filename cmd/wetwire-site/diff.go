package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/lex00/wetwire-site-go/internal/differ"
	"github.com/lex00/wetwire-site-go/internal/stack"
	"github.com/lex00/wetwire-site-go/internal/template"
)

func newDiffCmd() *cobra.Command {
	var (
		outputFormat string
		ignoreOrder  bool
	)

	cmd := &cobra.Command{
		Use:   "diff [template1] [template2]",
		Short: "Compare templates resource by resource",
		Long: `Diff compares two CloudFormation templates.

With two files it compares them. With one file it compares that file to the
current render. With none it compares the deployed stack's template to the
current render.

Examples:
    wetwire-site diff old.json new.json
    wetwire-site diff old.yaml
    wetwire-site diff --format json`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := differ.Options{IgnoreOrder: ignoreOrder}
			if len(args) == 2 {
				result, err := differ.CompareFiles(args[0], args[1], opts)
				if err != nil {
					return err
				}
				return printDiff(cmd.OutOrStdout(), result, outputFormat)
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			_, _, rendered, err := a.render(false)
			if err != nil {
				return err
			}
			body, err := template.ToJSON(rendered)
			if err != nil {
				return err
			}

			var old []byte
			if len(args) == 1 {
				old, err = os.ReadFile(args[0])
				if err != nil {
					return err
				}
			} else {
				ctx := a.context(cmd)
				c, err := a.clients(ctx)
				if err != nil {
					return err
				}
				old, err = deployedTemplate(ctx, a.stack(c))
				if err != nil {
					return err
				}
			}

			result, err := differ.CompareBytes(old, body, opts)
			if err != nil {
				return err
			}
			return printDiff(a.out, result, outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text or json")
	cmd.Flags().BoolVar(&ignoreOrder, "ignore-order", false, "Ignore array element order")

	return cmd
}

// emptyTemplate stands in for a stack that does not exist yet.
var emptyTemplate = []byte(`{"AWSTemplateFormatVersion":"2010-09-09","Resources":{}}`)

func printDiff(out io.Writer, result *differ.Result, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(struct {
			Diff    any      `json:"diff"`
			Summary any      `json:"summary"`
			Outputs []string `json:"outputs,omitempty"`
		}{result.Diff, result.Summary, result.Outputs}, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	case "text":
		if result.Empty() {
			fmt.Fprintln(out, "No differences")
			return nil
		}
		for _, e := range result.Diff.Added {
			fmt.Fprintf(out, "+ %s (%s)\n", e.Resource, e.Type)
		}
		for _, e := range result.Diff.Removed {
			fmt.Fprintf(out, "- %s (%s)\n", e.Resource, e.Type)
		}
		for _, e := range result.Diff.Modified {
			fmt.Fprintf(out, "~ %s (%s)\n", e.Resource, e.Type)
			for _, c := range e.Changes {
				fmt.Fprintf(out, "    %s\n", c)
			}
		}
		for _, c := range result.Outputs {
			fmt.Fprintf(out, "~ output %s\n", c)
		}
		fmt.Fprintf(out, "\n%d added, %d removed, %d modified\n",
			result.Summary.Added, result.Summary.Removed, result.Summary.Modified)
		return nil
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// deployedTemplate returns the stack's template body, or emptyTemplate when
// the stack does not exist.
func deployedTemplate(ctx context.Context, m *stack.Manager) ([]byte, error) {
	body, err := m.Template(ctx)
	if errors.Is(err, stack.ErrStackNotFound) {
		return emptyTemplate, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(body), nil
}
