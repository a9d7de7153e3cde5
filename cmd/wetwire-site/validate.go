package main

import (
	"fmt"
	"io"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	wetwire "github.com/lex00/wetwire-site-go"
	"github.com/lex00/wetwire-site-go/internal/differ"
	"github.com/lex00/wetwire-site-go/internal/validation"
)

func newValidateCmd() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "validate [template]",
		Short: "Check the site template",
		Long: `Validate checks the rendered template, or a template file, against the
site rules and cfn-lint.

The site rules require all four public access block flags to be false, a
bucket policy with exactly two statements whose second is conditioned on
the distribution's ARN, and a WebsiteURL output of https:// plus the
distribution domain.

Examples:
    wetwire-site validate
    wetwire-site validate template.yaml
    wetwire-site validate --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var tmpl *wetwire.Template
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				loaded, err := differ.LoadTemplate(args[0])
				if err != nil {
					return fmt.Errorf("loading %s: %w", args[0], err)
				}
				tmpl = loaded
			} else {
				a, err := newApp(cmd)
				if err != nil {
					return err
				}
				_, _, rendered, err := a.render(false)
				if err != nil {
					return err
				}
				tmpl = rendered
			}

			result, err := validation.Validate(tmpl)
			if err != nil {
				return err
			}
			if err := printValidateResult(out, result, outputFormat); err != nil {
				return err
			}
			if !result.Success {
				return fmt.Errorf("validation failed: %d error(s)", len(result.Errors))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text or json")

	return cmd
}

func printValidateResult(out io.Writer, result wetwire.ValidateResult, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	case "text":
		for _, e := range result.Errors {
			fmt.Fprintf(out, "error: %s\n", e)
		}
		for _, w := range result.Warnings {
			fmt.Fprintf(out, "warning: %s\n", w)
		}
		if result.Success {
			fmt.Fprintf(out, "%d resources valid", result.Resources)
			if len(result.Warnings) > 0 {
				fmt.Fprintf(out, " (%d warnings)", len(result.Warnings))
			}
			fmt.Fprintln(out)
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}
