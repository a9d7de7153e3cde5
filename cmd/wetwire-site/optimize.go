package main

import (
	"fmt"
	"io"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/lex00/wetwire-site-go/internal/optimizer"
)

func newOptimizeCmd() *cobra.Command {
	var (
		category     string
		outputFormat string
	)

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Suggest security, cost, performance and reliability improvements",
		Long: `Optimize renders the template and reports suggestions for the bucket, the
bucket policy and the distribution. Suggestions never fail the command.

Examples:
    wetwire-site optimize
    wetwire-site optimize --category cost
    wetwire-site optimize --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			_, _, tmpl, err := a.render(false)
			if err != nil {
				return err
			}
			result, err := optimizer.Optimize(tmpl, optimizer.Options{Category: category})
			if err != nil {
				return err
			}
			return printOptimizeResult(a.out, result, outputFormat)
		},
	}

	cmd.Flags().StringVar(&category, "category", "all", "Filter: all, security, cost, performance or reliability")
	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text or json")

	return cmd
}

func printOptimizeResult(out io.Writer, result *optimizer.Result, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	case "text":
		if len(result.Suggestions) == 0 {
			fmt.Fprintln(out, "No suggestions")
			return nil
		}
		for _, s := range result.Suggestions {
			fmt.Fprintf(out, "[%s] %s %s: %s\n    %s\n", s.Severity, s.Rule, s.Resource, s.Title, s.Suggestion)
		}
		fmt.Fprintf(out, "\n%d suggestions (security %d, cost %d, performance %d, reliability %d)\n",
			result.Summary.Total, result.Summary.Security, result.Summary.Cost,
			result.Summary.Performance, result.Summary.Reliability)
		return nil
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}
