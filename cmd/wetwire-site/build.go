package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	wetwire "github.com/lex00/wetwire-site-go"
	"github.com/lex00/wetwire-site-go/internal/template"
)

func newBuildCmd() *cobra.Command {
	var (
		outputFormat string
		outputFile   string
		asResult     bool
		newSuffix    bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Render the CloudFormation template",
		Long: `Build renders the site stack as a CloudFormation template.

The first build for a project and environment generates the bucket name
suffix and stores it under state_dir; later builds reuse it.

Examples:
    wetwire-site build
    wetwire-site build -o template.json
    wetwire-site build --format yaml
    wetwire-site build --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			return a.runBuild(outputFormat, outputFile, asResult, newSuffix)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "json", "Output format: json or yaml")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().BoolVar(&asResult, "json", false, "Wrap the template in a JSON build result")
	cmd.Flags().BoolVar(&newSuffix, "new-suffix", false, "Generate a new bucket name suffix (renames the bucket on next deploy)")

	return cmd
}

func (a *app) runBuild(format, outputFile string, asResult, newSuffix bool) error {
	_, b, tmpl, err := a.render(newSuffix)
	if err != nil {
		if asResult {
			return a.writeBuildResult(wetwire.BuildResult{Success: false, Errors: []string{err.Error()}}, outputFile)
		}
		return err
	}

	if asResult {
		order, err := b.Order()
		if err != nil {
			return err
		}
		return a.writeBuildResult(wetwire.BuildResult{Success: true, Template: *tmpl, Resources: order}, outputFile)
	}

	data, err := encodeTemplate(tmpl, format)
	if err != nil {
		return err
	}
	return writeFile(a.out, outputFile, data)
}

func (a *app) writeBuildResult(result wetwire.BuildResult, outputFile string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	if err := writeFile(a.out, outputFile, data); err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("build failed")
	}
	return nil
}

func encodeTemplate(tmpl *wetwire.Template, format string) ([]byte, error) {
	switch format {
	case "json":
		return template.ToJSON(tmpl)
	case "yaml":
		return template.ToYAML(tmpl)
	default:
		return nil, fmt.Errorf("unknown format: %s", format)
	}
}
