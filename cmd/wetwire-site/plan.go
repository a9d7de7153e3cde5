package main

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/lex00/wetwire-site-go/internal/assets"
	"github.com/lex00/wetwire-site-go/internal/differ"
	"github.com/lex00/wetwire-site-go/internal/stack"
	"github.com/lex00/wetwire-site-go/internal/template"
)

func newPlanCmd() *cobra.Command {
	var opts publishOptions

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what deploy would change",
		Long: `Plan compares the rendered template with the deployed stack and the asset
directory with the bucket. Nothing is changed, local state included: before
the first deploy the bucket suffix is shown as a placeholder.

Examples:
    wetwire-site plan
    wetwire-site plan --keep`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			return a.runPlan(cmd, opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.exclude, "exclude", nil, "Extra gitignore-style patterns to skip")
	cmd.Flags().BoolVar(&opts.keep, "keep", false, "Keep bucket objects that have no local file")

	return cmd
}

func (a *app) runPlan(cmd *cobra.Command, opts publishOptions) error {
	ctx := a.context(cmd)

	tmpl, fresh, err := a.peekRender()
	if err != nil {
		return err
	}
	if fresh {
		fmt.Fprintf(a.out, "No local state for %s/%s: the bucket suffix is generated on first deploy (shown as %s).\n\n",
			a.cfg.Project, a.cfg.Environment, placeholderSuffix)
	}
	rendered, err := template.ToJSON(tmpl)
	if err != nil {
		return err
	}

	c, err := a.clients(ctx)
	if err != nil {
		return err
	}
	m := a.stack(c)
	deployed, err := deployedTemplate(ctx, m)
	if err != nil {
		return err
	}
	result, err := differ.CompareBytes(deployed, rendered, differ.Options{IgnoreOrder: true})
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Stack %s:\n", a.cfg.StackName)
	if err := printDiff(a.out, result, "text"); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "\nAssets in %s:\n", a.cfg.AssetDir)
	outputs, err := m.Outputs(ctx)
	if errors.Is(err, stack.ErrStackNotFound) {
		objs, err := a.scan(opts.exclude)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%d to upload (%s) after the stack is created\n",
			len(objs), humanize.Bytes(uint64(assets.TotalSize(objs))))
		return nil
	}
	if err != nil {
		return err
	}

	_, plan, err := a.planAssets(ctx, c, outputs.S3BucketName, opts)
	if err != nil {
		return err
	}
	printPlan(a.out, plan)
	return nil
}
