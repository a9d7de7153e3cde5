package main

import (
	"fmt"
	"io"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	wetwire "github.com/lex00/wetwire-site-go"
	"github.com/lex00/wetwire-site-go/internal/publish"
	"github.com/lex00/wetwire-site-go/internal/stack"
	"github.com/lex00/wetwire-site-go/internal/validation"
)

func newDeployCmd() *cobra.Command {
	var (
		skipSync bool
		timeout  time.Duration
		opts     publishOptions
	)

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Create or update the stack, then publish the assets",
		Long: `Deploy renders the template, creates or updates the CloudFormation stack
and waits for it to settle, then mirrors the asset directory into the
bucket and invalidates the distribution if any object changed.

Deploying an unchanged template is a no-op for the stack.

Examples:
    wetwire-site deploy
    wetwire-site deploy --skip-sync
    wetwire-site deploy --wait-invalidation --metrics-file site.prom`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			return a.finish(a.runDeploy(cmd, skipSync, timeout, opts))
		},
	}

	cmd.Flags().BoolVar(&skipSync, "skip-sync", false, "Deploy the stack without publishing assets")
	cmd.Flags().DurationVar(&timeout, "timeout", stack.DefaultTimeout, "Maximum wait for the stack operation")
	addPublishFlags(cmd, &opts)

	return cmd
}

func newSyncCmd() *cobra.Command {
	var opts publishOptions

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Publish the asset directory to the deployed bucket",
		Long: `Sync mirrors the asset directory into the deployed bucket: new and changed
files are uploaded, unchanged files are skipped by ETag, and objects with no
local file are deleted unless --keep is given.

Examples:
    wetwire-site sync
    wetwire-site sync --dry-run
    wetwire-site sync --exclude '*.map'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			return a.finish(a.runSync(cmd, opts))
		},
	}

	addPublishFlags(cmd, &opts)
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Show the plan without changing the bucket")

	return cmd
}

func addPublishFlags(cmd *cobra.Command, opts *publishOptions) {
	cmd.Flags().StringSliceVar(&opts.exclude, "exclude", nil, "Extra gitignore-style patterns to skip")
	cmd.Flags().BoolVar(&opts.keep, "keep", false, "Keep bucket objects that have no local file")
	cmd.Flags().BoolVar(&opts.wait, "wait-invalidation", false, "Wait for the CDN invalidation to complete")
}

func (a *app) runDeploy(cmd *cobra.Command, skipSync bool, timeout time.Duration, opts publishOptions) error {
	ctx := a.context(cmd)

	_, _, tmpl, err := a.render(false)
	if err != nil {
		return err
	}
	if err := validation.CheckSite(tmpl); err != nil {
		return fmt.Errorf("refusing to deploy: %w", err)
	}

	c, err := a.clients(ctx)
	if err != nil {
		return err
	}
	m := a.stack(c)
	m.Timeout = timeout

	res, err := m.Deploy(ctx, tmpl, a.cfg.Parameters(), a.cfg.Tags())
	if err != nil {
		return err
	}
	a.log.Info().Str("stack", a.cfg.StackName).Str("action", string(res.Action)).Msg("stack deployed")

	outputs, err := m.Outputs(ctx)
	if err != nil {
		return err
	}
	if err := validation.CheckOutputs(outputs); err != nil {
		return fmt.Errorf("unexpected stack outputs: %w", err)
	}

	if !skipSync {
		result, err := a.publishAssets(ctx, c, outputs, opts)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, publish.Summary(result))
	}

	return printOutputs(a.out, outputs, "text")
}

func (a *app) runSync(cmd *cobra.Command, opts publishOptions) error {
	ctx := a.context(cmd)
	c, err := a.clients(ctx)
	if err != nil {
		return err
	}
	outputs, err := a.stack(c).Outputs(ctx)
	if err != nil {
		return fmt.Errorf("reading stack outputs (deploy first?): %w", err)
	}

	result, err := a.publishAssets(ctx, c, outputs, opts)
	if err != nil {
		return err
	}
	if !opts.dryRun {
		fmt.Fprintln(a.out, publish.Summary(result))
		if result.Invalidation != "" {
			fmt.Fprintf(a.out, "invalidation %s\n", result.Invalidation)
		}
	}
	return nil
}

func newOutputsCmd() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "outputs",
		Short: "Print the deployed site outputs",
		Long: `Outputs prints the stack outputs: the bucket name, the S3 website endpoint,
the CloudFront domain name and distribution ID, and the HTTPS website URL.

Examples:
    wetwire-site outputs
    wetwire-site outputs --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			ctx := a.context(cmd)
			c, err := a.clients(ctx)
			if err != nil {
				return err
			}
			outputs, err := a.stack(c).Outputs(ctx)
			if err != nil {
				return err
			}
			return printOutputs(a.out, outputs, outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text or json")

	return cmd
}

func printOutputs(out io.Writer, o wetwire.SiteOutputs, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(o, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	case "text":
		rows := []struct{ name, value string }{
			{"s3_bucket_name", o.S3BucketName},
			{"s3_website_endpoint", o.S3WebsiteEndpoint},
			{"cloudfront_domain_name", o.CloudFrontDomainName},
			{"cloudfront_distribution_id", o.CloudFrontDistributionID},
			{"website_url", o.WebsiteURL},
		}
		for _, r := range rows {
			fmt.Fprintf(out, "%-26s = %s\n", r.name, r.value)
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}
