// Command wetwire-site provisions and publishes a static website: an S3
// website bucket served through CloudFront.
//
// Usage:
//
//	wetwire-site init                Scaffold site.yaml and website/
//	wetwire-site build               Render the CloudFormation template
//	wetwire-site plan                Show stack and asset changes
//	wetwire-site deploy              Create or update the stack and publish
//	wetwire-site sync                Publish assets to the deployed bucket
//	wetwire-site outputs             Print the deployed outputs
//	wetwire-site destroy --yes       Empty the bucket and delete the stack
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lex00/wetwire-site-go/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "wetwire-site",
		Short: "Deploy a static website to S3 and CloudFront",
		Long: `wetwire-site renders a CloudFormation stack for a static website and
publishes its files.

The stack holds a website bucket with a random name suffix, a CloudFront
distribution reading the bucket through an origin access control, and a
bucket policy granting public reads and reads from that distribution.

Settings come from site.yaml, WETWIRE_SITE_* environment variables and
flags, in increasing order of precedence:

    aws_region: us-east-1
    project_name: blog
    environment: dev`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	config.BindFlags(rootCmd)

	rootCmd.AddCommand(
		newBuildCmd(),
		newPlanCmd(),
		newDeployCmd(),
		newSyncCmd(),
		newOutputsCmd(),
		newDestroyCmd(),
		newGraphCmd(),
		newValidateCmd(),
		newOptimizeCmd(),
		newDiffCmd(),
		newListCmd(),
		newAssetsCmd(),
		newWatchCmd(),
		newInitCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "wetwire-site %s\n", getVersion())
		},
	}
}
