package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lex00/wetwire-site-go/internal/publish"
	"github.com/lex00/wetwire-site-go/internal/site"
	"github.com/lex00/wetwire-site-go/internal/stack"
	"github.com/lex00/wetwire-site-go/internal/state"
)

// errNotConfirmed is returned when destroy runs without --yes.
var errNotConfirmed = errors.New("destroy deletes the bucket contents and the stack; rerun with --yes")

func newDestroyCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "destroy",
		Short: "Empty the bucket and delete the stack",
		Long: `Destroy deletes every object in the site bucket, then deletes the stack.
CloudFormation cannot delete a bucket that still holds objects.

Examples:
    wetwire-site destroy --yes`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errNotConfirmed
			}
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			return a.finish(a.runDestroy(cmd))
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm the deletion")

	return cmd
}

func (a *app) runDestroy(cmd *cobra.Command) error {
	ctx := a.context(cmd)
	c, err := a.clients(ctx)
	if err != nil {
		return err
	}
	m := a.stack(c)

	if _, err := m.Describe(ctx); errors.Is(err, stack.ErrStackNotFound) {
		fmt.Fprintf(a.out, "Stack %s does not exist\n", a.cfg.StackName)
		return nil
	} else if err != nil {
		return err
	}

	bucket, err := a.bucketName(cmd, m)
	if err != nil {
		return err
	}
	if bucket != "" {
		result, err := a.publisher(c, bucket).Empty(ctx)
		switch {
		case errors.Is(err, publish.ErrBucketNotFound):
			a.log.Info().Str("bucket", bucket).Msg("bucket already gone")
		case err != nil:
			return err
		default:
			fmt.Fprintf(a.out, "Emptied %s: %s\n", bucket, publish.Summary(result))
		}
	}

	if err := m.Delete(ctx); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted stack %s\n", a.cfg.StackName)
	return nil
}

// bucketName prefers the stack output and falls back to the persisted
// suffix when a failed create left no outputs.
func (a *app) bucketName(cmd *cobra.Command, m *stack.Manager) (string, error) {
	if outputs, err := m.Outputs(a.context(cmd)); err == nil && outputs.S3BucketName != "" {
		return outputs.S3BucketName, nil
	}
	suffix, err := a.store.Peek(a.cfg.Project, a.cfg.Environment)
	if errors.Is(err, state.ErrNotFound) {
		a.log.Warn().Msg("no bucket name in stack outputs or local state, skipping empty")
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return site.BucketName(a.cfg.Project, a.cfg.Environment, suffix)
}
