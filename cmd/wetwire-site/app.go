package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	wetwire "github.com/lex00/wetwire-site-go"
	"github.com/lex00/wetwire-site-go/internal/awsapi"
	"github.com/lex00/wetwire-site-go/internal/cdn"
	"github.com/lex00/wetwire-site-go/internal/config"
	"github.com/lex00/wetwire-site-go/internal/logging"
	"github.com/lex00/wetwire-site-go/internal/metrics"
	"github.com/lex00/wetwire-site-go/internal/publish"
	"github.com/lex00/wetwire-site-go/internal/site"
	"github.com/lex00/wetwire-site-go/internal/stack"
	"github.com/lex00/wetwire-site-go/internal/state"
	"github.com/lex00/wetwire-site-go/internal/template"
)

// app carries what every configured command needs.
type app struct {
	cfg     config.Config
	log     zerolog.Logger
	metrics *metrics.Metrics
	store   *state.Store
	out     io.Writer

	// loadClients builds the AWS clients; awsapi.Load outside tests.
	loadClients func(ctx context.Context, region, profile string) (*awsapi.Clients, error)
}

// newApp loads and validates the configuration for cmd.
func newApp(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cmd, path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger, err := logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	if cfg.File != "" {
		logger.Debug().Str("file", cfg.File).Msg("loaded config")
	}
	return &app{
		cfg:     cfg,
		log:     logger,
		metrics: metrics.New(),
		store:   state.NewStore(cfg.StateDir),
		out:     cmd.OutOrStdout(),

		loadClients: awsapi.Load,
	}, nil
}

func (a *app) context(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return logging.WithLogger(ctx, a.log)
}

// placeholderSuffix stands in for a bucket suffix that has not been
// generated yet.
const placeholderSuffix = "aaaaaaaa"

// render declares the site with the persisted suffix, generating one on
// first use.
func (a *app) render(replaceSuffix bool) (*site.Site, *template.Builder, *wetwire.Template, error) {
	suffix, err := a.store.Suffix(a.cfg.Project, a.cfg.Environment, replaceSuffix)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("resolving bucket suffix: %w", err)
	}
	return a.renderSuffix(suffix)
}

// peekRender declares the site without writing local state. With no state
// yet it renders placeholderSuffix and reports fresh.
func (a *app) peekRender() (tmpl *wetwire.Template, fresh bool, err error) {
	suffix, err := a.store.Peek(a.cfg.Project, a.cfg.Environment)
	switch {
	case errors.Is(err, state.ErrNotFound):
		suffix, fresh = placeholderSuffix, true
	case err != nil:
		return nil, false, fmt.Errorf("resolving bucket suffix: %w", err)
	}
	_, _, tmpl, err = a.renderSuffix(suffix)
	return tmpl, fresh, err
}

func (a *app) renderSuffix(suffix string) (*site.Site, *template.Builder, *wetwire.Template, error) {
	s, err := site.New(a.cfg.Inputs(suffix))
	if err != nil {
		return nil, nil, nil, err
	}
	b, err := s.Builder()
	if err != nil {
		return nil, nil, nil, err
	}
	tmpl, err := b.Build()
	if err != nil {
		return nil, nil, nil, err
	}
	return s, b, tmpl, nil
}

// clients loads AWS clients and logs the caller identity. Failing here
// stops a command before it touches any resource.
func (a *app) clients(ctx context.Context) (*awsapi.Clients, error) {
	c, err := a.loadClients(ctx, a.cfg.Region, a.cfg.Profile)
	if err != nil {
		return nil, err
	}
	id, err := c.WhoAmI(ctx)
	if err != nil {
		return nil, err
	}
	a.log.Info().Str("account", id.Account).Str("arn", id.Arn).Str("region", c.Region).Msg("using AWS identity")
	return c, nil
}

func (a *app) stack(c *awsapi.Clients) *stack.Manager {
	return &stack.Manager{
		Client:    c.CloudFormation,
		StackName: a.cfg.StackName,
		Metrics:   a.metrics,
	}
}

func (a *app) publisher(c *awsapi.Clients, bucket string) *publish.Publisher {
	return &publish.Publisher{
		Client:      c.S3,
		Bucket:      bucket,
		Concurrency: a.cfg.Concurrency,
		Limiter:     publish.NewLimiter(a.cfg.RateLimit),
		Metrics:     a.metrics,
	}
}

func (a *app) invalidator(c *awsapi.Clients, distributionID string) *cdn.Invalidator {
	return &cdn.Invalidator{
		Client:         c.CloudFront,
		DistributionID: distributionID,
		Metrics:        a.metrics,
	}
}

// finish stamps success and writes the metrics file. The command error
// wins over a metrics write error.
func (a *app) finish(err error) error {
	if err == nil {
		a.metrics.Succeeded(time.Now())
	}
	if werr := a.metrics.WriteFile(a.cfg.MetricsFile); werr != nil {
		if err != nil {
			a.log.Warn().Err(werr).Msg("metrics not written")
			return err
		}
		return werr
	}
	return err
}

// writeFile writes data to path, or to the app output when path is empty.
func writeFile(out io.Writer, path string, data []byte) error {
	if path == "" {
		_, err := fmt.Fprintln(out, string(data))
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
