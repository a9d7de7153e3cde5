package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lex00/wetwire-site-go/internal/config"
	"github.com/lex00/wetwire-site-go/internal/site"
)

type initOptions struct {
	project     string
	environment string
	region      string
	assetDir    string
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [dir]",
		Short: "Scaffold a site configuration and starter pages",
		Long: `Init writes site.yaml plus the index and error pages into the given
directory (default: the current directory). Existing files are never
overwritten. The project name defaults to the directory name.

Examples:
    wetwire-site init
    wetwire-site init blog --environment prod --aws-region eu-west-1`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			opts, err := initOptionsFrom(cmd, dir)
			if err != nil {
				return err
			}
			written, err := runInit(dir, opts)
			for _, path := range written {
				fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", path)
			}
			return err
		},
	}
}

// initOptionsFrom reads the scaffold values from the global flags and the
// environment, filling in defaults for a fresh project.
func initOptionsFrom(cmd *cobra.Command, dir string) (initOptions, error) {
	l := config.NewFlagLoader(cmd, config.New())
	opts := initOptions{
		project:     l.String(config.KeyProject),
		environment: l.String(config.KeyEnvironment),
		region:      l.String(config.KeyRegion),
		assetDir:    l.String(config.KeyAssetDir),
	}
	if opts.project == "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return opts, err
		}
		opts.project = filepath.Base(abs)
	}
	if opts.environment == "" {
		opts.environment = "dev"
	}
	if opts.region == "" {
		opts.region = "us-east-1"
	}
	return opts, nil
}

// runInit writes the scaffold into dir and returns the paths it created.
func runInit(dir string, opts initOptions) ([]string, error) {
	// A bucket name needs room for the suffix, so check with a placeholder.
	if _, err := site.BucketName(opts.project, opts.environment, placeholderSuffix); err != nil {
		return nil, fmt.Errorf("project %q and environment %q do not form a valid bucket name: %w", opts.project, opts.environment, err)
	}

	files := []struct {
		path string
		body string
	}{
		{config.DefaultFile, fmt.Sprintf(siteYAML, opts.region, opts.project, opts.environment, opts.assetDir)},
		{filepath.Join(opts.assetDir, site.IndexDocument), fmt.Sprintf(indexHTML, opts.project)},
		{filepath.Join(opts.assetDir, site.ErrorDocument), errorHTML},
	}

	for _, f := range files {
		path := filepath.Join(dir, f.path)
		if _, err := os.Stat(path); err == nil {
			return nil, fmt.Errorf("refusing to overwrite %s", path)
		}
	}

	var written []string
	for _, f := range files {
		path := filepath.Join(dir, f.path)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return written, fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, []byte(f.body), 0o644); err != nil {
			return written, fmt.Errorf("writing %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}

const siteYAML = `# wetwire-site configuration. Every key can also be set with a
# WETWIRE_SITE_<KEY> environment variable or a --<key> flag.
aws_region: %s
project_name: %s
environment: %s
asset_dir: %s

# price_class: PriceClass_100
# concurrency: 8
# invalidate: true
`

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>%s</title>
</head>
<body>
  <h1>It works</h1>
</body>
</html>
`

const errorHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>Not found</title>
</head>
<body>
  <h1>Page not found</h1>
</body>
</html>
`
