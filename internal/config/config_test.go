package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	t.Setenv("AWS_REGION", "")
	t.Setenv("AWS_PROFILE", "")
	path := filepath.Join(t.TempDir(), DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func newCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	BindFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "aws_region: us-east-1\nproject_name: blog\nenvironment: dev\n")

	c, err := Load(nil, path)
	require.NoError(t, err)

	assert.Equal(t, "us-east-1", c.Region)
	assert.Equal(t, "blog", c.Project)
	assert.Equal(t, "dev", c.Environment)
	assert.Equal(t, "website", c.AssetDir)
	assert.Equal(t, "blog-dev-site", c.StackName)
	assert.Equal(t, ".wetwire-site", c.StateDir)
	assert.Equal(t, "PriceClass_100", c.PriceClass)
	assert.Equal(t, 8, c.Concurrency)
	assert.Zero(t, c.RateLimit)
	assert.True(t, c.Invalidate)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, "console", c.LogFormat)
	assert.Equal(t, path, c.File)
	assert.NoError(t, c.Validate())
}

func TestLoad_Precedence(t *testing.T) {
	path := writeConfig(t, `
aws_region: us-east-1
project_name: blog
environment: dev
concurrency: 4
invalidate: false
`)
	t.Setenv("WETWIRE_SITE_ENVIRONMENT", "staging")
	t.Setenv("WETWIRE_SITE_CONCURRENCY", "16")

	cmd := newCommand(t, "--environment", "prod", "--stack-name", "custom")
	c, err := Load(cmd, path)
	require.NoError(t, err)

	assert.Equal(t, "prod", c.Environment, "flag beats env")
	assert.Equal(t, 16, c.Concurrency, "env beats file")
	assert.False(t, c.Invalidate, "file beats default")
	assert.Equal(t, "custom", c.StackName)
}

func TestLoad_UnsetFlagDoesNotShadow(t *testing.T) {
	path := writeConfig(t, "asset_dir: public\n")

	c, err := Load(newCommand(t), path)
	require.NoError(t, err)
	assert.Equal(t, "public", c.AssetDir)
}

func TestLoad_RegionFromAWSEnv(t *testing.T) {
	path := writeConfig(t, "project_name: blog\n")
	t.Setenv("AWS_REGION", "eu-west-1")

	c, err := Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", c.Region)
}

func TestLoad_ExplicitFileMustExist(t *testing.T) {
	_, err := Load(nil, filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "reading config")
}

func TestLoad_NoDefaultFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("WETWIRE_SITE_PROJECT_NAME", "blog")

	c, err := Load(nil, "")
	require.NoError(t, err)
	assert.Equal(t, "blog", c.Project)
	assert.Empty(t, c.File)
}

func TestValidate_ReportsEverything(t *testing.T) {
	c := Config{PriceClass: "PriceClass_300", Concurrency: 0, RateLimit: -1, LogLevel: "loud"}

	err := c.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissing))
	for _, want := range []string{
		"aws_region", "project_name", "environment",
		`price_class "PriceClass_300"`,
		"concurrency must be at least 1",
		"rate_limit must not be negative",
		`invalid log level "loud"`,
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidate_BucketNameRules(t *testing.T) {
	c := Config{Region: "us-east-1", Project: "Blog", Environment: "dev", Concurrency: 1}
	assert.ErrorContains(t, c.Validate(), `project name "Blog"`)

	long := Config{Region: "us-east-1", Project: "a-very-long-project-name-that-goes-on", Environment: "production-environment", Concurrency: 1}
	assert.ErrorContains(t, long.Validate(), "must be 3-63 characters")
}

func TestDerived(t *testing.T) {
	c := Config{Project: "blog", Environment: "dev", PriceClass: "PriceClass_All"}

	in := c.Inputs("k3x9q2ab")
	assert.Equal(t, "blog", in.Project)
	assert.Equal(t, "k3x9q2ab", in.Suffix)
	assert.Equal(t, "PriceClass_All", in.PriceClass)

	assert.Equal(t, map[string]string{"ProjectName": "blog", "Environment": "dev"}, c.Parameters())
	assert.Equal(t, "blog", c.Tags()["wetwire-site:project"])
}

func TestFlagName(t *testing.T) {
	assert.Equal(t, "aws-region", FlagName(KeyRegion))
	assert.Equal(t, "environment", FlagName(KeyEnvironment))
}
