// Package config loads site settings from site.yaml, WETWIRE_SITE_*
// environment variables and command-line flags.
//
// Precedence, highest first: a flag set on the command line, the
// environment, the config file, the default.
package config

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lex00/wetwire-site-go/internal/logging"
	"github.com/lex00/wetwire-site-go/internal/site"
	"github.com/lex00/wetwire-site-go/internal/state"
	"github.com/lex00/wetwire-site-go/resources/cloudfront"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "WETWIRE_SITE"

// DefaultFile is looked up in the working directory when no --config is given.
const DefaultFile = "site.yaml"

// Keys.
const (
	KeyRegion      = "aws_region"
	KeyProfile     = "profile"
	KeyProject     = "project_name"
	KeyEnvironment = "environment"
	KeyAssetDir    = "asset_dir"
	KeyStackName   = "stack_name"
	KeyStateDir    = "state_dir"
	KeyPriceClass  = "price_class"
	KeyConcurrency = "concurrency"
	KeyRateLimit   = "rate_limit"
	KeyInvalidate  = "invalidate"
	KeyMetricsFile = "metrics_file"
	KeyLogLevel    = "log_level"
	KeyLogFormat   = "log_format"
)

// ErrMissing marks a required setting that has no value.
var ErrMissing = errors.New("missing required setting")

var priceClasses = map[string]bool{
	cloudfront.PriceClass100: true,
	cloudfront.PriceClass200: true,
	cloudfront.PriceClassAll: true,
}

// Config is the resolved configuration.
type Config struct {
	Region      string
	Profile     string
	Project     string
	Environment string
	AssetDir    string
	StackName   string
	StateDir    string
	PriceClass  string
	Concurrency int
	RateLimit   float64
	Invalidate  bool
	MetricsFile string
	LogLevel    string
	LogFormat   string

	// File is the config file that was read, empty when none was found.
	File string
}

// FlagName maps a key to its command-line flag.
func FlagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

// BindFlags registers one persistent flag per key on cmd.
func BindFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.String("config", "", "config file (default ./"+DefaultFile+")")
	f.String(FlagName(KeyRegion), "", "AWS region")
	f.String(FlagName(KeyProfile), "", "AWS shared config profile")
	f.String(FlagName(KeyProject), "", "project name")
	f.String(FlagName(KeyEnvironment), "", "environment name")
	f.String(FlagName(KeyAssetDir), "website", "directory of site assets")
	f.String(FlagName(KeyStackName), "", "CloudFormation stack name (default <project>-<env>-site)")
	f.String(FlagName(KeyStateDir), ".wetwire-site", "directory for local deployment state")
	f.String(FlagName(KeyPriceClass), cloudfront.PriceClass100, "CloudFront price class")
	f.Int(FlagName(KeyConcurrency), 8, "parallel object transfers")
	f.Float64(FlagName(KeyRateLimit), 0, "max S3 operations per second (0 = unlimited)")
	f.Bool(FlagName(KeyInvalidate), true, "invalidate the CDN after a publish that changed objects")
	f.String(FlagName(KeyMetricsFile), "", "write Prometheus metrics to this file")
	f.String(FlagName(KeyLogLevel), "info", "log level")
	f.String(FlagName(KeyLogFormat), logging.FormatConsole, "log format: console or json")
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyAssetDir, "website")
	v.SetDefault(KeyStateDir, ".wetwire-site")
	v.SetDefault(KeyPriceClass, cloudfront.PriceClass100)
	v.SetDefault(KeyConcurrency, 8)
	v.SetDefault(KeyRateLimit, 0)
	v.SetDefault(KeyInvalidate, true)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, logging.FormatConsole)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv(KeyRegion, EnvPrefix+"_AWS_REGION", "AWS_REGION")
	_ = v.BindEnv(KeyProfile, EnvPrefix+"_PROFILE", "AWS_PROFILE")
	return v
}

// FlagLoader reads a key from cmd's flag when it was set explicitly and
// from viper otherwise.
type FlagLoader struct {
	cmd *cobra.Command
	v   *viper.Viper
}

// NewFlagLoader creates a FlagLoader. cmd may be nil.
func NewFlagLoader(cmd *cobra.Command, v *viper.Viper) *FlagLoader {
	return &FlagLoader{cmd: cmd, v: v}
}

func (f *FlagLoader) changed(key string) bool {
	if f.cmd == nil {
		return false
	}
	fl := f.cmd.Flags().Lookup(FlagName(key))
	return fl != nil && fl.Changed
}

// String returns the flag value if explicitly set, otherwise viper's.
func (f *FlagLoader) String(key string) string {
	if f.changed(key) {
		val, _ := f.cmd.Flags().GetString(FlagName(key))
		return val
	}
	return f.v.GetString(key)
}

// Int returns the flag value if explicitly set, otherwise viper's.
func (f *FlagLoader) Int(key string) int {
	if f.changed(key) {
		val, _ := f.cmd.Flags().GetInt(FlagName(key))
		return val
	}
	return f.v.GetInt(key)
}

// Float64 returns the flag value if explicitly set, otherwise viper's.
func (f *FlagLoader) Float64(key string) float64 {
	if f.changed(key) {
		val, _ := f.cmd.Flags().GetFloat64(FlagName(key))
		return val
	}
	return f.v.GetFloat64(key)
}

// Bool returns the flag value if explicitly set, otherwise viper's.
func (f *FlagLoader) Bool(key string) bool {
	if f.changed(key) {
		val, _ := f.cmd.Flags().GetBool(FlagName(key))
		return val
	}
	return f.v.GetBool(key)
}

// Load resolves the configuration for cmd. With an empty path it reads
// DefaultFile from the working directory if one exists; an explicit path
// must exist.
func Load(cmd *cobra.Command, path string) (Config, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(strings.TrimSuffix(DefaultFile, ".yaml"))
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	l := NewFlagLoader(cmd, v)
	c := Config{
		Region:      l.String(KeyRegion),
		Profile:     l.String(KeyProfile),
		Project:     l.String(KeyProject),
		Environment: l.String(KeyEnvironment),
		AssetDir:    l.String(KeyAssetDir),
		StackName:   l.String(KeyStackName),
		StateDir:    l.String(KeyStateDir),
		PriceClass:  l.String(KeyPriceClass),
		Concurrency: l.Int(KeyConcurrency),
		RateLimit:   l.Float64(KeyRateLimit),
		Invalidate:  l.Bool(KeyInvalidate),
		MetricsFile: l.String(KeyMetricsFile),
		LogLevel:    l.String(KeyLogLevel),
		LogFormat:   l.String(KeyLogFormat),
		File:        v.ConfigFileUsed(),
	}
	if c.StackName == "" && c.Project != "" && c.Environment != "" {
		c.StackName = c.Project + "-" + c.Environment + "-site"
	}
	return c, nil
}

// Validate reports every problem with c at once.
func (c Config) Validate() error {
	var result *multierror.Error
	required := []struct{ key, val string }{
		{KeyRegion, c.Region},
		{KeyProject, c.Project},
		{KeyEnvironment, c.Environment},
	}
	for _, r := range required {
		if r.val == "" {
			result = multierror.Append(result, fmt.Errorf("%w: %s", ErrMissing, r.key))
		}
	}

	if c.Project != "" && c.Environment != "" {
		// Any valid suffix has the same length and alphabet.
		placeholder := strings.Repeat("0", state.SuffixLength)
		if _, err := site.New(site.Inputs{Project: c.Project, Environment: c.Environment, Suffix: placeholder}); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if c.PriceClass != "" && !priceClasses[c.PriceClass] {
		result = multierror.Append(result, fmt.Errorf("%s %q: want %s, %s or %s",
			KeyPriceClass, c.PriceClass, cloudfront.PriceClass100, cloudfront.PriceClass200, cloudfront.PriceClassAll))
	}
	if c.Concurrency < 1 {
		result = multierror.Append(result, fmt.Errorf("%s must be at least 1, got %d", KeyConcurrency, c.Concurrency))
	}
	if c.RateLimit < 0 {
		result = multierror.Append(result, fmt.Errorf("%s must not be negative, got %g", KeyRateLimit, c.RateLimit))
	}
	if _, err := logging.New(io.Discard, c.LogLevel, c.LogFormat); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// Inputs returns the site inputs for suffix.
func (c Config) Inputs(suffix string) site.Inputs {
	return site.Inputs{
		Project:     c.Project,
		Environment: c.Environment,
		Suffix:      suffix,
		PriceClass:  c.PriceClass,
	}
}

// Tags are applied to the stack and so to every resource in it.
func (c Config) Tags() map[string]string {
	return map[string]string{
		"wetwire-site:project":     c.Project,
		"wetwire-site:environment": c.Environment,
	}
}

// Parameters are the template parameter values for the stack.
func (c Config) Parameters() map[string]string {
	return map[string]string{
		site.ParamProjectName: c.Project,
		site.ParamEnvironment: c.Environment,
	}
}
