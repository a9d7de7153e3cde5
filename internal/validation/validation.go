// Package validation checks a rendered site template.
//
// Three layers run:
//   - site rules: the access-block flags, the two-statement bucket policy
//     and the output expressions the site depends on
//   - offline schema: property types and allowed values (internal/schema)
//   - cfn-lint-go: general CloudFormation validation (library dependency)
package validation

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/goccy/go-json"
	"github.com/hashicorp/go-multierror"
	"github.com/lex00/cfn-lint-go/pkg/lint"

	wetwire "github.com/lex00/wetwire-site-go"
	"github.com/lex00/wetwire-site-go/internal/schema"
	"github.com/lex00/wetwire-site-go/internal/site"
	"github.com/lex00/wetwire-site-go/internal/template"
)

// Resource types the site rules look at.
const (
	typeBucket       = "AWS::S3::Bucket"
	typeBucketPolicy = "AWS::S3::BucketPolicy"
	typeDistribution = "AWS::CloudFront::Distribution"
)

// accessBlockFlags must all be present and false.
var accessBlockFlags = []string{
	"BlockPublicAcls",
	"BlockPublicPolicy",
	"IgnorePublicAcls",
	"RestrictPublicBuckets",
}

// CfnLintResult contains the result of running cfn-lint.
type CfnLintResult struct {
	Passed        bool     `json:"passed"`
	Errors        []string `json:"errors"`
	Warnings      []string `json:"warnings"`
	Informational []string `json:"informational"`
}

// TotalIssues returns the total number of issues found.
func (r CfnLintResult) TotalIssues() int {
	return len(r.Errors) + len(r.Warnings) + len(r.Informational)
}

// doc is a template decoded into plain maps.
type doc struct {
	Resources map[string]struct {
		Type       string         `json:"Type"`
		Properties map[string]any `json:"Properties"`
		DependsOn  []string       `json:"DependsOn"`
	} `json:"Resources"`
	Outputs map[string]struct {
		Value any `json:"Value"`
	} `json:"Outputs"`
}

// CheckSite reports every site rule t breaks.
func CheckSite(t *wetwire.Template) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encoding template: %w", err)
	}
	var d doc
	if err := json.Unmarshal(data, &d); err != nil {
		return fmt.Errorf("decoding template: %w", err)
	}

	var result *multierror.Error
	fail := func(format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf(format, args...))
	}

	bucket := d.only(typeBucket, fail)
	policy := d.only(typeBucketPolicy, fail)
	dist := d.only(typeDistribution, fail)

	if bucket != "" {
		props := d.Resources[bucket].Properties
		pab, _ := props["PublicAccessBlockConfiguration"].(map[string]any)
		if pab == nil {
			fail("%s: PublicAccessBlockConfiguration is missing", bucket)
		} else {
			for _, flag := range accessBlockFlags {
				v, ok := pab[flag]
				if !ok {
					fail("%s: %s is missing", bucket, flag)
				} else if v != false {
					fail("%s: %s must be false, got %v", bucket, flag, v)
				}
			}
		}
		web, _ := props["WebsiteConfiguration"].(map[string]any)
		if web["IndexDocument"] != site.IndexDocument || web["ErrorDocument"] != site.ErrorDocument {
			fail("%s: website configuration must serve %s and %s", bucket, site.IndexDocument, site.ErrorDocument)
		}
	}

	if policy != "" {
		res := d.Resources[policy]
		if bucket != "" && !reflect.DeepEqual(res.Properties["Bucket"], map[string]any{"Ref": bucket}) {
			fail("%s: Bucket must be a Ref to %s", policy, bucket)
		}
		for _, dep := range []string{bucket, dist} {
			if dep != "" && !contains(res.DependsOn, dep) {
				fail("%s: must depend on %s", policy, dep)
			}
		}
		checkStatements(policy, res.Properties, dist, fail)
	}

	if dist != "" {
		want := map[string]any{"Fn::Join": []any{"", []any{"https://", getAtt(dist, "DomainName")}}}
		if out, ok := d.Outputs[site.OutputWebsiteURL]; !ok {
			fail("output %s is missing", site.OutputWebsiteURL)
		} else if !reflect.DeepEqual(out.Value, want) {
			fail("output %s must join https:// with %s.DomainName", site.OutputWebsiteURL, dist)
		}
	}

	return result.ErrorOrNil()
}

func checkStatements(policy string, props map[string]any, dist string, fail func(string, ...any)) {
	document, _ := props["PolicyDocument"].(map[string]any)
	statements, _ := document["Statement"].([]any)
	if len(statements) != 2 {
		fail("%s: policy must have exactly 2 statements, got %d", policy, len(statements))
		return
	}

	public, _ := statements[0].(map[string]any)
	if public["Principal"] != "*" || public["Action"] != "s3:GetObject" {
		fail("%s: first statement must allow s3:GetObject to everyone", policy)
	}

	cdn, _ := statements[1].(map[string]any)
	principal, _ := cdn["Principal"].(map[string]any)
	if principal["Service"] != site.CloudFrontService {
		fail("%s: second statement must name the %s service principal", policy, site.CloudFrontService)
	}
	condition, _ := cdn["Condition"].(map[string]any)
	equals, _ := condition["StringEquals"].(map[string]any)
	arn, ok := equals["AWS:SourceArn"]
	if !ok {
		fail("%s: second statement must condition on AWS:SourceArn", policy)
		return
	}
	if dist == "" {
		return
	}
	var want any
	if err := roundTrip(site.DistributionArn(), &want); err != nil {
		fail("%s: %v", policy, err)
		return
	}
	if !reflect.DeepEqual(arn, want) {
		fail("%s: AWS:SourceArn must be the ARN of %s", policy, dist)
	}
}

// only returns the logical name of the single resource of type typ.
func (d doc) only(typ string, fail func(string, ...any)) string {
	var names []string
	for name, r := range d.Resources {
		if r.Type == typ {
			names = append(names, name)
		}
	}
	if len(names) != 1 {
		fail("want exactly one %s, got %d", typ, len(names))
		return ""
	}
	return names[0]
}

func getAtt(resource, attr string) map[string]any {
	return map[string]any{"Fn::GetAtt": []any{resource, attr}}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func roundTrip(in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// CheckOutputs verifies deployed outputs: every value present and the
// website URL equal to https:// plus the distribution domain.
func CheckOutputs(o wetwire.SiteOutputs) error {
	var result *multierror.Error
	fields := []struct{ name, value string }{
		{site.OutputBucketName, o.S3BucketName},
		{site.OutputWebsiteEndpoint, o.S3WebsiteEndpoint},
		{site.OutputDomainName, o.CloudFrontDomainName},
		{site.OutputDistributionID, o.CloudFrontDistributionID},
		{site.OutputWebsiteURL, o.WebsiteURL},
	}
	for _, f := range fields {
		if f.value == "" {
			result = multierror.Append(result, fmt.Errorf("output %s is empty", f.name))
		}
	}
	if o.CloudFrontDomainName != "" && o.WebsiteURL != "https://"+o.CloudFrontDomainName {
		result = multierror.Append(result, fmt.Errorf("output %s %q does not match https://%s", site.OutputWebsiteURL, o.WebsiteURL, o.CloudFrontDomainName))
	}
	if o.S3WebsiteEndpoint != "" && strings.Contains(o.S3WebsiteEndpoint, "://") {
		result = multierror.Append(result, fmt.Errorf("output %s %q must be a bare host", site.OutputWebsiteEndpoint, o.S3WebsiteEndpoint))
	}
	return result.ErrorOrNil()
}

// RunCfnLint runs cfn-lint-go on the given template file.
func RunCfnLint(templatePath string) (*CfnLintResult, error) {
	if _, err := os.Stat(templatePath); err != nil {
		return &CfnLintResult{
			Passed: false,
			Errors: []string{fmt.Sprintf("Template file not found: %s", templatePath)},
		}, nil
	}

	linter := lint.New(lint.Options{})
	matches, err := linter.LintFile(templatePath)
	if err != nil {
		return &CfnLintResult{
			Passed: false,
			Errors: []string{fmt.Sprintf("Linter error: %v", err)},
		}, nil
	}

	result := &CfnLintResult{
		Errors:        []string{},
		Warnings:      []string{},
		Informational: []string{},
	}
	for _, match := range matches {
		formatted := formatMatch(match)
		switch match.Level {
		case "Error":
			result.Errors = append(result.Errors, formatted)
		case "Warning":
			result.Warnings = append(result.Warnings, formatted)
		default:
			result.Informational = append(result.Informational, formatted)
		}
	}
	// Warnings are acceptable.
	result.Passed = len(result.Errors) == 0
	return result, nil
}

// LintTemplate writes t to a temporary file and runs cfn-lint-go on it.
func LintTemplate(t *wetwire.Template) (*CfnLintResult, error) {
	body, err := template.ToJSON(t)
	if err != nil {
		return nil, err
	}
	dir, err := os.MkdirTemp("", "wetwire-site-lint-")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "template.json")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		return nil, fmt.Errorf("writing template: %w", err)
	}
	return RunCfnLint(path)
}

func formatMatch(match lint.Match) string {
	if len(match.Location.Path) == 0 {
		return fmt.Sprintf("%s: %s", match.Rule.ID, match.Message)
	}
	parts := make([]string, len(match.Location.Path))
	for i, p := range match.Location.Path {
		parts[i] = fmt.Sprint(p)
	}
	return fmt.Sprintf("%s: %s (at %s)", match.Rule.ID, match.Message, strings.Join(parts, "/"))
}

// Validate runs the site rules, the offline schema and cfn-lint over t.
// Schema and lint warnings are reported but do not fail the result.
func Validate(t *wetwire.Template) (wetwire.ValidateResult, error) {
	result := wetwire.ValidateResult{Resources: len(t.Resources)}

	if err := CheckSite(t); err != nil {
		var merr *multierror.Error
		if errors.As(err, &merr) {
			for _, e := range merr.Errors {
				result.Errors = append(result.Errors, e.Error())
			}
		} else {
			result.Errors = append(result.Errors, err.Error())
		}
	}

	schemaResult, err := schema.ValidateTemplate(t, schema.Options{Strict: true})
	if err != nil {
		return result, err
	}
	for _, issue := range schemaResult.Errors {
		result.Errors = append(result.Errors, issue.String())
	}
	for _, issue := range schemaResult.Warnings {
		result.Warnings = append(result.Warnings, issue.String())
	}

	lintResult, err := LintTemplate(t)
	if err != nil {
		return result, err
	}
	result.Errors = append(result.Errors, lintResult.Errors...)
	result.Warnings = append(result.Warnings, lintResult.Warnings...)
	result.Success = len(result.Errors) == 0
	return result, nil
}
