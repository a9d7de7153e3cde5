// Package wetwire_site declares a static-website hosting topology in Go.
//
// The topology is an S3 bucket configured for website serving, a CloudFront
// distribution in front of it with an Origin Access Control, and a bucket
// policy granting read access to the public and to that distribution:
//
//	var SiteBucket = s3.Bucket{
//	    BucketName: Sub{String: "${ProjectName}-${Environment}-k3x9q2ab"},
//	}
//
//	var SiteDistribution = cloudfront.Distribution{
//	    DistributionConfig: cloudfront.DistributionConfig{
//	        Origins: List(cloudfront.Origin{
//	            DomainName: SiteBucket.RegionalDomainName, // GetAtt reference
//	        }),
//	    },
//	}
//
// The wetwire-site CLI renders these declarations as a CloudFormation
// template, deploys the stack and mirrors a local asset directory into the
// bucket.
package wetwire_site

import (
	"encoding/json"
)

// Resource represents a CloudFormation resource.
// All resource types (s3.Bucket, cloudfront.Distribution, etc.) implement this interface.
type Resource interface {
	// ResourceType returns the CloudFormation type (e.g., "AWS::S3::Bucket")
	ResourceType() string
}

// AttrRef represents a GetAtt reference to a resource attribute.
// Resource types expose AttrRef fields for each attribute the site reads.
//
// When serialized to CloudFormation JSON, AttrRef becomes:
//
//	{"Fn::GetAtt": ["SiteBucket", "RegionalDomainName"]}
type AttrRef struct {
	// Resource is the logical name of the referenced resource
	Resource string
	// Attribute is the attribute name (e.g., "Arn", "DomainName")
	Attribute string
}

// MarshalJSON serializes AttrRef to CloudFormation GetAtt syntax.
func (a AttrRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string][]string{
		"Fn::GetAtt": {a.Resource, a.Attribute},
	})
}

// IsZero returns true if the AttrRef has not been populated.
func (a AttrRef) IsZero() bool {
	return a.Resource == "" && a.Attribute == ""
}

// DeclaredResource is a resource registered with the template builder under
// its logical name.
type DeclaredResource struct {
	// Name is the CloudFormation logical ID
	Name string
	// Value is the resource declaration
	Value Resource
	// DependsOn lists logical names that must be applied first even when no
	// attribute of theirs is referenced
	DependsOn []string
}

// Template represents a CloudFormation template.
type Template struct {
	AWSTemplateFormatVersion string                 `json:"AWSTemplateFormatVersion" yaml:"AWSTemplateFormatVersion"`
	Description              string                 `json:"Description,omitempty" yaml:"Description,omitempty"`
	Parameters               map[string]Parameter   `json:"Parameters,omitempty" yaml:"Parameters,omitempty"`
	Resources                map[string]ResourceDef `json:"Resources" yaml:"Resources"`
	Outputs                  map[string]Output      `json:"Outputs,omitempty" yaml:"Outputs,omitempty"`
}

// ResourceDef is a single resource in the CloudFormation template.
type ResourceDef struct {
	Type       string         `json:"Type" yaml:"Type"`
	Properties map[string]any `json:"Properties,omitempty" yaml:"Properties,omitempty"`
	DependsOn  []string       `json:"DependsOn,omitempty" yaml:"DependsOn,omitempty"`
}

// Parameter is a CloudFormation template parameter.
type Parameter struct {
	Type                  string `json:"Type" yaml:"Type"`
	Description           string `json:"Description,omitempty" yaml:"Description,omitempty"`
	Default               any    `json:"Default,omitempty" yaml:"Default,omitempty"`
	AllowedPattern        string `json:"AllowedPattern,omitempty" yaml:"AllowedPattern,omitempty"`
	ConstraintDescription string `json:"ConstraintDescription,omitempty" yaml:"ConstraintDescription,omitempty"`
}

// Output is a CloudFormation template output.
type Output struct {
	Description string `json:"Description,omitempty" yaml:"Description,omitempty"`
	Value       any    `json:"Value" yaml:"Value"`
}

// BuildResult is the JSON output from `wetwire-site build --json`.
type BuildResult struct {
	Success   bool     `json:"success"`
	Template  Template `json:"template,omitempty"`
	Resources []string `json:"resources,omitempty"`
	Errors    []string `json:"errors,omitempty"`
}

// ValidateResult is the JSON output from `wetwire-site validate`.
type ValidateResult struct {
	Success   bool     `json:"success"`
	Resources int      `json:"resources"`
	Errors    []string `json:"errors,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
}

// ListResult is the JSON output from `wetwire-site list`.
type ListResult struct {
	Resources []ListResource `json:"resources"`
}

// ListResource is a single resource in the list output.
type ListResource struct {
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	DependsOn []string `json:"depends_on,omitempty"`
}

// TemplateDiff groups resource-level differences between two templates.
type TemplateDiff struct {
	Added    []DiffEntry `json:"added,omitempty"`
	Removed  []DiffEntry `json:"removed,omitempty"`
	Modified []DiffEntry `json:"modified,omitempty"`
}

// DiffEntry describes one added, removed or modified resource.
type DiffEntry struct {
	Resource string   `json:"resource"`
	Type     string   `json:"type"`
	Changes  []string `json:"changes,omitempty"`
}

// DiffSummary counts the entries of a TemplateDiff.
type DiffSummary struct {
	Added    int `json:"added"`
	Removed  int `json:"removed"`
	Modified int `json:"modified"`
	Total    int `json:"total"`
}

// SiteOutputs are the stack outputs under their published names.
type SiteOutputs struct {
	S3BucketName             string `json:"s3_bucket_name"`
	S3WebsiteEndpoint        string `json:"s3_website_endpoint"`
	CloudFrontDomainName     string `json:"cloudfront_domain_name"`
	CloudFrontDistributionID string `json:"cloudfront_distribution_id"`
	WebsiteURL               string `json:"website_url"`
}

// PublishResult is the JSON output from `wetwire-site sync`.
type PublishResult struct {
	Uploaded      []string `json:"uploaded,omitempty"`
	Deleted       []string `json:"deleted,omitempty"`
	Unchanged     int      `json:"unchanged"`
	BytesUploaded int64    `json:"bytes_uploaded"`
	Invalidation  string   `json:"invalidation,omitempty"`
}

// Changed reports whether the publish touched the bucket.
func (r PublishResult) Changed() bool {
	return len(r.Uploaded) > 0 || len(r.Deleted) > 0
}
