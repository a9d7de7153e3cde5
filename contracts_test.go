package wetwire_site

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestAttrRef_MarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		ref      AttrRef
		expected string
	}{
		{
			name:     "bucket arn",
			ref:      AttrRef{Resource: "SiteBucket", Attribute: "Arn"},
			expected: `{"Fn::GetAtt":["SiteBucket","Arn"]}`,
		},
		{
			name:     "bucket regional domain name",
			ref:      AttrRef{Resource: "SiteBucket", Attribute: "RegionalDomainName"},
			expected: `{"Fn::GetAtt":["SiteBucket","RegionalDomainName"]}`,
		},
		{
			name:     "distribution domain name",
			ref:      AttrRef{Resource: "SiteDistribution", Attribute: "DomainName"},
			expected: `{"Fn::GetAtt":["SiteDistribution","DomainName"]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.ref)
			require.NoError(t, err)
			assert.JSONEq(t, tt.expected, string(data))
		})
	}
}

func TestAttrRef_IsZero(t *testing.T) {
	assert.True(t, AttrRef{}.IsZero())
	assert.False(t, AttrRef{Resource: "SiteBucket"}.IsZero())
	assert.False(t, AttrRef{Attribute: "Arn"}.IsZero())
}

func TestTemplate_JSON(t *testing.T) {
	tmpl := Template{
		AWSTemplateFormatVersion: "2010-09-09",
		Parameters: map[string]Parameter{
			"Environment": {Type: "String", Default: "dev"},
		},
		Resources: map[string]ResourceDef{
			"SiteBucketPolicy": {
				Type:       "AWS::S3::BucketPolicy",
				Properties: map[string]any{"Bucket": map[string]any{"Ref": "SiteBucket"}},
				DependsOn:  []string{"SiteBucket", "SiteDistribution"},
			},
		},
		Outputs: map[string]Output{
			"S3BucketName": {Value: map[string]any{"Ref": "SiteBucket"}},
		},
	}

	data, err := json.Marshal(tmpl)
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(data, &parsed))

	assert.Equal(t, "2010-09-09", parsed["AWSTemplateFormatVersion"])
	assert.NotContains(t, parsed, "Description")

	policy := parsed["Resources"].(map[string]any)["SiteBucketPolicy"].(map[string]any)
	assert.Equal(t, []any{"SiteBucket", "SiteDistribution"}, policy["DependsOn"])
}

func TestTemplate_YAMLUsesCloudFormationKeys(t *testing.T) {
	tmpl := Template{
		AWSTemplateFormatVersion: "2010-09-09",
		Parameters: map[string]Parameter{
			"ProjectName": {Type: "String", AllowedPattern: "^[a-z0-9-]+$"},
		},
		Resources: map[string]ResourceDef{},
		Outputs: map[string]Output{
			"WebsiteURL": {Description: "HTTPS URL", Value: "https://example.net"},
		},
	}

	data, err := yaml.Marshal(tmpl)
	require.NoError(t, err)

	out := string(data)
	assert.Contains(t, out, "AllowedPattern:")
	assert.Contains(t, out, "Description: HTTPS URL")
	assert.Contains(t, out, "Value: https://example.net")
	assert.NotContains(t, out, "allowedpattern")
}

func TestPublishResult_Changed(t *testing.T) {
	assert.False(t, PublishResult{Unchanged: 4}.Changed())
	assert.True(t, PublishResult{Uploaded: []string{"index.html"}}.Changed())
	assert.True(t, PublishResult{Deleted: []string{"old.css"}}.Changed())
}

func TestSiteOutputs_JSONNames(t *testing.T) {
	data, err := json.Marshal(SiteOutputs{
		S3BucketName:             "blog-dev-k3x9q2ab",
		CloudFrontDistributionID: "E2QWRUHAPOMQZL",
		WebsiteURL:               "https://d111111abcdef8.cloudfront.net",
	})
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(data, &parsed))
	for _, key := range []string{
		"s3_bucket_name",
		"s3_website_endpoint",
		"cloudfront_domain_name",
		"cloudfront_distribution_id",
		"website_url",
	} {
		assert.Contains(t, parsed, key)
	}
}
