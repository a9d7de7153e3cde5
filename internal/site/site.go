// Package site declares the static-website topology: a website bucket, a
// CloudFront distribution reading it through an origin access control, and
// the bucket policy tying the two together.
package site

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hashicorp/go-multierror"

	wetwire "github.com/lex00/wetwire-site-go"
	"github.com/lex00/wetwire-site-go/internal/template"
	. "github.com/lex00/wetwire-site-go/intrinsics"
	"github.com/lex00/wetwire-site-go/resources/cloudfront"
	"github.com/lex00/wetwire-site-go/resources/s3"
)

// Logical IDs of the declared resources.
const (
	BucketID              = "SiteBucket"
	OriginAccessControlID = "SiteOriginAccessControl"
	DistributionID        = "SiteDistribution"
	BucketPolicyID        = "SiteBucketPolicy"
)

// Template parameter names.
const (
	ParamProjectName = "ProjectName"
	ParamEnvironment = "Environment"
)

// Template output names.
const (
	OutputBucketName      = "S3BucketName"
	OutputWebsiteEndpoint = "S3WebsiteEndpoint"
	OutputDomainName      = "CloudFrontDomainName"
	OutputDistributionID  = "CloudFrontDistributionId"
	OutputWebsiteURL      = "WebsiteURL"
)

// Bucket policy statement IDs.
const (
	PublicReadSid     = "PublicReadGetObject"
	CloudFrontReadSid = "AllowCloudFrontServicePrincipal"
	CloudFrontService = "cloudfront.amazonaws.com"
)

const (
	IndexDocument = "index.html"
	ErrorDocument = "error.html"
	ErrorPagePath = "/" + ErrorDocument

	// MaxOriginAccessControlName is the CloudFront limit on OAC names.
	MaxOriginAccessControlName = 64

	oacNameSuffix          = "-oac"
	originID               = "S3Origin"
	namePartPattern        = "^[a-z0-9][a-z0-9-]*$"
	namePartConstraintDesc = "lowercase letters, digits and hyphens, starting with a letter or digit"
)

// Cache TTLs in seconds.
const (
	MinTTL     = 0
	DefaultTTL = 3600
	MaxTTL     = 86400
)

var (
	bucketNameChars = regexp.MustCompile(`^[a-z0-9.-]+$`)
	ipShaped        = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)
	namePart        = regexp.MustCompile(namePartPattern)
)

// Inputs are the values a site is rendered from.
type Inputs struct {
	Project     string
	Environment string
	Suffix      string
	// PriceClass defaults to PriceClass_100.
	PriceClass string
}

// Site is the declared topology.
type Site struct {
	Inputs

	Bucket              s3.Bucket
	OriginAccessControl cloudfront.OriginAccessControl
	Distribution        cloudfront.Distribution
	BucketPolicy        s3.BucketPolicy
}

// BucketName composes the bucket name and checks it against the S3 naming
// rules.
func BucketName(project, env, suffix string) (string, error) {
	name := project + "-" + env + "-" + suffix
	if err := ValidateBucketName(name); err != nil {
		return "", err
	}
	return name, nil
}

// ValidateBucketName reports every S3 naming rule name breaks.
func ValidateBucketName(name string) error {
	var result *multierror.Error
	if len(name) < 3 || len(name) > 63 {
		result = multierror.Append(result, fmt.Errorf("bucket name %q must be 3-63 characters, got %d", name, len(name)))
	}
	if !bucketNameChars.MatchString(name) {
		result = multierror.Append(result, fmt.Errorf("bucket name %q may only contain lowercase letters, digits, '.' and '-'", name))
	}
	if name != "" && (!isAlnum(name[0]) || !isAlnum(name[len(name)-1])) {
		result = multierror.Append(result, fmt.Errorf("bucket name %q must begin and end with a letter or digit", name))
	}
	if strings.Contains(name, "..") {
		result = multierror.Append(result, fmt.Errorf("bucket name %q must not contain '..'", name))
	}
	if ipShaped.MatchString(name) {
		result = multierror.Append(result, fmt.Errorf("bucket name %q must not be formatted as an IP address", name))
	}
	if strings.HasPrefix(name, "xn--") || strings.HasSuffix(name, "-s3alias") {
		result = multierror.Append(result, fmt.Errorf("bucket name %q uses a reserved prefix or suffix", name))
	}
	return result.ErrorOrNil()
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}

// New declares the site for the given inputs.
func New(in Inputs) (*Site, error) {
	var result *multierror.Error
	if !namePart.MatchString(in.Project) {
		result = multierror.Append(result, fmt.Errorf("project name %q: %s", in.Project, namePartConstraintDesc))
	}
	if !namePart.MatchString(in.Environment) {
		result = multierror.Append(result, fmt.Errorf("environment %q: %s", in.Environment, namePartConstraintDesc))
	}
	if _, err := BucketName(in.Project, in.Environment, in.Suffix); err != nil {
		result = multierror.Append(result, err)
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	if in.PriceClass == "" {
		in.PriceClass = cloudfront.PriceClass100
	}

	s := &Site{Inputs: in}
	s.declareBucket()
	s.declareOriginAccessControl()
	s.declareDistribution()
	s.declareBucketPolicy()
	return s, nil
}

// BucketName returns the composed bucket name.
func (s *Site) BucketName() string {
	return s.Project + "-" + s.Environment + "-" + s.Suffix
}

func (s *Site) tags() []any {
	return Any(
		Tag{Key: "Project", Value: Ref{LogicalName: ParamProjectName}},
		Tag{Key: "Environment", Value: Ref{LogicalName: ParamEnvironment}},
	)
}

func (s *Site) declareBucket() {
	s.Bucket = s3.NewBucket(BucketID)
	s.Bucket.BucketName = Sub{String: "${" + ParamProjectName + "}-${" + ParamEnvironment + "}-" + s.Suffix}
	s.Bucket.WebsiteConfiguration = &s3.WebsiteConfiguration{
		IndexDocument: IndexDocument,
		ErrorDocument: ErrorDocument,
	}
	// Public reads go straight to the website endpoint, so nothing is blocked.
	s.Bucket.PublicAccessBlockConfiguration = &s3.PublicAccessBlockConfiguration{}
	s.Bucket.Tags = s.tags()
}

func (s *Site) declareOriginAccessControl() {
	s.OriginAccessControl = cloudfront.NewOriginAccessControl(OriginAccessControlID)
	s.OriginAccessControl.OriginAccessControlConfig = cloudfront.OriginAccessControlConfig{
		Name:                          Sub{String: "${" + ParamProjectName + "}-${" + ParamEnvironment + "}-" + s.Suffix + s.oacNameSuffix()},
		Description:                   "Origin access control for the site bucket",
		OriginAccessControlOriginType: cloudfront.OriginTypeS3,
		SigningBehavior:               cloudfront.SigningBehaviorAlways,
		SigningProtocol:               cloudfront.SigningProtocolSigV4,
	}
}

// OriginAccessControlName is the resolved OAC name. The "-oac" decoration
// is dropped when it would push the name past MaxOriginAccessControlName.
func (s *Site) OriginAccessControlName() string {
	return s.BucketName() + s.oacNameSuffix()
}

func (s *Site) oacNameSuffix() string {
	if len(s.BucketName())+len(oacNameSuffix) > MaxOriginAccessControlName {
		return ""
	}
	return oacNameSuffix
}

func (s *Site) declareDistribution() {
	s.Distribution = cloudfront.NewDistribution(DistributionID)
	s.Distribution.DistributionConfig = cloudfront.DistributionConfig{
		Enabled:           true,
		Comment:           Sub{String: "${" + ParamProjectName + "}-${" + ParamEnvironment + "} static site"},
		DefaultRootObject: IndexDocument,
		IPV6Enabled:       true,
		PriceClass:        s.PriceClass,
		Origins: List(cloudfront.Origin{
			Id:                    originID,
			DomainName:            s.Bucket.RegionalDomainName,
			OriginAccessControlId: s.OriginAccessControl.Id,
			S3OriginConfig:        &cloudfront.S3OriginConfig{},
		}),
		DefaultCacheBehavior: cloudfront.DefaultCacheBehavior{
			TargetOriginId: originID,
			AllowedMethods: List("DELETE", "GET", "HEAD", "OPTIONS", "PATCH", "POST", "PUT"),
			CachedMethods:  List("GET", "HEAD"),
			ForwardedValues: &cloudfront.ForwardedValues{
				QueryString: false,
				Cookies:     cloudfront.Cookies{Forward: "none"},
			},
			MinTTL:               MinTTL,
			DefaultTTL:           DefaultTTL,
			MaxTTL:               MaxTTL,
			Compress:             true,
			ViewerProtocolPolicy: cloudfront.ViewerProtocolRedirectToHTTPS,
		},
		CustomErrorResponses: List(
			cloudfront.CustomErrorResponse{ErrorCode: 404, ResponseCode: 404, ResponsePagePath: ErrorPagePath},
			cloudfront.CustomErrorResponse{ErrorCode: 403, ResponseCode: 404, ResponsePagePath: ErrorPagePath},
		),
		Restrictions: &cloudfront.Restrictions{
			GeoRestriction: cloudfront.GeoRestriction{RestrictionType: "none"},
		},
		ViewerCertificate: &cloudfront.ViewerCertificate{CloudFrontDefaultCertificate: true},
	}
	s.Distribution.Tags = s.tags()
}

// DistributionArn is the ARN expression of the site distribution.
func DistributionArn() Sub {
	return Sub{String: "arn:${AWS::Partition}:cloudfront::${AWS::AccountId}:distribution/${" + DistributionID + "}"}
}

func (s *Site) declareBucketPolicy() {
	objects := Sub{String: "${" + BucketID + ".Arn}/*"}
	s.BucketPolicy = s3.BucketPolicy{
		Bucket: Ref{LogicalName: BucketID},
		PolicyDocument: NewPolicyDocument(
			PolicyStatement{
				Sid:       PublicReadSid,
				Effect:    "Allow",
				Principal: AllPrincipal,
				Action:    "s3:GetObject",
				Resource:  objects,
			},
			PolicyStatement{
				Sid:       CloudFrontReadSid,
				Effect:    "Allow",
				Principal: ServicePrincipal{CloudFrontService},
				Action:    "s3:GetObject",
				Resource:  objects,
				Condition: Json{
					StringEquals: Json{SourceArn: DistributionArn()},
				},
			},
		),
	}
}

// Resources returns the declarations under their logical IDs. The policy
// carries an explicit DependsOn on the bucket, which holds the access-block
// settings, and on the distribution.
func (s *Site) Resources() []wetwire.DeclaredResource {
	return []wetwire.DeclaredResource{
		{Name: BucketID, Value: s.Bucket},
		{Name: OriginAccessControlID, Value: s.OriginAccessControl},
		{Name: DistributionID, Value: s.Distribution},
		{Name: BucketPolicyID, Value: s.BucketPolicy, DependsOn: []string{BucketID, DistributionID}},
	}
}

// Parameters returns the template parameters with the inputs as defaults.
func (s *Site) Parameters() map[string]wetwire.Parameter {
	return map[string]wetwire.Parameter{
		ParamProjectName: {
			Type:                  "String",
			Description:           "Project name used in resource names",
			Default:               s.Project,
			AllowedPattern:        namePartPattern,
			ConstraintDescription: namePartConstraintDesc,
		},
		ParamEnvironment: {
			Type:                  "String",
			Description:           "Deployment environment",
			Default:               s.Environment,
			AllowedPattern:        namePartPattern,
			ConstraintDescription: namePartConstraintDesc,
		},
	}
}

// Outputs returns the template outputs.
func (s *Site) Outputs() map[string]wetwire.Output {
	return map[string]wetwire.Output{
		OutputBucketName: {
			Description: "Name of the website bucket",
			Value:       Ref{LogicalName: BucketID},
		},
		OutputWebsiteEndpoint: {
			Description: "S3 static website endpoint",
			Value:       Select{Index: 2, List: Split{Delimiter: "/", Source: s.Bucket.WebsiteURL}},
		},
		OutputDomainName: {
			Description: "CloudFront distribution domain name",
			Value:       s.Distribution.DomainName,
		},
		OutputDistributionID: {
			Description: "CloudFront distribution ID",
			Value:       Ref{LogicalName: DistributionID},
		},
		OutputWebsiteURL: {
			Description: "HTTPS URL of the site",
			Value:       Join{Delimiter: "", Values: Any("https://", s.Distribution.DomainName)},
		},
	}
}

// Builder returns a template builder holding the whole topology.
func (s *Site) Builder() (*template.Builder, error) {
	b := template.NewBuilder(fmt.Sprintf("Static website %s (%s)", s.Project, s.Environment))
	for name, p := range s.Parameters() {
		b.AddParameter(name, p)
	}
	for _, r := range s.Resources() {
		if err := b.AddResource(r); err != nil {
			return nil, err
		}
	}
	for name, o := range s.Outputs() {
		b.AddOutput(name, o)
	}
	return b, nil
}

// Template renders the topology.
func (s *Site) Template() (*wetwire.Template, error) {
	b, err := s.Builder()
	if err != nil {
		return nil, err
	}
	return b.Build()
}
