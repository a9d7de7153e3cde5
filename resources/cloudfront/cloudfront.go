// Package cloudfront provides the AWS::CloudFront resource types used by the
// site topology.
package cloudfront

import (
	wetwire "github.com/lex00/wetwire-site-go"
)

// Origin access control settings.
const (
	OriginTypeS3          = "s3"
	SigningBehaviorAlways = "always"
	SigningProtocolSigV4  = "sigv4"
)

// Viewer protocol policies.
const (
	ViewerProtocolAllowAll        = "allow-all"
	ViewerProtocolRedirectToHTTPS = "redirect-to-https"
	ViewerProtocolHTTPSOnly       = "https-only"
)

// Price classes.
const (
	PriceClass100 = "PriceClass_100"
	PriceClass200 = "PriceClass_200"
	PriceClassAll = "PriceClass_All"
)

// OriginAccessControl is an AWS::CloudFront::OriginAccessControl.
type OriginAccessControl struct {
	OriginAccessControlConfig OriginAccessControlConfig `json:"OriginAccessControlConfig"`

	Id wetwire.AttrRef `json:"-"`
}

// NewOriginAccessControl returns an OriginAccessControl whose attribute
// references point at logicalName.
func NewOriginAccessControl(logicalName string) OriginAccessControl {
	return OriginAccessControl{
		Id: wetwire.AttrRef{Resource: logicalName, Attribute: "Id"},
	}
}

// ResourceType implements wetwire_site.Resource.
func (OriginAccessControl) ResourceType() string { return "AWS::CloudFront::OriginAccessControl" }

// OriginAccessControlConfig describes how CloudFront signs origin requests.
type OriginAccessControlConfig struct {
	Name                          any    `json:"Name"`
	Description                   string `json:"Description,omitempty"`
	OriginAccessControlOriginType string `json:"OriginAccessControlOriginType"`
	SigningBehavior               string `json:"SigningBehavior"`
	SigningProtocol               string `json:"SigningProtocol"`
}

// Distribution is an AWS::CloudFront::Distribution.
//
// Ref returns the distribution ID.
type Distribution struct {
	DistributionConfig DistributionConfig `json:"DistributionConfig"`
	Tags               []any              `json:"Tags,omitempty"`

	DomainName wetwire.AttrRef `json:"-"`
	Id         wetwire.AttrRef `json:"-"`
}

// NewDistribution returns a Distribution whose attribute references point at
// logicalName.
func NewDistribution(logicalName string) Distribution {
	return Distribution{
		DomainName: wetwire.AttrRef{Resource: logicalName, Attribute: "DomainName"},
		Id:         wetwire.AttrRef{Resource: logicalName, Attribute: "Id"},
	}
}

// ResourceType implements wetwire_site.Resource.
func (Distribution) ResourceType() string { return "AWS::CloudFront::Distribution" }

// DistributionConfig is the edge configuration of a distribution.
type DistributionConfig struct {
	Enabled              bool                  `json:"Enabled"`
	Comment              any                   `json:"Comment,omitempty"`
	DefaultRootObject    string                `json:"DefaultRootObject,omitempty"`
	IPV6Enabled          bool                  `json:"IPV6Enabled,omitempty"`
	HttpVersion          string                `json:"HttpVersion,omitempty"`
	PriceClass           string                `json:"PriceClass,omitempty"`
	Origins              []Origin              `json:"Origins"`
	DefaultCacheBehavior DefaultCacheBehavior  `json:"DefaultCacheBehavior"`
	CustomErrorResponses []CustomErrorResponse `json:"CustomErrorResponses,omitempty"`
	Restrictions         *Restrictions         `json:"Restrictions,omitempty"`
	ViewerCertificate    *ViewerCertificate    `json:"ViewerCertificate,omitempty"`
}

// Origin is a single distribution origin.
type Origin struct {
	Id                    string          `json:"Id"`
	DomainName            any             `json:"DomainName"`
	OriginAccessControlId any             `json:"OriginAccessControlId,omitempty"`
	S3OriginConfig        *S3OriginConfig `json:"S3OriginConfig,omitempty"`
}

// S3OriginConfig marks an origin as an S3 REST endpoint. OriginAccessIdentity
// stays empty when an origin access control signs the requests.
type S3OriginConfig struct {
	OriginAccessIdentity string `json:"OriginAccessIdentity"`
}

// DefaultCacheBehavior is the behavior applied to every path.
type DefaultCacheBehavior struct {
	TargetOriginId       string           `json:"TargetOriginId"`
	AllowedMethods       []string         `json:"AllowedMethods"`
	CachedMethods        []string         `json:"CachedMethods"`
	ForwardedValues      *ForwardedValues `json:"ForwardedValues,omitempty"`
	MinTTL               int              `json:"MinTTL"`
	DefaultTTL           int              `json:"DefaultTTL"`
	MaxTTL               int              `json:"MaxTTL"`
	Compress             bool             `json:"Compress"`
	ViewerProtocolPolicy string           `json:"ViewerProtocolPolicy"`
}

// ForwardedValues decides which request components reach the origin and
// form the cache key.
type ForwardedValues struct {
	QueryString bool    `json:"QueryString"`
	Cookies     Cookies `json:"Cookies"`
}

// Cookies selects which cookies are forwarded.
type Cookies struct {
	Forward string `json:"Forward"`
}

// CustomErrorResponse rewrites an origin error to a page and status code.
type CustomErrorResponse struct {
	ErrorCode        int    `json:"ErrorCode"`
	ResponseCode     int    `json:"ResponseCode,omitempty"`
	ResponsePagePath string `json:"ResponsePagePath,omitempty"`
}

// Restrictions wraps the geographic restriction.
type Restrictions struct {
	GeoRestriction GeoRestriction `json:"GeoRestriction"`
}

// GeoRestriction limits viewers by country. RestrictionType "none" disables it.
type GeoRestriction struct {
	RestrictionType string   `json:"RestrictionType"`
	Locations       []string `json:"Locations,omitempty"`
}

// ViewerCertificate selects the TLS certificate presented to viewers.
type ViewerCertificate struct {
	CloudFrontDefaultCertificate bool   `json:"CloudFrontDefaultCertificate,omitempty"`
	AcmCertificateArn            string `json:"AcmCertificateArn,omitempty"`
	MinimumProtocolVersion       string `json:"MinimumProtocolVersion,omitempty"`
	SslSupportMethod             string `json:"SslSupportMethod,omitempty"`
}
