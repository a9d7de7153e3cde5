// Package s3 provides the AWS::S3 resource types used by the site topology.
package s3

import (
	wetwire "github.com/lex00/wetwire-site-go"
)

// Bucket is an AWS::S3::Bucket.
//
// Ref returns the bucket name. The AttrRef fields are populated by
// NewBucket and serialize to Fn::GetAtt.
type Bucket struct {
	BucketName                     any                             `json:"BucketName,omitempty"`
	WebsiteConfiguration           *WebsiteConfiguration           `json:"WebsiteConfiguration,omitempty"`
	PublicAccessBlockConfiguration *PublicAccessBlockConfiguration `json:"PublicAccessBlockConfiguration,omitempty"`
	OwnershipControls              *OwnershipControls              `json:"OwnershipControls,omitempty"`
	Tags                           []any                           `json:"Tags,omitempty"`

	Arn                wetwire.AttrRef `json:"-"`
	DomainName         wetwire.AttrRef `json:"-"`
	RegionalDomainName wetwire.AttrRef `json:"-"`
	WebsiteURL         wetwire.AttrRef `json:"-"`
}

// NewBucket returns a Bucket whose attribute references point at logicalName.
func NewBucket(logicalName string) Bucket {
	return Bucket{
		Arn:                wetwire.AttrRef{Resource: logicalName, Attribute: "Arn"},
		DomainName:         wetwire.AttrRef{Resource: logicalName, Attribute: "DomainName"},
		RegionalDomainName: wetwire.AttrRef{Resource: logicalName, Attribute: "RegionalDomainName"},
		WebsiteURL:         wetwire.AttrRef{Resource: logicalName, Attribute: "WebsiteURL"},
	}
}

// ResourceType implements wetwire_site.Resource.
func (Bucket) ResourceType() string { return "AWS::S3::Bucket" }

// WebsiteConfiguration enables static website hosting on a bucket.
type WebsiteConfiguration struct {
	IndexDocument string `json:"IndexDocument"`
	ErrorDocument string `json:"ErrorDocument,omitempty"`
}

// PublicAccessBlockConfiguration controls whether public ACLs and policies
// are honored. All four flags are always serialized so that a permissive
// configuration is explicit in the template.
type PublicAccessBlockConfiguration struct {
	BlockPublicAcls       bool `json:"BlockPublicAcls"`
	BlockPublicPolicy     bool `json:"BlockPublicPolicy"`
	IgnorePublicAcls      bool `json:"IgnorePublicAcls"`
	RestrictPublicBuckets bool `json:"RestrictPublicBuckets"`
}

// Permissive reports whether every flag is off.
func (c PublicAccessBlockConfiguration) Permissive() bool {
	return !c.BlockPublicAcls && !c.BlockPublicPolicy && !c.IgnorePublicAcls && !c.RestrictPublicBuckets
}

// OwnershipControls sets the bucket object-ownership rule.
type OwnershipControls struct {
	Rules []OwnershipControlsRule `json:"Rules"`
}

// OwnershipControlsRule is a single object-ownership rule.
type OwnershipControlsRule struct {
	ObjectOwnership string `json:"ObjectOwnership"`
}

// BucketPolicy is an AWS::S3::BucketPolicy.
type BucketPolicy struct {
	Bucket         any `json:"Bucket"`
	PolicyDocument any `json:"PolicyDocument"`
}

// ResourceType implements wetwire_site.Resource.
func (BucketPolicy) ResourceType() string { return "AWS::S3::BucketPolicy" }
