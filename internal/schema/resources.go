package schema

var (
	str  = PropertySchema{Type: "String"}
	num  = PropertySchema{Type: "Integer"}
	flag = PropertySchema{Type: "Boolean"}
	tags = PropertySchema{Type: "List", Item: &PropertySchema{Type: "Map", Properties: map[string]PropertySchema{
		"Key":   required(str),
		"Value": required(str),
	}}}
)

func required(p PropertySchema) PropertySchema {
	p.Required = true
	return p
}

func oneOf(values ...string) PropertySchema {
	return PropertySchema{Type: "String", AllowedValues: values}
}

func listOf(item PropertySchema) PropertySchema {
	return PropertySchema{Type: "List", Item: &item}
}

func mapOf(props map[string]PropertySchema) PropertySchema {
	return PropertySchema{Type: "Map", Properties: props}
}

var httpMethods = oneOf("DELETE", "GET", "HEAD", "OPTIONS", "PATCH", "POST", "PUT")

// resourceSchemas covers the properties of the resource types a site stack
// declares. Properties the stack never sets are left out; Strict mode
// reports them as unknown.
var resourceSchemas = map[string]ResourceSchema{
	"AWS::S3::Bucket": {
		Type: "AWS::S3::Bucket",
		Properties: map[string]PropertySchema{
			"BucketName": str,
			"WebsiteConfiguration": mapOf(map[string]PropertySchema{
				"IndexDocument": str,
				"ErrorDocument": str,
			}),
			"PublicAccessBlockConfiguration": mapOf(map[string]PropertySchema{
				"BlockPublicAcls":       flag,
				"BlockPublicPolicy":     flag,
				"IgnorePublicAcls":      flag,
				"RestrictPublicBuckets": flag,
			}),
			"OwnershipControls": mapOf(map[string]PropertySchema{
				"Rules": required(listOf(mapOf(map[string]PropertySchema{
					"ObjectOwnership": oneOf("ObjectWriter", "BucketOwnerPreferred", "BucketOwnerEnforced"),
				}))),
			}),
			"Tags": tags,
		},
	},
	"AWS::S3::BucketPolicy": {
		Type: "AWS::S3::BucketPolicy",
		Properties: map[string]PropertySchema{
			"Bucket":         required(str),
			"PolicyDocument": required(PropertySchema{Type: "Json"}),
		},
	},
	"AWS::CloudFront::OriginAccessControl": {
		Type: "AWS::CloudFront::OriginAccessControl",
		Properties: map[string]PropertySchema{
			"OriginAccessControlConfig": required(mapOf(map[string]PropertySchema{
				"Name":                          required(str),
				"Description":                   str,
				"OriginAccessControlOriginType": required(oneOf("s3", "mediastore", "lambda", "mediapackagev2")),
				"SigningBehavior":               required(oneOf("always", "never", "no-override")),
				"SigningProtocol":               required(oneOf("sigv4")),
			})),
		},
	},
	"AWS::CloudFront::Distribution": {
		Type: "AWS::CloudFront::Distribution",
		Properties: map[string]PropertySchema{
			"DistributionConfig": required(mapOf(map[string]PropertySchema{
				"Enabled":           required(flag),
				"Comment":           str,
				"DefaultRootObject": str,
				"IPV6Enabled":       flag,
				"HttpVersion":       oneOf("http1.1", "http2", "http3", "http2and3"),
				"PriceClass":        oneOf("PriceClass_100", "PriceClass_200", "PriceClass_All"),
				"Origins": listOf(mapOf(map[string]PropertySchema{
					"Id":                    required(str),
					"DomainName":            required(str),
					"OriginAccessControlId": str,
					"S3OriginConfig": mapOf(map[string]PropertySchema{
						"OriginAccessIdentity": str,
					}),
				})),
				"DefaultCacheBehavior": required(mapOf(map[string]PropertySchema{
					"TargetOriginId": required(str),
					"AllowedMethods": listOf(httpMethods),
					"CachedMethods":  listOf(httpMethods),
					"ForwardedValues": mapOf(map[string]PropertySchema{
						"QueryString": required(flag),
						"Cookies": mapOf(map[string]PropertySchema{
							"Forward": required(oneOf("none", "whitelist", "all")),
						}),
					}),
					"MinTTL":               num,
					"DefaultTTL":           num,
					"MaxTTL":               num,
					"Compress":             flag,
					"ViewerProtocolPolicy": required(oneOf("allow-all", "redirect-to-https", "https-only")),
				})),
				"CustomErrorResponses": listOf(mapOf(map[string]PropertySchema{
					"ErrorCode":          required(num),
					"ResponseCode":       num,
					"ResponsePagePath":   str,
					"ErrorCachingMinTTL": num,
				})),
				"Restrictions": mapOf(map[string]PropertySchema{
					"GeoRestriction": required(mapOf(map[string]PropertySchema{
						"RestrictionType": required(oneOf("blacklist", "whitelist", "none")),
						"Locations":       listOf(str),
					})),
				}),
				"ViewerCertificate": mapOf(map[string]PropertySchema{
					"CloudFrontDefaultCertificate": flag,
					"AcmCertificateArn":            str,
					"MinimumProtocolVersion":       str,
					"SslSupportMethod":             oneOf("sni-only", "vip", "static-ip"),
				}),
			})),
			"Tags": tags,
		},
	},
}
