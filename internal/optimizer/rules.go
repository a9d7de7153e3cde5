package optimizer

import "fmt"

// bucketRules contains optimization rules for the site bucket.
var bucketRules = []Rule{
	{
		ID:       "OPT-S3-001",
		Category: CategoryReliability,
		Severity: "low",
		Title:    "Bucket versioning is off",
		Check: func(res resource) (string, bool) {
			v, _ := res.Properties["VersioningConfiguration"].(map[string]any)
			if v["Status"] == "Enabled" {
				return "", false
			}
			return "Enable VersioningConfiguration to recover overwritten or deleted pages; sync deletes objects that have no local file.", true
		},
	},
	{
		ID:       "OPT-S3-002",
		Category: CategoryCost,
		Severity: "low",
		Title:    "Bucket has no tags",
		Check: func(res resource) (string, bool) {
			if tags, _ := res.Properties["Tags"].([]any); len(tags) > 0 {
				return "", false
			}
			return "Tag the bucket with project and environment for cost allocation.", true
		},
	},
}

// bucketPolicyRules contains optimization rules for the bucket policy.
var bucketPolicyRules = []Rule{
	{
		ID:       "OPT-S3-101",
		Category: CategorySecurity,
		Severity: "medium",
		Title:    "Objects are readable without the CDN",
		Check: func(res resource) (string, bool) {
			doc, _ := res.Properties["PolicyDocument"].(map[string]any)
			statements, _ := doc["Statement"].([]any)
			for _, s := range statements {
				st, _ := s.(map[string]any)
				if st["Principal"] == "*" && st["Condition"] == nil {
					return fmt.Sprintf("Statement %v grants s3:GetObject to everyone, so viewers can bypass CloudFront through the S3 website endpoint.", st["Sid"]), true
				}
			}
			return "", false
		},
	},
}

// distributionRules contains optimization rules for the CDN distribution.
var distributionRules = []Rule{
	{
		ID:       "OPT-CF-001",
		Category: CategoryPerformance,
		Severity: "medium",
		Title:    "Compression is off",
		Check: func(res resource) (string, bool) {
			if behavior(res)["Compress"] == true {
				return "", false
			}
			return "Set DefaultCacheBehavior.Compress to true to serve gzip and brotli.", true
		},
	},
	{
		ID:       "OPT-CF-002",
		Category: CategoryPerformance,
		Severity: "low",
		Title:    "HTTP/2 and HTTP/3 are not enabled",
		Check: func(res resource) (string, bool) {
			switch config(res)["HttpVersion"] {
			case "http2", "http3", "http2and3":
				return "", false
			}
			return "Set HttpVersion to http2and3.", true
		},
	},
	{
		ID:       "OPT-CF-003",
		Category: CategoryCost,
		Severity: "low",
		Title:    "All edge locations are in use",
		Check: func(res resource) (string, bool) {
			if config(res)["PriceClass"] != "PriceClass_All" {
				return "", false
			}
			return "PriceClass_100 or PriceClass_200 costs less when viewers are mostly in North America and Europe.", true
		},
	},
	{
		ID:       "OPT-CF-004",
		Category: CategorySecurity,
		Severity: "high",
		Title:    "Viewers may use plain HTTP",
		Check: func(res resource) (string, bool) {
			if behavior(res)["ViewerProtocolPolicy"] != "allow-all" {
				return "", false
			}
			return "Set ViewerProtocolPolicy to redirect-to-https.", true
		},
	},
	{
		ID:       "OPT-CF-005",
		Category: CategoryReliability,
		Severity: "medium",
		Title:    "Missing pages return the raw origin error",
		Check: func(res resource) (string, bool) {
			responses, _ := config(res)["CustomErrorResponses"].([]any)
			covered := map[float64]bool{}
			for _, r := range responses {
				m, _ := r.(map[string]any)
				if code, ok := m["ErrorCode"].(float64); ok && m["ResponsePagePath"] != nil {
					covered[code] = true
				}
			}
			if covered[403] && covered[404] {
				return "", false
			}
			return "Map 403 and 404 to the error page; S3 answers 403 for missing keys behind an origin access control.", true
		},
	},
	{
		ID:       "OPT-CF-006",
		Category: CategoryPerformance,
		Severity: "medium",
		Title:    "Edge caching is disabled",
		Check: func(res resource) (string, bool) {
			if ttl, ok := behavior(res)["DefaultTTL"].(float64); ok && ttl > 0 {
				return "", false
			}
			return "Set DefaultTTL above 0 so the edge caches objects; sync invalidates after each change.", true
		},
	},
}

func config(res resource) map[string]any {
	c, _ := res.Properties["DistributionConfig"].(map[string]any)
	return c
}

func behavior(res resource) map[string]any {
	b, _ := config(res)["DefaultCacheBehavior"].(map[string]any)
	return b
}
