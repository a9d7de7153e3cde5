// Package optimizer provides optimization suggestions for a rendered site
// template. It looks at security, cost, performance, and reliability.
package optimizer

import (
	"fmt"
	"sort"

	"github.com/goccy/go-json"

	wetwire "github.com/lex00/wetwire-site-go"
)

// Categories in report order.
const (
	CategorySecurity    = "security"
	CategoryCost        = "cost"
	CategoryPerformance = "performance"
	CategoryReliability = "reliability"
)

// Options configures the optimizer.
type Options struct {
	// Category filters suggestions: "all" (or empty) or one of the Category* constants.
	Category string
}

// Suggestion is a single optimization hint.
type Suggestion struct {
	Rule       string `json:"rule"`
	Resource   string `json:"resource"`
	Category   string `json:"category"`
	Severity   string `json:"severity"`
	Title      string `json:"title"`
	Suggestion string `json:"suggestion"`
}

// Summary counts suggestions per category.
type Summary struct {
	Security    int `json:"security"`
	Cost        int `json:"cost"`
	Performance int `json:"performance"`
	Reliability int `json:"reliability"`
	Total       int `json:"total"`
}

// Result contains optimization suggestions.
type Result struct {
	Suggestions []Suggestion `json:"suggestions"`
	Summary     Summary      `json:"summary"`
}

// resource is a template resource decoded into plain JSON values.
type resource struct {
	Name       string
	Type       string         `json:"Type"`
	Properties map[string]any `json:"Properties"`
}

// Optimize analyzes the resources of t and returns suggestions sorted by
// resource and rule.
func Optimize(t *wetwire.Template, opts Options) (*Result, error) {
	switch opts.Category {
	case "", "all", CategorySecurity, CategoryCost, CategoryPerformance, CategoryReliability:
	default:
		return nil, fmt.Errorf("unknown category: %s", opts.Category)
	}

	data, err := json.Marshal(t.Resources)
	if err != nil {
		return nil, fmt.Errorf("encoding resources: %w", err)
	}
	var resources map[string]resource
	if err := json.Unmarshal(data, &resources); err != nil {
		return nil, fmt.Errorf("decoding resources: %w", err)
	}

	result := &Result{Suggestions: []Suggestion{}}
	for name, res := range resources {
		res.Name = name
		result.Suggestions = append(result.Suggestions, analyzeResource(res, opts.Category)...)
	}
	sort.Slice(result.Suggestions, func(i, j int) bool {
		a, b := result.Suggestions[i], result.Suggestions[j]
		if a.Resource != b.Resource {
			return a.Resource < b.Resource
		}
		return a.Rule < b.Rule
	})

	result.Summary = calculateSummary(result.Suggestions)
	return result, nil
}

// analyzeResource applies optimization rules to a single resource.
func analyzeResource(res resource, category string) []Suggestion {
	var suggestions []Suggestion
	for _, rule := range getRulesForType(res.Type) {
		if category != "" && category != "all" && rule.Category != category {
			continue
		}
		if advice, ok := rule.Check(res); ok {
			suggestions = append(suggestions, Suggestion{
				Rule:       rule.ID,
				Resource:   res.Name,
				Category:   rule.Category,
				Severity:   rule.Severity,
				Title:      rule.Title,
				Suggestion: advice,
			})
		}
	}
	return suggestions
}

// calculateSummary tallies suggestions by category.
func calculateSummary(suggestions []Suggestion) Summary {
	summary := Summary{}
	for _, s := range suggestions {
		switch s.Category {
		case CategorySecurity:
			summary.Security++
		case CategoryCost:
			summary.Cost++
		case CategoryPerformance:
			summary.Performance++
		case CategoryReliability:
			summary.Reliability++
		}
		summary.Total++
	}
	return summary
}

// Rule represents an optimization rule. Check returns the advice and true
// when the rule fires.
type Rule struct {
	ID       string
	Category string
	Severity string
	Title    string
	Check    func(res resource) (string, bool)
}

// getRulesForType returns applicable rules for a resource type.
func getRulesForType(resourceType string) []Rule {
	var rules []Rule

	switch resourceType {
	case "AWS::S3::Bucket":
		rules = append(rules, bucketRules...)
	case "AWS::S3::BucketPolicy":
		rules = append(rules, bucketPolicyRules...)
	case "AWS::CloudFront::Distribution":
		rules = append(rules, distributionRules...)
	}

	return rules
}
