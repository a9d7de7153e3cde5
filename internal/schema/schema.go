// Package schema provides offline CloudFormation schema validation for the
// resource types a site stack uses.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	wetwire "github.com/lex00/wetwire-site-go"
)

// Options configures schema validation.
type Options struct {
	// Strict reports unknown properties as warnings.
	Strict bool
}

// Issue is one schema violation. Property is a dotted path below the
// resource's Properties.
type Issue struct {
	Resource string `json:"resource"`
	Property string `json:"property,omitempty"`
	Message  string `json:"message"`
}

func (i Issue) String() string {
	if i.Property == "" {
		return fmt.Sprintf("%s: %s", i.Resource, i.Message)
	}
	return fmt.Sprintf("%s.%s: %s", i.Resource, i.Property, i.Message)
}

// Result contains schema validation results.
type Result struct {
	Valid    bool
	Errors   []Issue
	Warnings []Issue
}

// ValidateTemplate validates every resource of t against the known schemas.
// Issues are sorted by resource and property.
func ValidateTemplate(t *wetwire.Template, opts Options) (*Result, error) {
	resources, err := decode(t)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for name, res := range resources {
		v := &validator{resource: name, strict: opts.Strict}
		v.check(res)
		result.Errors = append(result.Errors, v.errors...)
		result.Warnings = append(result.Warnings, v.warnings...)
	}
	sortIssues(result.Errors)
	sortIssues(result.Warnings)
	result.Valid = len(result.Errors) == 0
	return result, nil
}

type decodedResource struct {
	Type       string         `json:"Type"`
	Properties map[string]any `json:"Properties"`
}

// decode normalizes t to plain JSON values so numbers and intrinsics look
// the same whether t was rendered or parsed.
func decode(t *wetwire.Template) (map[string]decodedResource, error) {
	data, err := json.Marshal(t.Resources)
	if err != nil {
		return nil, fmt.Errorf("encoding resources: %w", err)
	}
	var out map[string]decodedResource
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding resources: %w", err)
	}
	return out, nil
}

type validator struct {
	resource string
	strict   bool
	errors   []Issue
	warnings []Issue
}

func (v *validator) fail(path, format string, args ...any) {
	v.errors = append(v.errors, Issue{Resource: v.resource, Property: path, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) warn(path, format string, args ...any) {
	v.warnings = append(v.warnings, Issue{Resource: v.resource, Property: path, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) check(res decodedResource) {
	if !isValidResourceType(res.Type) {
		v.fail("", "invalid resource type format: %s", res.Type)
		return
	}
	schema, ok := resourceSchemas[res.Type]
	if !ok {
		// CloudFormation may have types newer than this table.
		v.warn("", "unknown resource type: %s (schema not available for validation)", res.Type)
		return
	}
	v.object("", res.Properties, schema.Properties)
}

// object checks the properties of one map level against props.
func (v *validator) object(prefix string, value map[string]any, props map[string]PropertySchema) {
	for _, name := range sortedKeys(props) {
		if props[name].Required {
			if _, ok := value[name]; !ok {
				v.fail(join(prefix, name), "missing required property")
			}
		}
	}
	for _, name := range sortedKeys(value) {
		path := join(prefix, name)
		prop, ok := props[name]
		if !ok {
			if v.strict {
				v.warn(path, "unknown property")
			}
			continue
		}
		v.property(path, value[name], prop)
	}
}

// property validates a property value against its schema.
func (v *validator) property(path string, value any, schema PropertySchema) {
	if isIntrinsic(value) {
		return
	}
	if !isValidType(value, schema.Type) {
		v.fail(path, "expected type %s", schema.Type)
		return
	}

	if len(schema.AllowedValues) > 0 {
		if s, ok := value.(string); ok && !contains(schema.AllowedValues, s) {
			v.fail(path, "value %q not in allowed values: %v", s, schema.AllowedValues)
		}
	}

	switch schema.Type {
	case "Map":
		if schema.Properties != nil {
			v.object(path, value.(map[string]any), schema.Properties)
		}
	case "List":
		if schema.Item == nil {
			return
		}
		for i, item := range value.([]any) {
			v.property(fmt.Sprintf("%s[%d]", path, i), item, *schema.Item)
		}
	}
}

// isValidResourceType checks if a resource type has valid format.
func isValidResourceType(resourceType string) bool {
	// CloudFormation resource types follow pattern: AWS::Service::Resource or Custom::*
	if strings.HasPrefix(resourceType, "Custom::") {
		return true
	}
	parts := strings.Split(resourceType, "::")
	if len(parts) != 3 {
		return false
	}
	return parts[0] == "AWS" || parts[0] == "Alexa"
}

// isIntrinsic reports whether value is a Ref or Fn:: call, which is
// resolved by CloudFormation and accepted for any property type.
func isIntrinsic(value any) bool {
	m, ok := value.(map[string]any)
	if !ok || len(m) != 1 {
		return false
	}
	for key := range m {
		return key == "Ref" || strings.HasPrefix(key, "Fn::")
	}
	return false
}

// isValidType checks if a decoded JSON value matches the expected type.
func isValidType(value any, expectedType string) bool {
	switch expectedType {
	case "String":
		_, ok := value.(string)
		return ok
	case "Integer":
		f, ok := value.(float64)
		return ok && f == float64(int64(f))
	case "Boolean":
		_, ok := value.(bool)
		return ok
	case "List":
		_, ok := value.([]any)
		return ok
	case "Map":
		_, ok := value.(map[string]any)
		return ok
	default:
		// Json and unknown types accept anything.
		return true
	}
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortIssues(issues []Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].Resource != issues[j].Resource {
			return issues[i].Resource < issues[j].Resource
		}
		return issues[i].Property < issues[j].Property
	})
}

// ResourceSchema defines the schema for a resource type.
type ResourceSchema struct {
	Type       string
	Properties map[string]PropertySchema
}

// PropertySchema defines the schema for a property. Properties describes
// the keys of a Map; Item describes the elements of a List.
type PropertySchema struct {
	Type          string
	Required      bool
	AllowedValues []string
	Properties    map[string]PropertySchema
	Item          *PropertySchema
}

// Types returns the resource types with a known schema, sorted.
func Types() []string {
	return sortedKeys(resourceSchemas)
}
