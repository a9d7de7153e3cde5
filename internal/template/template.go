// Package template builds CloudFormation templates from declared resources.
package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	wetwire "github.com/lex00/wetwire-site-go"
	"github.com/lex00/wetwire-site-go/internal/serialize"
)

// FormatVersion is the only CloudFormation template format version.
const FormatVersion = "2010-09-09"

// EdgeKind classifies how one resource depends on another.
type EdgeKind string

const (
	// EdgeRef is a Ref or a ${Name} inside Fn::Sub.
	EdgeRef EdgeKind = "ref"
	// EdgeGetAtt is an Fn::GetAtt or a ${Name.Attr} inside Fn::Sub.
	EdgeGetAtt EdgeKind = "getatt"
	// EdgeDependsOn is an explicit DependsOn entry.
	EdgeDependsOn EdgeKind = "dependson"
)

// Edge is a dependency of From on To.
type Edge struct {
	From string
	To   string
	Kind EdgeKind
}

// Builder constructs CloudFormation templates from declared resources.
type Builder struct {
	description string
	resources   map[string]wetwire.DeclaredResource
	parameters  map[string]wetwire.Parameter
	outputs     map[string]wetwire.Output

	// populated by analyze
	props      map[string]map[string]any
	edges      []Edge
	paramEdges []Edge
}

// NewBuilder creates an empty template builder.
func NewBuilder(description string) *Builder {
	return &Builder{
		description: description,
		resources:   make(map[string]wetwire.DeclaredResource),
		parameters:  make(map[string]wetwire.Parameter),
		outputs:     make(map[string]wetwire.Output),
	}
}

// AddResource registers a resource under its logical name.
func (b *Builder) AddResource(r wetwire.DeclaredResource) error {
	if r.Name == "" {
		return errors.New("resource has no logical name")
	}
	if r.Value == nil {
		return fmt.Errorf("resource %s has no value", r.Name)
	}
	if _, exists := b.resources[r.Name]; exists {
		return fmt.Errorf("duplicate resource: %s", r.Name)
	}
	if _, exists := b.parameters[r.Name]; exists {
		return fmt.Errorf("resource %s collides with a parameter of the same name", r.Name)
	}
	b.resources[r.Name] = r
	b.props = nil
	return nil
}

// AddParameter registers a template parameter.
func (b *Builder) AddParameter(name string, p wetwire.Parameter) {
	if p.Type == "" {
		p.Type = "String"
	}
	b.parameters[name] = p
	b.props = nil
}

// AddOutput registers a template output.
func (b *Builder) AddOutput(name string, o wetwire.Output) {
	b.outputs[name] = o
}

// Build constructs the CloudFormation template.
func (b *Builder) Build() (*wetwire.Template, error) {
	if _, err := b.Order(); err != nil {
		return nil, err
	}

	template := &wetwire.Template{
		AWSTemplateFormatVersion: FormatVersion,
		Description:              b.description,
		Resources:                make(map[string]wetwire.ResourceDef, len(b.resources)),
	}

	if len(b.parameters) > 0 {
		template.Parameters = make(map[string]wetwire.Parameter, len(b.parameters))
		for name, p := range b.parameters {
			template.Parameters[name] = p
		}
	}

	for name, res := range b.resources {
		var dependsOn []string
		if len(res.DependsOn) > 0 {
			dependsOn = append(dependsOn, res.DependsOn...)
			sort.Strings(dependsOn)
		}
		template.Resources[name] = wetwire.ResourceDef{
			Type:       res.Value.ResourceType(),
			Properties: b.props[name],
			DependsOn:  dependsOn,
		}
	}

	if len(b.outputs) > 0 {
		template.Outputs = make(map[string]wetwire.Output, len(b.outputs))
		for name, o := range b.outputs {
			value, err := normalize(o.Value)
			if err != nil {
				return nil, fmt.Errorf("serializing output %s: %w", name, err)
			}
			for _, ref := range references(value) {
				if !b.resolvable(ref.name) {
					return nil, fmt.Errorf("output %s references unknown name %q", name, ref.name)
				}
			}
			o.Value = value
			template.Outputs[name] = o
		}
	}

	return template, nil
}

// Order returns the logical names in dependency order. Ties are broken
// alphabetically so the order is deterministic.
func (b *Builder) Order() ([]string, error) {
	if err := b.analyze(); err != nil {
		return nil, err
	}
	return b.topologicalSort()
}

// Edges returns every resource-to-resource dependency, sorted by From, To
// and Kind.
func (b *Builder) Edges() ([]Edge, error) {
	if err := b.analyze(); err != nil {
		return nil, err
	}
	out := make([]Edge, len(b.edges))
	copy(out, b.edges)
	return out, nil
}

// ParameterEdges returns one EdgeRef per resource and parameter it
// references, sorted like Edges.
func (b *Builder) ParameterEdges() ([]Edge, error) {
	if err := b.analyze(); err != nil {
		return nil, err
	}
	out := make([]Edge, len(b.paramEdges))
	copy(out, b.paramEdges)
	return out, nil
}

// Dependencies returns the distinct resources name depends on, sorted.
func (b *Builder) Dependencies(name string) ([]string, error) {
	edges, err := b.Edges()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var deps []string
	for _, e := range edges {
		if e.From == name && !seen[e.To] {
			seen[e.To] = true
			deps = append(deps, e.To)
		}
	}
	sort.Strings(deps)
	return deps, nil
}

// Resources returns the declared resources keyed by logical name.
func (b *Builder) Resources() map[string]wetwire.DeclaredResource {
	return b.resources
}

// Parameters returns the declared parameter names, sorted.
func (b *Builder) Parameters() []string {
	names := make([]string, 0, len(b.parameters))
	for name := range b.parameters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// analyze serializes every resource and collects its dependency edges.
func (b *Builder) analyze() error {
	if b.props != nil {
		return nil
	}

	props := make(map[string]map[string]any, len(b.resources))
	var edges, paramEdges []Edge
	seen := make(map[Edge]bool)
	add := func(e Edge) {
		if !seen[e] {
			seen[e] = true
			edges = append(edges, e)
		}
	}

	for name, res := range b.resources {
		p, err := serialize.Properties(res.Value)
		if err != nil {
			return fmt.Errorf("serializing %s: %w", name, err)
		}
		props[name] = p

		for _, ref := range references(p) {
			if ref.name == name {
				return fmt.Errorf("resource %s references itself", name)
			}
			if _, isResource := b.resources[ref.name]; isResource {
				add(Edge{From: name, To: ref.name, Kind: ref.kind})
				continue
			}
			if _, isParam := b.parameters[ref.name]; isParam {
				e := Edge{From: name, To: ref.name, Kind: EdgeRef}
				if !seen[e] {
					seen[e] = true
					paramEdges = append(paramEdges, e)
				}
				continue
			}
			if !b.resolvable(ref.name) {
				return fmt.Errorf("resource %s references unknown name %q", name, ref.name)
			}
		}

		for _, dep := range res.DependsOn {
			if _, exists := b.resources[dep]; !exists {
				return fmt.Errorf("resource %s depends on unknown resource %q", name, dep)
			}
			add(Edge{From: name, To: dep, Kind: EdgeDependsOn})
		}
	}

	sortEdges(edges)
	sortEdges(paramEdges)

	b.props = props
	b.edges = edges
	b.paramEdges = paramEdges
	return nil
}

func sortEdges(edges []Edge) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		if edges[i].To != edges[j].To {
			return edges[i].To < edges[j].To
		}
		return edges[i].Kind < edges[j].Kind
	})
}

// resolvable reports whether name can appear in a Ref without a matching
// resource.
func (b *Builder) resolvable(name string) bool {
	if _, ok := b.resources[name]; ok {
		return true
	}
	if _, ok := b.parameters[name]; ok {
		return true
	}
	return strings.HasPrefix(name, "AWS::")
}

// topologicalSort returns resources in dependency order.
func (b *Builder) topologicalSort() ([]string, error) {
	graph := make(map[string][]string)
	inDegree := make(map[string]int)

	for name := range b.resources {
		graph[name] = nil
		inDegree[name] = 0
	}

	counted := make(map[[2]string]bool)
	for _, e := range b.edges {
		key := [2]string{e.From, e.To}
		if counted[key] {
			continue
		}
		counted[key] = true
		graph[e.To] = append(graph[e.To], e.From)
		inDegree[e.From]++
	}

	// Kahn's algorithm
	var queue []string
	for name, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	var result []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for _, neighbor := range graph[node] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
				sort.Strings(queue)
			}
		}
	}

	if len(result) != len(b.resources) {
		return nil, b.detectCycle()
	}

	return result, nil
}

// detectCycle finds and reports a cycle in the dependency graph.
func (b *Builder) detectCycle() error {
	deps := make(map[string][]string)
	for _, e := range b.edges {
		deps[e.From] = append(deps[e.From], e.To)
	}

	visited := make(map[string]bool)
	path := make(map[string]bool)

	var cycle []string
	var findCycle func(node string) bool
	findCycle = func(node string) bool {
		visited[node] = true
		path[node] = true

		for _, dep := range deps[node] {
			if !visited[dep] {
				if findCycle(dep) {
					cycle = append([]string{node}, cycle...)
					return true
				}
			} else if path[dep] {
				cycle = append([]string{dep, node}, cycle...)
				return true
			}
		}

		path[node] = false
		return false
	}

	names := make([]string, 0, len(b.resources))
	for name := range b.resources {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !visited[name] && findCycle(name) {
			break
		}
	}

	if len(cycle) > 0 {
		msg := "circular dependency detected:\n"
		for i, name := range cycle {
			msg += fmt.Sprintf("  %s (%s)", name, b.resources[name].Value.ResourceType())
			if i < len(cycle)-1 {
				msg += "\n    → "
			}
		}
		return errors.New(msg)
	}

	return errors.New("circular dependency detected")
}

type reference struct {
	name string
	kind EdgeKind
}

// references walks a serialized value and returns every logical name it
// points at through Ref, Fn::GetAtt or Fn::Sub.
func references(v any) []reference {
	var refs []reference
	var walk func(v any)
	walk = func(v any) {
		switch val := v.(type) {
		case map[string]any:
			if len(val) == 1 {
				if name, ok := val["Ref"].(string); ok {
					refs = append(refs, reference{name: name, kind: EdgeRef})
					return
				}
				if args, ok := val["Fn::GetAtt"]; ok {
					if name := getAttTarget(args); name != "" {
						refs = append(refs, reference{name: name, kind: EdgeGetAtt})
					}
					return
				}
				if args, ok := val["Fn::Sub"]; ok {
					refs = append(refs, subReferences(args)...)
					if list, ok := args.([]any); ok && len(list) == 2 {
						walk(list[1])
					}
					return
				}
			}
			keys := make([]string, 0, len(val))
			for k := range val {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				walk(val[k])
			}
		case []any:
			for _, elem := range val {
				walk(elem)
			}
		}
	}
	walk(v)
	return refs
}

func getAttTarget(args any) string {
	switch a := args.(type) {
	case []any:
		if len(a) > 0 {
			name, _ := a[0].(string)
			return name
		}
	case string:
		name, _, _ := strings.Cut(a, ".")
		return name
	}
	return ""
}

// subReferences extracts ${Name} and ${Name.Attr} variables from an Fn::Sub
// argument. Variables bound in the optional map and ${!Literal} escapes are
// not references.
func subReferences(args any) []reference {
	var str string
	bound := map[string]bool{}
	switch a := args.(type) {
	case string:
		str = a
	case []any:
		if len(a) > 0 {
			str, _ = a[0].(string)
		}
		if len(a) > 1 {
			if vars, ok := a[1].(map[string]any); ok {
				for k := range vars {
					bound[k] = true
				}
			}
		}
	}

	var refs []reference
	for {
		start := strings.Index(str, "${")
		if start < 0 {
			break
		}
		end := strings.Index(str[start:], "}")
		if end < 0 {
			break
		}
		variable := str[start+2 : start+end]
		str = str[start+end+1:]

		if variable == "" || strings.HasPrefix(variable, "!") || bound[variable] {
			continue
		}
		if name, _, ok := strings.Cut(variable, "."); ok {
			refs = append(refs, reference{name: name, kind: EdgeGetAtt})
			continue
		}
		refs = append(refs, reference{name: variable, kind: EdgeRef})
	}
	return refs
}

// normalize converts a value holding intrinsics into plain JSON-compatible
// maps and slices.
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ToJSON serializes the template to JSON.
func ToJSON(t *wetwire.Template) ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

// ToYAML serializes the template to YAML.
func ToYAML(t *wetwire.Template) ([]byte, error) {
	return yaml.Marshal(t)
}
