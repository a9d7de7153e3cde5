// Package differ compares CloudFormation templates resource by resource.
package differ

import (
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gopkg.in/yaml.v3"

	wetwire "github.com/lex00/wetwire-site-go"
)

// Options configures the differ.
type Options struct {
	// IgnoreOrder ignores array element order in comparisons
	IgnoreOrder bool
}

// Result contains the difference between two templates.
type Result struct {
	Diff    wetwire.TemplateDiff
	Summary wetwire.DiffSummary
	// Outputs lists output changes, e.g. "WebsiteURL modified".
	Outputs []string
}

// Empty reports whether the templates describe the same stack.
func (r *Result) Empty() bool {
	return r.Summary.Total == 0 && len(r.Outputs) == 0
}

// Compare compares two CloudFormation templates. Values are compared after
// a JSON round trip, so a rendered template and the same template read back
// from CloudFormation or a YAML file compare equal.
func Compare(template1, template2 *wetwire.Template, opts Options) (*Result, error) {
	res1, out1, err := normalize(template1)
	if err != nil {
		return nil, fmt.Errorf("normalizing old template: %w", err)
	}
	res2, out2, err := normalize(template2)
	if err != nil {
		return nil, fmt.Errorf("normalizing new template: %w", err)
	}

	result := &Result{}
	for name, def := range res2 {
		if _, exists := res1[name]; !exists {
			result.Diff.Added = append(result.Diff.Added, wetwire.DiffEntry{Resource: name, Type: def.Type})
		}
	}
	for name, def := range res1 {
		if _, exists := res2[name]; !exists {
			result.Diff.Removed = append(result.Diff.Removed, wetwire.DiffEntry{Resource: name, Type: def.Type})
		}
	}
	for name, def1 := range res1 {
		def2, exists := res2[name]
		if !exists {
			continue
		}
		if changes := compareResources(def1, def2, opts); len(changes) > 0 {
			result.Diff.Modified = append(result.Diff.Modified, wetwire.DiffEntry{
				Resource: name,
				Type:     def1.Type,
				Changes:  changes,
			})
		}
	}

	sortEntries(result.Diff.Added)
	sortEntries(result.Diff.Removed)
	sortEntries(result.Diff.Modified)

	result.Outputs = changedPaths(out1, out2, opts)

	result.Summary = wetwire.DiffSummary{
		Added:    len(result.Diff.Added),
		Removed:  len(result.Diff.Removed),
		Modified: len(result.Diff.Modified),
	}
	result.Summary.Total = result.Summary.Added + result.Summary.Removed + result.Summary.Modified

	return result, nil
}

// CompareBytes parses and compares two template bodies.
func CompareBytes(body1, body2 []byte, opts Options) (*Result, error) {
	t1, err := Parse(body1)
	if err != nil {
		return nil, fmt.Errorf("parsing old template: %w", err)
	}
	t2, err := Parse(body2)
	if err != nil {
		return nil, fmt.Errorf("parsing new template: %w", err)
	}
	return Compare(t1, t2, opts)
}

// CompareFiles compares two template files.
func CompareFiles(file1, file2 string, opts Options) (*Result, error) {
	t1, err := LoadTemplate(file1)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", file1, err)
	}
	t2, err := LoadTemplate(file2)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", file2, err)
	}
	return Compare(t1, t2, opts)
}

// LoadTemplate loads a CloudFormation template from a JSON or YAML file.
func LoadTemplate(path string) (*wetwire.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a JSON or YAML template body.
func Parse(data []byte) (*wetwire.Template, error) {
	var template wetwire.Template
	if err := json.Unmarshal(data, &template); err != nil {
		template = wetwire.Template{}
		if err := yaml.Unmarshal(data, &template); err != nil {
			return nil, fmt.Errorf("failed to parse as JSON or YAML: %w", err)
		}
	}
	return &template, nil
}

// normalize round-trips resources and outputs through JSON so numbers,
// nested maps and slices have one representation.
func normalize(t *wetwire.Template) (map[string]wetwire.ResourceDef, map[string]any, error) {
	var resources map[string]wetwire.ResourceDef
	if err := roundTrip(t.Resources, &resources); err != nil {
		return nil, nil, err
	}
	var outputs map[string]any
	if err := roundTrip(t.Outputs, &outputs); err != nil {
		return nil, nil, err
	}
	return resources, outputs, nil
}

func roundTrip(in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func compareResources(def1, def2 wetwire.ResourceDef, opts Options) []string {
	var changes []string
	if def1.Type != def2.Type {
		changes = append(changes, fmt.Sprintf("Type changed: %s → %s", def1.Type, def2.Type))
	}
	changes = append(changes, changedPaths(def1.Properties, def2.Properties, opts)...)
	if !cmp.Equal(def1.DependsOn, def2.DependsOn, cmpopts.EquateEmpty()) {
		changes = append(changes, "DependsOn changed")
	}
	return changes
}

// changedPaths lists every leaf that differs between a and b as
// "<path> added|removed|modified", sorted.
func changedPaths(a, b map[string]any, opts Options) []string {
	r := &pathReporter{}
	cmpOpts := []cmp.Option{cmp.Reporter(r), cmpopts.EquateEmpty()}
	if opts.IgnoreOrder {
		cmpOpts = append(cmpOpts, cmpopts.SortSlices(func(x, y any) bool {
			return fmt.Sprint(x) < fmt.Sprint(y)
		}))
	}
	cmp.Equal(a, b, cmpOpts...)
	sort.Strings(r.changes)
	return r.changes
}

// pathReporter collects the path of every unequal leaf.
type pathReporter struct {
	path    cmp.Path
	changes []string
}

func (r *pathReporter) PushStep(ps cmp.PathStep) {
	r.path = append(r.path, ps)
}

func (r *pathReporter) PopStep() {
	r.path = r.path[:len(r.path)-1]
}

func (r *pathReporter) Report(rs cmp.Result) {
	if rs.Equal() {
		return
	}
	vx, vy := r.path.Last().Values()
	kind := "modified"
	switch {
	case !present(vx):
		kind = "added"
	case !present(vy):
		kind = "removed"
	}
	r.changes = append(r.changes, pathString(r.path)+" "+kind)
}

func present(v reflect.Value) bool {
	if !v.IsValid() {
		return false
	}
	if v.Kind() == reflect.Interface && v.IsNil() {
		return false
	}
	return true
}

// pathString renders map keys joined by dots and slice indexes in brackets,
// e.g. DistributionConfig.Origins[0].Id.
func pathString(p cmp.Path) string {
	var sb strings.Builder
	for _, step := range p {
		switch s := step.(type) {
		case cmp.MapIndex:
			if sb.Len() > 0 {
				sb.WriteByte('.')
			}
			fmt.Fprint(&sb, s.Key().Interface())
		case cmp.SliceIndex:
			i := s.Key()
			if i < 0 {
				ix, iy := s.SplitKeys()
				i = max(ix, iy)
			}
			fmt.Fprintf(&sb, "[%d]", i)
		}
	}
	return sb.String()
}

func sortEntries(entries []wetwire.DiffEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Resource < entries[j].Resource
	})
}
