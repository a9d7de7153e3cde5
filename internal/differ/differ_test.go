package differ

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	wetwire "github.com/lex00/wetwire-site-go"
	"github.com/lex00/wetwire-site-go/internal/site"
	"github.com/lex00/wetwire-site-go/internal/template"
)

func renderSite(t *testing.T, in site.Inputs) *wetwire.Template {
	t.Helper()
	s, err := site.New(in)
	if err != nil {
		t.Fatalf("site.New: %v", err)
	}
	tmpl, err := s.Template()
	if err != nil {
		t.Fatalf("Template: %v", err)
	}
	return tmpl
}

var blogDev = site.Inputs{Project: "blog", Environment: "dev", Suffix: "k3x9q2ab"}

func TestCompare(t *testing.T) {
	t1 := &wetwire.Template{
		Resources: map[string]wetwire.ResourceDef{
			"Bucket1": {Type: "AWS::S3::Bucket", Properties: map[string]any{"BucketName": "bucket1"}},
			"Bucket2": {Type: "AWS::S3::Bucket", Properties: map[string]any{"BucketName": "bucket2"}},
		},
	}
	t2 := &wetwire.Template{
		Resources: map[string]wetwire.ResourceDef{
			"Bucket1": {Type: "AWS::S3::Bucket", Properties: map[string]any{"BucketName": "bucket1-modified"}},
			"Bucket3": {Type: "AWS::S3::Bucket", Properties: map[string]any{"BucketName": "bucket3"}},
		},
	}

	result, err := Compare(t1, t2, Options{})
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}

	if len(result.Diff.Removed) != 1 || result.Diff.Removed[0].Resource != "Bucket2" {
		t.Errorf("Removed = %+v, want Bucket2", result.Diff.Removed)
	}
	if len(result.Diff.Added) != 1 || result.Diff.Added[0].Resource != "Bucket3" {
		t.Errorf("Added = %+v, want Bucket3", result.Diff.Added)
	}
	if len(result.Diff.Modified) != 1 {
		t.Fatalf("Modified = %d, want 1", len(result.Diff.Modified))
	}
	if got := result.Diff.Modified[0].Changes; !reflect.DeepEqual(got, []string{"BucketName modified"}) {
		t.Errorf("Changes = %v", got)
	}
	if result.Summary.Total != 3 {
		t.Errorf("Summary.Total = %d, want 3", result.Summary.Total)
	}
}

func TestCompare_RebuildIsEmpty(t *testing.T) {
	result, err := Compare(renderSite(t, blogDev), renderSite(t, blogDev), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Empty() {
		t.Errorf("expected empty diff, got %+v", result)
	}
}

func TestCompare_DeployedBodyIsEmpty(t *testing.T) {
	tmpl := renderSite(t, blogDev)
	jsonBody, err := template.ToJSON(tmpl)
	if err != nil {
		t.Fatal(err)
	}
	yamlBody, err := template.ToYAML(tmpl)
	if err != nil {
		t.Fatal(err)
	}

	result, err := CompareBytes(jsonBody, yamlBody, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Empty() {
		t.Errorf("JSON and YAML renders differ: %+v", result)
	}
}

func TestCompare_PriceClassChange(t *testing.T) {
	changed := blogDev
	changed.PriceClass = "PriceClass_All"

	result, err := Compare(renderSite(t, blogDev), renderSite(t, changed), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Diff.Modified) != 1 || result.Diff.Modified[0].Resource != site.DistributionID {
		t.Fatalf("Modified = %+v", result.Diff.Modified)
	}
	want := []string{"DistributionConfig.PriceClass modified"}
	if got := result.Diff.Modified[0].Changes; !reflect.DeepEqual(got, want) {
		t.Errorf("Changes = %v, want %v", got, want)
	}
}

func TestCompare_SuffixChangeTouchesNames(t *testing.T) {
	changed := blogDev
	changed.Suffix = "zz99yy88"

	result, err := Compare(renderSite(t, blogDev), renderSite(t, changed), Options{})
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, m := range result.Diff.Modified {
		names = append(names, m.Resource)
	}
	want := []string{site.BucketID, site.OriginAccessControlID}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("modified = %v, want %v", names, want)
	}
}

func TestCompareIdentical(t *testing.T) {
	template := &wetwire.Template{
		Resources: map[string]wetwire.ResourceDef{
			"Bucket": {Type: "AWS::S3::Bucket", Properties: map[string]any{"BucketName": "test"}},
		},
	}

	result, err := Compare(template, template, Options{})
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if result.Summary.Total != 0 {
		t.Errorf("Summary.Total = %d, want 0 for identical templates", result.Summary.Total)
	}
}

func TestCompareTypeChange(t *testing.T) {
	t1 := &wetwire.Template{Resources: map[string]wetwire.ResourceDef{"R": {Type: "AWS::S3::Bucket"}}}
	t2 := &wetwire.Template{Resources: map[string]wetwire.ResourceDef{"R": {Type: "AWS::S3::AccessPoint"}}}

	result, err := Compare(t1, t2, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Diff.Modified) != 1 {
		t.Fatalf("Modified = %d, want 1", len(result.Diff.Modified))
	}
	if got := result.Diff.Modified[0].Changes[0]; got != "Type changed: AWS::S3::Bucket → AWS::S3::AccessPoint" {
		t.Errorf("change = %q", got)
	}
}

func TestCompareDependsOn(t *testing.T) {
	t1 := &wetwire.Template{Resources: map[string]wetwire.ResourceDef{"P": {Type: "AWS::S3::BucketPolicy", DependsOn: []string{"B"}}}}
	t2 := &wetwire.Template{Resources: map[string]wetwire.ResourceDef{"P": {Type: "AWS::S3::BucketPolicy"}}}

	result, err := Compare(t1, t2, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Diff.Modified) != 1 || result.Diff.Modified[0].Changes[0] != "DependsOn changed" {
		t.Errorf("Modified = %+v", result.Diff.Modified)
	}
}

func TestChangedPaths(t *testing.T) {
	tests := []struct {
		name string
		a, b map[string]any
		opts Options
		want []string
	}{
		{
			name: "identical",
			a:    map[string]any{"Key": "value"},
			b:    map[string]any{"Key": "value"},
		},
		{
			name: "added property",
			a:    map[string]any{},
			b:    map[string]any{"Key": "value"},
			want: []string{"Key added"},
		},
		{
			name: "removed property",
			a:    map[string]any{"Key": "value"},
			b:    map[string]any{},
			want: []string{"Key removed"},
		},
		{
			name: "nested modified",
			a:    map[string]any{"Config": map[string]any{"Origins": []any{map[string]any{"Id": "a"}}}},
			b:    map[string]any{"Config": map[string]any{"Origins": []any{map[string]any{"Id": "b"}}}},
			want: []string{"Config.Origins[0].Id modified"},
		},
		{
			name: "appended element",
			a:    map[string]any{"List": []any{"x"}},
			b:    map[string]any{"List": []any{"x", "y"}},
			want: []string{"List[1] added"},
		},
		{
			name: "reordered",
			a:    map[string]any{"List": []any{"GET", "HEAD"}},
			b:    map[string]any{"List": []any{"HEAD", "GET"}},
			opts: Options{IgnoreOrder: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := changedPaths(tt.a, tt.b, tt.opts)
			if len(got) != len(tt.want) || (len(got) > 0 && !reflect.DeepEqual(got, tt.want)) {
				t.Errorf("changedPaths() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompareOutputs(t *testing.T) {
	t1 := renderSite(t, blogDev)
	t2 := renderSite(t, blogDev)
	delete(t2.Outputs, site.OutputWebsiteURL)

	result, err := Compare(t1, t2, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(result.Outputs, []string{"WebsiteURL removed"}) {
		t.Errorf("Outputs = %v", result.Outputs)
	}
	if result.Empty() {
		t.Error("expected non-empty result")
	}
}

func TestCompareFiles(t *testing.T) {
	dir := t.TempDir()
	tmpl := renderSite(t, blogDev)
	body, err := template.ToYAML(tmpl)
	if err != nil {
		t.Fatal(err)
	}
	a := filepath.Join(dir, "a.yaml")
	if err := os.WriteFile(a, body, 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := CompareFiles(a, a, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Empty() {
		t.Errorf("expected empty diff: %+v", result)
	}

	if _, err := CompareFiles(a, filepath.Join(dir, "missing.json"), Options{}); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse([]byte("{not: [valid")); err == nil {
		t.Error("expected parse error")
	}
}
