package publish

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	wetwire "github.com/lex00/wetwire-site-go"
	"github.com/lex00/wetwire-site-go/internal/assets"
	"github.com/lex00/wetwire-site-go/internal/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func scanSite(t *testing.T, files map[string]string) []assets.Object {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	objs, err := assets.Scan(root, assets.Options{})
	require.NoError(t, err)
	return objs
}

func TestNewPlan(t *testing.T) {
	local := []assets.Object{
		{Key: "index.html", ETag: "aaa"},
		{Key: "new.css", ETag: "bbb"},
		{Key: "changed.js", ETag: "ccc"},
	}
	remote := map[string]Remote{
		"index.html": {Key: "index.html", ETag: "aaa"},
		"changed.js": {Key: "changed.js", ETag: "old"},
		"stale.png":  {Key: "stale.png", ETag: "ddd"},
		"gone.html":  {Key: "gone.html", ETag: "eee"},
	}

	plan := NewPlan(local, remote)

	assert.Equal(t, []string{"changed.js", "new.css"}, objectKeys(plan.Upload))
	assert.Equal(t, []string{"index.html"}, objectKeys(plan.Skip))
	assert.Equal(t, []string{"gone.html", "stale.png"}, plan.Delete)
	assert.False(t, plan.Empty())
}

func TestNewPlan_UnchangedIsEmpty(t *testing.T) {
	local := []assets.Object{{Key: "index.html", ETag: "aaa"}}
	plan := NewPlan(local, map[string]Remote{"index.html": {ETag: "aaa"}})
	assert.True(t, plan.Empty())
	assert.Len(t, plan.Skip, 1)
}

func objectKeys(objs []assets.Object) []string {
	out := make([]string, len(objs))
	for i, o := range objs {
		out[i] = o.Key
	}
	return out
}

func TestPublisher_ApplyMirrorsDirectory(t *testing.T) {
	client := newFakeS3()
	client.seed("stale.html", "old")
	m := metrics.New()
	p := &Publisher{Client: client, Bucket: "blog-dev-k3x9q2ab", Concurrency: 2, Metrics: m}

	objs := scanSite(t, map[string]string{
		"index.html":   "<h1>home</h1>",
		"error.html":   "<h1>oops</h1>",
		"css/site.css": "body{}",
	})

	ctx := context.Background()
	plan, err := p.Plan(ctx, objs)
	require.NoError(t, err)

	result, err := p.Apply(ctx, plan)
	require.NoError(t, err)

	assert.Equal(t, []string{"css/site.css", "error.html", "index.html"}, result.Uploaded)
	assert.Equal(t, []string{"stale.html"}, result.Deleted)
	assert.Equal(t, int64(len("<h1>home</h1>")+len("<h1>oops</h1>")+len("body{}")), result.BytesUploaded)
	assert.Equal(t, []string{"css/site.css", "error.html", "index.html"}, client.keys())

	assert.Equal(t, "text/css", client.objects["css/site.css"].contentType)
	assert.Equal(t, objs[0].SHA256, client.objects[objs[0].Key].checksum)

	assert.Equal(t, float64(3), testutil.ToFloat64(m.Objects.WithLabelValues(metrics.ActionUpload)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Objects.WithLabelValues(metrics.ActionDelete)))
}

func TestPublisher_SecondRunIsNoop(t *testing.T) {
	client := newFakeS3()
	p := &Publisher{Client: client, Bucket: "site"}
	objs := scanSite(t, map[string]string{"index.html": "home", "a/b.js": "js"})

	ctx := context.Background()
	plan, err := p.Plan(ctx, objs)
	require.NoError(t, err)
	_, err = p.Apply(ctx, plan)
	require.NoError(t, err)

	plan, err = p.Plan(ctx, objs)
	require.NoError(t, err)
	assert.True(t, plan.Empty())

	result, err := p.Apply(ctx, plan)
	require.NoError(t, err)
	assert.False(t, result.Changed())
	assert.Equal(t, 2, result.Unchanged)
	assert.Equal(t, int32(2), client.puts.Load())
}

func TestPublisher_ListPaginates(t *testing.T) {
	client := newFakeS3()
	client.pageSize = 2
	for i := 0; i < 5; i++ {
		client.seed(fmt.Sprintf("k%d", i), "x")
	}
	p := &Publisher{Client: client, Bucket: "site"}

	remote, err := p.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, remote, 5)
	assert.Equal(t, "9dd4e461268c8034f5c8564e155c67a6", remote["k0"].ETag)
	assert.Equal(t, int64(1), remote["k0"].Size)
}

func TestPublisher_BucketMissing(t *testing.T) {
	client := newFakeS3()
	client.missing = true
	p := &Publisher{Client: client, Bucket: "site"}

	_, err := p.List(context.Background())
	assert.ErrorIs(t, err, ErrBucketNotFound)
}

func TestPublisher_DeleteBatches(t *testing.T) {
	client := newFakeS3()
	var stale []string
	for i := 0; i < 2500; i++ {
		key := fmt.Sprintf("old/%04d", i)
		client.seed(key, "")
		stale = append(stale, key)
	}
	p := &Publisher{Client: client, Bucket: "site"}

	result, err := p.Apply(context.Background(), Plan{Delete: stale})
	require.NoError(t, err)
	assert.Len(t, result.Deleted, 2500)
	assert.Equal(t, int32(3), client.deleteCalls.Load())
	assert.Empty(t, client.keys())
}

func TestPublisher_ConcurrencyBound(t *testing.T) {
	client := newFakeS3()
	files := map[string]string{}
	for i := 0; i < 40; i++ {
		files[fmt.Sprintf("f%02d.html", i)] = "x"
	}
	objs := scanSite(t, files)
	p := &Publisher{Client: client, Bucket: "site", Concurrency: 3}

	_, err := p.Apply(context.Background(), Plan{Upload: objs})
	require.NoError(t, err)
	assert.LessOrEqual(t, client.maxInFlight.Load(), int32(3))
}

func TestPublisher_UploadFailureStopsAndReports(t *testing.T) {
	client := newFakeS3()
	client.failPut = map[string]error{
		"b.html": &smithy.GenericAPIError{Code: "AccessDenied", Message: "Access Denied"},
	}
	objs := scanSite(t, map[string]string{"a.html": "a", "b.html": "b", "c.html": "c"})
	m := metrics.New()
	p := &Publisher{Client: client, Bucket: "site", Concurrency: 1, Metrics: m}

	_, err := p.Apply(context.Background(), Plan{Upload: objs})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "uploading b.html: AccessDenied")

	var apiErr smithy.APIError
	assert.True(t, errors.As(err, &apiErr))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Errors.WithLabelValues("upload")))
}

func TestPublisher_CanceledContext(t *testing.T) {
	client := newFakeS3()
	objs := scanSite(t, map[string]string{"a.html": "a"})
	p := &Publisher{Client: client, Bucket: "site", Limiter: NewLimiter(1)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Apply(ctx, Plan{Upload: objs})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), client.puts.Load())
}

func TestPublisher_Empty(t *testing.T) {
	client := newFakeS3()
	client.seed("a", "1")
	client.seed("b", "2")
	p := &Publisher{Client: client, Bucket: "site"}

	result, err := p.Empty(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, result.Deleted)
	assert.Empty(t, client.keys())
}

func TestNewLimiter(t *testing.T) {
	assert.Nil(t, NewLimiter(0))
	assert.Nil(t, NewLimiter(-1))

	l := NewLimiter(0.5)
	require.NotNil(t, l)
	assert.Equal(t, 1, l.Burst())

	assert.Equal(t, 20, NewLimiter(20).Burst())
}

func TestBatches(t *testing.T) {
	assert.Empty(t, batches(nil, 3))
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, batches([]string{"a", "b", "c"}, 2))
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "no changes (4 objects up to date)", Summary(wetwire.PublishResult{Unchanged: 4}))
	assert.Equal(t, "2 uploaded (2.0 kB), 1 deleted, 0 unchanged", Summary(wetwire.PublishResult{
		Uploaded:      []string{"a", "b"},
		Deleted:       []string{"c"},
		BytesUploaded: 2000,
	}))
}
