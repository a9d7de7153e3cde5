// Package publish mirrors a scanned asset directory into the site bucket.
//
// Publishing is a two-step process: List the bucket and build a Plan with
// NewPlan, then Apply it. Uploads and deletes run concurrently, bounded by
// Concurrency and an optional rate limit.
package publish

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	wetwire "github.com/lex00/wetwire-site-go"
	"github.com/lex00/wetwire-site-go/internal/assets"
	"github.com/lex00/wetwire-site-go/internal/awsapi"
	"github.com/lex00/wetwire-site-go/internal/logging"
	"github.com/lex00/wetwire-site-go/internal/metrics"
)

// MaxDeleteBatch is the DeleteObjects limit per request.
const MaxDeleteBatch = 1000

// DefaultConcurrency bounds in-flight requests when Concurrency is unset.
const DefaultConcurrency = 8

// ErrBucketNotFound is returned when the site bucket does not exist.
var ErrBucketNotFound = errors.New("bucket not found")

// Publisher applies plans to one bucket.
type Publisher struct {
	Client awsapi.S3API
	Bucket string
	// Concurrency bounds in-flight requests. Zero means DefaultConcurrency.
	Concurrency int
	// Limiter, when set, paces every request.
	Limiter *rate.Limiter
	Metrics *metrics.Metrics
}

// NewLimiter returns a limiter allowing perSecond requests, or nil for an
// unlimited rate.
func NewLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// List returns every object in the bucket keyed by object key.
func (p *Publisher) List(ctx context.Context) (map[string]Remote, error) {
	remote := make(map[string]Remote)
	paginator := s3.NewListObjectsV2Paginator(p.Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(p.Bucket),
	})
	for paginator.HasMorePages() {
		if err := p.wait(ctx); err != nil {
			return nil, err
		}
		page, err := paginator.NextPage(ctx)
		if err != nil {
			var apiErr smithy.APIError
			if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchBucket" {
				return nil, fmt.Errorf("%w: %s", ErrBucketNotFound, p.Bucket)
			}
			return nil, fmt.Errorf("listing %s: %w", p.Bucket, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			remote[key] = Remote{
				Key:  key,
				ETag: strings.Trim(aws.ToString(obj.ETag), `"`),
				Size: aws.ToInt64(obj.Size),
			}
		}
	}
	return remote, nil
}

// Plan lists the bucket and diffs it against local.
func (p *Publisher) Plan(ctx context.Context, local []assets.Object) (Plan, error) {
	remote, err := p.List(ctx)
	if err != nil {
		return Plan{}, err
	}
	return NewPlan(local, remote), nil
}

// Apply uploads and deletes the planned objects. The first failure cancels
// the remaining work; every worker has returned when Apply returns.
func (p *Publisher) Apply(ctx context.Context, plan Plan) (wetwire.PublishResult, error) {
	start := time.Now()
	defer p.Metrics.Time("publish", start)

	log := logging.Ctx(ctx)
	result := wetwire.PublishResult{Unchanged: len(plan.Skip)}
	for range plan.Skip {
		p.Metrics.Object(metrics.ActionSkip, 0)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency())

	for _, obj := range plan.Upload {
		g.Go(func() error {
			if err := p.wait(gctx); err != nil {
				return err
			}
			if err := p.put(gctx, obj); err != nil {
				p.Metrics.Error("upload")
				return err
			}
			p.Metrics.Object(metrics.ActionUpload, obj.Size)
			log.Debug().Str("key", obj.Key).Str("content_type", obj.ContentType).Int64("size", obj.Size).Msg("uploaded")

			mu.Lock()
			result.Uploaded = append(result.Uploaded, obj.Key)
			result.BytesUploaded += obj.Size
			mu.Unlock()
			return nil
		})
	}

	for _, batch := range batches(plan.Delete, MaxDeleteBatch) {
		g.Go(func() error {
			if err := p.wait(gctx); err != nil {
				return err
			}
			if err := p.delete(gctx, batch); err != nil {
				p.Metrics.Error("delete")
				return err
			}
			for _, key := range batch {
				p.Metrics.Object(metrics.ActionDelete, 0)
				log.Debug().Str("key", key).Msg("deleted")
			}

			mu.Lock()
			result.Deleted = append(result.Deleted, batch...)
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	sort.Strings(result.Uploaded)
	sort.Strings(result.Deleted)
	if err != nil {
		return result, err
	}

	log.Info().
		Str("bucket", p.Bucket).
		Int("uploaded", len(result.Uploaded)).
		Int("deleted", len(result.Deleted)).
		Int("unchanged", result.Unchanged).
		Str("bytes", humanize.Bytes(uint64(result.BytesUploaded))).
		Dur("took", time.Since(start)).
		Msg("published assets")
	return result, nil
}

func (p *Publisher) concurrency() int {
	if p.Concurrency > 0 {
		return p.Concurrency
	}
	return DefaultConcurrency
}

func (p *Publisher) wait(ctx context.Context) error {
	if p.Limiter == nil {
		return ctx.Err()
	}
	return p.Limiter.Wait(ctx)
}

func (p *Publisher) put(ctx context.Context, obj assets.Object) error {
	f, err := os.Open(obj.Path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", obj.Path, err)
	}
	defer f.Close()

	_, err = p.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:            aws.String(p.Bucket),
		Key:               aws.String(obj.Key),
		Body:              f,
		ContentLength:     aws.Int64(obj.Size),
		ContentType:       aws.String(obj.ContentType),
		ChecksumAlgorithm: types.ChecksumAlgorithmSha256,
		ChecksumSHA256:    aws.String(obj.SHA256),
	})
	if err != nil {
		return apiError("uploading "+obj.Key, err)
	}
	return nil
}

func (p *Publisher) delete(ctx context.Context, keys []string) error {
	ids := make([]types.ObjectIdentifier, len(keys))
	for i, key := range keys {
		ids[i] = types.ObjectIdentifier{Key: aws.String(key)}
	}

	out, err := p.Client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(p.Bucket),
		Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
	})
	if err != nil {
		return apiError(fmt.Sprintf("deleting %d objects", len(keys)), err)
	}
	if len(out.Errors) > 0 {
		first := out.Errors[0]
		return fmt.Errorf("deleting %s: %s: %s (%d failed)",
			aws.ToString(first.Key), aws.ToString(first.Code), aws.ToString(first.Message), len(out.Errors))
	}
	return nil
}

// Empty deletes every object in the bucket.
func (p *Publisher) Empty(ctx context.Context) (wetwire.PublishResult, error) {
	plan, err := p.Plan(ctx, nil)
	if err != nil {
		return wetwire.PublishResult{}, err
	}
	return p.Apply(ctx, plan)
}

// apiError prefixes err with the API error code when there is one.
func apiError(op string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %s: %w", op, apiErr.ErrorCode(), err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func batches(keys []string, size int) [][]string {
	var out [][]string
	for len(keys) > 0 {
		n := size
		if len(keys) < n {
			n = len(keys)
		}
		out = append(out, keys[:n])
		keys = keys[n:]
	}
	return out
}

// Summary renders a one-line description of a publish.
func Summary(r wetwire.PublishResult) string {
	if !r.Changed() {
		return fmt.Sprintf("no changes (%d objects up to date)", r.Unchanged)
	}
	return fmt.Sprintf("%d uploaded (%s), %d deleted, %d unchanged",
		len(r.Uploaded), humanize.Bytes(uint64(r.BytesUploaded)), len(r.Deleted), r.Unchanged)
}
