package main

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	wetwire "github.com/lex00/wetwire-site-go"
	"github.com/lex00/wetwire-site-go/internal/assets"
	"github.com/lex00/wetwire-site-go/internal/awsapi"
	"github.com/lex00/wetwire-site-go/internal/publish"
)

type publishOptions struct {
	exclude []string
	// keep leaves bucket objects with no local file in place.
	keep   bool
	dryRun bool
	// wait blocks until the CDN invalidation completes.
	wait bool
}

// scan lists the local asset files.
func (a *app) scan(exclude []string) ([]assets.Object, error) {
	objs, err := assets.Scan(a.cfg.AssetDir, assets.Options{Exclude: exclude})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", a.cfg.AssetDir, err)
	}
	return objs, nil
}

// planAssets diffs the asset directory against the bucket.
func (a *app) planAssets(ctx context.Context, c *awsapi.Clients, bucket string, opts publishOptions) (*publish.Publisher, publish.Plan, error) {
	objs, err := a.scan(opts.exclude)
	if err != nil {
		return nil, publish.Plan{}, err
	}
	p := a.publisher(c, bucket)
	plan, err := p.Plan(ctx, objs)
	if err != nil {
		return nil, publish.Plan{}, err
	}
	if opts.keep {
		plan.Delete = nil
	}
	return p, plan, nil
}

// publishAssets mirrors the asset directory into the site bucket and
// invalidates the distribution when anything changed.
func (a *app) publishAssets(ctx context.Context, c *awsapi.Clients, outputs wetwire.SiteOutputs, opts publishOptions) (wetwire.PublishResult, error) {
	p, plan, err := a.planAssets(ctx, c, outputs.S3BucketName, opts)
	if err != nil {
		return wetwire.PublishResult{}, err
	}
	if opts.dryRun {
		printPlan(a.out, plan)
		return wetwire.PublishResult{Unchanged: len(plan.Skip)}, nil
	}

	result, err := p.Apply(ctx, plan)
	if err != nil {
		return result, err
	}
	if !result.Changed() || !a.cfg.Invalidate {
		return result, nil
	}

	inv := a.invalidator(c, outputs.CloudFrontDistributionID)
	id, err := inv.Invalidate(ctx)
	if err != nil {
		return result, err
	}
	result.Invalidation = id
	if opts.wait {
		if err := inv.Wait(ctx, id); err != nil {
			return result, err
		}
	}
	return result, nil
}

func printPlan(out io.Writer, plan publish.Plan) {
	for _, obj := range plan.Upload {
		fmt.Fprintf(out, "+ %s (%s, %s)\n", obj.Key, humanize.Bytes(uint64(obj.Size)), obj.ContentType)
	}
	for _, key := range plan.Delete {
		fmt.Fprintf(out, "- %s\n", key)
	}
	fmt.Fprintf(out, "%d to upload (%s), %d to delete, %d unchanged\n",
		len(plan.Upload), humanize.Bytes(uint64(plan.UploadBytes())), len(plan.Delete), len(plan.Skip))
}
