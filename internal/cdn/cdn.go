// Package cdn invalidates cached paths on the site distribution.
package cdn

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
	"github.com/google/uuid"

	"github.com/lex00/wetwire-site-go/internal/awsapi"
	"github.com/lex00/wetwire-site-go/internal/logging"
	"github.com/lex00/wetwire-site-go/internal/metrics"
)

// AllPaths invalidates every object.
const AllPaths = "/*"

// DefaultWaitTimeout bounds Wait when Invalidator.Timeout is zero.
const DefaultWaitTimeout = 15 * time.Minute

// Invalidator creates invalidations on one distribution.
type Invalidator struct {
	Client         awsapi.CloudFrontAPI
	DistributionID string
	Timeout        time.Duration
	// MinDelay and MaxDelay tune the waiter polling; zero keeps SDK defaults.
	MinDelay time.Duration
	MaxDelay time.Duration
	Metrics  *metrics.Metrics
}

// Invalidate requests invalidation of paths and returns the invalidation ID.
// With no paths it invalidates AllPaths.
func (i *Invalidator) Invalidate(ctx context.Context, paths ...string) (string, error) {
	if len(paths) == 0 {
		paths = []string{AllPaths}
	}

	out, err := i.Client.CreateInvalidation(ctx, &cloudfront.CreateInvalidationInput{
		DistributionId: aws.String(i.DistributionID),
		InvalidationBatch: &types.InvalidationBatch{
			CallerReference: aws.String(uuid.NewString()),
			Paths: &types.Paths{
				Items:    paths,
				Quantity: aws.Int32(int32(len(paths))),
			},
		},
	})
	if err != nil {
		i.Metrics.Error("invalidate")
		return "", fmt.Errorf("invalidating %s: %w", i.DistributionID, err)
	}
	i.Metrics.Invalidation()

	id := aws.ToString(out.Invalidation.Id)
	logging.Ctx(ctx).Info().
		Str("distribution", i.DistributionID).
		Str("invalidation", id).
		Strs("paths", paths).
		Msg("created invalidation")
	return id, nil
}

// Wait blocks until the invalidation completes.
func (i *Invalidator) Wait(ctx context.Context, id string) error {
	start := time.Now()
	defer i.Metrics.Time("invalidate_wait", start)

	waiter := cloudfront.NewInvalidationCompletedWaiter(i.Client, func(o *cloudfront.InvalidationCompletedWaiterOptions) {
		if i.MinDelay > 0 {
			o.MinDelay = i.MinDelay
		}
		if i.MaxDelay > 0 {
			o.MaxDelay = i.MaxDelay
		}
		if o.MaxDelay < o.MinDelay {
			o.MaxDelay = o.MinDelay
		}
	})

	timeout := i.Timeout
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}
	err := waiter.Wait(ctx, &cloudfront.GetInvalidationInput{
		DistributionId: aws.String(i.DistributionID),
		Id:             aws.String(id),
	}, timeout)
	if err != nil {
		return fmt.Errorf("waiting for invalidation %s: %w", id, err)
	}
	return nil
}
