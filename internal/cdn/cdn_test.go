package cdn

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
	"github.com/aws/smithy-go"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lex00/wetwire-site-go/internal/awsapi"
	"github.com/lex00/wetwire-site-go/internal/metrics"
)

var _ awsapi.CloudFrontAPI = (*fakeCloudFront)(nil)

type fakeCloudFront struct {
	inputs    []*cloudfront.CreateInvalidationInput
	statuses  []string
	gets      int
	createErr error
}

func (f *fakeCloudFront) CreateInvalidation(ctx context.Context, params *cloudfront.CreateInvalidationInput, optFns ...func(*cloudfront.Options)) (*cloudfront.CreateInvalidationOutput, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.inputs = append(f.inputs, params)
	return &cloudfront.CreateInvalidationOutput{
		Invalidation: &types.Invalidation{Id: aws.String("I2J0I21PCUYOIK"), Status: aws.String("InProgress")},
	}, nil
}

func (f *fakeCloudFront) GetInvalidation(ctx context.Context, params *cloudfront.GetInvalidationInput, optFns ...func(*cloudfront.Options)) (*cloudfront.GetInvalidationOutput, error) {
	status := f.statuses[len(f.statuses)-1]
	if f.gets < len(f.statuses) {
		status = f.statuses[f.gets]
	}
	f.gets++
	return &cloudfront.GetInvalidationOutput{
		Invalidation: &types.Invalidation{Id: params.Id, Status: aws.String(status)},
	}, nil
}

func TestInvalidate_DefaultsToAllPaths(t *testing.T) {
	client := &fakeCloudFront{}
	m := metrics.New()
	inv := &Invalidator{Client: client, DistributionID: "E2QWRUHAPOMQZL", Metrics: m}

	id, err := inv.Invalidate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "I2J0I21PCUYOIK", id)

	require.Len(t, client.inputs, 1)
	in := client.inputs[0]
	assert.Equal(t, "E2QWRUHAPOMQZL", aws.ToString(in.DistributionId))
	assert.Equal(t, []string{"/*"}, in.InvalidationBatch.Paths.Items)
	assert.Equal(t, int32(1), aws.ToInt32(in.InvalidationBatch.Paths.Quantity))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Invalidations))
}

func TestInvalidate_UniqueCallerReference(t *testing.T) {
	client := &fakeCloudFront{}
	inv := &Invalidator{Client: client, DistributionID: "E1"}

	_, err := inv.Invalidate(context.Background(), "/index.html", "/css/*")
	require.NoError(t, err)
	_, err = inv.Invalidate(context.Background(), "/index.html")
	require.NoError(t, err)

	assert.Equal(t, int32(2), aws.ToInt32(client.inputs[0].InvalidationBatch.Paths.Quantity))
	assert.NotEqual(t,
		aws.ToString(client.inputs[0].InvalidationBatch.CallerReference),
		aws.ToString(client.inputs[1].InvalidationBatch.CallerReference))
}

func TestInvalidate_Error(t *testing.T) {
	client := &fakeCloudFront{createErr: &smithy.GenericAPIError{Code: "NoSuchDistribution", Message: "gone"}}
	m := metrics.New()
	inv := &Invalidator{Client: client, DistributionID: "E1", Metrics: m}

	_, err := inv.Invalidate(context.Background())
	assert.ErrorContains(t, err, "invalidating E1")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Errors.WithLabelValues("invalidate")))
}

func TestWait(t *testing.T) {
	client := &fakeCloudFront{statuses: []string{"InProgress", "Completed"}}
	inv := &Invalidator{Client: client, DistributionID: "E1", Timeout: time.Minute, MinDelay: time.Millisecond, MaxDelay: time.Millisecond}

	require.NoError(t, inv.Wait(context.Background(), "I2J0I21PCUYOIK"))
	assert.Equal(t, 2, client.gets)
}
