package main

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"

	"github.com/lex00/wetwire-site-go/internal/awsapi"
	"github.com/lex00/wetwire-site-go/internal/site"
)

var (
	_ awsapi.CloudFormationAPI = (*fakeAWS)(nil)
	_ awsapi.S3API             = (*fakeAWS)(nil)
	_ awsapi.CloudFrontAPI     = (*fakeAWS)(nil)
	_ awsapi.STSAPI            = (*fakeAWS)(nil)
)

// fakeAWS is one account holding a single stack, its bucket and its
// distribution. Stack operations complete instantly. Every call is logged
// in order.
type fakeAWS struct {
	mu      sync.Mutex
	calls   []string
	stack   *cfntypes.Stack
	body    string
	objects map[string][]byte

	invalidations int
}

func newFakeAWS() *fakeAWS {
	return &fakeAWS{objects: map[string][]byte{}}
}

func (f *fakeAWS) clients() *awsapi.Clients {
	return &awsapi.Clients{Region: "us-east-1", S3: f, CloudFormation: f, CloudFront: f, STS: f}
}

func (f *fakeAWS) load(ctx context.Context, region, profile string) (*awsapi.Clients, error) {
	return f.clients(), nil
}

// deployed puts a finished stack in place, as if deploy had run before.
func (f *fakeAWS) deployed() {
	f.stack = &cfntypes.Stack{
		StackName:   aws.String("blog-dev-site"),
		StackId:     aws.String("arn:aws:cloudformation:us-east-1:123456789012:stack/blog-dev-site/1"),
		StackStatus: cfntypes.StackStatusCreateComplete,
		Outputs:     stackOutputs(),
	}
}

func stackOutputs() []cfntypes.Output {
	values := map[string]string{
		site.OutputBucketName:      "blog-dev-k3x9q2ab",
		site.OutputWebsiteEndpoint: "blog-dev-k3x9q2ab.s3-website-us-east-1.amazonaws.com",
		site.OutputDomainName:      "d111111abcdef8.cloudfront.net",
		site.OutputDistributionID:  "E2QWRUHAPOMQZL",
		site.OutputWebsiteURL:      "https://d111111abcdef8.cloudfront.net",
	}
	out := make([]cfntypes.Output, 0, len(values))
	for k, v := range values {
		out = append(out, cfntypes.Output{OutputKey: aws.String(k), OutputValue: aws.String(v)})
	}
	return out
}

func (f *fakeAWS) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

// phases returns the call log with consecutive repeats collapsed.
func (f *fakeAWS) phases() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if len(out) == 0 || out[len(out)-1] != c {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeAWS) called(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeAWS) seed(key, body string) {
	f.objects[key] = []byte(body)
}

func md5Hex(body []byte) string {
	sum := md5.Sum(body)
	return hex.EncodeToString(sum[:])
}

func (f *fakeAWS) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	f.record("GetCallerIdentity")
	return &sts.GetCallerIdentityOutput{
		Account: aws.String("123456789012"),
		Arn:     aws.String("arn:aws:iam::123456789012:user/deployer"),
	}, nil
}

func (f *fakeAWS) DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error) {
	f.record("DescribeStacks")
	if f.stack == nil {
		return nil, &smithy.GenericAPIError{Code: "ValidationError", Message: "Stack with id blog-dev-site does not exist"}
	}
	return &cloudformation.DescribeStacksOutput{Stacks: []cfntypes.Stack{*f.stack}}, nil
}

func (f *fakeAWS) CreateStack(ctx context.Context, params *cloudformation.CreateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error) {
	f.record("CreateStack")
	f.body = aws.ToString(params.TemplateBody)
	f.deployed()
	return &cloudformation.CreateStackOutput{StackId: f.stack.StackId}, nil
}

func (f *fakeAWS) UpdateStack(ctx context.Context, params *cloudformation.UpdateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.UpdateStackOutput, error) {
	f.record("UpdateStack")
	if aws.ToString(params.TemplateBody) == f.body {
		return nil, &smithy.GenericAPIError{Code: "ValidationError", Message: "No updates are to be performed."}
	}
	f.body = aws.ToString(params.TemplateBody)
	f.stack.StackStatus = cfntypes.StackStatusUpdateComplete
	return &cloudformation.UpdateStackOutput{StackId: f.stack.StackId}, nil
}

func (f *fakeAWS) DeleteStack(ctx context.Context, params *cloudformation.DeleteStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DeleteStackOutput, error) {
	f.record("DeleteStack")
	f.stack = nil
	return &cloudformation.DeleteStackOutput{}, nil
}

func (f *fakeAWS) DescribeStackEvents(ctx context.Context, params *cloudformation.DescribeStackEventsInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStackEventsOutput, error) {
	f.record("DescribeStackEvents")
	return &cloudformation.DescribeStackEventsOutput{}, nil
}

func (f *fakeAWS) GetTemplate(ctx context.Context, params *cloudformation.GetTemplateInput, optFns ...func(*cloudformation.Options)) (*cloudformation.GetTemplateOutput, error) {
	f.record("GetTemplate")
	if f.stack == nil {
		return nil, &smithy.GenericAPIError{Code: "ValidationError", Message: "Stack with id blog-dev-site does not exist"}
	}
	return &cloudformation.GetTemplateOutput{TemplateBody: aws.String(f.body)}, nil
}

func (f *fakeAWS) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.record("ListObjectsV2")
	f.mu.Lock()
	defer f.mu.Unlock()

	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{}
	for _, k := range keys {
		body := f.objects[k]
		out.Contents = append(out.Contents, s3types.Object{
			Key:  aws.String(k),
			ETag: aws.String(`"` + md5Hex(body) + `"`),
			Size: aws.Int64(int64(len(body))),
		})
	}
	return out, nil
}

func (f *fakeAWS) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.record("PutObject")
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(params.Key)] = body
	return &s3.PutObjectOutput{ETag: aws.String(`"` + md5Hex(body) + `"`)}, nil
}

func (f *fakeAWS) DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	f.record("DeleteObjects")
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range params.Delete.Objects {
		delete(f.objects, aws.ToString(id.Key))
	}
	return &s3.DeleteObjectsOutput{}, nil
}

func (f *fakeAWS) CreateInvalidation(ctx context.Context, params *cloudfront.CreateInvalidationInput, optFns ...func(*cloudfront.Options)) (*cloudfront.CreateInvalidationOutput, error) {
	f.record("CreateInvalidation")
	f.invalidations++
	return &cloudfront.CreateInvalidationOutput{
		Invalidation: &cftypes.Invalidation{Id: aws.String("I2J0I21PCUYOIK"), Status: aws.String("InProgress")},
	}, nil
}

func (f *fakeAWS) GetInvalidation(ctx context.Context, params *cloudfront.GetInvalidationInput, optFns ...func(*cloudfront.Options)) (*cloudfront.GetInvalidationOutput, error) {
	f.record("GetInvalidation")
	return &cloudfront.GetInvalidationOutput{
		Invalidation: &cftypes.Invalidation{Id: params.Id, Status: aws.String("Completed")},
	}, nil
}

func (f *fakeAWS) keys() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}
