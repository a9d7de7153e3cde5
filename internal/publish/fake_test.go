package publish

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/lex00/wetwire-site-go/internal/awsapi"
)

var _ awsapi.S3API = (*fakeS3)(nil)

type storedObject struct {
	body        []byte
	contentType string
	checksum    string
}

// fakeS3 is an in-memory bucket.
type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string]storedObject
	pageSize int
	missing  bool
	failPut  map[string]error

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	puts        atomic.Int32
	deleteCalls atomic.Int32
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string]storedObject{}, pageSize: 1000}
}

func (f *fakeS3) seed(key, body string) {
	f.objects[key] = storedObject{body: []byte(body)}
}

func (f *fakeS3) enter() func() {
	n := f.inFlight.Add(1)
	for {
		peak := f.maxInFlight.Load()
		if n <= peak || f.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}
	return func() { f.inFlight.Add(-1) }
}

func etag(body []byte) string {
	sum := md5.Sum(body)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if f.missing {
		return nil, &smithy.GenericAPIError{Code: "NoSuchBucket", Message: "The specified bucket does not exist"}
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	start := 0
	if params.ContinuationToken != nil {
		start, _ = strconv.Atoi(*params.ContinuationToken)
	}
	end := start + f.pageSize
	if end > len(keys) {
		end = len(keys)
	}

	out := &s3.ListObjectsV2Output{}
	for _, k := range keys[start:end] {
		obj := f.objects[k]
		out.Contents = append(out.Contents, types.Object{
			Key:  aws.String(k),
			ETag: aws.String(etag(obj.body)),
			Size: aws.Int64(int64(len(obj.body))),
		})
	}
	if end < len(keys) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	defer f.enter()()
	f.puts.Add(1)

	key := aws.ToString(params.Key)
	if err := f.failPut[key]; err != nil {
		return nil, err
	}
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = storedObject{
		body:        body,
		contentType: aws.ToString(params.ContentType),
		checksum:    aws.ToString(params.ChecksumSHA256),
	}
	return &s3.PutObjectOutput{ETag: aws.String(etag(body))}, nil
}

func (f *fakeS3) DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	defer f.enter()()
	f.deleteCalls.Add(1)

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range params.Delete.Objects {
		delete(f.objects, aws.ToString(id.Key))
	}
	return &s3.DeleteObjectsOutput{}, nil
}

func (f *fakeS3) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
