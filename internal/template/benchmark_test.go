package template

import (
	"fmt"
	"testing"

	wetwire "github.com/lex00/wetwire-site-go"
	. "github.com/lex00/wetwire-site-go/intrinsics"
	"github.com/lex00/wetwire-site-go/resources/s3"
)

// chainBuilder declares size buckets, each policy referring to the previous bucket.
func chainBuilder(b *testing.B, size int) *Builder {
	builder := NewBuilder("")
	for i := 0; i < size; i++ {
		name := fmt.Sprintf("Bucket%03d", i)
		var value wetwire.Resource = s3.Bucket{BucketName: name}
		if i > 0 {
			value = s3.BucketPolicy{
				Bucket:         Ref{LogicalName: fmt.Sprintf("Bucket%03d", i-1)},
				PolicyDocument: NewPolicyDocument(),
			}
		}
		if err := builder.AddResource(wetwire.DeclaredResource{Name: name, Value: value}); err != nil {
			b.Fatal(err)
		}
	}
	return builder
}

// BenchmarkBuild benchmarks building templates with varying resource counts.
func BenchmarkBuild(b *testing.B) {
	for _, size := range []int{10, 50, 100} {
		b.Run(fmt.Sprintf("resources_%d", size), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := chainBuilder(b, size).Build(); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkToJSON benchmarks JSON serialization with varying resource counts.
func BenchmarkToJSON(b *testing.B) {
	for _, size := range []int{10, 50, 100} {
		b.Run(fmt.Sprintf("resources_%d", size), func(b *testing.B) {
			tmpl, err := chainBuilder(b, size).Build()
			if err != nil {
				b.Fatal(err)
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := ToJSON(tmpl); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
