package publish

import (
	"sort"

	"github.com/lex00/wetwire-site-go/internal/assets"
)

// Remote is an object already in the bucket.
type Remote struct {
	Key  string
	ETag string
	Size int64
}

// Plan is the set of changes that makes the bucket mirror the local files.
type Plan struct {
	Upload []assets.Object
	Skip   []assets.Object
	Delete []string
}

// Empty reports whether applying the plan would change nothing.
func (p Plan) Empty() bool {
	return len(p.Upload) == 0 && len(p.Delete) == 0
}

// UploadBytes sums the sizes of the planned uploads.
func (p Plan) UploadBytes() int64 {
	return assets.TotalSize(p.Upload)
}

// NewPlan diffs local objects against the bucket listing. A local object is
// uploaded when its key is missing remotely or the ETags differ, skipped when
// they match. Remote keys with no local object are deleted.
func NewPlan(local []assets.Object, remote map[string]Remote) Plan {
	var plan Plan
	seen := make(map[string]bool, len(local))

	for _, obj := range local {
		seen[obj.Key] = true
		r, ok := remote[obj.Key]
		if ok && r.ETag == obj.ETag {
			plan.Skip = append(plan.Skip, obj)
			continue
		}
		plan.Upload = append(plan.Upload, obj)
	}

	for key := range remote {
		if !seen[key] {
			plan.Delete = append(plan.Delete, key)
		}
	}

	sort.Slice(plan.Upload, func(i, j int) bool { return plan.Upload[i].Key < plan.Upload[j].Key })
	sort.Slice(plan.Skip, func(i, j int) bool { return plan.Skip[i].Key < plan.Skip[j].Key })
	sort.Strings(plan.Delete)
	return plan
}
