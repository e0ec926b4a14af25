package metered

import (
	"sort"

	"go.opentelemetry.io/otel/attribute"

	"github.com/rjmurillo/cachemetrics/cache"
)

// Tag keys and dynamic dimension values emitted with every reading.
const (
	tagCacheName = "cache.name"
	tagResult    = "result"
	tagReason    = "reason"
)

var (
	dimHit  = attribute.String(tagResult, "hit")
	dimMiss = attribute.String(tagResult, "miss")
)

func dimReason(r cache.EvictionReason) attribute.KeyValue {
	return attribute.String(tagReason, r.String())
}

// tagComposer builds the tag snapshot for one reading. The base tags
// (cache name, custom tags) are composed once at construction and never
// mutated afterwards; compose copies them into a fresh, independent set
// per call, so no tag container is ever shared mutably across the
// backend's poll goroutine and anything else.
type tagComposer struct {
	base []attribute.KeyValue
}

func newTagComposer(name string, tags map[string]string) *tagComposer {
	base := make([]attribute.KeyValue, 0, len(tags)+1)
	if name != "" {
		base = append(base, attribute.String(tagCacheName, name))
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		base = append(base, attribute.String(k, tags[k]))
	}
	return &tagComposer{base: base}
}

// compose returns a new immutable set: the base tags extended with exactly
// one dynamic dimension. Runs at poll time only, never on the hot path.
func (t *tagComposer) compose(dim attribute.KeyValue) attribute.Set {
	kvs := make([]attribute.KeyValue, len(t.base), len(t.base)+1)
	copy(kvs, t.base)
	kvs = append(kvs, dim)
	return attribute.NewSet(kvs...)
}
