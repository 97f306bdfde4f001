package document

import (
	"context"

	"github.com/tetherlab/tether/core/component"
)

// fetchCache memoizes instances materialized during one read operation so a
// reference encountered twice resolves to one fetch and one instance. The
// cache lives in the context of the top-level get/find call and never
// outlives it.
type fetchCache map[string]*component.Instance

type fetchCacheKey struct{}

// withFetchCache returns a context carrying a fetch cache, creating one if
// the context has none. Nested resolution calls inherit the same cache.
func withFetchCache(ctx context.Context) (context.Context, fetchCache) {
	if cache, ok := ctx.Value(fetchCacheKey{}).(fetchCache); ok {
		return ctx, cache
	}
	cache := make(fetchCache)
	return context.WithValue(ctx, fetchCacheKey{}, cache), cache
}

func (c fetchCache) lookup(componentName, id string) (*component.Instance, bool) {
	inst, ok := c[componentName+"/"+id]
	return inst, ok
}

func (c fetchCache) put(componentName, id string, inst *component.Instance) {
	c[componentName+"/"+id] = inst
}
