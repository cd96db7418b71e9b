package docstore

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"docselect/internal/bucket"
	"docselect/internal/callgroup"
	"docselect/internal/document"
	"docselect/internal/selection"
)

const conditionCacheSize = 256

// conditionCache holds compiled test-and-set conditions. Feeds tend to repeat
// the same condition text, so each distinct text is parsed once; concurrent
// misses for the same text share one parse.
type conditionCache struct {
	reg     *document.Registry
	factory bucket.Factory
	cache   *lru.Cache[string, *selection.Selector]
	group   callgroup.Group[string, *selection.Selector]
}

func newConditionCache(reg *document.Registry, factory bucket.Factory) *conditionCache {
	c, err := lru.New[string, *selection.Selector](conditionCacheSize)
	if err != nil {
		panic(err) // only fails for a non-positive size
	}
	return &conditionCache{reg: reg, factory: factory, cache: c}
}

// get returns the compiled selector for text. Parse errors are not cached.
func (c *conditionCache) get(text string) (*selection.Selector, error) {
	if sel, ok := c.cache.Get(text); ok {
		return sel, nil
	}
	sel, _, err := c.group.Do(text, func() (*selection.Selector, error) {
		sel, err := selection.New(text,
			selection.WithRegistry(c.reg),
			selection.WithBucketFactory(c.factory))
		if err != nil {
			return nil, err
		}
		c.cache.Add(text, sel)
		return sel, nil
	})
	return sel, err
}
