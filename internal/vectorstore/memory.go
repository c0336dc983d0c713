package vectorstore

import (
	"context"
	"sync"
)

type MemoryBackend struct {
	mu          sync.Mutex
	collections map[string]*memoryCollection
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{collections: map[string]*memoryCollection{}}
}

func (b *MemoryBackend) Collection(_ context.Context, name string) (Collection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.collections[name]
	if !ok {
		c = &memoryCollection{records: map[string]Record{}}
		b.collections[name] = c
	}
	return c, nil
}

func (b *MemoryBackend) Close() error { return nil }

type memoryCollection struct {
	mu      sync.RWMutex
	order   []string
	records map[string]Record
}

func (c *memoryCollection) Upsert(ctx context.Context, records []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range records {
		if _, exists := c.records[r.ID]; !exists {
			c.order = append(c.order, r.ID)
		}
		r.Metadata = cloneMetadata(r.Metadata)
		r.Embedding = append([]float32(nil), r.Embedding...)
		c.records[r.ID] = r
	}
	return nil
}

func (c *memoryCollection) Query(ctx context.Context, vector []float32, n int, where map[string]any) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	candidates, err := c.Get(ctx, nil, where)
	if err != nil {
		return nil, err
	}
	return rankRecords(candidates, vector, n), nil
}

func (c *memoryCollection) Get(_ context.Context, ids []string, where map[string]any) ([]Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := ids
	if ids == nil {
		keys = c.order
	}
	out := make([]Record, 0, len(keys))
	for _, id := range keys {
		r, ok := c.records[id]
		if !ok {
			continue
		}
		r.Metadata = cloneMetadata(r.Metadata)
		out = append(out, r)
	}
	return filterRecords(out, where)
}

func (c *memoryCollection) Count(_ context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records), nil
}

func (c *memoryCollection) Reset(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = nil
	c.records = map[string]Record{}
	return nil
}
