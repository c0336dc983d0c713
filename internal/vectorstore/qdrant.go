package vectorstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/yungbote/course-rag-backend/internal/platform/qdrant"
)

const payloadDocumentKey = "document"

// QdrantBackend maps each logical collection onto a namespace of one qdrant
// collection.
type QdrantBackend struct {
	store qdrant.VectorStore
}

func NewQdrantBackend(store qdrant.VectorStore) *QdrantBackend {
	return &QdrantBackend{store: store}
}

func (b *QdrantBackend) Collection(_ context.Context, name string) (Collection, error) {
	return &qdrantCollection{namespace: name, store: b.store}, nil
}

func (b *QdrantBackend) Close() error { return nil }

type qdrantCollection struct {
	namespace string
	store     qdrant.VectorStore
}

func (c *qdrantCollection) Upsert(ctx context.Context, records []Record) error {
	points := make([]qdrant.Point, 0, len(records))
	for _, r := range records {
		payload := cloneMetadata(r.Metadata)
		payload[payloadDocumentKey] = r.Document
		points = append(points, qdrant.Point{ID: r.ID, Vector: r.Embedding, Payload: payload})
	}
	return c.store.Upsert(ctx, c.namespace, points)
}

func (c *qdrantCollection) Query(ctx context.Context, vector []float32, n int, where map[string]any) ([]Match, error) {
	if n <= 0 {
		return []Match{}, nil
	}
	hits, err := c.store.Search(ctx, c.namespace, vector, n, where)
	if err != nil {
		return nil, err
	}
	out := make([]Match, 0, len(hits))
	for _, h := range hits {
		out = append(out, Match{Record: recordFromPayload(h.ID, h.Payload), Distance: 1 - h.Score})
	}
	sortMatches(out)
	return out, nil
}

func (c *qdrantCollection) Get(ctx context.Context, ids []string, where map[string]any) ([]Record, error) {
	if ids != nil && len(ids) == 0 {
		return []Record{}, nil
	}
	points, err := c.store.Scroll(ctx, c.namespace, ids, where)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(points))
	for _, p := range points {
		out = append(out, recordFromPayload(p.ID, p.Payload))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *qdrantCollection) Count(ctx context.Context) (int, error) {
	return c.store.Count(ctx, c.namespace)
}

func (c *qdrantCollection) Reset(ctx context.Context) error {
	if err := c.store.DeleteNamespace(ctx, c.namespace); err != nil {
		return fmt.Errorf("reset %s: %w", c.namespace, err)
	}
	return nil
}

func recordFromPayload(id string, payload map[string]any) Record {
	meta := cloneMetadata(payload)
	doc, _ := meta[payloadDocumentKey].(string)
	delete(meta, payloadDocumentKey)
	return Record{ID: id, Document: doc, Metadata: meta}
}
