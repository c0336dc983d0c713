package testutil

import (
	"context"
	"encoding/json"
	"testing"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/course-rag-backend/internal/domain/vectors"
)

func SeedVectorRecord(tb testing.TB, ctx context.Context, tx *gorm.DB, collection, id string, meta map[string]any, embedding []float32) *types.VectorRecord {
	tb.Helper()
	emb, err := json.Marshal(embedding)
	if err != nil {
		tb.Fatalf("encode embedding: %v", err)
	}
	row := &types.VectorRecord{
		Collection: collection,
		RecordID:   id,
		Document:   "doc " + id,
		Metadata:   datatypes.JSONMap(meta),
		Embedding:  datatypes.JSON(emb),
	}
	if err := tx.WithContext(ctx).Create(row).Error; err != nil {
		tb.Fatalf("seed vector record: %v", err)
	}
	return row
}
