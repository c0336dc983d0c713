package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/course-rag-backend/internal/data/repos/vectors"
	types "github.com/yungbote/course-rag-backend/internal/domain/vectors"
	"github.com/yungbote/course-rag-backend/internal/pkg/dbctx"
	"github.com/yungbote/course-rag-backend/internal/platform/logger"
)

// GormBackend keeps every collection in the vector_records table. Scoring and
// filtering happen in process, which suits course-sized corpora.
type GormBackend struct {
	repo  vectors.VectorRecordRepo
	close func() error
}

// NewGormBackend expects db to be migrated already. closeFn may be nil.
func NewGormBackend(db *gorm.DB, log *logger.Logger, closeFn func() error) *GormBackend {
	return &GormBackend{repo: vectors.NewVectorRecordRepo(db, log), close: closeFn}
}

func (b *GormBackend) Collection(_ context.Context, name string) (Collection, error) {
	return &gormCollection{name: name, repo: b.repo}, nil
}

func (b *GormBackend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

type gormCollection struct {
	name string
	repo vectors.VectorRecordRepo
}

func (c *gormCollection) Upsert(ctx context.Context, records []Record) error {
	rows := make([]*types.VectorRecord, 0, len(records))
	for _, r := range records {
		emb, err := json.Marshal(r.Embedding)
		if err != nil {
			return fmt.Errorf("encode embedding %q: %w", r.ID, err)
		}
		rows = append(rows, &types.VectorRecord{
			Collection: c.name,
			RecordID:   r.ID,
			Document:   r.Document,
			Metadata:   datatypes.JSONMap(cloneMetadata(r.Metadata)),
			Embedding:  datatypes.JSON(emb),
		})
	}
	if err := c.repo.Upsert(dbctx.Context{Ctx: ctx}, rows); err != nil {
		return fmt.Errorf("upsert %s: %w", c.name, err)
	}
	return nil
}

func (c *gormCollection) Query(ctx context.Context, vector []float32, n int, where map[string]any) ([]Match, error) {
	if n <= 0 {
		return []Match{}, nil
	}
	candidates, err := c.Get(ctx, nil, where)
	if err != nil {
		return nil, err
	}
	return rankRecords(candidates, vector, n), nil
}

func (c *gormCollection) Get(ctx context.Context, ids []string, where map[string]any) ([]Record, error) {
	dbc := dbctx.Context{Ctx: ctx}
	var (
		rows []*types.VectorRecord
		err  error
	)
	if ids == nil {
		rows, err = c.repo.ListByCollection(dbc, c.name)
	} else {
		rows, err = c.repo.GetByIDs(dbc, c.name, ids)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", c.name, err)
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		var emb []float32
		if len(row.Embedding) > 0 {
			if err := json.Unmarshal(row.Embedding, &emb); err != nil {
				return nil, fmt.Errorf("decode embedding %q: %w", row.RecordID, err)
			}
		}
		records = append(records, Record{
			ID:        row.RecordID,
			Document:  row.Document,
			Metadata:  map[string]any(row.Metadata),
			Embedding: emb,
		})
	}
	return filterRecords(records, where)
}

func (c *gormCollection) Count(ctx context.Context) (int, error) {
	n, err := c.repo.CountByCollection(dbctx.Context{Ctx: ctx}, c.name)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", c.name, err)
	}
	return int(n), nil
}

func (c *gormCollection) Reset(ctx context.Context) error {
	if err := c.repo.DeleteByCollection(dbctx.Context{Ctx: ctx}, c.name); err != nil {
		return fmt.Errorf("reset %s: %w", c.name, err)
	}
	return nil
}
