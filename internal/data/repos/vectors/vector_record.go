package vectors

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/course-rag-backend/internal/domain/vectors"
	"github.com/yungbote/course-rag-backend/internal/pkg/dbctx"
	"github.com/yungbote/course-rag-backend/internal/platform/logger"
)

type VectorRecordRepo interface {
	Upsert(dbc dbctx.Context, rows []*types.VectorRecord) error
	ListByCollection(dbc dbctx.Context, collection string) ([]*types.VectorRecord, error)
	GetByIDs(dbc dbctx.Context, collection string, ids []string) ([]*types.VectorRecord, error)
	CountByCollection(dbc dbctx.Context, collection string) (int64, error)
	DeleteByCollection(dbc dbctx.Context, collection string) error
}

type vectorRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVectorRecordRepo(db *gorm.DB, baseLog *logger.Logger) VectorRecordRepo {
	return &vectorRecordRepo{db: db, log: baseLog.With("repo", "VectorRecordRepo")}
}

func (r *vectorRecordRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

func (r *vectorRecordRepo) Upsert(dbc dbctx.Context, rows []*types.VectorRecord) error {
	if len(rows) == 0 {
		return nil
	}
	return r.tx(dbc).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "collection"}, {Name: "record_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"document",
			"metadata",
			"embedding",
			"updated_at",
		}),
	}).Create(&rows).Error
}

func (r *vectorRecordRepo) ListByCollection(dbc dbctx.Context, collection string) ([]*types.VectorRecord, error) {
	var results []*types.VectorRecord
	if err := r.tx(dbc).
		Where("collection = ?", collection).
		Order("record_id ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *vectorRecordRepo) GetByIDs(dbc dbctx.Context, collection string, ids []string) ([]*types.VectorRecord, error) {
	var results []*types.VectorRecord
	if len(ids) == 0 {
		return results, nil
	}
	if err := r.tx(dbc).
		Where("collection = ? AND record_id IN ?", collection, ids).
		Order("record_id ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *vectorRecordRepo) CountByCollection(dbc dbctx.Context, collection string) (int64, error) {
	var n int64
	if err := r.tx(dbc).
		Model(&types.VectorRecord{}).
		Where("collection = ?", collection).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *vectorRecordRepo) DeleteByCollection(dbc dbctx.Context, collection string) error {
	return r.tx(dbc).
		Where("collection = ?", collection).
		Delete(&types.VectorRecord{}).Error
}
