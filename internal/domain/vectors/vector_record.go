package vectors

import (
	"time"

	"gorm.io/datatypes"
)

// VectorRecord is one row of a logical vector collection stored in SQL.
type VectorRecord struct {
	Collection string `gorm:"type:varchar(128);primaryKey" json:"collection"`
	RecordID   string `gorm:"type:varchar(512);primaryKey" json:"record_id"`

	Document  string            `gorm:"type:text;not null;default:''" json:"document"`
	Metadata  datatypes.JSONMap `json:"metadata"`
	Embedding datatypes.JSON    `json:"embedding"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (VectorRecord) TableName() string { return "vector_records" }
