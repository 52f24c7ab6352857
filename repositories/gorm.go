package repositories

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// upsert inserts row or overwrites the listed columns of an existing row with
// the same id. created_at is never in columns so it survives rewrites.
func upsert(ctx context.Context, db *gorm.DB, row interface{}, columns []string) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(columns),
		}).
		Create(row).Error
}

func readDB(db, readOnlyDB *gorm.DB) *gorm.DB {
	if readOnlyDB == nil {
		return db
	}
	return readOnlyDB
}
