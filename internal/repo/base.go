package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/grocerymart-backend/pkg/pagination"
)

// Base gives domain repositories a context-bound handle that can be rebound
// to a transaction.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Bind returns a Base running on tx; a nil tx keeps the current handle.
func (b Base) Bind(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{db: tx}
}

// NewestFirst is a keyset page scope ordered by created_at DESC, id DESC.
// alias qualifies the columns when the query joins ("p", "wi"); a nil cursor
// starts from the newest row.
func NewestFirst(alias string, cursor *pagination.Cursor, limit int) func(*gorm.DB) *gorm.DB {
	createdAt, id := "created_at", "id"
	if alias != "" {
		createdAt, id = alias+".created_at", alias+".id"
	}
	return func(db *gorm.DB) *gorm.DB {
		if cursor != nil {
			db = db.Where("("+createdAt+" < ?) OR ("+createdAt+" = ? AND "+id+" < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
		}
		db = db.Order(createdAt + " DESC").Order(id + " DESC")
		if limit > 0 {
			db = db.Limit(limit)
		}
		return db
	}
}
