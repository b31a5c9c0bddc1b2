// Package mixin provides embeddable structs carrying the common plugin
// columns.
//
// These mixins are OPTIONAL and provided as convenient starting points.
// Users are encouraged to declare their own fields when the column
// names or types differ.
//
// Available mixins:
//   - CreateTime: created_at, filled on insert
//   - UpdateTime: updated_at, filled on insert and update
//   - Time: Combines CreateTime and UpdateTime
//   - ID: UUID primary key, generated on insert
//   - Version: optimistic lock version
//   - SoftDelete: deleted flag for logical deletion
//   - TenantID: tenant_id column for multi-tenancy
//
// Usage:
//
//	type User struct {
//	    mixin.ID
//	    mixin.Time
//	    mixin.Version
//	    Name string `db:"name"`
//	}
package mixin

import (
	"time"

	"github.com/google/uuid"
)

// CreateTime adds a created_at column filled on insert by
// autofill.AuditHandler.
type CreateTime struct {
	CreatedAt time.Time `db:"created_at" veloxplug:"fill=insert"`
}

// UpdateTime adds an updated_at column refreshed on every insert and
// update by autofill.AuditHandler.
type UpdateTime struct {
	UpdatedAt time.Time `db:"updated_at" veloxplug:"fill=insert_update"`
}

// Time composes CreateTime and UpdateTime.
//
// This is the most common mixin for tracking entity timestamps.
type Time struct {
	CreateTime
	UpdateTime
}

// ID adds a UUID primary key generated on insert.
//
// For custom ID types (e.g., Snowflake IDs), declare the field directly:
//
//	type Order struct {
//	    ID int64 `db:"id"`
//	}
type ID struct {
	ID uuid.UUID `db:"id" veloxplug:"fill=insert"`
}

// Version adds an optimistic lock version column. Set it to 1 before
// the first insert; every versioned update increments it.
type Version struct {
	Version int64 `db:"version" veloxplug:"version"`
}

// SoftDelete adds a deleted flag column for logicdelete.
//
// Entities are not physically deleted: DELETE statements set the flag
// and queries skip flagged rows.
type SoftDelete struct {
	Deleted int `db:"deleted" veloxplug:"logic"`
}

// IsDeleted reports whether the row is flagged as deleted.
func (s SoftDelete) IsDeleted() bool { return s.Deleted != 0 }

// TenantID adds a tenant_id column for multi-tenancy.
type TenantID struct {
	TenantID string `db:"tenant_id"`
}
