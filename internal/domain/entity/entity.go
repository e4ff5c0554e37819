// Package entity defines the persistence base shared by every stored record.
// All domain entities embed Entity, which carries identity, tenant ownership
// and audit timestamps.
package entity

import "time"

// Entity is the common base of every persisted record. The ID, TenantID and
// CreatedAt fields are immutable after creation: they are assigned by the
// storage layer and are never part of any update payload. UpdatedAt is
// refreshed by the storage layer on every successful update.
type Entity struct {
	ID        string    `db:"id" json:"id"`
	TenantID  string    `db:"tenant_id" json:"tenant_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
