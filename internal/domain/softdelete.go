package domain

import "time"

// SoftDeletable is a capability marker for entities that are hidden rather than
// removed on delete. Implementations carry a unique slug that is rewritten when the
// entity is deleted so the original value can be reused.
type SoftDeletable interface {
	GetSlug() string
	GetDeletedAt() *time.Time
	IsDeleted() bool
}

// IsSoftDeletable reports whether T implements SoftDeletable.
func IsSoftDeletable[T any]() bool {
	var zero T
	_, ok := any(&zero).(SoftDeletable)
	return ok
}
