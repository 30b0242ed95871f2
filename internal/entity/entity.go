// Package entity holds the timestamps shared by persisted press records.
package entity

import "time"

// Entity is embedded by records that track creation and modification time.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns an Entity stamped with the current UTC time.
func New() Entity {
	return At(time.Now())
}

// At returns an Entity stamped with t in UTC.
func At(t time.Time) Entity {
	t = t.UTC()
	return Entity{CreatedAt: t, UpdatedAt: t}
}

// Touch advances UpdatedAt to t.
func (e *Entity) Touch(t time.Time) {
	e.UpdatedAt = t.UTC()
}
