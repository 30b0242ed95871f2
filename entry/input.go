package entry

import "time"

// Input is the creation payload for an entry. Status may be left empty to
// infer the initial state from PublishedAt.
type Input struct {
	CollectionID string         `json:"collection"`
	Title        string         `json:"title"`
	Slug         string         `json:"slug"`
	Status       Status         `json:"status,omitempty"`
	PublishedAt  *time.Time     `json:"published_at,omitempty"`
	UnpublishAt  *time.Time     `json:"unpublish_at,omitempty"`
	Data         map[string]any `json:"data"`
}

// Patch is a partial update. Nil fields are left untouched; a non-nil Data
// replaces the whole document.
type Patch struct {
	Title       *string        `json:"title,omitempty"`
	Slug        *string        `json:"slug,omitempty"`
	UnpublishAt *time.Time     `json:"unpublish_at,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
}

// ListOpts configures filtering and pagination for entry listing.
type ListOpts struct {
	CollectionID string
	Status       Status
	Offset       int
	Limit        int
}

// ValidationError indicates invalid entry input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "entry validation: " + e.Field + ": " + e.Message
}
