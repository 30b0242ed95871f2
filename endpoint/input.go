package endpoint

// Input is the creation and update payload for endpoints.
type Input struct {
	SpaceID     string   `json:"space_id"`
	URL         string   `json:"url"`
	Description string   `json:"description"`
	Collections []string `json:"collections,omitempty"`
	Events      []string `json:"events,omitempty"`
	RateLimit   int      `json:"rate_limit"`

	// Secret is generated on create when empty, unless Unsigned is set.
	Secret   string `json:"secret"`
	Unsigned bool   `json:"unsigned"`
}

// ListOpts configures filtering and pagination for endpoint listing.
type ListOpts struct {
	Offset  int
	Limit   int
	Enabled *bool
}
