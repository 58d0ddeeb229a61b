package store

import "time"

// Box is a labelled physical container.
type Box struct {
	// ID is a ULID assigned on creation.
	ID string `json:"id"`

	// Name is the user-facing label, stored in its canonical uppercase form
	// ("A", "KITCHEN", "SHOES 1").
	Name string `json:"name"`

	CreatedAt time.Time `json:"created_at"`
}

// Item is a quantity of one kind of thing stored in exactly one box.
type Item struct {
	ID string `json:"id"`

	// Name is the singular display name ("AA battery").
	Name string `json:"name"`

	// CanonicalName is the lowercase singular form used for comparison
	// and embedding ("aa battery").
	CanonicalName string `json:"canonical_name"`

	// Quantity is always greater than zero. An item whose quantity would
	// reach zero is deleted instead.
	Quantity int `json:"quantity"`

	BoxID string `json:"box_id"`

	CreatedAt time.Time `json:"created_at"`
}
