package domain

import (
	"time"

	"github.com/lib/pq"
)

// Collection groups links for an owner. System collections are created and
// maintained by the analysis worker, one per classification category.
type Collection struct {
	ID      string `db:"id"       json:"id"`
	OwnerID string `db:"owner_id" json:"owner_id"`
	Name    string `db:"name"     json:"name"`
	System  bool   `db:"system"   json:"system"`
	// Category is set only on system collections.
	Category string `db:"category" json:"category,omitempty"`

	// LinkIDs is the collection side of the symmetric link/collection
	// relation; Link.CollectionIDs is the other side.
	LinkIDs pq.StringArray `db:"link_ids" json:"link_ids,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Contains reports whether the collection lists the given link.
func (c *Collection) Contains(linkID string) bool {
	for _, id := range c.LinkIDs {
		if id == linkID {
			return true
		}
	}
	return false
}
