package domain

import "time"

// BookmarkRecord is a starred quote together with the bookmaker whose feed it
// came from. Records are created on star and deleted on un-star; they are
// never updated in place.
type BookmarkRecord struct {
	Quote
	Bookmaker string    `json:"bookmaker"`
	CreatedAt time.Time `json:"createdAt"`
}

// Key returns the store key for the record.
func (r BookmarkRecord) Key() string {
	return r.ID.String()
}
