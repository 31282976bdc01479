// Package model defines domain entities for the application.
package model

import "time"

// SortKey selects the ordering of a log listing.
type SortKey string

const (
	SortByTimestamp SortKey = "timestamp"
	SortByTitle     SortKey = "title"
	SortByAuthor    SortKey = "author"
	SortByRating    SortKey = "rating"
)

// ParseSortKey maps a raw sort key to a known ordering.
// Unrecognized values fall back to the default reverse-chronological order.
func ParseSortKey(raw string) SortKey {
	switch SortKey(raw) {
	case SortByTitle, SortByAuthor, SortByRating:
		return SortKey(raw)
	default:
		return SortByTimestamp
	}
}

// LogEntry represents one logged book for an owner.
// Rating, Review and Notes are optional; a nil Rating sorts after all
// rated entries under the rating ordering.
type LogEntry struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	ISBN      int64     `json:"isbn"`
	CreatedAt time.Time `json:"createdAt"`
	Rating    *int      `json:"rating"`
	Review    *string   `json:"review"`
	Notes     *string   `json:"notes"`
}

// StatSummary aggregates an owner's reading history.
// EarliestYear is nil when the owner has no entries; it is never a
// placeholder value.
type StatSummary struct {
	TotalCount   int  `json:"numBooksLogged"`
	EarliestYear *int `json:"earliestLog"`
}
