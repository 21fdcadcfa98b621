package storage

import (
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ImageEntry is a cached result of a product image lookup.
type ImageEntry struct {
	Query     string
	ImageURL  string
	FetchedAt time.Time
}

// lookupKey normalizes a query so that case and surrounding space don't split entries.
func lookupKey(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}
