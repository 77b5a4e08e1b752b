// Package places defines the capability interface shared by the two
// place-matching providers. Provider outcomes are values of a small status
// taxonomy, not errors: a failed lookup is a normal result the scheduler
// records and retries after cooldown.
package places

import (
	"context"
	"encoding/json"
)

type Status string

const (
	StatusSuccess     Status = "success"
	StatusNoMatch     Status = "no_match"
	StatusMissingData Status = "missing_data"
	StatusFailed      Status = "failed"
)

// Match is the top-ranked result of a place search.
type Match struct {
	PlaceID string
	Name    string
}

// Details are the derived fields written by the detail-enrichment track.
// Hours is kept opaque: stored and served as the provider returned it.
type Details struct {
	PlaceID     string
	Rating      *float64
	ReviewCount *int
	Website     *string
	Hours       json.RawMessage
	MapsURL     *string
	PriceLevel  *string
	DineIn      *bool
	Takeout     *bool
	Delivery    *bool
}

// SearchProvider matches a restaurant by name and coordinates.
type SearchProvider interface {
	Search(ctx context.Context, name string, lat, lon *float64) (Status, *Match)
}

// DetailsProvider resolves a second, independent place id from name+address
// and fetches derived details for a known place id.
type DetailsProvider interface {
	FindPlaceID(ctx context.Context, name, address string) (Status, string)
	PlaceDetails(ctx context.Context, placeID string) (*Details, error)
}
