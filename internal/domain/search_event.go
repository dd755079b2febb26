// Package domain holds the core data types shared by the storage, service,
// and handler layers.
package domain

import "time"

// SearchEvent is a single recorded search. Nullable fields use pointers so
// anonymous searches and absent filters survive a round trip to storage.
type SearchEvent struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	UserID         *string   `json:"userId,omitempty"`
	SearchTerm     *string   `json:"searchTerm,omitempty"`
	Category       *string   `json:"category,omitempty"`
	Destination    *string   `json:"destination,omitempty"`
	MinPrice       *float64  `json:"minPrice,omitempty"`
	MaxPrice       *float64  `json:"maxPrice,omitempty"`
	Guests         *int      `json:"guests,omitempty"`
	ResultsCount   int       `json:"resultsCount"`
	ResponseTimeMs int       `json:"responseTime"`
	BookingMade    bool      `json:"bookingMade"`
	BookingID      *string   `json:"bookingId,omitempty"`
}

// ClickedDestination is one appended click on a search result.
// The click list for a search only grows; entries are never rewritten.
type ClickedDestination struct {
	DestinationID string    `json:"destinationId"`
	ClickedAt     time.Time `json:"clickedAt"`
}
