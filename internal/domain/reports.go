package domain

import "time"

// TermStat is an aggregated row for one grouping value (search term,
// category, or destination). Averages are rounded to the nearest integer.
type TermStat struct {
	Term              string `json:"term"`
	Count             int    `json:"count"`
	AvgResults        int    `json:"avgResults"`
	AvgResponseTimeMs int    `json:"avgResponseTime"`
}

// TrendPoint is one UTC calendar day of search activity.
type TrendPoint struct {
	Day               string `json:"date"`
	Searches          int    `json:"searches"`
	AvgResults        int    `json:"avgResults"`
	AvgResponseTimeMs int    `json:"avgResponseTime"`
	UniqueUsers       int    `json:"uniqueUsers"`
}

// PriceRangeStat counts searches sharing a (minPrice, maxPrice) filter pair.
type PriceRangeStat struct {
	MinPrice *float64 `json:"minPrice"`
	MaxPrice *float64 `json:"maxPrice"`
	Count    int      `json:"count"`
}

// GuestStat counts searches by requested guest count.
type GuestStat struct {
	Guests int `json:"guests"`
	Count  int `json:"count"`
}

// ConversionMetrics summarizes how searches turned into clicks and bookings.
// Rates are percentages; both are 0 when there were no searches in range.
type ConversionMetrics struct {
	TotalSearches      int     `json:"totalSearches"`
	WithBookings       int     `json:"searchesWithBookings"`
	WithClicks         int     `json:"searchesWithClicks"`
	AvgClicksPerSearch float64 `json:"avgClicksPerSearch"`
	ConversionRate     float64 `json:"conversionRate"`
	ClickThroughRate   float64 `json:"clickThroughRate"`
}

// DateRange bounds a dashboard query.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// DashboardSummary carries headline numbers for the report.
type DashboardSummary struct {
	TotalSearches int `json:"totalSearches"`
}

// DashboardReport is the full analytics dashboard payload.
type DashboardReport struct {
	DateRange       DateRange         `json:"dateRange"`
	Summary         DashboardSummary  `json:"summary"`
	TopSearchTerms  []TermStat        `json:"topSearchTerms"`
	TopCategories   []TermStat        `json:"topCategories"`
	TopDestinations []TermStat        `json:"topDestinations"`
	SearchTrends    []TrendPoint      `json:"searchTrends"`
	PriceRanges     []PriceRangeStat  `json:"priceRangePreferences"`
	GuestCounts     []GuestStat       `json:"guestPreferences"`
	Conversion      ConversionMetrics `json:"conversionMetrics"`
}

// RealTimeStats covers the trailing hour of search activity.
type RealTimeStats struct {
	Searches    int        `json:"searches"`
	ActiveUsers int        `json:"activeUsers"`
	TopSearches []TermStat `json:"topSearches"`
}
