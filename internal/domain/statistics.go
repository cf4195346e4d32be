package domain

// Aggregate rows produced by the statistics queries. Each backend fills
// these; the statistics service derives ratios and rankings from them.

// PropertyTypeCount is one bucket of the property type distribution.
type PropertyTypeCount struct {
	PropertyType PropertyType `json:"propertyType"`
	Count        int64        `json:"count"`
}

// TypeLocationPrice is the average price for a property type in a location.
type TypeLocationPrice struct {
	PropertyType PropertyType `json:"propertyType"`
	Location     Location     `json:"location"`
	AvgPrice     float64      `json:"avgPrice"`
}

// UserListingCount is the number of listings a user has published.
type UserListingCount struct {
	UserID          string `json:"userId"`
	Email           string `json:"email"`
	PropertiesCount int64  `json:"propertiesCount"`
}

// LocationVisits summarizes physical visits in a location.
type LocationVisits struct {
	Location       Location `json:"location"`
	AverageVisits  float64  `json:"averageVisits"`
	CompletedCount int64    `json:"completedCount"`
	Total          int64    `json:"total"`
}

// LocationCount counts listings in a location.
type LocationCount struct {
	Location Location `json:"location"`
	Total    int64    `json:"total"`
}

// DeleteReasonCount counts deleted listings for one reason.
type DeleteReasonCount struct {
	DeleteReason DeleteReason `json:"deleteReason"`
	Total        int64        `json:"total"`
}

// MonthCount counts registrations in a calendar month formatted YYYY-MM.
type MonthCount struct {
	Month string `json:"month"`
	Count int64  `json:"count"`
}

// EngagementTotals sums views and physical visits across all listings.
type EngagementTotals struct {
	TotalViews          int64
	TotalPhysicalVisits int64
}

// Percentage returns part/whole*100, or 0 when whole is 0.
func Percentage(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return part / whole * 100
}
