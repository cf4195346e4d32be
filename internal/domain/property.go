package domain

import (
	"errors"
	"time"
)

// ListingType tells whether a property is offered for sale or rent.
type ListingType string

const (
	ListingTypeSale ListingType = "sale"
	ListingTypeRent ListingType = "rent"
)

// Valid reports whether t is a known listing type.
func (t ListingType) Valid() bool {
	return t == ListingTypeSale || t == ListingTypeRent
}

// PropertyType classifies the building.
type PropertyType string

const (
	PropertyTypeHouse      PropertyType = "House"
	PropertyTypeApartment  PropertyType = "Apartment"
	PropertyTypeLand       PropertyType = "Land"
	PropertyTypeCommercial PropertyType = "Commercial"
)

// PropertyTypes lists every property type in display order.
var PropertyTypes = []PropertyType{
	PropertyTypeHouse,
	PropertyTypeApartment,
	PropertyTypeLand,
	PropertyTypeCommercial,
}

// Valid reports whether t is a known property type.
func (t PropertyType) Valid() bool {
	for _, candidate := range PropertyTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// PropertyStatus is the listing lifecycle state.
type PropertyStatus string

const (
	PropertyStatusActive  PropertyStatus = "active"
	PropertyStatusDeleted PropertyStatus = "deleted"
)

// DeleteReason records why a listing was taken down.
type DeleteReason string

const (
	DeleteReasonCompleted DeleteReason = "completed"
	DeleteReasonCancelled DeleteReason = "cancelled"
	DeleteReasonOther     DeleteReason = "other"
)

// DeleteReasons lists every delete reason.
var DeleteReasons = []DeleteReason{
	DeleteReasonCompleted,
	DeleteReasonCancelled,
	DeleteReasonOther,
}

// Valid reports whether r is a known delete reason.
func (r DeleteReason) Valid() bool {
	for _, candidate := range DeleteReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// ErrAlreadyDeleted is returned when a lifecycle change targets a deleted listing.
var ErrAlreadyDeleted = errors.New("property already deleted")

// Property is a published real-estate listing.
type Property struct {
	ID             string
	UserID         string
	Title          string
	Description    string
	Price          float64
	Address        Address
	Bedrooms       int
	Bathrooms      float64
	SquareMeters   float64
	Images         []string
	Type           ListingType
	PropertyType   PropertyType
	ContactNumber  string
	IsFeatured     bool
	Views          int64
	PhysicalVisits int64
	Status         PropertyStatus
	DeletedAt      *time.Time
	DeleteReason   *DeleteReason
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsActive reports whether the listing is publicly visible.
func (p *Property) IsActive() bool {
	return p.Status == PropertyStatusActive
}

// OwnedBy reports whether userID owns the listing.
func (p *Property) OwnedBy(userID string) bool {
	return userID != "" && p.UserID == userID
}

// SoftDelete moves an active listing to deleted. deletedAt and deleteReason
// are only ever set together with the status change.
func (p *Property) SoftDelete(reason DeleteReason, at time.Time) error {
	if p.Status == PropertyStatusDeleted {
		return ErrAlreadyDeleted
	}
	if reason == "" {
		reason = DeleteReasonOther
	}
	p.Status = PropertyStatusDeleted
	p.DeletedAt = &at
	p.DeleteReason = &reason
	return nil
}

// ApplyDefaults fills enum defaults for fields left empty.
func (p *Property) ApplyDefaults() {
	if p.Type == "" {
		p.Type = ListingTypeSale
	}
	if p.PropertyType == "" {
		p.PropertyType = PropertyTypeHouse
	}
	if p.Status == "" {
		p.Status = PropertyStatusActive
	}
	if p.Images == nil {
		p.Images = []string{}
	}
}
