package dto

import (
	"time"

	"github.com/casaplus/listing-service/internal/domain"
)

// PropertyResponse is the JSON shape of a listing.
type PropertyResponse struct {
	ID             string                `json:"id"`
	Title          string                `json:"title"`
	Description    string                `json:"description"`
	Price          float64               `json:"price"`
	CalleYNumero   string                `json:"calleYNumero"`
	Colonia        string                `json:"colonia"`
	CodigoPostal   string                `json:"codigoPostal"`
	Estado         string                `json:"estado"`
	Municipio      string                `json:"municipio"`
	Bedrooms       int                   `json:"bedrooms"`
	Bathrooms      float64               `json:"bathrooms"`
	SquareMeters   float64               `json:"squaremeters"`
	Images         []string              `json:"images"`
	Type           domain.ListingType    `json:"type"`
	PropertyType   domain.PropertyType   `json:"propertyType"`
	ContactNumber  string                `json:"contactNumber"`
	IsFeatured     bool                  `json:"isFeatured"`
	User           string                `json:"user"`
	Views          int64                 `json:"views"`
	PhysicalVisits int64                 `json:"physicalVisits"`
	Status         domain.PropertyStatus `json:"status"`
	DeletedAt      *time.Time            `json:"deletedAt"`
	DeleteReason   *domain.DeleteReason  `json:"deleteReason"`
	CreatedAt      time.Time             `json:"createdAt"`
	UpdatedAt      time.Time             `json:"updatedAt"`
}

// PropertyUpdateRequest is the JSON body of a listing update. Absent fields
// stay unchanged.
type PropertyUpdateRequest struct {
	Title         *string              `json:"title"`
	Description   *string              `json:"description"`
	Price         *float64             `json:"price"`
	CalleYNumero  *string              `json:"calleYNumero"`
	Colonia       *string              `json:"colonia"`
	CodigoPostal  *string              `json:"codigoPostal"`
	Estado        *string              `json:"estado"`
	Municipio     *string              `json:"municipio"`
	Bedrooms      *int                 `json:"bedrooms"`
	Bathrooms     *float64             `json:"bathrooms"`
	SquareMeters  *float64             `json:"squaremeters"`
	Type          *domain.ListingType  `json:"type"`
	PropertyType  *domain.PropertyType `json:"propertyType"`
	ContactNumber *string              `json:"contactNumber"`
	IsFeatured    *bool                `json:"isFeatured"`
}

// DeletePropertyRequest is the optional body of a soft delete.
type DeletePropertyRequest struct {
	DeleteReason string `json:"deleteReason"`
}

// PhysicalVisitsRequest overwrites the visit counter.
type PhysicalVisitsRequest struct {
	PhysicalVisits *int64 `json:"physicalVisits"`
}
