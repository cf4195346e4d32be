package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/casaplus/listing-service/internal/config"
	"github.com/casaplus/listing-service/internal/domain"
	"github.com/casaplus/listing-service/internal/events"
	"github.com/casaplus/listing-service/internal/observability"
	"github.com/casaplus/listing-service/internal/repository"
	"github.com/casaplus/listing-service/internal/storage"
	apperrors "github.com/casaplus/listing-service/pkg/util"
)

const (
	maxPageSize = 100
	// pages starting past maxOffset are empty in every backend
	maxOffset = math.MaxInt32
	// anyValue disables the type and propertyType filters
	anyValue = "all"
)

// PropertyService coordinates listing workflows.
type PropertyService struct {
	properties repository.PropertyRepository
	images     storage.ImageStore
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	upload     config.UploadConfig
	now        func() time.Time
}

// PropertyDependencies bundles collaborators for the listing service.
type PropertyDependencies struct {
	PropertyRepo repository.PropertyRepository
	ImageStore   storage.ImageStore
	Dispatcher   events.Dispatcher
	Metrics      *observability.Metrics
	Logger       *zap.Logger
}

// ImageUpload is one uploaded file awaiting storage.
type ImageUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// PropertyInput carries the fields of a new listing. Nil numeric fields are
// treated as missing.
type PropertyInput struct {
	Title         string
	Description   string
	Price         *float64
	CalleYNumero  string
	Colonia       string
	CodigoPostal  string
	Estado        string
	Municipio     string
	Bedrooms      *int
	Bathrooms     *float64
	SquareMeters  *float64
	Type          domain.ListingType
	PropertyType  domain.PropertyType
	ContactNumber string
	IsFeatured    bool
}

// PropertyPatch lists the mutable fields of a listing; nil means unchanged.
type PropertyPatch struct {
	Title         *string
	Description   *string
	Price         *float64
	CalleYNumero  *string
	Colonia       *string
	CodigoPostal  *string
	Estado        *string
	Municipio     *string
	Bedrooms      *int
	Bathrooms     *float64
	SquareMeters  *float64
	Type          *domain.ListingType
	PropertyType  *domain.PropertyType
	ContactNumber *string
	IsFeatured    *bool
}

// PropertyQuery describes a public listing search.
type PropertyQuery struct {
	Type         string
	PropertyType string
	Location     string
	Estado       string
	Municipio    string
	MinPrice     *float64
	MaxPrice     *float64
	IsFeatured   *bool
	Page         int
	PageSize     int
}

// NewPropertyService constructs the service.
func NewPropertyService(cfg config.Config, deps PropertyDependencies) *PropertyService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PropertyService{
		properties: deps.PropertyRepo,
		images:     deps.ImageStore,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		upload:     cfg.Upload,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Create validates input, stores the images and persists a listing owned by ownerID.
func (s *PropertyService) Create(ctx context.Context, ownerID string, input PropertyInput, images []ImageUpload) (*domain.Property, error) {
	property, err := buildProperty(input)
	if err != nil {
		return nil, err
	}
	if err := s.validateImages(images, true); err != nil {
		return nil, err
	}

	urls, err := s.storeImages(ctx, images)
	if err != nil {
		return nil, err
	}
	property.Images = urls
	property.UserID = ownerID

	if err := s.properties.Create(ctx, property); err != nil {
		s.discardImages(ctx, urls)
		return nil, mapRepoError(err, "user")
	}

	s.metrics.RecordListingEvent(string(events.EventPropertyCreated))
	s.publish(ctx, events.New(events.EventPropertyCreated, property.ID, ownerID, events.PropertyCreatedPayload{
		Title:        property.Title,
		Type:         property.Type,
		PropertyType: property.PropertyType,
		Location:     property.Address.Location(),
		Images:       len(property.Images),
	}))
	return property, nil
}

// Get returns a listing and counts the read as one view.
func (s *PropertyService) Get(ctx context.Context, id string) (*domain.Property, error) {
	property, err := s.properties.IncrementViews(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "property")
	}
	s.publish(ctx, events.New(events.EventPropertyViewed, property.ID, "", events.PropertyViewedPayload{
		Views: property.Views,
	}))
	return property, nil
}

// List searches active listings.
func (s *PropertyService) List(ctx context.Context, query PropertyQuery) ([]domain.Property, error) {
	filter, err := buildFilter(query)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, filter)
}

// ListFeatured returns active featured listings.
func (s *PropertyService) ListFeatured(ctx context.Context) ([]domain.Property, error) {
	featured := true
	return s.list(ctx, repository.PropertyFilter{
		Statuses:   []domain.PropertyStatus{domain.PropertyStatusActive},
		IsFeatured: &featured,
	})
}

// ListDeleted returns soft-deleted listings.
func (s *PropertyService) ListDeleted(ctx context.Context) ([]domain.Property, error) {
	return s.list(ctx, repository.PropertyFilter{
		Statuses: []domain.PropertyStatus{domain.PropertyStatusDeleted},
	})
}

// ListByOwner returns every listing of userID regardless of status.
func (s *PropertyService) ListByOwner(ctx context.Context, userID string) ([]domain.Property, error) {
	return s.list(ctx, repository.PropertyFilter{OwnerID: &userID})
}

func (s *PropertyService) list(ctx context.Context, filter repository.PropertyFilter) ([]domain.Property, error) {
	properties, err := s.properties.List(ctx, filter)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return properties, nil
}

// Update applies patch to a listing owned by requesterID. Ownership is
// checked before the payload is looked at. New images replace the old set.
func (s *PropertyService) Update(ctx context.Context, id, requesterID string, patch PropertyPatch, images []ImageUpload) (*domain.Property, error) {
	property, err := s.loadOwned(ctx, id, requesterID)
	if err != nil {
		return nil, err
	}
	if !property.IsActive() {
		return nil, apperrors.NewConflict("property is deleted", map[string]any{"id": id})
	}

	fields, err := applyPatch(property, patch)
	if err != nil {
		return nil, err
	}

	var (
		previousImages []string
		newImages      []string
	)
	if len(images) > 0 {
		if err := s.validateImages(images, false); err != nil {
			return nil, err
		}
		newImages, err = s.storeImages(ctx, images)
		if err != nil {
			return nil, err
		}
		previousImages = property.Images
		property.Images = newImages
		fields = append(fields, "images")
	}

	if err := s.properties.Update(ctx, property); err != nil {
		s.discardImages(ctx, newImages)
		return nil, mapRepoError(err, "property")
	}
	s.discardImages(ctx, previousImages)

	s.metrics.RecordListingEvent(string(events.EventPropertyUpdated))
	s.publish(ctx, events.New(events.EventPropertyUpdated, property.ID, requesterID, events.PropertyUpdatedPayload{
		Fields:        fields,
		ImagesChanged: len(newImages) > 0,
	}))
	return property, nil
}

// SoftDelete marks a listing owned by requesterID as deleted with reason.
// An empty reason is recorded as other.
func (s *PropertyService) SoftDelete(ctx context.Context, id, requesterID, reason string) (*domain.Property, error) {
	property, err := s.loadOwned(ctx, id, requesterID)
	if err != nil {
		return nil, err
	}

	deleteReason := domain.DeleteReason(strings.TrimSpace(reason))
	if deleteReason == "" {
		deleteReason = domain.DeleteReasonOther
	}
	if !deleteReason.Valid() {
		return nil, apperrors.NewValidationError("invalid delete reason", map[string]any{
			"field":   "deleteReason",
			"allowed": domain.DeleteReasons,
		})
	}
	if !property.IsActive() {
		return nil, apperrors.NewConflict("property already deleted", map[string]any{"id": id})
	}

	at := s.now()
	if err := s.properties.MarkDeleted(ctx, id, deleteReason, at); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// deleted concurrently after the read above
			return nil, apperrors.NewConflict("property already deleted", map[string]any{"id": id})
		}
		return nil, apperrors.NewInternalError(err)
	}
	if err := property.SoftDelete(deleteReason, at); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.metrics.RecordListingEvent(string(events.EventPropertyDeleted))
	s.publish(ctx, events.New(events.EventPropertyDeleted, id, requesterID, events.PropertyDeletedPayload{
		Reason: deleteReason,
	}))
	return property, nil
}

// UpdatePhysicalVisits overwrites the physical visit counter. Any
// authenticated caller may record visits; actorID is kept for the audit trail.
func (s *PropertyService) UpdatePhysicalVisits(ctx context.Context, id, actorID string, count int64) (*domain.Property, error) {
	if count < 0 {
		return nil, apperrors.NewValidationError("physicalVisits must be zero or greater", map[string]any{"field": "physicalVisits"})
	}

	current, err := s.properties.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "property")
	}
	updated, err := s.properties.SetPhysicalVisits(ctx, id, count)
	if err != nil {
		return nil, mapRepoError(err, "property")
	}

	s.logger.Info("physical visits updated",
		zap.String("property_id", id),
		zap.String("actor_id", actorID),
		zap.Int64("previous", current.PhysicalVisits),
		zap.Int64("current", count))
	s.metrics.RecordListingEvent(string(events.EventPhysicalVisitsUpdated))
	s.publish(ctx, events.New(events.EventPhysicalVisitsUpdated, id, actorID, events.PhysicalVisitsUpdatedPayload{
		Previous: current.PhysicalVisits,
		Current:  count,
	}))
	return updated, nil
}

// AuthorizeOwner reports NotFound or Forbidden for requesterID on listing id
// without reading any request payload.
func (s *PropertyService) AuthorizeOwner(ctx context.Context, id, requesterID string) error {
	_, err := s.loadOwned(ctx, id, requesterID)
	return err
}

func (s *PropertyService) loadOwned(ctx context.Context, id, requesterID string) (*domain.Property, error) {
	property, err := s.properties.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "property")
	}
	if !property.OwnedBy(requesterID) {
		return nil, apperrors.NewForbidden("only the owner can modify this property")
	}
	return property, nil
}

func (s *PropertyService) validateImages(images []ImageUpload, required bool) error {
	maxFiles := s.upload.MaxFiles
	if maxFiles <= 0 {
		maxFiles = 5
	}
	if required && len(images) == 0 {
		return apperrors.NewValidationError("at least one image is required", map[string]any{"field": "images"})
	}
	if len(images) > maxFiles {
		return apperrors.NewValidationError(fmt.Sprintf("at most %d images are allowed", maxFiles), map[string]any{"field": "images"})
	}
	for _, img := range images {
		if !strings.HasPrefix(strings.ToLower(img.ContentType), "image/") {
			return apperrors.NewValidationError("only image files are allowed", map[string]any{"file": img.Filename})
		}
		if img.Size <= 0 {
			return apperrors.NewValidationError("image file is empty", map[string]any{"file": img.Filename})
		}
		if s.upload.MaxFileBytes > 0 && img.Size > s.upload.MaxFileBytes {
			return apperrors.NewValidationError("image exceeds the maximum file size", map[string]any{
				"file":     img.Filename,
				"maxBytes": s.upload.MaxFileBytes,
			})
		}
	}
	return nil
}

// storeImages saves every upload or none of them.
func (s *PropertyService) storeImages(ctx context.Context, images []ImageUpload) ([]string, error) {
	urls := make([]string, 0, len(images))
	for _, img := range images {
		url, err := s.storeImage(ctx, img)
		if err != nil {
			s.discardImages(ctx, urls)
			return nil, apperrors.NewInternalError(fmt.Errorf("store image %s: %w", img.Filename, err))
		}
		urls = append(urls, url)
	}
	return urls, nil
}

func (s *PropertyService) storeImage(ctx context.Context, img ImageUpload) (string, error) {
	body, err := img.Open()
	if err != nil {
		return "", err
	}
	defer body.Close()
	return s.images.Save(ctx, storage.NewKey(img.Filename), body, img.Size, img.ContentType)
}

func (s *PropertyService) discardImages(ctx context.Context, urls []string) {
	for _, url := range urls {
		if err := s.images.Delete(ctx, url); err != nil {
			s.logger.Warn("image cleanup failed", zap.String("url", url), zap.Error(err))
		}
	}
}

func (s *PropertyService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func buildProperty(input PropertyInput) (*domain.Property, error) {
	p := &domain.Property{
		Title:         strings.TrimSpace(input.Title),
		Description:   strings.TrimSpace(input.Description),
		ContactNumber: strings.TrimSpace(input.ContactNumber),
		Type:          input.Type,
		PropertyType:  input.PropertyType,
		IsFeatured:    input.IsFeatured,
		Address: domain.Address{
			CalleYNumero: input.CalleYNumero,
			Colonia:      input.Colonia,
			CodigoPostal: input.CodigoPostal,
			Estado:       input.Estado,
			Municipio:    input.Municipio,
		},
	}

	missing := []string{}
	if p.Title == "" {
		missing = append(missing, "title")
	}
	if p.Description == "" {
		missing = append(missing, "description")
	}
	if input.Price == nil {
		missing = append(missing, "price")
	}
	for name, value := range map[string]string{
		domain.FieldCalleYNumero: input.CalleYNumero,
		domain.FieldColonia:      input.Colonia,
		domain.FieldCodigoPostal: input.CodigoPostal,
		domain.FieldEstado:       input.Estado,
		domain.FieldMunicipio:    input.Municipio,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	if input.Bedrooms == nil {
		missing = append(missing, "bedrooms")
	}
	if input.Bathrooms == nil {
		missing = append(missing, "bathrooms")
	}
	if input.SquareMeters == nil {
		missing = append(missing, "squaremeters")
	}
	if p.ContactNumber == "" {
		missing = append(missing, "contactNumber")
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, apperrors.NewValidationError("missing required fields", map[string]any{"fields": missing})
	}

	p.Price = *input.Price
	p.Bedrooms = *input.Bedrooms
	p.Bathrooms = *input.Bathrooms
	p.SquareMeters = *input.SquareMeters
	p.ApplyDefaults()

	if err := validateListing(p); err != nil {
		return nil, err
	}
	return p, nil
}

// applyPatch copies the set fields of patch onto p and re-validates it. It
// returns the names of the fields that were present.
func applyPatch(p *domain.Property, patch PropertyPatch) ([]string, error) {
	fields := []string{}
	setString := func(name string, src *string, dst *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
			fields = append(fields, name)
		}
	}

	setString("title", patch.Title, &p.Title)
	setString("description", patch.Description, &p.Description)
	setString("contactNumber", patch.ContactNumber, &p.ContactNumber)
	setString(domain.FieldCalleYNumero, patch.CalleYNumero, &p.Address.CalleYNumero)
	setString(domain.FieldColonia, patch.Colonia, &p.Address.Colonia)
	setString(domain.FieldCodigoPostal, patch.CodigoPostal, &p.Address.CodigoPostal)
	setString(domain.FieldEstado, patch.Estado, &p.Address.Estado)
	setString(domain.FieldMunicipio, patch.Municipio, &p.Address.Municipio)

	if patch.Price != nil {
		p.Price = *patch.Price
		fields = append(fields, "price")
	}
	if patch.Bedrooms != nil {
		p.Bedrooms = *patch.Bedrooms
		fields = append(fields, "bedrooms")
	}
	if patch.Bathrooms != nil {
		p.Bathrooms = *patch.Bathrooms
		fields = append(fields, "bathrooms")
	}
	if patch.SquareMeters != nil {
		p.SquareMeters = *patch.SquareMeters
		fields = append(fields, "squaremeters")
	}
	if patch.Type != nil {
		p.Type = *patch.Type
		fields = append(fields, "type")
	}
	if patch.PropertyType != nil {
		p.PropertyType = *patch.PropertyType
		fields = append(fields, "propertyType")
	}
	if patch.IsFeatured != nil {
		p.IsFeatured = *patch.IsFeatured
		fields = append(fields, "isFeatured")
	}

	empty := []string{}
	if p.Title == "" {
		empty = append(empty, "title")
	}
	if p.Description == "" {
		empty = append(empty, "description")
	}
	if p.ContactNumber == "" {
		empty = append(empty, "contactNumber")
	}
	if len(empty) > 0 {
		return nil, apperrors.NewValidationError("required fields cannot be empty", map[string]any{"fields": empty})
	}
	if err := validateListing(p); err != nil {
		return nil, err
	}
	return fields, nil
}

// validateListing checks enums and numeric bounds and normalizes the address.
func validateListing(p *domain.Property) error {
	if !p.Type.Valid() {
		return apperrors.NewValidationError("invalid type", map[string]any{"field": "type", "allowed": []domain.ListingType{domain.ListingTypeSale, domain.ListingTypeRent}})
	}
	if !p.PropertyType.Valid() {
		return apperrors.NewValidationError("invalid propertyType", map[string]any{"field": "propertyType", "allowed": domain.PropertyTypes})
	}
	if invalidNumber(p.Price) || p.Price < 0 {
		return apperrors.NewValidationError("price must be zero or greater", map[string]any{"field": "price"})
	}
	if p.Bedrooms < 0 {
		return apperrors.NewValidationError("bedrooms must be zero or greater", map[string]any{"field": "bedrooms"})
	}
	if invalidNumber(p.Bathrooms) || p.Bathrooms < 0 {
		return apperrors.NewValidationError("bathrooms must be zero or greater", map[string]any{"field": "bathrooms"})
	}
	if invalidNumber(p.SquareMeters) || p.SquareMeters <= 0 {
		return apperrors.NewValidationError("squaremeters must be greater than zero", map[string]any{"field": "squaremeters"})
	}

	p.Address = p.Address.Normalize()
	if invalid := p.Address.InvalidFields(); len(invalid) > 0 {
		return apperrors.NewValidationError(fmt.Sprintf("invalid %s format", invalid[0]), map[string]any{"fields": invalid})
	}
	return nil
}

func buildFilter(query PropertyQuery) (repository.PropertyFilter, error) {
	filter := repository.PropertyFilter{
		Statuses:   []domain.PropertyStatus{domain.PropertyStatusActive},
		Location:   domain.NormalizeAddressText(query.Location),
		Estado:     domain.NormalizeAddressText(query.Estado),
		Municipio:  domain.NormalizeAddressText(query.Municipio),
		MinPrice:   query.MinPrice,
		MaxPrice:   query.MaxPrice,
		IsFeatured: query.IsFeatured,
	}

	if t := strings.TrimSpace(query.Type); t != "" && !strings.EqualFold(t, anyValue) {
		listingType := domain.ListingType(t)
		if !listingType.Valid() {
			return filter, apperrors.NewValidationError("invalid type", map[string]any{"field": "type"})
		}
		filter.Type = &listingType
	}
	if t := strings.TrimSpace(query.PropertyType); t != "" && !strings.EqualFold(t, anyValue) {
		propertyType := domain.PropertyType(t)
		if !propertyType.Valid() {
			return filter, apperrors.NewValidationError("invalid propertyType", map[string]any{"field": "propertyType"})
		}
		filter.PropertyType = &propertyType
	}
	if filter.MinPrice != nil && filter.MaxPrice != nil && *filter.MinPrice > *filter.MaxPrice {
		return filter, apperrors.NewValidationError("minPrice cannot exceed maxPrice", map[string]any{"fields": []string{"minPrice", "maxPrice"}})
	}

	if query.PageSize > 0 {
		pageSize := query.PageSize
		if pageSize > maxPageSize {
			pageSize = maxPageSize
		}
		page := query.Page
		if page < 1 {
			page = 1
		}
		filter.Limit = pageSize
		if page-1 > maxOffset/pageSize {
			filter.Offset = maxOffset
		} else {
			filter.Offset = (page - 1) * pageSize
		}
	}
	return filter, nil
}

func mapRepoError(err error, resource string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound(resource, nil)
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.NewConflict(resource+" already exists", nil)
	default:
		return apperrors.NewInternalError(err)
	}
}

func invalidNumber(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}
