package memory

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/casaplus/listing-service/internal/domain"
	"github.com/casaplus/listing-service/internal/repository"
)

type propertyRepository struct {
	db *DB
}

func (r *propertyRepository) Create(_ context.Context, p *domain.Property) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.users[p.UserID]; !ok {
		return repository.ErrNotFound
	}
	p.ApplyDefaults()
	now := r.db.now()
	p.ID = uuid.NewString()
	p.CreatedAt = now
	p.UpdatedAt = now

	r.db.properties[p.ID] = cloneProperty(p)
	r.db.propertyOrder = append(r.db.propertyOrder, p.ID)
	return nil
}

func (r *propertyRepository) Update(_ context.Context, p *domain.Property) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	stored, ok := r.db.properties[p.ID]
	if !ok {
		return repository.ErrNotFound
	}
	stored.Title = p.Title
	stored.Description = p.Description
	stored.Price = p.Price
	stored.Address = p.Address
	stored.Bedrooms = p.Bedrooms
	stored.Bathrooms = p.Bathrooms
	stored.SquareMeters = p.SquareMeters
	stored.Images = append([]string(nil), p.Images...)
	stored.Type = p.Type
	stored.PropertyType = p.PropertyType
	stored.ContactNumber = p.ContactNumber
	stored.IsFeatured = p.IsFeatured
	stored.UpdatedAt = r.db.now()

	p.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *propertyRepository) GetByID(_ context.Context, id string) (*domain.Property, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	p, ok := r.db.properties[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneProperty(p), nil
}

func (r *propertyRepository) IncrementViews(_ context.Context, id string) (*domain.Property, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	p, ok := r.db.properties[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p.Views++
	return cloneProperty(p), nil
}

func (r *propertyRepository) SetPhysicalVisits(_ context.Context, id string, count int64) (*domain.Property, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	p, ok := r.db.properties[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p.PhysicalVisits = count
	p.UpdatedAt = r.db.now()
	return cloneProperty(p), nil
}

func (r *propertyRepository) MarkDeleted(_ context.Context, id string, reason domain.DeleteReason, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	p, ok := r.db.properties[id]
	if !ok || !p.IsActive() {
		return repository.ErrNotFound
	}
	if err := p.SoftDelete(reason, at); err != nil {
		return err
	}
	p.UpdatedAt = r.db.now()
	return nil
}

func (r *propertyRepository) List(_ context.Context, filter repository.PropertyFilter) ([]domain.Property, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	result := []domain.Property{}
	// newest first
	for i := len(r.db.propertyOrder) - 1; i >= 0; i-- {
		p := r.db.properties[r.db.propertyOrder[i]]
		if matches(p, filter) {
			result = append(result, *cloneProperty(p))
		}
	}

	if filter.Limit > 0 {
		start := filter.Offset
		if start < 0 {
			start = 0
		}
		if start > len(result) {
			start = len(result)
		}
		end := start + filter.Limit
		if end > len(result) {
			end = len(result)
		}
		result = result[start:end]
	}
	return result, nil
}

func matches(p *domain.Property, f repository.PropertyFilter) bool {
	if len(f.Statuses) > 0 {
		found := false
		for _, status := range f.Statuses {
			if p.Status == status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Type != nil && p.Type != *f.Type {
		return false
	}
	if f.PropertyType != nil && p.PropertyType != *f.PropertyType {
		return false
	}
	if f.OwnerID != nil && p.UserID != *f.OwnerID {
		return false
	}
	if term := strings.TrimSpace(f.Location); term != "" {
		a := p.Address
		if !containsFold(a.CalleYNumero, term) &&
			!containsFold(a.Colonia, term) &&
			!containsFold(a.CodigoPostal, term) &&
			!containsFold(a.Estado, term) &&
			!containsFold(a.Municipio, term) {
			return false
		}
	}
	if term := strings.TrimSpace(f.Estado); term != "" && !containsFold(p.Address.Estado, term) {
		return false
	}
	if term := strings.TrimSpace(f.Municipio); term != "" && !containsFold(p.Address.Municipio, term) {
		return false
	}
	if f.MinPrice != nil && p.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && p.Price > *f.MaxPrice {
		return false
	}
	if f.IsFeatured != nil && p.IsFeatured != *f.IsFeatured {
		return false
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
