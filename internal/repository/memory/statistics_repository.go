package memory

import (
	"context"
	"sort"

	"github.com/casaplus/listing-service/internal/domain"
)

type statisticsRepository struct {
	db *DB
}

// snapshot returns copies of all listings in insertion order.
func (r *statisticsRepository) snapshot() []domain.Property {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := make([]domain.Property, 0, len(r.db.propertyOrder))
	for _, id := range r.db.propertyOrder {
		out = append(out, *cloneProperty(r.db.properties[id]))
	}
	return out
}

func (r *statisticsRepository) CountUsers(_ context.Context) (int64, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return int64(len(r.db.users)), nil
}

func (r *statisticsRepository) CountByStatus(_ context.Context) (map[domain.PropertyStatus]int64, error) {
	counts := map[domain.PropertyStatus]int64{
		domain.PropertyStatusActive:  0,
		domain.PropertyStatusDeleted: 0,
	}
	for _, p := range r.snapshot() {
		counts[p.Status]++
	}
	return counts, nil
}

func (r *statisticsRepository) PropertyTypeDistribution(_ context.Context) ([]domain.PropertyTypeCount, error) {
	counts := map[domain.PropertyType]int64{}
	for _, p := range r.snapshot() {
		counts[p.PropertyType]++
	}
	result := make([]domain.PropertyTypeCount, 0, len(counts))
	for t, n := range counts {
		result = append(result, domain.PropertyTypeCount{PropertyType: t, Count: n})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].PropertyType < result[j].PropertyType
	})
	return result, nil
}

func (r *statisticsRepository) AvgPriceByTypeAndLocation(_ context.Context) ([]domain.TypeLocationPrice, error) {
	type key struct {
		t   domain.PropertyType
		loc domain.Location
	}
	sums := map[key]float64{}
	counts := map[key]int{}
	for _, p := range r.snapshot() {
		k := key{t: p.PropertyType, loc: p.Address.Location()}
		sums[k] += p.Price
		counts[k]++
	}
	result := make([]domain.TypeLocationPrice, 0, len(sums))
	for k, sum := range sums {
		result = append(result, domain.TypeLocationPrice{
			PropertyType: k.t,
			Location:     k.loc,
			AvgPrice:     sum / float64(counts[k]),
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].PropertyType != result[j].PropertyType {
			return result[i].PropertyType < result[j].PropertyType
		}
		return locationLess(result[i].Location, result[j].Location)
	})
	return result, nil
}

func (r *statisticsRepository) ListingsPerUser(_ context.Context) ([]domain.UserListingCount, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	counts := map[string]int64{}
	for _, p := range r.db.properties {
		counts[p.UserID]++
	}
	result := make([]domain.UserListingCount, 0, len(r.db.userOrder))
	for _, id := range r.db.userOrder {
		u := r.db.users[id]
		result = append(result, domain.UserListingCount{
			UserID:          u.ID,
			Email:           u.Email,
			PropertiesCount: counts[u.ID],
		})
	}
	return result, nil
}

func (r *statisticsRepository) MostViewed(_ context.Context, limit int) ([]domain.Property, error) {
	active := []domain.Property{}
	for _, p := range r.snapshot() {
		if p.IsActive() {
			active = append(active, p)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Views != active[j].Views {
			return active[i].Views > active[j].Views
		}
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})
	if limit > 0 && len(active) > limit {
		active = active[:limit]
	}
	return active, nil
}

func (r *statisticsRepository) AverageTimeOnMarket(_ context.Context, reason domain.DeleteReason) (float64, error) {
	var (
		total float64
		n     int
	)
	for _, p := range r.snapshot() {
		if p.IsActive() || p.DeletedAt == nil || p.DeleteReason == nil || *p.DeleteReason != reason {
			continue
		}
		total += float64(p.DeletedAt.Sub(p.CreatedAt).Milliseconds())
		n++
	}
	if n == 0 {
		return 0, nil
	}
	return total / float64(n), nil
}

func (r *statisticsRepository) VisitsByLocation(_ context.Context) ([]domain.LocationVisits, error) {
	type acc struct {
		visits    int64
		completed int64
		total     int64
	}
	byLocation := map[domain.Location]*acc{}
	for _, p := range r.snapshot() {
		loc := p.Address.Location()
		a, ok := byLocation[loc]
		if !ok {
			a = &acc{}
			byLocation[loc] = a
		}
		a.visits += p.PhysicalVisits
		a.total++
		if p.DeleteReason != nil && *p.DeleteReason == domain.DeleteReasonCompleted {
			a.completed++
		}
	}
	result := make([]domain.LocationVisits, 0, len(byLocation))
	for loc, a := range byLocation {
		result = append(result, domain.LocationVisits{
			Location:       loc,
			AverageVisits:  float64(a.visits) / float64(a.total),
			CompletedCount: a.completed,
			Total:          a.total,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CompletedCount != result[j].CompletedCount {
			return result[i].CompletedCount > result[j].CompletedCount
		}
		return locationLess(result[i].Location, result[j].Location)
	})
	return result, nil
}

func (r *statisticsRepository) DeletedByReason(_ context.Context) ([]domain.DeleteReasonCount, error) {
	counts := map[domain.DeleteReason]int64{}
	for _, p := range r.snapshot() {
		if p.IsActive() || p.DeleteReason == nil {
			continue
		}
		counts[*p.DeleteReason]++
	}
	result := make([]domain.DeleteReasonCount, 0, len(counts))
	for reason, n := range counts {
		result = append(result, domain.DeleteReasonCount{DeleteReason: reason, Total: n})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].DeleteReason < result[j].DeleteReason
	})
	return result, nil
}

func (r *statisticsRepository) ActiveByListingType(_ context.Context) (map[domain.ListingType]int64, error) {
	counts := map[domain.ListingType]int64{
		domain.ListingTypeSale: 0,
		domain.ListingTypeRent: 0,
	}
	for _, p := range r.snapshot() {
		if p.IsActive() {
			counts[p.Type]++
		}
	}
	return counts, nil
}

func (r *statisticsRepository) ActiveByLocation(_ context.Context) ([]domain.LocationCount, error) {
	counts := map[domain.Location]int64{}
	for _, p := range r.snapshot() {
		if p.IsActive() {
			counts[p.Address.Location()]++
		}
	}
	result := make([]domain.LocationCount, 0, len(counts))
	for loc, n := range counts {
		result = append(result, domain.LocationCount{Location: loc, Total: n})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Total != result[j].Total {
			return result[i].Total > result[j].Total
		}
		return locationLess(result[i].Location, result[j].Location)
	})
	return result, nil
}

func (r *statisticsRepository) EngagementTotals(_ context.Context) (domain.EngagementTotals, error) {
	var totals domain.EngagementTotals
	for _, p := range r.snapshot() {
		totals.TotalViews += p.Views
		totals.TotalPhysicalVisits += p.PhysicalVisits
	}
	return totals, nil
}

func (r *statisticsRepository) RegistrationsPerMonth(_ context.Context) ([]domain.MonthCount, error) {
	r.db.mu.RLock()
	counts := map[string]int64{}
	for _, u := range r.db.users {
		counts[u.CreatedAt.UTC().Format("2006-01")]++
	}
	r.db.mu.RUnlock()

	result := make([]domain.MonthCount, 0, len(counts))
	for month, n := range counts {
		result = append(result, domain.MonthCount{Month: month, Count: n})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Month < result[j].Month })
	return result, nil
}

func locationLess(a, b domain.Location) bool {
	if a.Estado != b.Estado {
		return a.Estado < b.Estado
	}
	return a.Municipio < b.Municipio
}
