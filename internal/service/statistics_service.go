package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/casaplus/listing-service/internal/domain"
	"github.com/casaplus/listing-service/internal/observability"
	"github.com/casaplus/listing-service/internal/repository"
	apperrors "github.com/casaplus/listing-service/pkg/util"
)

const (
	rankingSize      = 5
	snapshotCacheKey = "snapshot"
)

// SnapshotCache stores the assembled statistics report between requests.
type SnapshotCache interface {
	Get(ctx context.Context, name string, dest any) (bool, error)
	Set(ctx context.Context, name string, value any) error
	Delete(ctx context.Context, name string) error
}

// PropertyRanking is a listing as shown in the most viewed ranking.
type PropertyRanking struct {
	ID             string              `json:"id"`
	Title          string              `json:"title"`
	Type           domain.ListingType  `json:"type"`
	PropertyType   domain.PropertyType `json:"propertyType"`
	Location       domain.Location     `json:"location"`
	Price          float64             `json:"price"`
	Views          int64               `json:"views"`
	PhysicalVisits int64               `json:"physicalVisits"`
	CreatedAt      time.Time           `json:"createdAt"`
}

// UserActivity summarizes how many accounts publish listings.
type UserActivity struct {
	TotalUsers          int64 `json:"totalUsers"`
	UsersWithProperties int64 `json:"usersWithProperties"`
}

// ConversionRate relates physical visits to online views.
type ConversionRate struct {
	TotalViews          int64   `json:"totalViews"`
	TotalPhysicalVisits int64   `json:"totalPhysicalVisits"`
	ConversionRate      float64 `json:"conversionRate"`
}

// StatisticsReport is the admin dashboard payload.
type StatisticsReport struct {
	TotalUsers                   int64                      `json:"totalUsers"`
	TotalProperties              int64                      `json:"totalProperties"`
	TotalPropertiesDeleted       int64                      `json:"totalPropertiesDeleted"`
	ActivePercentage             float64                    `json:"activePercentage"`
	PropertiesByUser             []domain.UserListingCount  `json:"propertiesByUser"`
	MostViewedProperties         []PropertyRanking          `json:"mostViewedProperties"`
	PropertyTypeDistribution     []domain.PropertyTypeCount `json:"propertyTypeDistribution"`
	AvgPriceByTypeAndLocation    []domain.TypeLocationPrice `json:"avgPriceByTypeAndLocation"`
	UserActivity                 UserActivity               `json:"userActivity"`
	ConversionRate               ConversionRate             `json:"conversionRate"`
	MostActiveUsers              []domain.UserListingCount  `json:"mostActiveUsers"`
	AverageTimeOnMarketCompleted float64                    `json:"averageTimeOnMarketCompleted"`
	AverageTimeOnMarketCancelled float64                    `json:"averageTimeOnMarketCancelled"`
	VisitsByLocation             []domain.LocationVisits    `json:"visitsByLocation"`
	DeletedPropertiesStats       []domain.DeleteReasonCount `json:"deletedPropertiesStats"`
	PropertiesForSale            int64                      `json:"propertiesForSale"`
	PropertiesForRent            int64                      `json:"propertiesForRent"`
	PropertiesByLocation         []domain.LocationCount     `json:"propertiesByLocation"`
	CompletionPercentage         float64                    `json:"completionPercentage"`
	CancellationPercentage       float64                    `json:"cancellationPercentage"`
	UsersRegisteredPerMonth      []domain.MonthCount        `json:"usersRegisteredPerMonth"`
	GeneratedAt                  time.Time                  `json:"generatedAt"`
}

// StatisticsService assembles the admin statistics report.
type StatisticsService struct {
	stats   repository.StatisticsRepository
	cache   SnapshotCache
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// StatisticsDependencies bundles collaborators for the statistics service.
// Cache is optional.
type StatisticsDependencies struct {
	StatisticsRepo repository.StatisticsRepository
	Cache          SnapshotCache
	Metrics        *observability.Metrics
	Logger         *zap.Logger
}

// NewStatisticsService constructs the service.
func NewStatisticsService(deps StatisticsDependencies) *StatisticsService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatisticsService{
		stats:   deps.StatisticsRepo,
		cache:   deps.Cache,
		metrics: deps.Metrics,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Report returns the statistics snapshot, from cache when available.
func (s *StatisticsService) Report(ctx context.Context) (*StatisticsReport, error) {
	if s.cache != nil {
		var cached StatisticsReport
		hit, err := s.cache.Get(ctx, snapshotCacheKey, &cached)
		if err != nil {
			s.logger.Warn("statistics cache read failed", zap.Error(err))
		}
		s.metrics.RecordStatsCache(hit && err == nil)
		if hit && err == nil {
			return &cached, nil
		}
	}

	report, err := s.build(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, snapshotCacheKey, report); err != nil {
			s.logger.Warn("statistics cache write failed", zap.Error(err))
		}
	}
	return report, nil
}

// InvalidateSnapshot drops the cached report.
func (s *StatisticsService) InvalidateSnapshot(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, snapshotCacheKey)
}

func (s *StatisticsService) build(ctx context.Context) (*StatisticsReport, error) {
	var (
		totalUsers    int64
		byStatus      map[domain.PropertyStatus]int64
		byType        []domain.PropertyTypeCount
		avgPrice      []domain.TypeLocationPrice
		perUser       []domain.UserListingCount
		mostViewed    []domain.Property
		completedTime float64
		cancelledTime float64
		visits        []domain.LocationVisits
		deleted       []domain.DeleteReasonCount
		byListingType map[domain.ListingType]int64
		byLocation    []domain.LocationCount
		engagement    domain.EngagementTotals
		perMonth      []domain.MonthCount
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { totalUsers, err = s.stats.CountUsers(gctx); return })
	g.Go(func() (err error) { byStatus, err = s.stats.CountByStatus(gctx); return })
	g.Go(func() (err error) { byType, err = s.stats.PropertyTypeDistribution(gctx); return })
	g.Go(func() (err error) { avgPrice, err = s.stats.AvgPriceByTypeAndLocation(gctx); return })
	g.Go(func() (err error) { perUser, err = s.stats.ListingsPerUser(gctx); return })
	g.Go(func() (err error) { mostViewed, err = s.stats.MostViewed(gctx, rankingSize); return })
	g.Go(func() (err error) {
		completedTime, err = s.stats.AverageTimeOnMarket(gctx, domain.DeleteReasonCompleted)
		return
	})
	g.Go(func() (err error) {
		cancelledTime, err = s.stats.AverageTimeOnMarket(gctx, domain.DeleteReasonCancelled)
		return
	})
	g.Go(func() (err error) { visits, err = s.stats.VisitsByLocation(gctx); return })
	g.Go(func() (err error) { deleted, err = s.stats.DeletedByReason(gctx); return })
	g.Go(func() (err error) { byListingType, err = s.stats.ActiveByListingType(gctx); return })
	g.Go(func() (err error) { byLocation, err = s.stats.ActiveByLocation(gctx); return })
	g.Go(func() (err error) { engagement, err = s.stats.EngagementTotals(gctx); return })
	g.Go(func() (err error) { perMonth, err = s.stats.RegistrationsPerMonth(gctx); return })
	if err := g.Wait(); err != nil {
		return nil, err
	}

	active := byStatus[domain.PropertyStatusActive]
	removed := byStatus[domain.PropertyStatusDeleted]

	var withListings int64
	for _, u := range perUser {
		if u.PropertiesCount > 0 {
			withListings++
		}
	}

	reasonCounts := map[domain.DeleteReason]int64{}
	var reasonTotal int64
	for _, d := range deleted {
		reasonCounts[d.DeleteReason] += d.Total
		reasonTotal += d.Total
	}

	ranking := make([]PropertyRanking, 0, len(mostViewed))
	for _, p := range mostViewed {
		ranking = append(ranking, PropertyRanking{
			ID:             p.ID,
			Title:          p.Title,
			Type:           p.Type,
			PropertyType:   p.PropertyType,
			Location:       p.Address.Location(),
			Price:          p.Price,
			Views:          p.Views,
			PhysicalVisits: p.PhysicalVisits,
			CreatedAt:      p.CreatedAt,
		})
	}

	return &StatisticsReport{
		TotalUsers:                   totalUsers,
		TotalProperties:              active,
		TotalPropertiesDeleted:       removed,
		ActivePercentage:             domain.Percentage(float64(active), float64(active+removed)),
		PropertiesByUser:             perUser,
		MostViewedProperties:         ranking,
		PropertyTypeDistribution:     byType,
		AvgPriceByTypeAndLocation:    avgPrice,
		UserActivity:                 UserActivity{TotalUsers: totalUsers, UsersWithProperties: withListings},
		ConversionRate: ConversionRate{
			TotalViews:          engagement.TotalViews,
			TotalPhysicalVisits: engagement.TotalPhysicalVisits,
			ConversionRate:      domain.Percentage(float64(engagement.TotalPhysicalVisits), float64(engagement.TotalViews)),
		},
		MostActiveUsers:              mostActive(perUser, rankingSize),
		AverageTimeOnMarketCompleted: completedTime,
		AverageTimeOnMarketCancelled: cancelledTime,
		VisitsByLocation:             visits,
		DeletedPropertiesStats:       deleted,
		PropertiesForSale:            byListingType[domain.ListingTypeSale],
		PropertiesForRent:            byListingType[domain.ListingTypeRent],
		PropertiesByLocation:         byLocation,
		CompletionPercentage:         domain.Percentage(float64(reasonCounts[domain.DeleteReasonCompleted]), float64(reasonTotal)),
		CancellationPercentage:       domain.Percentage(float64(reasonCounts[domain.DeleteReasonCancelled]), float64(reasonTotal)),
		UsersRegisteredPerMonth:      perMonth,
		GeneratedAt:                  s.now(),
	}, nil
}

// mostActive returns the top n users by listing count, keeping registration
// order among ties.
func mostActive(users []domain.UserListingCount, n int) []domain.UserListingCount {
	ranked := append([]domain.UserListingCount{}, users...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].PropertiesCount > ranked[j].PropertiesCount
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
