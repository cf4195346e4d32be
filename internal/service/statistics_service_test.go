package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/casaplus/listing-service/internal/domain"
	"github.com/casaplus/listing-service/internal/repository"
	apperrors "github.com/casaplus/listing-service/pkg/util"
)

type fakeSnapshotCache struct {
	stored  *StatisticsReport
	getErr  error
	sets    int
	deletes int
}

func (c *fakeSnapshotCache) Get(_ context.Context, _ string, dest any) (bool, error) {
	if c.getErr != nil {
		return false, c.getErr
	}
	if c.stored == nil {
		return false, nil
	}
	*dest.(*StatisticsReport) = *c.stored
	return true, nil
}

func (c *fakeSnapshotCache) Set(_ context.Context, _ string, value any) error {
	report := *value.(*StatisticsReport)
	c.stored = &report
	c.sets++
	return nil
}

func (c *fakeSnapshotCache) Delete(_ context.Context, _ string) error {
	c.stored = nil
	c.deletes++
	return nil
}

type failingStatistics struct {
	repository.StatisticsRepository
}

func (failingStatistics) DeletedByReason(context.Context) ([]domain.DeleteReasonCount, error) {
	return nil, errors.New("aggregate timed out")
}

func TestReportEmptyStore(t *testing.T) {
	env := newTestEnv(t)

	report, err := env.stats.Report(context.Background())
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if report.ActivePercentage != 0 || report.CompletionPercentage != 0 || report.ConversionRate.ConversionRate != 0 {
		t.Errorf("ratios over empty store = %+v", report)
	}
	if report.TotalProperties != 0 || report.TotalUsers != 0 {
		t.Errorf("totals = %d/%d, want 0", report.TotalProperties, report.TotalUsers)
	}
	if report.GeneratedAt.IsZero() {
		t.Errorf("generatedAt not set")
	}
}

func TestReport(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ana := env.register(t, "ana@example.com")
	beto := env.register(t, "beto@example.com")
	env.register(t, "carla@example.com")

	p1 := env.createListing(t, ana.ID, nil)
	p2 := env.createListing(t, ana.ID, func(in *PropertyInput) {
		in.Type = domain.ListingTypeRent
		in.PropertyType = domain.PropertyTypeApartment
	})
	p3 := env.createListing(t, beto.ID, nil)

	for i := 0; i < 5; i++ {
		if _, err := env.properties.Get(ctx, p1.ID); err != nil {
			t.Fatalf("Get: %v", err)
		}
	}
	for i := 0; i < 2; i++ {
		if _, err := env.properties.Get(ctx, p2.ID); err != nil {
			t.Fatalf("Get: %v", err)
		}
	}
	if _, err := env.properties.UpdatePhysicalVisits(ctx, p1.ID, beto.ID, 2); err != nil {
		t.Fatalf("UpdatePhysicalVisits: %v", err)
	}
	if _, err := env.properties.SoftDelete(ctx, p3.ID, beto.ID, "completed"); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}

	report, err := env.stats.Report(ctx)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}

	if report.TotalUsers != 3 || report.TotalProperties != 2 || report.TotalPropertiesDeleted != 1 {
		t.Errorf("totals = users %d active %d deleted %d", report.TotalUsers, report.TotalProperties, report.TotalPropertiesDeleted)
	}
	if got := report.ActivePercentage; got < 66.66 || got > 66.67 {
		t.Errorf("activePercentage = %v, want 66.67", got)
	}

	if len(report.MostViewedProperties) != 2 ||
		report.MostViewedProperties[0].ID != p1.ID || report.MostViewedProperties[0].Views != 5 ||
		report.MostViewedProperties[1].ID != p2.ID || report.MostViewedProperties[1].Views != 2 {
		t.Errorf("mostViewed = %+v, want [p1(5), p2(2)]", report.MostViewedProperties)
	}

	if report.UserActivity.TotalUsers != 3 || report.UserActivity.UsersWithProperties != 2 {
		t.Errorf("userActivity = %+v", report.UserActivity)
	}
	if len(report.PropertiesByUser) != 3 || report.PropertiesByUser[2].PropertiesCount != 0 {
		t.Errorf("propertiesByUser = %+v, want every user", report.PropertiesByUser)
	}
	if len(report.MostActiveUsers) != 3 || report.MostActiveUsers[0].UserID != ana.ID {
		t.Errorf("mostActiveUsers = %+v", report.MostActiveUsers)
	}

	if report.PropertiesForSale != 1 || report.PropertiesForRent != 1 {
		t.Errorf("sale/rent = %d/%d, want 1/1", report.PropertiesForSale, report.PropertiesForRent)
	}
	if report.CompletionPercentage != 100 || report.CancellationPercentage != 0 {
		t.Errorf("completion/cancellation = %v/%v", report.CompletionPercentage, report.CancellationPercentage)
	}
	if report.ConversionRate.TotalViews != 7 || report.ConversionRate.TotalPhysicalVisits != 2 {
		t.Errorf("conversionRate = %+v", report.ConversionRate)
	}
	if report.AverageTimeOnMarketCancelled != 0 {
		t.Errorf("cancelled time on market = %v, want 0", report.AverageTimeOnMarketCancelled)
	}
	month := time.Now().UTC().Format("2006-01")
	if len(report.UsersRegisteredPerMonth) != 1 || report.UsersRegisteredPerMonth[0] != (domain.MonthCount{Month: month, Count: 3}) {
		t.Errorf("usersRegisteredPerMonth = %+v", report.UsersRegisteredPerMonth)
	}
}

func TestReportFailsWhenAnySubQueryFails(t *testing.T) {
	env := newTestEnv(t)
	svc := NewStatisticsService(StatisticsDependencies{
		StatisticsRepo: failingStatistics{StatisticsRepository: env.store.Statistics},
	})

	_, err := svc.Report(context.Background())
	if !apperrors.HasCode(err, apperrors.CodeInternal) {
		t.Fatalf("err = %v, want internal", err)
	}
}

func TestReportUsesCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cache := &fakeSnapshotCache{}
	svc := NewStatisticsService(StatisticsDependencies{StatisticsRepo: env.store.Statistics, Cache: cache})

	first, err := svc.Report(ctx)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if cache.sets != 1 {
		t.Fatalf("sets = %d, want 1", cache.sets)
	}

	env.register(t, "late@example.com")
	cached, err := svc.Report(ctx)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if cached.TotalUsers != first.TotalUsers || cache.sets != 1 {
		t.Errorf("second report not served from cache")
	}

	if err := svc.InvalidateSnapshot(ctx); err != nil {
		t.Fatalf("InvalidateSnapshot: %v", err)
	}
	fresh, err := svc.Report(ctx)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if fresh.TotalUsers != 1 {
		t.Errorf("totalUsers after invalidation = %d, want 1", fresh.TotalUsers)
	}
}

func TestReportIgnoresCacheErrors(t *testing.T) {
	env := newTestEnv(t)
	cache := &fakeSnapshotCache{getErr: errors.New("connection refused")}
	svc := NewStatisticsService(StatisticsDependencies{StatisticsRepo: env.store.Statistics, Cache: cache})

	if _, err := svc.Report(context.Background()); err != nil {
		t.Fatalf("Report with broken cache: %v", err)
	}
}
