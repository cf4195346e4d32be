package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/casaplus/listing-service/internal/domain"
	"github.com/casaplus/listing-service/internal/repository"
)

type fixture struct {
	db    *DB
	store repository.Store
	clock time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{db: New(), clock: time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)}
	f.db.SetClock(func() time.Time { return f.clock })
	f.store = f.db.Store()
	return f
}

func (f *fixture) user(t *testing.T, email string) *domain.User {
	t.Helper()
	u := &domain.User{Email: email, PasswordHash: "x", Role: domain.RoleUser}
	if err := f.store.Users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func (f *fixture) listing(t *testing.T, owner string, mutate func(*domain.Property)) *domain.Property {
	t.Helper()
	p := &domain.Property{
		UserID:       owner,
		Title:        "casa",
		Description:  "casa",
		Price:        1000,
		Address:      domain.Address{CalleYNumero: "calle 1", Colonia: "centro", CodigoPostal: "01000", Estado: "cdmx", Municipio: "coyoacan"},
		SquareMeters: 50,
		Images:       []string{"/uploads/a.jpg"},
	}
	if mutate != nil {
		mutate(p)
	}
	if err := f.store.Properties.Create(context.Background(), p); err != nil {
		t.Fatalf("create listing: %v", err)
	}
	return p
}

func TestUserEmailIsUnique(t *testing.T) {
	f := newFixture(t)
	f.user(t, "ana@example.com")

	err := f.store.Users.Create(context.Background(), &domain.User{Email: "ana@example.com"})
	if !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
}

func TestCreateRequiresOwner(t *testing.T) {
	f := newFixture(t)
	err := f.store.Properties.Create(context.Background(), &domain.Property{UserID: "ghost"})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestIncrementViewsIsAtomic(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "ana@example.com")
	p := f.listing(t, owner.ID, nil)

	const readers = 50
	var wg sync.WaitGroup
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.store.Properties.IncrementViews(context.Background(), p.ID); err != nil {
				t.Errorf("IncrementViews: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := f.store.Properties.GetByID(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Views != readers {
		t.Errorf("views = %d, want %d", got.Views, readers)
	}
}

func TestMarkDeletedOnlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "ana@example.com")
	p := f.listing(t, owner.ID, nil)
	at := f.clock.Add(time.Hour)

	if err := f.store.Properties.MarkDeleted(ctx, p.ID, domain.DeleteReasonCancelled, at); err != nil {
		t.Fatalf("MarkDeleted: %v", err)
	}
	if err := f.store.Properties.MarkDeleted(ctx, p.ID, domain.DeleteReasonCompleted, at); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("second MarkDeleted err = %v, want ErrNotFound", err)
	}

	got, _ := f.store.Properties.GetByID(ctx, p.ID)
	if got.Status != domain.PropertyStatusDeleted || *got.DeleteReason != domain.DeleteReasonCancelled || !got.DeletedAt.Equal(at) {
		t.Errorf("stored = %+v", got)
	}
}

func TestMostViewedOrdering(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "ana@example.com")

	older := f.listing(t, owner.ID, func(p *domain.Property) { p.Title = "older" })
	f.clock = f.clock.Add(time.Minute)
	newer := f.listing(t, owner.ID, func(p *domain.Property) { p.Title = "newer" })
	f.clock = f.clock.Add(time.Minute)
	top := f.listing(t, owner.ID, func(p *domain.Property) { p.Title = "top" })
	deleted := f.listing(t, owner.ID, nil)

	views := map[string]int{older.ID: 2, newer.ID: 2, top.ID: 5, deleted.ID: 9}
	for id, n := range views {
		for i := 0; i < n; i++ {
			if _, err := f.store.Properties.IncrementViews(ctx, id); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := f.store.Properties.MarkDeleted(ctx, deleted.ID, domain.DeleteReasonOther, f.clock); err != nil {
		t.Fatal(err)
	}

	got, err := f.store.Statistics.MostViewed(ctx, 5)
	if err != nil {
		t.Fatalf("MostViewed: %v", err)
	}
	want := []string{top.ID, older.ID, newer.ID}
	if len(got) != len(want) {
		t.Fatalf("got %d listings, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Errorf("position %d = %s, want %s", i, got[i].Title, want[i])
		}
	}
}

func TestStatisticsAggregates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ana := f.user(t, "ana@example.com")
	f.clock = time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC)
	beto := f.user(t, "beto@example.com")
	f.user(t, "carla@example.com")

	sold := f.listing(t, ana.ID, nil)
	f.listing(t, ana.ID, func(p *domain.Property) {
		p.Type = domain.ListingTypeRent
		p.Address.Estado = "jalisco"
		p.Address.Municipio = "zapopan"
	})
	f.listing(t, beto.ID, nil)

	if _, err := f.store.Properties.SetPhysicalVisits(ctx, sold.ID, 4); err != nil {
		t.Fatal(err)
	}
	if err := f.store.Properties.MarkDeleted(ctx, sold.ID, domain.DeleteReasonCompleted, f.clock.Add(2*time.Hour)); err != nil {
		t.Fatal(err)
	}

	avg, err := f.store.Statistics.AverageTimeOnMarket(ctx, domain.DeleteReasonCompleted)
	if err != nil {
		t.Fatal(err)
	}
	if avg != float64((2 * time.Hour).Milliseconds()) {
		t.Errorf("time on market = %v ms, want 2h", avg)
	}
	if avg, _ := f.store.Statistics.AverageTimeOnMarket(ctx, domain.DeleteReasonCancelled); avg != 0 {
		t.Errorf("cancelled time on market = %v, want 0", avg)
	}

	perUser, _ := f.store.Statistics.ListingsPerUser(ctx)
	wantCounts := []int64{2, 1, 0}
	for i, u := range perUser {
		if u.PropertiesCount != wantCounts[i] {
			t.Errorf("user %s count = %d, want %d", u.Email, u.PropertiesCount, wantCounts[i])
		}
	}

	byType, _ := f.store.Statistics.ActiveByListingType(ctx)
	if byType[domain.ListingTypeSale] != 1 || byType[domain.ListingTypeRent] != 1 {
		t.Errorf("active by type = %v", byType)
	}

	visits, _ := f.store.Statistics.VisitsByLocation(ctx)
	if len(visits) != 2 || visits[0].Location.Estado != "cdmx" || visits[0].CompletedCount != 1 || visits[0].AverageVisits != 2 {
		t.Errorf("visits by location = %+v", visits)
	}

	months, _ := f.store.Statistics.RegistrationsPerMonth(ctx)
	wantMonths := []domain.MonthCount{{Month: "2024-01", Count: 1}, {Month: "2024-02", Count: 2}}
	if len(months) != 2 || months[0] != wantMonths[0] || months[1] != wantMonths[1] {
		t.Errorf("months = %+v, want %+v", months, wantMonths)
	}
}

func TestListPagination(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "ana@example.com")
	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, f.listing(t, owner.ID, nil).ID)
	}

	got, err := f.store.Properties.List(context.Background(), repository.PropertyFilter{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].ID != ids[0] {
		t.Errorf("last page = %v, want oldest listing", got)
	}
}
