package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/casaplus/listing-service/internal/domain"
)

var (
	// ErrNotFound is returned when no record matches.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate record")
)

// UserRepository defines persistence access for accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// PropertyFilter captures listing search parameters.
type PropertyFilter struct {
	Statuses     []domain.PropertyStatus
	Type         *domain.ListingType
	PropertyType *domain.PropertyType
	Location     string
	Estado       string
	Municipio    string
	MinPrice     *float64
	MaxPrice     *float64
	IsFeatured   *bool
	OwnerID      *string
	Limit        int
	Offset       int
}

// PropertyRepository encapsulates listing persistence.
type PropertyRepository interface {
	Create(ctx context.Context, property *domain.Property) error
	Update(ctx context.Context, property *domain.Property) error
	GetByID(ctx context.Context, id string) (*domain.Property, error)
	// IncrementViews atomically adds one view and returns the updated record.
	IncrementViews(ctx context.Context, id string) (*domain.Property, error)
	SetPhysicalVisits(ctx context.Context, id string, count int64) (*domain.Property, error)
	// MarkDeleted soft deletes an active listing. It returns ErrNotFound when
	// no active listing with id exists.
	MarkDeleted(ctx context.Context, id string, reason domain.DeleteReason, at time.Time) error
	List(ctx context.Context, filter PropertyFilter) ([]domain.Property, error)
}

// StatisticsRepository exposes the read-only aggregate queries behind the
// admin dashboard. Every method is independent of the others.
type StatisticsRepository interface {
	CountUsers(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context) (map[domain.PropertyStatus]int64, error)
	PropertyTypeDistribution(ctx context.Context) ([]domain.PropertyTypeCount, error)
	AvgPriceByTypeAndLocation(ctx context.Context) ([]domain.TypeLocationPrice, error)
	// ListingsPerUser returns every user, including those without listings,
	// in registration order.
	ListingsPerUser(ctx context.Context) ([]domain.UserListingCount, error)
	// MostViewed returns active listings ordered by views desc, then
	// createdAt asc and id.
	MostViewed(ctx context.Context, limit int) ([]domain.Property, error)
	// AverageTimeOnMarket returns the mean deletedAt-createdAt in
	// milliseconds for deleted listings with reason, or 0 when there are none.
	AverageTimeOnMarket(ctx context.Context, reason domain.DeleteReason) (float64, error)
	VisitsByLocation(ctx context.Context) ([]domain.LocationVisits, error)
	DeletedByReason(ctx context.Context) ([]domain.DeleteReasonCount, error)
	ActiveByListingType(ctx context.Context) (map[domain.ListingType]int64, error)
	ActiveByLocation(ctx context.Context) ([]domain.LocationCount, error)
	EngagementTotals(ctx context.Context) (domain.EngagementTotals, error)
	RegistrationsPerMonth(ctx context.Context) ([]domain.MonthCount, error)
}

// Store bundles the repositories of one backend.
type Store struct {
	Users      UserRepository
	Properties PropertyRepository
	Statistics StatisticsRepository
}

// NewPostgresStore returns Postgres-backed repositories sharing pool.
func NewPostgresStore(pool *pgxpool.Pool) Store {
	return Store{
		Users:      NewUserRepository(pool),
		Properties: NewPropertyRepository(pool),
		Statistics: NewStatisticsRepository(pool),
	}
}

func translatePgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ErrDuplicate
		case "22P02":
			// malformed uuid literal
			return ErrNotFound
		}
	}
	return err
}

// validID reports whether id can be a primary key of the Postgres tables.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
