package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/casaplus/listing-service/internal/domain"
)

type statisticsRepository struct {
	pool *pgxpool.Pool
}

// NewStatisticsRepository returns the SQL implementation of the dashboard queries.
func NewStatisticsRepository(pool *pgxpool.Pool) StatisticsRepository {
	return &statisticsRepository{pool: pool}
}

func (r *statisticsRepository) CountUsers(ctx context.Context) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total)
	return total, err
}

func (r *statisticsRepository) CountByStatus(ctx context.Context) (map[domain.PropertyStatus]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM properties GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[domain.PropertyStatus]int64{
		domain.PropertyStatusActive:  0,
		domain.PropertyStatusDeleted: 0,
	}
	for rows.Next() {
		var (
			status domain.PropertyStatus
			total  int64
		)
		if err := rows.Scan(&status, &total); err != nil {
			return nil, err
		}
		counts[status] = total
	}
	return counts, rows.Err()
}

func (r *statisticsRepository) PropertyTypeDistribution(ctx context.Context) ([]domain.PropertyTypeCount, error) {
	const query = `
        SELECT property_type, COUNT(*)
        FROM properties
        GROUP BY property_type
        ORDER BY COUNT(*) DESC, property_type`
	return collect(ctx, r.pool, query, func(row pgx.Rows) (domain.PropertyTypeCount, error) {
		var item domain.PropertyTypeCount
		err := row.Scan(&item.PropertyType, &item.Count)
		return item, err
	})
}

func (r *statisticsRepository) AvgPriceByTypeAndLocation(ctx context.Context) ([]domain.TypeLocationPrice, error) {
	const query = `
        SELECT property_type, estado, municipio, AVG(price)
        FROM properties
        GROUP BY property_type, estado, municipio
        ORDER BY property_type, estado, municipio`
	return collect(ctx, r.pool, query, func(row pgx.Rows) (domain.TypeLocationPrice, error) {
		var item domain.TypeLocationPrice
		err := row.Scan(&item.PropertyType, &item.Location.Estado, &item.Location.Municipio, &item.AvgPrice)
		return item, err
	})
}

func (r *statisticsRepository) ListingsPerUser(ctx context.Context) ([]domain.UserListingCount, error) {
	const query = `
        SELECT u.id::text, u.email, COUNT(p.id)
        FROM users u
        LEFT JOIN properties p ON p.user_id = u.id
        GROUP BY u.id, u.email, u.created_at
        ORDER BY u.created_at, u.id`
	return collect(ctx, r.pool, query, func(row pgx.Rows) (domain.UserListingCount, error) {
		var item domain.UserListingCount
		err := row.Scan(&item.UserID, &item.Email, &item.PropertiesCount)
		return item, err
	})
}

func (r *statisticsRepository) MostViewed(ctx context.Context, limit int) ([]domain.Property, error) {
	query := `SELECT ` + propertyColumns + `
        FROM properties
        WHERE status=$1
        ORDER BY views DESC, created_at ASC, id
        LIMIT $2`
	rows, err := r.pool.Query(ctx, query, domain.PropertyStatusActive, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProperties(rows)
}

func (r *statisticsRepository) AverageTimeOnMarket(ctx context.Context, reason domain.DeleteReason) (float64, error) {
	const query = `
        SELECT AVG(EXTRACT(EPOCH FROM (deleted_at - created_at)) * 1000)::float8
        FROM properties
        WHERE status=$1 AND delete_reason=$2`
	var avg *float64
	if err := r.pool.QueryRow(ctx, query, domain.PropertyStatusDeleted, reason).Scan(&avg); err != nil {
		return 0, err
	}
	if avg == nil {
		return 0, nil
	}
	return *avg, nil
}

func (r *statisticsRepository) VisitsByLocation(ctx context.Context) ([]domain.LocationVisits, error) {
	const query = `
        SELECT estado, municipio,
               AVG(physical_visits)::float8,
               COUNT(*) FILTER (WHERE delete_reason = 'completed'),
               COUNT(*)
        FROM properties
        GROUP BY estado, municipio
        ORDER BY 4 DESC, estado, municipio`
	return collect(ctx, r.pool, query, func(row pgx.Rows) (domain.LocationVisits, error) {
		var item domain.LocationVisits
		err := row.Scan(&item.Location.Estado, &item.Location.Municipio, &item.AverageVisits, &item.CompletedCount, &item.Total)
		return item, err
	})
}

func (r *statisticsRepository) DeletedByReason(ctx context.Context) ([]domain.DeleteReasonCount, error) {
	const query = `
        SELECT delete_reason, COUNT(*)
        FROM properties
        WHERE status='deleted'
        GROUP BY delete_reason
        ORDER BY delete_reason`
	return collect(ctx, r.pool, query, func(row pgx.Rows) (domain.DeleteReasonCount, error) {
		var item domain.DeleteReasonCount
		err := row.Scan(&item.DeleteReason, &item.Total)
		return item, err
	})
}

func (r *statisticsRepository) ActiveByListingType(ctx context.Context) (map[domain.ListingType]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT listing_type, COUNT(*) FROM properties WHERE status=$1 GROUP BY listing_type`,
		domain.PropertyStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[domain.ListingType]int64{
		domain.ListingTypeSale: 0,
		domain.ListingTypeRent: 0,
	}
	for rows.Next() {
		var (
			listingType domain.ListingType
			total       int64
		)
		if err := rows.Scan(&listingType, &total); err != nil {
			return nil, err
		}
		counts[listingType] = total
	}
	return counts, rows.Err()
}

func (r *statisticsRepository) ActiveByLocation(ctx context.Context) ([]domain.LocationCount, error) {
	const query = `
        SELECT estado, municipio, COUNT(*)
        FROM properties
        WHERE status='active'
        GROUP BY estado, municipio
        ORDER BY 3 DESC, estado, municipio`
	return collect(ctx, r.pool, query, func(row pgx.Rows) (domain.LocationCount, error) {
		var item domain.LocationCount
		err := row.Scan(&item.Location.Estado, &item.Location.Municipio, &item.Total)
		return item, err
	})
}

func (r *statisticsRepository) EngagementTotals(ctx context.Context) (domain.EngagementTotals, error) {
	var totals domain.EngagementTotals
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(views), 0)::bigint, COALESCE(SUM(physical_visits), 0)::bigint FROM properties`,
	).Scan(&totals.TotalViews, &totals.TotalPhysicalVisits)
	return totals, err
}

func (r *statisticsRepository) RegistrationsPerMonth(ctx context.Context) ([]domain.MonthCount, error) {
	const query = `
        SELECT to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM') AS month, COUNT(*)
        FROM users
        GROUP BY month
        ORDER BY month`
	return collect(ctx, r.pool, query, func(row pgx.Rows) (domain.MonthCount, error) {
		var item domain.MonthCount
		err := row.Scan(&item.Month, &item.Count)
		return item, err
	})
}

func collect[T any](ctx context.Context, pool *pgxpool.Pool, query string, scan func(pgx.Rows) (T, error), args ...any) ([]T, error) {
	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []T{}
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}
