package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/casaplus/listing-service/internal/domain"
)

const propertyColumns = `id::text, user_id::text, title, description, price,
               calle_y_numero, colonia, codigo_postal, estado, municipio,
               bedrooms, bathrooms, square_meters, images, listing_type, property_type,
               contact_number, is_featured, views, physical_visits, status,
               deleted_at, delete_reason, created_at, updated_at`

type propertyRepository struct {
	pool *pgxpool.Pool
}

// NewPropertyRepository instantiates repository.
func NewPropertyRepository(pool *pgxpool.Pool) PropertyRepository {
	return &propertyRepository{pool: pool}
}

func (r *propertyRepository) Create(ctx context.Context, p *domain.Property) error {
	const query = `
        INSERT INTO properties (user_id, title, description, price,
            calle_y_numero, colonia, codigo_postal, estado, municipio,
            bedrooms, bathrooms, square_meters, images, listing_type, property_type,
            contact_number, is_featured)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
        RETURNING id::text, views, physical_visits, status, created_at, updated_at`
	if !validID(p.UserID) {
		return fmt.Errorf("invalid owner id %q", p.UserID)
	}
	err := r.pool.QueryRow(ctx, query,
		p.UserID,
		p.Title,
		p.Description,
		p.Price,
		p.Address.CalleYNumero,
		p.Address.Colonia,
		p.Address.CodigoPostal,
		p.Address.Estado,
		p.Address.Municipio,
		p.Bedrooms,
		p.Bathrooms,
		p.SquareMeters,
		p.Images,
		p.Type,
		p.PropertyType,
		p.ContactNumber,
		p.IsFeatured,
	).Scan(&p.ID, &p.Views, &p.PhysicalVisits, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	return translatePgError(err)
}

func (r *propertyRepository) Update(ctx context.Context, p *domain.Property) error {
	const query = `
        UPDATE properties SET title=$1, description=$2, price=$3,
            calle_y_numero=$4, colonia=$5, codigo_postal=$6, estado=$7, municipio=$8,
            bedrooms=$9, bathrooms=$10, square_meters=$11, images=$12,
            listing_type=$13, property_type=$14, contact_number=$15, is_featured=$16,
            updated_at=NOW()
        WHERE id=$17
        RETURNING updated_at`
	if !validID(p.ID) {
		return ErrNotFound
	}
	err := r.pool.QueryRow(ctx, query,
		p.Title,
		p.Description,
		p.Price,
		p.Address.CalleYNumero,
		p.Address.Colonia,
		p.Address.CodigoPostal,
		p.Address.Estado,
		p.Address.Municipio,
		p.Bedrooms,
		p.Bathrooms,
		p.SquareMeters,
		p.Images,
		p.Type,
		p.PropertyType,
		p.ContactNumber,
		p.IsFeatured,
		p.ID,
	).Scan(&p.UpdatedAt)
	return translatePgError(err)
}

func (r *propertyRepository) GetByID(ctx context.Context, id string) (*domain.Property, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *propertyRepository) IncrementViews(ctx context.Context, id string) (*domain.Property, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	query := `UPDATE properties SET views = views + 1 WHERE id=$1 RETURNING ` + propertyColumns
	return r.fetchSingle(ctx, query, id)
}

func (r *propertyRepository) SetPhysicalVisits(ctx context.Context, id string, count int64) (*domain.Property, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	query := `UPDATE properties SET physical_visits=$2, updated_at=NOW() WHERE id=$1 RETURNING ` + propertyColumns
	return r.fetchSingle(ctx, query, id, count)
}

func (r *propertyRepository) MarkDeleted(ctx context.Context, id string, reason domain.DeleteReason, at time.Time) error {
	const query = `
        UPDATE properties SET status=$1, deleted_at=$2, delete_reason=$3, updated_at=NOW()
        WHERE id=$4 AND status=$5`
	if !validID(id) {
		return ErrNotFound
	}
	cmd, err := r.pool.Exec(ctx, query,
		domain.PropertyStatusDeleted,
		at,
		reason,
		id,
		domain.PropertyStatusActive,
	)
	if err != nil {
		return translatePgError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *propertyRepository) List(ctx context.Context, filter PropertyFilter) ([]domain.Property, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Type != nil {
		args = append(args, *filter.Type)
		clauses = append(clauses, fmt.Sprintf("listing_type=$%d", len(args)))
	}
	if filter.PropertyType != nil {
		args = append(args, *filter.PropertyType)
		clauses = append(clauses, fmt.Sprintf("property_type=$%d", len(args)))
	}
	if filter.OwnerID != nil {
		if !validID(*filter.OwnerID) {
			return []domain.Property{}, nil
		}
		args = append(args, *filter.OwnerID)
		clauses = append(clauses, fmt.Sprintf("user_id=$%d", len(args)))
	}
	if term := strings.TrimSpace(filter.Location); term != "" {
		args = append(args, likePattern(term))
		p := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf(
			"(calle_y_numero ILIKE %[1]s OR colonia ILIKE %[1]s OR codigo_postal ILIKE %[1]s OR estado ILIKE %[1]s OR municipio ILIKE %[1]s)", p))
	}
	if term := strings.TrimSpace(filter.Estado); term != "" {
		args = append(args, likePattern(term))
		clauses = append(clauses, fmt.Sprintf("estado ILIKE $%d", len(args)))
	}
	if term := strings.TrimSpace(filter.Municipio); term != "" {
		args = append(args, likePattern(term))
		clauses = append(clauses, fmt.Sprintf("municipio ILIKE $%d", len(args)))
	}
	if filter.MinPrice != nil {
		args = append(args, *filter.MinPrice)
		clauses = append(clauses, fmt.Sprintf("price >= $%d", len(args)))
	}
	if filter.MaxPrice != nil {
		args = append(args, *filter.MaxPrice)
		clauses = append(clauses, fmt.Sprintf("price <= $%d", len(args)))
	}
	if filter.IsFeatured != nil {
		args = append(args, *filter.IsFeatured)
		clauses = append(clauses, fmt.Sprintf("is_featured=$%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM properties WHERE %s ORDER BY created_at DESC, id`,
		propertyColumns, strings.Join(clauses, " AND "))
	if filter.Limit > 0 {
		offset := filter.Offset
		if offset < 0 {
			offset = 0
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProperties(rows)
}

func (r *propertyRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Property, error) {
	p, err := scanProperty(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, translatePgError(err)
	}
	return p, nil
}

func scanProperty(row pgx.Row) (*domain.Property, error) {
	var (
		p            domain.Property
		deleteReason *string
	)
	if err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.Title,
		&p.Description,
		&p.Price,
		&p.Address.CalleYNumero,
		&p.Address.Colonia,
		&p.Address.CodigoPostal,
		&p.Address.Estado,
		&p.Address.Municipio,
		&p.Bedrooms,
		&p.Bathrooms,
		&p.SquareMeters,
		&p.Images,
		&p.Type,
		&p.PropertyType,
		&p.ContactNumber,
		&p.IsFeatured,
		&p.Views,
		&p.PhysicalVisits,
		&p.Status,
		&p.DeletedAt,
		&deleteReason,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if deleteReason != nil {
		reason := domain.DeleteReason(*deleteReason)
		p.DeleteReason = &reason
	}
	return &p, nil
}

func scanProperties(rows pgx.Rows) ([]domain.Property, error) {
	result := []domain.Property{}
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	return result, rows.Err()
}

// likePattern escapes LIKE wildcards in term and wraps it for a contains match.
func likePattern(term string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(term) + "%"
}
