package mongostore

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/casaplus/listing-service/internal/domain"
	"github.com/casaplus/listing-service/internal/repository"
)

type propertyDocument struct {
	ID             primitive.ObjectID    `bson:"_id,omitempty"`
	Title          string                `bson:"title"`
	Price          float64               `bson:"price"`
	CalleYNumero   string                `bson:"calleYNumero"`
	Colonia        string                `bson:"colonia"`
	CodigoPostal   string                `bson:"codigoPostal"`
	Estado         string                `bson:"estado"`
	Municipio      string                `bson:"municipio"`
	Bedrooms       int                   `bson:"bedrooms"`
	Bathrooms      float64               `bson:"bathrooms"`
	SquareMeters   float64               `bson:"squaremeters"`
	Description    string                `bson:"description"`
	Images         []string              `bson:"images"`
	Type           domain.ListingType    `bson:"type"`
	PropertyType   domain.PropertyType   `bson:"propertyType"`
	ContactNumber  string                `bson:"contactNumber"`
	IsFeatured     bool                  `bson:"isFeatured"`
	User           primitive.ObjectID    `bson:"user"`
	Views          int64                 `bson:"views"`
	PhysicalVisits int64                 `bson:"physicalVisits"`
	Status         domain.PropertyStatus `bson:"status"`
	DeletedAt      *time.Time            `bson:"deletedAt,omitempty"`
	DeleteReason   *domain.DeleteReason  `bson:"deleteReason,omitempty"`
	CreatedAt      time.Time             `bson:"createdAt"`
	UpdatedAt      time.Time             `bson:"updatedAt"`
}

func newPropertyDocument(p *domain.Property, owner primitive.ObjectID) propertyDocument {
	return propertyDocument{
		Title:          p.Title,
		Price:          p.Price,
		CalleYNumero:   p.Address.CalleYNumero,
		Colonia:        p.Address.Colonia,
		CodigoPostal:   p.Address.CodigoPostal,
		Estado:         p.Address.Estado,
		Municipio:      p.Address.Municipio,
		Bedrooms:       p.Bedrooms,
		Bathrooms:      p.Bathrooms,
		SquareMeters:   p.SquareMeters,
		Description:    p.Description,
		Images:         p.Images,
		Type:           p.Type,
		PropertyType:   p.PropertyType,
		ContactNumber:  p.ContactNumber,
		IsFeatured:     p.IsFeatured,
		User:           owner,
		Views:          p.Views,
		PhysicalVisits: p.PhysicalVisits,
		Status:         p.Status,
		DeletedAt:      p.DeletedAt,
		DeleteReason:   p.DeleteReason,
	}
}

func (d propertyDocument) toDomain() domain.Property {
	p := domain.Property{
		ID:          d.ID.Hex(),
		UserID:      d.User.Hex(),
		Title:       d.Title,
		Description: d.Description,
		Price:       d.Price,
		Address: domain.Address{
			CalleYNumero: d.CalleYNumero,
			Colonia:      d.Colonia,
			CodigoPostal: d.CodigoPostal,
			Estado:       d.Estado,
			Municipio:    d.Municipio,
		},
		Bedrooms:       d.Bedrooms,
		Bathrooms:      d.Bathrooms,
		SquareMeters:   d.SquareMeters,
		Images:         d.Images,
		Type:           d.Type,
		PropertyType:   d.PropertyType,
		ContactNumber:  d.ContactNumber,
		IsFeatured:     d.IsFeatured,
		Views:          d.Views,
		PhysicalVisits: d.PhysicalVisits,
		Status:         statusOrActive(d.Status),
		DeletedAt:      d.DeletedAt,
		DeleteReason:   d.DeleteReason,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
	// documents written before updatedAt existed
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	p.ApplyDefaults()
	return p
}

type propertyRepository struct {
	c *mongo.Collection
}

// NewPropertyRepository returns a Mongo-backed implementation.
func NewPropertyRepository(db *mongo.Database) repository.PropertyRepository {
	return &propertyRepository{c: db.Collection(propertiesCollection)}
}

func (r *propertyRepository) Create(ctx context.Context, p *domain.Property) error {
	owner, ok := parseID(p.UserID)
	if !ok {
		return repository.ErrNotFound
	}
	p.ApplyDefaults()
	now := time.Now().UTC()
	doc := newPropertyDocument(p, owner)
	doc.ID = primitive.NewObjectID()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	if _, err := r.c.InsertOne(ctx, doc); err != nil {
		return translateError(err)
	}
	p.ID = doc.ID.Hex()
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

func (r *propertyRepository) Update(ctx context.Context, p *domain.Property) error {
	oid, ok := parseID(p.ID)
	if !ok {
		return repository.ErrNotFound
	}
	now := time.Now().UTC()
	update := bson.M{"$set": bson.M{
		"title":         p.Title,
		"description":   p.Description,
		"price":         p.Price,
		"calleYNumero":  p.Address.CalleYNumero,
		"colonia":       p.Address.Colonia,
		"codigoPostal":  p.Address.CodigoPostal,
		"estado":        p.Address.Estado,
		"municipio":     p.Address.Municipio,
		"bedrooms":      p.Bedrooms,
		"bathrooms":     p.Bathrooms,
		"squaremeters":  p.SquareMeters,
		"images":        p.Images,
		"type":          p.Type,
		"propertyType":  p.PropertyType,
		"contactNumber": p.ContactNumber,
		"isFeatured":    p.IsFeatured,
		"updatedAt":     now,
	}}
	res, err := r.c.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return translateError(err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	p.UpdatedAt = now
	return nil
}

func (r *propertyRepository) GetByID(ctx context.Context, id string) (*domain.Property, error) {
	oid, ok := parseID(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	var doc propertyDocument
	if err := r.c.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, translateError(err)
	}
	p := doc.toDomain()
	return &p, nil
}

func (r *propertyRepository) IncrementViews(ctx context.Context, id string) (*domain.Property, error) {
	return r.findAndUpdate(ctx, id, bson.M{"$inc": bson.M{"views": 1}})
}

func (r *propertyRepository) SetPhysicalVisits(ctx context.Context, id string, count int64) (*domain.Property, error) {
	return r.findAndUpdate(ctx, id, bson.M{"$set": bson.M{
		"physicalVisits": count,
		"updatedAt":      time.Now().UTC(),
	}})
}

func (r *propertyRepository) MarkDeleted(ctx context.Context, id string, reason domain.DeleteReason, at time.Time) error {
	oid, ok := parseID(id)
	if !ok {
		return repository.ErrNotFound
	}
	filter := bson.M{"_id": oid, "status": statusIn([]domain.PropertyStatus{domain.PropertyStatusActive})}
	update := bson.M{"$set": bson.M{
		"status":       domain.PropertyStatusDeleted,
		"deletedAt":    at,
		"deleteReason": reason,
		"updatedAt":    time.Now().UTC(),
	}}
	res, err := r.c.UpdateOne(ctx, filter, update)
	if err != nil {
		return translateError(err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *propertyRepository) List(ctx context.Context, filter repository.PropertyFilter) ([]domain.Property, error) {
	query, ok := buildFilter(filter)
	if !ok {
		return []domain.Property{}, nil
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
		if filter.Offset > 0 {
			opts.SetSkip(int64(filter.Offset))
		}
	}
	return r.find(ctx, query, opts)
}

func (r *propertyRepository) find(ctx context.Context, query bson.M, opts *options.FindOptions) ([]domain.Property, error) {
	cur, err := r.c.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	result := []domain.Property{}
	for cur.Next(ctx) {
		var doc propertyDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		result = append(result, doc.toDomain())
	}
	return result, cur.Err()
}

func (r *propertyRepository) findAndUpdate(ctx context.Context, id string, update bson.M) (*domain.Property, error) {
	oid, ok := parseID(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc propertyDocument
	if err := r.c.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&doc); err != nil {
		return nil, translateError(err)
	}
	p := doc.toDomain()
	return &p, nil
}

// buildFilter translates filter into a query document. It reports false when
// the filter cannot match any document.
func buildFilter(filter repository.PropertyFilter) (bson.M, bool) {
	clauses := []bson.M{}

	if len(filter.Statuses) > 0 {
		clauses = append(clauses, bson.M{"status": statusIn(filter.Statuses)})
	}
	if filter.Type != nil {
		clauses = append(clauses, bson.M{"type": *filter.Type})
	}
	if filter.PropertyType != nil {
		clauses = append(clauses, bson.M{"propertyType": *filter.PropertyType})
	}
	if filter.OwnerID != nil {
		owner, ok := parseID(*filter.OwnerID)
		if !ok {
			return nil, false
		}
		clauses = append(clauses, bson.M{"user": owner})
	}
	if term := strings.TrimSpace(filter.Location); term != "" {
		rx := containsRegex(term)
		clauses = append(clauses, bson.M{"$or": []bson.M{
			{"calleYNumero": rx},
			{"colonia": rx},
			{"codigoPostal": rx},
			{"estado": rx},
			{"municipio": rx},
		}})
	}
	if term := strings.TrimSpace(filter.Estado); term != "" {
		clauses = append(clauses, bson.M{"estado": containsRegex(term)})
	}
	if term := strings.TrimSpace(filter.Municipio); term != "" {
		clauses = append(clauses, bson.M{"municipio": containsRegex(term)})
	}
	price := bson.M{}
	if filter.MinPrice != nil {
		price["$gte"] = *filter.MinPrice
	}
	if filter.MaxPrice != nil {
		price["$lte"] = *filter.MaxPrice
	}
	if len(price) > 0 {
		clauses = append(clauses, bson.M{"price": price})
	}
	if filter.IsFeatured != nil {
		clauses = append(clauses, bson.M{"isFeatured": *filter.IsFeatured})
	}

	switch len(clauses) {
	case 0:
		return bson.M{}, true
	case 1:
		return clauses[0], true
	default:
		return bson.M{"$and": clauses}, true
	}
}

// statusIn matches any of statuses. Documents written before the status
// field existed count as active.
func statusIn(statuses []domain.PropertyStatus) bson.M {
	values := bson.A{}
	for _, status := range statuses {
		values = append(values, status)
		if status == domain.PropertyStatusActive {
			values = append(values, nil)
		}
	}
	return bson.M{"$in": values}
}

func statusOrActive(status domain.PropertyStatus) domain.PropertyStatus {
	if status == "" {
		return domain.PropertyStatusActive
	}
	return status
}

func containsRegex(term string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(term), Options: "i"}
}
