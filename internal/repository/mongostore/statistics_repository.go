package mongostore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/casaplus/listing-service/internal/domain"
	"github.com/casaplus/listing-service/internal/repository"
)

type statisticsRepository struct {
	users      *mongo.Collection
	properties *mongo.Collection
}

// NewStatisticsRepository returns the aggregation pipeline implementation of
// the dashboard queries.
func NewStatisticsRepository(db *mongo.Database) repository.StatisticsRepository {
	return &statisticsRepository{
		users:      db.Collection(usersCollection),
		properties: db.Collection(propertiesCollection),
	}
}

type locationKey struct {
	Estado    string `bson:"estado"`
	Municipio string `bson:"municipio"`
}

func (k locationKey) toDomain() domain.Location {
	return domain.Location{Estado: k.Estado, Municipio: k.Municipio}
}

var groupByLocation = bson.M{"estado": "$estado", "municipio": "$municipio"}

var activeOnly = bson.M{"status": statusIn([]domain.PropertyStatus{domain.PropertyStatusActive})}

func (r *statisticsRepository) CountUsers(ctx context.Context) (int64, error) {
	return r.users.CountDocuments(ctx, bson.M{})
}

func (r *statisticsRepository) CountByStatus(ctx context.Context) (map[domain.PropertyStatus]int64, error) {
	pipe := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":   bson.M{"$ifNull": bson.A{"$status", domain.PropertyStatusActive}},
			"total": bson.M{"$sum": 1},
		}}},
	}
	var rows []struct {
		Status domain.PropertyStatus `bson:"_id"`
		Total  int64                 `bson:"total"`
	}
	if err := aggregate(ctx, r.properties, pipe, &rows); err != nil {
		return nil, err
	}
	counts := map[domain.PropertyStatus]int64{
		domain.PropertyStatusActive:  0,
		domain.PropertyStatusDeleted: 0,
	}
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}

func (r *statisticsRepository) PropertyTypeDistribution(ctx context.Context) ([]domain.PropertyTypeCount, error) {
	pipe := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$propertyType", "count": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
	}
	var rows []struct {
		PropertyType domain.PropertyType `bson:"_id"`
		Count        int64               `bson:"count"`
	}
	if err := aggregate(ctx, r.properties, pipe, &rows); err != nil {
		return nil, err
	}
	result := make([]domain.PropertyTypeCount, 0, len(rows))
	for _, row := range rows {
		result = append(result, domain.PropertyTypeCount{PropertyType: row.PropertyType, Count: row.Count})
	}
	return result, nil
}

func (r *statisticsRepository) AvgPriceByTypeAndLocation(ctx context.Context) ([]domain.TypeLocationPrice, error) {
	pipe := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{
				"propertyType": "$propertyType",
				"estado":       "$estado",
				"municipio":    "$municipio",
			},
			"avgPrice": bson.M{"$avg": "$price"},
		}}},
		{{Key: "$sort", Value: bson.D{
			{Key: "_id.propertyType", Value: 1},
			{Key: "_id.estado", Value: 1},
			{Key: "_id.municipio", Value: 1},
		}}},
	}
	var rows []struct {
		ID struct {
			PropertyType domain.PropertyType `bson:"propertyType"`
			Estado       string              `bson:"estado"`
			Municipio    string              `bson:"municipio"`
		} `bson:"_id"`
		AvgPrice float64 `bson:"avgPrice"`
	}
	if err := aggregate(ctx, r.properties, pipe, &rows); err != nil {
		return nil, err
	}
	result := make([]domain.TypeLocationPrice, 0, len(rows))
	for _, row := range rows {
		result = append(result, domain.TypeLocationPrice{
			PropertyType: row.ID.PropertyType,
			Location:     domain.Location{Estado: row.ID.Estado, Municipio: row.ID.Municipio},
			AvgPrice:     row.AvgPrice,
		})
	}
	return result, nil
}

func (r *statisticsRepository) ListingsPerUser(ctx context.Context) ([]domain.UserListingCount, error) {
	pipe := mongo.Pipeline{
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}}},
		{{Key: "$lookup", Value: bson.M{
			"from": propertiesCollection,
			"let":  bson.M{"uid": "$_id"},
			"pipeline": bson.A{
				bson.M{"$match": bson.M{"$expr": bson.M{"$eq": bson.A{"$user", "$$uid"}}}},
				bson.M{"$project": bson.M{"_id": 1}},
			},
			"as": "listings",
		}}},
		{{Key: "$project", Value: bson.M{
			"email":           1,
			"propertiesCount": bson.M{"$size": "$listings"},
		}}},
	}
	var rows []struct {
		ID              primitive.ObjectID `bson:"_id"`
		Email           string             `bson:"email"`
		PropertiesCount int64              `bson:"propertiesCount"`
	}
	if err := aggregate(ctx, r.users, pipe, &rows); err != nil {
		return nil, err
	}
	result := make([]domain.UserListingCount, 0, len(rows))
	for _, row := range rows {
		result = append(result, domain.UserListingCount{
			UserID:          row.ID.Hex(),
			Email:           row.Email,
			PropertiesCount: row.PropertiesCount,
		})
	}
	return result, nil
}

func (r *statisticsRepository) MostViewed(ctx context.Context, limit int) ([]domain.Property, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "views", Value: -1}, {Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))
	cur, err := r.properties.Find(ctx, activeOnly, opts)
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

func (r *statisticsRepository) AverageTimeOnMarket(ctx context.Context, reason domain.DeleteReason) (float64, error) {
	pipe := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"status":       domain.PropertyStatusDeleted,
			"deleteReason": reason,
			"deletedAt":    bson.M{"$ne": nil},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id": nil,
			// date subtraction yields milliseconds
			"avg": bson.M{"$avg": bson.M{"$subtract": bson.A{"$deletedAt", "$createdAt"}}},
		}}},
	}
	var rows []struct {
		Avg float64 `bson:"avg"`
	}
	if err := aggregate(ctx, r.properties, pipe, &rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Avg, nil
}

func (r *statisticsRepository) VisitsByLocation(ctx context.Context) ([]domain.LocationVisits, error) {
	pipe := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":           groupByLocation,
			"averageVisits": bson.M{"$avg": "$physicalVisits"},
			"completedCount": bson.M{"$sum": bson.M{
				"$cond": bson.A{bson.M{"$eq": bson.A{"$deleteReason", domain.DeleteReasonCompleted}}, 1, 0},
			}},
			"total": bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.D{
			{Key: "completedCount", Value: -1},
			{Key: "_id.estado", Value: 1},
			{Key: "_id.municipio", Value: 1},
		}}},
	}
	var rows []struct {
		ID             locationKey `bson:"_id"`
		AverageVisits  float64     `bson:"averageVisits"`
		CompletedCount int64       `bson:"completedCount"`
		Total          int64       `bson:"total"`
	}
	if err := aggregate(ctx, r.properties, pipe, &rows); err != nil {
		return nil, err
	}
	result := make([]domain.LocationVisits, 0, len(rows))
	for _, row := range rows {
		result = append(result, domain.LocationVisits{
			Location:       row.ID.toDomain(),
			AverageVisits:  row.AverageVisits,
			CompletedCount: row.CompletedCount,
			Total:          row.Total,
		})
	}
	return result, nil
}

func (r *statisticsRepository) DeletedByReason(ctx context.Context) ([]domain.DeleteReasonCount, error) {
	pipe := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"status": domain.PropertyStatusDeleted}}},
		{{Key: "$group", Value: bson.M{"_id": "$deleteReason", "total": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
	var rows []struct {
		Reason domain.DeleteReason `bson:"_id"`
		Total  int64               `bson:"total"`
	}
	if err := aggregate(ctx, r.properties, pipe, &rows); err != nil {
		return nil, err
	}
	result := make([]domain.DeleteReasonCount, 0, len(rows))
	for _, row := range rows {
		result = append(result, domain.DeleteReasonCount{DeleteReason: row.Reason, Total: row.Total})
	}
	return result, nil
}

func (r *statisticsRepository) ActiveByListingType(ctx context.Context) (map[domain.ListingType]int64, error) {
	pipe := mongo.Pipeline{
		{{Key: "$match", Value: activeOnly}},
		{{Key: "$group", Value: bson.M{"_id": "$type", "total": bson.M{"$sum": 1}}}},
	}
	var rows []struct {
		Type  domain.ListingType `bson:"_id"`
		Total int64              `bson:"total"`
	}
	if err := aggregate(ctx, r.properties, pipe, &rows); err != nil {
		return nil, err
	}
	counts := map[domain.ListingType]int64{
		domain.ListingTypeSale: 0,
		domain.ListingTypeRent: 0,
	}
	for _, row := range rows {
		counts[row.Type] = row.Total
	}
	return counts, nil
}

func (r *statisticsRepository) ActiveByLocation(ctx context.Context) ([]domain.LocationCount, error) {
	pipe := mongo.Pipeline{
		{{Key: "$match", Value: activeOnly}},
		{{Key: "$group", Value: bson.M{"_id": groupByLocation, "total": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.D{
			{Key: "total", Value: -1},
			{Key: "_id.estado", Value: 1},
			{Key: "_id.municipio", Value: 1},
		}}},
	}
	var rows []struct {
		ID    locationKey `bson:"_id"`
		Total int64       `bson:"total"`
	}
	if err := aggregate(ctx, r.properties, pipe, &rows); err != nil {
		return nil, err
	}
	result := make([]domain.LocationCount, 0, len(rows))
	for _, row := range rows {
		result = append(result, domain.LocationCount{Location: row.ID.toDomain(), Total: row.Total})
	}
	return result, nil
}

func (r *statisticsRepository) EngagementTotals(ctx context.Context) (domain.EngagementTotals, error) {
	pipe := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":                 nil,
			"totalViews":          bson.M{"$sum": "$views"},
			"totalPhysicalVisits": bson.M{"$sum": "$physicalVisits"},
		}}},
	}
	var rows []struct {
		TotalViews          int64 `bson:"totalViews"`
		TotalPhysicalVisits int64 `bson:"totalPhysicalVisits"`
	}
	if err := aggregate(ctx, r.properties, pipe, &rows); err != nil {
		return domain.EngagementTotals{}, err
	}
	if len(rows) == 0 {
		return domain.EngagementTotals{}, nil
	}
	return domain.EngagementTotals{
		TotalViews:          rows[0].TotalViews,
		TotalPhysicalVisits: rows[0].TotalPhysicalVisits,
	}, nil
}

func (r *statisticsRepository) RegistrationsPerMonth(ctx context.Context) ([]domain.MonthCount, error) {
	pipe := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":   bson.M{"$dateToString": bson.M{"format": "%Y-%m", "date": "$createdAt", "timezone": "UTC"}},
			"count": bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
	var rows []struct {
		Month string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	if err := aggregate(ctx, r.users, pipe, &rows); err != nil {
		return nil, err
	}
	result := make([]domain.MonthCount, 0, len(rows))
	for _, row := range rows {
		result = append(result, domain.MonthCount{Month: row.Month, Count: row.Count})
	}
	return result, nil
}

func aggregate(ctx context.Context, c *mongo.Collection, pipe mongo.Pipeline, out any) error {
	cur, err := c.Aggregate(ctx, pipe)
	if err != nil {
		return err
	}
	return cur.All(ctx, out)
}
