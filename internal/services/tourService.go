package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wanderly/tours-api/internal/models"
)

// Earth radius in miles and kilometers, for $centerSphere radians.
const (
	earthRadiusMi = 3963.2
	earthRadiusKm = 6378.1

	metersPerMile = 0.000621371192
	metersPerKm   = 0.001
)

// VisibleTours excludes secret tours from every public read.
func VisibleTours() bson.M {
	return bson.M{"secretTour": bson.M{"$ne": true}}
}

// TourService carries the aggregation and geospatial operations that the
// generic CRUD repository cannot express.
type TourService struct {
	tours *mongo.Collection
}

func NewTourService(tours *mongo.Collection) *TourService {
	return &TourService{tours: tours}
}

// Stats groups visible, well-rated tours by difficulty.
func (s *TourService) Stats(ctx context.Context) ([]bson.M, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: VisibleTours()}},
		{{Key: "$match", Value: bson.M{"ratingsAverage": bson.M{"$gte": 4.5}}}},
		{{Key: "$group", Value: bson.M{
			"_id":        bson.M{"$toUpper": "$difficulty"},
			"numTours":   bson.M{"$sum": 1},
			"numRatings": bson.M{"$sum": "$ratingsQuantity"},
			"avgRating":  bson.M{"$avg": "$ratingsAverage"},
			"avgPrice":   bson.M{"$avg": "$price"},
			"minPrice":   bson.M{"$min": "$price"},
			"maxPrice":   bson.M{"$max": "$price"},
		}}},
		{{Key: "$sort", Value: bson.M{"avgPrice": 1}}},
	}
	return s.aggregate(ctx, pipeline)
}

// MonthlyPlan counts tour starts per month of the given year.
func (s *TourService) MonthlyPlan(ctx context.Context, year int) ([]bson.M, error) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(year, time.December, 31, 23, 59, 59, 0, time.UTC)

	pipeline := mongo.Pipeline{
		{{Key: "$unwind", Value: "$startDates"}},
		{{Key: "$match", Value: bson.M{"startDates": bson.M{"$gte": from, "$lte": to}}}},
		{{Key: "$group", Value: bson.M{
			"_id":           bson.M{"$month": "$startDates"},
			"numTourStarts": bson.M{"$sum": 1},
			"tours":         bson.M{"$push": "$name"},
		}}},
		{{Key: "$addFields", Value: bson.M{"month": "$_id"}}},
		{{Key: "$project", Value: bson.M{"_id": 0}}},
		{{Key: "$sort", Value: bson.M{"numTourStarts": -1}}},
		{{Key: "$limit", Value: 12}},
	}
	return s.aggregate(ctx, pipeline)
}

// Within returns tours whose start location falls inside the sphere of the
// given radius around (lat, lng). unit is "mi" or "km".
func (s *TourService) Within(ctx context.Context, distance, lat, lng float64, unit string) ([]models.Tour, error) {
	radius := distance / earthRadiusKm
	if unit == "mi" {
		radius = distance / earthRadiusMi
	}

	filter := VisibleTours()
	filter["startLocation"] = bson.M{
		"$geoWithin": bson.M{
			"$centerSphere": bson.A{bson.A{lng, lat}, radius},
		},
	}

	cursor, err := s.tours.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("geo query failed: %w", err)
	}
	defer cursor.Close(ctx)

	tours := []models.Tour{}
	if err := cursor.All(ctx, &tours); err != nil {
		return nil, err
	}
	return tours, nil
}

// Distances lists every tour with its distance from (lat, lng), nearest
// first. $geoNear must be the first pipeline stage.
func (s *TourService) Distances(ctx context.Context, lat, lng float64, unit string) ([]bson.M, error) {
	multiplier := metersPerKm
	if unit == "mi" {
		multiplier = metersPerMile
	}

	pipeline := mongo.Pipeline{
		{{Key: "$geoNear", Value: bson.M{
			"near": bson.M{
				"type":        "Point",
				"coordinates": bson.A{lng, lat},
			},
			"distanceField":      "distance",
			"distanceMultiplier": multiplier,
		}}},
		{{Key: "$project", Value: bson.M{"distance": 1, "name": 1}}},
	}
	return s.aggregate(ctx, pipeline)
}

func (s *TourService) aggregate(ctx context.Context, pipeline mongo.Pipeline) ([]bson.M, error) {
	cursor, err := s.tours.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregation failed: %w", err)
	}
	defer cursor.Close(ctx)

	results := []bson.M{}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}
	return results, nil
}
