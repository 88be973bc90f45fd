package services

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Default rating shown for a tour with no reviews yet.
const defaultRatingsAverage = 4.5

// ReviewService recomputes a tour's rating summary. Handlers call it after
// every review write.
type ReviewService struct {
	reviews *mongo.Collection
	tours   *mongo.Collection
}

func NewReviewService(reviews, tours *mongo.Collection) *ReviewService {
	return &ReviewService{reviews: reviews, tours: tours}
}

// CalcAverageRatings aggregates all reviews of a tour and writes the count
// and average back onto the tour document.
func (s *ReviewService) CalcAverageRatings(ctx context.Context, tourID primitive.ObjectID) error {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"tour": tourID}}},
		{{Key: "$group", Value: bson.M{
			"_id":       "$tour",
			"nRating":   bson.M{"$sum": 1},
			"avgRating": bson.M{"$avg": "$rating"},
		}}},
	}

	cursor, err := s.reviews.Aggregate(ctx, pipeline)
	if err != nil {
		return fmt.Errorf("rating aggregation failed: %w", err)
	}
	defer cursor.Close(ctx)

	var stats []struct {
		NRating   int     `bson:"nRating"`
		AvgRating float64 `bson:"avgRating"`
	}
	if err := cursor.All(ctx, &stats); err != nil {
		return err
	}

	update := bson.M{"ratingsQuantity": 0, "ratingsAverage": defaultRatingsAverage}
	if len(stats) > 0 {
		update["ratingsQuantity"] = stats[0].NRating
		update["ratingsAverage"] = stats[0].AvgRating
	}

	_, err = s.tours.UpdateOne(ctx, bson.M{"_id": tourID}, bson.M{"$set": update})
	return err
}
