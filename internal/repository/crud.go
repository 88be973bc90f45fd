package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wanderly/tours-api/internal/query"
)

// CRUD is the generic collection repository shared by tours, reviews,
// bookings and the admin user routes. List runs the full query pipeline
// (filter, sort, field selection, pagination) on top of a base filter the
// caller controls.
type CRUD[T any] struct {
	coll *mongo.Collection
}

func NewCRUD[T any](coll *mongo.Collection) *CRUD[T] {
	return &CRUD[T]{coll: coll}
}

func (r *CRUD[T]) Collection() *mongo.Collection {
	return r.coll
}

// List executes filter -> sort -> field selection -> pagination. Base-filter
// entries win over client-supplied predicates on the same field.
func (r *CRUD[T]) List(ctx context.Context, base bson.M, params query.Params) ([]T, error) {
	features, err := query.Features{}.Filter(params)
	if err != nil {
		return nil, err
	}
	features = features.Sort(params).LimitFields(params).Paginate(params)

	criteria := features.Criteria()
	for k, v := range base {
		criteria[k] = v
	}

	cursor, err := r.coll.Find(ctx, criteria, features.FindOptions())
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	docs := []T{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *CRUD[T]) Get(ctx context.Context, id string, base bson.M) (*T, error) {
	filter, err := idFilter(id, base)
	if err != nil {
		return nil, err
	}
	var doc T
	err = r.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *CRUD[T]) Create(ctx context.Context, doc *T) error {
	_, err := r.coll.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

// Update applies a $set of the given fields and returns the new document.
func (r *CRUD[T]) Update(ctx context.Context, id string, fields bson.M, base bson.M) (*T, error) {
	filter, err := idFilter(id, base)
	if err != nil {
		return nil, err
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc T
	err = r.coll.FindOneAndUpdate(ctx, filter, bson.M{"$set": fields}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *CRUD[T]) Delete(ctx context.Context, id string, base bson.M) error {
	filter, err := idFilter(id, base)
	if err != nil {
		return err
	}
	result, err := r.coll.DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func idFilter(id string, base bson.M) (bson.M, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	filter := bson.M{"_id": objID}
	for k, v := range base {
		filter[k] = v
	}
	return filter, nil
}
