package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wanderly/tours-api/internal/models"
)

var (
	ErrNotFound       = errors.New("document not found")
	ErrDuplicate      = errors.New("duplicate value for a unique field")
	ErrDuplicateEmail = errors.New("email already in use")
)

// Users is the Mongo-backed user store. Every read composes the soft-delete
// predicate explicitly: deactivated accounts are invisible to all lookups.
type Users struct {
	coll *mongo.Collection
}

func NewUsers(coll *mongo.Collection) *Users {
	return &Users{coll: coll}
}

func activeFilter(extra bson.M) bson.M {
	filter := bson.M{"active": bson.M{"$ne": false}}
	for k, v := range extra {
		filter[k] = v
	}
	return filter
}

func (r *Users) Create(ctx context.Context, user *models.User) error {
	count, err := r.coll.CountDocuments(ctx, bson.M{"email": user.Email})
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrDuplicateEmail
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	_, err = r.coll.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateEmail
	}
	return err
}

func (r *Users) ByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.coll.FindOne(ctx, activeFilter(bson.M{"email": email})).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *Users) ByID(ctx context.Context, id string) (*models.User, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var user models.User
	err = r.coll.FindOne(ctx, activeFilter(bson.M{"_id": objID})).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ByResetToken finds the user holding this reset-token hash with an expiry
// still in the future.
func (r *Users) ByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	filter := activeFilter(bson.M{
		"passwordResetToken":   tokenHash,
		"passwordResetExpires": bson.M{"$gt": now},
	})
	var user models.User
	err := r.coll.FindOne(ctx, filter).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SetPassword stores a new password hash, stamps passwordChangedAt and
// clears any pending reset token in the same atomic update.
func (r *Users) SetPassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	update := bson.M{
		"$set":   bson.M{"password": passwordHash, "passwordChangedAt": changedAt},
		"$unset": bson.M{"passwordResetToken": "", "passwordResetExpires": ""},
	}
	result, err := r.coll.UpdateOne(ctx, bson.M{"_id": objID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetResetToken overwrites any prior reset state; only the latest token is
// ever accepted.
func (r *Users) SetResetToken(ctx context.Context, id, tokenHash string, expires time.Time) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	update := bson.M{"$set": bson.M{
		"passwordResetToken":   tokenHash,
		"passwordResetExpires": expires,
	}}
	_, err = r.coll.UpdateOne(ctx, bson.M{"_id": objID}, update)
	return err
}

func (r *Users) ClearResetToken(ctx context.Context, id string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	update := bson.M{"$unset": bson.M{
		"passwordResetToken":   "",
		"passwordResetExpires": "",
	}}
	_, err = r.coll.UpdateOne(ctx, bson.M{"_id": objID}, update)
	return err
}

// UpdateProfile applies a whitelisted set of fields and returns the updated
// user.
func (r *Users) UpdateProfile(ctx context.Context, id string, fields map[string]interface{}) (*models.User, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var user models.User
	err = r.coll.FindOneAndUpdate(ctx, activeFilter(bson.M{"_id": objID}), bson.M{"$set": fields}, opts).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return nil, ErrDuplicateEmail
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Deactivate soft-deletes the account; the record stays in the collection.
func (r *Users) Deactivate(ctx context.Context, id string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	_, err = r.coll.UpdateOne(ctx, bson.M{"_id": objID}, bson.M{"$set": bson.M{"active": false}})
	return err
}
