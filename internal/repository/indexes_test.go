package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestIndexModelsBackUniquenessInvariants(t *testing.T) {
	models := indexModels()

	users := models["users"]
	require.Len(t, users, 1)
	assert.Equal(t, bson.D{{Key: "email", Value: 1}}, users[0].Keys)
	require.NotNil(t, users[0].Options)
	assert.True(t, *users[0].Options.Unique, "email must be unique")

	reviews := models["reviews"]
	require.Len(t, reviews, 1)
	assert.Equal(t, bson.D{{Key: "tour", Value: 1}, {Key: "user", Value: 1}}, reviews[0].Keys)
	require.NotNil(t, reviews[0].Options)
	assert.True(t, *reviews[0].Options.Unique, "one review per (tour, user)")
}

func TestIndexModelsIncludeGeoIndex(t *testing.T) {
	var found bool
	for _, m := range indexModels()["tours"] {
		keys, ok := m.Keys.(bson.D)
		if ok && len(keys) == 1 && keys[0].Key == "startLocation" {
			assert.Equal(t, "2dsphere", keys[0].Value)
			found = true
		}
	}
	assert.True(t, found, "geo queries need a 2dsphere index on startLocation")
}
