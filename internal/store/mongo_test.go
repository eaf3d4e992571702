package store

import (
	"testing"
	"time"

	"example.com/tinyfeed/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestMongoPostConversion(t *testing.T) {
	created := time.Date(2024, 5, 1, 9, 0, 0, 123000000, time.UTC)
	post := &models.Post{ID: "3f1c", Author: "alice", Content: "hello", Created: created}

	raw, err := bson.Marshal(postToDoc(post))
	require.NoError(t, err)

	var fields bson.M
	require.NoError(t, bson.Unmarshal(raw, &fields))
	assert.Equal(t, "3f1c", fields["_id"])
	assert.Equal(t, "alice", fields["author"])
	assert.NotContains(t, fields, "id")

	var doc postDoc
	require.NoError(t, bson.Unmarshal(raw, &doc))
	got := postFromDoc(doc)
	assert.Equal(t, post.ID, got.ID)
	assert.Equal(t, post.Author, got.Author)
	assert.Equal(t, post.Content, got.Content)
	assert.True(t, got.Created.Equal(created))
	assert.Equal(t, time.UTC, got.Created.Location())
}

func TestMongoUserConversion(t *testing.T) {
	doc := userToDoc(&models.User{Name: "bob"})
	assert.Equal(t, "bob", doc.Name)
	assert.NotNil(t, doc.Follows, "nil follows must be stored as an empty array")

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)
	var fields bson.M
	require.NoError(t, bson.Unmarshal(raw, &fields))
	assert.Equal(t, "bob", fields["_id"])
	assert.Equal(t, bson.A{}, fields["follows"])

	u := userFromDoc(userDoc{Name: "bob", Follows: []string{"alice"}})
	assert.Equal(t, &models.User{Name: "bob", Follows: []string{"alice"}}, u)
}
