package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/datastore"
	"example.com/tinyfeed/internal/models"
)

const (
	userKind = "User"
	postKind = "Post"

	// maxInValues is the Datastore limit on values in an "in" filter.
	maxInValues = 30
)

type userEntity struct {
	Follows []string `datastore:"follows"`
}

type postEntity struct {
	Author  string    `datastore:"author"`
	Content string    `datastore:"content,noindex"`
	Created time.Time `datastore:"created"`
}

// DatastoreStore uses Cloud Datastore kinds User (keyed by name) and Post
// (keyed by post ID). Set DATASTORE_EMULATOR_HOST to run against the emulator.
type DatastoreStore struct {
	client *datastore.Client
}

func NewDatastore(ctx context.Context, projectID string) (*DatastoreStore, error) {
	client, err := datastore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Datastore client: %w", err)
	}
	logg.Info("store", "Connected to Datastore project "+projectID)
	return &DatastoreStore{client: client}, nil
}

func (s *DatastoreStore) Close() error {
	return s.client.Close()
}

func (s *DatastoreStore) GetUser(ctx context.Context, name string) (*models.User, error) {
	var e userEntity
	if err := s.client.Get(ctx, datastore.NameKey(userKind, name, nil), &e); err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return nil, ErrNotFound
		}
		logg.Error("store", "Failed to get user entity", err)
		return nil, err
	}
	return &models.User{Name: name, Follows: e.Follows}, nil
}

func (s *DatastoreStore) PutUser(ctx context.Context, user *models.User) error {
	e := userEntity{Follows: user.Follows}
	if _, err := s.client.Put(ctx, datastore.NameKey(userKind, user.Name, nil), &e); err != nil {
		logg.Error("store", "Failed to put user entity", err)
		return err
	}
	return nil
}

func (s *DatastoreStore) PutPost(ctx context.Context, post *models.Post) error {
	key, e := postToEntity(post)
	if _, err := s.client.Put(ctx, key, &e); err != nil {
		logg.Error("store", "Failed to put post entity", err)
		return err
	}
	return nil
}

func (s *DatastoreStore) PostsByAuthor(ctx context.Context, author string, limit int) ([]models.Post, error) {
	q := datastore.NewQuery(postKind).
		FilterField("author", "=", author).
		Order("-created").
		Limit(limit)
	return s.getPosts(ctx, q)
}

// PostsByAuthors relies on the "in" operator; older emulators reject it and
// the error is returned to the caller unchanged. Follow sets larger than
// the "in" limit are reported as ErrUnsupported.
func (s *DatastoreStore) PostsByAuthors(ctx context.Context, authors []string, limit int) ([]models.Post, error) {
	if len(authors) > maxInValues {
		return nil, fmt.Errorf("datastore: %d authors exceed the in filter limit of %d: %w",
			len(authors), maxInValues, ErrUnsupported)
	}
	values := make([]interface{}, len(authors))
	for i, a := range authors {
		values[i] = a
	}
	q := datastore.NewQuery(postKind).
		FilterField("author", "in", values).
		Order("-created").
		Limit(limit)
	return s.getPosts(ctx, q)
}

func (s *DatastoreStore) getPosts(ctx context.Context, q *datastore.Query) ([]models.Post, error) {
	var ents []postEntity
	keys, err := s.client.GetAll(ctx, q, &ents)
	if err != nil {
		logg.Error("store", "Failed to query post entities", err)
		return nil, err
	}

	res := make([]models.Post, len(ents))
	for i, e := range ents {
		res[i] = postFromEntity(keys[i], e)
	}
	return res, nil
}

func postToEntity(post *models.Post) (*datastore.Key, postEntity) {
	return datastore.NameKey(postKind, post.ID, nil),
		postEntity{Author: post.Author, Content: post.Content, Created: post.Created}
}

// postFromEntity reads the post ID back from the key name.
func postFromEntity(key *datastore.Key, e postEntity) models.Post {
	return models.Post{
		ID:      key.Name,
		Author:  e.Author,
		Content: e.Content,
		Created: e.Created.UTC(),
	}
}
