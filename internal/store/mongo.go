package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"example.com/tinyfeed/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type userDoc struct {
	Name    string   `bson:"_id"`
	Follows []string `bson:"follows"`
}

type postDoc struct {
	ID      string    `bson:"_id"`
	Author  string    `bson:"author"`
	Content string    `bson:"content"`
	Created time.Time `bson:"created"`
}

// MongoStore keeps users and posts in two collections of one database.
type MongoStore struct {
	client *mongo.Client
	users  *mongo.Collection
	posts  *mongo.Collection
}

// NewMongo connects, pings and makes sure the posts index exists.
func NewMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client: client,
		users:  db.Collection("users"),
		posts:  db.Collection("posts"),
	}

	indexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "author", Value: 1}, {Key: "created", Value: -1}},
	}
	if _, err := s.posts.Indexes().CreateOne(pingCtx, indexModel); err != nil {
		logg.Warn("store", "Failed to create posts index on author/created")
	}

	logg.Info("store", "Connected to MongoDB database "+database)
	return s, nil
}

func (s *MongoStore) Close() error {
	if err := s.client.Disconnect(context.Background()); err != nil {
		return fmt.Errorf("failed to disconnect MongoDB: %w", err)
	}
	logg.Info("store", "MongoDB client disconnected")
	return nil
}

func (s *MongoStore) GetUser(ctx context.Context, name string) (*models.User, error) {
	var doc userDoc
	err := s.users.FindOne(ctx, bson.M{"_id": name}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		logg.Error("store", "Failed to find user", err)
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return userFromDoc(doc), nil
}

func (s *MongoStore) PutUser(ctx context.Context, user *models.User) error {
	_, err := s.users.ReplaceOne(ctx,
		bson.M{"_id": user.Name},
		userToDoc(user),
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		logg.Error("store", "Failed to write user", err)
		return fmt.Errorf("failed to write user: %w", err)
	}
	return nil
}

func (s *MongoStore) PutPost(ctx context.Context, post *models.Post) error {
	_, err := s.posts.InsertOne(ctx, postToDoc(post))
	if err != nil {
		logg.Error("store", "Failed to add post", err)
		return fmt.Errorf("failed to add post: %w", err)
	}
	return nil
}

func (s *MongoStore) PostsByAuthor(ctx context.Context, author string, limit int) ([]models.Post, error) {
	return s.findPosts(ctx, bson.M{"author": author}, limit)
}

func (s *MongoStore) PostsByAuthors(ctx context.Context, authors []string, limit int) ([]models.Post, error) {
	return s.findPosts(ctx, bson.M{"author": bson.M{"$in": authors}}, limit)
}

func (s *MongoStore) findPosts(ctx context.Context, filter bson.M, limit int) ([]models.Post, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.posts.Find(ctx, filter, opts)
	if err != nil {
		logg.Error("store", "Failed to query posts", err)
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []postDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode posts: %w", err)
	}

	res := make([]models.Post, len(docs))
	for i, d := range docs {
		res[i] = postFromDoc(d)
	}
	return res, nil
}

// userToDoc stores nil follows as an empty array.
func userToDoc(user *models.User) userDoc {
	follows := user.Follows
	if follows == nil {
		follows = []string{}
	}
	return userDoc{Name: user.Name, Follows: follows}
}

func userFromDoc(doc userDoc) *models.User {
	return &models.User{Name: doc.Name, Follows: doc.Follows}
}

func postToDoc(post *models.Post) postDoc {
	return postDoc{ID: post.ID, Author: post.Author, Content: post.Content, Created: post.Created}
}

func postFromDoc(d postDoc) models.Post {
	return models.Post{ID: d.ID, Author: d.Author, Content: d.Content, Created: d.Created.UTC()}
}
