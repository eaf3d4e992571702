package store

import (
	"context"
	"errors"
	"time"

	"example.com/tinyfeed/internal/models"
	"github.com/gocql/gocql"
)

// --- User operations ---

// GetUser returns ErrNotFound when no row exists for name.
func (s *CassandraStore) GetUser(ctx context.Context, name string) (*models.User, error) {
	var follows []string
	err := s.Session.Query(
		`SELECT follows FROM users WHERE name = ?`,
		name,
	).WithContext(ctx).Scan(&follows)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, ErrNotFound
		}
		logg.Error("store", "Failed to query user", err)
		return nil, err
	}
	return &models.User{Name: name, Follows: follows}, nil
}

// PutUser overwrites the whole row; concurrent writers are last-write-wins.
func (s *CassandraStore) PutUser(ctx context.Context, user *models.User) error {
	if err := s.Session.Query(
		`INSERT INTO users (name, follows) VALUES (?, ?)`,
		user.Name, user.Follows,
	).WithContext(ctx).Exec(); err != nil {
		logg.Error("store", "Failed to write user", err)
		return err
	}
	return nil
}

// --- Post operations ---

func (s *CassandraStore) PutPost(ctx context.Context, post *models.Post) error {
	if err := s.Session.Query(`
		INSERT INTO posts_by_author (author, created, post_id, content)
		VALUES (?, ?, ?, ?)`,
		post.Author, post.Created, post.ID, post.Content,
	).WithContext(ctx).Exec(); err != nil {
		logg.Error("store", "Failed to add post", err)
		return err
	}
	return nil
}

func (s *CassandraStore) PostsByAuthor(ctx context.Context, author string, limit int) ([]models.Post, error) {
	iter := s.Session.Query(`
		SELECT post_id, author, content, created
		FROM posts_by_author WHERE author = ? LIMIT ?`,
		author, limit,
	).WithContext(ctx).Iter()
	return scanPosts(iter)
}

// PostsByAuthors issues a single IN query across author partitions.
// Cassandra only allows ORDER BY with a partition-key IN when paging is
// disabled, so the page size is forced to zero; servers that still refuse
// the statement surface the error and the caller falls back.
func (s *CassandraStore) PostsByAuthors(ctx context.Context, authors []string, limit int) ([]models.Post, error) {
	iter := s.Session.Query(`
		SELECT post_id, author, content, created
		FROM posts_by_author WHERE author IN ?
		ORDER BY created DESC LIMIT ?`,
		authors, limit,
	).WithContext(ctx).PageSize(0).Iter()
	return scanPosts(iter)
}

func scanPosts(iter *gocql.Iter) ([]models.Post, error) {
	var res []models.Post
	var pid, author, content string
	var created time.Time

	for iter.Scan(&pid, &author, &content, &created) {
		res = append(res, models.Post{
			ID:      pid,
			Author:  author,
			Content: content,
			Created: created.UTC(),
		})
	}

	if err := iter.Close(); err != nil {
		logg.Error("store", "Failed to read posts", err)
		return nil, err
	}
	return res, nil
}
