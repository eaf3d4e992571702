package feed

import (
	"context"
	"fmt"
	"time"

	"example.com/tinyfeed/internal/models"
	"github.com/google/uuid"
)

// CreatePost stores a post by author stamped with the current UTC time.
// Without an author nothing is written and nil is returned. Content is
// validated by the caller. Repeated calls create repeated posts.
func (s *Service) CreatePost(ctx context.Context, author, content string) (*models.Post, error) {
	if author == "" {
		return nil, nil
	}

	post := &models.Post{
		ID:      uuid.NewString(),
		Author:  author,
		Content: content,
		Created: s.now().UTC().Truncate(time.Millisecond),
	}
	if err := s.store.PutPost(ctx, post); err != nil {
		return nil, fmt.Errorf("store post by %q: %w", author, err)
	}
	logg.Info("feed", "Post created by "+author)
	return post, nil
}
