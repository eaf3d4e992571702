package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"example.com/tinyfeed/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// runStoreContract exercises the behaviour every backend must share.
func runStoreContract(t *testing.T, s Store) {
	ctx := context.Background()

	t.Run("missing user", func(t *testing.T) {
		_, err := s.GetUser(ctx, "nobody")
		require.True(t, errors.Is(err, ErrNotFound), "got %v", err)
	})

	t.Run("user round trip and overwrite", func(t *testing.T) {
		require.NoError(t, s.PutUser(ctx, &models.User{Name: "alice"}))
		u, err := s.GetUser(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "alice", u.Name)
		assert.Empty(t, u.Follows)

		require.NoError(t, s.PutUser(ctx, &models.User{Name: "alice", Follows: []string{"bob", "carol"}}))
		u, err = s.GetUser(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, []string{"bob", "carol"}, u.Follows)
	})

	t.Run("posts ordered and limited", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			for _, author := range []string{"bob", "carol", "dave"} {
				require.NoError(t, s.PutPost(ctx, &models.Post{
					ID:      fmt.Sprintf("%s-%d", author, i),
					Author:  author,
					Content: fmt.Sprintf("post %d", i),
					Created: base.Add(time.Duration(i) * time.Minute),
				}))
			}
		}

		posts, err := s.PostsByAuthor(ctx, "bob", 3)
		require.NoError(t, err)
		require.Len(t, posts, 3)
		for i, p := range posts {
			assert.Equal(t, "bob", p.Author)
			assert.True(t, p.Created.Equal(base.Add(time.Duration(4-i)*time.Minute)), "post %d created %v", i, p.Created)
		}
		assert.Equal(t, "bob-4", posts[0].ID)
		assert.Equal(t, "post 4", posts[0].Content)

		mq, ok := s.(MembershipQuerier)
		require.True(t, ok)
		posts, err = mq.PostsByAuthors(ctx, []string{"bob", "carol"}, 4)
		require.NoError(t, err)
		require.Len(t, posts, 4)
		for i, p := range posts {
			assert.Contains(t, []string{"bob", "carol"}, p.Author)
			if i > 0 {
				assert.False(t, p.Created.After(posts[i-1].Created))
			}
		}
	})

	t.Run("unknown author yields no posts", func(t *testing.T) {
		posts, err := s.PostsByAuthor(ctx, "ghost", 10)
		require.NoError(t, err)
		assert.Empty(t, posts)
	})
}

func TestWithoutMembershipHidesCapability(t *testing.T) {
	s := WithoutMembership(NewMemory())
	_, ok := s.(MembershipQuerier)
	assert.False(t, ok)

	_, err := s.GetUser(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotFound)
}
