package seed

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"example.com/tinyfeed/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCreatesUsersOnceAndPostsEveryTime(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	s := New(st, rand.New(rand.NewSource(42)))

	p := Params{Users: 5, Posts: 30, FollowsMin: 1, FollowsMax: 3, Prefix: "seed"}

	res, err := s.Run(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, Result{UsersCreated: 5, PostsCreated: 30}, res)
	assert.Equal(t, 5, st.UserCount())
	assert.Equal(t, 30, st.PostCount())

	res, err = s.Run(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, Result{UsersSkipped: 5, PostsCreated: 30}, res)
	assert.Equal(t, 5, st.UserCount())
	assert.Equal(t, 60, st.PostCount())
}

func TestRunFollowFanOut(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	s := New(st, rand.New(rand.NewSource(7)))

	_, err := s.Run(ctx, Params{Users: 8, Posts: 0, FollowsMin: 2, FollowsMax: 4, Prefix: "u"})
	require.NoError(t, err)

	for i := 0; i < 8; i++ {
		name := UserName("u", i)
		u, err := st.GetUser(ctx, name)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(u.Follows), 2)
		assert.LessOrEqual(t, len(u.Follows), 4)

		seen := map[string]bool{}
		for _, f := range u.Follows {
			assert.NotEqual(t, name, f, "user follows itself")
			assert.False(t, seen[f], "duplicate follow %s", f)
			seen[f] = true
		}
	}
}

func TestRunClampsFanOutToPopulation(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	_, err := New(st, rand.New(rand.NewSource(1))).Run(ctx, Params{Users: 3, FollowsMin: 5, FollowsMax: 9, Prefix: "p"})
	require.NoError(t, err)

	u, err := st.GetUser(ctx, "p0")
	require.NoError(t, err)
	assert.Len(t, u.Follows, 2)
}

func TestRunPostTimestampsDecrease(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	_, err := New(st, rand.New(rand.NewSource(3))).Run(ctx, Params{Users: 1, Posts: 5, Prefix: "solo"})
	require.NoError(t, err)

	posts, err := st.PostsByAuthor(ctx, "solo0", 10)
	require.NoError(t, err)
	require.Len(t, posts, 5)
	for i := 1; i < len(posts); i++ {
		assert.Equal(t, PostStep, posts[i-1].Created.Sub(posts[i].Created))
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, DefaultParams().Validate())

	bad := []Params{
		{Users: 0, Posts: 1, Prefix: "x"},
		{Users: MaxUsers + 1, Prefix: "x"},
		{Users: 1, Posts: -1, Prefix: "x"},
		{Users: 1, FollowsMin: -1, Prefix: "x"},
		{Users: 1, FollowsMin: 3, FollowsMax: 2, Prefix: "x"},
		{Users: 1},
	}
	for _, p := range bad {
		err := p.Validate()
		assert.True(t, errors.Is(err, ErrInvalidParams), "%+v: %v", p, err)
	}
}

func TestRunPropagatesStoreErrors(t *testing.T) {
	_, err := New(store.FailingStore{}, nil).Run(context.Background(), DefaultParams())
	assert.Error(t, err)
}
