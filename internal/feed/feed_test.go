package feed

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"example.com/tinyfeed/internal/models"
	"example.com/tinyfeed/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepClock returns t0, t0+1s, t0+2s, ... on successive calls.
func stepClock(t0 time.Time) func() time.Time {
	n := 0
	return func() time.Time {
		n++
		return t0.Add(time.Duration(n-1) * time.Second)
	}
}

var t0 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func newTestService(st store.Store) *Service {
	return NewService(st, WithClock(stepClock(t0)))
}

func TestEffectiveAuthorSet(t *testing.T) {
	assert.Equal(t, []string{"alice"}, EffectiveAuthorSet("alice", nil))
	assert.Equal(t, []string{"alice", "bob", "carol"}, EffectiveAuthorSet("alice", []string{"carol", "bob", "alice", "bob"}))
}

func TestGetFollowSet(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	s := newTestService(st)

	set, err := s.GetFollowSet(ctx, "ghost")
	require.NoError(t, err)
	assert.Equal(t, []string{"ghost"}, set)

	require.NoError(t, st.PutUser(ctx, &models.User{Name: "alice", Follows: []string{"bob"}}))
	set, err = s.GetFollowSet(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, set)

	_, err = NewService(store.FailingStore{}).GetFollowSet(ctx, "alice")
	assert.Error(t, err)
}

func TestEnsureUserIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	s := newTestService(st)

	created, err := s.EnsureUser(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, created)

	require.NoError(t, s.AddFollow(ctx, "alice", "bob"))

	created, err = s.EnsureUser(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, created)

	u, err := st.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, u.Follows, "second login must not reset follows")
	assert.Equal(t, 1, st.UserCount())
}

func TestAddFollow(t *testing.T) {
	ctx := context.Background()

	t.Run("self follow is a no-op", func(t *testing.T) {
		st := store.NewMemory()
		s := newTestService(st)
		_, _ = s.EnsureUser(ctx, "alice")

		require.NoError(t, s.AddFollow(ctx, "alice", "alice"))
		set, err := s.GetFollowSet(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, []string{"alice"}, set)

		u, _ := st.GetUser(ctx, "alice")
		assert.Empty(t, u.Follows)
	})

	t.Run("double follow stores target once", func(t *testing.T) {
		st := store.NewMemory()
		s := newTestService(st)
		_, _ = s.EnsureUser(ctx, "alice")

		require.NoError(t, s.AddFollow(ctx, "alice", "bob"))
		require.NoError(t, s.AddFollow(ctx, "alice", "bob"))

		u, err := st.GetUser(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, []string{"bob"}, u.Follows)
	})

	t.Run("no session is a no-op", func(t *testing.T) {
		st := store.NewMemory()
		require.NoError(t, newTestService(st).AddFollow(ctx, "", "bob"))
		assert.Equal(t, 0, st.UserCount())
	})

	t.Run("write failure propagates", func(t *testing.T) {
		err := NewService(store.FailingStore{}).AddFollow(ctx, "alice", "bob")
		assert.Error(t, err)
	})
}

func TestCreatePost(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	s := newTestService(st)

	p, err := s.CreatePost(ctx, "", "hello")
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Equal(t, 0, st.PostCount())

	p, err = s.CreatePost(ctx, "alice", "hello")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "alice", p.Author)
	assert.Equal(t, t0, p.Created)
	assert.Equal(t, time.UTC, p.Created.Location())

	dup, err := s.CreatePost(ctx, "alice", "hello")
	require.NoError(t, err)
	assert.NotEqual(t, p.ID, dup.ID)
	assert.Equal(t, 2, st.PostCount())

	_, err = NewService(store.FailingStore{}).CreatePost(ctx, "alice", "hello")
	assert.Error(t, err)
}

func TestTimelineScenario(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	s := newTestService(st)

	_, err := s.EnsureUser(ctx, "alice")
	require.NoError(t, err)
	_, err = s.CreatePost(ctx, "alice", "hello")
	require.NoError(t, err)

	_, err = s.EnsureUser(ctx, "bob")
	require.NoError(t, err)
	require.NoError(t, s.AddFollow(ctx, "bob", "alice"))
	_, err = s.CreatePost(ctx, "bob", "hi")
	require.NoError(t, err)

	tl, err := s.GetTimeline(ctx, "bob", 20)
	require.NoError(t, err)
	require.Len(t, tl, 2)
	assert.Equal(t, "hi", tl[0].Content)
	assert.Equal(t, "bob", tl[0].Author)
	assert.Equal(t, "hello", tl[1].Content)
	assert.Equal(t, "alice", tl[1].Author)
	assert.True(t, tl[0].Created.After(tl[1].Created))

	// alice does not follow bob
	tl, err = s.GetTimeline(ctx, "alice", 20)
	require.NoError(t, err)
	require.Len(t, tl, 1)
	assert.Equal(t, "hello", tl[0].Content)
}

func TestTimelineEmptyCases(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	s := newTestService(st)

	tl, err := s.GetTimeline(ctx, "unknown_user", 20)
	require.NoError(t, err)
	assert.NotNil(t, tl)
	assert.Empty(t, tl)

	_, _ = s.EnsureUser(ctx, "loner")
	tl, err = s.GetTimeline(ctx, "loner", 20)
	require.NoError(t, err)
	assert.Empty(t, tl)
}

// seedPosts writes posts for every author with interleaved timestamps.
func seedPosts(t *testing.T, st store.Store, authors []string, perAuthor int) {
	t.Helper()
	ctx := context.Background()
	n := 0
	for i := 0; i < perAuthor; i++ {
		for _, a := range authors {
			require.NoError(t, st.PutPost(ctx, &models.Post{
				ID:      fmt.Sprintf("%s-%d", a, i),
				Author:  a,
				Content: fmt.Sprintf("%s says %d", a, i),
				Created: t0.Add(time.Duration(n) * time.Second),
			}))
			n++
		}
	}
}

func TestTimelineOrderingAndLimit(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	s := newTestService(st)

	require.NoError(t, st.PutUser(ctx, &models.User{Name: "u", Follows: []string{"a", "b", "c"}}))
	seedPosts(t, st, []string{"u", "a", "b", "c", "stranger"}, 10)

	for _, limit := range []int{1, 3, 20, 39, 40, 100} {
		tl, err := s.GetTimeline(ctx, "u", limit)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(tl), limit)
		if limit <= 40 {
			assert.Len(t, tl, limit)
		} else {
			assert.Len(t, tl, 40)
		}
		for i := 1; i < len(tl); i++ {
			assert.False(t, tl[i].Created.After(tl[i-1].Created), "limit %d: post %d out of order", limit, i)
		}
		for _, p := range tl {
			assert.NotEqual(t, "stranger", p.Author)
		}
	}

	tl, err := s.GetTimeline(ctx, "u", 0)
	require.NoError(t, err)
	assert.Len(t, tl, DefaultTimelineLimit)
}

func TestTimelineOwnPostsAlwaysVisible(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	s := newTestService(st)

	for _, user := range []string{"alice", "bob", "never-logged-in"} {
		_, err := s.CreatePost(ctx, user, "mine")
		require.NoError(t, err)
		tl, err := s.GetTimeline(ctx, user, 20)
		require.NoError(t, err)
		require.NotEmpty(t, tl)
		assert.Equal(t, user, tl[0].Author)
	}
}

func TestTimelineStrategies(t *testing.T) {
	ctx := context.Background()
	authors := []string{"u", "a", "b"}

	build := func(st *store.MemoryStore) {
		require.NoError(t, st.PutUser(ctx, &models.User{Name: "u", Follows: []string{"a", "b"}}))
		seedPosts(t, st, authors, 7)
	}

	primary := store.NewMemory()
	build(primary)
	res, err := newTestService(primary).timeline(ctx, "u", 10)
	require.NoError(t, err)
	assert.Equal(t, StrategyMembership, res.Strategy)

	t.Run("store without membership capability", func(t *testing.T) {
		st := store.NewMemory()
		build(st)
		fallback, err := newTestService(store.WithoutMembership(st)).timeline(ctx, "u", 10)
		require.NoError(t, err)
		assert.Equal(t, StrategyPerAuthor, fallback.Strategy)
		assert.Equal(t, res.Posts, fallback.Posts)
	})

	t.Run("membership query rejected at runtime", func(t *testing.T) {
		st := store.NewMemory()
		build(st)
		st.MembershipErr = errors.New("IN filter not supported by emulator")
		fallback, err := newTestService(st).timeline(ctx, "u", 10)
		require.NoError(t, err)
		assert.Equal(t, StrategyPerAuthor, fallback.Strategy)
		assert.Equal(t, res.Posts, fallback.Posts)
	})

	t.Run("membership unsupported sentinel", func(t *testing.T) {
		st := store.NewMemory()
		build(st)
		st.MembershipErr = fmt.Errorf("datastore: %w", store.ErrUnsupported)
		fallback, err := newTestService(st).timeline(ctx, "u", 10)
		require.NoError(t, err)
		assert.Equal(t, StrategyPerAuthor, fallback.Strategy)
	})
}

func TestTimelineStoreUnavailable(t *testing.T) {
	ctx := context.Background()

	_, err := NewService(store.FailingStore{}).GetTimeline(ctx, "alice", 20)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStoreUnavailable))

	// follow set readable, every post query failing
	st := &postsDown{Store: store.NewMemory()}
	_, err = NewService(st).GetTimeline(ctx, "alice", 20)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStoreUnavailable))
}

type postsDown struct {
	store.Store
}

func (p *postsDown) PostsByAuthor(context.Context, string, int) ([]models.Post, error) {
	return nil, errors.New("connection refused")
}

func (p *postsDown) PostsByAuthors(context.Context, []string, int) ([]models.Post, error) {
	return nil, errors.New("connection refused")
}
