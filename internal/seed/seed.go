// Package seed generates synthetic users, follows and posts.
package seed

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"example.com/tinyfeed/internal/logger"
	"example.com/tinyfeed/internal/models"
	"example.com/tinyfeed/internal/store"
	"github.com/google/uuid"
)

// Upper bounds accepted for a single run.
const (
	MaxUsers = 10000
	MaxPosts = 100000
)

// PostStep separates the synthetic timestamps of consecutive posts.
const PostStep = time.Second

var logg = logger.New()

var ErrInvalidParams = errors.New("seed: invalid parameters")

type Params struct {
	Users      int    `json:"users"`
	Posts      int    `json:"posts"`
	FollowsMin int    `json:"follows_min"`
	FollowsMax int    `json:"follows_max"`
	Prefix     string `json:"prefix"`
}

// DefaultParams are substituted for missing or unparsable inputs.
func DefaultParams() Params {
	return Params{Users: 10, Posts: 100, FollowsMin: 1, FollowsMax: 5, Prefix: "user"}
}

// Validate reports range violations wrapped in ErrInvalidParams.
func (p Params) Validate() error {
	switch {
	case p.Users < 1 || p.Users > MaxUsers:
		return fmt.Errorf("%w: users must be between 1 and %d", ErrInvalidParams, MaxUsers)
	case p.Posts < 0 || p.Posts > MaxPosts:
		return fmt.Errorf("%w: posts must be between 0 and %d", ErrInvalidParams, MaxPosts)
	case p.FollowsMin < 0:
		return fmt.Errorf("%w: follows_min must not be negative", ErrInvalidParams)
	case p.FollowsMax < p.FollowsMin:
		return fmt.Errorf("%w: follows_max must be >= follows_min", ErrInvalidParams)
	case p.Prefix == "":
		return fmt.Errorf("%w: prefix must not be empty", ErrInvalidParams)
	}
	return nil
}

type Result struct {
	UsersCreated int `json:"users_created"`
	UsersSkipped int `json:"users_skipped"`
	PostsCreated int `json:"posts_created"`
}

// Seeder writes directly to the store; it is not idempotent for posts.
type Seeder struct {
	store store.Store
	now   func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

func New(st store.Store, rnd *rand.Rand) *Seeder {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Seeder{store: st, now: time.Now, rnd: rnd}
}

// UserName returns the generated name of the i-th user.
func UserName(prefix string, i int) string {
	return prefix + strconv.Itoa(i)
}

// Run creates the missing users with random follows, then appends posts.
func (s *Seeder) Run(ctx context.Context, p Params) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, p.Users)
	for i := range names {
		names[i] = UserName(p.Prefix, i)
	}

	var res Result
	var created []string
	for _, name := range names {
		_, err := s.store.GetUser(ctx, name)
		if err == nil {
			res.UsersSkipped++
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return res, fmt.Errorf("lookup %q: %w", name, err)
		}
		if err := s.store.PutUser(ctx, &models.User{Name: name, Follows: []string{}}); err != nil {
			return res, fmt.Errorf("create %q: %w", name, err)
		}
		created = append(created, name)
		res.UsersCreated++
	}

	for _, name := range created {
		follows := s.pickFollows(name, names, p.FollowsMin, p.FollowsMax)
		if err := s.store.PutUser(ctx, &models.User{Name: name, Follows: follows}); err != nil {
			return res, fmt.Errorf("set follows of %q: %w", name, err)
		}
	}

	base := s.now().UTC().Truncate(time.Millisecond)
	for i := 0; i < p.Posts; i++ {
		author := names[s.rnd.Intn(len(names))]
		post := &models.Post{
			ID:      uuid.NewString(),
			Author:  author,
			Content: "Synthetic post #" + strconv.Itoa(i) + " by " + author,
			Created: base.Add(-time.Duration(i) * PostStep),
		}
		if err := s.store.PutPost(ctx, post); err != nil {
			return res, fmt.Errorf("create post %d: %w", i, err)
		}
		res.PostsCreated++
	}

	logg.Info("seed", fmt.Sprintf("Seed with prefix %q done: %d users created, %d skipped, %d posts",
		p.Prefix, res.UsersCreated, res.UsersSkipped, res.PostsCreated))
	return res, nil
}

// pickFollows draws a fan-out in [lo, hi] from names without self.
func (s *Seeder) pickFollows(self string, names []string, lo, hi int) []string {
	candidates := make([]string, 0, len(names)-1)
	for _, n := range names {
		if n != self {
			candidates = append(candidates, n)
		}
	}
	hi = min(hi, len(candidates))
	lo = min(lo, hi)
	n := lo
	if hi > lo {
		n += s.rnd.Intn(hi - lo + 1)
	}

	s.rnd.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	return append([]string{}, candidates[:n]...)
}
