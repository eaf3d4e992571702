package feed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"example.com/tinyfeed/internal/models"
	"example.com/tinyfeed/internal/store"
	"golang.org/x/sync/errgroup"
)

// strategy names, in the order they are tried
const (
	StrategyMembership = "membership"
	StrategyPerAuthor  = "per-author"
)

type strategyResult struct {
	Strategy string
	Posts    []models.Post
	Err      error
}

type strategy struct {
	name string
	run  func(ctx context.Context, authors []string, limit int) ([]models.Post, error)
}

func (s *Service) strategies() []strategy {
	return []strategy{
		{name: StrategyMembership, run: s.membershipPosts},
		{name: StrategyPerAuthor, run: s.perAuthorPosts},
	}
}

// GetTimeline returns at most limit posts by user and the people they
// follow, most recent first. Posts sharing a timestamp have no defined
// order, and the two strategies may order them differently.
func (s *Service) GetTimeline(ctx context.Context, user string, limit int) ([]models.Post, error) {
	res, err := s.timeline(ctx, user, limit)
	if err != nil {
		return nil, err
	}
	return res.Posts, nil
}

func (s *Service) timeline(ctx context.Context, user string, limit int) (strategyResult, error) {
	if limit < 1 {
		limit = DefaultTimelineLimit
	}

	authors, err := s.GetFollowSet(ctx, user)
	if err != nil {
		return strategyResult{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var last strategyResult
	for _, st := range s.strategies() {
		last = s.try(ctx, st, authors, limit)
		if last.Err == nil {
			logg.Debug("feed", "Timeline for "+user+" served by "+last.Strategy+" strategy ("+strconv.Itoa(len(last.Posts))+" posts)")
			return last, nil
		}
		if errors.Is(last.Err, store.ErrUnsupported) {
			logg.Debug("feed", "Strategy "+st.name+" not supported by store")
			continue
		}
		logg.Error("feed", "Timeline strategy "+st.name+" failed", last.Err)
	}
	return strategyResult{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, last.Err)
}

func (s *Service) try(ctx context.Context, st strategy, authors []string, limit int) strategyResult {
	posts, err := st.run(ctx, authors, limit)
	if err != nil {
		return strategyResult{Strategy: st.name, Err: err}
	}
	return strategyResult{Strategy: st.name, Posts: mergeRecent(posts, limit)}
}

// membershipPosts asks the store for every author in one query.
func (s *Service) membershipPosts(ctx context.Context, authors []string, limit int) ([]models.Post, error) {
	mq, ok := s.store.(store.MembershipQuerier)
	if !ok {
		return nil, store.ErrUnsupported
	}
	return mq.PostsByAuthors(ctx, authors, limit)
}

// perAuthorPosts issues one equality query per author and concatenates the
// results. Every author contributes at most limit posts, which is enough
// for the global top limit.
func (s *Service) perAuthorPosts(ctx context.Context, authors []string, limit int) ([]models.Post, error) {
	batches := make([][]models.Post, len(authors))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fanout)
	for i, author := range authors {
		g.Go(func() error {
			posts, err := s.store.PostsByAuthor(gctx, author, limit)
			if err != nil {
				return fmt.Errorf("posts by %q: %w", author, err)
			}
			batches[i] = posts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []models.Post
	for _, b := range batches {
		all = append(all, b...)
	}
	return all, nil
}

// mergeRecent sorts posts by Created descending and truncates to limit.
func mergeRecent(posts []models.Post, limit int) []models.Post {
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].Created.After(posts[j].Created)
	})
	if len(posts) > limit {
		posts = posts[:limit]
	}
	if posts == nil {
		posts = []models.Post{}
	}
	return posts
}
