// Package feed implements the follow graph, the post writer and the
// timeline aggregator on top of a store.Store.
package feed

import (
	"errors"
	"time"

	"example.com/tinyfeed/internal/logger"
	"example.com/tinyfeed/internal/store"
)

// DefaultTimelineLimit is used when a caller asks for fewer than one post.
const DefaultTimelineLimit = 20

// ErrStoreUnavailable wraps any store failure met while building a timeline.
var ErrStoreUnavailable = errors.New("feed: store unavailable")

var logg = logger.New()

// Service is safe for concurrent use as long as its store is.
type Service struct {
	store store.Store
	now   func() time.Time

	// fanout bounds the parallel queries of the per-author strategy.
	fanout int
}

type Option func(*Service)

// WithClock replaces the wall clock used to stamp new posts.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithFanout sets how many per-author queries may run at once.
func WithFanout(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.fanout = n
		}
	}
}

func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:  st,
		now:    time.Now,
		fanout: 8,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
