package feed

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"example.com/tinyfeed/internal/models"
	"example.com/tinyfeed/internal/store"
)

// EffectiveAuthorSet returns follows ∪ {user}, deduplicated and sorted.
func EffectiveAuthorSet(user string, follows []string) []string {
	set := make(map[string]struct{}, len(follows)+1)
	set[user] = struct{}{}
	for _, f := range follows {
		set[f] = struct{}{}
	}
	res := make([]string, 0, len(set))
	for name := range set {
		res = append(res, name)
	}
	sort.Strings(res)
	return res
}

// GetFollowSet returns the authors whose posts belong in user's timeline.
// A user without a record only sees themselves.
func (s *Service) GetFollowSet(ctx context.Context, user string) ([]string, error) {
	u, err := s.store.GetUser(ctx, user)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return EffectiveAuthorSet(user, nil), nil
		}
		return nil, fmt.Errorf("get user %q: %w", user, err)
	}
	return EffectiveAuthorSet(user, u.Follows), nil
}

// EnsureUser creates an empty User record on first login. It reports
// whether a record was written.
func (s *Service) EnsureUser(ctx context.Context, user string) (bool, error) {
	_, err := s.store.GetUser(ctx, user)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, fmt.Errorf("get user %q: %w", user, err)
	}
	if err := s.store.PutUser(ctx, &models.User{Name: user, Follows: []string{}}); err != nil {
		return false, fmt.Errorf("create user %q: %w", user, err)
	}
	logg.Info("feed", "Created user record for "+user)
	return true, nil
}

// AddFollow appends target to user's follow list. Self-follows and calls
// without a user are ignored.
//
// The record is read, modified and written back without any version check,
// so two concurrent AddFollow calls for the same user can lose one follow.
func (s *Service) AddFollow(ctx context.Context, user, target string) error {
	if user == "" || target == "" || user == target {
		return nil
	}

	u, err := s.store.GetUser(ctx, user)
	switch {
	case errors.Is(err, store.ErrNotFound):
		u = &models.User{Name: user}
	case err != nil:
		return fmt.Errorf("get user %q: %w", user, err)
	}

	if u.FollowsUser(target) {
		return nil
	}
	u.Follows = append(u.Follows, target)
	if err := s.store.PutUser(ctx, u); err != nil {
		return fmt.Errorf("update follows of %q: %w", user, err)
	}
	logg.Info("feed", user+" now follows "+target)
	return nil
}
