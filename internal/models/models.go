package models

import "time"

// User is keyed by Name. Follows is append-only and never contains the
// implicit self-follow.
type User struct {
	Name    string   `json:"name"`
	Follows []string `json:"follows"`
}

// FollowsUser reports whether target is already in u's follow list.
func (u *User) FollowsUser(target string) bool {
	for _, f := range u.Follows {
		if f == target {
			return true
		}
	}
	return false
}

type Post struct {
	ID      string    `json:"id"`
	Author  string    `json:"author"`
	Content string    `json:"content"`
	Created time.Time `json:"created"`
}
