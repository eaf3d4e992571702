package server

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"

	appkafka "example.com/tinyfeed/internal/broker"
	"example.com/tinyfeed/internal/middleware"
	"example.com/tinyfeed/internal/models"
	"example.com/tinyfeed/internal/seed"
	"github.com/gin-gonic/gin"
)

const maxTimelineLimit = 100

// --- HTML routes ---

// indexHandler renders the page; timeline read failures render as empty.
func (s *Server) indexHandler(c *gin.Context) {
	user, ok := middleware.UserFromContext(c)
	timeline := []models.Post{}
	if ok {
		posts, err := s.feed.GetTimeline(c.Request.Context(), user, s.timelineLimit)
		if err != nil {
			logg.Error("http/index", "Timeline unavailable, rendering empty", err)
		} else {
			timeline = posts
		}
	}
	c.HTML(http.StatusOK, "index.html", gin.H{
		"User":     user,
		"Timeline": timeline,
	})
}

// loginHandler ensures the User record exists and sets the session cookie.
// Form field: username
func (s *Server) loginHandler(c *gin.Context) {
	username := strings.TrimSpace(c.PostForm("username"))
	if username == "" {
		c.String(http.StatusBadRequest, "username is required")
		return
	}

	created, err := s.feed.EnsureUser(c.Request.Context(), username)
	if err != nil {
		logg.Error("http/login", "Failed to ensure user", err)
		c.String(http.StatusInternalServerError, "internal error")
		return
	}
	if created {
		logg.Info("http/login", "User created: "+username)
	}

	if err := s.sessions.Issue(c, username); err != nil {
		logg.Error("http/login", "Failed to sign session", err)
		c.String(http.StatusInternalServerError, "internal error")
		return
	}
	c.Redirect(http.StatusFound, "/")
}

func (s *Server) logoutHandler(c *gin.Context) {
	s.sessions.Clear(c)
	c.Redirect(http.StatusFound, "/")
}

// postHandler stores a post authored by the session user.
// Form field: content
func (s *Server) postHandler(c *gin.Context) {
	user, _ := middleware.UserFromContext(c)
	content := c.PostForm("content")
	if strings.TrimSpace(content) == "" {
		c.String(http.StatusBadRequest, "content is required")
		return
	}

	if _, err := s.feed.CreatePost(c.Request.Context(), user, content); err != nil {
		logg.Error("http/post", "Failed to save post", err)
		c.String(http.StatusInternalServerError, "internal error")
		return
	}
	c.Redirect(http.StatusFound, "/")
}

// followHandler adds to_follow to the session user's follow list.
// Form field: to_follow
func (s *Server) followHandler(c *gin.Context) {
	user, _ := middleware.UserFromContext(c)
	target := strings.TrimSpace(c.PostForm("to_follow"))
	if target == "" {
		c.String(http.StatusBadRequest, "to_follow is required")
		return
	}

	if err := s.feed.AddFollow(c.Request.Context(), user, target); err != nil {
		logg.Error("http/follow", "Failed to add follow", err)
		c.String(http.StatusInternalServerError, "internal error")
		return
	}
	logg.Info("http/follow", "User "+user+" followed "+target)
	c.Redirect(http.StatusFound, "/")
}

// --- JSON routes ---

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func jsonError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "message": msg})
}

// timelineHandler returns the timeline of ?user= as JSON.
// Query parameters: ?user=alice&limit=20
func (s *Server) timelineHandler(c *gin.Context) {
	user := strings.TrimSpace(c.Query("user"))
	if user == "" {
		jsonError(c, http.StatusBadRequest, "user is required")
		return
	}

	limit := s.timelineLimit
	if l, err := strconv.Atoi(c.Query("limit")); err == nil {
		limit = clampLimit(l)
	}

	posts, err := s.feed.GetTimeline(c.Request.Context(), user, limit)
	if err != nil {
		logg.Error("http/timeline", "Timeline unavailable, returning empty", err)
		posts = []models.Post{}
	}
	c.JSON(http.StatusOK, posts)
}

func clampLimit(l int) int {
	return max(1, min(l, maxTimelineLimit))
}

// seedHandler generates synthetic data. Parameters come from the form or
// the query string: users, posts, follows_min, follows_max, prefix, async.
func (s *Server) seedHandler(c *gin.Context) {
	if !s.seedAuthorized(c) {
		logg.Warn("http/seed", "Rejected seed request with invalid token")
		jsonError(c, http.StatusForbidden, "invalid seed token")
		return
	}

	def := seed.DefaultParams()
	p := seed.Params{
		Users:      intParam(c, "users", def.Users),
		Posts:      intParam(c, "posts", def.Posts),
		FollowsMin: intParam(c, "follows_min", def.FollowsMin),
		FollowsMax: intParam(c, "follows_max", def.FollowsMax),
		Prefix:     param(c, "prefix"),
	}
	if p.Prefix == "" {
		p.Prefix = def.Prefix
	}
	if err := p.Validate(); err != nil {
		jsonError(c, http.StatusBadRequest, err.Error())
		return
	}

	if async, _ := strconv.ParseBool(param(c, "async")); async {
		s.enqueueSeed(c, p)
		return
	}

	res, err := s.seeder.Run(c.Request.Context(), p)
	if err != nil {
		logg.Error("http/seed", "Seeding failed", err)
		if errors.Is(err, seed.ErrInvalidParams) {
			jsonError(c, http.StatusBadRequest, err.Error())
			return
		}
		jsonError(c, http.StatusInternalServerError, "seeding failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": res})
}

func (s *Server) enqueueSeed(c *gin.Context, p seed.Params) {
	if s.seedWriter == nil {
		jsonError(c, http.StatusServiceUnavailable, "async seeding is not configured")
		return
	}
	if err := appkafka.PublishSeedJob(s.seedWriter, p); err != nil {
		logg.Error("http/seed", "Failed to publish seed job", err)
		jsonError(c, http.StatusInternalServerError, "failed to queue seed job")
		return
	}
	logg.Info("http/seed", "Seed job queued with prefix "+p.Prefix)
	c.JSON(http.StatusAccepted, gin.H{"success": true, "message": "seed job queued", "params": p})
}

// seedAuthorized accepts the token as form field, query parameter or
// X-Seed-Token header. An empty configured token disables the check.
func (s *Server) seedAuthorized(c *gin.Context) bool {
	if s.seedToken == "" {
		return true
	}
	got := param(c, "token")
	if got == "" {
		got = c.GetHeader("X-Seed-Token")
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.seedToken)) == 1
}

// param prefers the form value over the query string.
func param(c *gin.Context, name string) string {
	if v, ok := c.GetPostForm(name); ok {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(c.Query(name))
}

// intParam falls back to def for missing or non-numeric values.
func intParam(c *gin.Context, name string, def int) int {
	if n, err := strconv.Atoi(param(c, name)); err == nil {
		return n
	}
	return def
}
