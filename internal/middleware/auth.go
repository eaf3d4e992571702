package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// SessionCookie holds the signed session token.
	SessionCookie = "session"

	userCtxKey = "user"
	sessionTTL = 24 * time.Hour
)

// Sessions signs and verifies HS256 session cookies carrying the user name.
type Sessions struct {
	secret []byte
	secure bool
}

func NewSessions(secret string, secure bool) *Sessions {
	return &Sessions{secret: []byte(secret), secure: secure}
}

// Issue sets a session cookie for user.
func (s *Sessions) Issue(c *gin.Context, user string) error {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user": user,
		"exp":  time.Now().Add(sessionTTL).Unix(),
	})
	tokenStr, err := token.SignedString(s.secret)
	if err != nil {
		return err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, tokenStr, int(sessionTTL.Seconds()), "/", "", s.secure, true)
	return nil
}

// Clear expires the session cookie.
func (s *Sessions) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, "", -1, "/", "", s.secure, true)
}

// Load resolves the session cookie into the request context. Requests with a
// missing or invalid cookie continue anonymously.
func (s *Sessions) Load() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, err := c.Cookie(SessionCookie)
		if err == nil && tokenStr != "" {
			if user, err := s.Parse(tokenStr); err == nil {
				c.Set(userCtxKey, user)
			}
		}
		c.Next()
	}
}

// RequireUser redirects anonymous requests to the index page.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := UserFromContext(c); !ok {
			c.Redirect(http.StatusFound, "/")
			c.Abort()
			return
		}
		c.Next()
	}
}

// Parse validates tokenStr and returns the user it was issued for.
func (s *Sessions) Parse(tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid token claims")
	}

	user, ok := claims["user"].(string)
	if !ok || user == "" {
		return "", errors.New("invalid user in token")
	}
	return user, nil
}

// UserFromContext returns the session user set by Load.
func UserFromContext(c *gin.Context) (string, bool) {
	user := c.GetString(userCtxKey)
	return user, user != ""
}
