package fakeapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	bearerPrefix = "Bearer "
	userIDKey    = "user_id"
)

var (
	ErrMissingAuthHeader = errors.New("missing authorization header")
	ErrInvalidAuthFormat = errors.New("invalid authorization header format")
	ErrEmptyToken        = errors.New("empty token")
)

func extractBearerToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", ErrMissingAuthHeader
	}

	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", ErrInvalidAuthFormat
	}

	token := strings.TrimPrefix(authHeader, bearerPrefix)
	if token == "" {
		return "", ErrEmptyToken
	}

	return token, nil
}

// respondWithDetail writes the API's {"detail": ...} error body
func (s *Server) respondWithDetail(c *gin.Context, statusCode int, err error, detail string) {
	s.logger.Debug().Err(err).Int("status", statusCode).Msg(detail)
	c.AbortWithStatusJSON(statusCode, gin.H{"detail": detail})
}

// bearerAuthMiddleware validates the access token and stores the user id
func (s *Server) bearerAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := extractBearerToken(c.GetHeader("Authorization"))
		if err != nil {
			s.respondWithDetail(c, http.StatusUnauthorized, err, "Not authenticated")
			return
		}

		userID, err := s.validateAccessToken(token)
		if err != nil {
			s.respondWithDetail(c, http.StatusUnauthorized, err, "Could not validate credentials")
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// loggingMiddleware logs each request and counts calls per route
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		route := c.Request.URL.Path
		s.mu.Lock()
		s.calls[route]++
		s.mu.Unlock()

		c.Next()

		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", route).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", c.GetHeader("X-Request-ID")).
			Msg("HTTP request")
	}
}
