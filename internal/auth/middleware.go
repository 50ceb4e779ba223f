package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const tokenIndexContextKey = "auth_token_index"

// Middleware validates bearer tokens and stores the matched token index in the context.
func (s *Service) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := s.extractToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrTokenRequired.Error()})
			return
		}
		idx, err := s.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set(tokenIndexContextKey, idx)
		c.Next()
	}
}

// TokenIndexFromContext retrieves which configured token authenticated the request.
func TokenIndexFromContext(c *gin.Context) (int, bool) {
	val, ok := c.Get(tokenIndexContextKey)
	if !ok {
		return 0, false
	}
	idx, ok := val.(int)
	return idx, ok
}

func (s *Service) extractToken(c *gin.Context) string {
	authHeader := c.GetHeader(s.headerName)
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
