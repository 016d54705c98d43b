package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const authTypeKey = "auth_type"

const (
	authTypeAPIKey = "apikey"
	authTypeBearer = "bearer"
)

// authMiddleware accepts either the configured static API key in X-API-Key or
// a bearer token HMAC-signed with the shared JWT secret.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for API Key in header
		apiKey := c.GetHeader("X-API-Key")
		if apiKey != "" {
			if s.config.HTTP.APIKey == "" ||
				subtle.ConstantTimeCompare([]byte(apiKey), []byte(s.config.HTTP.APIKey)) != 1 {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
				c.Abort()
				return
			}
			c.Set(authTypeKey, authTypeAPIKey)
			c.Next()
			return
		}

		// Check for Bearer token
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization format"})
			c.Abort()
			return
		}

		token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(s.config.JWT.Secret), nil
		})

		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		c.Set(authTypeKey, authTypeBearer)
		c.Next()
	}
}
