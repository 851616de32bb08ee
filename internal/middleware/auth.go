// Package middleware contains Gin middleware functions.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ContextKeyAPIKey is where the auth middleware stores the caller's key.
const ContextKeyAPIKey = "api_key"

// APIKeyAuth validates API keys sent via the X-API-Key header or the
// api_key query param. With no keys configured the API is open.
func APIKeyAuth(validKeys []string) gin.HandlerFunc {
	if len(validKeys) == 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return keyAuth(validKeys, http.StatusUnauthorized, "API key")
}

// AdminKeyAuth validates admin keys. Admin routes are never open: with no
// admin keys configured every request is rejected.
func AdminKeyAuth(adminKeys []string) gin.HandlerFunc {
	return keyAuth(adminKeys, http.StatusForbidden, "admin API key")
}

func keyAuth(keys []string, invalidStatus int, label string) gin.HandlerFunc {
	// map[string]struct{} is Go's set idiom.
	keySet := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		keySet[k] = struct{}{}
	}

	return func(c *gin.Context) {
		key := c.GetHeader("X-API-Key")
		if key == "" {
			key = c.Query("api_key")
		}

		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing " + label,
			})
			return
		}

		if _, ok := keySet[key]; !ok {
			c.AbortWithStatusJSON(invalidStatus, gin.H{
				"error": "invalid " + label,
			})
			return
		}

		c.Set(ContextKeyAPIKey, key)
		c.Next()
	}
}
