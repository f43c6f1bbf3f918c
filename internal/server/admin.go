package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// AdminTokenHeader carries the admin token as an alternative to a
// bearer Authorization header.
const AdminTokenHeader = "X-Admin-Token"

// adminAuth guards the admin surface with a shared token, compared in
// constant time.
func (s *Server) adminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(AdminTokenHeader)
		if token == "" {
			auth := c.GetHeader("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				token = strings.TrimPrefix(auth, "Bearer ")
			}
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin token required"})
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.config.AdminToken)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid admin token"})
			return
		}
		c.Next()
	}
}

func (s *Server) listBreakers(c *gin.Context) {
	if s.breakers == nil {
		c.JSON(http.StatusOK, gin.H{"breakers": gin.H{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"breakers": s.breakers.Stats()})
}

func (s *Server) resetBreaker(c *gin.Context) {
	id := c.Param("id")
	if s.breakers == nil || !s.breakers.Reset(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown connector"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reset": id})
}

func (s *Server) resetAllBreakers(c *gin.Context) {
	if s.breakers != nil {
		s.breakers.ResetAll()
	}
	c.Status(http.StatusNoContent)
}
