package httputil

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/formlet/formlet-api/internal/models"
	"github.com/formlet/formlet-api/internal/repository"
)

// ContextUserKey is the gin context key the authenticated user is stored
// under by RequireUser.
const ContextUserKey = "user"

// UserStore resolves request identities
type UserStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	TouchLastSeen(ctx context.Context, id string) error
}

// RequireUser enforces the authentication boundary: the x-user-id header
// must resolve to a known user whose Airtable token has not expired.
func RequireUser(users UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("x-user-id")
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authorized"})
			return
		}

		user, err := users.GetByID(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "User not found"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Could not resolve user"})
			return
		}

		if user.TokenExpired(time.Now()) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authorized"})
			return
		}

		if err := users.TouchLastSeen(c.Request.Context(), user.ID); err != nil {
			log.Printf("Warning: failed to touch last seen for user %s: %v", user.ID, err)
		}

		c.Set(ContextUserKey, user)
		c.Next()
	}
}

// CurrentUser returns the authenticated user stored by RequireUser
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}
