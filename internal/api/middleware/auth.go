package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"voyago/backend/internal/auth"
	"voyago/backend/internal/logger"
	"voyago/backend/internal/models"
	"voyago/backend/internal/services"
	"voyago/backend/internal/utils"
)

const (
	// ContextKeyUserID holds the authenticated utils.SixID.
	ContextKeyUserID = "userID"
	// ContextKeyIsAdmin holds the admin flag from the token.
	ContextKeyIsAdmin = "isAdmin"
	// ContextKeyClaims holds the validated *auth.Claims.
	ContextKeyClaims = "claims"
	// ContextKeyUser holds the stored *models.User.
	ContextKeyUser = "user"
)

// AuthMiddleware validates the bearer token. Tokens are accepted from the
// Authorization header or, for EventSource clients that cannot set
// headers, the access_token query parameter.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.Query("access_token")
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}"})
				return
			}
			tokenString = parts[1]
		}
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		claims, err := auth.ValidateJWT(tokenString, jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": fmt.Sprintf("Invalid or expired token: %v", err)})
			return
		}
		userID, err := utils.ParseSixID(claims.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid user ID in token"})
			return
		}

		c.Set(ContextKeyUserID, userID)
		c.Set(ContextKeyIsAdmin, claims.IsAdmin)
		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// UserMiddleware loads the caller's user document, creating it on first
// sight of the identity. Runs after AuthMiddleware.
func UserMiddleware(userService services.IUserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := c.Get(ContextKeyClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		cl := claims.(*auth.Claims)
		user, err := userService.EnsureUser(c.Request.Context(), c.MustGet(ContextKeyUserID).(utils.SixID), cl.Name, cl.Email)
		if err != nil {
			logger.FromGin(c).Error("Failed to load user", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user"})
			return
		}
		c.Set(ContextKeyUser, user)
		c.Next()
	}
}

// RequireRole rejects users whose stored roles lack role. Runs after UserMiddleware.
func RequireRole(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, exists := c.Get(ContextKeyUser)
		user, ok := u.(*models.User)
		if !exists || !ok || !user.HasRole(role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": fmt.Sprintf("The %s role is required", role)})
			return
		}
		c.Next()
	}
}

// AdminMiddleware checks for admin privileges. Assumes AuthMiddleware runs first.
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		isAdmin, exists := c.Get(ContextKeyIsAdmin)
		if !exists || !isAdmin.(bool) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Administrator privileges required"})
			return
		}
		c.Next()
	}
}
