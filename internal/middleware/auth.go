package middleware

import (
	"errors"
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"ieltsprep_app_echo/internal/models"
)

// Context keys set by RequireAuth for downstream handlers
const (
	ContextUserID    = "userID"
	ContextUserEmail = "userEmail"
	ContextUserType  = "userType"
)

// RequireAuth verifies the Firebase bearer token on every request and
// resolves it to a local user row, auto-provisioning one on first sight.
// Handlers must take the acting user from the context, never from the
// request body.
func RequireAuth(authClient *auth.Client, db *gorm.DB) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if authClient == nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "auth is not configured")
			}

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			decodedToken, err := authClient.VerifyIDToken(c.Request().Context(), tokenString)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			user, err := resolveUser(db, decodedToken)
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "failed to resolve user")
			}

			c.Set(ContextUserID, user.ID)
			c.Set(ContextUserEmail, user.Email)
			c.Set(ContextUserType, user.UserType)

			return next(c)
		}
	}
}

// resolveUser finds the local row for a verified token, creating one from
// the token claims when missing
func resolveUser(db *gorm.DB, token *auth.Token) (*models.User, error) {
	var user models.User
	err := db.Where("firebase_uid = ?", token.UID).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user = models.User{
		FirebaseUID: token.UID,
		UserType:    models.UserTypeMember,
	}
	if email, ok := token.Claims["email"].(string); ok {
		user.Email = email
	}
	if name, ok := token.Claims["name"].(string); ok {
		user.Name = name
	}
	if err := db.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// RequireAdmin gates content-management endpoints. Must run after
// RequireAuth.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userType, ok := c.Get(ContextUserType).(models.UserType)
			if !ok || userType != models.UserTypeAdmin {
				return echo.NewHTTPError(http.StatusForbidden, "admin access required")
			}
			return next(c)
		}
	}
}

// UserID extracts the acting user's id from the context. Returns 0 when the
// middleware did not run (programming error on a protected route).
func UserID(c echo.Context) uint {
	if id, ok := c.Get(ContextUserID).(uint); ok {
		return id
	}
	return 0
}

// UserEmail extracts the acting user's email from the context
func UserEmail(c echo.Context) string {
	if email, ok := c.Get(ContextUserEmail).(string); ok {
		return email
	}
	return ""
}
