package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// ContextKey represents keys for context values
type ContextKey string

// UserIDContextKey is where the authenticated user id is stored on the
// request context.
const UserIDContextKey ContextKey = "user_id"

// Claims are the JWT claims the CRM issues for API access.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// RequireAuth validates the Bearer token on every request and stores the
// authenticated user id in the request context.
func RequireAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authorization header required")
			}

			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization header format")
			}

			userID, err := validateToken(tokenParts[1], secret)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
			}

			c.Set(string(UserIDContextKey), userID)

			return next(c)
		}
	}
}

func validateToken(tokenString, secret string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		if err == nil {
			err = fmt.Errorf("invalid token")
		}
		return "", err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}
	if strings.TrimSpace(claims.UserID) == "" {
		return "", fmt.Errorf("token missing user id")
	}

	return claims.UserID, nil
}

// GetUserID extracts the authenticated user id from echo context. Empty when
// the auth middleware did not run.
func GetUserID(c echo.Context) string {
	v := c.Get(string(UserIDContextKey))
	if v == nil {
		return ""
	}
	userID, _ := v.(string)
	return userID
}
