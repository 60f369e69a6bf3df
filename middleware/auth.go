package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"

	"github.com/clubkit/tournament-engine/models"
)

type contextKey string

const userContextKey contextKey = "user"

// Claim names issued by the platform's auth service.
const (
	jwtClaimUserID = "user_id"
	jwtClaimRole   = "role"
	jwtClaimClubID = "club_id"
)

// Authenticate validates the Bearer token and stores its claims in the
// request context. Tokens are HMAC-signed by the platform with the shared
// secret.
func Authenticate(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				http.Error(w, "malformed authorization header", http.StatusUnauthorized)
				return
			}

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireOrganizer rejects requests whose token carries neither the
// organizer nor the admin role.
func RequireOrganizer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, err := GetUserRoleFromContext(r.Context())
		if err != nil {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if !role.CanOrganize() {
			http.Error(w, "organizer role required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func GetUserIDFromContext(ctx context.Context) (int, error) {
	return intClaim(ctx, jwtClaimUserID)
}

// GetClubIDFromContext returns the tenant the token is scoped to. Every
// repository call requires it.
func GetClubIDFromContext(ctx context.Context) (int, error) {
	return intClaim(ctx, jwtClaimClubID)
}

func GetUserRoleFromContext(ctx context.Context) (models.UserRole, error) {
	claims, ok := ctx.Value(userContextKey).(jwt.MapClaims)
	if !ok {
		return "", errors.New("user claims not found in context")
	}
	roleStr, ok := claims[jwtClaimRole].(string)
	if !ok {
		return "", fmt.Errorf("missing or invalid '%s' claim", jwtClaimRole)
	}
	role := models.UserRole(roleStr)
	switch role {
	case models.UserRoleAdmin, models.UserRoleOrganizer, models.UserRolePlayer:
		return role, nil
	default:
		return "", fmt.Errorf("invalid role value in claim: %q", roleStr)
	}
}

func intClaim(ctx context.Context, name string) (int, error) {
	claims, ok := ctx.Value(userContextKey).(jwt.MapClaims)
	if !ok {
		return 0, errors.New("user claims not found in context")
	}
	raw, ok := claims[name]
	if !ok {
		return 0, fmt.Errorf("missing '%s' claim in token", name)
	}
	// Numeric JSON claims decode as float64.
	f, ok := raw.(float64)
	if !ok || f != float64(int(f)) {
		return 0, fmt.Errorf("invalid '%s' claim: %v", name, raw)
	}
	v := int(f)
	if v <= 0 {
		return 0, fmt.Errorf("invalid '%s' claim value: %d", name, v)
	}
	return v, nil
}
