package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubkit/tournament-engine/models"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func playerClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"user_id": float64(42),
		"club_id": float64(7),
		"role":    string(models.UserRolePlayer),
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
}

func TestAuthenticatePopulatesContext(t *testing.T) {
	var gotUserID, gotClubID int
	var gotRole models.UserRole
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		gotUserID, err = GetUserIDFromContext(r.Context())
		require.NoError(t, err)
		gotClubID, err = GetClubIDFromContext(r.Context())
		require.NoError(t, err)
		gotRole, err = GetUserRoleFromContext(r.Context())
		require.NoError(t, err)
		w.WriteHeader(http.StatusOK)
	})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, playerClaims()))
	w := httptest.NewRecorder()

	Authenticate(testSecret)(next).ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 42, gotUserID)
	assert.Equal(t, 7, gotClubID)
	assert.Equal(t, models.UserRolePlayer, gotRole)
}

func TestAuthenticateRejectsBadTokens(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})
	handler := Authenticate(testSecret)(next)

	cases := map[string]string{
		"missing header": "",
		"no bearer":      "Token abc",
		"wrong secret":   "Bearer " + signToken(t, "other-secret", playerClaims()),
		"garbage token":  "Bearer not.a.token",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				r.Header.Set("Authorization", header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestAuthenticateRejectsExpiredToken(t *testing.T) {
	claims := playerClaims()
	claims["exp"] = time.Now().Add(-time.Hour).Unix()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, claims))
	w := httptest.NewRecorder()
	Authenticate(testSecret)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	})).ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireOrganizer(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	chain := Authenticate(testSecret)(RequireOrganizer(next))

	player := httptest.NewRequest(http.MethodPost, "/", nil)
	player.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, playerClaims()))
	w := httptest.NewRecorder()
	chain.ServeHTTP(w, player)
	assert.Equal(t, http.StatusForbidden, w.Code)

	claims := playerClaims()
	claims["role"] = string(models.UserRoleOrganizer)
	organizer := httptest.NewRequest(http.MethodPost, "/", nil)
	organizer.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, claims))
	w = httptest.NewRecorder()
	chain.ServeHTTP(w, organizer)
	assert.Equal(t, http.StatusOK, w.Code)

	claims["role"] = string(models.UserRoleAdmin)
	admin := httptest.NewRequest(http.MethodPost, "/", nil)
	admin.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, claims))
	w = httptest.NewRecorder()
	chain.ServeHTTP(w, admin)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestClaimsHelpersOutsideAuthenticatedContext(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := GetUserIDFromContext(r.Context())
	assert.Error(t, err)
	_, err = GetClubIDFromContext(r.Context())
	assert.Error(t, err)
	_, err = GetUserRoleFromContext(r.Context())
	assert.Error(t, err)
}
