package auth

import (
	"context"
	"net/http"
	"strings"

	logger "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"signalreconciler/src/model"
)

type userLookup interface {
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
}

// Middleware authenticates reporting-API requests. The caller identifies as
// X-User with a bearer token; the token is checked against the stored bcrypt
// hash and the resolved user is placed on the request context.
func Middleware(users userLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username := strings.TrimSpace(r.Header.Get("X-User"))
			token := bearerToken(r.Header.Get("Authorization"))

			if username == "" || token == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			user, err := users.GetUserByUsername(r.Context(), username)
			if err != nil {
				http.Error(w, "Internal error", http.StatusInternalServerError)
				return
			}
			if user == nil || !user.Active || user.APITokenHash == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if err := bcrypt.CompareHashAndPassword([]byte(user.APITokenHash), []byte(token)); err != nil {
				logger.WithField("username", username).Warn("API token mismatch")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}
