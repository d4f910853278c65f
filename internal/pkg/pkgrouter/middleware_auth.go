package pkgrouter

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// Authenticator checks a username/password pair.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) bool
}

// Users authenticates against a static username -> secret table.
//
// Secrets starting with "$2" are treated as bcrypt hashes, anything else is
// compared as plain text.
type Users map[string]string

// Authenticate implements Authenticator.
//
// Usernames fall back to a lowercase match since config mappings are
// lowercased on load.
func (u Users) Authenticate(_ context.Context, username, password string) bool {
	secret, ok := u[username]
	if !ok {
		secret, ok = u[strings.ToLower(username)]
	}
	if !ok || secret == "" {
		// burn comparable time so unknown users are not distinguishable
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
		return false
	}

	if strings.HasPrefix(secret, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(secret), []byte(password)) == nil
	}

	return subtle.ConstantTimeCompare([]byte(secret), []byte(password)) == 1
}

//nolint:gochecknoglobals // computed once on first miss
var dummyHash = sync.OnceValue(func() []byte {
	hash, _ := bcrypt.GenerateFromPassword([]byte("unknown-user"), bcrypt.DefaultCost)
	return hash
})

type usernameContextKey struct{}

// GetUsername returns the authenticated username stored by MiddlewareBasicAuth.
func GetUsername(ctx context.Context) string {
	name, _ := ctx.Value(usernameContextKey{}).(string)
	return name
}

// MiddlewareBasicAuth rejects requests that do not carry valid HTTP basic
// credentials.
func MiddlewareBasicAuth(realm string, auth Authenticator) Middleware {
	challenge := `Basic realm="` + realm + `", charset="UTF-8"`

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			if !ok || auth == nil || !auth.Authenticate(r.Context(), username, password) {
				w.Header().Set("WWW-Authenticate", challenge)
				writeJSON(w, errorResponse{Message: "authentication credentials were not provided or are invalid"}, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), usernameContextKey{}, username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
