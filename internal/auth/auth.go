package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
)

// Words used for generated admin tokens
var tokenWords = []string{
	"podium", "angler", "trophy", "season", "finals",
	"bass", "walleye", "pike", "crappie", "marlin",
	"reel", "tackle", "lure", "cast", "gold",
	"silver", "bronze", "champion", "series",
}

// Auth guards admin endpoints with a static bearer token
type Auth struct {
	token string
}

// New creates a new Auth instance with the given admin token
func New(token string) *Auth {
	return &Auth{token: token}
}

// GenerateToken creates a random admin token: three words and a hex suffix
func GenerateToken() string {
	words := make([]string, 3)
	for i := range words {
		words[i] = tokenWords[randomInt(len(tokenWords))]
	}
	suffix := make([]byte, 4)
	rand.Read(suffix)
	return strings.Join(words, "-") + "-" + hex.EncodeToString(suffix)
}

// Validate reports whether token matches the admin token
func (a *Auth) Validate(token string) bool {
	if a.token == "" || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(a.token)) == 1
}

// TokenFromRequest extracts the bearer token from the Authorization header
func TokenFromRequest(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequireAuthAPI middleware for admin API endpoints (returns 401)
func (a *Auth) RequireAuthAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.Validate(TokenFromRequest(r)) {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code":"UNAUTHORIZED","error":"Unauthorized - admin token required"}`))
	})
}

// randomInt returns a random int in [0, max)
func randomInt(max int) int {
	bytes := make([]byte, 1)
	rand.Read(bytes)
	return int(bytes[0]) % max
}
