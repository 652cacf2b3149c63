package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/chronoshop/orders-api/internal/domain/auth"
)

// identityKey is the context key for the authenticated caller identity.
type identityKey struct{}

// IdentityFromContext extracts the authenticated identity from the context,
// or nil when the request was not authenticated.
func IdentityFromContext(ctx context.Context) *auth.Identity {
	id, _ := ctx.Value(identityKey{}).(*auth.Identity)
	return id
}

// Security authenticates API requests via HMAC-SHA256 hashed API keys and
// enforces scope requirements.
type Security struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewSecurity creates a Security with the given API key repository and HMAC
// pepper.
func NewSecurity(apikeys auth.Repository, pepper []byte) *Security {
	return &Security{
		apikeys: apikeys,
		pepper:  pepper,
	}
}

// HashKey computes the stored HMAC-SHA256 hash for an API key.
func (s *Security) HashKey(key string) string {
	mac := hmac.New(sha256.New, s.pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

// authenticate resolves an API key to its identity by computing the
// HMAC-SHA256 of the provided key, looking it up, and performing a
// constant-time comparison to prevent timing side-channels.
func (s *Security) authenticate(ctx context.Context, key string) (*auth.Identity, error) {
	mac := hmac.New(sha256.New, s.pepper)
	mac.Write([]byte(key))
	hash := mac.Sum(nil)

	info, err := s.apikeys.FindByHash(ctx, hex.EncodeToString(hash))
	if err != nil {
		return nil, auth.ErrUnauthorized
	}

	storedBytes, err := hex.DecodeString(info.KeyHash)
	if err != nil {
		return nil, auth.ErrUnauthorized
	}
	if subtle.ConstantTimeCompare(hash, storedBytes) != 1 {
		return nil, auth.ErrUnauthorized
	}

	return &auth.Identity{
		UserID: info.UserID,
		Name:   info.Name,
		Scopes: info.Scopes,
	}, nil
}

// RequireAuth authenticates the request via the api_key header or an
// Authorization bearer token and stores the identity in the context.
func (s *Security) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := requestKey(r)
		if key == "" {
			writeError(w, http.StatusUnauthorized, kindUnauthorized, "missing api key")
			return
		}

		identity, err := s.authenticate(r.Context(), key)
		if err != nil {
			writeError(w, http.StatusUnauthorized, kindUnauthorized, "unauthorized")
			return
		}

		ctx := context.WithValue(r.Context(), identityKey{}, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin rejects callers whose identity lacks the admin scope. Must be
// mounted after RequireAuth.
func (s *Security) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := IdentityFromContext(r.Context())
		if identity == nil || !identity.HasScope(auth.ScopeAdmin) {
			writeError(w, http.StatusForbidden, kindForbidden, "admin scope required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestKey(r *http.Request) string {
	if key := r.Header.Get("api_key"); key != "" {
		return key
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}
