package auth

import (
	"context"
	"slices"

	"github.com/go-faster/errors"
)

// ScopeAdmin marks keys that may perform administrative order operations.
const ScopeAdmin = "admin"

// ErrUnauthorized is returned when a caller cannot be authenticated or lacks
// the scope required for an operation.
var ErrUnauthorized = errors.New("unauthorized")

// APIKeyInfo holds the identity and permission data for a validated API key.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
	UserID  string
	Scopes  []string
}

// Identity describes the authenticated caller of a request.
type Identity struct {
	UserID string
	Name   string
	Scopes []string
}

// HasScope reports whether the identity carries the given scope.
func (i *Identity) HasScope(scope string) bool {
	return slices.Contains(i.Scopes, scope)
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}
