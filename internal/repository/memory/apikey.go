package memory

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/chronoshop/orders-api/internal/domain/auth"
)

var _ auth.Repository = (*APIKeyRepository)(nil)

// APIKeyRepository is an in-memory API key store, seeded at startup for
// development mode.
type APIKeyRepository struct {
	byHash map[string]auth.APIKeyInfo
}

// NewAPIKeyRepository returns an empty in-memory key store.
func NewAPIKeyRepository() *APIKeyRepository {
	return &APIKeyRepository{byHash: make(map[string]auth.APIKeyInfo)}
}

// Add registers a key. Not safe for concurrent use with FindByHash; call
// only during startup seeding.
func (r *APIKeyRepository) Add(info auth.APIKeyInfo) {
	r.byHash[info.KeyHash] = info
}

// FindByHash looks up a key by its HMAC-SHA256 hash.
func (r *APIKeyRepository) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	info, ok := r.byHash[hash]
	if !ok {
		return nil, errors.New("api key not found")
	}
	return &info, nil
}
