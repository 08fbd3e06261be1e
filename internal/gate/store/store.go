package store

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/domain"
)

// ErrNotFound means neither derived key holds an entry: the pair is fully
// expired (or was never cached) and the bearer has to re-authenticate.
var ErrNotFound = errors.New("store: token not found")

// Key prefixes for the dual-key layout. Both keys are derived from the
// access-token value at issuance time and point at the identical serialized
// pair; only the TTLs differ.
const (
	AccessKeyPrefix  = "access_"
	RefreshKeyPrefix = "refresh_"
)

// TokenCache persists token pairs under two derived keys with independent
// expirations. Drivers (redis, sqlitekv) implement this. Eviction is TTL-only;
// there is no delete operation.
type TokenCache interface {
	// Save writes the pair under both derived keys: the refresh key with the
	// pair's RefreshExpiresIn TTL, then the access key with ExpiresIn.
	// Refresh-key-first ordering is part of the contract: a Lookup racing a
	// Save may observe "soft-expired" but never "not found" for a pair whose
	// write is in flight. Save is idempotent.
	Save(ctx context.Context, pair domain.TokenPair) error

	// Lookup fetches the pair cached under the given access-token value.
	// Access key live: (pair, false, nil). Access key gone but refresh key
	// live: (pair, true, nil), meaning soft-expired but renewable. Both gone:
	// (nil, true, ErrNotFound).
	//
	// Callers must check that the returned pair's AccessToken equals the
	// argument; a mismatch is cache corruption and must never be repaired
	// silently.
	Lookup(ctx context.Context, accessToken string) (*domain.TokenPair, bool, error)

	// Ping verifies the backend is reachable, for readiness probes.
	Ping(ctx context.Context) error

	// Close releases the underlying connection or handle.
	Close() error
}
