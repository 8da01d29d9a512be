package registry

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"outfitswap/internal/domain"
)

// ErrHandleReleased is returned when a display reference is revoked twice or
// was never issued.
var ErrHandleReleased = errors.New("registry: display reference already released")

// DisplayIssuer creates and releases the revocable references assets are
// displayed through.
type DisplayIssuer interface {
	Issue(a *domain.Asset) (string, error)
	Revoke(ref string) error
}

// HandleTable issues display references of the form <prefix><token> and
// resolves them back to their assets until revoked. Entries never expire on
// their own; only Revoke removes them.
type HandleTable struct {
	prefix string
	cache  *gocache.Cache
	mu     sync.Mutex
}

// NewHandleTable builds a table whose references start with prefix, e.g.
// "/v1/display/".
func NewHandleTable(prefix string) *HandleTable {
	return &HandleTable{
		prefix: prefix,
		cache:  gocache.New(gocache.NoExpiration, 0),
	}
}

// Issue registers a and returns its reference.
func (t *HandleTable) Issue(a *domain.Asset) (string, error) {
	if a == nil {
		return "", errors.New("registry: cannot issue a reference for a nil asset")
	}
	token := uuid.NewString()
	if err := t.cache.Add(token, a, gocache.NoExpiration); err != nil {
		return "", err
	}
	return t.prefix + token, nil
}

// Revoke releases ref. Releasing an unknown or already released reference is
// reported as ErrHandleReleased.
func (t *HandleTable) Revoke(ref string) error {
	token, ok := strings.CutPrefix(ref, t.prefix)
	if !ok || token == "" {
		return ErrHandleReleased
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, found := t.cache.Get(token); !found {
		return ErrHandleReleased
	}
	t.cache.Delete(token)
	return nil
}

// Resolve returns the asset behind a token while its reference is live.
func (t *HandleTable) Resolve(token string) (*domain.Asset, bool) {
	value, found := t.cache.Get(token)
	if !found {
		return nil, false
	}
	a, ok := value.(*domain.Asset)
	return a, ok
}

// Len reports the number of live references.
func (t *HandleTable) Len() int {
	return t.cache.ItemCount()
}

var _ DisplayIssuer = (*HandleTable)(nil)
