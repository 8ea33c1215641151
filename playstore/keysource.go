package playstore

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
)

// DefaultKeyURL is the well-known key-distribution endpoint. The body
// is the base64 text of the binary blob ParseKeyBlob understands.
const DefaultKeyURL = "https://android.clients.google.com/auth/key"

// DefaultKeyTTL bounds how long a fetched key is served from cache.
// The remote key rotates infrequently.
const DefaultKeyTTL = 6 * time.Hour

// KeySource supplies the public key for credential encryption.
// Invalidate drops any cached material so the next PublicKey call
// fetches fresh; the dispenser calls it when the server reports a
// stale key.
type KeySource interface {
	PublicKey(ctx context.Context) (*PublicKeyMaterial, error)
	Invalidate()
}

// StaticKeySource serves a fixed, pre-parsed key blob. Invalidate is a
// no-op: there is nothing fresher to fetch.
type StaticKeySource struct {
	key *PublicKeyMaterial
}

func NewStaticKeySource(blob string) (*StaticKeySource, error) {
	key, err := ParseKeyBlob(blob)
	if err != nil {
		return nil, err
	}
	return &StaticKeySource{key: key}, nil
}

func (s *StaticKeySource) PublicKey(_ context.Context) (*PublicKeyMaterial, error) {
	return s.key, nil
}

func (s *StaticKeySource) Invalidate() {}

// KeyService fetches the key blob from the distribution endpoint and
// caches the parsed material process-wide under a TTL. Reads take the
// fast path; a fetch is double-checked under the write lock so
// concurrent sessions trigger at most one request.
type KeyService struct {
	transport Transport
	url       string

	mu        sync.RWMutex
	cached    *PublicKeyMaterial
	fetchedAt time.Time

	ttl time.Duration
	now func() time.Time
}

type KeyServiceOption func(*KeyService)

func WithKeyURL(u string) KeyServiceOption {
	return func(s *KeyService) { s.url = u }
}

func WithKeyTTL(d time.Duration) KeyServiceOption {
	return func(s *KeyService) { s.ttl = d }
}

func NewKeyService(transport Transport, opts ...KeyServiceOption) *KeyService {
	s := &KeyService{
		transport: transport,
		url:       DefaultKeyURL,
		ttl:       DefaultKeyTTL,
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *KeyService) PublicKey(ctx context.Context) (*PublicKeyMaterial, error) {

	s.mu.RLock()
	cached, fetchedAt := s.cached, s.fetchedAt
	s.mu.RUnlock()

	if cached != nil && s.now().Sub(fetchedAt) < s.ttl {
		return cached, nil
	}

	return s.fetch(ctx)
}

func (s *KeyService) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

func (s *KeyService) fetch(ctx context.Context) (*PublicKeyMaterial, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// someone may have refreshed while we waited for the lock
	if s.cached != nil && s.now().Sub(s.fetchedAt) < s.ttl {
		return s.cached, nil
	}

	logger.WithField("url", s.url).Debug("fetching public key")

	status, body, err := s.transport.Send(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, errors.Wrapf(ErrNetwork, "fetch public key: %v", err)
	}
	if status != http.StatusOK {
		return nil, errors.Wrapf(ErrNetwork, "key endpoint returned status %d", status)
	}

	key, err := ParseKeyBlob(strings.TrimSpace(string(body)))
	if err != nil {
		return nil, err
	}

	s.cached = key
	s.fetchedAt = s.now()
	return key, nil
}
