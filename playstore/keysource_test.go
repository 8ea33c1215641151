package playstore

import (
	"context"
	"encoding/base64"
	"net/url"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTransport records every request and replies from a handler.
type stubTransport struct {
	calls   int
	lastURL string
	handler func(method, endpoint string, form url.Values) (int, []byte, error)
}

func (s *stubTransport) Send(_ context.Context, method, endpoint string, form url.Values) (int, []byte, error) {
	s.calls++
	s.lastURL = endpoint
	return s.handler(method, endpoint, form)
}

func keyBlobTransport(blob string) *stubTransport {
	return &stubTransport{handler: func(method, endpoint string, form url.Values) (int, []byte, error) {
		return 200, []byte(blob), nil
	}}
}

func TestKeyService_FetchAndCache(t *testing.T) {

	transport := keyBlobTransport(DefaultKeyBlob)
	svc := NewKeyService(transport)

	ctx := context.Background()
	first, err := svc.PublicKey(ctx)
	require.NoError(t, err)
	second, err := svc.PublicKey(ctx)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, transport.calls, "second read must hit the cache")
	assert.Equal(t, DefaultKeyURL, transport.lastURL)
}

func TestKeyService_TTLExpiry(t *testing.T) {

	transport := keyBlobTransport(DefaultKeyBlob)
	svc := NewKeyService(transport, WithKeyTTL(time.Hour))

	current := time.Now()
	svc.now = func() time.Time { return current }

	ctx := context.Background()
	_, err := svc.PublicKey(ctx)
	require.NoError(t, err)

	current = current.Add(2 * time.Hour)
	_, err = svc.PublicKey(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, transport.calls, "expired entry must be refetched")
}

func TestKeyService_Invalidate(t *testing.T) {

	transport := keyBlobTransport(DefaultKeyBlob)
	svc := NewKeyService(transport)

	ctx := context.Background()
	_, err := svc.PublicKey(ctx)
	require.NoError(t, err)

	svc.Invalidate()

	_, err = svc.PublicKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, transport.calls)
}

func TestKeyService_TransportFailure(t *testing.T) {

	transport := &stubTransport{handler: func(string, string, url.Values) (int, []byte, error) {
		return 0, nil, errors.New("connection refused")
	}}
	svc := NewKeyService(transport)

	_, err := svc.PublicKey(context.Background())
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestKeyService_BadStatus(t *testing.T) {

	transport := &stubTransport{handler: func(string, string, url.Values) (int, []byte, error) {
		return 503, []byte("unavailable"), nil
	}}
	svc := NewKeyService(transport)

	_, err := svc.PublicKey(context.Background())
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestKeyService_MalformedBlobNotCached(t *testing.T) {

	transport := keyBlobTransport(base64.StdEncoding.EncodeToString([]byte("nope")))
	svc := NewKeyService(transport)

	_, err := svc.PublicKey(context.Background())
	assert.ErrorIs(t, err, ErrInvalidKeyFormat)

	_, err = svc.PublicKey(context.Background())
	assert.ErrorIs(t, err, ErrInvalidKeyFormat)
	assert.Equal(t, 2, transport.calls, "parse failures must not be cached")
}

func TestStaticKeySource(t *testing.T) {

	src, err := NewStaticKeySource(DefaultKeyBlob)
	require.NoError(t, err)

	key, err := src.PublicKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 128, key.Size())

	src.Invalidate() // no-op
	again, err := src.PublicKey(context.Background())
	require.NoError(t, err)
	assert.Same(t, key, again)

	_, err = NewStaticKeySource("not a key")
	assert.ErrorIs(t, err, ErrInvalidKeyFormat)
}
