// Package playstore obtains Play-store authentication tokens for an
// account. Credentials are RSA-OAEP encrypted under the service's
// published key before anything leaves the process; the plaintext
// secret is never transmitted or logged.
package playstore

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "paskoocheh.playstore")

// State tracks the dispenser pipeline position.
type State int

const (
	StateIdle State = iota
	StateKeyReady
	StateCredentialEncoded
	StateRequestSent
	StateResolved
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateKeyReady:
		return "key-ready"
	case StateCredentialEncoded:
		return "credential-encoded"
	case StateRequestSent:
		return "request-sent"
	case StateResolved:
		return "resolved"
	}
	return "unknown"
}

// TokenDispenser runs the authentication pipeline: fetch key, encrypt
// credentials, post the form, classify the response. One dispenser
// serves one logical session; it is not goroutine-safe. Concurrent
// requests need independent dispensers — only the key cache behind
// KeySource is shared.
type TokenDispenser struct {
	transport Transport
	keys      KeySource
	authURL   string

	identifier string
	secret     string
	device     DeviceParams

	state     State
	key       *PublicKeyMaterial
	encrypted string
	outcome   *Outcome
}

type Option func(*TokenDispenser)

func WithAuthURL(u string) Option {
	return func(d *TokenDispenser) { d.authURL = u }
}

func WithDeviceParams(p DeviceParams) Option {
	return func(d *TokenDispenser) { d.device = p }
}

func NewTokenDispenser(transport Transport, keys KeySource, opts ...Option) *TokenDispenser {
	d := &TokenDispenser{
		transport: transport,
		keys:      keys,
		authURL:   DefaultAuthURL,
		state:     StateIdle,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// SetCredentials replaces the account credentials. Any previously
// encoded ciphertext is discarded so a stale encryption can never be
// sent for the new pair.
func (d *TokenDispenser) SetCredentials(identifier, secret string) *TokenDispenser {
	d.identifier = identifier
	d.secret = secret
	d.encrypted = ""
	d.outcome = nil
	if d.key != nil {
		d.state = StateKeyReady
	} else {
		d.state = StateIdle
	}
	return d
}

// SetDevice replaces the plaintext device parameters sent with the form.
func (d *TokenDispenser) SetDevice(p DeviceParams) *TokenDispenser {
	d.device = p
	return d
}

func (d *TokenDispenser) State() State {
	return d.state
}

// Outcome returns the result of the last resolved attempt, or nil.
func (d *TokenDispenser) Outcome() *Outcome {
	return d.outcome
}

// GetToken runs the full pipeline and resolves exactly one Outcome.
// The key is served from the source's cache while valid; the
// credential is re-encrypted on every run (OAEP entropy is per-call,
// the server accepts any well-formed encryption). A failed step leaves
// the dispenser in its pre-step state so the caller can inspect and
// retry deliberately — no step is retried implicitly.
func (d *TokenDispenser) GetToken(ctx context.Context) (Outcome, error) {

	if d.identifier == "" || d.secret == "" {
		return Outcome{}, ErrMissingCredentials
	}

	if err := d.fetchKey(ctx); err != nil {
		return Outcome{}, err
	}
	if err := d.encode(); err != nil {
		return Outcome{}, err
	}
	return d.sendAndResolve(ctx)
}

func (d *TokenDispenser) fetchKey(ctx context.Context) error {
	key, err := d.keys.PublicKey(ctx)
	if err != nil {
		return err
	}
	d.key = key
	d.state = StateKeyReady
	return nil
}

func (d *TokenDispenser) encode() error {
	encrypted, err := EncryptCredentials(d.identifier, d.secret, d.key)
	if err != nil {
		return err
	}
	d.encrypted = encrypted
	d.state = StateCredentialEncoded
	return nil
}

func (d *TokenDispenser) sendAndResolve(ctx context.Context) (Outcome, error) {

	form := buildAuthForm(d.identifier, d.encrypted, d.device)

	logger.WithField("url", d.authURL).Debug("dispatching auth request")

	_, body, err := d.transport.Send(ctx, http.MethodPost, d.authURL, form)
	if err != nil {
		// pre-call state: the encoded credential stays usable for a retry
		return Outcome{}, errors.Wrapf(ErrNetwork, "auth request: %v", err)
	}

	// the ciphertext is consumed by this request; the next run re-encrypts
	d.encrypted = ""
	d.state = StateRequestSent

	out := ParseResponse(body)
	d.outcome = &out
	d.state = StateResolved

	if out.Err != nil && out.Err.Code == CodeKeyExpired {
		logger.Debug("server reports stale key, invalidating cache")
		d.keys.Invalidate()
		d.key = nil
	}

	return out, nil
}
