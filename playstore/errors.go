package playstore

import "github.com/go-faster/errors"

var (
	// ErrNetwork marks a transport failure; the attempt may be retried
	// by the caller with backoff.
	ErrNetwork = errors.New("playstore: transport failure")

	// ErrInvalidKeyFormat marks a public key blob that cannot be
	// decoded or whose declared lengths do not match the payload.
	ErrInvalidKeyFormat = errors.New("playstore: malformed public key blob")

	// ErrEncryption marks a credential payload that cannot be encrypted
	// under the fetched key, typically because it exceeds the OAEP bound.
	ErrEncryption = errors.New("playstore: credential encryption failed")

	// ErrMissingCredentials is returned by GetToken before any network
	// traffic when identifier or secret has not been set.
	ErrMissingCredentials = errors.New("playstore: credentials have not been set")
)
