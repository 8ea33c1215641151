// Package signer produces and verifies the detached PGP signatures
// published next to distributed binaries, plus the checksum and
// PKCS#8 helpers the release pipeline uses.
package signer

import (
	"bytes"
	"io"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/packet"
	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "paskoocheh.signer")

var (
	ErrNoSigningKey = errors.New("signer: keyring has no usable signing key")
	ErrBadSignature = errors.New("signer: signature verification failed")
)

// SignatureManager signs release artifacts with the first private key
// of an armored keyring.
type SignatureManager struct {
	keyring openpgp.EntityList
	signer  *openpgp.Entity
}

// NewSignatureManager reads an armored private keyring and unlocks
// the first signing-capable entity with the passphrase. Pass a nil
// passphrase for unencrypted keys.
func NewSignatureManager(keyring io.Reader, passphrase []byte) (*SignatureManager, error) {

	entities, err := openpgp.ReadArmoredKeyRing(keyring)
	if err != nil {
		return nil, errors.Wrap(err, "read keyring")
	}

	for _, entity := range entities {
		if entity.PrivateKey == nil {
			continue
		}
		if entity.PrivateKey.Encrypted {
			if err := entity.PrivateKey.Decrypt(passphrase); err != nil {
				return nil, errors.Wrap(err, "decrypt private key")
			}
		}
		for i := range entity.Subkeys {
			sub := &entity.Subkeys[i]
			if sub.PrivateKey != nil && sub.PrivateKey.Encrypted {
				if err := sub.PrivateKey.Decrypt(passphrase); err != nil {
					return nil, errors.Wrap(err, "decrypt subkey")
				}
			}
		}

		logger.WithField("key_id", entity.PrimaryKey.KeyIdString()).Debug("signing key loaded")
		return &SignatureManager{keyring: entities, signer: entity}, nil
	}

	return nil, ErrNoSigningKey
}

// Sign writes an armored detached signature of message to w.
func (m *SignatureManager) Sign(w io.Writer, message io.Reader) error {
	if err := openpgp.ArmoredDetachSign(w, m.signer, message, &packet.Config{}); err != nil {
		return errors.Wrap(err, "detach sign")
	}
	return nil
}

// SignString signs a string and returns the armored signature.
func (m *SignatureManager) SignString(message string) (string, error) {
	var buf bytes.Buffer
	if err := m.Sign(&buf, strings.NewReader(message)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Verify checks an armored detached signature against the manager's
// keyring.
func (m *SignatureManager) Verify(message io.Reader, signature io.Reader) error {
	_, err := openpgp.CheckArmoredDetachedSignature(m.keyring, message, signature, &packet.Config{})
	if err != nil {
		return errors.Wrapf(ErrBadSignature, "%v", err)
	}
	return nil
}
