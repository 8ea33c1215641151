package playstore

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"encoding/base64"

	"github.com/go-faster/errors"
)

// EncryptCredentials produces the EncryptedPasswd form value:
// base64url, no padding, of the 5-byte key signature followed by the
// RSA-OAEP ciphertext of "identifier \x00 secret".
//
// OAEP uses SHA-1, the digest the protocol mandates for both the
// padding and the key signature. Encryption fails closed: a payload
// over the modulus bound yields ErrEncryption, never a truncated
// ciphertext. Two calls with identical inputs produce different bytes
// because the padding is randomized.
func EncryptCredentials(identifier, secret string, key *PublicKeyMaterial) (string, error) {

	plaintext := make([]byte, 0, len(identifier)+1+len(secret))
	plaintext = append(plaintext, identifier...)
	plaintext = append(plaintext, 0x00)
	plaintext = append(plaintext, secret...)

	hash := sha1.New()
	if max := key.Size() - 2*hash.Size() - 2; len(plaintext) > max {
		return "", errors.Wrapf(ErrEncryption,
			"credential payload is %d bytes, OAEP bound for this key is %d", len(plaintext), max)
	}

	ciphertext, err := rsa.EncryptOAEP(hash, rand.Reader, key.rsaKey, plaintext, nil)
	if err != nil {
		return "", errors.Wrapf(ErrEncryption, "%v", err)
	}

	out := make([]byte, 0, SignatureLength+len(ciphertext))
	out = append(out, key.KeySignature...)
	out = append(out, ciphertext...)

	return base64.RawURLEncoding.EncodeToString(out), nil
}
