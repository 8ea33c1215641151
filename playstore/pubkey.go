package playstore

import (
	"crypto/rsa"
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
	"math/big"

	"github.com/go-faster/errors"
)

// signatureVersion is the fixed first byte of the key signature.
const signatureVersion = 0x00

// SignatureLength is the length of the key-signature prefix: one
// version byte plus the first four bytes of the blob digest.
const SignatureLength = 5

// DefaultKeyBlob is the RSA public key the service publishes for
// clients that do not fetch a fresh one.
const DefaultKeyBlob = "AAAAgMom/1a/v0lblO2Ubrt60J2gcuXSljGFQXgcyZWveW" +
	"LEwo6prwgi3iJIZdodyhKZQrNWp5nKJ3srRXcUW+F1BD3b" +
	"aEVGcmEgqaLZUNBjm057pKRI16kB0YppeGx5qIQ5QjKzsR" +
	"8ETQbKLNWgRY0QRNVz34kMJR3P/LgHax/6rmf5AAAAAwEA" +
	"AQ=="

// PublicKeyMaterial is the parsed service key. Immutable after parse.
type PublicKeyMaterial struct {
	Modulus  *big.Int
	Exponent *big.Int

	// RawBlob is the decoded binary blob the signature is derived from.
	RawBlob []byte

	// KeySignature identifies the key version to the server:
	// version byte 0x00 followed by the first 4 bytes of SHA-1(RawBlob).
	KeySignature []byte

	rsaKey *rsa.PublicKey
}

// ParseKeyBlob decodes a base64 key blob laid out as
//
//	4-byte BE length | modulus bytes | 4-byte BE length | exponent bytes
//
// and derives the key signature. Any structural mismatch yields
// ErrInvalidKeyFormat.
func ParseKeyBlob(encoded string) (*PublicKeyMaterial, error) {

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidKeyFormat, "decode base64: %v", err)
	}

	modBytes, rest, err := readChunk(raw)
	if err != nil {
		return nil, errors.Wrap(err, "modulus")
	}
	expBytes, rest, err := readChunk(rest)
	if err != nil {
		return nil, errors.Wrap(err, "exponent")
	}
	if len(rest) != 0 {
		return nil, errors.Wrapf(ErrInvalidKeyFormat, "%d trailing bytes after exponent", len(rest))
	}

	modulus := new(big.Int).SetBytes(modBytes)
	if modulus.Sign() <= 0 {
		return nil, errors.Wrap(ErrInvalidKeyFormat, "modulus is not a positive integer")
	}

	exponent := new(big.Int).SetBytes(expBytes)
	if exponent.Sign() <= 0 || exponent.BitLen() > 31 {
		return nil, errors.Wrap(ErrInvalidKeyFormat, "exponent out of range")
	}

	digest := sha1.Sum(raw)
	sig := make([]byte, 0, SignatureLength)
	sig = append(sig, signatureVersion)
	sig = append(sig, digest[:4]...)

	return &PublicKeyMaterial{
		Modulus:      modulus,
		Exponent:     exponent,
		RawBlob:      raw,
		KeySignature: sig,
		rsaKey:       &rsa.PublicKey{N: modulus, E: int(exponent.Int64())},
	}, nil
}

// readChunk consumes one length-prefixed byte sequence, validating that
// the declared length fits the remaining payload.
func readChunk(b []byte) (chunk, rest []byte, err error) {
	if len(b) < 4 {
		return nil, nil, errors.Wrap(ErrInvalidKeyFormat, "truncated length prefix")
	}
	n := binary.BigEndian.Uint32(b)
	if n == 0 || uint64(n) > uint64(len(b)-4) {
		return nil, nil, errors.Wrapf(ErrInvalidKeyFormat, "declared length %d exceeds payload", n)
	}
	return b[4 : 4+n], b[4+n:], nil
}

// Size returns the modulus length in bytes, which is also the
// ciphertext length for every encryption under this key.
func (k *PublicKeyMaterial) Size() int {
	return (k.Modulus.BitLen() + 7) / 8
}

// SignatureBase64 is the transport form of the key signature:
// base64url without padding.
func (k *PublicKeyMaterial) SignatureBase64() string {
	return base64.RawURLEncoding.EncodeToString(k.KeySignature)
}
