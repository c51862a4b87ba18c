package domain

import (
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// Hasher is the cryptographic hash function used to derive escrow ids and
// secret commitments. Implementations must be collision and second-preimage
// resistant.
type Hasher interface {
	// Hash returns the digest of the given data.
	Hash(data []byte) []byte
	// Size returns the length in bytes of the digests returned by Hash.
	Size() int
	// Name returns the name of the hash function.
	Name() string
}

// CommitSecret returns the hex encoded commitment of the given secret.
func CommitSecret(hasher Hasher, secret string) string {
	return hex.EncodeToString(hasher.Hash([]byte(secret)))
}

// VerifySecret returns whether the given secret is the preimage of the
// commitment. The digests are compared in constant time.
func VerifySecret(hasher Hasher, secret, commitment string) bool {
	expected, err := hex.DecodeString(commitment)
	if err != nil || len(expected) != hasher.Size() {
		return false
	}
	digest := hasher.Hash([]byte(secret))
	return subtle.ConstantTimeCompare(digest, expected) == 1
}

// NormalizeSecretHash validates the given commitment and returns it in its
// canonical lowercase hex form.
func NormalizeSecretHash(hasher Hasher, commitment string) (string, error) {
	commitment = strings.ToLower(strings.TrimSpace(commitment))
	buf, err := hex.DecodeString(commitment)
	if err != nil || len(buf) != hasher.Size() {
		return "", ErrEscrowInvalidSecretHash
	}
	return commitment, nil
}
