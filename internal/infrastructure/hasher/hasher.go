package hasher

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/tdex-network/escrowd/internal/core/domain"
	"github.com/zeebo/blake3"
)

const (
	Sha256 = "sha256"
	Blake3 = "blake3"
)

var (
	// ErrUnknownHashFunction is returned if the given name does not match any
	// supported hash function.
	ErrUnknownHashFunction = fmt.Errorf(
		"hash function must be one of %s, %s", Sha256, Blake3,
	)
)

// NewHasher returns the hash function with the given name.
func NewHasher(name string) (domain.Hasher, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case Sha256:
		return NewSha256(), nil
	case Blake3:
		return NewBlake3(), nil
	default:
		return nil, ErrUnknownHashFunction
	}
}

type sha256Hasher struct{}

// NewSha256 returns the canonical hash function of the engine, the single
// round sha256.
func NewSha256() domain.Hasher {
	return sha256Hasher{}
}

func (sha256Hasher) Hash(data []byte) []byte {
	return chainhash.HashB(data)
}

func (sha256Hasher) Size() int {
	return chainhash.HashSize
}

func (sha256Hasher) Name() string {
	return Sha256
}

type blake3Hasher struct{}

// NewBlake3 returns a 32-byte blake3 hash function.
func NewBlake3() domain.Hasher {
	return blake3Hasher{}
}

func (blake3Hasher) Hash(data []byte) []byte {
	digest := blake3.Sum256(data)
	return digest[:]
}

func (blake3Hasher) Size() int {
	return 32
}

func (blake3Hasher) Name() string {
	return Blake3
}
