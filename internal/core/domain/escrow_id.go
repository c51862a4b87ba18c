package domain

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/shopspring/decimal"
)

// escrowIDTag prefixes the serialization of the parameters so that ids can
// never collide with digests of other structures hashed with the same
// function.
const escrowIDTag = "escrow-id/v1"

// EscrowIdentity is the canonical tuple of parameters an escrow id is derived
// from.
type EscrowIdentity struct {
	SourceAsset       string
	DestinationAsset  string
	MakingAmount      decimal.Decimal
	TakingAmount      decimal.Decimal
	Maker             string
	Taker             string
	SourceDomain      string
	DestinationDomain string
}

// DeriveEscrowID returns the hex encoded digest of the length-prefixed
// serialization of the identity. The function is pure: equal identities always
// lead to the same id.
func DeriveEscrowID(hasher Hasher, identity EscrowIdentity) string {
	return hex.EncodeToString(hasher.Hash(identity.serialize()))
}

func (i EscrowIdentity) serialize() []byte {
	fields := []string{
		escrowIDTag,
		i.SourceAsset,
		i.DestinationAsset,
		i.MakingAmount.String(),
		i.TakingAmount.String(),
		i.Maker,
		i.Taker,
		i.SourceDomain,
		i.DestinationDomain,
	}

	size := 0
	for _, f := range fields {
		size += 4 + len(f)
	}

	buf := make([]byte, 0, size)
	for _, f := range fields {
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(f)))
		buf = append(buf, f...)
	}
	return buf
}
