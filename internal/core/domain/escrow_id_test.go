package domain_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/tdex-network/escrowd/internal/core/domain"
	"github.com/tdex-network/escrowd/internal/infrastructure/hasher"
)

func TestDeriveEscrowID(t *testing.T) {
	h := hasher.NewSha256()
	identity := newTestIdentity()

	id := domain.DeriveEscrowID(h, identity)
	require.Len(t, id, 2*h.Size())
	require.Equal(t, id, domain.DeriveEscrowID(h, newTestIdentity()))

	tests := []struct {
		name   string
		modify func(i *domain.EscrowIdentity)
	}{
		{"source_asset", func(i *domain.EscrowIdentity) { i.SourceAsset = "X" }},
		{"destination_asset", func(i *domain.EscrowIdentity) { i.DestinationAsset = "X" }},
		{"making_amount", func(i *domain.EscrowIdentity) { i.MakingAmount = decimal.NewFromInt(101) }},
		{"taking_amount", func(i *domain.EscrowIdentity) { i.TakingAmount = decimal.NewFromInt(51) }},
		{"maker", func(i *domain.EscrowIdentity) { i.Maker = "X" }},
		{"taker", func(i *domain.EscrowIdentity) { i.Taker = "X" }},
		{"source_domain", func(i *domain.EscrowIdentity) { i.SourceDomain = "X" }},
		{"destination_domain", func(i *domain.EscrowIdentity) { i.DestinationDomain = "X" }},
		{
			// Moving bytes across field boundaries must not collide.
			name: "shifted_boundaries",
			modify: func(i *domain.EscrowIdentity) {
				i.Maker = "alic"
				i.Taker = "ebob"
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			identity := newTestIdentity()
			tt.modify(&identity)
			require.NotEqual(t, id, domain.DeriveEscrowID(h, identity))
		})
	}

	t.Run("hash_function", func(t *testing.T) {
		require.NotEqual(
			t, id, domain.DeriveEscrowID(hasher.NewBlake3(), newTestIdentity()),
		)
	})
}

func newTestIdentity() domain.EscrowIdentity {
	return domain.EscrowIdentity{
		SourceAsset:       "LBTC",
		DestinationAsset:  "USDT",
		MakingAmount:      decimal.NewFromInt(100),
		TakingAmount:      decimal.NewFromInt(50),
		Maker:             "alice",
		Taker:             "bob",
		SourceDomain:      "local",
		DestinationDomain: "foreign",
	}
}
