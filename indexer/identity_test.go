package indexer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"

	"github.com/phala-network/computation-indexer/chain"
	"github.com/phala-network/computation-indexer/model"
)

type fixedIdentities struct {
	identities map[string]chain.Identity
	calls      int
}

func (f *fixedIdentities) Identities(ctx context.Context, block chain.BlockHeader, accountIDs []string) (map[string]chain.Identity, error) {
	f.calls++
	out := map[string]chain.Identity{}
	for _, id := range accountIDs {
		identity, ok := f.identities[id]
		if !ok {
			continue
		}
		out[id] = identity
	}
	return out, nil
}

func TestEnrichIdentities(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	agg := NewAggregator(store, fixedParams{testParams(t)})
	require.NoError(t, agg.ProcessBatch(ctx, batchOf(1,
		chain.PoolCreated{StakePoolID: "1", Owner: "alice"},
		chain.Contribution{StakePoolID: "1", AccountID: "alice", Amount: d(t, "100"), Shares: d(t, "100")},
	)))

	display := "Alice"
	reader := &fixedIdentities{identities: map[string]chain.Identity{
		"alice": {Display: &display, Level: model.IdentityLevelReasonable},
		"dave":  {Level: ""},
	}}
	require.NoError(t, EnrichIdentities(ctx, store, reader, header(1), []string{"alice", "dave"}))

	alice := mustAccount(t, store, "alice")
	require.NotNil(t, alice.IdentityDisplay)
	assert.Equal(t, "Alice", *alice.IdentityDisplay)
	require.NotNil(t, alice.IdentityLevel)
	assert.Equal(t, model.IdentityLevelReasonable, *alice.IdentityLevel)
	// Enrichment must not clobber aggregate totals.
	assert.True(t, alice.TotalStake.Equal(d(t, "100")))

	// dave was unknown to the store: created with a defaulted level.
	dave := mustAccount(t, store, "dave")
	assert.Nil(t, dave.IdentityDisplay)
	require.NotNil(t, dave.IdentityLevel)
	assert.Equal(t, model.IdentityLevelUnknown, *dave.IdentityLevel)
}

func TestEnrichIdentitiesNoAccounts(t *testing.T) {
	store := newTestStore(t)
	reader := &fixedIdentities{}
	require.NoError(t, EnrichIdentities(context.Background(), store, reader, header(1), nil))
	assert.Zero(t, reader.calls)
}

func TestEnrichIdentitiesIncompleteResult(t *testing.T) {
	store := newTestStore(t)
	reader := &fixedIdentities{}
	err := EnrichIdentities(context.Background(), store, reader, header(1), []string{"alice"})
	require.Error(t, err)
}

type failingIdentities struct{}

func (failingIdentities) Identities(ctx context.Context, block chain.BlockHeader, accountIDs []string) (map[string]chain.Identity, error) {
	return nil, xerrors.New("registry unavailable")
}

func TestEnrichIdentitiesReaderError(t *testing.T) {
	store := newTestStore(t)
	err := EnrichIdentities(context.Background(), store, failingIdentities{}, header(1), []string{"alice"})
	require.Error(t, err)
}
