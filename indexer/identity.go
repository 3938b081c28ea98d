package indexer

import (
	"context"
	"sort"

	"golang.org/x/xerrors"

	"github.com/phala-network/computation-indexer/chain"
	"github.com/phala-network/computation-indexer/model"
)

// EnrichIdentities overwrites the identity display name and judgement
// level of the given accounts from the on-chain identity registry. It runs
// independently of event processing; accounts without a registration are
// reset to an unknown level.
func EnrichIdentities(ctx context.Context, store model.Store, reader chain.IdentityReader, block chain.BlockHeader, accountIDs []string) error {
	if len(accountIDs) == 0 {
		return nil
	}
	identities, err := reader.Identities(ctx, block, accountIDs)
	if err != nil {
		return xerrors.Errorf("query identities: %w", err)
	}
	existing, err := store.Accounts(ctx)
	if err != nil {
		return err
	}
	byID := make(map[string]*model.Account, len(existing))
	for _, a := range existing {
		byID[a.ID] = a
	}

	cs := &model.ChangeSet{}
	sorted := append([]string(nil), accountIDs...)
	sort.Strings(sorted)
	for _, id := range sorted {
		account, ok := byID[id]
		if !ok {
			account = model.NewAccount(id)
		}
		identity, ok := identities[id]
		if !ok {
			return xerrors.Errorf("identity result missing account %s", id)
		}
		account.IdentityDisplay = identity.Display
		level := identity.Level
		if level == "" {
			level = model.IdentityLevelUnknown
		}
		account.IdentityLevel = &level
		cs.Accounts = append(cs.Accounts, account)
	}
	return store.ApplyChanges(ctx, cs)
}
