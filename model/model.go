// Package model defines the aggregate entities materialized from the
// computation economy's on-chain events, plus the logical storage contract
// the aggregation engine requires from a backing store.
//
// Entities reference each other by id, never by live pointers. During a
// batch the engine resolves references through in-memory id maps, so the
// cyclic worker/miner binding stays representable without object cycles.
package model

import "strings"

// idSeparator never appears inside pool ids (numeric strings) or account
// ids (SS58 addresses), so joined keys are injective.
const idSeparator = "-"

// CombineIDs builds the deterministic composite key used by stake and
// whitelist rows.
func CombineIDs(ids ...string) string {
	return strings.Join(ids, idSeparator)
}
