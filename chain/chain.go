// Package chain defines the canonical representation of decoded on-chain
// events consumed by the aggregation engine, and the contracts of the
// external collaborators that feed it: the block source, the authoritative
// tokenomic parameter reader and the optional identity registry.
//
// Binary decoding of raw event payloads into these typed parameters is the
// upstream decoder's job; everything here is already typed and converted
// (balances 1e12-descaled, Q64 fields de-bitted).
package chain

import (
	"context"
	"time"

	"github.com/phala-network/computation-indexer/model"
)

// BlockHeader identifies the block an event was emitted in.
type BlockHeader struct {
	Height int64 `json:"height"`
	// Unix milliseconds.
	Timestamp int64  `json:"timestamp"`
	Hash      string `json:"hash,omitempty"`
}

// Time returns the block timestamp as a wall-clock time.
func (h BlockHeader) Time() time.Time {
	return time.UnixMilli(h.Timestamp).UTC()
}

// Event is one decoded on-chain action.
type Event struct {
	Block  BlockHeader
	Params Params
}

// Batch is a contiguous run of blocks and the events they emitted, in
// emission order. Headers are present for every block in the range so the
// block-time hook can observe heights even when no event fired.
type Batch struct {
	Blocks []BlockHeader
	Events []Event
}

// First returns the header of the earliest block in the batch.
func (b *Batch) First() BlockHeader {
	return b.Blocks[0]
}

// Last returns the header of the latest block in the batch.
func (b *Batch) Last() BlockHeader {
	return b.Blocks[len(b.Blocks)-1]
}

// A BlockSource supplies batches of decoded events in strictly ascending
// height order. Retry and backoff at the network layer are the source's
// own concern.
type BlockSource interface {
	// NextBatch returns the next batch starting at fromHeight, or nil when
	// the source has nothing new yet.
	NextBatch(ctx context.Context, fromHeight int64) (*Batch, error)
}

// A ParameterReader resolves the authoritative tokenomic parameters from
// on-chain storage as of a given block.
type ParameterReader interface {
	TokenomicParameters(ctx context.Context, block BlockHeader) (*model.TokenomicParameters, error)
}

// Identity is one account's enrichment result.
type Identity struct {
	Display *string
	Level   model.IdentityLevel
}

// An IdentityReader looks up off-chain display names and judgement levels
// for a set of accounts as of a given block. Ids without a registration
// must still be present in the result, with a nil display and level
// Unknown.
type IdentityReader interface {
	Identities(ctx context.Context, block BlockHeader, accountIDs []string) (map[string]Identity, error)
}
