package chain

import (
	"bufio"
	"context"
	"encoding/json"
	"io"

	"golang.org/x/xerrors"
)

// eventEnvelope is the wire form of one canonical event in a feed: the
// decoder collaborator emits {"name","block","params"} objects.
type eventEnvelope struct {
	Name   EventKind       `json:"name"`
	Block  BlockHeader     `json:"block"`
	Params json.RawMessage `json:"params"`
}

// batchEnvelope is one feed line: a block range plus its events.
type batchEnvelope struct {
	Blocks []BlockHeader   `json:"blocks"`
	Events []eventEnvelope `json:"events"`
}

// UnmarshalJSON decodes the {"name","block","params"} envelope into the
// kind-specific typed parameter set.
func (e *Event) UnmarshalJSON(data []byte) error {
	var env eventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	return e.fromEnvelope(env)
}

// MarshalJSON is the inverse of UnmarshalJSON.
func (e Event) MarshalJSON() ([]byte, error) {
	params, err := json.Marshal(e.Params)
	if err != nil {
		return nil, err
	}
	return json.Marshal(eventEnvelope{Name: e.Params.Kind(), Block: e.Block, Params: params})
}

func (e *Event) fromEnvelope(env eventEnvelope) error {
	box, err := newParamsBox(env.Name)
	if err != nil {
		return err
	}
	if len(env.Params) > 0 {
		if err := json.Unmarshal(env.Params, box); err != nil {
			return xerrors.Errorf("decode %s params: %w", env.Name, err)
		}
	}
	e.Block = env.Block
	e.Params = box.params()
	return nil
}

// paramsBox gives newParamsBox an addressable concrete params struct to
// decode into while handing back the value form the engine dispatches on.
type paramsBox[T Params] struct{ v T }

func (b *paramsBox[T]) UnmarshalJSON(data []byte) error { return json.Unmarshal(data, &b.v) }
func (b *paramsBox[T]) params() Params                  { return b.v }

type boxed interface {
	json.Unmarshaler
	params() Params
}

func newParamsBox(kind EventKind) (boxed, error) {
	switch kind {
	case KindPoolCreated:
		return &paramsBox[PoolCreated]{}, nil
	case KindPoolCommissionSet:
		return &paramsBox[PoolCommissionSet]{}, nil
	case KindPoolCapacitySet:
		return &paramsBox[PoolCapacitySet]{}, nil
	case KindPoolWorkerAdded:
		return &paramsBox[PoolWorkerAdded]{}, nil
	case KindPoolWorkerRemoved:
		return &paramsBox[PoolWorkerRemoved]{}, nil
	case KindMiningStarted:
		return &paramsBox[MiningStarted]{}, nil
	case KindContribution:
		return &paramsBox[Contribution]{}, nil
	case KindWithdrawal:
		return &paramsBox[Withdrawal]{}, nil
	case KindWithdrawalQueued:
		return &paramsBox[WithdrawalQueued]{}, nil
	case KindRewardReceived:
		return &paramsBox[RewardReceived]{}, nil
	case KindRewardsWithdrawn:
		return &paramsBox[RewardsWithdrawn]{}, nil
	case KindOwnerRewardsWithdrawn:
		return &paramsBox[OwnerRewardsWithdrawn]{}, nil
	case KindStakerRewardsWithdrawn:
		return &paramsBox[StakerRewardsWithdrawn]{}, nil
	case KindPoolWhitelistCreated:
		return &paramsBox[PoolWhitelistCreated]{}, nil
	case KindPoolWhitelistDeleted:
		return &paramsBox[PoolWhitelistDeleted]{}, nil
	case KindPoolWhitelistStakerAdded:
		return &paramsBox[PoolWhitelistStakerAdded]{}, nil
	case KindPoolWhitelistStakerRemoved:
		return &paramsBox[PoolWhitelistStakerRemoved]{}, nil
	case KindMinerBound:
		return &paramsBox[MinerBound]{}, nil
	case KindMinerUnbound:
		return &paramsBox[MinerUnbound]{}, nil
	case KindMinerSettled:
		return &paramsBox[MinerSettled]{}, nil
	case KindMinerStarted:
		return &paramsBox[MinerStarted]{}, nil
	case KindMinerStopped:
		return &paramsBox[MinerStopped]{}, nil
	case KindBenchmarkUpdated:
		return &paramsBox[BenchmarkUpdated]{}, nil
	case KindMinerEnterUnresponsive:
		return &paramsBox[MinerEnterUnresponsive]{}, nil
	case KindMinerExitUnresponsive:
		return &paramsBox[MinerExitUnresponsive]{}, nil
	case KindMinerReclaimed:
		return &paramsBox[MinerReclaimed]{}, nil
	case KindTokenomicParametersChanged:
		return &paramsBox[TokenomicParametersChanged]{}, nil
	case KindWorkerAdded:
		return &paramsBox[WorkerAdded]{}, nil
	case KindWorkerUpdated:
		return &paramsBox[WorkerUpdated]{}, nil
	case KindInitialScoreSet:
		return &paramsBox[InitialScoreSet]{}, nil
	default:
		return nil, xerrors.Errorf("unknown event kind %q", kind)
	}
}

// FeedSource reads canonical batches from a newline-delimited JSON stream,
// one batch envelope per line. It adapts a decoder collaborator's output
// file or pipe into a BlockSource.
type FeedSource struct {
	scanner *bufio.Scanner
}

func NewFeedSource(r io.Reader) *FeedSource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1<<20), 64<<20)
	return &FeedSource{scanner: sc}
}

// NextBatch returns the next feed batch at or above fromHeight, or nil at
// end of feed. Batches wholly below fromHeight are skipped so a restarted
// indexer can resume against the same feed.
func (s *FeedSource) NextBatch(ctx context.Context, fromHeight int64) (*Batch, error) {
	for s.scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := s.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var env batchEnvelope
		if err := json.Unmarshal(line, &env); err != nil {
			return nil, xerrors.Errorf("decode feed batch: %w", err)
		}
		if len(env.Blocks) == 0 {
			continue
		}
		batch := &Batch{Blocks: env.Blocks, Events: make([]Event, len(env.Events))}
		for i, ee := range env.Events {
			if err := batch.Events[i].fromEnvelope(ee); err != nil {
				return nil, err
			}
		}
		if batch.Last().Height < fromHeight {
			continue
		}
		return batch, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, xerrors.Errorf("read feed: %w", err)
	}
	return nil, nil
}

var _ BlockSource = (*FeedSource)(nil)
