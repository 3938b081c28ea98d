// Package snapshot loads the point-in-time dumps of on-chain storage that
// seed the one-time bootstrap: seven collections keyed by pool, worker and
// miner identifiers, plus the tokenomic parameters, each stored as a
// height-suffixed JSON file wrapped in {"result": ...}.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/xerrors"

	"github.com/phala-network/computation-indexer/chain"
	"github.com/phala-network/computation-indexer/model"
	"github.com/phala-network/computation-indexer/numeric"
)

// BigInt decodes chain integers that arrive as JSON numbers, decimal
// strings or 0x-prefixed hex strings.
type BigInt struct {
	big.Int
}

func (b *BigInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}
	if _, ok := b.Int.SetString(s, base); !ok {
		return xerrors.Errorf("invalid big integer %q", s)
	}
	return nil
}

type WithdrawQueueEntry struct {
	User   string `json:"user"`
	Shares BigInt `json:"shares"`
	// Unix seconds.
	StartTime int64 `json:"startTime"`
}

type StakePoolDump struct {
	Pid   BigInt `json:"pid"`
	Owner string `json:"owner"`
	// Parts-per-million, nil when unset.
	PayoutCommission *int64               `json:"payoutCommission"`
	Cap              *BigInt              `json:"cap"`
	OwnerReward      BigInt               `json:"ownerReward"`
	FreeStake        BigInt               `json:"freeStake"`
	TotalStake       BigInt               `json:"totalStake"`
	ReleasingStake   BigInt               `json:"releasingStake"`
	TotalShares      BigInt               `json:"totalShares"`
	Workers          []string             `json:"workers"`
	WithdrawQueue    []WithdrawQueueEntry `json:"withdrawQueue"`
}

type MinerDump struct {
	State     model.MinerState `json:"state"`
	Ve        BigInt           `json:"ve"`
	V         BigInt           `json:"v"`
	Benchmark struct {
		PInit    int `json:"pInit"`
		PInstant int `json:"pInstant"`
	} `json:"benchmark"`
	// Unix seconds; zero when not cooling down.
	CoolDownStart int64 `json:"coolDownStart"`
	Stats         struct {
		TotalReward BigInt `json:"totalReward"`
	} `json:"stats"`
}

type WorkerDump struct {
	Pubkey          string `json:"pubkey"`
	Operator        string `json:"operator"`
	ConfidenceLevel int    `json:"confidenceLevel"`
	InitialScore    int    `json:"initialScore"`
}

// StakePoolStakeDump is serialized as a two-element tuple:
// [[pid, account], {shares, availableRewards}].
type StakePoolStakeDump struct {
	Pid              BigInt
	AccountID        string
	Shares           BigInt
	AvailableRewards BigInt
}

func (d *StakePoolStakeDump) UnmarshalJSON(data []byte) error {
	var tuple [2]json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	var key [2]json.RawMessage
	if err := json.Unmarshal(tuple[0], &key); err != nil {
		return err
	}
	if err := json.Unmarshal(key[0], &d.Pid); err != nil {
		return err
	}
	if err := json.Unmarshal(key[1], &d.AccountID); err != nil {
		return err
	}
	var value struct {
		Shares           BigInt `json:"shares"`
		AvailableRewards BigInt `json:"availableRewards"`
	}
	if err := json.Unmarshal(tuple[1], &value); err != nil {
		return err
	}
	d.Shares = value.Shares
	d.AvailableRewards = value.AvailableRewards
	return nil
}

type tokenomicDump struct {
	PhaRate        BigInt `json:"phaRate"`
	BudgetPerBlock BigInt `json:"budgetPerBlock"`
	VMax           BigInt `json:"vMax"`
	TreasuryRatio  BigInt `json:"treasuryRatio"`
	Re             BigInt `json:"re"`
	K              BigInt `json:"k"`
}

// Dump is the complete snapshot state at one height.
type Dump struct {
	StakePools      []StakePoolDump
	Miners          map[string]MinerDump
	Workers         []WorkerDump
	MinerBindings   map[string]string
	MinerStakes     map[string]BigInt
	StakePoolStakes []StakePoolStakeDump
	// Pool id -> whitelisted accounts in on-chain order.
	StakePoolWhitelists map[string][]string
}

// Source resolves height-suffixed dump files from a directory.
type Source struct {
	dir string
}

func NewSource(dir string) *Source {
	return &Source{dir: dir}
}

func readJSON[T any](dir, name string, height int64) (T, error) {
	var wrapper struct {
		Result T `json:"result"`
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%d.json", name, height))
	data, err := os.ReadFile(path)
	if err != nil {
		return wrapper.Result, xerrors.Errorf("read dump: %w", err)
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return wrapper.Result, xerrors.Errorf("decode dump %s: %w", path, err)
	}
	return wrapper.Result, nil
}

// Load reads the seven dump collections taken at the given height.
func (s *Source) Load(ctx context.Context, height int64) (*Dump, error) {
	dump := &Dump{}
	var err error
	if dump.StakePools, err = readJSON[[]StakePoolDump](s.dir, "stake_pools", height); err != nil {
		return nil, err
	}
	if dump.Miners, err = readJSON[map[string]MinerDump](s.dir, "miners", height); err != nil {
		return nil, err
	}
	if dump.Workers, err = readJSON[[]WorkerDump](s.dir, "workers", height); err != nil {
		return nil, err
	}
	if dump.MinerBindings, err = readJSON[map[string]string](s.dir, "miner_bindings", height); err != nil {
		return nil, err
	}
	if dump.MinerStakes, err = readJSON[map[string]BigInt](s.dir, "miner_stakes", height); err != nil {
		return nil, err
	}
	if dump.StakePoolStakes, err = readJSON[[]StakePoolStakeDump](s.dir, "stake_pool_stakes", height); err != nil {
		return nil, err
	}
	if dump.StakePoolWhitelists, err = readJSON[map[string][]string](s.dir, "stake_pool_whitelists", height); err != nil {
		return nil, err
	}
	return dump, nil
}

// TokenomicParameters reads the dumped parameter set as of the given
// block, satisfying chain.ParameterReader for dump-backed deployments.
func (s *Source) TokenomicParameters(ctx context.Context, block chain.BlockHeader) (*model.TokenomicParameters, error) {
	raw, err := readJSON[tokenomicDump](s.dir, "tokenomic_parameters", block.Height)
	if err != nil {
		return nil, err
	}
	return &model.TokenomicParameters{
		ID:             model.SingletonID,
		PhaRate:        numeric.FromBits(&raw.PhaRate.Int),
		BudgetPerBlock: numeric.FromBits(&raw.BudgetPerBlock.Int),
		VMax:           numeric.FromBits(&raw.VMax.Int),
		TreasuryRatio:  numeric.FromBits(&raw.TreasuryRatio.Int),
		Re:             numeric.FromBits(&raw.Re.Int),
		K:              numeric.FromBits(&raw.K.Int),
	}, nil
}

var _ chain.ParameterReader = (*Source)(nil)
