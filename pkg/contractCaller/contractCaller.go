package contractCaller

import (
	"context"
	"errors"
	"math/big"

	"github.com/range-protocol/vault-sidecar/internal/config"
)

// ErrExecutionReverted is returned when the contract reverted the call.
var ErrExecutionReverted = errors.New("execution reverted")

// Result carries either a value read from a contract or the reason it is unavailable.
type Result[T any] struct {
	Value T
	Err   error
}

func Available[T any](value T) Result[T] {
	return Result[T]{Value: value}
}

func Unavailable[T any](err error) Result[T] {
	if err == nil {
		err = ErrExecutionReverted
	}
	return Result[T]{Err: err}
}

func (r Result[T]) IsAvailable() bool {
	return r.Err == nil
}

// ValueOr returns the value when available, otherwise fallback.
func (r Result[T]) ValueOr(fallback T) T {
	if r.Err != nil {
		return fallback
	}
	return r.Value
}

type TokenAmounts struct {
	Amount0 *big.Int
	Amount1 *big.Int
}

type Ticks struct {
	Lower int64
	Upper int64
}

// VaultMetadata holds the static values read once when a vault is created.
type VaultMetadata struct {
	Name           Result[string]
	Token0         Result[string]
	Token1         Result[string]
	Token0Name     Result[string]
	Token1Name     Result[string]
	Manager        Result[string]
	Treasury       Result[string]
	ManagingFee    Result[*big.Int]
	PerformanceFee Result[*big.Int]
	ManagerFee     Result[*big.Int]
	TreasuryFee    Result[*big.Int]
}

// IVaultStateAccessor reads vault contract state pinned to a block. Reads never
// return errors: a revert or transport failure yields an unavailable Result.
type IVaultStateAccessor interface {
	TotalSupply(ctx context.Context, vault string, blockNumber uint64) Result[*big.Int]
	UnderlyingBalances(ctx context.Context, vault string, blockNumber uint64) Result[*TokenAmounts]
	BalanceInCollateralToken(ctx context.Context, vault string, blockNumber uint64) Result[*big.Int]
	ManagerBalances(ctx context.Context, vault string, blockNumber uint64) Result[*TokenAmounts]
	ManagerBalance(ctx context.Context, vault string, blockNumber uint64) Result[*big.Int]
	TreasuryBalances(ctx context.Context, vault string, blockNumber uint64) Result[*TokenAmounts]
	Ticks(ctx context.Context, vault string, blockNumber uint64) Result[*Ticks]
	PositionId(ctx context.Context, vault string, blockNumber uint64) Result[string]
	InThePosition(ctx context.Context, vault string, blockNumber uint64) Result[bool]
	VaultLiquidity(ctx context.Context, vault string, blockNumber uint64) Result[*big.Int]
	VaultMetadata(ctx context.Context, vault string, variant config.VaultVariant, blockNumber uint64) *VaultMetadata
}

// IPoolAdapter reads the exchange pool a vault provides liquidity to.
type IPoolAdapter interface {
	OpeningPrice(ctx context.Context, pool string, blockNumber uint64) Result[*big.Int]
	ClosingPrice(ctx context.Context, pool string, blockNumber uint64) Result[*big.Int]
	LiquidityOf(ctx context.Context, pool string, positionId string, blockNumber uint64) Result[*big.Int]
}

// PoolAdapters selects the adapter for a pool kind.
type PoolAdapters map[config.PoolKind]IPoolAdapter

func (p PoolAdapters) For(kind config.PoolKind) (IPoolAdapter, bool) {
	adapter, ok := p[kind]
	return adapter, ok
}
