package sequentialContractCaller

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/range-protocol/vault-sidecar/internal/config"
	"github.com/range-protocol/vault-sidecar/pkg/contractCaller"
)

// UniswapV3PoolAdapter reads prices from slot0 and liquidity from positions.
type UniswapV3PoolAdapter struct {
	caller *SequentialContractCaller
}

func (a *UniswapV3PoolAdapter) sqrtPrice(ctx context.Context, pool string, blockNumber uint64) contractCaller.Result[*big.Int] {
	return single[*big.Int](a.caller.callRetryable(ctx, &a.caller.uniswapV3PoolAbi, pool, blockNumber, "slot0"))
}

func (a *UniswapV3PoolAdapter) OpeningPrice(ctx context.Context, pool string, blockNumber uint64) contractCaller.Result[*big.Int] {
	return a.sqrtPrice(ctx, pool, blockNumber)
}

func (a *UniswapV3PoolAdapter) ClosingPrice(ctx context.Context, pool string, blockNumber uint64) contractCaller.Result[*big.Int] {
	return a.sqrtPrice(ctx, pool, blockNumber)
}

func (a *UniswapV3PoolAdapter) LiquidityOf(ctx context.Context, pool string, positionId string, blockNumber uint64) contractCaller.Result[*big.Int] {
	key := [32]byte(common.HexToHash(positionId))
	return single[*big.Int](a.caller.callRetryable(ctx, &a.caller.uniswapV3PoolAbi, pool, blockNumber, "positions", key))
}

// AlgebraPoolAdapter reads prices from globalState and liquidity from positions.
type AlgebraPoolAdapter struct {
	caller *SequentialContractCaller
}

func (a *AlgebraPoolAdapter) sqrtPrice(ctx context.Context, pool string, blockNumber uint64) contractCaller.Result[*big.Int] {
	return single[*big.Int](a.caller.callRetryable(ctx, &a.caller.algebraPoolAbi, pool, blockNumber, "globalState"))
}

func (a *AlgebraPoolAdapter) OpeningPrice(ctx context.Context, pool string, blockNumber uint64) contractCaller.Result[*big.Int] {
	return a.sqrtPrice(ctx, pool, blockNumber)
}

func (a *AlgebraPoolAdapter) ClosingPrice(ctx context.Context, pool string, blockNumber uint64) contractCaller.Result[*big.Int] {
	return a.sqrtPrice(ctx, pool, blockNumber)
}

func (a *AlgebraPoolAdapter) LiquidityOf(ctx context.Context, pool string, positionId string, blockNumber uint64) contractCaller.Result[*big.Int] {
	key := [32]byte(common.HexToHash(positionId))
	return single[*big.Int](a.caller.callRetryable(ctx, &a.caller.algebraPoolAbi, pool, blockNumber, "positions", key))
}

// PoolAdapters returns an adapter for every supported pool kind, sharing this caller.
func (cc *SequentialContractCaller) PoolAdapters() contractCaller.PoolAdapters {
	return contractCaller.PoolAdapters{
		config.PoolKind_UniswapV3: &UniswapV3PoolAdapter{caller: cc},
		config.PoolKind_Algebra:   &AlgebraPoolAdapter{caller: cc},
	}
}
