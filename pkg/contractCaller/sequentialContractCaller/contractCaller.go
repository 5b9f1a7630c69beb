package sequentialContractCaller

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/range-protocol/vault-sidecar/internal/config"
	"github.com/range-protocol/vault-sidecar/pkg/clients/ethereum"
	"github.com/range-protocol/vault-sidecar/pkg/contractCaller"
	"github.com/range-protocol/vault-sidecar/pkg/utils"
	"go.uber.org/zap"
)

var executionRevertedRegex = regexp.MustCompile(`execution reverted`)

func isExecutionRevertedError(err error) bool {
	return executionRevertedRegex.MatchString(err.Error())
}

type SequentialContractCaller struct {
	EthereumClient *ethereum.Client
	Logger         *zap.Logger
	// Backoffs is the wait in seconds before each retry of a non-revert failure.
	Backoffs []int

	vaultAbi         abi.ABI
	erc20Abi         abi.ABI
	uniswapV3PoolAbi abi.ABI
	algebraPoolAbi   abi.ABI
}

func NewSequentialContractCaller(ec *ethereum.Client, l *zap.Logger) (*SequentialContractCaller, error) {
	cc := &SequentialContractCaller{
		EthereumClient: ec,
		Logger:         l,
		Backoffs:       []int{1, 2, 5},
	}
	abis := []struct {
		target *abi.ABI
		json   string
	}{
		{&cc.vaultAbi, contractCaller.VaultAbi},
		{&cc.erc20Abi, contractCaller.Erc20Abi},
		{&cc.uniswapV3PoolAbi, contractCaller.UniswapV3PoolAbi},
		{&cc.algebraPoolAbi, contractCaller.AlgebraPoolAbi},
	}
	for _, a := range abis {
		parsed, err := abi.JSON(strings.NewReader(a.json))
		if err != nil {
			l.Sugar().Errorw("Failed to parse abi", zap.Error(err))
			return nil, err
		}
		*a.target = parsed
	}
	return cc, nil
}

func (cc *SequentialContractCaller) call(ctx context.Context, contractAbi *abi.ABI, address string, blockNumber uint64, method string, args ...interface{}) ([]interface{}, error) {
	callerClient, err := cc.EthereumClient.GetEthereumContractCaller(ctx)
	if err != nil {
		return nil, err
	}

	contract := bind.NewBoundContract(common.HexToAddress(address), *contractAbi, callerClient, nil, nil)

	opts := &bind.CallOpts{Context: ctx}
	if blockNumber > 0 {
		opts.BlockNumber = new(big.Int).SetUint64(blockNumber)
	}

	results := make([]interface{}, 0)
	if err := contract.Call(opts, &results, method, args...); err != nil {
		if isExecutionRevertedError(err) {
			return nil, fmt.Errorf("%s: %w", method, contractCaller.ErrExecutionReverted)
		}
		return nil, err
	}
	return results, nil
}

// callRetryable retries transport failures. Reverts are deterministic for a pinned block and are not retried.
func (cc *SequentialContractCaller) callRetryable(ctx context.Context, contractAbi *abi.ABI, address string, blockNumber uint64, method string, args ...interface{}) ([]interface{}, error) {
	results, err := cc.call(ctx, contractAbi, address, blockNumber, method, args...)
	if err == nil || errors.Is(err, contractCaller.ErrExecutionReverted) {
		return results, err
	}
	for i, backoff := range cc.Backoffs {
		cc.Logger.Sugar().Debugw("Contract call failed, retrying",
			zap.Int("attempt", i+1),
			zap.String("address", address),
			zap.String("method", method),
			zap.Uint64("blockNumber", blockNumber),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second * time.Duration(backoff)):
		}
		results, err = cc.call(ctx, contractAbi, address, blockNumber, method, args...)
		if err == nil || errors.Is(err, contractCaller.ErrExecutionReverted) {
			return results, err
		}
	}
	return nil, err
}

func output[T any](results []interface{}, index int) (T, error) {
	var empty T
	if len(results) <= index {
		return empty, fmt.Errorf("expected at least %d outputs, got %d", index+1, len(results))
	}
	value, ok := results[index].(T)
	if !ok {
		return empty, fmt.Errorf("unexpected output type %T", results[index])
	}
	return value, nil
}

func single[T any](results []interface{}, err error) contractCaller.Result[T] {
	if err != nil {
		return contractCaller.Unavailable[T](err)
	}
	value, err := output[T](results, 0)
	if err != nil {
		return contractCaller.Unavailable[T](err)
	}
	return contractCaller.Available(value)
}

func pair(results []interface{}, err error) contractCaller.Result[*contractCaller.TokenAmounts] {
	if err != nil {
		return contractCaller.Unavailable[*contractCaller.TokenAmounts](err)
	}
	amount0, err := output[*big.Int](results, 0)
	if err != nil {
		return contractCaller.Unavailable[*contractCaller.TokenAmounts](err)
	}
	amount1, err := output[*big.Int](results, 1)
	if err != nil {
		return contractCaller.Unavailable[*contractCaller.TokenAmounts](err)
	}
	return contractCaller.Available(&contractCaller.TokenAmounts{Amount0: amount0, Amount1: amount1})
}

func joinPair(a contractCaller.Result[*big.Int], b contractCaller.Result[*big.Int]) contractCaller.Result[*contractCaller.TokenAmounts] {
	if !a.IsAvailable() {
		return contractCaller.Unavailable[*contractCaller.TokenAmounts](a.Err)
	}
	if !b.IsAvailable() {
		return contractCaller.Unavailable[*contractCaller.TokenAmounts](b.Err)
	}
	return contractCaller.Available(&contractCaller.TokenAmounts{Amount0: a.Value, Amount1: b.Value})
}

func addressResult(r contractCaller.Result[common.Address]) contractCaller.Result[string] {
	if !r.IsAvailable() {
		return contractCaller.Unavailable[string](r.Err)
	}
	return contractCaller.Available(utils.NormalizeAddress(r.Value.Hex()))
}

func feeResult(r contractCaller.Result[uint16]) contractCaller.Result[*big.Int] {
	if !r.IsAvailable() {
		return contractCaller.Unavailable[*big.Int](r.Err)
	}
	return contractCaller.Available(big.NewInt(int64(r.Value)))
}

func (cc *SequentialContractCaller) vaultBig(ctx context.Context, vault string, blockNumber uint64, method string) contractCaller.Result[*big.Int] {
	return single[*big.Int](cc.callRetryable(ctx, &cc.vaultAbi, vault, blockNumber, method))
}

func (cc *SequentialContractCaller) TotalSupply(ctx context.Context, vault string, blockNumber uint64) contractCaller.Result[*big.Int] {
	return cc.vaultBig(ctx, vault, blockNumber, "totalSupply")
}

func (cc *SequentialContractCaller) UnderlyingBalances(ctx context.Context, vault string, blockNumber uint64) contractCaller.Result[*contractCaller.TokenAmounts] {
	return pair(cc.callRetryable(ctx, &cc.vaultAbi, vault, blockNumber, "getUnderlyingBalances"))
}

func (cc *SequentialContractCaller) BalanceInCollateralToken(ctx context.Context, vault string, blockNumber uint64) contractCaller.Result[*big.Int] {
	return cc.vaultBig(ctx, vault, blockNumber, "getBalanceInCollateralToken")
}

func (cc *SequentialContractCaller) ManagerBalances(ctx context.Context, vault string, blockNumber uint64) contractCaller.Result[*contractCaller.TokenAmounts] {
	return joinPair(
		cc.vaultBig(ctx, vault, blockNumber, "managerBalance0"),
		cc.vaultBig(ctx, vault, blockNumber, "managerBalance1"),
	)
}

func (cc *SequentialContractCaller) ManagerBalance(ctx context.Context, vault string, blockNumber uint64) contractCaller.Result[*big.Int] {
	return cc.vaultBig(ctx, vault, blockNumber, "managerBalance")
}

func (cc *SequentialContractCaller) TreasuryBalances(ctx context.Context, vault string, blockNumber uint64) contractCaller.Result[*contractCaller.TokenAmounts] {
	return joinPair(
		cc.vaultBig(ctx, vault, blockNumber, "treasuryBalance0"),
		cc.vaultBig(ctx, vault, blockNumber, "treasuryBalance1"),
	)
}

func (cc *SequentialContractCaller) Ticks(ctx context.Context, vault string, blockNumber uint64) contractCaller.Result[*contractCaller.Ticks] {
	lower := cc.vaultBig(ctx, vault, blockNumber, "lowerTick")
	if !lower.IsAvailable() {
		return contractCaller.Unavailable[*contractCaller.Ticks](lower.Err)
	}
	upper := cc.vaultBig(ctx, vault, blockNumber, "upperTick")
	if !upper.IsAvailable() {
		return contractCaller.Unavailable[*contractCaller.Ticks](upper.Err)
	}
	return contractCaller.Available(&contractCaller.Ticks{
		Lower: lower.Value.Int64(),
		Upper: upper.Value.Int64(),
	})
}

func (cc *SequentialContractCaller) PositionId(ctx context.Context, vault string, blockNumber uint64) contractCaller.Result[string] {
	res := single[[32]byte](cc.callRetryable(ctx, &cc.vaultAbi, vault, blockNumber, "getPositionID"))
	if !res.IsAvailable() {
		return contractCaller.Unavailable[string](res.Err)
	}
	return contractCaller.Available(utils.ConvertBytesToString(res.Value[:]))
}

func (cc *SequentialContractCaller) InThePosition(ctx context.Context, vault string, blockNumber uint64) contractCaller.Result[bool] {
	return single[bool](cc.callRetryable(ctx, &cc.vaultAbi, vault, blockNumber, "inThePosition"))
}

func (cc *SequentialContractCaller) VaultLiquidity(ctx context.Context, vault string, blockNumber uint64) contractCaller.Result[*big.Int] {
	return cc.vaultBig(ctx, vault, blockNumber, "liquidity")
}

func (cc *SequentialContractCaller) tokenName(ctx context.Context, token contractCaller.Result[string], blockNumber uint64) contractCaller.Result[string] {
	if !token.IsAvailable() {
		return contractCaller.Unavailable[string](token.Err)
	}
	return single[string](cc.callRetryable(ctx, &cc.erc20Abi, token.Value, blockNumber, "name"))
}

func (cc *SequentialContractCaller) VaultMetadata(ctx context.Context, vault string, variant config.VaultVariant, blockNumber uint64) *contractCaller.VaultMetadata {
	addressOf := func(method string) contractCaller.Result[string] {
		return addressResult(single[common.Address](cc.callRetryable(ctx, &cc.vaultAbi, vault, blockNumber, method)))
	}
	feeOf := func(method string) contractCaller.Result[*big.Int] {
		return feeResult(single[uint16](cc.callRetryable(ctx, &cc.vaultAbi, vault, blockNumber, method)))
	}
	notExposed := func(method string) error {
		return fmt.Errorf("%s is not exposed by %s vaults", method, variant)
	}

	md := &contractCaller.VaultMetadata{
		Name:    single[string](cc.callRetryable(ctx, &cc.vaultAbi, vault, blockNumber, "name")),
		Token0:  addressOf("token0"),
		Token1:  addressOf("token1"),
		Manager: addressOf("manager"),
	}
	md.Token0Name = cc.tokenName(ctx, md.Token0, blockNumber)
	md.Token1Name = cc.tokenName(ctx, md.Token1, blockNumber)

	if variant == config.VaultVariant_Legacy {
		md.Treasury = addressOf("treasury")
		md.ManagerFee = feeOf("managerFee")
		md.TreasuryFee = feeOf("treasuryFee")
		md.ManagingFee = contractCaller.Unavailable[*big.Int](notExposed("managingFee"))
		md.PerformanceFee = contractCaller.Unavailable[*big.Int](notExposed("performanceFee"))
	} else {
		md.Treasury = contractCaller.Unavailable[string](notExposed("treasury"))
		md.ManagerFee = contractCaller.Unavailable[*big.Int](notExposed("managerFee"))
		md.TreasuryFee = contractCaller.Unavailable[*big.Int](notExposed("treasuryFee"))
		md.ManagingFee = feeOf("managingFee")
		md.PerformanceFee = feeOf("performanceFee")
	}
	return md
}
