package tests

import (
	"context"
	"math/big"
	"strings"
	"sync"

	"github.com/range-protocol/vault-sidecar/internal/config"
	"github.com/range-protocol/vault-sidecar/pkg/contractCaller"
)

// FakeVaultState is the contract state served by FakeVaultStateAccessor for one vault.
type FakeVaultState struct {
	TotalSupply              *big.Int
	Balance0                 *big.Int
	Balance1                 *big.Int
	BalanceInCollateralToken *big.Int
	ManagerBalance0          *big.Int
	ManagerBalance1          *big.Int
	ManagerBalance           *big.Int
	TreasuryBalance0         *big.Int
	TreasuryBalance1         *big.Int
	LowerTick                int64
	UpperTick                int64
	PositionId               string
	InThePosition            bool
	Liquidity                *big.Int

	Name           string
	Token0         string
	Token1         string
	Token0Name     string
	Token1Name     string
	Manager        string
	Treasury       string
	ManagingFee    *big.Int
	PerformanceFee *big.Int
	ManagerFee     *big.Int
	TreasuryFee    *big.Int
}

func NewFakeVaultState() *FakeVaultState {
	return &FakeVaultState{
		TotalSupply:              big.NewInt(0),
		Balance0:                 big.NewInt(0),
		Balance1:                 big.NewInt(0),
		BalanceInCollateralToken: big.NewInt(0),
		ManagerBalance0:          big.NewInt(0),
		ManagerBalance1:          big.NewInt(0),
		ManagerBalance:           big.NewInt(0),
		TreasuryBalance0:         big.NewInt(0),
		TreasuryBalance1:         big.NewInt(0),
		Liquidity:                big.NewInt(0),
		ManagingFee:              big.NewInt(0),
		PerformanceFee:           big.NewInt(0),
		ManagerFee:               big.NewInt(0),
		TreasuryFee:              big.NewInt(0),
	}
}

// FakeVaultStateAccessor is an in-memory IVaultStateAccessor. Any method can be
// made to revert with Revert.
type FakeVaultStateAccessor struct {
	mu        sync.Mutex
	vaults    map[string]*FakeVaultState
	reverting map[string]bool
	calls     map[string]int
}

func NewFakeVaultStateAccessor() *FakeVaultStateAccessor {
	return &FakeVaultStateAccessor{
		vaults:    make(map[string]*FakeVaultState),
		reverting: make(map[string]bool),
		calls:     make(map[string]int),
	}
}

// Vault returns the mutable state of a vault, creating it on first use.
func (f *FakeVaultStateAccessor) Vault(address string) *FakeVaultState {
	f.mu.Lock()
	defer f.mu.Unlock()
	address = strings.ToLower(address)
	if v, ok := f.vaults[address]; ok {
		return v
	}
	v := NewFakeVaultState()
	f.vaults[address] = v
	return v
}

func (f *FakeVaultStateAccessor) Revert(methods ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range methods {
		f.reverting[m] = true
	}
}

func (f *FakeVaultStateAccessor) Restore(methods ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range methods {
		delete(f.reverting, m)
	}
}

func (f *FakeVaultStateAccessor) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *FakeVaultStateAccessor) read(method string, vault string) (*FakeVaultState, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method]++
	if f.reverting[method] {
		return nil, false
	}
	v, ok := f.vaults[strings.ToLower(vault)]
	return v, ok
}

func bigResult(v *big.Int, ok bool) contractCaller.Result[*big.Int] {
	if !ok || v == nil {
		return contractCaller.Unavailable[*big.Int](contractCaller.ErrExecutionReverted)
	}
	return contractCaller.Available(new(big.Int).Set(v))
}

func pairResult(a *big.Int, b *big.Int, ok bool) contractCaller.Result[*contractCaller.TokenAmounts] {
	if !ok || a == nil || b == nil {
		return contractCaller.Unavailable[*contractCaller.TokenAmounts](contractCaller.ErrExecutionReverted)
	}
	return contractCaller.Available(&contractCaller.TokenAmounts{
		Amount0: new(big.Int).Set(a),
		Amount1: new(big.Int).Set(b),
	})
}

func stringResult(s string, ok bool) contractCaller.Result[string] {
	if !ok || s == "" {
		return contractCaller.Unavailable[string](contractCaller.ErrExecutionReverted)
	}
	return contractCaller.Available(s)
}

func (f *FakeVaultStateAccessor) TotalSupply(ctx context.Context, vault string, blockNumber uint64) contractCaller.Result[*big.Int] {
	v, ok := f.read("totalSupply", vault)
	if !ok {
		return bigResult(nil, false)
	}
	return bigResult(v.TotalSupply, true)
}

func (f *FakeVaultStateAccessor) UnderlyingBalances(ctx context.Context, vault string, blockNumber uint64) contractCaller.Result[*contractCaller.TokenAmounts] {
	v, ok := f.read("getUnderlyingBalances", vault)
	if !ok {
		return pairResult(nil, nil, false)
	}
	return pairResult(v.Balance0, v.Balance1, true)
}

func (f *FakeVaultStateAccessor) BalanceInCollateralToken(ctx context.Context, vault string, blockNumber uint64) contractCaller.Result[*big.Int] {
	v, ok := f.read("getBalanceInCollateralToken", vault)
	if !ok {
		return bigResult(nil, false)
	}
	return bigResult(v.BalanceInCollateralToken, true)
}

func (f *FakeVaultStateAccessor) ManagerBalances(ctx context.Context, vault string, blockNumber uint64) contractCaller.Result[*contractCaller.TokenAmounts] {
	v, ok := f.read("managerBalances", vault)
	if !ok {
		return pairResult(nil, nil, false)
	}
	return pairResult(v.ManagerBalance0, v.ManagerBalance1, true)
}

func (f *FakeVaultStateAccessor) ManagerBalance(ctx context.Context, vault string, blockNumber uint64) contractCaller.Result[*big.Int] {
	v, ok := f.read("managerBalance", vault)
	if !ok {
		return bigResult(nil, false)
	}
	return bigResult(v.ManagerBalance, true)
}

func (f *FakeVaultStateAccessor) TreasuryBalances(ctx context.Context, vault string, blockNumber uint64) contractCaller.Result[*contractCaller.TokenAmounts] {
	v, ok := f.read("treasuryBalances", vault)
	if !ok {
		return pairResult(nil, nil, false)
	}
	return pairResult(v.TreasuryBalance0, v.TreasuryBalance1, true)
}

func (f *FakeVaultStateAccessor) Ticks(ctx context.Context, vault string, blockNumber uint64) contractCaller.Result[*contractCaller.Ticks] {
	v, ok := f.read("ticks", vault)
	if !ok {
		return contractCaller.Unavailable[*contractCaller.Ticks](contractCaller.ErrExecutionReverted)
	}
	return contractCaller.Available(&contractCaller.Ticks{Lower: v.LowerTick, Upper: v.UpperTick})
}

func (f *FakeVaultStateAccessor) PositionId(ctx context.Context, vault string, blockNumber uint64) contractCaller.Result[string] {
	v, ok := f.read("getPositionID", vault)
	if !ok {
		return stringResult("", false)
	}
	return stringResult(v.PositionId, true)
}

func (f *FakeVaultStateAccessor) InThePosition(ctx context.Context, vault string, blockNumber uint64) contractCaller.Result[bool] {
	v, ok := f.read("inThePosition", vault)
	if !ok {
		return contractCaller.Unavailable[bool](contractCaller.ErrExecutionReverted)
	}
	return contractCaller.Available(v.InThePosition)
}

func (f *FakeVaultStateAccessor) VaultLiquidity(ctx context.Context, vault string, blockNumber uint64) contractCaller.Result[*big.Int] {
	v, ok := f.read("liquidity", vault)
	if !ok {
		return bigResult(nil, false)
	}
	return bigResult(v.Liquidity, true)
}

func (f *FakeVaultStateAccessor) VaultMetadata(ctx context.Context, vault string, variant config.VaultVariant, blockNumber uint64) *contractCaller.VaultMetadata {
	v, ok := f.read("metadata", vault)
	if !ok {
		v = &FakeVaultState{}
	}
	return &contractCaller.VaultMetadata{
		Name:           stringResult(v.Name, ok),
		Token0:         stringResult(v.Token0, ok),
		Token1:         stringResult(v.Token1, ok),
		Token0Name:     stringResult(v.Token0Name, ok),
		Token1Name:     stringResult(v.Token1Name, ok),
		Manager:        stringResult(v.Manager, ok),
		Treasury:       stringResult(v.Treasury, ok),
		ManagingFee:    bigResult(v.ManagingFee, ok),
		PerformanceFee: bigResult(v.PerformanceFee, ok),
		ManagerFee:     bigResult(v.ManagerFee, ok),
		TreasuryFee:    bigResult(v.TreasuryFee, ok),
	}
}

// FakePoolAdapter serves fixed prices per pool and liquidity per position id.
type FakePoolAdapter struct {
	mu        sync.Mutex
	prices    map[string]*big.Int
	liquidity map[string]*big.Int
	reverting bool
}

func NewFakePoolAdapter() *FakePoolAdapter {
	return &FakePoolAdapter{
		prices:    make(map[string]*big.Int),
		liquidity: make(map[string]*big.Int),
	}
}

func (p *FakePoolAdapter) SetPrice(pool string, sqrtPrice *big.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[strings.ToLower(pool)] = sqrtPrice
}

func (p *FakePoolAdapter) SetLiquidity(positionId string, liquidity *big.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.liquidity[strings.ToLower(positionId)] = liquidity
}

func (p *FakePoolAdapter) SetReverting(reverting bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reverting = reverting
}

func (p *FakePoolAdapter) price(pool string) contractCaller.Result[*big.Int] {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reverting {
		return bigResult(nil, false)
	}
	v, ok := p.prices[strings.ToLower(pool)]
	return bigResult(v, ok)
}

func (p *FakePoolAdapter) OpeningPrice(ctx context.Context, pool string, blockNumber uint64) contractCaller.Result[*big.Int] {
	return p.price(pool)
}

func (p *FakePoolAdapter) ClosingPrice(ctx context.Context, pool string, blockNumber uint64) contractCaller.Result[*big.Int] {
	return p.price(pool)
}

func (p *FakePoolAdapter) LiquidityOf(ctx context.Context, pool string, positionId string, blockNumber uint64) contractCaller.Result[*big.Int] {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reverting {
		return bigResult(nil, false)
	}
	v, ok := p.liquidity[strings.ToLower(positionId)]
	return bigResult(v, ok)
}

// PoolAdapters returns the fake for every pool kind.
func (p *FakePoolAdapter) PoolAdapters() contractCaller.PoolAdapters {
	return contractCaller.PoolAdapters{
		config.PoolKind_UniswapV3: p,
		config.PoolKind_Algebra:   p,
	}
}
