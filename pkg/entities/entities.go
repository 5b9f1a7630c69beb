package entities

import (
	"math/big"

	"github.com/range-protocol/vault-sidecar/internal/config"
)

const (
	EntityType_Vault               = "Vault"
	EntityType_Position            = "Position"
	EntityType_User                = "User"
	EntityType_UserVaultBalance    = "UserVaultBalance"
	EntityType_Mint                = "Mint"
	EntityType_Burn                = "Burn"
	EntityType_Swap                = "Swap"
	EntityType_FeeEarned           = "FeeEarned"
	EntityType_CollateralSupplied  = "CollateralSupplied"
	EntityType_CollateralWithdrawn = "CollateralWithdrawn"
	EntityType_GhoMinted           = "GHOMinted"
	EntityType_GhoBurned           = "GHOBurned"
	EntityType_PoolRepeg           = "PoolRepeg"
	EntityType_VaultDayData        = "VaultDayData"
	EntityType_VaultHourData       = "VaultHourData"
	EntityType_VaultStateRoot      = "VaultStateRoot"
	EntityType_ProcessedEvent      = "ProcessedEvent"
)

// EntityTypes lists every persisted record type.
var EntityTypes = []string{
	EntityType_Vault,
	EntityType_Position,
	EntityType_User,
	EntityType_UserVaultBalance,
	EntityType_Mint,
	EntityType_Burn,
	EntityType_Swap,
	EntityType_FeeEarned,
	EntityType_CollateralSupplied,
	EntityType_CollateralWithdrawn,
	EntityType_GhoMinted,
	EntityType_GhoBurned,
	EntityType_PoolRepeg,
	EntityType_VaultDayData,
	EntityType_VaultHourData,
	EntityType_VaultStateRoot,
	EntityType_ProcessedEvent,
}

type Vault struct {
	Id       string              `json:"id"`
	Factory  string              `json:"factory"`
	Variant  config.VaultVariant `json:"variant"`
	PoolKind config.PoolKind     `json:"poolKind"`
	Pool     string              `json:"pool"`

	Name       string `json:"name"`
	Token0     string `json:"token0"`
	Token1     string `json:"token1"`
	Token0Name string `json:"token0Name"`
	Token1Name string `json:"token1Name"`
	Manager    string `json:"manager"`
	Treasury   string `json:"treasury"`

	ManagingFee    *big.Int `json:"managingFee"`
	PerformanceFee *big.Int `json:"performanceFee"`
	ManagerFee     *big.Int `json:"managerFee"`
	TreasuryFee    *big.Int `json:"treasuryFee"`

	Balance0         *big.Int `json:"balance0"`
	Balance1         *big.Int `json:"balance1"`
	Balance          *big.Int `json:"balance"`
	ManagerBalance0  *big.Int `json:"managerBalance0"`
	ManagerBalance1  *big.Int `json:"managerBalance1"`
	ManagerBalance   *big.Int `json:"managerBalance"`
	TreasuryBalance0 *big.Int `json:"treasuryBalance0"`
	TreasuryBalance1 *big.Int `json:"treasuryBalance1"`
	TotalFeesEarned0 *big.Int `json:"totalFeesEarned0"`
	TotalFeesEarned1 *big.Int `json:"totalFeesEarned1"`
	TotalSupply      *big.Int `json:"totalSupply"`
	Liquidity        *big.Int `json:"liquidity"`

	InThePosition            bool   `json:"inThePosition"`
	CurrentPosition          string `json:"currentPosition"`
	CurrentPositionIdInVault string `json:"currentPositionIdInVault"`
	LowerTick                int64  `json:"lowerTick"`
	UpperTick                int64  `json:"upperTick"`
	TicksLastUpdated         uint64 `json:"ticksLastUpdated"`

	FirstMintAtBlock   uint64 `json:"firstMintAtBlock"`
	CreatedAtBlock     uint64 `json:"createdAtBlock"`
	CreatedAtTimestamp uint64 `json:"createdAtTimestamp"`

	PositionCount            uint64 `json:"positionCount"`
	FeeEarnedEventCount      uint64 `json:"feeEarnedEventCount"`
	CollateralSuppliedCount  uint64 `json:"collateralSuppliedCount"`
	CollateralWithdrawnCount uint64 `json:"collateralWithdrawnCount"`
	GhoMintedCount           uint64 `json:"ghoMintedCount"`
	GhoBurnedCount           uint64 `json:"ghoBurnedCount"`
	PoolRepegCount           uint64 `json:"poolRepegCount"`
	LastUserIndex            uint64 `json:"lastUserIndex"`

	DeleteEmptyBalances bool `json:"deleteEmptyBalances"`
	LiquidityFromVault  bool `json:"liquidityFromVault"`

	// Ordering cursor of the last applied event.
	HasAppliedEvents  bool   `json:"hasAppliedEvents"`
	LastEventBlock    uint64 `json:"lastEventBlock"`
	LastEventLogIndex uint64 `json:"lastEventLogIndex"`
}

func NewVault(id string) *Vault {
	return &Vault{
		Id:               id,
		ManagingFee:      big.NewInt(0),
		PerformanceFee:   big.NewInt(0),
		ManagerFee:       big.NewInt(0),
		TreasuryFee:      big.NewInt(0),
		Balance0:         big.NewInt(0),
		Balance1:         big.NewInt(0),
		Balance:          big.NewInt(0),
		ManagerBalance0:  big.NewInt(0),
		ManagerBalance1:  big.NewInt(0),
		ManagerBalance:   big.NewInt(0),
		TreasuryBalance0: big.NewInt(0),
		TreasuryBalance1: big.NewInt(0),
		TotalFeesEarned0: big.NewInt(0),
		TotalFeesEarned1: big.NewInt(0),
		TotalSupply:      big.NewInt(0),
		Liquidity:        big.NewInt(0),
	}
}

func (v *Vault) EntityType() string { return EntityType_Vault }
func (v *Vault) EntityId() string   { return v.Id }

func (v *Vault) HasCurrentPosition() bool {
	return v.CurrentPosition != ""
}

// IsSingleToken reports whether the vault accounts in a single collateral token.
func (v *Vault) IsSingleToken() bool {
	return v.Variant == config.VaultVariant_Collateral
}

type Position struct {
	Id                string   `json:"id"`
	Vault             string   `json:"vault"`
	PositionIdInVault string   `json:"positionIdInVault"`
	LowerTick         int64    `json:"lowerTick"`
	UpperTick         int64    `json:"upperTick"`
	Token0Amount      *big.Int `json:"token0Amount"`
	Token1Amount      *big.Int `json:"token1Amount"`
	Token0Withdrawn   *big.Int `json:"token0Withdrawn"`
	Token1Withdrawn   *big.Int `json:"token1Withdrawn"`
	FeesEarned0       *big.Int `json:"feesEarned0"`
	FeesEarned1       *big.Int `json:"feesEarned1"`

	OpenedAtBlock     uint64 `json:"openedAtBlock"`
	OpenedAtTimestamp uint64 `json:"openedAtTimestamp"`
	ClosedAtBlock     uint64 `json:"closedAtBlock"`
	ClosedAtTimestamp uint64 `json:"closedAtTimestamp"`
	// ImplicitlyClosed is set when a new range replaced this position without a removal event.
	ImplicitlyClosed bool `json:"implicitlyClosed"`

	PriceSqrtAtOpening *big.Int `json:"priceSqrtAtOpening"`
	PriceSqrtAtClosing *big.Int `json:"priceSqrtAtClosing"`
	PriceAtOpening     string   `json:"priceAtOpening"`
	PriceAtClosing     string   `json:"priceAtClosing"`
}

func NewPosition(id string, vault string) *Position {
	return &Position{
		Id:                 id,
		Vault:              vault,
		Token0Amount:       big.NewInt(0),
		Token1Amount:       big.NewInt(0),
		Token0Withdrawn:    big.NewInt(0),
		Token1Withdrawn:    big.NewInt(0),
		FeesEarned0:        big.NewInt(0),
		FeesEarned1:        big.NewInt(0),
		PriceSqrtAtOpening: big.NewInt(0),
		PriceSqrtAtClosing: big.NewInt(0),
	}
}

func (p *Position) EntityType() string { return EntityType_Position }
func (p *Position) EntityId() string   { return p.Id }

func (p *Position) IsOpen() bool {
	return p.ClosedAtBlock == 0
}

type User struct {
	Id string `json:"id"`
}

func (u *User) EntityType() string { return EntityType_User }
func (u *User) EntityId() string   { return u.Id }

type UserVaultBalance struct {
	Id         string   `json:"id"`
	Address    string   `json:"address"`
	Vault      string   `json:"vault"`
	User       string   `json:"user"`
	Balance    *big.Int `json:"balance"`
	CostBasis0 *big.Int `json:"costBasis0"`
	CostBasis1 *big.Int `json:"costBasis1"`
	UserIndex  uint64   `json:"userIndex"`
}

func (b *UserVaultBalance) EntityType() string { return EntityType_UserVaultBalance }
func (b *UserVaultBalance) EntityId() string   { return b.Id }

type VaultDayData struct {
	Id    string   `json:"id"`
	Vault string   `json:"vault"`
	Date  uint64   `json:"date"`
	Fee0  *big.Int `json:"fee0"`
	Fee1  *big.Int `json:"fee1"`
}

func (d *VaultDayData) EntityType() string { return EntityType_VaultDayData }
func (d *VaultDayData) EntityId() string   { return d.Id }

type VaultHourData struct {
	Id              string   `json:"id"`
	Vault           string   `json:"vault"`
	PeriodStartUnix uint64   `json:"periodStartUnix"`
	Fee0            *big.Int `json:"fee0"`
	Fee1            *big.Int `json:"fee1"`
}

func (d *VaultHourData) EntityType() string { return EntityType_VaultHourData }
func (d *VaultHourData) EntityId() string   { return d.Id }

// VaultStateRoot is the merkle root over every record written for a vault in a block.
type VaultStateRoot struct {
	Id          string `json:"id"`
	Vault       string `json:"vault"`
	BlockNumber uint64 `json:"blockNumber"`
	StateRoot   string `json:"stateRoot"`
	Leaves      int    `json:"leaves"`
}

func (r *VaultStateRoot) EntityType() string { return EntityType_VaultStateRoot }
func (r *VaultStateRoot) EntityId() string   { return r.Id }

// ProcessedEvent marks a (transaction, log) pair as applied.
type ProcessedEvent struct {
	Id              string `json:"id"`
	Vault           string `json:"vault"`
	EventName       string `json:"eventName"`
	TransactionHash string `json:"transactionHash"`
	LogIndex        uint64 `json:"logIndex"`
	BlockNumber     uint64 `json:"blockNumber"`
}

func (e *ProcessedEvent) EntityType() string { return EntityType_ProcessedEvent }
func (e *ProcessedEvent) EntityId() string   { return e.Id }
