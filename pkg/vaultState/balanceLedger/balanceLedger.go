package balanceLedger

import (
	"fmt"
	"math/big"

	"github.com/range-protocol/vault-sidecar/pkg/entities"
	"github.com/range-protocol/vault-sidecar/pkg/entityStore"
	"github.com/range-protocol/vault-sidecar/pkg/types/numbers"
	"github.com/range-protocol/vault-sidecar/pkg/utils"
	"github.com/range-protocol/vault-sidecar/pkg/vaultState/types"
	"go.uber.org/zap"
)

// BalanceLedger tracks per-user share balances and the cost basis attached to them.
type BalanceLedger struct {
	logger *zap.Logger
}

func NewBalanceLedger(l *zap.Logger) *BalanceLedger {
	return &BalanceLedger{logger: l}
}

// TransferResult describes what ApplyTransfer changed.
type TransferResult struct {
	From           *entities.UserVaultBalance
	To             *entities.UserVaultBalance
	CostBasisMoved [2]*big.Int
	CreatedTo      bool
	DeletedFrom    bool
}

// ApplyTransfer moves amount shares from one holder to another. The null address
// on either side denotes a mint or a burn. Cost basis moves with the shares,
// proportionally and rounded down, only on transfers between two holders.
func (b *BalanceLedger) ApplyTransfer(
	uow *entityStore.UnitOfWork,
	vault *entities.Vault,
	from string,
	to string,
	amount *big.Int,
) (*TransferResult, error) {
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative transfer amount %s", types.ErrInvalidEventParams, amount.String())
	}
	from = utils.NormalizeAddress(from)
	to = utils.NormalizeAddress(to)
	isMint := utils.IsNullAddress(from)
	isBurn := utils.IsNullAddress(to)

	result := &TransferResult{
		CostBasisMoved: [2]*big.Int{big.NewInt(0), big.NewInt(0)},
	}

	if amount.Sign() == 0 {
		b.logger.Sugar().Debugw("Ignoring zero value transfer",
			zap.String("vault", vault.Id),
			zap.String("from", from),
			zap.String("to", to),
		)
		return result, nil
	}

	if !isMint {
		fromBalance, err := b.debit(uow, vault, from, amount, result)
		if err != nil {
			return nil, err
		}
		result.From = fromBalance

		if from == to {
			// Self transfer: the debit validated the sender, now undo it.
			fromBalance.Balance.Add(fromBalance.Balance, amount)
			fromBalance.CostBasis0.Add(fromBalance.CostBasis0, result.CostBasisMoved[0])
			fromBalance.CostBasis1.Add(fromBalance.CostBasis1, result.CostBasisMoved[1])
			result.To = fromBalance
			return result, nil
		}

		if fromBalance.Balance.Sign() == 0 && vault.DeleteEmptyBalances {
			uow.Delete(entities.EntityType_UserVaultBalance, fromBalance.Id)
			result.DeletedFrom = true
		} else {
			uow.Save(fromBalance)
		}
	}

	if !isBurn {
		toBalance, created, err := b.credit(uow, vault, to, amount)
		if err != nil {
			return nil, err
		}
		if !isMint {
			toBalance.CostBasis0.Add(toBalance.CostBasis0, result.CostBasisMoved[0])
			toBalance.CostBasis1.Add(toBalance.CostBasis1, result.CostBasisMoved[1])
		}
		uow.Save(toBalance)
		result.To = toBalance
		result.CreatedTo = created
	}

	return result, nil
}

func (b *BalanceLedger) debit(
	uow *entityStore.UnitOfWork,
	vault *entities.Vault,
	from string,
	amount *big.Int,
	result *TransferResult,
) (*entities.UserVaultBalance, error) {
	id := utils.UserVaultBalanceId(vault.Id, from)
	fromBalance, err := entities.LoadUserVaultBalance(uow, id)
	if err != nil {
		return nil, err
	}
	if fromBalance == nil {
		b.logger.Sugar().Errorw("Transfer from a holder without a balance record",
			zap.String("vault", vault.Id),
			zap.String("from", from),
			zap.String("amount", amount.String()),
		)
		return nil, fmt.Errorf("%w: UserVaultBalance %s", types.ErrMissingRecord, id)
	}
	if fromBalance.Balance.Sign() == 0 {
		return nil, fmt.Errorf("%w: UserVaultBalance %s", types.ErrZeroBalance, id)
	}
	if fromBalance.Balance.Cmp(amount) < 0 {
		return nil, fmt.Errorf("%w: UserVaultBalance %s holds %s, transfer of %s",
			types.ErrNegativeBalance, id, fromBalance.Balance.String(), amount.String())
	}

	moved0, err := numbers.MulDivFloor(fromBalance.CostBasis0, amount, fromBalance.Balance)
	if err != nil {
		return nil, err
	}
	moved1, err := numbers.MulDivFloor(fromBalance.CostBasis1, amount, fromBalance.Balance)
	if err != nil {
		return nil, err
	}
	result.CostBasisMoved = [2]*big.Int{moved0, moved1}

	fromBalance.Balance.Sub(fromBalance.Balance, amount)
	fromBalance.CostBasis0.Sub(fromBalance.CostBasis0, moved0)
	fromBalance.CostBasis1.Sub(fromBalance.CostBasis1, moved1)
	return fromBalance, nil
}

func (b *BalanceLedger) credit(
	uow *entityStore.UnitOfWork,
	vault *entities.Vault,
	to string,
	amount *big.Int,
) (*entities.UserVaultBalance, bool, error) {
	user, err := entities.LoadUser(uow, to)
	if err != nil {
		return nil, false, err
	}
	if user == nil {
		uow.Save(&entities.User{Id: to})
	}

	id := utils.UserVaultBalanceId(vault.Id, to)
	toBalance, err := entities.LoadUserVaultBalance(uow, id)
	if err != nil {
		return nil, false, err
	}
	if toBalance != nil {
		toBalance.Balance.Add(toBalance.Balance, amount)
		return toBalance, false, nil
	}

	vault.LastUserIndex++
	uow.Save(vault)
	toBalance = &entities.UserVaultBalance{
		Id:         id,
		Address:    to,
		Vault:      vault.Id,
		User:       to,
		Balance:    new(big.Int).Set(amount),
		CostBasis0: big.NewInt(0),
		CostBasis1: big.NewInt(0),
		UserIndex:  vault.LastUserIndex,
	}
	return toBalance, true, nil
}

// ApplyMintContribution adds the deposited underlying amounts to the receiver's
// cost basis. The balance record is created by the Transfer that precedes every mint.
func (b *BalanceLedger) ApplyMintContribution(
	uow *entityStore.UnitOfWork,
	vault *entities.Vault,
	receiver string,
	amount0In *big.Int,
	amount1In *big.Int,
) (*entities.UserVaultBalance, error) {
	receiver = utils.NormalizeAddress(receiver)
	id := utils.UserVaultBalanceId(vault.Id, receiver)
	balance, err := entities.LoadUserVaultBalance(uow, id)
	if err != nil {
		return nil, err
	}
	if balance == nil {
		b.logger.Sugar().Errorw("Mint contribution for a receiver without a balance record",
			zap.String("vault", vault.Id),
			zap.String("receiver", receiver),
		)
		return nil, fmt.Errorf("%w: UserVaultBalance %s", types.ErrMissingRecord, id)
	}
	balance.CostBasis0.Add(balance.CostBasis0, amount0In)
	balance.CostBasis1.Add(balance.CostBasis1, amount1In)
	uow.Save(balance)
	return balance, nil
}
