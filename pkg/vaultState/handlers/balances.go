package handlers

import (
	"context"
	"math/big"
	"slices"

	"github.com/range-protocol/vault-sidecar/pkg/entities"
	"github.com/range-protocol/vault-sidecar/pkg/entityStore"
	"github.com/range-protocol/vault-sidecar/pkg/storage"
	"github.com/range-protocol/vault-sidecar/pkg/utils"
	"github.com/range-protocol/vault-sidecar/pkg/vaultState/base"
	"github.com/range-protocol/vault-sidecar/pkg/vaultState/eventLog"
	"go.uber.org/zap"
)

func (h *VaultHandlers) handleTransfer(ctx context.Context, uow *entityStore.UnitOfWork, log *storage.TransactionLog) error {
	vault, err := h.loadVault(uow, log)
	if err != nil {
		return err
	}
	params, err := h.ParseEventParams(log)
	if err != nil {
		return err
	}
	from, err := params.Address("from")
	if err != nil {
		return err
	}
	to, err := params.Address("to")
	if err != nil {
		return err
	}
	value, err := params.Big("value")
	if err != nil {
		return err
	}

	if _, err := h.ledger.ApplyTransfer(uow, vault, from, to, value); err != nil {
		h.logger.Sugar().Errorw("Failed to apply transfer",
			zap.String("vault", vault.Id),
			zap.String("transactionHash", log.TransactionHash),
			zap.Uint64("logIndex", log.LogIndex),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// underlyingAmounts reads the token amounts of a mint or burn. Single token vaults
// report one collateral amount, which is token1.
func underlyingAmounts(vault *entities.Vault, params base.EventParams, names0 []string, names1 []string) (*big.Int, *big.Int, error) {
	if vault.IsSingleToken() {
		amount, err := params.Big(slices.Concat(names1, names0)...)
		if err != nil {
			return nil, nil, err
		}
		return big.NewInt(0), amount, nil
	}
	amount0, err := params.Big(names0...)
	if err != nil {
		return nil, nil, err
	}
	amount1 := big.NewInt(0)
	if params.Has(names1...) {
		if amount1, err = params.Big(names1...); err != nil {
			return nil, nil, err
		}
	}
	return amount0, amount1, nil
}

func (h *VaultHandlers) handleMinted(ctx context.Context, uow *entityStore.UnitOfWork, log *storage.TransactionLog) error {
	vault, err := h.loadVault(uow, log)
	if err != nil {
		return err
	}
	params, err := h.ParseEventParams(log)
	if err != nil {
		return err
	}
	receiver, err := params.Address("receiver")
	if err != nil {
		return err
	}
	mintAmount, err := params.Big("mintAmount", "shares")
	if err != nil {
		return err
	}
	amount0In, amount1In, err := underlyingAmounts(vault, params,
		[]string{"amount0In", "amountXIn", "amount"},
		[]string{"amount1In", "amountYIn"},
	)
	if err != nil {
		return err
	}

	if vault.FirstMintAtBlock == 0 {
		vault.FirstMintAtBlock = log.BlockNumber
		uow.Save(vault)
	}

	_, staged, err := eventLog.Append(uow, &entities.Mint{
		EventRecordBase: recordBase(utils.MintBurnId(vault.Id, receiver, log.BlockTimestamp), vault, log),
		Receiver:        receiver,
		MintAmount:      mintAmount,
		Amount0In:       amount0In,
		Amount1In:       amount1In,
	})
	if err != nil {
		return err
	}
	if !staged {
		h.logger.Sugar().Infow("Mint already recorded, skipping cost basis",
			zap.String("vault", vault.Id),
			zap.String("transactionHash", log.TransactionHash),
			zap.Uint64("logIndex", log.LogIndex),
		)
		return nil
	}

	_, err = h.ledger.ApplyMintContribution(uow, vault, receiver, amount0In, amount1In)
	return err
}

func (h *VaultHandlers) handleBurned(ctx context.Context, uow *entityStore.UnitOfWork, log *storage.TransactionLog) error {
	vault, err := h.loadVault(uow, log)
	if err != nil {
		return err
	}
	params, err := h.ParseEventParams(log)
	if err != nil {
		return err
	}
	receiver, err := params.Address("receiver")
	if err != nil {
		return err
	}
	burnAmount, err := params.Big("burnAmount", "shares")
	if err != nil {
		return err
	}
	amount0Out, amount1Out, err := underlyingAmounts(vault, params,
		[]string{"amount0Out", "amountXOut", "amount"},
		[]string{"amount1Out", "amountYOut"},
	)
	if err != nil {
		return err
	}

	_, _, err = eventLog.Append(uow, &entities.Burn{
		EventRecordBase: recordBase(utils.MintBurnId(vault.Id, receiver, log.BlockTimestamp), vault, log),
		Receiver:        receiver,
		BurnAmount:      burnAmount,
		Amount0Out:      amount0Out,
		Amount1Out:      amount1Out,
	})
	return err
}
