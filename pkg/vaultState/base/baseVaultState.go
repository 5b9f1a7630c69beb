package base

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"strings"

	"github.com/range-protocol/vault-sidecar/pkg/storage"
	"github.com/range-protocol/vault-sidecar/pkg/types/numbers"
	"github.com/range-protocol/vault-sidecar/pkg/utils"
	"github.com/range-protocol/vault-sidecar/pkg/vaultState/types"
	"github.com/wealdtech/go-merkletree/v2"
	"github.com/wealdtech/go-merkletree/v2/keccak256"
	"go.uber.org/zap"
)

type BaseVaultState struct {
	Logger *zap.Logger
}

func (b *BaseVaultState) ParseLogArguments(log *storage.TransactionLog) ([]storage.Argument, error) {
	arguments := make([]storage.Argument, 0)
	if log.Arguments == "" {
		return arguments, nil
	}
	decoder := json.NewDecoder(strings.NewReader(log.Arguments))
	decoder.UseNumber()
	if err := decoder.Decode(&arguments); err != nil {
		b.Logger.Sugar().Errorw("Failed to unmarshal arguments",
			zap.Error(err),
			zap.String("transactionHash", log.TransactionHash),
			zap.Uint64("logIndex", log.LogIndex),
		)
		return nil, err
	}
	return arguments, nil
}

func (b *BaseVaultState) ParseLogOutput(log *storage.TransactionLog) (map[string]interface{}, error) {
	outputData := make(map[string]interface{})
	if log.OutputData == "" {
		return outputData, nil
	}
	decoder := json.NewDecoder(strings.NewReader(log.OutputData))
	decoder.UseNumber()
	if err := decoder.Decode(&outputData); err != nil {
		b.Logger.Sugar().Errorw("Failed to unmarshal outputData",
			zap.Error(err),
			zap.String("transactionHash", log.TransactionHash),
			zap.Uint64("logIndex", log.LogIndex),
		)
		return nil, err
	}
	return outputData, nil
}

// ParseEventParams merges the indexed arguments and the non-indexed output of a log
// into a single parameter set.
func (b *BaseVaultState) ParseEventParams(log *storage.TransactionLog) (EventParams, error) {
	arguments, err := b.ParseLogArguments(log)
	if err != nil {
		return nil, err
	}
	output, err := b.ParseLogOutput(log)
	if err != nil {
		return nil, err
	}
	params := EventParams(output)
	for _, arg := range arguments {
		if arg.Value == nil {
			continue
		}
		params[arg.Name] = arg.Value
	}
	return params, nil
}

// EventParams is a decoded parameter set. Every accessor takes the accepted
// names of a parameter in order of preference, since vault variants name the
// same value differently (amount0In, amountXIn, amount).
type EventParams map[string]interface{}

func (p EventParams) lookup(names ...string) (interface{}, string, error) {
	for _, name := range names {
		if v, ok := p[name]; ok && v != nil {
			return v, name, nil
		}
	}
	return nil, "", fmt.Errorf("%w: none of %s present", types.ErrInvalidEventParams, strings.Join(names, ", "))
}

func (p EventParams) Has(names ...string) bool {
	_, _, err := p.lookup(names...)
	return err == nil
}

func (p EventParams) Address(names ...string) (string, error) {
	v, name, err := p.lookup(names...)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s is a %T, expected an address", types.ErrInvalidEventParams, name, v)
	}
	return utils.NormalizeAddress(s), nil
}

func (p EventParams) Big(names ...string) (*big.Int, error) {
	v, name, err := p.lookup(names...)
	if err != nil {
		return nil, err
	}
	n, err := numbers.ParseBig(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", types.ErrInvalidEventParams, name, err)
	}
	return n, nil
}

func (p EventParams) Int64(names ...string) (int64, error) {
	n, err := p.Big(names...)
	if err != nil {
		return 0, err
	}
	if !n.IsInt64() {
		return 0, fmt.Errorf("%w: %s does not fit in int64", types.ErrInvalidEventParams, n.String())
	}
	return n.Int64(), nil
}

func (p EventParams) Bool(names ...string) (bool, error) {
	v, name, err := p.lookup(names...)
	if err != nil {
		return false, err
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		switch strings.ToLower(b) {
		case "true", "1":
			return true, nil
		case "false", "0":
			return false, nil
		}
	case json.Number:
		switch b.String() {
		case "1":
			return true, nil
		case "0":
			return false, nil
		}
	}
	return false, fmt.Errorf("%w: %s is not a boolean", types.ErrInvalidEventParams, name)
}

type MerkleTreeInput struct {
	SlotID types.SlotID
	Value  []byte
}

// InitializeMerkleTreeBaseStateWithBlock seeds the leaves with the block number so
// every block has a distinct root.
func InitializeMerkleTreeBaseStateWithBlock(blockNumber uint64) [][]byte {
	return [][]byte{
		append(types.MerkleLeafPrefix_VaultBlock, binary.BigEndian.AppendUint64([]byte{}, blockNumber)...),
	}
}

// MerkleizeVaultState builds a keccak256 merkle tree over the records changed in a
// block. Inputs are sorted by slot; duplicate slots are an error.
func MerkleizeVaultState(blockNumber uint64, inputs []*MerkleTreeInput) (*merkletree.MerkleTree, error) {
	sorted := slices.Clone(inputs)
	slices.SortFunc(sorted, func(a, b *MerkleTreeInput) int {
		return strings.Compare(string(a.SlotID), string(b.SlotID))
	})

	leaves := InitializeMerkleTreeBaseStateWithBlock(blockNumber)
	for i, input := range sorted {
		if i > 0 && sorted[i-1].SlotID == input.SlotID {
			return nil, fmt.Errorf("duplicate slotID %s", input.SlotID)
		}
		leaves = append(leaves, encodeMerkleLeaf(input.SlotID, input.Value))
	}
	return merkletree.NewTree(
		merkletree.WithData(leaves),
		merkletree.WithHashType(keccak256.New()),
	)
}

func encodeMerkleLeaf(slotID types.SlotID, value []byte) []byte {
	leaf := make([]byte, 0, len(types.MerkleLeafPrefix_VaultChange)+len(slotID)+len(value))
	leaf = append(leaf, types.MerkleLeafPrefix_VaultChange...)
	leaf = append(leaf, []byte(slotID)...)
	return append(leaf, value...)
}

func NewSlotID(txHash string, logIndex uint64) types.SlotID {
	return NewSlotIDWithSuffix(txHash, logIndex, "")
}

func NewSlotIDWithSuffix(txHash string, logIndex uint64, suffix string) types.SlotID {
	baseSlotId := fmt.Sprintf("%s_%016x", txHash, logIndex)
	if suffix != "" {
		baseSlotId = fmt.Sprintf("%s_%s", baseSlotId, suffix)
	}
	return types.SlotID(baseSlotId)
}

// IsMissingRecord reports whether err was caused by an absent required record.
func IsMissingRecord(err error) bool {
	return errors.Is(err, types.ErrMissingRecord)
}
