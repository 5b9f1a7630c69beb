package stateManager

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/range-protocol/vault-sidecar/internal/config"
	"github.com/range-protocol/vault-sidecar/internal/metrics"
	"github.com/range-protocol/vault-sidecar/internal/metrics/metricsTypes"
	"github.com/range-protocol/vault-sidecar/pkg/entities"
	"github.com/range-protocol/vault-sidecar/pkg/entityStore"
	"github.com/range-protocol/vault-sidecar/pkg/eventBus/eventBusTypes"
	"github.com/range-protocol/vault-sidecar/pkg/monitoring"
	"github.com/range-protocol/vault-sidecar/pkg/storage"
	"github.com/range-protocol/vault-sidecar/pkg/utils"
	"github.com/range-protocol/vault-sidecar/pkg/vaultState/base"
	"github.com/range-protocol/vault-sidecar/pkg/vaultState/types"
	"go.uber.org/zap"
)

// pendingStateRoot accumulates the merkle leaves of one vault for the block
// currently being applied.
type pendingStateRoot struct {
	blockNumber uint64
	inputs      []*base.MerkleTreeInput
	slots       map[types.SlotID]int
}

func newPendingStateRoot(blockNumber uint64) *pendingStateRoot {
	return &pendingStateRoot{
		blockNumber: blockNumber,
		inputs:      make([]*base.MerkleTreeInput, 0),
		slots:       make(map[types.SlotID]int),
	}
}

// add appends a leaf; a redelivered log replaces the leaves it wrote before.
func (p *pendingStateRoot) add(input *base.MerkleTreeInput) {
	if i, ok := p.slots[input.SlotID]; ok {
		p.inputs[i] = input
		return
	}
	p.slots[input.SlotID] = len(p.inputs)
	p.inputs = append(p.inputs, input)
}

// VaultStateManager routes decoded logs to their handlers. Logs of one vault are
// applied one at a time in chain order; logs of different vaults may be applied
// concurrently.
type VaultStateManager struct {
	base.BaseVaultState
	handlers        map[string]types.EventHandler
	factoryHandlers map[string]types.EventHandler

	store        entityStore.IEntityStore
	registry     monitoring.IMonitoringRegistry
	eventBus     eventBusTypes.IEventBus
	metricsSink  *metrics.MetricsSink
	logger       *zap.Logger
	globalConfig *config.Config

	vaultLocks *xsync.Map[string, *sync.Mutex]
	stateRoots *xsync.Map[string, *pendingStateRoot]
}

func NewVaultStateManager(
	store entityStore.IEntityStore,
	registry monitoring.IMonitoringRegistry,
	eb eventBusTypes.IEventBus,
	ms *metrics.MetricsSink,
	l *zap.Logger,
	cfg *config.Config,
) *VaultStateManager {
	return &VaultStateManager{
		BaseVaultState: base.BaseVaultState{
			Logger: l,
		},
		handlers:        make(map[string]types.EventHandler),
		factoryHandlers: make(map[string]types.EventHandler),
		store:           store,
		registry:        registry,
		eventBus:        eb,
		metricsSink:     ms,
		logger:          l,
		globalConfig:    cfg,
		vaultLocks:      xsync.NewMap[string, *sync.Mutex](),
		stateRoots:      xsync.NewMap[string, *pendingStateRoot](),
	}
}

// RegisterHandler registers the handler of a vault event. Registering the same
// event twice is a programming error.
func (v *VaultStateManager) RegisterHandler(eventName string, handler types.EventHandler) {
	if _, ok := v.handlers[eventName]; ok {
		v.logger.Sugar().Fatalf("Registering handler for event %s which already has a handler", eventName)
	}
	v.handlers[eventName] = handler
}

// RegisterFactoryHandler registers the handler of an event emitted by a factory.
func (v *VaultStateManager) RegisterFactoryHandler(eventName string, handler types.EventHandler) {
	if _, ok := v.factoryHandlers[eventName]; ok {
		v.logger.Sugar().Fatalf("Registering factory handler for event %s which already has a handler", eventName)
	}
	v.factoryHandlers[eventName] = handler
}

func (v *VaultStateManager) GetRegisteredEvents() []string {
	names := make([]string, 0, len(v.handlers)+len(v.factoryHandlers))
	for name := range v.handlers {
		names = append(names, name)
	}
	for name := range v.factoryHandlers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (v *VaultStateManager) isFactoryLog(log *storage.TransactionLog) bool {
	_, ok := v.globalConfig.GetFactory(log.Address)
	return ok
}

// resolveHandler returns the handler for a log and whether it is a factory event.
func (v *VaultStateManager) resolveHandler(log *storage.TransactionLog) (types.EventHandler, bool) {
	if v.isFactoryLog(log) {
		handler, ok := v.factoryHandlers[log.EventName]
		if !ok {
			return nil, true
		}
		return handler, true
	}
	return v.handlers[log.EventName], false
}

// IsInterestingLog reports whether the log would be applied. Factory events are
// accepted from configured factories; vault events from monitored vaults that pass
// the configured allow/deny lists.
func (v *VaultStateManager) IsInterestingLog(log *storage.TransactionLog) bool {
	handler, isFactory := v.resolveHandler(log)
	if handler == nil {
		return false
	}
	if isFactory {
		return true
	}
	address := utils.NormalizeAddress(log.Address)
	return v.globalConfig.VaultFilter.IsAllowed(address) && v.registry.IsMonitored(address)
}

// PartitionKey returns the vault a log belongs to. For factory events this is the
// created vault, so its creation is ordered with its own events.
func (v *VaultStateManager) PartitionKey(log *storage.TransactionLog) (string, error) {
	if !v.isFactoryLog(log) {
		return utils.NormalizeAddress(log.Address), nil
	}
	params, err := v.ParseEventParams(log)
	if err != nil {
		return "", err
	}
	return params.Address("vault")
}

func (v *VaultStateManager) lockVault(vault string) func() {
	mu, _ := v.vaultLocks.LoadOrStore(vault, &sync.Mutex{})
	mu.Lock()
	return mu.Unlock
}

func eventLabels(log *storage.TransactionLog) []metricsTypes.MetricsLabel {
	return []metricsTypes.MetricsLabel{
		{Name: metricsTypes.Label_EventName, Value: log.EventName},
	}
}

func isAfterCursor(vault *entities.Vault, log *storage.TransactionLog) bool {
	if !vault.HasAppliedEvents {
		return true
	}
	if log.BlockNumber != vault.LastEventBlock {
		return log.BlockNumber > vault.LastEventBlock
	}
	return log.LogIndex > vault.LastEventLogIndex
}

// HandleLogStateChange applies a single log. Every record it changes is written in
// one commit; on error nothing is written. It returns nil data when the log was
// skipped.
func (v *VaultStateManager) HandleLogStateChange(ctx context.Context, log *storage.TransactionLog) (*eventBusTypes.CommittedEventData, error) {
	if !v.IsInterestingLog(log) {
		return nil, nil
	}
	handler, _ := v.resolveHandler(log)

	vaultAddress, err := v.PartitionKey(log)
	if err != nil {
		v.logger.Sugar().Errorw("Failed to resolve vault for log",
			zap.String("transactionHash", log.TransactionHash),
			zap.Uint64("logIndex", log.LogIndex),
			zap.String("eventName", log.EventName),
			zap.Error(err),
		)
		return nil, err
	}

	unlock := v.lockVault(vaultAddress)
	defer unlock()

	start := time.Now()
	uow := entityStore.NewUnitOfWork(v.store, log.BlockNumber)

	processedId := utils.ProcessedEventId(log.TransactionHash, log.LogIndex)
	if v.globalConfig.IndexerConfig.SkipDuplicateEvents {
		processed, err := entities.LoadProcessedEvent(uow, processedId)
		if err != nil {
			return nil, err
		}
		if processed != nil {
			v.logger.Sugar().Debugw("Skipping already processed event",
				zap.String("vault", vaultAddress),
				zap.String("transactionHash", log.TransactionHash),
				zap.Uint64("logIndex", log.LogIndex),
			)
			_ = v.metricsSink.Incr(metricsTypes.Metric_Incr_EventDuplicate, eventLabels(log), 1)
			return nil, nil
		}
	}

	vault, err := entities.LoadVault(uow, vaultAddress)
	if err != nil {
		return nil, err
	}
	if vault != nil && !isAfterCursor(vault, log) {
		_ = v.metricsSink.Incr(metricsTypes.Metric_Incr_EventOutOfOrder, eventLabels(log), 1)
		if v.globalConfig.IndexerConfig.RejectOutOfOrder {
			return nil, fmt.Errorf("%w: %s %d/%d is not after %d/%d", types.ErrOutOfOrderEvent,
				vaultAddress, log.BlockNumber, log.LogIndex, vault.LastEventBlock, vault.LastEventLogIndex)
		}
		v.logger.Sugar().Warnw("Event delivered out of order",
			zap.String("vault", vaultAddress),
			zap.String("eventName", log.EventName),
			zap.Uint64("blockNumber", log.BlockNumber),
			zap.Uint64("logIndex", log.LogIndex),
			zap.Uint64("lastEventBlock", vault.LastEventBlock),
			zap.Uint64("lastEventLogIndex", vault.LastEventLogIndex),
		)
	}

	v.logger.Sugar().Debugw("Handling log state change",
		zap.String("vault", vaultAddress),
		zap.String("eventName", log.EventName),
		zap.String("transactionHash", log.TransactionHash),
		zap.Uint64("logIndex", log.LogIndex),
	)
	if err := handler(ctx, uow, log); err != nil {
		v.logger.Sugar().Errorw("Failed to handle log",
			zap.String("vault", vaultAddress),
			zap.String("eventName", log.EventName),
			zap.String("transactionHash", log.TransactionHash),
			zap.Uint64("logIndex", log.LogIndex),
			zap.Error(err),
		)
		_ = v.metricsSink.Incr(metricsTypes.Metric_Incr_HandlerError, []metricsTypes.MetricsLabel{
			{Name: metricsTypes.Label_EventName, Value: log.EventName},
			{Name: metricsTypes.Label_Reason, Value: errorReason(err)},
		}, 1)
		return nil, err
	}

	// the handler may have created the vault
	vault, err = entities.LoadVault(uow, vaultAddress)
	if err != nil {
		return nil, err
	}
	if vault != nil && isAfterCursor(vault, log) {
		vault.HasAppliedEvents = true
		vault.LastEventBlock = log.BlockNumber
		vault.LastEventLogIndex = log.LogIndex
		uow.Save(vault)
	}
	if v.globalConfig.IndexerConfig.SkipDuplicateEvents {
		uow.Save(&entities.ProcessedEvent{
			Id:              processedId,
			Vault:           vaultAddress,
			EventName:       log.EventName,
			TransactionHash: log.TransactionHash,
			LogIndex:        log.LogIndex,
			BlockNumber:     log.BlockNumber,
		})
	}

	ops, err := uow.Commit()
	if err != nil {
		return nil, err
	}

	if v.globalConfig.IndexerConfig.StateRoots {
		if err := v.accumulateStateRoot(vaultAddress, log, ops); err != nil {
			return nil, err
		}
	}

	committed := &eventBusTypes.CommittedEventData{
		Vault:           vaultAddress,
		EventName:       log.EventName,
		TransactionHash: log.TransactionHash,
		LogIndex:        log.LogIndex,
		BlockNumber:     log.BlockNumber,
		Operations:      ops,
	}
	if v.eventBus != nil {
		v.eventBus.Publish(&eventBusTypes.Event{
			Name: eventBusTypes.Event_EventCommitted,
			Data: committed,
		})
	}

	_ = v.metricsSink.Incr(metricsTypes.Metric_Incr_EventProcessed, eventLabels(log), 1)
	_ = v.metricsSink.Timing(metricsTypes.Metric_Timing_HandlerDuration, time.Since(start), eventLabels(log))
	_ = v.metricsSink.Gauge(metricsTypes.Metric_Gauge_LastProcessedBlock, float64(log.BlockNumber), nil)
	return committed, nil
}

func errorReason(err error) string {
	switch {
	case errors.Is(err, types.ErrMissingRecord):
		return "missingRecord"
	case errors.Is(err, types.ErrZeroBalance):
		return "zeroBalance"
	case errors.Is(err, types.ErrNegativeBalance):
		return "negativeBalance"
	case errors.Is(err, types.ErrNoCurrentPosition):
		return "noCurrentPosition"
	case errors.Is(err, types.ErrVaultAlreadyExists):
		return "vaultAlreadyExists"
	case errors.Is(err, types.ErrInvalidEventParams):
		return "invalidParams"
	default:
		return "other"
	}
}

// accumulateStateRoot adds the committed operations to the vault's pending root.
// Moving to a new block finalises the root of the previous one.
func (v *VaultStateManager) accumulateStateRoot(vault string, log *storage.TransactionLog, ops []*entityStore.Operation) error {
	pending, _ := v.stateRoots.LoadOrStore(vault, newPendingStateRoot(log.BlockNumber))
	if pending.blockNumber != log.BlockNumber {
		if _, err := v.writeStateRoot(vault, pending); err != nil {
			return err
		}
		pending = newPendingStateRoot(log.BlockNumber)
		v.stateRoots.Store(vault, pending)
	}
	for _, op := range ops {
		value := op.Data
		if op.Kind == entityStore.OperationKind_Delete {
			value = []byte(entityStore.OperationKind_Delete)
		}
		pending.add(&base.MerkleTreeInput{
			SlotID: base.NewSlotIDWithSuffix(log.TransactionHash, log.LogIndex, op.Key()),
			Value:  value,
		})
	}
	return nil
}

func (v *VaultStateManager) writeStateRoot(vault string, pending *pendingStateRoot) (*entities.VaultStateRoot, error) {
	tree, err := base.MerkleizeVaultState(pending.blockNumber, pending.inputs)
	if err != nil {
		v.logger.Sugar().Errorw("Failed to create merkle tree",
			zap.String("vault", vault),
			zap.Uint64("blockNumber", pending.blockNumber),
			zap.Error(err),
		)
		return nil, err
	}
	root := &entities.VaultStateRoot{
		Id:          utils.StateRootId(vault, pending.blockNumber),
		Vault:       vault,
		BlockNumber: pending.blockNumber,
		StateRoot:   utils.ConvertBytesToString(tree.Root()),
		Leaves:      len(pending.inputs),
	}
	uow := entityStore.NewUnitOfWork(v.store, pending.blockNumber)
	uow.Save(root)
	if _, err := uow.Commit(); err != nil {
		return nil, err
	}
	if v.eventBus != nil {
		v.eventBus.Publish(&eventBusTypes.Event{
			Name: eventBusTypes.Event_StateRootGenerated,
			Data: &eventBusTypes.StateRootData{StateRoot: root},
		})
	}
	return root, nil
}

// FlushStateRoots writes the root of every vault's current block. The pending
// leaves are kept, so later events of the same block extend the root.
func (v *VaultStateManager) FlushStateRoots() ([]*entities.VaultStateRoot, error) {
	vaults := make([]string, 0)
	v.stateRoots.Range(func(vault string, _ *pendingStateRoot) bool {
		vaults = append(vaults, vault)
		return true
	})
	slices.Sort(vaults)

	roots := make([]*entities.VaultStateRoot, 0, len(vaults))
	for _, vault := range vaults {
		root, err := func() (*entities.VaultStateRoot, error) {
			unlock := v.lockVault(vault)
			defer unlock()
			pending, ok := v.stateRoots.Load(vault)
			if !ok {
				return nil, nil
			}
			return v.writeStateRoot(vault, pending)
		}()
		if err != nil {
			return nil, err
		}
		if root != nil {
			roots = append(roots, root)
		}
	}
	return roots, nil
}
