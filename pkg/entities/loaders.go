package entities

import (
	"github.com/range-protocol/vault-sidecar/pkg/entityStore"
)

func LoadVault(uow *entityStore.UnitOfWork, id string) (*Vault, error) {
	return entityStore.Load[Vault](uow, EntityType_Vault, id)
}

func LoadPosition(uow *entityStore.UnitOfWork, id string) (*Position, error) {
	return entityStore.Load[Position](uow, EntityType_Position, id)
}

func LoadUser(uow *entityStore.UnitOfWork, id string) (*User, error) {
	return entityStore.Load[User](uow, EntityType_User, id)
}

func LoadUserVaultBalance(uow *entityStore.UnitOfWork, id string) (*UserVaultBalance, error) {
	return entityStore.Load[UserVaultBalance](uow, EntityType_UserVaultBalance, id)
}

func LoadVaultDayData(uow *entityStore.UnitOfWork, id string) (*VaultDayData, error) {
	return entityStore.Load[VaultDayData](uow, EntityType_VaultDayData, id)
}

func LoadVaultHourData(uow *entityStore.UnitOfWork, id string) (*VaultHourData, error) {
	return entityStore.Load[VaultHourData](uow, EntityType_VaultHourData, id)
}

func LoadVaultStateRoot(uow *entityStore.UnitOfWork, id string) (*VaultStateRoot, error) {
	return entityStore.Load[VaultStateRoot](uow, EntityType_VaultStateRoot, id)
}

func LoadProcessedEvent(uow *entityStore.UnitOfWork, id string) (*ProcessedEvent, error) {
	return entityStore.Load[ProcessedEvent](uow, EntityType_ProcessedEvent, id)
}
