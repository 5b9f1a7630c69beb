package rollups

import (
	"math/big"

	"github.com/range-protocol/vault-sidecar/pkg/entities"
	"github.com/range-protocol/vault-sidecar/pkg/entityStore"
	"github.com/range-protocol/vault-sidecar/pkg/utils"
)

const (
	DayPeriodSeconds  uint64 = 86400
	HourPeriodSeconds uint64 = 3600
)

// BucketIndex returns the index of the fixed period containing timestamp.
func BucketIndex(timestamp uint64, period uint64) uint64 {
	return timestamp / period
}

// AccumulateFees adds fee0/fee1 to the day and hour buckets of the event time.
// Buckets are created on first use and never finalised, so late events for an
// earlier period still land in that period.
func AccumulateFees(uow *entityStore.UnitOfWork, vault string, timestamp uint64, fee0 *big.Int, fee1 *big.Int) (*entities.VaultDayData, *entities.VaultHourData, error) {
	dayIndex := BucketIndex(timestamp, DayPeriodSeconds)
	day, err := entities.LoadVaultDayData(uow, utils.BucketId(vault, dayIndex))
	if err != nil {
		return nil, nil, err
	}
	if day == nil {
		day = &entities.VaultDayData{
			Id:    utils.BucketId(vault, dayIndex),
			Vault: utils.NormalizeAddress(vault),
			Date:  dayIndex * DayPeriodSeconds,
			Fee0:  big.NewInt(0),
			Fee1:  big.NewInt(0),
		}
	}
	day.Fee0.Add(day.Fee0, fee0)
	day.Fee1.Add(day.Fee1, fee1)
	uow.Save(day)

	hourIndex := BucketIndex(timestamp, HourPeriodSeconds)
	hour, err := entities.LoadVaultHourData(uow, utils.BucketId(vault, hourIndex))
	if err != nil {
		return nil, nil, err
	}
	if hour == nil {
		hour = &entities.VaultHourData{
			Id:              utils.BucketId(vault, hourIndex),
			Vault:           utils.NormalizeAddress(vault),
			PeriodStartUnix: hourIndex * HourPeriodSeconds,
			Fee0:            big.NewInt(0),
			Fee1:            big.NewInt(0),
		}
	}
	hour.Fee0.Add(hour.Fee0, fee0)
	hour.Fee1.Add(hour.Fee1, fee1)
	uow.Save(hour)

	return day, hour, nil
}
