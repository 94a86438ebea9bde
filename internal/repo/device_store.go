package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/ABTechWorks/TinyLittleHelper/internal/models"
	"github.com/ABTechWorks/TinyLittleHelper/internal/presence"
)

// DeviceStore — gorm-реализация presence.Store.
// Линеаризация мутаций по ключу — транзакцией + уникальным индексом
// (account_id, device_key).
type DeviceStore struct{ db *gorm.DB }

func NewDeviceStore(db *gorm.DB) *DeviceStore { return &DeviceStore{db: db} }

var _ presence.Store = (*DeviceStore)(nil)

func (s *DeviceStore) Upsert(ctx context.Context, accountID uint, key string, f presence.Fields) (*models.Device, error) {
	var out models.Device
	now := time.Now().UTC()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var d models.Device
		err := tx.Where(&models.Device{AccountID: accountID, DeviceKey: key}).First(&d).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			d = models.Device{AccountID: accountID, DeviceKey: key}
			applyFields(&d, f)
			d.LastSeen = now
			d.Status = models.DeviceStatusOnline
			if err := tx.Create(&d).Error; err != nil {
				return err
			}
			out = d
			return nil
		}
		if err != nil {
			return err
		}

		applyFields(&d, f)
		d.LastSeen = now
		d.Status = models.DeviceStatusOnline
		if err := tx.Save(&d).Error; err != nil {
			return err
		}
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *DeviceStore) Rekey(ctx context.Context, accountID uint, oldKey, newKey string) error {
	if oldKey == newKey {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var old models.Device
		err := tx.Where(&models.Device{AccountID: accountID, DeviceKey: oldKey}).First(&old).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return presence.ErrNotFound
		}
		if err != nil {
			return err
		}

		var dst models.Device
		err = tx.Where(&models.Device{AccountID: accountID, DeviceKey: newKey}).First(&dst).Error
		if err == nil {
			// конфликт ключей: MAC-заякоренная запись побеждает, от старой
			// оставляем только более свежий last_seen
			if old.LastSeen.After(dst.LastSeen) {
				dst.LastSeen = old.LastSeen
				dst.Status = models.DeviceStatusOnline
				if err := tx.Save(&dst).Error; err != nil {
					return err
				}
			}
			return tx.Unscoped().Delete(&old).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		old.DeviceKey = newKey
		return tx.Save(&old).Error
	})
}

func (s *DeviceStore) Get(ctx context.Context, accountID uint, key string) (*models.Device, error) {
	var d models.Device
	err := s.db.WithContext(ctx).
		Where(&models.Device{AccountID: accountID, DeviceKey: key}).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, presence.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *DeviceStore) List(ctx context.Context, accountID uint) ([]models.Device, error) {
	var out []models.Device
	err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("device_key asc").
		Find(&out).Error
	return out, err
}

// SweepStale — один UPDATE по протухшим записям; блокировки per-row на стороне БД.
func (s *DeviceStore) SweepStale(ctx context.Context, cutoff time.Time) (int, error) {
	res := s.db.WithContext(ctx).Model(&models.Device{}).
		Where("last_seen < ? AND status <> ?", cutoff, models.DeviceStatusOffline).
		Update("status", models.DeviceStatusOffline)
	return int(res.RowsAffected), res.Error
}

func applyFields(d *models.Device, f presence.Fields) {
	if f.Name != "" {
		d.Name = f.Name
	}
	if f.IP != "" {
		d.IP = f.IP
	}
	if f.MAC != "" {
		d.MAC = f.MAC
	}
	if f.OS != "" {
		d.OS = f.OS
	}
	if f.RecentSites != nil {
		d.RecentSites = models.EncodeSites(f.RecentSites)
	}
}
