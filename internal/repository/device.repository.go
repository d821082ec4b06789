package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/theru/fleet-ads/internal/model"
	"github.com/theru/fleet-ads/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrDeviceNotFound      = errors.New("device not found")
	ErrDuplicateDeviceCode = errors.New("device code already exists")
)

type DeviceRepository struct {
	*pg.DB
}

func NewDeviceRepository(db *pg.DB) *DeviceRepository {
	return &DeviceRepository{
		db,
	}
}

func (r *DeviceRepository) Create(ctx context.Context, d *model.Device) (*model.Device, error) {
	entity := toDeviceEntity(d)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateDeviceCode, d.DeviceCode)
		}
		return nil, err
	}

	return toDeviceModel(entity), nil
}

// isDuplicateKey detects a unique-index violation. device_code carries the
// only unique index on the table, so a duplicate here means a code collision.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}

func (r *DeviceRepository) GetByID(ctx context.Context, id int64) (*model.Device, error) {
	var entity DeviceEntity
	err := r.Read(ctx).WithContext(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}
	return toDeviceModel(&entity), nil
}

func (r *DeviceRepository) GetByCode(ctx context.Context, code string) (*model.Device, error) {
	var entity DeviceEntity
	err := r.Read(ctx).WithContext(ctx).Where("device_code = ?", code).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}
	return toDeviceModel(&entity), nil
}

func (r *DeviceRepository) List(ctx context.Context, f model.DeviceFilter) ([]*model.Device, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&DeviceEntity{})

	if f.City != nil && *f.City != "" {
		q = q.Where("city = ?", *f.City)
	}
	if f.Status != nil && *f.Status != "" {
		q = q.Where("status = ?", string(*f.Status))
	}
	if f.DriverID != nil {
		q = q.Where("driver_id = ?", *f.DriverID)
	}

	// Count before pagination
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at"
	if f.Desc {
		order += " DESC"
	} else {
		order += " ASC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*DeviceEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toDeviceModels(entities), total, nil
}

// Update writes only non-nil fields of the request.
func (r *DeviceRepository) Update(ctx context.Context, id int64, p model.DeviceUpdateRequest) (*model.Device, error) {
	updates := map[string]interface{}{}
	if p.City != nil {
		updates["city"] = *p.City
	}
	if p.ClearDriver {
		updates["driver_id"] = nil
	} else if p.DriverID != nil {
		updates["driver_id"] = *p.DriverID
	}
	if p.VehicleRegNumber != nil {
		updates["vehicle_reg_number"] = *p.VehicleRegNumber
	}

	if len(updates) > 0 {
		result := r.Write(ctx).WithContext(ctx).
			Model(&DeviceEntity{}).
			Where("id = ?", id).
			Updates(updates)
		if result.Error != nil {
			return nil, result.Error
		}
		if result.RowsAffected == 0 {
			return nil, ErrDeviceNotFound
		}
	}

	return r.GetByID(ctx, id)
}

// TouchHeartbeat records a heartbeat on the device row itself: status goes
// online, last_seen moves forward, and the latest telemetry snapshot is kept
// for list views.
func (r *DeviceRepository) TouchHeartbeat(ctx context.Context, id int64, p model.HeartbeatRequest, seenAt time.Time) error {
	updates := map[string]interface{}{
		"status":    string(model.DeviceStatusOnline),
		"last_seen": seenAt,
	}
	if p.BatteryLevel != nil {
		updates["battery_level"] = *p.BatteryLevel
	}
	if p.IsCharging != nil {
		updates["is_charging"] = *p.IsCharging
	}
	if p.Latitude != nil {
		updates["latitude"] = *p.Latitude
	}
	if p.Longitude != nil {
		updates["longitude"] = *p.Longitude
	}

	result := r.Write(ctx).WithContext(ctx).
		Model(&DeviceEntity{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// MarkOffline flips devices that have gone silent. A device with no
// last_seen at all is also swept. Returns the number of rows flipped so the
// caller can report it.
func (r *DeviceRepository) MarkOffline(ctx context.Context, threshold time.Duration, now time.Time) (int64, error) {
	cutoff := now.Add(-threshold)
	result := r.Write(ctx).WithContext(ctx).
		Model(&DeviceEntity{}).
		Where("status = ?", string(model.DeviceStatusOnline)).
		Where("last_seen IS NULL OR last_seen < ?", cutoff).
		Update("status", string(model.DeviceStatusOffline))
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ClearDriverRef detaches all devices from a driver. Devices survive driver
// deletion with driver_id set to NULL.
func (r *DeviceRepository) ClearDriverRef(ctx context.Context, driverID int64) (int64, error) {
	result := r.Write(ctx).WithContext(ctx).
		Model(&DeviceEntity{}).
		Where("driver_id = ?", driverID).
		Update("driver_id", nil)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *DeviceRepository) Delete(ctx context.Context, id int64) error {
	result := r.Write(ctx).WithContext(ctx).
		Where("id = ?", id).
		Delete(&DeviceEntity{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// CountByStatus returns total, online and offline device counts.
func (r *DeviceRepository) CountByStatus(ctx context.Context) (total, online, offline int64, err error) {
	db := r.Read(ctx).WithContext(ctx).Model(&DeviceEntity{})
	if err = db.Count(&total).Error; err != nil {
		return 0, 0, 0, err
	}
	err = r.Read(ctx).WithContext(ctx).Model(&DeviceEntity{}).
		Where("status = ?", string(model.DeviceStatusOnline)).
		Count(&online).Error
	if err != nil {
		return 0, 0, 0, err
	}
	offline = total - online
	return total, online, offline, nil
}
