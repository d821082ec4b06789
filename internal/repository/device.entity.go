package repository

import (
	"time"

	"github.com/theru/fleet-ads/internal/model"
)

type DeviceEntity struct {
	ID               int64      `db:"id"                 gorm:"primaryKey;autoIncrement;column:id"`
	DeviceCode       string     `db:"device_code"        gorm:"column:device_code;not null;uniqueIndex"`
	SecretKey        string     `db:"secret_key"         gorm:"column:secret_key;not null"`
	Model            string     `db:"model"              gorm:"column:model"`
	OSVersion        string     `db:"os_version"         gorm:"column:os_version"`
	SerialNumber     string     `db:"serial_number"      gorm:"column:serial_number"`
	VehicleRegNumber string     `db:"vehicle_reg_number" gorm:"column:vehicle_reg_number"`
	City             string     `db:"city"               gorm:"column:city;index"`
	DriverID         *int64     `db:"driver_id"          gorm:"column:driver_id;index"`
	Status           string     `db:"status"             gorm:"column:status;not null;default:offline;index"`
	BatteryLevel     *int       `db:"battery_level"      gorm:"column:battery_level"`
	IsCharging       *bool      `db:"is_charging"        gorm:"column:is_charging"`
	Latitude         *float64   `db:"latitude"           gorm:"column:latitude"`
	Longitude        *float64   `db:"longitude"          gorm:"column:longitude"`
	LastSeen         *time.Time `db:"last_seen"          gorm:"column:last_seen"`
	CreatedAt        time.Time  `db:"created_at"         gorm:"column:created_at;autoCreateTime"`
}

func (DeviceEntity) TableName() string {
	return "devices"
}

func toDeviceEntity(d *model.Device) *DeviceEntity {
	if d == nil {
		return nil
	}
	return &DeviceEntity{
		ID:               d.ID,
		DeviceCode:       d.DeviceCode,
		SecretKey:        d.SecretKey,
		Model:            d.Model,
		OSVersion:        d.OSVersion,
		SerialNumber:     d.SerialNumber,
		VehicleRegNumber: d.VehicleRegNumber,
		City:             d.City,
		DriverID:         d.DriverID,
		Status:           string(d.Status),
		BatteryLevel:     d.BatteryLevel,
		IsCharging:       d.IsCharging,
		Latitude:         d.Latitude,
		Longitude:        d.Longitude,
		LastSeen:         d.LastSeen,
		CreatedAt:        d.CreatedAt,
	}
}

func toDeviceModel(e *DeviceEntity) *model.Device {
	if e == nil {
		return nil
	}
	return &model.Device{
		ID:               e.ID,
		DeviceCode:       e.DeviceCode,
		SecretKey:        e.SecretKey,
		Model:            e.Model,
		OSVersion:        e.OSVersion,
		SerialNumber:     e.SerialNumber,
		VehicleRegNumber: e.VehicleRegNumber,
		City:             e.City,
		DriverID:         e.DriverID,
		Status:           model.DeviceStatus(e.Status),
		BatteryLevel:     e.BatteryLevel,
		IsCharging:       e.IsCharging,
		Latitude:         e.Latitude,
		Longitude:        e.Longitude,
		LastSeen:         e.LastSeen,
		CreatedAt:        e.CreatedAt,
	}
}

func toDeviceModels(entities []*DeviceEntity) []*model.Device {
	if entities == nil {
		return nil
	}
	models := make([]*model.Device, len(entities))
	for i, e := range entities {
		models[i] = toDeviceModel(e)
	}
	return models
}
