package repository

import (
	"time"

	"github.com/theru/fleet-ads/internal/model"
)

type HeartbeatEntity struct {
	ID            int64     `db:"id"              gorm:"primaryKey;autoIncrement;column:id"`
	DeviceID      int64     `db:"device_id"       gorm:"column:device_id;not null;index"`
	BatteryLevel  *int      `db:"battery_level"   gorm:"column:battery_level"`
	IsCharging    *bool     `db:"is_charging"     gorm:"column:is_charging"`
	StorageFreeMB *int      `db:"storage_free_mb" gorm:"column:storage_free_mb"`
	Latitude      *float64  `db:"latitude"        gorm:"column:latitude"`
	Longitude     *float64  `db:"longitude"       gorm:"column:longitude"`
	NetworkType   string    `db:"network_type"    gorm:"column:network_type"`
	CreatedAt     time.Time `db:"created_at"      gorm:"column:created_at;autoCreateTime"`
}

func (HeartbeatEntity) TableName() string {
	return "heartbeats"
}

func toHeartbeatEntity(h *model.Heartbeat) *HeartbeatEntity {
	if h == nil {
		return nil
	}
	return &HeartbeatEntity{
		ID:            h.ID,
		DeviceID:      h.DeviceID,
		BatteryLevel:  h.BatteryLevel,
		IsCharging:    h.IsCharging,
		StorageFreeMB: h.StorageFreeMB,
		Latitude:      h.Latitude,
		Longitude:     h.Longitude,
		NetworkType:   h.NetworkType,
		CreatedAt:     h.CreatedAt,
	}
}

func toHeartbeatModel(e *HeartbeatEntity) *model.Heartbeat {
	if e == nil {
		return nil
	}
	return &model.Heartbeat{
		ID:            e.ID,
		DeviceID:      e.DeviceID,
		BatteryLevel:  e.BatteryLevel,
		IsCharging:    e.IsCharging,
		StorageFreeMB: e.StorageFreeMB,
		Latitude:      e.Latitude,
		Longitude:     e.Longitude,
		NetworkType:   e.NetworkType,
		CreatedAt:     e.CreatedAt,
	}
}

func toHeartbeatModels(entities []*HeartbeatEntity) []*model.Heartbeat {
	if entities == nil {
		return nil
	}
	models := make([]*model.Heartbeat, len(entities))
	for i, e := range entities {
		models[i] = toHeartbeatModel(e)
	}
	return models
}
