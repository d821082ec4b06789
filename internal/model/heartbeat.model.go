package model

import "time"

// Heartbeat is the persisted telemetry trail of a device. Rows are written
// by the sweeper from the heartbeat stream, never in the request path.
type Heartbeat struct {
	ID            int64     `json:"id"              gorm:"primaryKey;autoIncrement;column:id"`
	DeviceID      int64     `json:"device_id"       gorm:"column:device_id;not null;index"`
	BatteryLevel  *int      `json:"battery_level"   gorm:"column:battery_level"`
	IsCharging    *bool     `json:"is_charging"     gorm:"column:is_charging"`
	StorageFreeMB *int      `json:"storage_free_mb" gorm:"column:storage_free_mb"`
	Latitude      *float64  `json:"latitude"        gorm:"column:latitude"`
	Longitude     *float64  `json:"longitude"       gorm:"column:longitude"`
	NetworkType   string    `json:"network_type"    gorm:"column:network_type"`
	CreatedAt     time.Time `json:"created_at"      gorm:"column:created_at;autoCreateTime"`
}

// HeartbeatEvent is the queue payload published per heartbeat.
type HeartbeatEvent struct {
	DeviceID      int64     `json:"device_id"`
	DeviceCode    string    `json:"device_code"`
	BatteryLevel  *int      `json:"battery_level"`
	IsCharging    *bool     `json:"is_charging"`
	StorageFreeMB *int      `json:"storage_free_mb"`
	Latitude      *float64  `json:"latitude"`
	Longitude     *float64  `json:"longitude"`
	NetworkType   string    `json:"network_type"`
	ReceivedAt    time.Time `json:"received_at"`
}
