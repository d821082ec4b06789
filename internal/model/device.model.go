package model

import "time"

// DeviceStatus is the connectivity state derived from the last heartbeat.
type DeviceStatus string

const (
	DeviceStatusOnline  DeviceStatus = "online"
	DeviceStatusOffline DeviceStatus = "offline"
)

// DefaultOfflineThreshold is how long a device may stay silent before the
// sweep marks it offline.
const DefaultOfflineThreshold = 10 * time.Minute

// DefaultPollingInterval is handed to tablets at registration time.
const DefaultPollingInterval = 300 * time.Second

type Device struct {
	ID               int64        `json:"id"                 gorm:"primaryKey;autoIncrement;column:id"`
	DeviceCode       string       `json:"device_code"        gorm:"column:device_code;not null;uniqueIndex"`
	SecretKey        string       `json:"-"                  gorm:"column:secret_key;not null"`
	Model            string       `json:"model"              gorm:"column:model"`
	OSVersion        string       `json:"os_version"         gorm:"column:os_version"`
	SerialNumber     string       `json:"serial_number"      gorm:"column:serial_number"`
	VehicleRegNumber string       `json:"vehicle_reg_number" gorm:"column:vehicle_reg_number"`
	City             string       `json:"city"               gorm:"column:city;index"`
	DriverID         *int64       `json:"driver_id"          gorm:"column:driver_id;index"`
	Status           DeviceStatus `json:"status"             gorm:"column:status;not null;default:offline"`
	BatteryLevel     *int         `json:"battery_level"      gorm:"column:battery_level"`
	IsCharging       *bool        `json:"is_charging"        gorm:"column:is_charging"`
	Latitude         *float64     `json:"latitude"           gorm:"column:latitude"`
	Longitude        *float64     `json:"longitude"          gorm:"column:longitude"`
	LastSeen         *time.Time   `json:"last_seen"          gorm:"column:last_seen"`
	CreatedAt        time.Time    `json:"created_at"         gorm:"column:created_at;autoCreateTime"`
}

func (Device) TableName() string { return "devices" }

// Online reports whether a device with the given last_seen would be
// classified online at time now. A device that never reported is offline.
func Online(lastSeen *time.Time, now time.Time, threshold time.Duration) bool {
	if lastSeen == nil {
		return false
	}
	return now.Sub(*lastSeen) <= threshold
}

// DeviceRegisterRequest is the input a tablet sends on first boot.
type DeviceRegisterRequest struct {
	Model            string
	OSVersion        string
	SerialNumber     string
	VehicleRegNumber string
	City             string
}

func (p DeviceRegisterRequest) Validate() error {
	if p.Model == "" {
		return invalid("model is required")
	}
	if p.SerialNumber == "" {
		return invalid("serial_number is required")
	}
	return nil
}

// DeviceUpdateRequest carries a partial update; nil fields are untouched.
type DeviceUpdateRequest struct {
	City             *string
	DriverID         *int64
	ClearDriver      bool
	VehicleRegNumber *string
}

// DeviceFilter controls List queries.
type DeviceFilter struct {
	City     *string
	Status   *DeviceStatus
	DriverID *int64
	Limit    int
	Offset   int
	Desc     bool
}

// HeartbeatRequest is the periodic telemetry payload from a tablet.
type HeartbeatRequest struct {
	BatteryLevel  *int
	IsCharging    *bool
	Latitude      *float64
	Longitude     *float64
	StorageFreeMB *int
	NetworkType   string
}

// HeartbeatAck is returned to the device after a heartbeat.
type HeartbeatAck struct {
	ServerTime      time.Time `json:"server_time"`
	PollingInterval int       `json:"polling_interval"`
	Refresh         bool      `json:"refresh"`
}
