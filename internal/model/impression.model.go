package model

import "time"

// Impression is one playback of an ad on one device. Append-only.
type Impression struct {
	ID        int64     `json:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	DeviceID  int64     `json:"device_id"  gorm:"column:device_id;not null;index"`
	AdID      int64     `json:"ad_id"      gorm:"column:ad_id;not null;index"`
	PlayedAt  time.Time `json:"played_at"  gorm:"column:played_at;not null"`
	Latitude  *float64  `json:"latitude"   gorm:"column:latitude"`
	Longitude *float64  `json:"longitude"  gorm:"column:longitude"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

type ImpressionCreateRequest struct {
	DeviceID  int64
	AdID      int64
	PlayedAt  time.Time
	Latitude  *float64
	Longitude *float64
}

func (p ImpressionCreateRequest) Validate() error {
	if p.DeviceID == 0 {
		return invalid("device_id is required")
	}
	if p.AdID == 0 {
		return invalid("ad_id is required")
	}
	return nil
}

type ImpressionFilter struct {
	DeviceID   *int64
	AdID       *int64
	CampaignID *int64
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
	Desc       bool
}
