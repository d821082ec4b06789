package model

import "time"

const (
	// MaxAdFileSize caps an uploaded creative at 100MB.
	MaxAdFileSize = 100 * 1024 * 1024

	MinAdDurationSeconds = 1
	MaxAdDurationSeconds = 300
)

// Ad is one video creative belonging to a campaign. FileURL holds the object
// storage key, never a public URL; devices always get a fresh signed URL.
type Ad struct {
	ID              int64     `json:"id"               gorm:"primaryKey;autoIncrement;column:id"`
	CampaignID      int64     `json:"campaign_id"      gorm:"column:campaign_id;not null;index"`
	FileName        string    `json:"file_name"        gorm:"column:file_name;not null"`
	FileURL         string    `json:"file_url"         gorm:"column:file_url;not null"`
	DurationSeconds int       `json:"duration_seconds" gorm:"column:duration_seconds;not null"`
	IsActive        bool      `json:"is_active"        gorm:"column:is_active;not null"`
	CreatedAt       time.Time `json:"created_at"       gorm:"column:created_at;autoCreateTime"`
}

func (Ad) TableName() string { return "ads" }

type AdCreateRequest struct {
	CampaignID      int64
	FileName        string
	ContentType     string
	Size            int64
	DurationSeconds int
}

func (p AdCreateRequest) Validate() error {
	if p.CampaignID == 0 {
		return invalid("campaign_id is required")
	}
	if p.FileName == "" {
		return invalid("file_name is required")
	}
	if len(p.ContentType) < 6 || p.ContentType[:6] != "video/" {
		return invalid("only video files are accepted")
	}
	if p.Size <= 0 || p.Size > MaxAdFileSize {
		return invalid("file size must be between 1 byte and 100MB")
	}
	if p.DurationSeconds < MinAdDurationSeconds || p.DurationSeconds > MaxAdDurationSeconds {
		return invalid("duration must be between 1 and 300 seconds")
	}
	return nil
}

// DeviceAd is the playlist entry handed to a tablet: the ad plus a signed,
// time-limited download URL.
type DeviceAd struct {
	ID              int64  `json:"id"`
	CampaignID      int64  `json:"campaign_id"`
	FileName        string `json:"file_name"`
	URL             string `json:"url"`
	DurationSeconds int    `json:"duration_seconds"`
}
