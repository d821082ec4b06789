package repository

import (
	"time"

	"github.com/theru/fleet-ads/internal/model"
)

type AdEntity struct {
	ID              int64     `db:"id"               gorm:"primaryKey;autoIncrement;column:id"`
	CampaignID      int64     `db:"campaign_id"      gorm:"column:campaign_id;not null;index"`
	FileName        string    `db:"file_name"        gorm:"column:file_name;not null"`
	FileURL         string    `db:"file_url"         gorm:"column:file_url;not null"`
	DurationSeconds int       `db:"duration_seconds" gorm:"column:duration_seconds;not null"`
	// No gorm default here: a default would make Create drop an explicit
	// false and store the ad as active.
	IsActive  bool      `db:"is_active"  gorm:"column:is_active;not null"`
	CreatedAt time.Time `db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (AdEntity) TableName() string {
	return "ads"
}

func toAdEntity(a *model.Ad) *AdEntity {
	if a == nil {
		return nil
	}
	return &AdEntity{
		ID:              a.ID,
		CampaignID:      a.CampaignID,
		FileName:        a.FileName,
		FileURL:         a.FileURL,
		DurationSeconds: a.DurationSeconds,
		IsActive:        a.IsActive,
		CreatedAt:       a.CreatedAt,
	}
}

func toAdModel(e *AdEntity) *model.Ad {
	if e == nil {
		return nil
	}
	return &model.Ad{
		ID:              e.ID,
		CampaignID:      e.CampaignID,
		FileName:        e.FileName,
		FileURL:         e.FileURL,
		DurationSeconds: e.DurationSeconds,
		IsActive:        e.IsActive,
		CreatedAt:       e.CreatedAt,
	}
}

func toAdModels(entities []*AdEntity) []*model.Ad {
	if entities == nil {
		return nil
	}
	models := make([]*model.Ad, len(entities))
	for i, e := range entities {
		models[i] = toAdModel(e)
	}
	return models
}
