package repository

import (
	"time"

	"github.com/theru/fleet-ads/internal/model"
)

type ImpressionEntity struct {
	ID        int64     `db:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	DeviceID  int64     `db:"device_id"  gorm:"column:device_id;not null;index"`
	AdID      int64     `db:"ad_id"      gorm:"column:ad_id;not null;index"`
	PlayedAt  time.Time `db:"played_at"  gorm:"column:played_at;not null;index"`
	Latitude  *float64  `db:"latitude"   gorm:"column:latitude"`
	Longitude *float64  `db:"longitude"  gorm:"column:longitude"`
	CreatedAt time.Time `db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (ImpressionEntity) TableName() string {
	return "impressions"
}

func toImpressionEntity(i *model.Impression) *ImpressionEntity {
	if i == nil {
		return nil
	}
	return &ImpressionEntity{
		ID:        i.ID,
		DeviceID:  i.DeviceID,
		AdID:      i.AdID,
		PlayedAt:  i.PlayedAt,
		Latitude:  i.Latitude,
		Longitude: i.Longitude,
		CreatedAt: i.CreatedAt,
	}
}

func toImpressionModel(e *ImpressionEntity) *model.Impression {
	if e == nil {
		return nil
	}
	return &model.Impression{
		ID:        e.ID,
		DeviceID:  e.DeviceID,
		AdID:      e.AdID,
		PlayedAt:  e.PlayedAt,
		Latitude:  e.Latitude,
		Longitude: e.Longitude,
		CreatedAt: e.CreatedAt,
	}
}

func toImpressionModels(entities []*ImpressionEntity) []*model.Impression {
	if entities == nil {
		return nil
	}
	models := make([]*model.Impression, len(entities))
	for i, e := range entities {
		models[i] = toImpressionModel(e)
	}
	return models
}
