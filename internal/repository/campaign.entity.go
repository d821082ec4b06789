package repository

import (
	"time"

	"github.com/lib/pq"
	"github.com/theru/fleet-ads/internal/model"
)

type CampaignEntity struct {
	ID           int64          `db:"id"            gorm:"primaryKey;autoIncrement;column:id"`
	ClientID     int64          `db:"client_id"     gorm:"column:client_id;not null;index"`
	Name         string         `db:"name"          gorm:"column:name;not null"`
	Description  string         `db:"description"   gorm:"column:description"`
	StartDate    time.Time      `db:"start_date"    gorm:"column:start_date;not null"`
	EndDate      time.Time      `db:"end_date"      gorm:"column:end_date;not null"`
	TargetCities pq.StringArray `db:"target_cities" gorm:"column:target_cities;type:text[]"`
	Status       string         `db:"status"        gorm:"column:status;not null;default:scheduled;index"`
	CreatedAt    time.Time      `db:"created_at"    gorm:"column:created_at;autoCreateTime"`
	Ads          []*AdEntity    `gorm:"foreignKey:CampaignID"`
}

func (CampaignEntity) TableName() string {
	return "campaigns"
}

func toCampaignEntity(c *model.Campaign) *CampaignEntity {
	if c == nil {
		return nil
	}
	return &CampaignEntity{
		ID:           c.ID,
		ClientID:     c.ClientID,
		Name:         c.Name,
		Description:  c.Description,
		StartDate:    c.StartDate,
		EndDate:      c.EndDate,
		TargetCities: pq.StringArray(c.TargetCities),
		Status:       string(c.Status),
		CreatedAt:    c.CreatedAt,
	}
}

func toCampaignModel(e *CampaignEntity) *model.Campaign {
	if e == nil {
		return nil
	}
	return &model.Campaign{
		ID:           e.ID,
		ClientID:     e.ClientID,
		Name:         e.Name,
		Description:  e.Description,
		StartDate:    e.StartDate,
		EndDate:      e.EndDate,
		TargetCities: []string(e.TargetCities),
		Status:       model.CampaignStatus(e.Status),
		CreatedAt:    e.CreatedAt,
	}
}

func toCampaignModels(entities []*CampaignEntity) []*model.Campaign {
	if entities == nil {
		return nil
	}
	models := make([]*model.Campaign, len(entities))
	for i, e := range entities {
		models[i] = toCampaignModel(e)
	}
	return models
}
