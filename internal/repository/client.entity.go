package repository

import (
	"time"

	"github.com/theru/fleet-ads/internal/model"
)

type ClientEntity struct {
	ID            int64     `db:"id"             gorm:"primaryKey;autoIncrement;column:id"`
	Name          string    `db:"name"           gorm:"column:name;not null"`
	ContactPerson string    `db:"contact_person" gorm:"column:contact_person"`
	Email         string    `db:"email"          gorm:"column:email"`
	Phone         string    `db:"phone"          gorm:"column:phone"`
	Status        string    `db:"status"         gorm:"column:status;not null;default:active"`
	CreatedAt     time.Time `db:"created_at"     gorm:"column:created_at;autoCreateTime"`
}

func (ClientEntity) TableName() string {
	return "clients"
}

func toClientEntity(c *model.Client) *ClientEntity {
	if c == nil {
		return nil
	}
	return &ClientEntity{
		ID:            c.ID,
		Name:          c.Name,
		ContactPerson: c.ContactPerson,
		Email:         c.Email,
		Phone:         c.Phone,
		Status:        string(c.Status),
		CreatedAt:     c.CreatedAt,
	}
}

func toClientModel(e *ClientEntity) *model.Client {
	if e == nil {
		return nil
	}
	return &model.Client{
		ID:            e.ID,
		Name:          e.Name,
		ContactPerson: e.ContactPerson,
		Email:         e.Email,
		Phone:         e.Phone,
		Status:        model.ClientStatus(e.Status),
		CreatedAt:     e.CreatedAt,
	}
}

func toClientModels(entities []*ClientEntity) []*model.Client {
	if entities == nil {
		return nil
	}
	models := make([]*model.Client, len(entities))
	for i, e := range entities {
		models[i] = toClientModel(e)
	}
	return models
}
