package repository

import (
	"time"

	"github.com/theru/fleet-ads/internal/model"
)

type DriverEntity struct {
	ID            int64     `db:"id"             gorm:"primaryKey;autoIncrement;column:id"`
	Name          string    `db:"name"           gorm:"column:name;not null"`
	Phone         string    `db:"phone"          gorm:"column:phone;not null"`
	Email         string    `db:"email"          gorm:"column:email"`
	LicenseNumber string    `db:"license_number" gorm:"column:license_number"`
	City          string    `db:"city"           gorm:"column:city"`
	Status        string    `db:"status"         gorm:"column:status;not null;default:active"`
	CreatedAt     time.Time `db:"created_at"     gorm:"column:created_at;autoCreateTime"`
}

func (DriverEntity) TableName() string {
	return "drivers"
}

func toDriverEntity(d *model.Driver) *DriverEntity {
	if d == nil {
		return nil
	}
	return &DriverEntity{
		ID:            d.ID,
		Name:          d.Name,
		Phone:         d.Phone,
		Email:         d.Email,
		LicenseNumber: d.LicenseNumber,
		City:          d.City,
		Status:        string(d.Status),
		CreatedAt:     d.CreatedAt,
	}
}

func toDriverModel(e *DriverEntity) *model.Driver {
	if e == nil {
		return nil
	}
	return &model.Driver{
		ID:            e.ID,
		Name:          e.Name,
		Phone:         e.Phone,
		Email:         e.Email,
		LicenseNumber: e.LicenseNumber,
		City:          e.City,
		Status:        model.DriverStatus(e.Status),
		CreatedAt:     e.CreatedAt,
	}
}

func toDriverModels(entities []*DriverEntity) []*model.Driver {
	if entities == nil {
		return nil
	}
	models := make([]*model.Driver, len(entities))
	for i, e := range entities {
		models[i] = toDriverModel(e)
	}
	return models
}
