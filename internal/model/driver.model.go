package model

import "time"

type DriverStatus string

const (
	DriverStatusActive   DriverStatus = "active"
	DriverStatusInactive DriverStatus = "inactive"
)

type Driver struct {
	ID            int64        `json:"id"             gorm:"primaryKey;autoIncrement;column:id"`
	Name          string       `json:"name"           gorm:"column:name;not null"`
	Phone         string       `json:"phone"          gorm:"column:phone;not null"`
	Email         string       `json:"email"          gorm:"column:email"`
	LicenseNumber string       `json:"license_number" gorm:"column:license_number"`
	City          string       `json:"city"           gorm:"column:city"`
	Status        DriverStatus `json:"status"         gorm:"column:status;not null;default:active"`
	CreatedAt     time.Time    `json:"created_at"     gorm:"column:created_at;autoCreateTime"`
}

func (Driver) TableName() string { return "drivers" }

type DriverCreateRequest struct {
	Name          string
	Phone         string
	Email         string
	LicenseNumber string
	City          string
}

func (p DriverCreateRequest) Validate() error {
	if p.Name == "" {
		return invalid("name is required")
	}
	if p.Phone == "" {
		return invalid("phone is required")
	}
	return nil
}

type DriverUpdateRequest struct {
	Name          *string
	Phone         *string
	Email         *string
	LicenseNumber *string
	City          *string
	Status        *DriverStatus
}

type DriverFilter struct {
	City   *string
	Status *DriverStatus
	Limit  int
	Offset int
	Desc   bool
}
