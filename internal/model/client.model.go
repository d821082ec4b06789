package model

import "time"

type ClientStatus string

const (
	ClientStatusActive   ClientStatus = "active"
	ClientStatusInactive ClientStatus = "inactive"
)

// Client is an advertiser whose campaigns run on the fleet.
type Client struct {
	ID            int64        `json:"id"             gorm:"primaryKey;autoIncrement;column:id"`
	Name          string       `json:"name"           gorm:"column:name;not null"`
	ContactPerson string       `json:"contact_person" gorm:"column:contact_person"`
	Email         string       `json:"email"          gorm:"column:email"`
	Phone         string       `json:"phone"          gorm:"column:phone"`
	Status        ClientStatus `json:"status"         gorm:"column:status;not null;default:active"`
	CreatedAt     time.Time    `json:"created_at"     gorm:"column:created_at;autoCreateTime"`
}

func (Client) TableName() string { return "clients" }

type ClientCreateRequest struct {
	Name          string
	ContactPerson string
	Email         string
	Phone         string
}

func (p ClientCreateRequest) Validate() error {
	if p.Name == "" {
		return invalid("name is required")
	}
	return nil
}

type ClientUpdateRequest struct {
	Name          *string
	ContactPerson *string
	Email         *string
	Phone         *string
	Status        *ClientStatus
}

type ClientFilter struct {
	Status *ClientStatus
	Limit  int
	Offset int
	Desc   bool
}
