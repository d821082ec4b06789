package model

import (
	"errors"
	"fmt"
	"time"
)

// CampaignStatus is the lifecycle state of a campaign. Campaigns are created
// SCHEDULED and only move between states through explicit transitions.
type CampaignStatus string

const (
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusCancelled CampaignStatus = "cancelled"
)

var ErrInvalidTransition = errors.New("invalid campaign status transition")

type Campaign struct {
	ID           int64          `json:"id"            gorm:"primaryKey;autoIncrement;column:id"`
	ClientID     int64          `json:"client_id"     gorm:"column:client_id;not null;index"`
	Name         string         `json:"name"          gorm:"column:name;not null"`
	Description  string         `json:"description"   gorm:"column:description"`
	StartDate    time.Time      `json:"start_date"    gorm:"column:start_date;not null"`
	EndDate      time.Time      `json:"end_date"      gorm:"column:end_date;not null"`
	TargetCities []string       `json:"target_cities" gorm:"-"`
	Status       CampaignStatus `json:"status"        gorm:"column:status;not null;default:scheduled"`
	CreatedAt    time.Time      `json:"created_at"    gorm:"column:created_at;autoCreateTime"`
}

func (Campaign) TableName() string { return "campaigns" }

// CanTransition reports whether moving from -> to is a legal lifecycle step.
// Pausing a campaign that is not running is rejected, not ignored.
func CanTransition(from, to CampaignStatus) bool {
	switch to {
	case CampaignStatusActive:
		return from == CampaignStatusScheduled || from == CampaignStatusPaused
	case CampaignStatusPaused:
		return from == CampaignStatusActive
	case CampaignStatusCompleted:
		return from == CampaignStatusActive || from == CampaignStatusPaused
	case CampaignStatusCancelled:
		return from != CampaignStatusCompleted && from != CampaignStatusCancelled
	}
	return false
}

// Transition validates and returns the new status.
func (c *Campaign) Transition(to CampaignStatus) error {
	if !CanTransition(c.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, to)
	}
	c.Status = to
	return nil
}

// DateActive reports whether now falls inside the campaign's date window.
// The window is inclusive on both ends, day-granular scheduling comes from
// the operator side.
func (c *Campaign) DateActive(now time.Time) bool {
	return !now.Before(c.StartDate) && !now.After(c.EndDate)
}

// TargetsCity reports whether the campaign should play in the given city.
// An empty target list means the whole fleet.
func (c *Campaign) TargetsCity(city string) bool {
	if len(c.TargetCities) == 0 {
		return true
	}
	for _, tc := range c.TargetCities {
		if tc == city {
			return true
		}
	}
	return false
}

type CampaignCreateRequest struct {
	ClientID     int64
	Name         string
	Description  string
	StartDate    time.Time
	EndDate      time.Time
	TargetCities []string
}

func (p CampaignCreateRequest) Validate() error {
	if p.ClientID == 0 {
		return invalid("client_id is required")
	}
	if p.Name == "" {
		return invalid("name is required")
	}
	if p.StartDate.IsZero() || p.EndDate.IsZero() {
		return invalid("start_date and end_date are required")
	}
	if p.EndDate.Before(p.StartDate) {
		return invalid("end_date must not be before start_date")
	}
	return nil
}

type CampaignUpdateRequest struct {
	Name         *string
	Description  *string
	StartDate    *time.Time
	EndDate      *time.Time
	TargetCities *[]string
}

type CampaignFilter struct {
	ClientID *int64
	Statuses []CampaignStatus
	Limit    int
	Offset   int
	Desc     bool
}
