package model

import "time"

// Overview is the dashboard headline block.
type Overview struct {
	TotalDevices     int64 `json:"total_devices"`
	OnlineDevices    int64 `json:"online_devices"`
	OfflineDevices   int64 `json:"offline_devices"`
	TotalCampaigns   int64 `json:"total_campaigns"`
	ActiveCampaigns  int64 `json:"active_campaigns"`
	TotalImpressions int64 `json:"total_impressions"`
	TodayImpressions int64 `json:"today_impressions"`
}

// CampaignAnalytics is the per-campaign impression and revenue summary.
type CampaignAnalytics struct {
	CampaignID       int64      `json:"campaign_id"`
	TotalImpressions int64      `json:"total_impressions"`
	UniqueDevices    int64      `json:"unique_devices"`
	RevenueCents     int64      `json:"revenue_cents"`
	Revenue          string     `json:"revenue"`
	From             *time.Time `json:"from,omitempty"`
	To               *time.Time `json:"to,omitempty"`
}

// ClientAnalytics sums a client's campaigns.
type ClientAnalytics struct {
	ClientID         int64               `json:"client_id"`
	TotalImpressions int64               `json:"total_impressions"`
	RevenueCents     int64               `json:"revenue_cents"`
	Revenue          string              `json:"revenue"`
	Campaigns        []CampaignAnalytics `json:"campaigns"`
}
