package fixtures

import (
	"time"

	"github.com/theru/fleet-ads/internal/model"
)

var (
	TestClient1 = model.Client{
		ID:            1,
		Name:          "Acme Beverages",
		ContactPerson: "Sara Ahmadi",
		Email:         "ads@acme.example.com",
		Status:        model.ClientStatusActive,
	}

	TestClient2 = model.Client{
		ID:     2,
		Name:   "Metro Telecom",
		Email:  "marketing@metro.example.com",
		Status: model.ClientStatusActive,
	}

	TestClientInactive = model.Client{
		ID:     3,
		Name:   "Dormant Retail",
		Status: model.ClientStatusInactive,
	}
)

func NewTestDevice(city string) *model.Device {
	return &model.Device{
		DeviceCode:   "DEV-FIXTURE",
		SecretKey:    "fixture-secret",
		Model:        "Galaxy Tab A8",
		OSVersion:    "Android 13",
		SerialNumber: "SN-FIXTURE",
		City:         city,
		Status:       model.DeviceStatusOffline,
		CreatedAt:    time.Now(),
	}
}

func NewTestDeviceRegisterRequest(serial, city string) model.DeviceRegisterRequest {
	return model.DeviceRegisterRequest{
		Model:            "Galaxy Tab A8",
		OSVersion:        "Android 13",
		SerialNumber:     serial,
		VehicleRegNumber: "22-B-123",
		City:             city,
	}
}

func NewTestHeartbeatRequest(battery int) model.HeartbeatRequest {
	charging := false
	lat, lng := 35.6892, 51.389
	storage := 2048
	return model.HeartbeatRequest{
		BatteryLevel:  &battery,
		IsCharging:    &charging,
		Latitude:      &lat,
		Longitude:     &lng,
		StorageFreeMB: &storage,
		NetworkType:   "4g",
	}
}

func NewTestCampaignCreateRequest(clientID int64, cities ...string) model.CampaignCreateRequest {
	now := time.Now().UTC().Truncate(time.Hour)
	return model.CampaignCreateRequest{
		ClientID:     clientID,
		Name:         "Summer push",
		Description:  "Fixture campaign",
		StartDate:    now.Add(-24 * time.Hour),
		EndDate:      now.Add(7 * 24 * time.Hour),
		TargetCities: cities,
	}
}

func NewTestAdCreateRequest(campaignID int64) model.AdCreateRequest {
	return model.AdCreateRequest{
		CampaignID:      campaignID,
		FileName:        "spot.mp4",
		ContentType:     "video/mp4",
		Size:            4 << 20,
		DurationSeconds: 15,
	}
}

func NewTestImpressionCreateRequest(deviceID, adID int64, playedAt time.Time) model.ImpressionCreateRequest {
	lat, lng := 35.7, 51.4
	return model.ImpressionCreateRequest{
		DeviceID:  deviceID,
		AdID:      adID,
		PlayedAt:  playedAt,
		Latitude:  &lat,
		Longitude: &lng,
	}
}

var (
	FleetCities = []string{
		"Tehran",
		"Isfahan",
		"Shiraz",
		"Tabriz",
		"Mashhad",
	}

	NetworkTypes = []string{
		"wifi",
		"4g",
		"5g",
	}
)

func ImpressionFilterByDevice(deviceID int64) model.ImpressionFilter {
	return model.ImpressionFilter{
		DeviceID: &deviceID,
		Limit:    50,
		Offset:   0,
		Desc:     false,
	}
}

func ImpressionFilterByCampaign(campaignID int64) model.ImpressionFilter {
	return model.ImpressionFilter{
		CampaignID: &campaignID,
		Limit:      50,
		Offset:     0,
		Desc:       false,
	}
}

func ImpressionFilterByTimeRange(from, to time.Time) model.ImpressionFilter {
	return model.ImpressionFilter{
		From:   &from,
		To:     &to,
		Limit:  50,
		Offset: 0,
		Desc:   false,
	}
}

func DeviceFilterByCity(city string) model.DeviceFilter {
	return model.DeviceFilter{
		City:   &city,
		Limit:  50,
		Offset: 0,
		Desc:   false,
	}
}

func CampaignFilterByClient(clientID int64) model.CampaignFilter {
	return model.CampaignFilter{
		ClientID: &clientID,
		Limit:    50,
		Offset:   0,
		Desc:     false,
	}
}
