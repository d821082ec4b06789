package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theru/fleet-ads/internal/model"
	"github.com/theru/fleet-ads/internal/queue"
	"github.com/theru/fleet-ads/internal/repository"
	"github.com/theru/fleet-ads/internal/services"
	"github.com/theru/fleet-ads/pkg/pg"
	"github.com/theru/fleet-ads/pkg/redis"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testDB = pg.DB

type TestEnvironment struct {
	DB               *pg.DB
	Redis            *miniredis.Miniredis
	RedisAdapter     redis.RedisAdapter
	Queue            *queue.Queue
	DeviceRepo       *repository.DeviceRepository
	CampaignRepo     *repository.CampaignRepository
	ClientRepo       *repository.ClientRepository
	AdRepo           *repository.AdRepository
	ImpressionRepo   *repository.ImpressionRepository
	HeartbeatRepo    *repository.HeartbeatRepository
	DeviceService    *services.DeviceService
	CampaignService  *services.CampaignService
	AnalyticsService *services.AnalyticsService
}

func setupE2EEnvironment(t *testing.T) *TestEnvironment {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&repository.DriverEntity{},
		&repository.ClientEntity{},
		&repository.DeviceEntity{},
		&repository.CampaignEntity{},
		&repository.AdEntity{},
		&repository.ImpressionEntity{},
		&repository.HeartbeatEntity{},
	)
	require.NoError(t, err)

	pgDB := &testDB{}
	pgDBValue := reflect.ValueOf(pgDB).Elem()

	readField := pgDBValue.FieldByName("read")
	writeField := pgDBValue.FieldByName("write")

	readField = reflect.NewAt(readField.Type(), readField.Addr().UnsafePointer()).Elem()
	writeField = reflect.NewAt(writeField.Type(), writeField.Addr().UnsafePointer()).Elem()

	readField.Set(reflect.ValueOf(db))
	writeField.Set(reflect.ValueOf(db))

	mr, err := miniredis.Run()
	require.NoError(t, err)

	// Use unique connection name per test to avoid global adapter caching issues
	connName := fmt.Sprintf("test-%d", time.Now().UnixNano())
	redisAdapter, err := redis.NewRedisAdapter(connName, "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	queueConfig := queue.QueueConfig{
		Name:              "test:heartbeats",
		ConsumerGroup:     "test-group",
		ConsumerName:      "test-consumer",
		MaxRetries:        3,
		VisibilityTimeout: 5 * time.Second,
		PollInterval:      100 * time.Millisecond,
		BatchSize:         10,
		MaxLen:            1000,
		EnableDLQ:         true,
	}

	q, err := queue.NewQueue(redisAdapter, queueConfig)
	require.NoError(t, err)

	deviceRepo := repository.NewDeviceRepository(pgDB)
	campaignRepo := repository.NewCampaignRepository(pgDB)
	clientRepo := repository.NewClientRepository(pgDB)
	adRepo := repository.NewAdRepository(pgDB)
	impressionRepo := repository.NewImpressionRepository(pgDB)
	heartbeatRepo := repository.NewHeartbeatRepository(pgDB)

	deviceService := services.NewDeviceService(deviceRepo, redisAdapter, q, 10*time.Minute)
	campaignService := services.NewCampaignService(campaignRepo, clientRepo)
	analyticsService := services.NewAnalyticsService(impressionRepo, deviceRepo, campaignRepo, clientRepo, adRepo)

	return &TestEnvironment{
		DB:               pgDB,
		Redis:            mr,
		RedisAdapter:     redisAdapter,
		Queue:            q,
		DeviceRepo:       deviceRepo,
		CampaignRepo:     campaignRepo,
		ClientRepo:       clientRepo,
		AdRepo:           adRepo,
		ImpressionRepo:   impressionRepo,
		HeartbeatRepo:    heartbeatRepo,
		DeviceService:    deviceService,
		CampaignService:  campaignService,
		AnalyticsService: analyticsService,
	}
}

func (env *TestEnvironment) Cleanup() {
	// Stop queue first (gracefully drain messages)
	if env.Queue != nil {
		_ = env.Queue.Stop(5 * time.Second)
	}
	// Give time for any in-flight operations to complete
	time.Sleep(100 * time.Millisecond)
	// Then close Redis
	if env.Redis != nil {
		env.Redis.Close()
	}
}

func (env *TestEnvironment) createClient(t *testing.T, name string) *repository.ClientEntity {
	client := &repository.ClientEntity{Name: name, Status: "active"}
	require.NoError(t, env.DB.Write(context.Background()).Create(client).Error)
	return client
}

func (env *TestEnvironment) createCampaign(t *testing.T, clientID int64, status string) *repository.CampaignEntity {
	now := time.Now().UTC()
	campaign := &repository.CampaignEntity{
		ClientID:  clientID,
		Name:      "e2e campaign",
		StartDate: now.Add(-24 * time.Hour),
		EndDate:   now.Add(24 * time.Hour),
		Status:    status,
	}
	require.NoError(t, env.DB.Write(context.Background()).Create(campaign).Error)
	return campaign
}

func (env *TestEnvironment) createAd(t *testing.T, campaignID int64) *repository.AdEntity {
	ad := &repository.AdEntity{
		CampaignID:      campaignID,
		FileName:        "spot.mp4",
		FileURL:         "ads/spot.mp4",
		DurationSeconds: 15,
		IsActive:        true,
	}
	require.NoError(t, env.DB.Write(context.Background()).Create(ad).Error)
	return ad
}

func TestE2E_DeviceRegisterAndHeartbeat(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	device, err := env.DeviceService.Register(ctx, model.DeviceRegisterRequest{
		Model:        "Galaxy Tab A8",
		OSVersion:    "Android 13",
		SerialNumber: "SN-E2E-1",
		City:         "Tehran",
	})
	require.NoError(t, err)
	assert.NotZero(t, device.ID)
	assert.NotEmpty(t, device.DeviceCode)
	assert.NotEmpty(t, device.SecretKey)
	assert.Equal(t, model.DeviceStatusOffline, device.Status)

	battery := 72
	ack, err := env.DeviceService.Heartbeat(ctx, device, model.HeartbeatRequest{
		BatteryLevel: &battery,
		NetworkType:  "4g",
	})
	require.NoError(t, err)
	assert.Equal(t, 300, ack.PollingInterval)
	assert.False(t, ack.Refresh)

	updated, err := env.DeviceRepo.GetByID(ctx, device.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DeviceStatusOnline, updated.Status)
	require.NotNil(t, updated.BatteryLevel)
	assert.Equal(t, 72, *updated.BatteryLevel)
	require.NotNil(t, updated.LastSeen)

	stats, err := env.Queue.GetStats()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.TotalMessages, int64(1))
}

func TestE2E_DeviceAuthentication(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	device, err := env.DeviceService.Register(ctx, model.DeviceRegisterRequest{
		Model:        "Galaxy Tab A8",
		SerialNumber: "SN-E2E-2",
		City:         "Isfahan",
	})
	require.NoError(t, err)

	authed, err := env.DeviceService.Authenticate(ctx, device.DeviceCode, device.SecretKey)
	require.NoError(t, err)
	assert.Equal(t, device.ID, authed.ID)

	_, err = env.DeviceService.Authenticate(ctx, device.DeviceCode, "wrong-secret")
	assert.ErrorIs(t, err, services.ErrDeviceAuthFailed)

	_, err = env.DeviceService.Authenticate(ctx, "THR-UNKNOWN", device.SecretKey)
	assert.ErrorIs(t, err, services.ErrDeviceAuthFailed)
}

func TestE2E_HeartbeatConsumption(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	device, err := env.DeviceService.Register(ctx, model.DeviceRegisterRequest{
		Model:        "Galaxy Tab A8",
		SerialNumber: "SN-E2E-3",
		City:         "Shiraz",
	})
	require.NoError(t, err)

	battery := 55
	_, err = env.DeviceService.Heartbeat(ctx, device, model.HeartbeatRequest{
		BatteryLevel: &battery,
		NetworkType:  "wifi",
	})
	require.NoError(t, err)

	received := make(chan bool, 1)
	handler := func(ctx context.Context, qMsg *queue.Message) error {
		var event model.HeartbeatEvent
		err := json.Unmarshal(qMsg.Data, &event)
		assert.NoError(t, err)
		assert.Equal(t, device.ID, event.DeviceID)
		assert.Equal(t, device.DeviceCode, event.DeviceCode)
		require.NotNil(t, event.BatteryLevel)
		assert.Equal(t, 55, *event.BatteryLevel)
		assert.Equal(t, "wifi", event.NetworkType)
		received <- true
		return nil
	}

	err = env.Queue.Consume(handler)
	require.NoError(t, err)

	select {
	case <-received:
	case <-time.After(3 * time.Second):
		t.Fatal("heartbeat event not consumed within timeout")
	}
}

func TestE2E_ImpressionRecording(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	client := env.createClient(t, "Acme Beverages")
	campaign := env.createCampaign(t, client.ID, "active")
	ad := env.createAd(t, campaign.ID)

	device, err := env.DeviceService.Register(ctx, model.DeviceRegisterRequest{
		Model:        "Galaxy Tab A8",
		SerialNumber: "SN-E2E-4",
		City:         "Tehran",
	})
	require.NoError(t, err)

	playedAt := time.Now().UTC().Add(-time.Minute)
	imp, err := env.AnalyticsService.RecordImpression(ctx, model.ImpressionCreateRequest{
		DeviceID: device.ID,
		AdID:     ad.ID,
		PlayedAt: playedAt,
	})
	require.NoError(t, err)
	assert.NotZero(t, imp.ID)
	assert.Equal(t, device.ID, imp.DeviceID)

	_, err = env.AnalyticsService.RecordImpression(ctx, model.ImpressionCreateRequest{
		DeviceID: device.ID,
		AdID:     99999,
	})
	assert.ErrorIs(t, err, services.ErrNotFound)

	summary, err := env.AnalyticsService.CampaignAnalytics(ctx, campaign.ID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.TotalImpressions)
	assert.Equal(t, int64(1), summary.UniqueDevices)
	assert.Equal(t, int64(10), summary.RevenueCents)
	assert.Equal(t, "0.10", summary.Revenue)
}

func TestE2E_CampaignLifecycle(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	client := env.createClient(t, "Metro Telecom")

	now := time.Now().UTC()
	campaign, err := env.CampaignService.Create(ctx, model.CampaignCreateRequest{
		ClientID:  client.ID,
		Name:      "Lifecycle campaign",
		StartDate: now.Add(-time.Hour),
		EndDate:   now.Add(48 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusScheduled, campaign.Status)

	// Pausing a campaign that never started is an error, not a no-op.
	_, err = env.CampaignService.ChangeStatus(ctx, campaign.ID, model.CampaignStatusPaused)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	campaign, err = env.CampaignService.ChangeStatus(ctx, campaign.ID, model.CampaignStatusActive)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusActive, campaign.Status)

	campaign, err = env.CampaignService.ChangeStatus(ctx, campaign.ID, model.CampaignStatusPaused)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusPaused, campaign.Status)

	campaign, err = env.CampaignService.ChangeStatus(ctx, campaign.ID, model.CampaignStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusCompleted, campaign.Status)

	_, err = env.CampaignService.ChangeStatus(ctx, campaign.ID, model.CampaignStatusActive)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
}

func TestE2E_OfflineSweep(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	stale, err := env.DeviceService.Register(ctx, model.DeviceRegisterRequest{
		Model:        "Galaxy Tab A8",
		SerialNumber: "SN-E2E-5",
		City:         "Tabriz",
	})
	require.NoError(t, err)

	fresh, err := env.DeviceService.Register(ctx, model.DeviceRegisterRequest{
		Model:        "Galaxy Tab A8",
		SerialNumber: "SN-E2E-6",
		City:         "Tabriz",
	})
	require.NoError(t, err)

	longAgo := time.Now().UTC().Add(-time.Hour)
	err = env.DB.Write(ctx).Model(&repository.DeviceEntity{}).
		Where("id = ?", stale.ID).
		Updates(map[string]interface{}{"status": "online", "last_seen": longAgo}).Error
	require.NoError(t, err)

	battery := 90
	_, err = env.DeviceService.Heartbeat(ctx, fresh, model.HeartbeatRequest{BatteryLevel: &battery})
	require.NoError(t, err)

	flipped, err := env.DeviceService.MarkOffline(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), flipped)

	staleAfter, err := env.DeviceRepo.GetByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DeviceStatusOffline, staleAfter.Status)

	freshAfter, err := env.DeviceRepo.GetByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DeviceStatusOnline, freshAfter.Status)
}

func TestE2E_AnalyticsOverview(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	client := env.createClient(t, "Dashboard Client")
	campaign := env.createCampaign(t, client.ID, "active")
	env.createCampaign(t, client.ID, "scheduled")
	ad := env.createAd(t, campaign.ID)

	device, err := env.DeviceService.Register(ctx, model.DeviceRegisterRequest{
		Model:        "Galaxy Tab A8",
		SerialNumber: "SN-E2E-7",
		City:         "Mashhad",
	})
	require.NoError(t, err)

	battery := 40
	_, err = env.DeviceService.Heartbeat(ctx, device, model.HeartbeatRequest{BatteryLevel: &battery})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = env.AnalyticsService.RecordImpression(ctx, model.ImpressionCreateRequest{
			DeviceID: device.ID,
			AdID:     ad.ID,
			PlayedAt: time.Now().UTC(),
		})
		require.NoError(t, err)
	}

	overview, err := env.AnalyticsService.Overview(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), overview.TotalDevices)
	assert.Equal(t, int64(1), overview.OnlineDevices)
	assert.Equal(t, int64(0), overview.OfflineDevices)
	assert.Equal(t, int64(2), overview.TotalCampaigns)
	assert.Equal(t, int64(1), overview.ActiveCampaigns)
	assert.Equal(t, int64(3), overview.TotalImpressions)
	assert.Equal(t, int64(3), overview.TodayImpressions)
}

func TestE2E_RefreshFlag(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	device, err := env.DeviceService.Register(ctx, model.DeviceRegisterRequest{
		Model:        "Galaxy Tab A8",
		SerialNumber: "SN-E2E-8",
		City:         "Tehran",
	})
	require.NoError(t, err)

	err = env.DeviceService.RequestRefresh(ctx, device.ID)
	require.NoError(t, err)

	battery := 65
	ack, err := env.DeviceService.Heartbeat(ctx, device, model.HeartbeatRequest{BatteryLevel: &battery})
	require.NoError(t, err)
	assert.True(t, ack.Refresh)

	// Flag fires once, the next heartbeat is back to normal.
	ack, err = env.DeviceService.Heartbeat(ctx, device, model.HeartbeatRequest{BatteryLevel: &battery})
	require.NoError(t, err)
	assert.False(t, ack.Refresh)
}

func TestE2E_ListImpressions(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	client := env.createClient(t, "List Client")
	campaign := env.createCampaign(t, client.ID, "active")
	ad := env.createAd(t, campaign.ID)

	device, err := env.DeviceService.Register(ctx, model.DeviceRegisterRequest{
		Model:        "Galaxy Tab A8",
		SerialNumber: "SN-E2E-9",
		City:         "Tehran",
	})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := env.AnalyticsService.RecordImpression(ctx, model.ImpressionCreateRequest{
			DeviceID: device.ID,
			AdID:     ad.ID,
			PlayedAt: time.Now().UTC().Add(time.Duration(-i) * time.Minute),
		})
		require.NoError(t, err)
	}

	deviceID := device.ID
	impressions, total, err := env.AnalyticsService.ListImpressions(ctx, model.ImpressionFilter{
		DeviceID: &deviceID,
		Limit:    10,
		Offset:   0,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, impressions, 5)
}
