package helpers

import (
	"context"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/theru/fleet-ads/internal/repository"
	"github.com/theru/fleet-ads/pkg/pg"
	"github.com/theru/fleet-ads/pkg/redis"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func SetupTestDB(t *testing.T) *pg.DB {
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

	pgDB := &pg.DB{}
	pgDBValue := reflect.ValueOf(pgDB).Elem()

	readField := pgDBValue.FieldByName("read")
	writeField := pgDBValue.FieldByName("write")

	readField = reflect.NewAt(readField.Type(), readField.Addr().UnsafePointer()).Elem()
	writeField = reflect.NewAt(writeField.Type(), writeField.Addr().UnsafePointer()).Elem()

	readField.Set(reflect.ValueOf(db))
	writeField.Set(reflect.ValueOf(db))

	return pgDB
}

func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	adapter, err := redis.NewRedisAdapter("test", "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func CreateTestDriver(t *testing.T, db *pg.DB, name, city string) *repository.DriverEntity {
	ctx := context.Background()
	driver := &repository.DriverEntity{
		Name:   name,
		Phone:  "+989120000000",
		City:   city,
		Status: "active",
	}
	err := db.Write(ctx).Create(driver).Error
	require.NoError(t, err)
	return driver
}

func CreateTestClient(t *testing.T, db *pg.DB, name string) *repository.ClientEntity {
	ctx := context.Background()
	client := &repository.ClientEntity{
		Name:   name,
		Email:  name + "@example.com",
		Status: "active",
	}
	err := db.Write(ctx).Create(client).Error
	require.NoError(t, err)
	return client
}

func CreateTestDevice(t *testing.T, db *pg.DB, city string) *repository.DeviceEntity {
	ctx := context.Background()
	device := &repository.DeviceEntity{
		DeviceCode:   RandomDeviceCode(),
		SecretKey:    "test-secret",
		Model:        "Galaxy Tab A8",
		SerialNumber: RandomDeviceCode(),
		City:         city,
		Status:       "offline",
	}
	err := db.Write(ctx).Create(device).Error
	require.NoError(t, err)
	return device
}

func CreateTestCampaign(t *testing.T, db *pg.DB, clientID int64, status string, start, end time.Time) *repository.CampaignEntity {
	ctx := context.Background()
	campaign := &repository.CampaignEntity{
		ClientID:  clientID,
		Name:      "test campaign",
		StartDate: start,
		EndDate:   end,
		Status:    status,
	}
	err := db.Write(ctx).Create(campaign).Error
	require.NoError(t, err)
	return campaign
}

func CreateTestAd(t *testing.T, db *pg.DB, campaignID int64) *repository.AdEntity {
	ctx := context.Background()
	ad := &repository.AdEntity{
		CampaignID:      campaignID,
		FileName:        "spot.mp4",
		FileURL:         "ads/spot.mp4",
		DurationSeconds: 15,
		IsActive:        true,
	}
	err := db.Write(ctx).Create(ad).Error
	require.NoError(t, err)
	return ad
}

func CreateTestImpression(t *testing.T, db *pg.DB, deviceID, adID int64, playedAt time.Time) *repository.ImpressionEntity {
	ctx := context.Background()
	imp := &repository.ImpressionEntity{
		DeviceID: deviceID,
		AdID:     adID,
		PlayedAt: playedAt,
	}
	err := db.Write(ctx).Create(imp).Error
	require.NoError(t, err)
	return imp
}

func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func AssertEventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	if !WaitForCondition(t, timeout, condition) {
		t.Fatal(msg)
	}
}

func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

var deviceCodeSeq int64

func RandomDeviceCode() string {
	deviceCodeSeq++
	return fmt.Sprintf("DEV-%s-%d", time.Now().Format("150405"), deviceCodeSeq)
}

func Ptr[T any](v T) *T {
	return &v
}
