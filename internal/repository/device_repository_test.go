package repository

import (
	"context"
	"testing"
	"time"

	"github.com/theru/fleet-ads/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceRepository_Create(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewDeviceRepository(db)
	ctx := context.Background()

	t.Run("create device successfully", func(t *testing.T) {
		d := &model.Device{
			DeviceCode:   "THR-A1B2C3",
			SecretKey:    "secret",
			Model:        "Galaxy Tab A8",
			SerialNumber: "SN-001",
			City:         "tehran",
			Status:       model.DeviceStatusOffline,
		}

		created, err := repo.Create(ctx, d)
		require.NoError(t, err)
		assert.NotZero(t, created.ID)
		assert.Equal(t, d.DeviceCode, created.DeviceCode)
		assert.Equal(t, model.DeviceStatusOffline, created.Status)
		assert.Nil(t, created.LastSeen)
	})

	t.Run("get by code", func(t *testing.T) {
		got, err := repo.GetByCode(ctx, "THR-A1B2C3")
		require.NoError(t, err)
		assert.Equal(t, "SN-001", got.SerialNumber)
	})

	t.Run("get unknown code returns not found", func(t *testing.T) {
		_, err := repo.GetByCode(ctx, "THR-ZZZZZZ")
		assert.ErrorIs(t, err, ErrDeviceNotFound)
	})

	t.Run("reused device code is a duplicate error", func(t *testing.T) {
		_, err := repo.Create(ctx, &model.Device{
			DeviceCode:   "THR-A1B2C3",
			SecretKey:    "another-secret",
			Model:        "Galaxy Tab A8",
			SerialNumber: "SN-002",
			Status:       model.DeviceStatusOffline,
		})
		assert.ErrorIs(t, err, ErrDuplicateDeviceCode)
	})
}

func TestDeviceRepository_List(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewDeviceRepository(db)
	ctx := context.Background()

	cities := []string{"tehran", "tehran", "isfahan"}
	for i, city := range cities {
		d := &model.Device{
			DeviceCode:   "THR-LIST0" + string(rune('A'+i)),
			SecretKey:    "secret",
			Model:        "Galaxy Tab A8",
			SerialNumber: "SN-LIST",
			City:         city,
			Status:       model.DeviceStatusOffline,
		}
		_, err := repo.Create(ctx, d)
		require.NoError(t, err)
	}

	t.Run("list all", func(t *testing.T) {
		devices, total, err := repo.List(ctx, model.DeviceFilter{Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, devices, 3)
	})

	t.Run("filter by city", func(t *testing.T) {
		city := "tehran"
		devices, total, err := repo.List(ctx, model.DeviceFilter{City: &city, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		for _, d := range devices {
			assert.Equal(t, "tehran", d.City)
		}
	})

	t.Run("pagination keeps total", func(t *testing.T) {
		devices, total, err := repo.List(ctx, model.DeviceFilter{Limit: 2, Offset: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, devices, 1)
	})
}

func TestDeviceRepository_TouchHeartbeat(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewDeviceRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, &model.Device{
		DeviceCode:   "THR-HB0001",
		SecretKey:    "secret",
		Model:        "Galaxy Tab A8",
		SerialNumber: "SN-HB",
		Status:       model.DeviceStatusOffline,
	})
	require.NoError(t, err)

	battery := 84
	charging := true
	seenAt := time.Now().UTC().Truncate(time.Second)

	err = repo.TouchHeartbeat(ctx, created.ID, model.HeartbeatRequest{
		BatteryLevel: &battery,
		IsCharging:   &charging,
	}, seenAt)
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DeviceStatusOnline, got.Status)
	require.NotNil(t, got.LastSeen)
	assert.WithinDuration(t, seenAt, *got.LastSeen, time.Second)
	require.NotNil(t, got.BatteryLevel)
	assert.Equal(t, 84, *got.BatteryLevel)

	t.Run("unknown device", func(t *testing.T) {
		err := repo.TouchHeartbeat(ctx, 99999, model.HeartbeatRequest{}, seenAt)
		assert.ErrorIs(t, err, ErrDeviceNotFound)
	})
}

func TestDeviceRepository_MarkOffline(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewDeviceRepository(db)
	ctx := context.Background()

	threshold := 10 * time.Minute
	now := time.Now().UTC()

	mkDevice := func(code string, lastSeen *time.Time, status model.DeviceStatus) *model.Device {
		created, err := repo.Create(ctx, &model.Device{
			DeviceCode:   code,
			SecretKey:    "secret",
			Model:        "Galaxy Tab A8",
			SerialNumber: "SN-SWEEP",
			Status:       status,
			LastSeen:     lastSeen,
		})
		require.NoError(t, err)
		return created
	}

	justInside := now.Add(-threshold + time.Second)
	justOutside := now.Add(-threshold - time.Second)

	fresh := mkDevice("THR-SW0001", &justInside, model.DeviceStatusOnline)
	stale := mkDevice("THR-SW0002", &justOutside, model.DeviceStatusOnline)
	never := mkDevice("THR-SW0003", nil, model.DeviceStatusOnline)
	already := mkDevice("THR-SW0004", &justOutside, model.DeviceStatusOffline)

	flipped, err := repo.MarkOffline(ctx, threshold, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), flipped)

	expect := map[int64]model.DeviceStatus{
		fresh.ID:   model.DeviceStatusOnline,
		stale.ID:   model.DeviceStatusOffline,
		never.ID:   model.DeviceStatusOffline,
		already.ID: model.DeviceStatusOffline,
	}
	for id, want := range expect {
		got, err := repo.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got.Status, "device %d", id)
	}

	t.Run("second sweep is a no-op", func(t *testing.T) {
		flipped, err := repo.MarkOffline(ctx, threshold, now)
		require.NoError(t, err)
		assert.Zero(t, flipped)
	})
}

func TestDeviceRepository_ClearDriverRef(t *testing.T) {
	db := setupTestDB(t).DB
	deviceRepo := NewDeviceRepository(db)
	driverRepo := NewDriverRepository(db)
	ctx := context.Background()

	driver, err := driverRepo.Create(ctx, &model.Driver{
		Name:   "Reza",
		Phone:  "+989120000000",
		Status: model.DriverStatusActive,
	})
	require.NoError(t, err)

	attached, err := deviceRepo.Create(ctx, &model.Device{
		DeviceCode:   "THR-DRV001",
		SecretKey:    "secret",
		Model:        "Galaxy Tab A8",
		SerialNumber: "SN-DRV",
		DriverID:     &driver.ID,
		Status:       model.DeviceStatusOffline,
	})
	require.NoError(t, err)

	other, err := deviceRepo.Create(ctx, &model.Device{
		DeviceCode:   "THR-DRV002",
		SecretKey:    "secret",
		Model:        "Galaxy Tab A8",
		SerialNumber: "SN-DRV",
		Status:       model.DeviceStatusOffline,
	})
	require.NoError(t, err)

	cleared, err := deviceRepo.ClearDriverRef(ctx, driver.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cleared)

	got, err := deviceRepo.GetByID(ctx, attached.ID)
	require.NoError(t, err)
	assert.Nil(t, got.DriverID)

	untouched, err := deviceRepo.GetByID(ctx, other.ID)
	require.NoError(t, err)
	assert.Nil(t, untouched.DriverID)
}

func TestDeviceRepository_CountByStatus(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewDeviceRepository(db)
	ctx := context.Background()

	statuses := []model.DeviceStatus{
		model.DeviceStatusOnline,
		model.DeviceStatusOnline,
		model.DeviceStatusOffline,
	}
	for i, status := range statuses {
		_, err := repo.Create(ctx, &model.Device{
			DeviceCode:   "THR-CNT00" + string(rune('A'+i)),
			SecretKey:    "secret",
			Model:        "Galaxy Tab A8",
			SerialNumber: "SN-CNT",
			Status:       status,
		})
		require.NoError(t, err)
	}

	total, online, offline, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, int64(2), online)
	assert.Equal(t, int64(1), offline)
}
