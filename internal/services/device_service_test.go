package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/theru/fleet-ads/internal/model"
	"github.com/theru/fleet-ads/internal/repository"
	"github.com/theru/fleet-ads/pkg/redis"
)

type MockDeviceRepository struct {
	mock.Mock
}

func (m *MockDeviceRepository) Create(ctx context.Context, d *model.Device) (*model.Device, error) {
	args := m.Called(ctx, d)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Device), args.Error(1)
}

func (m *MockDeviceRepository) GetByID(ctx context.Context, id int64) (*model.Device, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Device), args.Error(1)
}

func (m *MockDeviceRepository) GetByCode(ctx context.Context, code string) (*model.Device, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Device), args.Error(1)
}

func (m *MockDeviceRepository) List(ctx context.Context, f model.DeviceFilter) ([]*model.Device, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Device), args.Get(1).(int64), args.Error(2)
}

func (m *MockDeviceRepository) Update(ctx context.Context, id int64, p model.DeviceUpdateRequest) (*model.Device, error) {
	args := m.Called(ctx, id, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Device), args.Error(1)
}

func (m *MockDeviceRepository) TouchHeartbeat(ctx context.Context, id int64, p model.HeartbeatRequest, seenAt time.Time) error {
	args := m.Called(ctx, id, p, seenAt)
	return args.Error(0)
}

func (m *MockDeviceRepository) MarkOffline(ctx context.Context, threshold time.Duration, now time.Time) (int64, error) {
	args := m.Called(ctx, threshold, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDeviceRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockTelemetryPublisher struct {
	mock.Mock
}

func (m *MockTelemetryPublisher) PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error) {
	args := m.Called(ctx, data, metadata)
	return args.String(0), args.Error(1)
}

func setupServiceRedis(t *testing.T) redis.RedisAdapter {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	connName := t.Name() + "-" + mr.Addr()
	adapter, err := redis.NewRedisAdapter(connName, "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)
	return adapter
}

func TestDeviceService_Register(t *testing.T) {
	repo := new(MockDeviceRepository)
	service := NewDeviceService(repo, nil, nil, 0)
	ctx := context.Background()

	t.Run("generates code and secret", func(t *testing.T) {
		var stored *model.Device
		repo.On("Create", ctx, mock.AnythingOfType("*model.Device")).
			Run(func(args mock.Arguments) {
				stored = args.Get(1).(*model.Device)
			}).
			Return(&model.Device{ID: 1}, nil).Once()

		created, err := service.Register(ctx, model.DeviceRegisterRequest{
			Model:        "Galaxy Tab A8",
			SerialNumber: "SN-001",
			City:         "tehran",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), created.ID)

		require.NotNil(t, stored)
		assert.True(t, strings.HasPrefix(stored.DeviceCode, "THR-"))
		assert.Len(t, stored.DeviceCode, 10)
		for _, r := range stored.DeviceCode[4:] {
			assert.True(t, (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'), "char %q", r)
		}
		assert.NotEmpty(t, stored.SecretKey)
		assert.Equal(t, model.DeviceStatusOffline, stored.Status)

		repo.AssertExpectations(t)
	})

	t.Run("missing model is rejected", func(t *testing.T) {
		_, err := service.Register(ctx, model.DeviceRegisterRequest{SerialNumber: "SN-001"})
		assert.Error(t, err)
	})

	t.Run("retries on code collision", func(t *testing.T) {
		repo := new(MockDeviceRepository)
		service := NewDeviceService(repo, nil, nil, 0)

		repo.On("Create", ctx, mock.AnythingOfType("*model.Device")).
			Return(nil, repository.ErrDuplicateDeviceCode).Once()
		repo.On("Create", ctx, mock.AnythingOfType("*model.Device")).
			Return(&model.Device{ID: 2}, nil).Once()

		created, err := service.Register(ctx, model.DeviceRegisterRequest{
			Model:        "Galaxy Tab A8",
			SerialNumber: "SN-002",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), created.ID)
		repo.AssertNumberOfCalls(t, "Create", 2)
	})

	t.Run("other insert failures do not retry", func(t *testing.T) {
		repo := new(MockDeviceRepository)
		service := NewDeviceService(repo, nil, nil, 0)

		dbDown := errors.New("connection refused")
		repo.On("Create", ctx, mock.AnythingOfType("*model.Device")).
			Return(nil, dbDown).Once()

		_, err := service.Register(ctx, model.DeviceRegisterRequest{
			Model:        "Galaxy Tab A8",
			SerialNumber: "SN-003",
		})
		assert.ErrorIs(t, err, dbDown)
		repo.AssertNumberOfCalls(t, "Create", 1)
	})
}

func TestDeviceService_Authenticate(t *testing.T) {
	repo := new(MockDeviceRepository)
	service := NewDeviceService(repo, nil, nil, 0)
	ctx := context.Background()

	device := &model.Device{ID: 1, DeviceCode: "THR-A1B2C3", SecretKey: "secret"}

	t.Run("valid credentials", func(t *testing.T) {
		repo.On("GetByCode", ctx, "THR-A1B2C3").Return(device, nil).Once()

		got, err := service.Authenticate(ctx, "THR-A1B2C3", "secret")
		require.NoError(t, err)
		assert.Equal(t, device.ID, got.ID)
	})

	t.Run("wrong secret", func(t *testing.T) {
		repo.On("GetByCode", ctx, "THR-A1B2C3").Return(device, nil).Once()

		_, err := service.Authenticate(ctx, "THR-A1B2C3", "wrong")
		assert.ErrorIs(t, err, ErrDeviceAuthFailed)
	})

	t.Run("unknown code", func(t *testing.T) {
		repo.On("GetByCode", ctx, "THR-ZZZZZZ").Return(nil, repository.ErrDeviceNotFound).Once()

		_, err := service.Authenticate(ctx, "THR-ZZZZZZ", "secret")
		assert.ErrorIs(t, err, ErrDeviceAuthFailed)
	})

	t.Run("empty credentials", func(t *testing.T) {
		_, err := service.Authenticate(ctx, "", "")
		assert.ErrorIs(t, err, ErrDeviceAuthFailed)
	})
}

func TestDeviceService_Heartbeat(t *testing.T) {
	ctx := context.Background()
	device := &model.Device{ID: 7, DeviceCode: "THR-A1B2C3"}

	t.Run("touches row and publishes telemetry", func(t *testing.T) {
		repo := new(MockDeviceRepository)
		publisher := new(MockTelemetryPublisher)
		service := NewDeviceService(repo, nil, publisher, 0)

		battery := 50
		req := model.HeartbeatRequest{BatteryLevel: &battery, NetworkType: "4g"}

		repo.On("TouchHeartbeat", ctx, device.ID, req, mock.AnythingOfType("time.Time")).Return(nil).Once()
		publisher.On("PublishJSON", ctx, mock.AnythingOfType("model.HeartbeatEvent"), map[string]string(nil)).
			Return("1-0", nil).Once()

		ack, err := service.Heartbeat(ctx, device, req)
		require.NoError(t, err)
		assert.Equal(t, 300, ack.PollingInterval)
		assert.False(t, ack.Refresh)
		assert.WithinDuration(t, time.Now(), ack.ServerTime, time.Second)

		repo.AssertExpectations(t)
		publisher.AssertExpectations(t)

		event := publisher.Calls[0].Arguments.Get(1).(model.HeartbeatEvent)
		assert.Equal(t, device.ID, event.DeviceID)
		require.NotNil(t, event.BatteryLevel)
		assert.Equal(t, 50, *event.BatteryLevel)
	})

	t.Run("publish failure does not fail the heartbeat", func(t *testing.T) {
		repo := new(MockDeviceRepository)
		publisher := new(MockTelemetryPublisher)
		service := NewDeviceService(repo, nil, publisher, 0)

		repo.On("TouchHeartbeat", ctx, device.ID, model.HeartbeatRequest{}, mock.AnythingOfType("time.Time")).Return(nil).Once()
		publisher.On("PublishJSON", ctx, mock.Anything, map[string]string(nil)).
			Return("", assert.AnError).Once()

		_, err := service.Heartbeat(ctx, device, model.HeartbeatRequest{})
		assert.NoError(t, err)
	})
}

func TestDeviceService_RefreshFlag(t *testing.T) {
	ctx := context.Background()
	cache := setupServiceRedis(t)
	repo := new(MockDeviceRepository)
	publisher := new(MockTelemetryPublisher)
	service := NewDeviceService(repo, cache, publisher, 0)

	device := &model.Device{ID: 9, DeviceCode: "THR-RFRSH1"}

	repo.On("GetByID", ctx, device.ID).Return(device, nil)
	repo.On("TouchHeartbeat", ctx, device.ID, model.HeartbeatRequest{}, mock.AnythingOfType("time.Time")).Return(nil)
	publisher.On("PublishJSON", ctx, mock.Anything, map[string]string(nil)).Return("1-0", nil)

	require.NoError(t, service.RequestRefresh(ctx, device.ID))

	ack, err := service.Heartbeat(ctx, device, model.HeartbeatRequest{})
	require.NoError(t, err)
	assert.True(t, ack.Refresh, "first heartbeat after refresh request carries the flag")

	ack, err = service.Heartbeat(ctx, device, model.HeartbeatRequest{})
	require.NoError(t, err)
	assert.False(t, ack.Refresh, "flag fires once")
}

func TestDeviceService_MarkOffline(t *testing.T) {
	repo := new(MockDeviceRepository)
	service := NewDeviceService(repo, nil, nil, 5*time.Minute)
	ctx := context.Background()

	repo.On("MarkOffline", ctx, 5*time.Minute, mock.AnythingOfType("time.Time")).
		Return(int64(3), nil).Once()

	flipped, err := service.MarkOffline(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), flipped)
	repo.AssertExpectations(t)
}
