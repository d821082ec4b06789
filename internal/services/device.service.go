package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/theru/fleet-ads/internal/model"
	"github.com/theru/fleet-ads/internal/repository"
	"github.com/theru/fleet-ads/pkg/logger"
	"github.com/theru/fleet-ads/pkg/redis"
)

var (
	ErrDeviceAuthFailed = errors.New("device authentication failed")
	ErrNotFound         = errors.New("not found")
)

const (
	deviceCodePrefix   = "THR-"
	deviceCodeLength   = 6
	deviceCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeRetries        = 5

	refreshKeyPrefix = "device:refresh:"
	refreshFlagTTL   = 24 * time.Hour
)

type DeviceRepository interface {
	Create(ctx context.Context, d *model.Device) (*model.Device, error)
	GetByID(ctx context.Context, id int64) (*model.Device, error)
	GetByCode(ctx context.Context, code string) (*model.Device, error)
	List(ctx context.Context, f model.DeviceFilter) ([]*model.Device, int64, error)
	Update(ctx context.Context, id int64, p model.DeviceUpdateRequest) (*model.Device, error)
	TouchHeartbeat(ctx context.Context, id int64, p model.HeartbeatRequest, seenAt time.Time) error
	MarkOffline(ctx context.Context, threshold time.Duration, now time.Time) (int64, error)
	Delete(ctx context.Context, id int64) error
}

// telemetryPublisher is the slice of the queue the device service needs.
type telemetryPublisher interface {
	PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error)
}

type DeviceService struct {
	deviceRepo DeviceRepository
	cache      redis.RedisAdapter
	telemetry  telemetryPublisher
	threshold  time.Duration
}

func NewDeviceService(deviceRepo DeviceRepository, cache redis.RedisAdapter, telemetry telemetryPublisher, threshold time.Duration) *DeviceService {
	if threshold <= 0 {
		threshold = model.DefaultOfflineThreshold
	}
	return &DeviceService{
		deviceRepo: deviceRepo,
		cache:      cache,
		telemetry:  telemetry,
		threshold:  threshold,
	}
}

// Register provisions a new tablet: a unique human-readable device code plus
// a secret the device presents on every later call.
func (s *DeviceService) Register(ctx context.Context, p model.DeviceRegisterRequest) (*model.Device, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var lastErr error
	for i := 0; i < codeRetries; i++ {
		code, err := newDeviceCode()
		if err != nil {
			return nil, err
		}

		created, err := s.deviceRepo.Create(ctx, &model.Device{
			DeviceCode:       code,
			SecretKey:        uuid.NewString(),
			Model:            p.Model,
			OSVersion:        p.OSVersion,
			SerialNumber:     p.SerialNumber,
			VehicleRegNumber: p.VehicleRegNumber,
			City:             p.City,
			Status:           model.DeviceStatusOffline,
		})
		if err == nil {
			return created, nil
		}
		// Only a code collision is worth another draw; anything else is
		// the same failure on every attempt.
		if !errors.Is(err, repository.ErrDuplicateDeviceCode) {
			return nil, err
		}
		lastErr = err
		logger.Warn("device code collision, retrying", "attempt", i+1, "error", err)
	}
	return nil, fmt.Errorf("register device: %w", lastErr)
}

// Authenticate resolves a device by its code and checks the secret. Errors
// never reveal whether the code or the secret was wrong.
func (s *DeviceService) Authenticate(ctx context.Context, code, secret string) (*model.Device, error) {
	if code == "" || secret == "" {
		return nil, ErrDeviceAuthFailed
	}
	device, err := s.deviceRepo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrDeviceNotFound) {
			return nil, ErrDeviceAuthFailed
		}
		return nil, err
	}
	if device.SecretKey != secret {
		return nil, ErrDeviceAuthFailed
	}
	return device, nil
}

// Heartbeat moves the device online synchronously and hands the telemetry
// payload to the stream for async persistence. The ack carries a refresh
// flag when an operator asked the device to re-pull its playlist.
func (s *DeviceService) Heartbeat(ctx context.Context, device *model.Device, p model.HeartbeatRequest) (*model.HeartbeatAck, error) {
	now := time.Now().UTC()

	if err := s.deviceRepo.TouchHeartbeat(ctx, device.ID, p, now); err != nil {
		return nil, err
	}

	if s.telemetry != nil {
		event := model.HeartbeatEvent{
			DeviceID:      device.ID,
			DeviceCode:    device.DeviceCode,
			BatteryLevel:  p.BatteryLevel,
			IsCharging:    p.IsCharging,
			StorageFreeMB: p.StorageFreeMB,
			Latitude:      p.Latitude,
			Longitude:     p.Longitude,
			NetworkType:   p.NetworkType,
			ReceivedAt:    now,
		}
		if _, err := s.telemetry.PublishJSON(ctx, event, nil); err != nil {
			// Telemetry is best-effort, the heartbeat itself already landed.
			logger.Error("publish heartbeat event failed", "device_id", device.ID, "error", err)
		}
	}

	return &model.HeartbeatAck{
		ServerTime:      now,
		PollingInterval: int(model.DefaultPollingInterval.Seconds()),
		Refresh:         s.consumeRefreshFlag(device.ID),
	}, nil
}

// RequestRefresh flags a device so its next heartbeat ack tells it to
// re-pull the playlist.
func (s *DeviceService) RequestRefresh(ctx context.Context, id int64) error {
	if _, err := s.deviceRepo.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrDeviceNotFound) {
			return ErrNotFound
		}
		return err
	}
	if s.cache == nil {
		return nil
	}
	return s.cache.Set(refreshKey(id), []byte("1"), refreshFlagTTL)
}

// consumeRefreshFlag reads and clears the refresh flag. The flag fires at
// most once per request.
func (s *DeviceService) consumeRefreshFlag(id int64) bool {
	if s.cache == nil {
		return false
	}
	key := refreshKey(id)
	v, err := s.cache.Get(key)
	if err != nil || len(v) == 0 {
		return false
	}
	if err := s.cache.Del(key); err != nil {
		logger.Warn("clear refresh flag failed", "device_id", id, "error", err)
	}
	return true
}

func (s *DeviceService) Get(ctx context.Context, id int64) (*model.Device, error) {
	device, err := s.deviceRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrDeviceNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return device, nil
}

func (s *DeviceService) List(ctx context.Context, f model.DeviceFilter) ([]*model.Device, int64, error) {
	return s.deviceRepo.List(ctx, f)
}

func (s *DeviceService) Update(ctx context.Context, id int64, p model.DeviceUpdateRequest) (*model.Device, error) {
	device, err := s.deviceRepo.Update(ctx, id, p)
	if err != nil {
		if errors.Is(err, repository.ErrDeviceNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return device, nil
}

func (s *DeviceService) Delete(ctx context.Context, id int64) error {
	err := s.deviceRepo.Delete(ctx, id)
	if errors.Is(err, repository.ErrDeviceNotFound) {
		return ErrNotFound
	}
	return err
}

// MarkOffline sweeps devices whose last heartbeat is older than the
// configured threshold.
func (s *DeviceService) MarkOffline(ctx context.Context) (int64, error) {
	return s.deviceRepo.MarkOffline(ctx, s.threshold, time.Now().UTC())
}

func refreshKey(id int64) string {
	return fmt.Sprintf("%s%d", refreshKeyPrefix, id)
}

func newDeviceCode() (string, error) {
	buf := make([]byte, deviceCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate device code: %w", err)
	}
	for i, b := range buf {
		buf[i] = deviceCodeAlphabet[int(b)%len(deviceCodeAlphabet)]
	}
	return deviceCodePrefix + string(buf), nil
}
