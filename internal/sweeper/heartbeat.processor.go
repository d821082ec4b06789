package sweeper

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/theru/fleet-ads/internal/model"
	"github.com/theru/fleet-ads/internal/queue"
	"github.com/theru/fleet-ads/pkg/logger"
	"github.com/theru/fleet-ads/pkg/prom"
)

type HeartbeatRepository interface {
	Create(ctx context.Context, h *model.Heartbeat) (*model.Heartbeat, error)
}

// HeartbeatProcessor persists heartbeat events from the stream as telemetry
// rows. The stream entry ID is the idempotency key, so a redelivered entry
// never produces a second row.
type HeartbeatProcessor struct {
	heartbeatRepo HeartbeatRepository
	idempotency   *IdempotencyService
}

func NewHeartbeatProcessor(heartbeatRepo HeartbeatRepository, idempotency *IdempotencyService) *HeartbeatProcessor {
	return &HeartbeatProcessor{
		heartbeatRepo: heartbeatRepo,
		idempotency:   idempotency,
	}
}

func (p *HeartbeatProcessor) GetType() string {
	return "heartbeat"
}

func (p *HeartbeatProcessor) Process(ctx context.Context, queueMessage *queue.Message) error {
	// Step 1: Parse event
	var event model.HeartbeatEvent
	if err := json.Unmarshal(queueMessage.Data, &event); err != nil {
		logger.Error("Failed to unmarshal heartbeat event", "message_id", queueMessage.ID, "error", err)
		// Malformed payload will never parse on retry - return error to move it to DLQ
		return err
	}

	messageID := queueMessage.ID

	// Step 2: Acquire processing lock and check idempotency
	procCtx, err := p.idempotency.AcquireProcessingLock(ctx, messageID)
	if err != nil {
		if errors.Is(err, ErrAlreadyProcessed) {
			// Event already persisted - ACK to remove from queue
			return nil
		}
		if errors.Is(err, ErrMaxRetriesExceeded) {
			// Telemetry is best-effort, drop the event after exhausting retries
			logger.Error("Max retries exceeded, dropping heartbeat", "message_id", messageID, "device_id", event.DeviceID)
			prom.IncCounter("sweeper", "heartbeats_dropped_total")
			return nil // ACK to move to DLQ
		}
		if errors.Is(err, ErrLockAcquireFailed) {
			// Another consumer is processing - NACK to retry later
			logger.Info("Lock held by another consumer, will retry", "message_id", messageID)
			return errors.New("lock held by another consumer")
		}
		// Unexpected error - NACK to retry
		logger.Error("Failed to acquire lock", "message_id", messageID, "error", err)
		return err
	}

	// Ensure lock is released on exit (if not already marked success/failure)
	defer func() {
		if procCtx.lockAcquired {
			p.idempotency.ReleaseLock(ctx, procCtx)
		}
	}()

	logger.Debug("Processing heartbeat",
		"message_id", messageID,
		"device_id", event.DeviceID,
		"device_code", event.DeviceCode,
		"retry_count", procCtx.RetryCount,
		"is_retry", procCtx.IsRetry)

	// Step 3: Persist the telemetry row
	heartbeat := &model.Heartbeat{
		DeviceID:      event.DeviceID,
		BatteryLevel:  event.BatteryLevel,
		IsCharging:    event.IsCharging,
		StorageFreeMB: event.StorageFreeMB,
		Latitude:      event.Latitude,
		Longitude:     event.Longitude,
		NetworkType:   event.NetworkType,
		CreatedAt:     event.ReceivedAt,
	}

	if _, err := p.heartbeatRepo.Create(ctx, heartbeat); err != nil {
		// Step 4a: Insert failed - mark failure and retry
		logger.Error("Failed to persist heartbeat", "message_id", messageID, "device_id", event.DeviceID, "error", err)
		if markErr := p.idempotency.MarkFailure(ctx, procCtx, err); markErr != nil {
			logger.Error("Failed to mark failure", "message_id", messageID, "error", markErr)
		}
		return err // NACK to retry from queue
	}

	// Step 4b: Insert succeeded - mark success
	prom.IncCounter("sweeper", "heartbeats_persisted_total")

	if markErr := p.idempotency.MarkSuccess(ctx, procCtx); markErr != nil {
		logger.Error("Failed to mark success", "message_id", messageID, "error", markErr)
		// Continue - the row was written
	}

	return nil // ACK message
}
