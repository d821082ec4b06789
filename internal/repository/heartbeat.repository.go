package repository

import (
	"context"

	"github.com/theru/fleet-ads/internal/model"
	"github.com/theru/fleet-ads/pkg/pg"
)

type HeartbeatRepository struct {
	*pg.DB
}

func NewHeartbeatRepository(db *pg.DB) *HeartbeatRepository {
	return &HeartbeatRepository{
		db,
	}
}

func (r *HeartbeatRepository) Create(ctx context.Context, h *model.Heartbeat) (*model.Heartbeat, error) {
	entity := toHeartbeatEntity(h)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toHeartbeatModel(entity), nil
}

func (r *HeartbeatRepository) ListByDevice(ctx context.Context, deviceID int64, limit int) ([]*model.Heartbeat, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	var entities []*HeartbeatEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toHeartbeatModels(entities), nil
}
