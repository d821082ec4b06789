package repository

import (
	"context"
	"errors"
	"time"

	"github.com/theru/fleet-ads/internal/model"
	"github.com/theru/fleet-ads/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrCampaignNotFound = errors.New("campaign not found")
)

type CampaignRepository struct {
	*pg.DB
}

func NewCampaignRepository(db *pg.DB) *CampaignRepository {
	return &CampaignRepository{
		db,
	}
}

func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) (*model.Campaign, error) {
	entity := toCampaignEntity(c)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toCampaignModel(entity), nil
}

func (r *CampaignRepository) GetByID(ctx context.Context, id int64) (*model.Campaign, error) {
	var entity CampaignEntity
	err := r.Read(ctx).WithContext(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, err
	}
	return toCampaignModel(&entity), nil
}

func (r *CampaignRepository) List(ctx context.Context, f model.CampaignFilter) ([]*model.Campaign, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&CampaignEntity{})

	if f.ClientID != nil {
		q = q.Where("client_id = ?", *f.ClientID)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		q = q.Where("status IN ?", statuses)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at"
	if f.Desc {
		order += " DESC"
	} else {
		order += " ASC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*CampaignEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toCampaignModels(entities), total, nil
}

func (r *CampaignRepository) Update(ctx context.Context, id int64, p model.CampaignUpdateRequest) (*model.Campaign, error) {
	updates := map[string]interface{}{}
	if p.Name != nil {
		updates["name"] = *p.Name
	}
	if p.Description != nil {
		updates["description"] = *p.Description
	}
	if p.StartDate != nil {
		updates["start_date"] = *p.StartDate
	}
	if p.EndDate != nil {
		updates["end_date"] = *p.EndDate
	}
	if p.TargetCities != nil {
		updates["target_cities"] = toCampaignEntity(&model.Campaign{TargetCities: *p.TargetCities}).TargetCities
	}

	if len(updates) > 0 {
		result := r.Write(ctx).WithContext(ctx).
			Model(&CampaignEntity{}).
			Where("id = ?", id).
			Updates(updates)
		if result.Error != nil {
			return nil, result.Error
		}
		if result.RowsAffected == 0 {
			return nil, ErrCampaignNotFound
		}
	}

	return r.GetByID(ctx, id)
}

// UpdateStatus performs a lifecycle transition under a row lock so two
// concurrent operators cannot race each other past the state machine.
func (r *CampaignRepository) UpdateStatus(ctx context.Context, id int64, to model.CampaignStatus) (*model.Campaign, error) {
	var updated *model.Campaign
	err := r.WithinTransaction(ctx, func(ctx context.Context) error {
		var entity CampaignEntity
		err := r.Write(ctx).WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&entity).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCampaignNotFound
			}
			return err
		}

		c := toCampaignModel(&entity)
		if err := c.Transition(to); err != nil {
			return err
		}

		result := r.Write(ctx).WithContext(ctx).
			Model(&CampaignEntity{}).
			Where("id = ?", id).
			Update("status", string(c.Status))
		if result.Error != nil {
			return result.Error
		}

		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ListDateActive returns campaigns in the given status whose date window
// contains now. City targeting is applied by the caller since the target
// list is small and lives in an array column.
func (r *CampaignRepository) ListDateActive(ctx context.Context, status model.CampaignStatus, now time.Time) ([]*model.Campaign, error) {
	var entities []*CampaignEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("status = ?", string(status)).
		Where("start_date <= ? AND end_date >= ?", now, now).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toCampaignModels(entities), nil
}

// CompleteExpired moves running campaigns whose end_date has passed to
// completed. Returns the number of campaigns closed.
func (r *CampaignRepository) CompleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.Write(ctx).WithContext(ctx).
		Model(&CampaignEntity{}).
		Where("status IN ?", []string{
			string(model.CampaignStatusActive),
			string(model.CampaignStatusPaused),
		}).
		Where("end_date < ?", now).
		Update("status", string(model.CampaignStatusCompleted))
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
