package repository

import (
	"context"
	"errors"

	"github.com/theru/fleet-ads/internal/model"
	"github.com/theru/fleet-ads/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrAdNotFound = errors.New("ad not found")
)

type AdRepository struct {
	*pg.DB
}

func NewAdRepository(db *pg.DB) *AdRepository {
	return &AdRepository{
		db,
	}
}

func (r *AdRepository) Create(ctx context.Context, a *model.Ad) (*model.Ad, error) {
	entity := toAdEntity(a)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toAdModel(entity), nil
}

func (r *AdRepository) GetByID(ctx context.Context, id int64) (*model.Ad, error) {
	var entity AdEntity
	err := r.Read(ctx).WithContext(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAdNotFound
		}
		return nil, err
	}
	return toAdModel(&entity), nil
}

func (r *AdRepository) ListByCampaign(ctx context.Context, campaignID int64) ([]*model.Ad, error) {
	var entities []*AdEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("created_at ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toAdModels(entities), nil
}

// ListActiveByCampaigns returns active ads across a set of campaigns, used
// to build a device playlist in one query.
func (r *AdRepository) ListActiveByCampaigns(ctx context.Context, campaignIDs []int64) ([]*model.Ad, error) {
	if len(campaignIDs) == 0 {
		return nil, nil
	}
	var entities []*AdEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("campaign_id IN ?", campaignIDs).
		Where("is_active = ?", true).
		Order("campaign_id ASC, created_at ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toAdModels(entities), nil
}

func (r *AdRepository) SetActive(ctx context.Context, id int64, active bool) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&AdEntity{}).
		Where("id = ?", id).
		Update("is_active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAdNotFound
	}
	return nil
}

func (r *AdRepository) Delete(ctx context.Context, id int64) error {
	result := r.Write(ctx).WithContext(ctx).
		Where("id = ?", id).
		Delete(&AdEntity{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAdNotFound
	}
	return nil
}
