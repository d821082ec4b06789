package repository

import (
	"context"
	"errors"
	"time"

	"github.com/theru/fleet-ads/internal/model"
	"github.com/theru/fleet-ads/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrImpressionNotFound = errors.New("impression not found")
)

type ImpressionRepository struct {
	*pg.DB
}

func NewImpressionRepository(db *pg.DB) *ImpressionRepository {
	return &ImpressionRepository{
		db,
	}
}

func (r *ImpressionRepository) Create(ctx context.Context, i *model.Impression) (*model.Impression, error) {
	entity := toImpressionEntity(i)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toImpressionModel(entity), nil
}

func (r *ImpressionRepository) GetByID(ctx context.Context, id int64) (*model.Impression, error) {
	var entity ImpressionEntity
	err := r.Read(ctx).WithContext(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrImpressionNotFound
		}
		return nil, err
	}
	return toImpressionModel(&entity), nil
}

func (r *ImpressionRepository) List(ctx context.Context, f model.ImpressionFilter) ([]*model.Impression, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&ImpressionEntity{})

	if f.CampaignID != nil {
		q = q.Joins("JOIN ads ON ads.id = impressions.ad_id").
			Where("ads.campaign_id = ?", *f.CampaignID)
	}
	if f.DeviceID != nil {
		q = q.Where("impressions.device_id = ?", *f.DeviceID)
	}
	if f.AdID != nil {
		q = q.Where("impressions.ad_id = ?", *f.AdID)
	}
	if f.From != nil {
		q = q.Where("impressions.played_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("impressions.played_at <= ?", *f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "impressions.played_at"
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

	var entities []*ImpressionEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toImpressionModels(entities), total, nil
}

// CampaignStats aggregates impression volume for one campaign. The join
// through ads keeps the impressions table free of a denormalized
// campaign_id column.
func (r *ImpressionRepository) CampaignStats(ctx context.Context, campaignID int64, from, to *time.Time) (total int64, uniqueDevices int64, err error) {
	build := func() *gorm.DB {
		q := r.Read(ctx).WithContext(ctx).
			Model(&ImpressionEntity{}).
			Joins("JOIN ads ON ads.id = impressions.ad_id").
			Where("ads.campaign_id = ?", campaignID)
		if from != nil {
			q = q.Where("impressions.played_at >= ?", *from)
		}
		if to != nil {
			q = q.Where("impressions.played_at <= ?", *to)
		}
		return q
	}

	if err = build().Count(&total).Error; err != nil {
		return 0, 0, err
	}
	if err = build().Distinct("impressions.device_id").Count(&uniqueDevices).Error; err != nil {
		return 0, 0, err
	}
	return total, uniqueDevices, nil
}

func (r *ImpressionRepository) CountAll(ctx context.Context) (int64, error) {
	var total int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&ImpressionEntity{}).
		Count(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

// CountSince counts impressions played at or after the given instant,
// used for the today bucket of the overview.
func (r *ImpressionRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var total int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&ImpressionEntity{}).
		Where("played_at >= ?", since).
		Count(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}
