package repository

import (
	"context"
	"errors"

	"github.com/theru/fleet-ads/internal/model"
	"github.com/theru/fleet-ads/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrDriverNotFound = errors.New("driver not found")
)

type DriverRepository struct {
	*pg.DB
}

func NewDriverRepository(db *pg.DB) *DriverRepository {
	return &DriverRepository{
		db,
	}
}

func (r *DriverRepository) Create(ctx context.Context, d *model.Driver) (*model.Driver, error) {
	entity := toDriverEntity(d)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toDriverModel(entity), nil
}

func (r *DriverRepository) GetByID(ctx context.Context, id int64) (*model.Driver, error) {
	var entity DriverEntity
	err := r.Read(ctx).WithContext(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDriverNotFound
		}
		return nil, err
	}
	return toDriverModel(&entity), nil
}

func (r *DriverRepository) List(ctx context.Context, f model.DriverFilter) ([]*model.Driver, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&DriverEntity{})

	if f.City != nil && *f.City != "" {
		q = q.Where("city = ?", *f.City)
	}
	if f.Status != nil && *f.Status != "" {
		q = q.Where("status = ?", string(*f.Status))
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

	var entities []*DriverEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toDriverModels(entities), total, nil
}

func (r *DriverRepository) Update(ctx context.Context, id int64, p model.DriverUpdateRequest) (*model.Driver, error) {
	updates := map[string]interface{}{}
	if p.Name != nil {
		updates["name"] = *p.Name
	}
	if p.Phone != nil {
		updates["phone"] = *p.Phone
	}
	if p.Email != nil {
		updates["email"] = *p.Email
	}
	if p.LicenseNumber != nil {
		updates["license_number"] = *p.LicenseNumber
	}
	if p.City != nil {
		updates["city"] = *p.City
	}
	if p.Status != nil {
		updates["status"] = string(*p.Status)
	}

	if len(updates) > 0 {
		result := r.Write(ctx).WithContext(ctx).
			Model(&DriverEntity{}).
			Where("id = ?", id).
			Updates(updates)
		if result.Error != nil {
			return nil, result.Error
		}
		if result.RowsAffected == 0 {
			return nil, ErrDriverNotFound
		}
	}

	return r.GetByID(ctx, id)
}

func (r *DriverRepository) Delete(ctx context.Context, id int64) error {
	result := r.Write(ctx).WithContext(ctx).
		Where("id = ?", id).
		Delete(&DriverEntity{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrDriverNotFound
	}
	return nil
}
