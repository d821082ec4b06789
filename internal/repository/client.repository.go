package repository

import (
	"context"
	"errors"

	"github.com/theru/fleet-ads/internal/model"
	"github.com/theru/fleet-ads/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrClientNotFound = errors.New("client not found")
)

type ClientRepository struct {
	*pg.DB
}

func NewClientRepository(db *pg.DB) *ClientRepository {
	return &ClientRepository{
		db,
	}
}

func (r *ClientRepository) Create(ctx context.Context, c *model.Client) (*model.Client, error) {
	entity := toClientEntity(c)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toClientModel(entity), nil
}

func (r *ClientRepository) GetByID(ctx context.Context, id int64) (*model.Client, error) {
	var entity ClientEntity
	err := r.Read(ctx).WithContext(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	return toClientModel(&entity), nil
}

func (r *ClientRepository) List(ctx context.Context, f model.ClientFilter) ([]*model.Client, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&ClientEntity{})

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

	var entities []*ClientEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toClientModels(entities), total, nil
}

func (r *ClientRepository) Update(ctx context.Context, id int64, p model.ClientUpdateRequest) (*model.Client, error) {
	updates := map[string]interface{}{}
	if p.Name != nil {
		updates["name"] = *p.Name
	}
	if p.ContactPerson != nil {
		updates["contact_person"] = *p.ContactPerson
	}
	if p.Email != nil {
		updates["email"] = *p.Email
	}
	if p.Phone != nil {
		updates["phone"] = *p.Phone
	}
	if p.Status != nil {
		updates["status"] = string(*p.Status)
	}

	if len(updates) > 0 {
		result := r.Write(ctx).WithContext(ctx).
			Model(&ClientEntity{}).
			Where("id = ?", id).
			Updates(updates)
		if result.Error != nil {
			return nil, result.Error
		}
		if result.RowsAffected == 0 {
			return nil, ErrClientNotFound
		}
	}

	return r.GetByID(ctx, id)
}

func (r *ClientRepository) CampaignIDs(ctx context.Context, clientID int64) ([]int64, error) {
	var ids []int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&CampaignEntity{}).
		Where("client_id = ?", clientID).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
