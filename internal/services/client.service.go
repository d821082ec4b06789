package services

import (
	"context"
	"errors"

	"github.com/theru/fleet-ads/internal/model"
	"github.com/theru/fleet-ads/internal/repository"
)

type ClientRepository interface {
	Create(ctx context.Context, c *model.Client) (*model.Client, error)
	GetByID(ctx context.Context, id int64) (*model.Client, error)
	List(ctx context.Context, f model.ClientFilter) ([]*model.Client, int64, error)
	Update(ctx context.Context, id int64, p model.ClientUpdateRequest) (*model.Client, error)
}

type ClientService struct {
	clientRepo ClientRepository
}

func NewClientService(clientRepo ClientRepository) *ClientService {
	return &ClientService{
		clientRepo: clientRepo,
	}
}

func (s *ClientService) Create(ctx context.Context, p model.ClientCreateRequest) (*model.Client, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return s.clientRepo.Create(ctx, &model.Client{
		Name:          p.Name,
		ContactPerson: p.ContactPerson,
		Email:         p.Email,
		Phone:         p.Phone,
		Status:        model.ClientStatusActive,
	})
}

func (s *ClientService) Get(ctx context.Context, id int64) (*model.Client, error) {
	client, err := s.clientRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrClientNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return client, nil
}

func (s *ClientService) List(ctx context.Context, f model.ClientFilter) ([]*model.Client, int64, error) {
	return s.clientRepo.List(ctx, f)
}

func (s *ClientService) Update(ctx context.Context, id int64, p model.ClientUpdateRequest) (*model.Client, error) {
	client, err := s.clientRepo.Update(ctx, id, p)
	if err != nil {
		if errors.Is(err, repository.ErrClientNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return client, nil
}
