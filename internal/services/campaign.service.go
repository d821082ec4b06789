package services

import (
	"context"
	"errors"
	"time"

	"github.com/theru/fleet-ads/internal/model"
	"github.com/theru/fleet-ads/internal/repository"
)

type CampaignRepository interface {
	Create(ctx context.Context, c *model.Campaign) (*model.Campaign, error)
	GetByID(ctx context.Context, id int64) (*model.Campaign, error)
	List(ctx context.Context, f model.CampaignFilter) ([]*model.Campaign, int64, error)
	Update(ctx context.Context, id int64, p model.CampaignUpdateRequest) (*model.Campaign, error)
	UpdateStatus(ctx context.Context, id int64, to model.CampaignStatus) (*model.Campaign, error)
	ListDateActive(ctx context.Context, status model.CampaignStatus, now time.Time) ([]*model.Campaign, error)
}

// campaignClientChecker verifies the owning client exists before a campaign
// is created.
type campaignClientChecker interface {
	GetByID(ctx context.Context, id int64) (*model.Client, error)
}

type CampaignService struct {
	campaignRepo CampaignRepository
	clientRepo   campaignClientChecker
}

func NewCampaignService(campaignRepo CampaignRepository, clientRepo campaignClientChecker) *CampaignService {
	return &CampaignService{
		campaignRepo: campaignRepo,
		clientRepo:   clientRepo,
	}
}

// Create stores a new campaign. Campaigns always start out scheduled and
// only go live through an explicit status change.
func (s *CampaignService) Create(ctx context.Context, p model.CampaignCreateRequest) (*model.Campaign, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if s.clientRepo != nil {
		if _, err := s.clientRepo.GetByID(ctx, p.ClientID); err != nil {
			if errors.Is(err, repository.ErrClientNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}
	}
	return s.campaignRepo.Create(ctx, &model.Campaign{
		ClientID:     p.ClientID,
		Name:         p.Name,
		Description:  p.Description,
		StartDate:    p.StartDate,
		EndDate:      p.EndDate,
		TargetCities: p.TargetCities,
		Status:       model.CampaignStatusScheduled,
	})
}

func (s *CampaignService) Get(ctx context.Context, id int64) (*model.Campaign, error) {
	campaign, err := s.campaignRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrCampaignNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return campaign, nil
}

func (s *CampaignService) List(ctx context.Context, f model.CampaignFilter) ([]*model.Campaign, int64, error) {
	return s.campaignRepo.List(ctx, f)
}

func (s *CampaignService) Update(ctx context.Context, id int64, p model.CampaignUpdateRequest) (*model.Campaign, error) {
	campaign, err := s.campaignRepo.Update(ctx, id, p)
	if err != nil {
		if errors.Is(err, repository.ErrCampaignNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return campaign, nil
}

// ChangeStatus applies a lifecycle transition. Illegal transitions, pausing
// a scheduled campaign included, surface as model.ErrInvalidTransition.
func (s *CampaignService) ChangeStatus(ctx context.Context, id int64, to model.CampaignStatus) (*model.Campaign, error) {
	campaign, err := s.campaignRepo.UpdateStatus(ctx, id, to)
	if err != nil {
		if errors.Is(err, repository.ErrCampaignNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return campaign, nil
}

// PlayableForCity returns active campaigns whose date window contains now
// and whose targeting matches the city. Empty targeting plays fleet-wide.
func (s *CampaignService) PlayableForCity(ctx context.Context, city string, now time.Time) ([]*model.Campaign, error) {
	campaigns, err := s.campaignRepo.ListDateActive(ctx, model.CampaignStatusActive, now)
	if err != nil {
		return nil, err
	}
	matched := campaigns[:0]
	for _, c := range campaigns {
		if c.TargetsCity(city) {
			matched = append(matched, c)
		}
	}
	return matched, nil
}
