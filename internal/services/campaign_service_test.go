package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/theru/fleet-ads/internal/model"
)

type MockCampaignRepository struct {
	mock.Mock
}

func (m *MockCampaignRepository) Create(ctx context.Context, c *model.Campaign) (*model.Campaign, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Campaign), args.Error(1)
}

func (m *MockCampaignRepository) GetByID(ctx context.Context, id int64) (*model.Campaign, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Campaign), args.Error(1)
}

func (m *MockCampaignRepository) List(ctx context.Context, f model.CampaignFilter) ([]*model.Campaign, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Campaign), args.Get(1).(int64), args.Error(2)
}

func (m *MockCampaignRepository) Update(ctx context.Context, id int64, p model.CampaignUpdateRequest) (*model.Campaign, error) {
	args := m.Called(ctx, id, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Campaign), args.Error(1)
}

func (m *MockCampaignRepository) UpdateStatus(ctx context.Context, id int64, to model.CampaignStatus) (*model.Campaign, error) {
	args := m.Called(ctx, id, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Campaign), args.Error(1)
}

func (m *MockCampaignRepository) ListDateActive(ctx context.Context, status model.CampaignStatus, now time.Time) ([]*model.Campaign, error) {
	args := m.Called(ctx, status, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Campaign), args.Error(1)
}

type MockClientChecker struct {
	mock.Mock
}

func (m *MockClientChecker) GetByID(ctx context.Context, id int64) (*model.Client, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Client), args.Error(1)
}

func TestCampaignService_Create(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("new campaigns start scheduled", func(t *testing.T) {
		repo := new(MockCampaignRepository)
		clients := new(MockClientChecker)
		service := NewCampaignService(repo, clients)

		clients.On("GetByID", ctx, int64(1)).Return(&model.Client{ID: 1}, nil).Once()

		var stored *model.Campaign
		repo.On("Create", ctx, mock.AnythingOfType("*model.Campaign")).
			Run(func(args mock.Arguments) { stored = args.Get(1).(*model.Campaign) }).
			Return(&model.Campaign{ID: 1}, nil).Once()

		_, err := service.Create(ctx, model.CampaignCreateRequest{
			ClientID:  1,
			Name:      "Summer Push",
			StartDate: now,
			EndDate:   now.AddDate(0, 1, 0),
		})
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, model.CampaignStatusScheduled, stored.Status)
	})

	t.Run("end before start is rejected", func(t *testing.T) {
		service := NewCampaignService(new(MockCampaignRepository), new(MockClientChecker))

		_, err := service.Create(ctx, model.CampaignCreateRequest{
			ClientID:  1,
			Name:      "Backwards",
			StartDate: now,
			EndDate:   now.AddDate(0, 0, -1),
		})
		assert.Error(t, err)
	})

	t.Run("unknown client", func(t *testing.T) {
		repo := new(MockCampaignRepository)
		clients := new(MockClientChecker)
		service := NewCampaignService(repo, clients)

		clients.On("GetByID", ctx, int64(99)).Return(nil, ErrNotFound).Once()

		_, err := service.Create(ctx, model.CampaignCreateRequest{
			ClientID:  99,
			Name:      "Orphan",
			StartDate: now,
			EndDate:   now.AddDate(0, 1, 0),
		})
		assert.Error(t, err)
	})
}

func TestCampaignService_PlayableForCity(t *testing.T) {
	ctx := context.Background()
	repo := new(MockCampaignRepository)
	service := NewCampaignService(repo, nil)

	now := time.Now().UTC()
	repo.On("ListDateActive", ctx, model.CampaignStatusActive, mock.AnythingOfType("time.Time")).
		Return([]*model.Campaign{
			{ID: 1, TargetCities: []string{"tehran"}},
			{ID: 2, TargetCities: []string{"isfahan"}},
			{ID: 3},
		}, nil)

	campaigns, err := service.PlayableForCity(ctx, "tehran", now)
	require.NoError(t, err)
	require.Len(t, campaigns, 2)
	assert.Equal(t, int64(1), campaigns[0].ID)
	assert.Equal(t, int64(3), campaigns[1].ID, "untargeted campaigns play everywhere")
}
