package services

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/theru/fleet-ads/internal/model"
	"github.com/theru/fleet-ads/internal/repository"
	"github.com/theru/fleet-ads/internal/storage"
	"github.com/theru/fleet-ads/pkg/logger"
)

type AdRepository interface {
	Create(ctx context.Context, a *model.Ad) (*model.Ad, error)
	GetByID(ctx context.Context, id int64) (*model.Ad, error)
	ListByCampaign(ctx context.Context, campaignID int64) ([]*model.Ad, error)
	ListActiveByCampaigns(ctx context.Context, campaignIDs []int64) ([]*model.Ad, error)
	SetActive(ctx context.Context, id int64, active bool) error
	Delete(ctx context.Context, id int64) error
}

// adCampaignResolver is the slice of the campaign service the ad service
// needs.
type adCampaignResolver interface {
	Get(ctx context.Context, id int64) (*model.Campaign, error)
	PlayableForCity(ctx context.Context, city string, now time.Time) ([]*model.Campaign, error)
}

type AdService struct {
	adRepo    AdRepository
	campaigns adCampaignResolver
	store     storage.ObjectStore
}

func NewAdService(adRepo AdRepository, campaigns adCampaignResolver, store storage.ObjectStore) *AdService {
	return &AdService{
		adRepo:    adRepo,
		campaigns: campaigns,
		store:     store,
	}
}

// Upload validates the creative, stores the file and records the ad row.
// The object key, not a URL, is persisted; playback URLs are signed per
// request.
func (s *AdService) Upload(ctx context.Context, p model.AdCreateRequest, file io.Reader) (*model.Ad, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.campaigns.Get(ctx, p.CampaignID); err != nil {
		return nil, err
	}

	key := storage.BuildAdKey(p.CampaignID, p.FileName, time.Now().UTC())
	if err := s.store.Put(ctx, key, file, p.Size, p.ContentType); err != nil {
		return nil, err
	}

	created, err := s.adRepo.Create(ctx, &model.Ad{
		CampaignID:      p.CampaignID,
		FileName:        p.FileName,
		FileURL:         key,
		DurationSeconds: p.DurationSeconds,
		IsActive:        true,
	})
	if err != nil {
		// The row failed, drop the orphaned object.
		if rmErr := s.store.Remove(ctx, key); rmErr != nil {
			logger.Error("remove orphaned ad object failed", "key", key, "error", rmErr)
		}
		return nil, err
	}
	return created, nil
}

func (s *AdService) Get(ctx context.Context, id int64) (*model.Ad, error) {
	ad, err := s.adRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrAdNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return ad, nil
}

func (s *AdService) ListByCampaign(ctx context.Context, campaignID int64) ([]*model.Ad, error) {
	if _, err := s.campaigns.Get(ctx, campaignID); err != nil {
		return nil, err
	}
	return s.adRepo.ListByCampaign(ctx, campaignID)
}

func (s *AdService) SetActive(ctx context.Context, id int64, active bool) error {
	err := s.adRepo.SetActive(ctx, id, active)
	if errors.Is(err, repository.ErrAdNotFound) {
		return ErrNotFound
	}
	return err
}

// Delete removes the ad row first and then the stored object. A dangling
// object is logged but does not fail the call.
func (s *AdService) Delete(ctx context.Context, id int64) error {
	ad, err := s.adRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrAdNotFound) {
			return ErrNotFound
		}
		return err
	}
	if err := s.adRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrAdNotFound) {
			return ErrNotFound
		}
		return err
	}
	if err := s.store.Remove(ctx, ad.FileURL); err != nil {
		logger.Error("remove ad object failed", "key", ad.FileURL, "error", err)
	}
	return nil
}

// PlaylistForDevice builds the list of ads a device should play right now:
// active ads of date-active campaigns targeting the device's city, each with
// a fresh signed URL.
func (s *AdService) PlaylistForDevice(ctx context.Context, device *model.Device) ([]*model.DeviceAd, error) {
	campaigns, err := s.campaigns.PlayableForCity(ctx, device.City, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(campaigns))
	for i, c := range campaigns {
		ids[i] = c.ID
	}

	ads, err := s.adRepo.ListActiveByCampaigns(ctx, ids)
	if err != nil {
		return nil, err
	}

	playlist := make([]*model.DeviceAd, 0, len(ads))
	for _, ad := range ads {
		url, err := s.store.PresignGet(ctx, ad.FileURL)
		if err != nil {
			logger.Error("presign ad failed", "ad_id", ad.ID, "error", err)
			continue
		}
		playlist = append(playlist, &model.DeviceAd{
			ID:              ad.ID,
			CampaignID:      ad.CampaignID,
			FileName:        ad.FileName,
			URL:             url,
			DurationSeconds: ad.DurationSeconds,
		})
	}
	return playlist, nil
}
