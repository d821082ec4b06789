package services

import (
	"context"
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/theru/fleet-ads/internal/export"
	"github.com/theru/fleet-ads/internal/model"
	"github.com/theru/fleet-ads/internal/repository"
	"github.com/theru/fleet-ads/pkg/prom"
)

type ImpressionRepository interface {
	Create(ctx context.Context, i *model.Impression) (*model.Impression, error)
	List(ctx context.Context, f model.ImpressionFilter) ([]*model.Impression, int64, error)
	CampaignStats(ctx context.Context, campaignID int64, from, to *time.Time) (int64, int64, error)
	CountAll(ctx context.Context) (int64, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
}

// analyticsDeviceCounter is the slice of the device repository analytics
// needs for the overview block.
type analyticsDeviceCounter interface {
	CountByStatus(ctx context.Context) (total, online, offline int64, err error)
}

type analyticsCampaignLister interface {
	List(ctx context.Context, f model.CampaignFilter) ([]*model.Campaign, int64, error)
	GetByID(ctx context.Context, id int64) (*model.Campaign, error)
}

type analyticsClientResolver interface {
	GetByID(ctx context.Context, id int64) (*model.Client, error)
	CampaignIDs(ctx context.Context, clientID int64) ([]int64, error)
}

type analyticsAdResolver interface {
	GetByID(ctx context.Context, id int64) (*model.Ad, error)
}

// ImpressionExportFields is the column layout of the impressions CSV.
var ImpressionExportFields = []export.Field{
	{Key: "id", Label: "ID"},
	{Key: "device_id", Label: "Device ID"},
	{Key: "ad_id", Label: "Ad ID"},
	{Key: "played_at", Label: "Played At"},
	{Key: "latitude", Label: "Latitude"},
	{Key: "longitude", Label: "Longitude"},
}

type AnalyticsService struct {
	impressionRepo ImpressionRepository
	deviceRepo     analyticsDeviceCounter
	campaignRepo   analyticsCampaignLister
	clientRepo     analyticsClientResolver
	adRepo         analyticsAdResolver
}

func NewAnalyticsService(
	impressionRepo ImpressionRepository,
	deviceRepo analyticsDeviceCounter,
	campaignRepo analyticsCampaignLister,
	clientRepo analyticsClientResolver,
	adRepo analyticsAdResolver,
) *AnalyticsService {
	return &AnalyticsService{
		impressionRepo: impressionRepo,
		deviceRepo:     deviceRepo,
		campaignRepo:   campaignRepo,
		clientRepo:     clientRepo,
		adRepo:         adRepo,
	}
}

// RecordImpression appends one playback event. The ad must exist; beyond
// that nothing is validated against campaign state, a device may legitimately
// finish playing an ad moments after its campaign was paused.
func (s *AnalyticsService) RecordImpression(ctx context.Context, p model.ImpressionCreateRequest) (*model.Impression, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.adRepo.GetByID(ctx, p.AdID); err != nil {
		if errors.Is(err, repository.ErrAdNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	playedAt := p.PlayedAt
	if playedAt.IsZero() {
		playedAt = time.Now().UTC()
	}

	created, err := s.impressionRepo.Create(ctx, &model.Impression{
		DeviceID:  p.DeviceID,
		AdID:      p.AdID,
		PlayedAt:  playedAt,
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
	})
	if err != nil {
		return nil, err
	}
	prom.IncCounter("impressions", "recorded_total")
	return created, nil
}

func (s *AnalyticsService) ListImpressions(ctx context.Context, f model.ImpressionFilter) ([]*model.Impression, int64, error) {
	return s.impressionRepo.List(ctx, f)
}

// Overview assembles the dashboard headline numbers.
func (s *AnalyticsService) Overview(ctx context.Context) (*model.Overview, error) {
	total, online, offline, err := s.deviceRepo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	_, totalCampaigns, err := s.campaignRepo.List(ctx, model.CampaignFilter{Limit: 1})
	if err != nil {
		return nil, err
	}
	_, activeCampaigns, err := s.campaignRepo.List(ctx, model.CampaignFilter{
		Statuses: []model.CampaignStatus{model.CampaignStatusActive},
		Limit:    1,
	})
	if err != nil {
		return nil, err
	}

	totalImpressions, err := s.impressionRepo.CountAll(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	todayImpressions, err := s.impressionRepo.CountSince(ctx, midnight)
	if err != nil {
		return nil, err
	}

	return &model.Overview{
		TotalDevices:     total,
		OnlineDevices:    online,
		OfflineDevices:   offline,
		TotalCampaigns:   totalCampaigns,
		ActiveCampaigns:  activeCampaigns,
		TotalImpressions: totalImpressions,
		TodayImpressions: todayImpressions,
	}, nil
}

// CampaignAnalytics reports impressions, reach and revenue for one campaign.
func (s *AnalyticsService) CampaignAnalytics(ctx context.Context, campaignID int64, from, to *time.Time) (*model.CampaignAnalytics, error) {
	if _, err := s.campaignRepo.GetByID(ctx, campaignID); err != nil {
		if errors.Is(err, repository.ErrCampaignNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	total, unique, err := s.impressionRepo.CampaignStats(ctx, campaignID, from, to)
	if err != nil {
		return nil, err
	}

	cents := model.RevenueCents(total)
	return &model.CampaignAnalytics{
		CampaignID:       campaignID,
		TotalImpressions: total,
		UniqueDevices:    unique,
		RevenueCents:     cents,
		Revenue:          model.FormatUSD(cents),
		From:             from,
		To:               to,
	}, nil
}

// ClientAnalytics sums the client's campaigns. The per-client totals are by
// construction the sum of the per-campaign ones.
func (s *AnalyticsService) ClientAnalytics(ctx context.Context, clientID int64) (*model.ClientAnalytics, error) {
	if _, err := s.clientRepo.GetByID(ctx, clientID); err != nil {
		if errors.Is(err, repository.ErrClientNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	ids, err := s.clientRepo.CampaignIDs(ctx, clientID)
	if err != nil {
		return nil, err
	}

	result := &model.ClientAnalytics{
		ClientID:  clientID,
		Campaigns: make([]model.CampaignAnalytics, 0, len(ids)),
	}
	for _, id := range ids {
		total, unique, err := s.impressionRepo.CampaignStats(ctx, id, nil, nil)
		if err != nil {
			return nil, err
		}
		cents := model.RevenueCents(total)
		result.Campaigns = append(result.Campaigns, model.CampaignAnalytics{
			CampaignID:       id,
			TotalImpressions: total,
			UniqueDevices:    unique,
			RevenueCents:     cents,
			Revenue:          model.FormatUSD(cents),
		})
		result.TotalImpressions += total
		result.RevenueCents += cents
	}
	result.Revenue = model.FormatUSD(result.RevenueCents)
	return result, nil
}

// ExportImpressions streams the filtered impressions as CSV.
func (s *AnalyticsService) ExportImpressions(ctx context.Context, w io.Writer, f model.ImpressionFilter) error {
	if f.Limit <= 0 {
		f.Limit = 1000
	}

	records := make([]export.Record, 0, f.Limit)
	for {
		impressions, _, err := s.impressionRepo.List(ctx, f)
		if err != nil {
			return err
		}
		for _, i := range impressions {
			records = append(records, impressionRecord(i))
		}
		if len(impressions) < f.Limit {
			break
		}
		f.Offset += f.Limit
	}

	return export.Write(w, ImpressionExportFields, records)
}

func impressionRecord(i *model.Impression) export.Record {
	rec := export.Record{
		"id":        strconv.FormatInt(i.ID, 10),
		"device_id": strconv.FormatInt(i.DeviceID, 10),
		"ad_id":     strconv.FormatInt(i.AdID, 10),
		"played_at": i.PlayedAt.UTC().Format(time.RFC3339),
		"latitude":  "",
		"longitude": "",
	}
	if i.Latitude != nil {
		rec["latitude"] = strconv.FormatFloat(*i.Latitude, 'f', -1, 64)
	}
	if i.Longitude != nil {
		rec["longitude"] = strconv.FormatFloat(*i.Longitude, 'f', -1, 64)
	}
	return rec
}
