package repository

import (
	"context"
	"testing"
	"time"

	"github.com/theru/fleet-ads/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedImpressions creates a campaign with one ad and records the given number
// of plays per device id.
func seedImpressions(t *testing.T, db *testDB, clientID int64, plays map[int64]int) (campaignID, adID int64) {
	t.Helper()
	ctx := context.Background()

	campaignRepo := NewCampaignRepository(db.DB)
	adRepo := NewAdRepository(db.DB)
	impressionRepo := NewImpressionRepository(db.DB)

	now := time.Now().UTC()
	campaign, err := campaignRepo.Create(ctx, &model.Campaign{
		ClientID:  clientID,
		Name:      "Seeded",
		StartDate: now.AddDate(0, 0, -1),
		EndDate:   now.AddDate(0, 0, 1),
		Status:    model.CampaignStatusActive,
	})
	require.NoError(t, err)

	ad, err := adRepo.Create(ctx, &model.Ad{
		CampaignID:      campaign.ID,
		FileName:        "spot.mp4",
		FileURL:         "ads/seeded/spot.mp4",
		DurationSeconds: 30,
		IsActive:        true,
	})
	require.NoError(t, err)

	for deviceID, n := range plays {
		for i := 0; i < n; i++ {
			_, err := impressionRepo.Create(ctx, &model.Impression{
				DeviceID: deviceID,
				AdID:     ad.ID,
				PlayedAt: now.Add(-time.Duration(i) * time.Minute),
			})
			require.NoError(t, err)
		}
	}
	return campaign.ID, ad.ID
}

func TestImpressionRepository_CampaignStats(t *testing.T) {
	db := setupTestDB(t)
	repo := NewImpressionRepository(db.DB)
	ctx := context.Background()

	campaignID, _ := seedImpressions(t, db, 1, map[int64]int{
		101: 3,
		102: 2,
	})
	otherCampaignID, _ := seedImpressions(t, db, 1, map[int64]int{
		101: 4,
	})

	t.Run("totals and unique devices", func(t *testing.T) {
		total, unique, err := repo.CampaignStats(ctx, campaignID, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
		assert.Equal(t, int64(2), unique)
	})

	t.Run("campaigns do not leak into each other", func(t *testing.T) {
		total, unique, err := repo.CampaignStats(ctx, otherCampaignID, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(4), total)
		assert.Equal(t, int64(1), unique)
	})

	t.Run("empty campaign", func(t *testing.T) {
		total, unique, err := repo.CampaignStats(ctx, 99999, nil, nil)
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.Zero(t, unique)
	})
}

func TestImpressionRepository_PerClientSum(t *testing.T) {
	db := setupTestDB(t)
	clientRepo := NewClientRepository(db.DB)
	impressionRepo := NewImpressionRepository(db.DB)
	ctx := context.Background()

	client, err := clientRepo.Create(ctx, &model.Client{Name: "Acme", Status: model.ClientStatusActive})
	require.NoError(t, err)

	seedImpressions(t, db, client.ID, map[int64]int{101: 3})
	seedImpressions(t, db, client.ID, map[int64]int{102: 2, 103: 1})
	seedImpressions(t, db, client.ID+1, map[int64]int{104: 7})

	ids, err := clientRepo.CampaignIDs(ctx, client.ID)
	require.NoError(t, err)
	require.Len(t, ids, 2)

	var sum int64
	for _, id := range ids {
		total, _, err := impressionRepo.CampaignStats(ctx, id, nil, nil)
		require.NoError(t, err)
		sum += total
	}
	assert.Equal(t, int64(6), sum)
	assert.Equal(t, model.RevenueCents(6), model.RatePerImpressionCents*6)
}

func TestImpressionRepository_List(t *testing.T) {
	db := setupTestDB(t)
	repo := NewImpressionRepository(db.DB)
	ctx := context.Background()

	campaignID, adID := seedImpressions(t, db, 1, map[int64]int{
		101: 2,
		102: 1,
	})

	t.Run("filter by campaign", func(t *testing.T) {
		impressions, total, err := repo.List(ctx, model.ImpressionFilter{CampaignID: &campaignID, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, impressions, 3)
	})

	t.Run("filter by device", func(t *testing.T) {
		deviceID := int64(101)
		impressions, total, err := repo.List(ctx, model.ImpressionFilter{DeviceID: &deviceID, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		for _, i := range impressions {
			assert.Equal(t, deviceID, i.DeviceID)
		}
	})

	t.Run("filter by ad", func(t *testing.T) {
		impressions, total, err := repo.List(ctx, model.ImpressionFilter{AdID: &adID, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, impressions, 3)
	})

	t.Run("time window excludes older plays", func(t *testing.T) {
		from := time.Now().UTC().Add(-30 * time.Second)
		impressions, total, err := repo.List(ctx, model.ImpressionFilter{
			CampaignID: &campaignID,
			From:       &from,
			Limit:      10,
		})
		require.NoError(t, err)
		// one play per device lands at "now", the rest are minutes older
		assert.Equal(t, int64(2), total)
		assert.Len(t, impressions, 2)
	})
}

func TestImpressionRepository_Counts(t *testing.T) {
	db := setupTestDB(t)
	repo := NewImpressionRepository(db.DB)
	ctx := context.Background()

	seedImpressions(t, db, 1, map[int64]int{101: 2, 102: 1})

	total, err := repo.CountAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	recent, err := repo.CountSince(ctx, time.Now().UTC().Add(-30*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(2), recent)
}
