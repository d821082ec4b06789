package handlers

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"time"

	"github.com/fasthttp/router"
	"github.com/theru/fleet-ads/internal/model"
	xhttp "github.com/theru/fleet-ads/pkg/http"
)

type AnalyticsService interface {
	Overview(ctx context.Context) (*model.Overview, error)
	CampaignAnalytics(ctx context.Context, campaignID int64, from, to *time.Time) (*model.CampaignAnalytics, error)
	ClientAnalytics(ctx context.Context, clientID int64) (*model.ClientAnalytics, error)
	ListImpressions(ctx context.Context, f model.ImpressionFilter) ([]*model.Impression, int64, error)
	ExportImpressions(ctx context.Context, w io.Writer, f model.ImpressionFilter) error
}

type AnalyticsHandler struct {
	svc AnalyticsService
}

func NewAnalyticsHandler(analyticsService AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{
		svc: analyticsService,
	}
}

func RegisterAnalyticsRoutes(e *router.Group, h *AnalyticsHandler) {
	e.GET("/analytics/overview", h.GetOverview)
	e.GET("/analytics/campaigns/{id}", h.GetCampaignAnalytics)
	e.GET("/analytics/clients/{id}", h.GetClientAnalytics)
	e.GET("/analytics/impressions", h.ListImpressions)
	e.GET("/analytics/impressions/export", h.ExportImpressions)
}

type impressionListResponse struct {
	Items []*model.Impression `json:"items"`
	Total int64               `json:"total"`
}

func (h *AnalyticsHandler) GetOverview(ctx *xhttp.RequestCtx) {
	overview, err := h.svc.Overview(ctx)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, overview)
}

func (h *AnalyticsHandler) GetCampaignAnalytics(ctx *xhttp.RequestCtx) {
	id, err := routeInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid campaign id")
		return
	}

	var from, to *time.Time
	if v := query(ctx, "from"); v != "" {
		if t, e := parseTime(v); e == nil {
			from = &t
		}
	}
	if v := query(ctx, "to"); v != "" {
		if t, e := parseTime(v); e == nil {
			to = &t
		}
	}

	stats, err := h.svc.CampaignAnalytics(ctx, id, from, to)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, stats)
}

func (h *AnalyticsHandler) GetClientAnalytics(ctx *xhttp.RequestCtx) {
	id, err := routeInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid client id")
		return
	}
	stats, err := h.svc.ClientAnalytics(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, stats)
}

func impressionFilter(ctx *xhttp.RequestCtx) model.ImpressionFilter {
	var f model.ImpressionFilter
	if v := query(ctx, "device_id"); v != "" {
		if id, e := strconv.ParseInt(v, 10, 64); e == nil {
			f.DeviceID = &id
		}
	}
	if v := query(ctx, "ad_id"); v != "" {
		if id, e := strconv.ParseInt(v, 10, 64); e == nil {
			f.AdID = &id
		}
	}
	if v := query(ctx, "campaign_id"); v != "" {
		if id, e := strconv.ParseInt(v, 10, 64); e == nil {
			f.CampaignID = &id
		}
	}
	if v := query(ctx, "from"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.From = &t
		}
	}
	if v := query(ctx, "to"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.To = &t
		}
	}
	f.Limit, f.Offset, f.Desc = parseLimitOffset(ctx)
	return f
}

func (h *AnalyticsHandler) ListImpressions(ctx *xhttp.RequestCtx) {
	items, total, err := h.svc.ListImpressions(ctx, impressionFilter(ctx))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, impressionListResponse{Items: items, Total: total})
}

// ExportImpressions streams the filtered impressions as a CSV download.
func (h *AnalyticsHandler) ExportImpressions(ctx *xhttp.RequestCtx) {
	var buf bytes.Buffer
	if err := h.svc.ExportImpressions(ctx, &buf, impressionFilter(ctx)); err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.Response.Header.Set("Content-Type", "text/csv; charset=utf-8")
	ctx.Response.Header.Set("Content-Disposition", `attachment; filename="impressions.csv"`)
	ctx.Response.SetStatusCode(200)
	ctx.Response.SetBodyRaw(buf.Bytes())
}
