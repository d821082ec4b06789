package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/fasthttp/router"
	"github.com/theru/fleet-ads/internal/model"
	xhttp "github.com/theru/fleet-ads/pkg/http"
)

type CampaignService interface {
	Create(ctx context.Context, p model.CampaignCreateRequest) (*model.Campaign, error)
	Get(ctx context.Context, id int64) (*model.Campaign, error)
	List(ctx context.Context, f model.CampaignFilter) ([]*model.Campaign, int64, error)
	Update(ctx context.Context, id int64, p model.CampaignUpdateRequest) (*model.Campaign, error)
	ChangeStatus(ctx context.Context, id int64, to model.CampaignStatus) (*model.Campaign, error)
}

type CampaignHandler struct {
	svc CampaignService
}

func NewCampaignHandler(campaignService CampaignService) *CampaignHandler {
	return &CampaignHandler{
		svc: campaignService,
	}
}

func RegisterCampaignRoutes(e *router.Group, h *CampaignHandler) {
	e.POST("/campaigns", h.CreateCampaign)
	e.GET("/campaigns", h.ListCampaigns)
	e.GET("/campaigns/{id}", h.GetCampaign)
	e.PATCH("/campaigns/{id}", h.UpdateCampaign)
	e.PUT("/campaigns/{id}/status", h.ChangeCampaignStatus)
}

type createCampaignRequest struct {
	ClientID     int64    `json:"client_id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	StartDate    string   `json:"start_date"`
	EndDate      string   `json:"end_date"`
	TargetCities []string `json:"target_cities"`
}

type updateCampaignRequest struct {
	Name         *string   `json:"name"`
	Description  *string   `json:"description"`
	StartDate    *string   `json:"start_date"`
	EndDate      *string   `json:"end_date"`
	TargetCities *[]string `json:"target_cities"`
}

type changeStatusRequest struct {
	Status string `json:"status"`
}

type campaignListResponse struct {
	Items []*model.Campaign `json:"items"`
	Total int64             `json:"total"`
}

func (h *CampaignHandler) CreateCampaign(ctx *xhttp.RequestCtx) {
	var req createCampaignRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	start, err := parseTime(req.StartDate)
	if err != nil {
		writeError(ctx, 400, "invalid start_date")
		return
	}
	end, err := parseTime(req.EndDate)
	if err != nil {
		writeError(ctx, 400, "invalid end_date")
		return
	}

	campaign, err := h.svc.Create(ctx, model.CampaignCreateRequest{
		ClientID:     req.ClientID,
		Name:         req.Name,
		Description:  req.Description,
		StartDate:    start,
		EndDate:      end,
		TargetCities: req.TargetCities,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, campaign)
}

func (h *CampaignHandler) ListCampaigns(ctx *xhttp.RequestCtx) {
	var f model.CampaignFilter
	if v := query(ctx, "client_id"); v != "" {
		if id, e := strconv.ParseInt(v, 10, 64); e == nil {
			f.ClientID = &id
		}
	}
	if v := query(ctx, "status"); v != "" {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				f.Statuses = append(f.Statuses, model.CampaignStatus(part))
			}
		}
	}
	f.Limit, f.Offset, f.Desc = parseLimitOffset(ctx)

	items, total, err := h.svc.List(ctx, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, campaignListResponse{Items: items, Total: total})
}

func (h *CampaignHandler) GetCampaign(ctx *xhttp.RequestCtx) {
	id, err := routeInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid campaign id")
		return
	}
	campaign, err := h.svc.Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, campaign)
}

func (h *CampaignHandler) UpdateCampaign(ctx *xhttp.RequestCtx) {
	id, err := routeInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid campaign id")
		return
	}
	var req updateCampaignRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	p := model.CampaignUpdateRequest{
		Name:         req.Name,
		Description:  req.Description,
		TargetCities: req.TargetCities,
	}
	if req.StartDate != nil {
		t, err := parseTime(*req.StartDate)
		if err != nil {
			writeError(ctx, 400, "invalid start_date")
			return
		}
		p.StartDate = &t
	}
	if req.EndDate != nil {
		t, err := parseTime(*req.EndDate)
		if err != nil {
			writeError(ctx, 400, "invalid end_date")
			return
		}
		p.EndDate = &t
	}

	campaign, err := h.svc.Update(ctx, id, p)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, campaign)
}

// ChangeCampaignStatus drives the campaign lifecycle. Illegal moves, like
// pausing a campaign that never started, come back as 400.
func (h *CampaignHandler) ChangeCampaignStatus(ctx *xhttp.RequestCtx) {
	id, err := routeInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid campaign id")
		return
	}
	var req changeStatusRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	switch model.CampaignStatus(req.Status) {
	case model.CampaignStatusActive, model.CampaignStatusPaused,
		model.CampaignStatusCompleted, model.CampaignStatusCancelled:
	default:
		writeError(ctx, 400, "unknown status "+req.Status)
		return
	}

	campaign, err := h.svc.ChangeStatus(ctx, id, model.CampaignStatus(req.Status))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, campaign)
}
