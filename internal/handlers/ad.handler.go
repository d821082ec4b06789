package handlers

import (
	"context"
	"io"
	"strconv"

	"github.com/fasthttp/router"
	"github.com/theru/fleet-ads/internal/model"
	xhttp "github.com/theru/fleet-ads/pkg/http"
)

type AdService interface {
	Upload(ctx context.Context, p model.AdCreateRequest, file io.Reader) (*model.Ad, error)
	Get(ctx context.Context, id int64) (*model.Ad, error)
	ListByCampaign(ctx context.Context, campaignID int64) ([]*model.Ad, error)
	SetActive(ctx context.Context, id int64, active bool) error
	Delete(ctx context.Context, id int64) error
}

type AdHandler struct {
	svc AdService
}

func NewAdHandler(adService AdService) *AdHandler {
	return &AdHandler{
		svc: adService,
	}
}

func RegisterAdRoutes(e *router.Group, h *AdHandler) {
	e.GET("/campaigns/{id}/ads", h.ListCampaignAds)
	e.POST("/campaigns/{id}/ads", h.UploadAd)
	e.PATCH("/ads/{id}", h.SetAdActive)
	e.DELETE("/ads/{id}", h.DeleteAd)
}

type setAdActiveRequest struct {
	IsActive bool `json:"is_active"`
}

func (h *AdHandler) ListCampaignAds(ctx *xhttp.RequestCtx) {
	campaignID, err := routeInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid campaign id")
		return
	}
	ads, err := h.svc.ListByCampaign(ctx, campaignID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, map[string]any{"items": ads})
}

// UploadAd takes a multipart form: "file" holds the video, "duration_seconds"
// the playback length the dashboard measured.
func (h *AdHandler) UploadAd(ctx *xhttp.RequestCtx) {
	campaignID, err := routeInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid campaign id")
		return
	}

	header, err := ctx.FormFile("file")
	if err != nil {
		writeError(ctx, 400, "file field is required")
		return
	}
	duration, err := strconv.Atoi(string(ctx.FormValue("duration_seconds")))
	if err != nil {
		writeError(ctx, 400, "duration_seconds is required")
		return
	}

	file, err := header.Open()
	if err != nil {
		writeError(ctx, 400, "cannot read uploaded file")
		return
	}
	defer file.Close()

	ad, err := h.svc.Upload(ctx, model.AdCreateRequest{
		CampaignID:      campaignID,
		FileName:        header.Filename,
		ContentType:     header.Header.Get("Content-Type"),
		Size:            header.Size,
		DurationSeconds: duration,
	}, file)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, ad)
}

func (h *AdHandler) SetAdActive(ctx *xhttp.RequestCtx) {
	id, err := routeInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid ad id")
		return
	}
	var req setAdActiveRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if err := h.svc.SetActive(ctx, id, req.IsActive); err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, map[string]bool{"is_active": req.IsActive})
}

// DeleteAd removes the ad row and its stored object.
func (h *AdHandler) DeleteAd(ctx *xhttp.RequestCtx) {
	id, err := routeInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid ad id")
		return
	}
	if err := h.svc.Delete(ctx, id); err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, map[string]string{"status": "deleted"})
}
