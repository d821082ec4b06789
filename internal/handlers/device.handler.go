package handlers

import (
	"context"
	"strconv"

	"github.com/fasthttp/router"
	"github.com/theru/fleet-ads/internal/model"
	xhttp "github.com/theru/fleet-ads/pkg/http"
)

type DeviceService interface {
	Get(ctx context.Context, id int64) (*model.Device, error)
	List(ctx context.Context, f model.DeviceFilter) ([]*model.Device, int64, error)
	Update(ctx context.Context, id int64, p model.DeviceUpdateRequest) (*model.Device, error)
	Delete(ctx context.Context, id int64) error
	RequestRefresh(ctx context.Context, id int64) error
}

type DeviceHandler struct {
	svc DeviceService
}

func NewDeviceHandler(deviceService DeviceService) *DeviceHandler {
	return &DeviceHandler{
		svc: deviceService,
	}
}

func RegisterDeviceRoutes(e *router.Group, h *DeviceHandler) {
	e.GET("/devices", h.ListDevices)
	e.GET("/devices/{id}", h.GetDevice)
	e.PATCH("/devices/{id}", h.UpdateDevice)
	e.DELETE("/devices/{id}", h.DeleteDevice)
	e.POST("/devices/{id}/refresh", h.RefreshDevice)
}

type deviceListResponse struct {
	Items []*model.Device `json:"items"`
	Total int64           `json:"total"`
}

type updateDeviceRequest struct {
	City             *string `json:"city"`
	DriverID         *int64  `json:"driver_id"`
	ClearDriver      bool    `json:"clear_driver"`
	VehicleRegNumber *string `json:"vehicle_reg_number"`
}

func (h *DeviceHandler) ListDevices(ctx *xhttp.RequestCtx) {
	var f model.DeviceFilter

	if v := query(ctx, "city"); v != "" {
		f.City = &v
	}
	if v := query(ctx, "status"); v != "" {
		status := model.DeviceStatus(v)
		f.Status = &status
	}
	if v := query(ctx, "driver_id"); v != "" {
		if id, e := strconv.ParseInt(v, 10, 64); e == nil {
			f.DriverID = &id
		}
	}
	f.Limit, f.Offset, f.Desc = parseLimitOffset(ctx)

	items, total, err := h.svc.List(ctx, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, deviceListResponse{Items: items, Total: total})
}

func (h *DeviceHandler) GetDevice(ctx *xhttp.RequestCtx) {
	id, err := routeInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid device id")
		return
	}
	device, err := h.svc.Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, device)
}

func (h *DeviceHandler) UpdateDevice(ctx *xhttp.RequestCtx) {
	id, err := routeInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid device id")
		return
	}
	var req updateDeviceRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	device, err := h.svc.Update(ctx, id, model.DeviceUpdateRequest{
		City:             req.City,
		DriverID:         req.DriverID,
		ClearDriver:      req.ClearDriver,
		VehicleRegNumber: req.VehicleRegNumber,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, device)
}

func (h *DeviceHandler) DeleteDevice(ctx *xhttp.RequestCtx) {
	id, err := routeInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid device id")
		return
	}
	if err := h.svc.Delete(ctx, id); err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, map[string]string{"status": "deleted"})
}

// RefreshDevice flags the device so its next heartbeat tells it to re-pull
// the playlist.
func (h *DeviceHandler) RefreshDevice(ctx *xhttp.RequestCtx) {
	id, err := routeInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid device id")
		return
	}
	if err := h.svc.RequestRefresh(ctx, id); err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, map[string]string{"status": "refresh requested"})
}
