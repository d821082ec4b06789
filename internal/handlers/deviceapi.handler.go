package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/theru/fleet-ads/internal/model"
	xhttp "github.com/theru/fleet-ads/pkg/http"
	"github.com/valyala/fasthttp"
)

const deviceKey = "device"

// DeviceAPIService is what the tablet-facing endpoints need.
type DeviceAPIService interface {
	Register(ctx context.Context, p model.DeviceRegisterRequest) (*model.Device, error)
	Authenticate(ctx context.Context, code, secret string) (*model.Device, error)
	Heartbeat(ctx context.Context, device *model.Device, p model.HeartbeatRequest) (*model.HeartbeatAck, error)
}

type PlaylistService interface {
	PlaylistForDevice(ctx context.Context, device *model.Device) ([]*model.DeviceAd, error)
}

type ImpressionRecorder interface {
	RecordImpression(ctx context.Context, p model.ImpressionCreateRequest) (*model.Impression, error)
}

type DeviceAPIHandler struct {
	devices     DeviceAPIService
	playlists   PlaylistService
	impressions ImpressionRecorder
}

func NewDeviceAPIHandler(devices DeviceAPIService, playlists PlaylistService, impressions ImpressionRecorder) *DeviceAPIHandler {
	return &DeviceAPIHandler{
		devices:     devices,
		playlists:   playlists,
		impressions: impressions,
	}
}

// RegisterDeviceAPIRoutes wires the tablet endpoints. Everything except
// registration requires the device code/secret header pair.
func RegisterDeviceAPIRoutes(e *router.Group, h *DeviceAPIHandler) {
	e.POST("/device/register", h.RegisterDevice)
	e.POST("/device/heartbeat", h.deviceAuth(h.PostHeartbeat))
	e.GET("/device/ads", h.deviceAuth(h.GetAds))
	e.POST("/device/impression", h.deviceAuth(h.PostImpression))
}

type registerDeviceRequest struct {
	Model            string `json:"model"`
	OSVersion        string `json:"os_version"`
	SerialNumber     string `json:"serial_number"`
	VehicleRegNumber string `json:"vehicle_reg_number"`
	City             string `json:"city"`
}

type registerDeviceResponse struct {
	DeviceCode      string `json:"device_code"`
	SecretKey       string `json:"secret_key"`
	PollingInterval int    `json:"polling_interval"`
}

type heartbeatRequest struct {
	BatteryLevel  *int     `json:"battery_level"`
	IsCharging    *bool    `json:"is_charging"`
	Latitude      *float64 `json:"latitude"`
	Longitude     *float64 `json:"longitude"`
	StorageFreeMB *int     `json:"storage_free_mb"`
	NetworkType   string   `json:"network_type"`
}

type impressionRequest struct {
	AdID      int64    `json:"ad_id"`
	PlayedAt  string   `json:"played_at"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// deviceAuth resolves the calling device from the X-Device-Code and
// X-Secret-Key headers and stashes it on the request.
func (h *DeviceAPIHandler) deviceAuth(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		code := string(ctx.Request.Header.Peek("X-Device-Code"))
		secret := string(ctx.Request.Header.Peek("X-Secret-Key"))

		device, err := h.devices.Authenticate(ctx, code, secret)
		if err != nil {
			writeError(ctx, 401, "device authentication failed")
			return
		}
		ctx.SetUserValue(deviceKey, device)
		next(ctx)
	}
}

func deviceFromCtx(ctx *xhttp.RequestCtx) *model.Device {
	device, _ := ctx.UserValue(deviceKey).(*model.Device)
	return device
}

// RegisterDevice provisions a tablet. The secret key is returned exactly
// once; the device must persist it.
func (h *DeviceAPIHandler) RegisterDevice(ctx *xhttp.RequestCtx) {
	var req registerDeviceRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	device, err := h.devices.Register(ctx, model.DeviceRegisterRequest{
		Model:            req.Model,
		OSVersion:        req.OSVersion,
		SerialNumber:     req.SerialNumber,
		VehicleRegNumber: req.VehicleRegNumber,
		City:             req.City,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}

	writeJSON(ctx, 201, registerDeviceResponse{
		DeviceCode:      device.DeviceCode,
		SecretKey:       device.SecretKey,
		PollingInterval: int(model.DefaultPollingInterval.Seconds()),
	})
}

func (h *DeviceAPIHandler) PostHeartbeat(ctx *xhttp.RequestCtx) {
	device := deviceFromCtx(ctx)
	if device == nil {
		writeError(ctx, 401, "device authentication failed")
		return
	}

	var req heartbeatRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	ack, err := h.devices.Heartbeat(ctx, device, model.HeartbeatRequest{
		BatteryLevel:  req.BatteryLevel,
		IsCharging:    req.IsCharging,
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
		StorageFreeMB: req.StorageFreeMB,
		NetworkType:   req.NetworkType,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, ack)
}

func (h *DeviceAPIHandler) GetAds(ctx *xhttp.RequestCtx) {
	device := deviceFromCtx(ctx)
	if device == nil {
		writeError(ctx, 401, "device authentication failed")
		return
	}

	playlist, err := h.playlists.PlaylistForDevice(ctx, device)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, map[string]any{"items": playlist})
}

func (h *DeviceAPIHandler) PostImpression(ctx *xhttp.RequestCtx) {
	device := deviceFromCtx(ctx)
	if device == nil {
		writeError(ctx, 401, "device authentication failed")
		return
	}

	var req impressionRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	p := model.ImpressionCreateRequest{
		DeviceID:  device.ID,
		AdID:      req.AdID,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	}
	if req.PlayedAt != "" {
		t, err := parseTime(req.PlayedAt)
		if err != nil {
			writeError(ctx, 400, "invalid played_at")
			return
		}
		p.PlayedAt = t
	}

	impression, err := h.impressions.RecordImpression(ctx, p)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, impression)
}
