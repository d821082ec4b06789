package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/theru/fleet-ads/internal/model"
	xhttp "github.com/theru/fleet-ads/pkg/http"
)

type DriverService interface {
	Create(ctx context.Context, p model.DriverCreateRequest) (*model.Driver, error)
	Get(ctx context.Context, id int64) (*model.Driver, error)
	List(ctx context.Context, f model.DriverFilter) ([]*model.Driver, int64, error)
	Update(ctx context.Context, id int64, p model.DriverUpdateRequest) (*model.Driver, error)
	Delete(ctx context.Context, id int64) error
}

type DriverHandler struct {
	svc DriverService
}

func NewDriverHandler(driverService DriverService) *DriverHandler {
	return &DriverHandler{
		svc: driverService,
	}
}

func RegisterDriverRoutes(e *router.Group, h *DriverHandler) {
	e.POST("/drivers", h.CreateDriver)
	e.GET("/drivers", h.ListDrivers)
	e.GET("/drivers/{id}", h.GetDriver)
	e.PATCH("/drivers/{id}", h.UpdateDriver)
	e.DELETE("/drivers/{id}", h.DeleteDriver)
}

type createDriverRequest struct {
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	LicenseNumber string `json:"license_number"`
	City          string `json:"city"`
}

type updateDriverRequest struct {
	Name          *string `json:"name"`
	Phone         *string `json:"phone"`
	Email         *string `json:"email"`
	LicenseNumber *string `json:"license_number"`
	City          *string `json:"city"`
	Status        *string `json:"status"`
}

type driverListResponse struct {
	Items []*model.Driver `json:"items"`
	Total int64           `json:"total"`
}

func (h *DriverHandler) CreateDriver(ctx *xhttp.RequestCtx) {
	var req createDriverRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	driver, err := h.svc.Create(ctx, model.DriverCreateRequest{
		Name:          req.Name,
		Phone:         req.Phone,
		Email:         req.Email,
		LicenseNumber: req.LicenseNumber,
		City:          req.City,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, driver)
}

func (h *DriverHandler) ListDrivers(ctx *xhttp.RequestCtx) {
	var f model.DriverFilter
	if v := query(ctx, "city"); v != "" {
		f.City = &v
	}
	if v := query(ctx, "status"); v != "" {
		status := model.DriverStatus(v)
		f.Status = &status
	}
	f.Limit, f.Offset, f.Desc = parseLimitOffset(ctx)

	items, total, err := h.svc.List(ctx, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, driverListResponse{Items: items, Total: total})
}

func (h *DriverHandler) GetDriver(ctx *xhttp.RequestCtx) {
	id, err := routeInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid driver id")
		return
	}
	driver, err := h.svc.Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, driver)
}

func (h *DriverHandler) UpdateDriver(ctx *xhttp.RequestCtx) {
	id, err := routeInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid driver id")
		return
	}
	var req updateDriverRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	p := model.DriverUpdateRequest{
		Name:          req.Name,
		Phone:         req.Phone,
		Email:         req.Email,
		LicenseNumber: req.LicenseNumber,
		City:          req.City,
	}
	if req.Status != nil {
		status := model.DriverStatus(*req.Status)
		p.Status = &status
	}
	driver, err := h.svc.Update(ctx, id, p)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, driver)
}

// DeleteDriver removes the driver; their devices stay registered with
// driver_id cleared.
func (h *DriverHandler) DeleteDriver(ctx *xhttp.RequestCtx) {
	id, err := routeInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid driver id")
		return
	}
	if err := h.svc.Delete(ctx, id); err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, map[string]string{"status": "deleted"})
}
