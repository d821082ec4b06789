package handlers

import (
	"context"

	"github.com/fasthttp/router"
	xhttp "github.com/theru/fleet-ads/pkg/http"
)

type AdminService interface {
	MarkOffline(ctx context.Context) (int64, error)
}

type AdminHandler struct {
	svc AdminService
}

func NewAdminHandler(adminService AdminService) *AdminHandler {
	return &AdminHandler{
		svc: adminService,
	}
}

func RegisterAdminRoutes(e *router.Group, h *AdminHandler) {
	e.POST("/admin/mark-offline", h.MarkOffline)
}

// MarkOffline runs the status sweep on demand. The periodic sweeper does the
// same thing; this endpoint exists for operators who do not want to wait.
func (h *AdminHandler) MarkOffline(ctx *xhttp.RequestCtx) {
	flipped, err := h.svc.MarkOffline(ctx)
	if err != nil {
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, map[string]int64{"marked_offline": flipped})
}
