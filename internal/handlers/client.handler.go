package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/theru/fleet-ads/internal/model"
	xhttp "github.com/theru/fleet-ads/pkg/http"
)

type ClientService interface {
	Create(ctx context.Context, p model.ClientCreateRequest) (*model.Client, error)
	Get(ctx context.Context, id int64) (*model.Client, error)
	List(ctx context.Context, f model.ClientFilter) ([]*model.Client, int64, error)
	Update(ctx context.Context, id int64, p model.ClientUpdateRequest) (*model.Client, error)
}

type ClientHandler struct {
	svc ClientService
}

func NewClientHandler(clientService ClientService) *ClientHandler {
	return &ClientHandler{
		svc: clientService,
	}
}

func RegisterClientRoutes(e *router.Group, h *ClientHandler) {
	e.POST("/clients", h.CreateClient)
	e.GET("/clients", h.ListClients)
	e.GET("/clients/{id}", h.GetClient)
	e.PATCH("/clients/{id}", h.UpdateClient)
}

type createClientRequest struct {
	Name          string `json:"name"`
	ContactPerson string `json:"contact_person"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
}

type updateClientRequest struct {
	Name          *string `json:"name"`
	ContactPerson *string `json:"contact_person"`
	Email         *string `json:"email"`
	Phone         *string `json:"phone"`
	Status        *string `json:"status"`
}

type clientListResponse struct {
	Items []*model.Client `json:"items"`
	Total int64           `json:"total"`
}

func (h *ClientHandler) CreateClient(ctx *xhttp.RequestCtx) {
	var req createClientRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	client, err := h.svc.Create(ctx, model.ClientCreateRequest{
		Name:          req.Name,
		ContactPerson: req.ContactPerson,
		Email:         req.Email,
		Phone:         req.Phone,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, client)
}

func (h *ClientHandler) ListClients(ctx *xhttp.RequestCtx) {
	var f model.ClientFilter
	if v := query(ctx, "status"); v != "" {
		status := model.ClientStatus(v)
		f.Status = &status
	}
	f.Limit, f.Offset, f.Desc = parseLimitOffset(ctx)

	items, total, err := h.svc.List(ctx, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, clientListResponse{Items: items, Total: total})
}

func (h *ClientHandler) GetClient(ctx *xhttp.RequestCtx) {
	id, err := routeInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid client id")
		return
	}
	client, err := h.svc.Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, client)
}

func (h *ClientHandler) UpdateClient(ctx *xhttp.RequestCtx) {
	id, err := routeInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid client id")
		return
	}
	var req updateClientRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	p := model.ClientUpdateRequest{
		Name:          req.Name,
		ContactPerson: req.ContactPerson,
		Email:         req.Email,
		Phone:         req.Phone,
	}
	if req.Status != nil {
		status := model.ClientStatus(*req.Status)
		p.Status = &status
	}
	client, err := h.svc.Update(ctx, id, p)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, client)
}
