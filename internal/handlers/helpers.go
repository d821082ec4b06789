package handlers

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/theru/fleet-ads/internal/model"
	"github.com/theru/fleet-ads/internal/services"
	xhttp "github.com/theru/fleet-ads/pkg/http"
	"github.com/theru/fleet-ads/pkg/logger"
)

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

// writeServiceError maps service errors onto HTTP statuses. Only errors the
// caller could have avoided are 4xx; everything else is an internal failure.
func writeServiceError(ctx *xhttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		writeError(ctx, 404, err.Error())
	case errors.Is(err, model.ErrValidation), errors.Is(err, model.ErrInvalidTransition):
		writeError(ctx, 400, err.Error())
	default:
		logger.Error("unhandled service error", "error", err)
		writeError(ctx, 500, "internal error")
	}
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

// routeInt64 reads a path parameter like {id}.
func routeInt64(ctx *xhttp.RequestCtx, name string) (int64, error) {
	v, ok := ctx.UserValue(name).(string)
	if !ok {
		return 0, errors.New("missing route parameter " + name)
	}
	return strconv.ParseInt(v, 10, 64)
}

func parseTime(s string) (time.Time, error) {
	// Accept RFC3339 or YYYY-MM-DD
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

func parseLimitOffset(ctx *xhttp.RequestCtx) (limit, offset int, desc bool) {
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			offset = n
		}
	}
	if v := query(ctx, "order"); v == "desc" || v == "DESC" {
		desc = true
	}
	return limit, offset, desc
}
