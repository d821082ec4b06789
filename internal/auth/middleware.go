package auth

import (
	"strings"

	"github.com/valyala/fasthttp"
)

const bearerPrefix = "Bearer "

// BearerAuth validates the Authorization header and stores the caller
// identity on the request context. Requests without a valid token get 401.
func BearerAuth(secret []byte) func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			header := string(ctx.Request.Header.Peek("Authorization"))
			if !strings.HasPrefix(header, bearerPrefix) {
				unauthorized(ctx, "missing bearer token")
				return
			}

			claims, err := ParseJWT(strings.TrimPrefix(header, bearerPrefix), secret)
			if err != nil {
				unauthorized(ctx, "invalid token")
				return
			}

			role, _ := NormalizeRole(claims.Role)
			ctx.SetUserValue(contextKeyRole, role)
			ctx.SetUserValue(contextKeySubject, claims.Subject)
			next(ctx)
		}
	}
}

// RequireRole rejects requests whose stored role does not satisfy required.
// It must run after BearerAuth.
func RequireRole(required Role) func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			role := RoleFromContext(ctx)
			if role == "" {
				unauthorized(ctx, "missing bearer token")
				return
			}
			if !RoleAtLeast(role, required) {
				forbidden(ctx, "insufficient role")
				return
			}
			next(ctx)
		}
	}
}

func unauthorized(ctx *fasthttp.RequestCtx, msg string) {
	ctx.SetStatusCode(fasthttp.StatusUnauthorized)
	ctx.SetContentType("application/json")
	ctx.SetBodyString(`{"error":"` + msg + `"}`)
}

func forbidden(ctx *fasthttp.RequestCtx, msg string) {
	ctx.SetStatusCode(fasthttp.StatusForbidden)
	ctx.SetContentType("application/json")
	ctx.SetBodyString(`{"error":"` + msg + `"}`)
}
