package http

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/internal/usecase"
)

type linkResolver interface {
	Resolve(ctx context.Context, shortCode, password string, rc entity.RequestContext) (*usecase.Resolution, error)
}

var denyStatuses = map[entity.DenyReason]int{
	entity.DenyPasswordRequired:  http.StatusUnauthorized,
	entity.DenyPasswordIncorrect: http.StatusForbidden,
	entity.DenyExpired:           http.StatusGone,
	entity.DenyClickLimitReached: http.StatusGone,
	entity.DenyInactive:          http.StatusGone,
}

type redirectHandler struct {
	resolver linkResolver
}

func newRedirectHandler(resolver linkResolver) *redirectHandler {
	return &redirectHandler{resolver: resolver}
}

// redirect resolves the short code and sends the client to its destination.
// The password is read from the query string or a submitted form.
func (h *redirectHandler) redirect(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortCode")

	res, err := h.resolver.Resolve(r.Context(), shortCode, passwordFromRequest(r), requestContext(r))
	if err != nil {
		renderError(w, r, err)
		return
	}

	if !res.Allowed() {
		status, ok := denyStatuses[res.Reason]
		if !ok {
			status = http.StatusForbidden
		}

		render.Status(r, status)
		render.JSON(w, r, denyResponse(res.Reason))
		return
	}

	http.Redirect(w, r, res.Destination, http.StatusFound)
}

func requestContext(r *http.Request) entity.RequestContext {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}

	return entity.RequestContext{
		IP:        ip,
		UserAgent: r.UserAgent(),
		Referrer:  r.Referer(),
		Time:      time.Now(),
	}
}
