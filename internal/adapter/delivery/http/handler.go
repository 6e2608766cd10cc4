package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/internal/usecase"
)

func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "pong")
}

type linkUseCase interface {
	Create(ctx context.Context, in usecase.CreateLinkInput) (*entity.Link, error)
	Get(ctx context.Context, owner, shortCode string) (*entity.Link, error)
	UpdatePolicy(ctx context.Context, owner, shortCode string, in usecase.UpdateLinkInput) (*entity.Link, error)
	Stats(ctx context.Context, owner, shortCode string, from, to time.Time) (*entity.ClickStats, error)
	List(ctx context.Context, owner string, in usecase.ListLinksInput) (*entity.LinkPage, error)
	ShortURL(shortCode string) string
	LookupShortURL(ctx context.Context, shortCode string) (string, error)
}

type linkHandler struct {
	useCase  linkUseCase
	validate *validator.Validate
}

func newLinkHandler(useCase linkUseCase, validate *validator.Validate) *linkHandler {
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &linkHandler{
		useCase:  useCase,
		validate: validate,
	}
}

// decode reads and validates a JSON body, writing the error response itself.
func (h *linkHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		if errors.Is(err, io.EOF) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, emptyRequestBodyResponse)
			return false
		}

		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, invalidRequestBodyResponse)
		return false
	}

	if err := h.validate.Struct(v); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, validationErrorResponse(err))
		return false
	}

	return true
}

// renderError maps use case errors to responses.
func renderError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		status int
		resp   errorResponse
	)

	switch {
	case errors.Is(err, entity.ErrInvalidDestination):
		status, resp = http.StatusBadRequest, invalidDestinationResponse
	case errors.Is(err, entity.ErrInvalidShortCode):
		status, resp = http.StatusBadRequest, invalidShortCodeResponse
	case errors.Is(err, entity.ErrReservedShortCode):
		status, resp = http.StatusBadRequest, reservedShortCodeResponse
	case errors.Is(err, entity.ErrInvalidPolicy):
		status, resp = http.StatusBadRequest, invalidPolicyResponse
	case errors.Is(err, entity.ErrInvalidLinkStatus):
		status, resp = http.StatusBadRequest, invalidLinkStatusResponse
	case errors.Is(err, entity.ErrInvalidTimeRange):
		status, resp = http.StatusBadRequest, invalidTimeRangeResponse
	case errors.Is(err, entity.ErrShortCodeExists):
		status, resp = http.StatusConflict, shortCodeExistsResponse
	case errors.Is(err, entity.ErrClickRejected):
		status, resp = http.StatusConflict, concurrentClickResponse
	case errors.Is(err, entity.ErrLinkNotFound):
		status, resp = http.StatusNotFound, linkNotFoundResponse
	case errors.Is(err, entity.ErrCodeSpaceExhausted):
		httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))
		status, resp = http.StatusServiceUnavailable, codeSpaceExhaustedResponse
	default:
		httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))
		status, resp = http.StatusInternalServerError, serverErrorResponse
	}

	render.Status(r, status)
	render.JSON(w, r, resp)
}

func (h *linkHandler) createLink(w http.ResponseWriter, r *http.Request) {
	var req createLinkRequest

	if !h.decode(w, r, &req) {
		return
	}

	link, err := h.useCase.Create(r.Context(), req.toInput(ownerFromContext(r.Context())))
	if err != nil {
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toLinkResponse(link, h.useCase.ShortURL(link.ShortCode)))
}

func (h *linkHandler) getLink(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortCode")

	link, err := h.useCase.Get(r.Context(), ownerFromContext(r.Context()), shortCode)
	if err != nil {
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toLinkResponse(link, h.useCase.ShortURL(link.ShortCode)))
}

func (h *linkHandler) updateLink(w http.ResponseWriter, r *http.Request) {
	var req updateLinkRequest

	if !h.decode(w, r, &req) {
		return
	}

	shortCode := chi.URLParam(r, "shortCode")

	link, err := h.useCase.UpdatePolicy(r.Context(), ownerFromContext(r.Context()), shortCode, req.toInput())
	if err != nil {
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toLinkResponse(link, h.useCase.ShortURL(link.ShortCode)))
}

func (h *linkHandler) getStats(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortCode")

	from, err := parseTimeParam(r.URL.Query().Get("from"))
	if err != nil {
		renderError(w, r, fmt.Errorf("from: %w", entity.ErrInvalidTimeRange))
		return
	}

	to, err := parseTimeParam(r.URL.Query().Get("to"))
	if err != nil {
		renderError(w, r, fmt.Errorf("to: %w", entity.ErrInvalidTimeRange))
		return
	}

	stats, err := h.useCase.Stats(r.Context(), ownerFromContext(r.Context()), shortCode, from, to)
	if err != nil {
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toStatsResponse(stats))
}

func (h *linkHandler) listLinks(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()

	q := listLinksQuery{
		Status: values.Get("status"),
		Search: values.Get("search"),
	}

	var err error
	if q.Page, err = parseIntParam(values.Get("page")); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, invalidQueryResponse)
		return
	}
	if q.PageSize, err = parseIntParam(values.Get("page_size")); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, invalidQueryResponse)
		return
	}

	if err := h.validate.Struct(q); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, validationErrorResponse(err))
		return
	}

	page, err := h.useCase.List(r.Context(), ownerFromContext(r.Context()), q.toInput())
	if err != nil {
		renderError(w, r, err)
		return
	}

	resp := listLinksResponse{
		Links: make([]linkResponse, 0, len(page.Links)),
		Total: page.Total,
		Page:  max(q.Page, 1),
		Summary: summaryResponse{
			TotalLinks:  page.Summary.TotalLinks,
			ActiveLinks: page.Summary.ActiveLinks,
			TotalClicks: page.Summary.TotalClicks,
		},
	}
	for _, link := range page.Links {
		resp.Links = append(resp.Links, toLinkResponse(link, h.useCase.ShortURL(link.ShortCode)))
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

func (h *linkHandler) getShortURL(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortCode")

	shortURL, err := h.useCase.LookupShortURL(r.Context(), shortCode)
	if err != nil {
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, shortURLResponse{
		ShortCode: shortCode,
		ShortURL:  shortURL,
	})
}

// parseIntParam parses an optional integer query parameter. Empty means zero.
func parseIntParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

// parseTimeParam accepts RFC 3339 timestamps and plain dates. Empty means unset.
func parseTimeParam(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}

	return time.Parse(time.DateOnly, s)
}
