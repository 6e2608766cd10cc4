package http

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/internal/usecase"
)

const statusError = "error"

// createLinkRequest is the body of a shortening request.
type createLinkRequest struct {
	OriginalURL string     `json:"original_url" validate:"required,url,max=2048"`
	CustomCode  string     `json:"custom_code" validate:"omitempty,min=4,max=32"`
	Title       string     `json:"title" validate:"max=255"`
	Password    string     `json:"password" validate:"max=72"`
	ExpiresAt   *time.Time `json:"expires_at"`
	MaxClicks   *int64     `json:"max_clicks" validate:"omitempty,gt=0"`
}

func (req createLinkRequest) toInput(owner string) usecase.CreateLinkInput {
	return usecase.CreateLinkInput{
		OriginalURL: req.OriginalURL,
		CustomCode:  req.CustomCode,
		Title:       req.Title,
		Password:    req.Password,
		ExpiresAt:   req.ExpiresAt,
		MaxClicks:   req.MaxClicks,
		OwnerID:     owner,
	}
}

// updateLinkRequest is the body of an owner edit. Omitted fields stay unchanged.
type updateLinkRequest struct {
	OriginalURL    *string    `json:"original_url" validate:"omitempty,url,max=2048"`
	Title          *string    `json:"title" validate:"omitempty,max=255"`
	Password       *string    `json:"password" validate:"omitempty,min=1,max=72"`
	ClearPassword  bool       `json:"clear_password"`
	ExpiresAt      *time.Time `json:"expires_at"`
	ClearExpiresAt bool       `json:"clear_expires_at"`
	MaxClicks      *int64     `json:"max_clicks" validate:"omitempty,gt=0"`
	ClearMaxClicks bool       `json:"clear_max_clicks"`
	IsActive       *bool      `json:"is_active"`
}

func (req updateLinkRequest) toInput() usecase.UpdateLinkInput {
	return usecase.UpdateLinkInput{
		OriginalURL:    req.OriginalURL,
		Title:          req.Title,
		Password:       req.Password,
		ClearPassword:  req.ClearPassword,
		ExpiresAt:      req.ExpiresAt,
		ClearExpiresAt: req.ClearExpiresAt,
		MaxClicks:      req.MaxClicks,
		ClearMaxClicks: req.ClearMaxClicks,
		IsActive:       req.IsActive,
	}
}

// linkResponse describes a link. The password hash never leaves the service.
type linkResponse struct {
	ID          int64      `json:"id"`
	ShortCode   string     `json:"short_code"`
	ShortURL    string     `json:"short_url"`
	OriginalURL string     `json:"original_url"`
	Title       string     `json:"title,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	MaxClicks   *int64     `json:"max_clicks,omitempty"`
	HasPassword bool       `json:"has_password"`
	IsActive    bool       `json:"is_active"`
	ClickCount  int64      `json:"click_count"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func toLinkResponse(link *entity.Link, shortURL string) linkResponse {
	return linkResponse{
		ID:          link.ID,
		ShortCode:   link.ShortCode,
		ShortURL:    shortURL,
		OriginalURL: link.OriginalURL,
		Title:       link.Title,
		ExpiresAt:   link.ExpiresAt,
		MaxClicks:   link.MaxClicks,
		HasPassword: link.HasPassword(),
		IsActive:    link.IsActive,
		ClickCount:  link.ClickCount,
		CreatedAt:   link.CreatedAt,
		UpdatedAt:   link.UpdatedAt,
	}
}

// listLinksQuery holds the query parameters of an owner listing.
type listLinksQuery struct {
	Status   string `json:"status" validate:"omitempty,oneof=active inactive expired"`
	Search   string `json:"search" validate:"max=255"`
	Page     int    `json:"page" validate:"gte=0"`
	PageSize int    `json:"page_size" validate:"gte=0,lte=100"`
}

func (q listLinksQuery) toInput() usecase.ListLinksInput {
	return usecase.ListLinksInput{
		Status:   entity.LinkStatus(q.Status),
		Search:   q.Search,
		Page:     q.Page,
		PageSize: q.PageSize,
	}
}

type summaryResponse struct {
	TotalLinks  int64 `json:"total_links"`
	ActiveLinks int64 `json:"active_links"`
	TotalClicks int64 `json:"total_clicks"`
}

// listLinksResponse is one page of an owner listing.
type listLinksResponse struct {
	Links   []linkResponse  `json:"links"`
	Total   int64           `json:"total"`
	Page    int             `json:"page"`
	Summary summaryResponse `json:"summary"`
}

type shortURLResponse struct {
	ShortCode string `json:"short_code"`
	ShortURL  string `json:"short_url"`
}

type bucketResponse struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

func toBucketResponses(buckets []entity.Bucket) []bucketResponse {
	resp := make([]bucketResponse, 0, len(buckets))
	for _, b := range buckets {
		resp = append(resp, bucketResponse{Key: b.Key, Count: b.Count})
	}
	return resp
}

// statsResponse holds the click analytics of a link.
type statsResponse struct {
	ShortCode      string           `json:"short_code"`
	TotalClicks    int64            `json:"total_clicks"`
	UniqueVisitors int64            `json:"unique_visitors"`
	From           time.Time        `json:"from"`
	To             time.Time        `json:"to"`
	Daily          []bucketResponse `json:"daily"`
	Countries      []bucketResponse `json:"countries"`
	Devices        []bucketResponse `json:"devices"`
	Browsers       []bucketResponse `json:"browsers"`
	OSes           []bucketResponse `json:"oses"`
	Referrers      []bucketResponse `json:"referrers"`
}

func toStatsResponse(stats *entity.ClickStats) statsResponse {
	return statsResponse{
		ShortCode:      stats.ShortCode,
		TotalClicks:    stats.TotalClicks,
		UniqueVisitors: stats.UniqueVisitors,
		From:           stats.From,
		To:             stats.To,
		Daily:          toBucketResponses(stats.Daily),
		Countries:      toBucketResponses(stats.Countries),
		Devices:        toBucketResponses(stats.Devices),
		Browsers:       toBucketResponses(stats.Browsers),
		OSes:           toBucketResponses(stats.OSes),
		Referrers:      toBucketResponses(stats.Referrers),
	}
}

// validationError represents an individual validation error.
type validationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// errorResponse represents a structured error response.
type errorResponse struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Reason  string            `json:"reason,omitempty"`
	Errors  []validationError `json:"errors,omitempty"`
}

var (
	emptyRequestBodyResponse = errorResponse{
		Status:  statusError,
		Message: "empty request body",
	}

	invalidRequestBodyResponse = errorResponse{
		Status:  statusError,
		Message: "invalid request body",
	}

	invalidDestinationResponse = errorResponse{
		Status:  statusError,
		Message: "destination must be an absolute http or https url",
	}

	invalidShortCodeResponse = errorResponse{
		Status:  statusError,
		Message: "short code must be 4 to 32 letters, digits, '-' or '_'",
	}

	reservedShortCodeResponse = errorResponse{
		Status:  statusError,
		Message: "short code is reserved",
	}

	invalidPolicyResponse = errorResponse{
		Status:  statusError,
		Message: "invalid expiration, click limit or password",
	}

	invalidQueryResponse = errorResponse{
		Status:  statusError,
		Message: "invalid query parameters",
	}

	invalidLinkStatusResponse = errorResponse{
		Status:  statusError,
		Message: "status must be active, inactive or expired",
	}

	invalidTimeRangeResponse = errorResponse{
		Status:  statusError,
		Message: "invalid time range",
	}

	shortCodeExistsResponse = errorResponse{
		Status:  statusError,
		Message: "short code already taken",
	}

	codeSpaceExhaustedResponse = errorResponse{
		Status:  statusError,
		Message: "could not allocate a short code, try again later",
	}

	linkNotFoundResponse = errorResponse{
		Status:  statusError,
		Message: "link not found",
	}

	concurrentClickResponse = errorResponse{
		Status:  statusError,
		Message: "link changed during resolution, try again",
	}

	unauthorizedResponse = errorResponse{
		Status:  statusError,
		Message: "unauthorized",
	}

	serverErrorResponse = errorResponse{
		Status:  statusError,
		Message: "server error occurred",
	}
)

var denyMessages = map[entity.DenyReason]string{
	entity.DenyInactive:          "link is inactive",
	entity.DenyExpired:           "link has expired",
	entity.DenyClickLimitReached: "link reached its click limit",
	entity.DenyPasswordRequired:  "password required",
	entity.DenyPasswordIncorrect: "incorrect password",
}

func denyResponse(reason entity.DenyReason) errorResponse {
	return errorResponse{
		Status:  statusError,
		Message: denyMessages[reason],
		Reason:  string(reason),
	}
}

// messageForTag returns a user-friendly message based on the validation tag.
func messageForTag(tag string) string {
	switch tag {
	case "required":
		return "this field is required"
	case "url":
		return "invalid url"
	case "min":
		return "value is too short"
	case "max":
		return "value is too long"
	case "gt":
		return "value must be positive"
	case "gte":
		return "value is too small"
	case "lte":
		return "value is too large"
	case "oneof":
		return "value is not allowed"
	default:
		return "invalid value"
	}
}

// getValidationErrors processes validation errors and returns a list of validationError.
func getValidationErrors(err error) []validationError {
	var validationErrs []validationError

	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		for _, e := range errs {
			validationErrs = append(validationErrs, validationError{
				Field:   e.Field(),
				Message: messageForTag(e.Tag()),
			})
		}
	}

	return validationErrs
}

// validationErrorResponse constructs an errorResponse for validation errors.
func validationErrorResponse(err error) errorResponse {
	return errorResponse{
		Status:  statusError,
		Message: "validation error",
		Errors:  getValidationErrors(err),
	}
}
