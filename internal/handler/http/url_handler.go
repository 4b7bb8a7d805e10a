package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/rajweepmondal/url-shortener/internal/models"
	"github.com/rajweepmondal/url-shortener/internal/service"
	"github.com/rajweepmondal/url-shortener/pkg/auth"
)

// URLHandler handles HTTP requests for URL operations
type URLHandler struct {
	urlService *service.URLService
	logger     *zap.Logger
}

// NewURLHandler creates a new HTTP URL handler
func NewURLHandler(urlService *service.URLService, logger *zap.Logger) *URLHandler {
	return &URLHandler{
		urlService: urlService,
		logger:     logger,
	}
}

// CreateShortURLRequest represents the request body for creating a short URL
type CreateShortURLRequest struct {
	LongURL     string  `json:"long_url" validate:"required,url"`
	CustomAlias *string `json:"custom_alias,omitempty"`
	ExpiryDays  *int    `json:"expiry_days,omitempty"`
}

// CreateShortURLResponse represents the response for creating a short URL
type CreateShortURLResponse struct {
	Mapping   *MappingResponse `json:"mapping"`
	ShortURL  string           `json:"short_url"`
	WasReused bool             `json:"was_reused"`
}

// MappingResponse represents a URL mapping in HTTP responses
type MappingResponse struct {
	ShortCode      string     `json:"short_code"`
	LongURL        string     `json:"long_url"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
	AccessCount    int64      `json:"access_count"`
	IsCustomAlias  bool       `json:"is_custom_alias"`
	Owner          *string    `json:"owner,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status       string            `json:"status"`
	Timestamp    time.Time         `json:"timestamp"`
	Version      string            `json:"version"`
	Dependencies map[string]string `json:"dependencies"`
}

// AliasCheckResponse mirrors models.AliasCheckResult on the wire.
type AliasCheckResponse struct {
	Available   bool     `json:"available"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// CreateShortURL handles POST /api/v1/urls
func (h *URLHandler) CreateShortURL(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB

	var req CreateShortURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "too large") {
			h.writeErrorResponse(w, http.StatusBadRequest, "invalid_request", "request body too large")
			return
		}
		h.writeErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.ExpiryDays != nil && *req.ExpiryDays < 0 {
		h.writeErrorResponse(w, http.StatusBadRequest, "invalid_request", "expiry_days cannot be negative")
		return
	}

	p := auth.PrincipalFromContext(r.Context())
	createReq := models.CreateURLRequest{
		LongURL:     req.LongURL,
		CustomAlias: req.CustomAlias,
		OwnerID:     p.OwnerIDPtr(),
		ExpiryDays:  req.ExpiryDays,
	}

	result, appErr := h.urlService.Create(r.Context(), p, createReq)
	if appErr != nil {
		h.writeAppError(w, appErr)
		return
	}

	response := &CreateShortURLResponse{
		Mapping:   h.mappingToResponse(result.Mapping),
		ShortURL:  result.ShortURL,
		WasReused: result.WasReused,
	}

	h.writeJSONResponse(w, http.StatusCreated, response)
}

// RedirectURL handles GET /{shortCode} - redirect to the destination URL,
// recording an access asynchronously.
func (h *URLHandler) RedirectURL(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	shortCode := vars["shortCode"]
	if shortCode == "" {
		h.writeErrorResponse(w, http.StatusBadRequest, "invalid_request", "short code is required")
		return
	}

	click := h.extractClickEvent(r)
	m, appErr := h.urlService.Resolve(r.Context(), shortCode, click)
	if appErr != nil {
		h.writeAppError(w, appErr)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, m.LongURL, http.StatusFound)
}

// GetURLInfo handles GET /api/v1/urls/{shortCode}
func (h *URLHandler) GetURLInfo(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	shortCode := vars["shortCode"]

	p := auth.PrincipalFromContext(r.Context())
	m, appErr := h.urlService.Info(r.Context(), p, shortCode)
	if appErr != nil {
		h.writeAppError(w, appErr)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, h.mappingToResponse(m))
}

// ListURLs handles GET /api/v1/urls
func (h *URLHandler) ListURLs(w http.ResponseWriter, r *http.Request) {
	pageSize := 20
	if ps := r.URL.Query().Get("page_size"); ps != "" {
		if parsed, err := strconv.Atoi(ps); err == nil && parsed > 0 && parsed <= 100 {
			pageSize = parsed
		}
	}

	page := 1
	if pg := r.URL.Query().Get("page"); pg != "" {
		if parsed, err := strconv.Atoi(pg); err == nil && parsed > 0 {
			page = parsed
		}
	}

	sortField := r.URL.Query().Get("sort_by")
	if sortField == "" {
		sortField = "created_at"
	}
	sortDesc := r.URL.Query().Get("sort_desc") != "false"

	p := auth.PrincipalFromContext(r.Context())
	result, appErr := h.urlService.List(r.Context(), p,
		models.ListFilters{Search: r.URL.Query().Get("search")},
		models.SortSpec{Field: sortField, Desc: sortDesc},
		models.Pagination{Page: page, PageSize: pageSize},
	)
	if appErr != nil {
		h.writeAppError(w, appErr)
		return
	}

	items := make([]*MappingResponse, len(result.Items))
	for i, m := range result.Items {
		items[i] = h.mappingToResponse(m)
	}

	response := map[string]interface{}{
		"urls":          items,
		"total_items":   result.TotalItems,
		"total_pages":   result.TotalPages,
		"page":          result.Page,
		"page_size":     result.PageSize,
		"has_next_page": result.HasNextPage,
		"has_prev_page": result.HasPrevPage,
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// UpdateURL handles PUT /api/v1/urls/{shortCode}
func (h *URLHandler) UpdateURL(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	shortCode := vars["shortCode"]

	var req struct {
		ExpiresAt *time.Time `json:"expires_at,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	p := auth.PrincipalFromContext(r.Context())
	m, appErr := h.urlService.Update(r.Context(), p, shortCode, req.ExpiresAt)
	if appErr != nil {
		h.writeAppError(w, appErr)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, h.mappingToResponse(m))
}

// DeleteURL handles DELETE /api/v1/urls/{shortCode}
func (h *URLHandler) DeleteURL(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	shortCode := vars["shortCode"]

	p := auth.PrincipalFromContext(r.Context())
	if appErr := h.urlService.Delete(r.Context(), p, shortCode); appErr != nil {
		h.writeAppError(w, appErr)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"short_code": shortCode,
		"deletedAt":  time.Now().UTC(),
	})
}

// GetAnalytics handles GET /api/v1/analytics/{shortCode}
func (h *URLHandler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	shortCode := vars["shortCode"]

	p := auth.PrincipalFromContext(r.Context())
	stats, appErr := h.urlService.Analytics(r.Context(), p, shortCode)
	if appErr != nil {
		h.writeAppError(w, appErr)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, stats)
}

// CheckAlias handles GET /api/v1/aliases/{alias}/availability
func (h *URLHandler) CheckAlias(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	alias := vars["alias"]

	result, appErr := h.urlService.CheckAlias(r.Context(), alias)
	if appErr != nil {
		h.writeAppError(w, appErr)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, AliasCheckResponse{
		Available:   result.Available,
		Suggestions: result.Suggestions,
	})
}

// GetHealth handles GET /api/v1/health
func (h *URLHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	response := &HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   "1.0.0",
		Dependencies: map[string]string{
			"database": "healthy",
			"cache":    "healthy",
		},
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// Helper methods

func (h *URLHandler) mappingToResponse(m *models.URLMapping) *MappingResponse {
	return &MappingResponse{
		ShortCode:      m.ShortCode,
		LongURL:        m.LongURL,
		CreatedAt:      m.CreatedAt,
		ExpiresAt:      m.ExpiresAt,
		LastAccessedAt: m.LastAccessedAt,
		AccessCount:    m.AccessCount,
		IsCustomAlias:  m.IsCustomAlias,
		Owner:          m.OwnerID,
	}
}

func (h *URLHandler) extractClickEvent(r *http.Request) models.ClickEvent {
	return models.ClickEvent{
		Timestamp: time.Now(),
		SourceIP:  h.getClientIP(r),
		UserAgent: r.Header.Get("User-Agent"),
		Referer:   r.Header.Get("Referer"),
	}
}

func (h *URLHandler) getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	if idx := strings.LastIndex(r.RemoteAddr, ":"); idx != -1 {
		return r.RemoteAddr[:idx]
	}
	return r.RemoteAddr
}

func (h *URLHandler) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", zap.Error(err))
	}
}

func (h *URLHandler) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) {
	h.writeJSONResponse(w, statusCode, &ErrorResponse{
		Error:   errorCode,
		Message: message,
		Code:    statusCode,
	})
}

func (h *URLHandler) writeAppError(w http.ResponseWriter, err *models.AppError) {
	h.writeErrorResponse(w, err.HTTPStatus, string(err.Code), err.Message)
}
