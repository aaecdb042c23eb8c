package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lumenlms/announce-api/internal/models"
	"github.com/lumenlms/announce-api/internal/service"
	appErrors "github.com/lumenlms/announce-api/pkg/errors"
	"github.com/lumenlms/announce-api/pkg/response"
)

type announcementService interface {
	List(ctx context.Context, req service.ListAnnouncementsRequest, actor *models.JWTClaims) (*service.ListResult, error)
	Create(ctx context.Context, req service.CreateAnnouncementRequest, actor *models.JWTClaims) (*models.Announcement, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Announcement, error)
	Update(ctx context.Context, id string, req service.UpdateAnnouncementRequest, actor *models.JWTClaims) (*models.Announcement, error)
	Delete(ctx context.Context, id string, actor *models.JWTClaims) error
	PublishNow(ctx context.Context, id string, actor *models.JWTClaims) (*models.Announcement, error)
	Acknowledge(ctx context.Context, id string, actor *models.JWTClaims) error
	Dismiss(ctx context.Context, id string, actor *models.JWTClaims) error
	ListAcknowledgments(ctx context.Context, id string, actor *models.JWTClaims, limit, offset int) ([]models.Acknowledgment, *models.Pagination, error)
}

// AnnouncementHandler exposes the announcement REST surface.
type AnnouncementHandler struct {
	service announcementService
}

// NewAnnouncementHandler builds a new handler.
func NewAnnouncementHandler(service announcementService) *AnnouncementHandler {
	return &AnnouncementHandler{service: service}
}

// List godoc
// @Summary List announcements
// @Tags Announcements
// @Produce json
// @Param authorEmail query string false "Author scope (management view)"
// @Param contextType query string false "Context type"
// @Param contextId query string false "Context ID"
// @Param status query string false "Comma-separated status filter; viewers are narrowed within PUBLISHED/EXPIRED"
// @Param includeExpired query bool false "Include expired announcements"
// @Param search query string false "Free-text search over title/content"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Param sortBy query string false "starts_at or created_at"
// @Param sortOrder query string false "asc or desc"
// @Success 200 {object} response.Envelope "pagination.total_count counts rows before audience filtering"
// @Router /announcements [get]
func (h *AnnouncementHandler) List(c *gin.Context) {
	req := service.ListAnnouncementsRequest{
		AuthorEmail:    c.Query("authorEmail"),
		Status:         c.Query("status"),
		IncludeExpired: c.Query("includeExpired") == "true",
		Search:         c.Query("search"),
		Limit:          intQuery(c, "limit", 0),
		Offset:         intQuery(c, "offset", 0),
		SortBy:         c.Query("sortBy"),
		SortOrder:      c.Query("sortOrder"),
	}
	if v := c.Query("contextType"); v != "" {
		req.ContextType = &v
	}
	if v := c.Query("contextId"); v != "" {
		req.ContextID = &v
	}

	result, err := h.service.List(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := map[string]interface{}{}
	if req.AuthorEmail == "" {
		meta["unseen"] = result.Unseen
	}
	response.JSON(c, http.StatusOK, gin.H{"items": result.Items}, result.Pagination, meta)
}

// Create godoc
// @Summary Create an announcement
// @Tags Announcements
// @Accept json
// @Produce json
// @Param payload body service.CreateAnnouncementRequest true "Announcement payload"
// @Success 201 {object} response.Envelope
// @Router /announcements [post]
func (h *AnnouncementHandler) Create(c *gin.Context) {
	var req service.CreateAnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid announcement payload"))
		return
	}
	ann, err := h.service.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, ann)
}

// Get godoc
// @Summary Get an announcement (author only)
// @Tags Announcements
// @Produce json
// @Param id path string true "Announcement ID"
// @Success 200 {object} response.Envelope
// @Router /announcements/{id} [get]
func (h *AnnouncementHandler) Get(c *gin.Context) {
	ann, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ann, nil)
}

// Update godoc
// @Summary Update an announcement (author only)
// @Tags Announcements
// @Accept json
// @Produce json
// @Param id path string true "Announcement ID"
// @Param payload body service.UpdateAnnouncementRequest true "Partial update payload"
// @Success 200 {object} response.Envelope
// @Router /announcements/{id} [patch]
func (h *AnnouncementHandler) Update(c *gin.Context) {
	var req service.UpdateAnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid announcement payload"))
		return
	}
	ann, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ann, nil)
}

// Delete godoc
// @Summary Delete an announcement and its acknowledgments (author only)
// @Tags Announcements
// @Produce json
// @Param id path string true "Announcement ID"
// @Success 200 {object} response.Envelope
// @Router /announcements/{id} [delete]
func (h *AnnouncementHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"success": true}, nil)
}

// PublishNow godoc
// @Summary Publish an announcement immediately, superseding its schedule
// @Tags Announcements
// @Produce json
// @Param id path string true "Announcement ID"
// @Success 200 {object} response.Envelope
// @Router /announcements/{id}/publish-now [post]
func (h *AnnouncementHandler) PublishNow(c *gin.Context) {
	ann, err := h.service.PublishNow(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ann, nil)
}

// Acknowledge godoc
// @Summary Acknowledge an announcement
// @Tags Announcements
// @Produce json
// @Param id path string true "Announcement ID"
// @Success 200 {object} response.Envelope
// @Router /announcements/{id}/acknowledge [post]
func (h *AnnouncementHandler) Acknowledge(c *gin.Context) {
	if err := h.service.Acknowledge(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"success": true}, nil)
}

// Dismiss godoc
// @Summary Dismiss an announcement
// @Tags Announcements
// @Produce json
// @Param id path string true "Announcement ID"
// @Success 200 {object} response.Envelope
// @Router /announcements/{id}/dismiss [post]
func (h *AnnouncementHandler) Dismiss(c *gin.Context) {
	if err := h.service.Dismiss(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"success": true}, nil)
}

// ListAcknowledgments godoc
// @Summary List acknowledgment records for an announcement (author only)
// @Tags Announcements
// @Produce json
// @Param id path string true "Announcement ID"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /announcements/{id}/acknowledgments [get]
func (h *AnnouncementHandler) ListAcknowledgments(c *gin.Context) {
	records, pagination, err := h.service.ListAcknowledgments(
		c.Request.Context(), c.Param("id"), claimsFromContext(c),
		intQuery(c, "limit", 0), intQuery(c, "offset", 0))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"items": records}, pagination)
}

func intQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
