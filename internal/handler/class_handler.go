package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lukehurtiu/community-classes-api/internal/models"
	"github.com/lukehurtiu/community-classes-api/internal/service"
	appErrors "github.com/lukehurtiu/community-classes-api/pkg/errors"
	"github.com/lukehurtiu/community-classes-api/pkg/response"
)

type classService interface {
	Create(ctx context.Context, req service.CreateClassRequest, createdBy string) (*models.CommunityClass, error)
	List(ctx context.Context) ([]models.CommunityClass, error)
	ListForMember(ctx context.Context, memberID string) ([]models.MemberClassView, error)
}

type rosterService interface {
	Export(ctx context.Context, classID, format string) (*service.RosterExport, error)
}

// ClassHandler exposes class catalog endpoints.
type ClassHandler struct {
	classes classService
	rosters rosterService
}

// NewClassHandler constructs ClassHandler.
func NewClassHandler(classes classService, rosters rosterService) *ClassHandler {
	return &ClassHandler{classes: classes, rosters: rosters}
}

// AdminList godoc
// @Summary List classes (admin view)
// @Tags Classes
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /admin/classes [get]
func (h *ClassHandler) AdminList(c *gin.Context) {
	classes, err := h.classes.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classes)
}

// Create godoc
// @Summary Create a class
// @Tags Classes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateClassRequest true "Class payload"
// @Success 201 {object} response.Envelope
// @Router /admin/classes [post]
func (h *ClassHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	class, err := h.classes.Create(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, class)
}

// MemberList godoc
// @Summary List classes annotated for the calling member
// @Tags Classes
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /classes [get]
func (h *ClassHandler) MemberList(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	views, err := h.classes.ListForMember(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views)
}

// ExportRoster godoc
// @Summary Export the registration roster for a class
// @Tags Classes
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "Class ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} binary
// @Router /admin/classes/{id}/roster/export [get]
func (h *ClassHandler) ExportRoster(c *gin.Context) {
	export, err := h.rosters.Export(c.Request.Context(), c.Param("id"), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	c.Data(http.StatusOK, export.ContentType, export.Content)
}
