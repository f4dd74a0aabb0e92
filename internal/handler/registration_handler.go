package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lukehurtiu/community-classes-api/internal/models"
	appErrors "github.com/lukehurtiu/community-classes-api/pkg/errors"
	"github.com/lukehurtiu/community-classes-api/pkg/response"
)

type admissionService interface {
	Admit(ctx context.Context, classID, memberID string) (*models.Registration, error)
}

// RegisterRequest is the member registration payload.
type RegisterRequest struct {
	ClassID string `json:"class_id" binding:"required"`
}

// RegistrationHandler exposes the member registration endpoint.
type RegistrationHandler struct {
	admissions admissionService
}

// NewRegistrationHandler constructs RegistrationHandler.
func NewRegistrationHandler(admissions admissionService) *RegistrationHandler {
	return &RegistrationHandler{admissions: admissions}
}

// Create godoc
// @Summary Register the calling member for a class
// @Tags Registrations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body RegisterRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Router /registrations [post]
func (h *RegistrationHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	reg, err := h.admissions.Admit(c.Request.Context(), req.ClassID, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, reg)
}
