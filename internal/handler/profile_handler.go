package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/cms-timetable/internal/models"
	"github.com/noah-isme/cms-timetable/pkg/response"
)

type profileService interface {
	Profile(ctx context.Context) (*models.StudentProfile, error)
	Assemblies(ctx context.Context) ([]models.Assembly, error)
}

// ProfileHandler exposes the student records of the CMS account.
type ProfileHandler struct {
	service profileService
}

// NewProfileHandler constructs the handler.
func NewProfileHandler(svc profileService) *ProfileHandler {
	return &ProfileHandler{service: svc}
}

// Profile godoc
// @Summary Student profile
// @Tags Student
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /profile [get]
func (h *ProfileHandler) Profile(c *gin.Context) {
	profile, err := h.service.Profile(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile)
}

// Assemblies godoc
// @Summary Student assemblies
// @Tags Student
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /assemblies [get]
func (h *ProfileHandler) Assemblies(c *gin.Context) {
	assemblies, err := h.service.Assemblies(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assemblies, map[string]interface{}{"count": len(assemblies)})
}
