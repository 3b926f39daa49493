package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/qiranapp/qiran/internal/models"
	"github.com/qiranapp/qiran/internal/services"
	"github.com/qiranapp/qiran/internal/utils"
	"gorm.io/datatypes"
)

type ProfileHandler struct {
	svc services.ProfileService
}

func NewProfileHandler(svc services.ProfileService) *ProfileHandler {
	return &ProfileHandler{svc: svc}
}

func (h *ProfileHandler) Me(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	p, err := h.svc.GetMe(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, p)
}

type UpdateProfileRequest struct {
	FullName         *string `json:"full_name,omitempty"`
	Gender           *string `json:"gender,omitempty"`
	Age              *int    `json:"age,omitempty"`
	City             *string `json:"city,omitempty"`
	Country          *string `json:"country,omitempty"`
	ReligiousLevel   *string `json:"religious_level,omitempty"`
	EducationLevel   *string `json:"education_level,omitempty"`
	Occupation       *string `json:"occupation,omitempty"`
	MarriageTimeline *string `json:"marriage_timeline,omitempty"`
	Bio              *string `json:"bio,omitempty"`

	Interests    *[]string `json:"interests,omitempty"`
	Languages    *[]string `json:"languages,omitempty"`
	FamilyValues *[]string `json:"family_values,omitempty"`

	// JSONB preference snapshot (raw)
	Preferences *json.RawMessage `json:"preferences,omitempty"`
}

func (h *ProfileHandler) Update(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ProfileHandler.Update", "invalid request body", err))
		return
	}

	// Load existing (if not found => create new)
	existing, err := h.svc.GetMe(c.Request.Context(), userID)
	if err != nil {
		if utils.IsCode(err, utils.CodeNotFound) {
			existing = &models.Profile{UserID: userID}
		} else {
			writeError(c, err)
			return
		}
	}

	// Apply partial updates
	if req.FullName != nil {
		existing.FullName = *req.FullName
	}
	if req.Gender != nil {
		existing.Gender = *req.Gender
	}
	if req.Age != nil {
		existing.Age = *req.Age
	}
	if req.City != nil {
		existing.City = *req.City
	}
	if req.Country != nil {
		existing.Country = *req.Country
	}
	if req.ReligiousLevel != nil {
		existing.ReligiousLevel = *req.ReligiousLevel
	}
	if req.EducationLevel != nil {
		existing.EducationLevel = *req.EducationLevel
	}
	if req.Occupation != nil {
		existing.Occupation = *req.Occupation
	}
	if req.MarriageTimeline != nil {
		existing.MarriageTimeline = *req.MarriageTimeline
	}
	if req.Bio != nil {
		existing.Bio = *req.Bio
	}
	if req.Interests != nil {
		existing.Interests = *req.Interests
	}
	if req.Languages != nil {
		existing.Languages = *req.Languages
	}
	if req.FamilyValues != nil {
		existing.FamilyValues = *req.FamilyValues
	}
	if req.Preferences != nil {
		existing.Preferences = datatypes.JSON(*req.Preferences)
	}

	existing.UpdatedAt = time.Now().UTC()

	if err := h.svc.Upsert(c.Request.Context(), existing); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, existing)
}
