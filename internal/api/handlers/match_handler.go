package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	pgrepo "github.com/qiranapp/qiran/internal/repositories/postgres"
	"github.com/qiranapp/qiran/internal/services"
	"github.com/qiranapp/qiran/internal/utils"
)

type MatchHandler struct {
	svc services.MatchService
}

func NewMatchHandler(svc services.MatchService) *MatchHandler {
	return &MatchHandler{svc: svc}
}

type GenerateMatchesRequest struct {
	Limit   int `json:"limit,omitempty"`
	Filters struct {
		AgeMin          int      `json:"age_min,omitempty"`
		AgeMax          int      `json:"age_max,omitempty"`
		EducationLevels []string `json:"education_levels,omitempty"`
		ReligiousLevels []string `json:"religious_levels,omitempty"`
	} `json:"filters,omitempty"`
}

func (h *MatchHandler) Generate(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req GenerateMatchesRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, utils.E(utils.CodeInvalidArgument, "MatchHandler.Generate", "invalid request body", err))
			return
		}
	}

	result, err := h.svc.Rank(c.Request.Context(), userID, services.RankRequest{
		Limit: req.Limit,
		Filter: pgrepo.CandidateFilter{
			AgeMin:          req.Filters.AgeMin,
			AgeMax:          req.Filters.AgeMax,
			EducationLevels: req.Filters.EducationLevels,
			ReligiousLevels: req.Filters.ReligiousLevels,
		},
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type RecordInteractionRequest struct {
	TargetID string `json:"target_id"`
	Kind     string `json:"kind"` // like|pass|view
}

func (h *MatchHandler) RecordInteraction(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req RecordInteractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "MatchHandler.RecordInteraction", "invalid request body", err))
		return
	}

	if err := h.svc.RecordInteraction(c.Request.Context(), userID, req.TargetID, req.Kind); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"recorded": true})
}
