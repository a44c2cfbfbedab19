package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/trial-match-server/internal/domain"
)

// searchParams binds GET /api/trials/search
type searchParams struct {
	Condition      string `form:"condition"`
	Keywords       string `form:"keywords"`
	MaxResults     int    `form:"max_results,default=20" binding:"min=1,max=100"`
	RecruitingOnly bool   `form:"recruiting_only,default=true"`
}

// matchParams binds the query of POST /api/matching/match
type matchParams struct {
	Condition string  `form:"condition" binding:"required"`
	MaxTrials int     `form:"max_trials" binding:"min=1,max=50"`
	MinScore  float64 `form:"min_score" binding:"min=0,max=1"`
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": s.config.MCP.ServerName,
		"version": s.config.MCP.ServerVersion,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, s.health())
}

func (s *Server) handleSearchTrials(c *gin.Context) {
	var params searchParams
	if err := c.ShouldBindQuery(&params); err != nil {
		s.writeError(c, badRequest("query", err))
		return
	}

	params.Condition = strings.TrimSpace(params.Condition)
	params.Keywords = strings.TrimSpace(params.Keywords)
	if params.Condition == "" && params.Keywords == "" {
		s.writeError(c, domain.NewValidationError("condition", "At least one of 'condition' or 'keywords' must be provided", nil))
		return
	}

	trials, err := s.matching.SearchTrials(c.Request.Context(), domain.TrialQuery{
		Condition:      params.Condition,
		Keywords:       params.Keywords,
		MaxResults:     params.MaxResults,
		RecruitingOnly: params.RecruitingOnly,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, trials)
}

func (s *Server) handleGetTrial(c *gin.Context) {
	trial, err := s.matching.GetTrial(c.Request.Context(), c.Param("nct_id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, trial)
}

func (s *Server) handleMatchPatient(c *gin.Context) {
	params := matchParams{
		MaxTrials: s.config.Matching.DefaultMaxTrials,
		MinScore:  s.config.Matching.DefaultMinScore,
	}
	if err := c.ShouldBindQuery(&params); err != nil {
		s.writeError(c, badRequest("query", err))
		return
	}

	var patient domain.PatientRecord
	if err := c.ShouldBindJSON(&patient); err != nil {
		s.writeError(c, badRequest("patient", err))
		return
	}

	results, err := s.matching.MatchCondition(c.Request.Context(), &patient, params.Condition, params.MaxTrials, params.MinScore)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, results)
}

func (s *Server) handleMatchTrial(c *gin.Context) {
	var patient domain.PatientRecord
	if err := c.ShouldBindJSON(&patient); err != nil {
		s.writeError(c, badRequest("patient", err))
		return
	}

	result, err := s.matching.MatchTrial(c.Request.Context(), &patient, c.Param("nct_id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleExportCSV(c *gin.Context) {
	var results []domain.MatchResult
	if err := c.ShouldBindJSON(&results); err != nil {
		s.writeError(c, badRequest("matches", err))
		return
	}

	data, err := ExportCSV(results)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+CSVExportFilename)
	c.Data(http.StatusOK, "text/csv", data)
}

func (s *Server) handleExportJSON(c *gin.Context) {
	var results []domain.MatchResult
	if err := c.ShouldBindJSON(&results); err != nil {
		s.writeError(c, badRequest("matches", err))
		return
	}

	data, err := ExportJSON(results)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+JSONExportFilename)
	c.Data(http.StatusOK, "application/json", data)
}
