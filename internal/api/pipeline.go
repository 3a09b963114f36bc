package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/johanesalxd/data-clean-room-demo/internal/response"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// StartRunRequest represents a generation run request
type StartRunRequest struct {
	TargetDate  string `json:"target_date" binding:"required"`
	TableSuffix string `json:"table_suffix"`
}

// StartRun starts a generation run for a target date
func (h *Handler) StartRun(c *gin.Context) {
	var req StartRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorJSON(c, http.StatusBadRequest, "Invalid request format: "+err.Error())
		return
	}

	if _, err := time.Parse("2006-01-02", req.TargetDate); err != nil {
		response.ErrorJSON(c, http.StatusBadRequest, "target_date must be formatted as YYYY-MM-DD")
		return
	}

	run, err := h.pipeline.StartRun(req.TargetDate, req.TableSuffix)
	if err != nil {
		response.ErrorJSON(c, http.StatusInternalServerError, "Failed to start run: "+err.Error())
		return
	}

	c.JSON(http.StatusAccepted, response.Success(run))
}

// ListRuns returns recent pipeline runs
func (h *Handler) ListRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	runs, err := h.pipeline.ListRuns(limit)
	if err != nil {
		response.ErrorJSON(c, http.StatusInternalServerError, "Failed to list runs: "+err.Error())
		return
	}

	response.SuccessJSON(c, runs)
}

// GetRun returns one pipeline run by ID
func (h *Handler) GetRun(c *gin.Context) {
	run, err := h.pipeline.GetRun(c.Param("id"))
	if err != nil {
		response.ErrorJSON(c, http.StatusNotFound, err.Error())
		return
	}

	response.SuccessJSON(c, run)
}

// LastRun returns the cached summary of the most recent run
func (h *Handler) LastRun(c *gin.Context) {
	cached, err := h.locks.GetLastRun(c.Request.Context())
	if err != nil {
		if err == redis.Nil {
			response.ErrorJSON(c, http.StatusNotFound, "No run has completed yet")
			return
		}
		response.ErrorJSON(c, http.StatusInternalServerError, "Failed to read last run: "+err.Error())
		return
	}

	var summary map[string]interface{}
	if err := json.Unmarshal([]byte(cached), &summary); err != nil {
		response.ErrorJSON(c, http.StatusInternalServerError, "Failed to decode last run: "+err.Error())
		return
	}

	response.SuccessJSON(c, summary)
}

// HashEmails adds and populates hashed_email columns on the join tables
func (h *Handler) HashEmails(c *gin.Context) {
	results, err := h.hashing.AddHashedEmailColumns(c.Request.Context())
	if err != nil {
		response.ErrorJSON(c, http.StatusInternalServerError, "Failed to hash emails: "+err.Error())
		return
	}

	response.SuccessJSON(c, results)
}

// Diagnostic runs the referential spot check between provider transactions
// and the merchant snapshot
func (h *Handler) Diagnostic(c *gin.Context) {
	result, err := h.pipeline.RunDiagnostic(c.Request.Context())
	if err != nil {
		response.ErrorJSON(c, http.StatusInternalServerError, "Diagnostic failed: "+err.Error())
		return
	}

	response.SuccessJSON(c, result)
}
