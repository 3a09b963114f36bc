package api

import (
	"net/http"

	"github.com/johanesalxd/data-clean-room-demo/internal/response"
	"github.com/johanesalxd/data-clean-room-demo/internal/services"

	"github.com/gin-gonic/gin"
)

// CreateExchange provisions an Analytics Hub exchange and listing
func (h *Handler) CreateExchange(c *gin.Context) {
	var req services.ProvisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorJSON(c, http.StatusBadRequest, "Invalid request format: "+err.Error())
		return
	}

	record, err := h.exchange.Provision(c.Request.Context(), req)
	if err != nil {
		response.ErrorJSON(c, http.StatusInternalServerError, "Failed to provision exchange: "+err.Error())
		return
	}

	c.JSON(http.StatusCreated, response.Success(record))
}

// ListExchanges returns provisioned exchange records
func (h *Handler) ListExchanges(c *gin.Context) {
	exchanges, err := h.exchange.ListExchanges()
	if err != nil {
		response.ErrorJSON(c, http.StatusInternalServerError, "Failed to list exchanges: "+err.Error())
		return
	}

	response.SuccessJSON(c, exchanges)
}
