package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/award-ledger/internal/http/response"
	"github.com/yungbote/award-ledger/internal/services"
)

type IntegrityHandler struct {
	awards services.AwardService
}

func NewIntegrityHandler(awards services.AwardService) *IntegrityHandler {
	return &IntegrityHandler{awards: awards}
}

// GET /api/integrity
func (h *IntegrityHandler) Check(c *gin.Context) {
	rep, err := h.awards.Integrity(c.Request.Context())
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"integrity": rep})
}
