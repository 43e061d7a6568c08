package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/award-ledger/internal/http/response"
	apperr "github.com/yungbote/award-ledger/internal/pkg/errors"
	"github.com/yungbote/award-ledger/internal/services"
)

type StudentHandler struct {
	awards services.AwardService
}

func NewStudentHandler(awards services.AwardService) *StudentHandler {
	return &StudentHandler{awards: awards}
}

type classifyBody struct {
	Category  string `json:"category" binding:"required"`
	Name      string `json:"name"`
	ClassName string `json:"className"`
}

// GET /api/students
func (h *StudentHandler) ListStudents(c *gin.Context) {
	recs := h.awards.List(c.Request.Context())
	response.RespondOK(c, gin.H{"students": recs, "count": len(recs)})
}

// GET /api/students/:id
func (h *StudentHandler) GetStudent(c *gin.Context) {
	id, err := studentIDParam(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_student_id", err)
		return
	}
	rec, err := h.awards.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"student": rec})
}

// GET /api/students/:id/progress
func (h *StudentHandler) GetProgress(c *gin.Context) {
	id, err := studentIDParam(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_student_id", err)
		return
	}
	p, err := h.awards.Progress(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"progress": p})
}

// POST /api/students/:id/awards/:slot/classify
func (h *StudentHandler) Classify(c *gin.Context) {
	id, err := studentIDParam(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_student_id", err)
		return
	}
	slot, err := strconv.Atoi(c.Param("slot"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_slot", fmt.Errorf("%w: slot %q", apperr.ErrInvalidArgument, c.Param("slot")))
		return
	}
	var body classifyBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	res, err := h.awards.Classify(c.Request.Context(), services.ClassifyRequest{
		StudentID: id,
		Slot:      slot,
		Category:  body.Category,
		Name:      body.Name,
		ClassName: body.ClassName,
	})
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, res)
}

func studentIDParam(c *gin.Context) (int64, error) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: student id %q", apperr.ErrInvalidArgument, raw)
	}
	return id, nil
}
