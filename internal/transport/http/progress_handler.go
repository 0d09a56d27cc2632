package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/waste3d/coursemarket-api/internal/application/usecase"
	"github.com/waste3d/coursemarket-api/internal/middleware"
)

type ProgressHandler struct {
	uc *usecase.ProgressUseCase
}

func NewProgressHandler(uc *usecase.ProgressUseCase) *ProgressHandler {
	return &ProgressHandler{uc: uc}
}

// POST /api/user/add-progress
func (h *ProgressHandler) AddProgress(c *gin.Context) {
	var req struct {
		CourseID  string `json:"courseId"`
		LectureID string `json:"lectureId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request body"})
		return
	}

	created, err := h.uc.MarkComplete(c.Request.Context(), c.GetString(middleware.UserIDKey), req.CourseID, req.LectureID)
	if err != nil {
		writeError(c, err)
		return
	}
	if !created {
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Lecture already completed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Progress Updated"})
}

// GET /api/user/get-progress/:courseId
func (h *ProgressHandler) GetProgress(c *gin.Context) {
	progress, err := h.uc.GetProgress(c.Request.Context(), c.GetString(middleware.UserIDKey), c.Param("courseId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "progressData": progress})
}
