package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/waste3d/coursemarket-api/internal/application/usecase"
)

type CourseHandler struct {
	catalog *usecase.CatalogUseCase
}

func NewCourseHandler(catalog *usecase.CatalogUseCase) *CourseHandler {
	return &CourseHandler{catalog: catalog}
}

// GET /api/course/all
func (h *CourseHandler) List(c *gin.Context) {
	courses, err := h.catalog.ListCourses(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]courseView, 0, len(courses))
	for _, v := range courses {
		out = append(out, newCourseView(v))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "courses": out})
}

// GET /api/course/:id
func (h *CourseHandler) GetOne(c *gin.Context) {
	v, err := h.catalog.GetCourse(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "courseData": newCourseView(*v)})
}
