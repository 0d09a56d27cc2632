package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/waste3d/coursemarket-api/internal/application/usecase"
	"github.com/waste3d/coursemarket-api/internal/middleware"
)

type UserHandler struct {
	catalog *usecase.CatalogUseCase
}

func NewUserHandler(catalog *usecase.CatalogUseCase) *UserHandler {
	return &UserHandler{catalog: catalog}
}

// GET /api/user/data
func (h *UserHandler) GetUserData(c *gin.Context) {
	data, err := h.catalog.UserData(c.Request.Context(), c.GetString(middleware.UserIDKey))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": userView{
		ID:              data.User.ID,
		Email:           data.User.Email,
		Name:            data.User.Name,
		ImageURL:        data.User.ImageURL,
		EnrolledCourses: data.EnrolledCourses,
	}})
}

// GET /api/user/enrolled-courses
func (h *UserHandler) EnrolledCourses(c *gin.Context) {
	courses, err := h.catalog.EnrolledCourses(c.Request.Context(), c.GetString(middleware.UserIDKey))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]enrolledCourseView, 0, len(courses))
	for _, ec := range courses {
		out = append(out, enrolledCourseView{courseView: newCourseView(ec.CourseView), CompletedLectures: ec.CompletedLectures})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "enrolledCourses": out})
}
