package handlers

import (
	"time"

	"github.com/waste3d/coursemarket-api/internal/application/usecase"
	"github.com/waste3d/coursemarket-api/internal/domain"
	"github.com/waste3d/coursemarket-api/internal/pricing"
)

type purchaseView struct {
	ID           string    `json:"id"`
	CourseID     string    `json:"courseId"`
	Amount       string    `json:"amount"`
	Currency     string    `json:"currency"`
	Status       string    `json:"status"`
	CheckoutMode string    `json:"checkoutMode"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func newPurchaseView(p *domain.Purchase) purchaseView {
	return purchaseView{
		ID:           p.ID,
		CourseID:     p.CourseID,
		Amount:       pricing.Format(p.Amount, p.Currency),
		Currency:     p.Currency,
		Status:       string(p.Status),
		CheckoutMode: string(p.CheckoutMode),
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

// courseView: цены строками, чтобы клиент не терял копейки на float.
type courseView struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Thumbnail     string `json:"thumbnail"`
	EducatorID    string `json:"educatorId"`
	Price         string `json:"price"`
	Discount      string `json:"discount"`
	FinalPrice    string `json:"finalPrice"`
	Currency      string `json:"currency"`
	EnrolledCount int    `json:"enrolledCount,omitempty"`
}

func newCourseView(v usecase.CourseView) courseView {
	return courseView{
		ID:            v.Course.ID,
		Title:         v.Course.Title,
		Description:   v.Course.Description,
		Thumbnail:     v.Course.Thumbnail,
		EducatorID:    v.Course.EducatorID,
		Price:         pricing.Format(v.Course.Price, v.Currency),
		Discount:      v.Course.Discount.String(),
		FinalPrice:    pricing.Format(v.FinalPrice, v.Currency),
		Currency:      v.Currency,
		EnrolledCount: v.EnrolledCount,
	}
}

type enrolledCourseView struct {
	courseView
	CompletedLectures []string `json:"completedLectures"`
}

type userView struct {
	ID              string   `json:"id"`
	Email           string   `json:"email"`
	Name            string   `json:"name"`
	ImageURL        string   `json:"imageUrl"`
	EnrolledCourses []string `json:"enrolledCourses"`
}
