package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/waste3d/coursemarket-api/internal/application/usecase"
	"github.com/waste3d/coursemarket-api/internal/domain"
	"github.com/waste3d/coursemarket-api/internal/middleware"
)

type PurchaseHandler struct {
	uc *usecase.PurchaseUseCase
}

func NewPurchaseHandler(uc *usecase.PurchaseUseCase) *PurchaseHandler {
	return &PurchaseHandler{uc: uc}
}

type purchaseReq struct {
	CourseID string `json:"courseId"`
}

// POST /api/user/create-payment-intent
func (h *PurchaseHandler) CreatePaymentIntent(c *gin.Context) {
	res, ok := h.begin(c, domain.CheckoutIntent)
	if !ok {
		return
	}
	if res.Free {
		c.JSON(http.StatusOK, gin.H{"success": true, "purchaseId": res.PurchaseID, "message": "Enrolled Successfully"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "purchaseId": res.PurchaseID, "clientSecret": res.ClientHandle})
}

// POST /api/user/purchase
func (h *PurchaseHandler) Purchase(c *gin.Context) {
	res, ok := h.begin(c, domain.CheckoutSession)
	if !ok {
		return
	}
	if res.Free {
		c.JSON(http.StatusOK, gin.H{"success": true, "purchaseId": res.PurchaseID, "message": "Enrolled Successfully"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "purchaseId": res.PurchaseID, "sessionUrl": res.ClientHandle})
}

func (h *PurchaseHandler) begin(c *gin.Context, mode domain.CheckoutMode) (*usecase.BeginResult, bool) {
	var req purchaseReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request body"})
		return nil, false
	}

	res, err := h.uc.BeginPurchase(c.Request.Context(), c.GetString(middleware.UserIDKey), req.CourseID, mode, c.GetHeader("Origin"))
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return res, true
}

// GET /api/user/purchases/:id
func (h *PurchaseHandler) GetPurchase(c *gin.Context) {
	p, err := h.uc.GetPurchase(c.Request.Context(), c.GetString(middleware.UserIDKey), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "purchase": newPurchaseView(p)})
}

// POST /api/user/purchases/:id/cancel
func (h *PurchaseHandler) CancelPurchase(c *gin.Context) {
	p, err := h.uc.CancelPurchase(c.Request.Context(), c.GetString(middleware.UserIDKey), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "purchase": newPurchaseView(p)})
}
