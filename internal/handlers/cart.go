// internal/handlers/cart.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/avpratap/riqueza-cart-sync/internal/cart"
	"github.com/avpratap/riqueza-cart-sync/internal/models"
	"github.com/avpratap/riqueza-cart-sync/internal/reconcile"
	"github.com/avpratap/riqueza-cart-sync/internal/utils"
)

// CartHandler exposes the mutation API of the Local Cart Store to the UI
// layer. Mutations return the post-mutation cart state; remote sync outcomes
// never surface here.
type CartHandler struct {
	cart       *cart.Store
	reconciler *reconcile.Reconciler
	logger     *logrus.Logger
}

func NewCartHandler(cartStore *cart.Store, reconciler *reconcile.Reconciler, logger *logrus.Logger) *CartHandler {
	return &CartHandler{cart: cartStore, reconciler: reconciler, logger: logger}
}

type productPayload struct {
	ID   string `json:"id" binding:"required"`
	Name string `json:"name"`
}

type variantPayload struct {
	ID    string  `json:"id" binding:"required"`
	Name  string  `json:"name"`
	Price float64 `json:"price" binding:"gte=0"`
}

type colorPayload struct {
	ID   string `json:"id" binding:"required"`
	Name string `json:"name"`
}

type addItemRequest struct {
	Product     productPayload     `json:"product" binding:"required"`
	Variant     variantPayload     `json:"variant" binding:"required"`
	Color       colorPayload       `json:"color" binding:"required"`
	Accessories []models.Accessory `json:"accessories"`
}

type updateQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

// GetCart returns the local cart with its aggregates.
func (h *CartHandler) GetCart(c *gin.Context) {
	utils.SuccessResponse(c, h.cart.Snapshot())
}

// AddItem adds the selected configuration to the cart.
func (h *CartHandler) AddItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "invalid add-to-cart payload", utils.GetValidationErrors(err))
		return
	}
	if errs := utils.ValidateAccessories(req.Accessories); len(errs) > 0 {
		utils.ValidationErrorResponse(c, errs)
		return
	}

	item := h.cart.Add(
		models.ProductSelection{ID: req.Product.ID, Name: req.Product.Name},
		models.VariantSelection{ID: req.Variant.ID, Name: req.Variant.Name, Price: req.Variant.Price},
		models.ColorSelection{ID: req.Color.ID, Name: req.Color.Name},
		req.Accessories,
	)
	utils.CreatedResponse(c, gin.H{
		"item": item,
		"cart": h.cart.Snapshot(),
	})
}

// UpdateQuantity sets an item's quantity; zero or negative removes it.
func (h *CartHandler) UpdateQuantity(c *gin.Context) {
	var req updateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "quantity is required", utils.GetValidationErrors(err))
		return
	}
	if !h.cart.UpdateQuantity(c.Param("id"), *req.Quantity) {
		utils.NotFoundResponse(c, "cart item not found")
		return
	}
	utils.SuccessResponse(c, h.cart.Snapshot())
}

func (h *CartHandler) IncrementItem(c *gin.Context) {
	if !h.cart.Increment(c.Param("id")) {
		utils.NotFoundResponse(c, "cart item not found")
		return
	}
	utils.SuccessResponse(c, h.cart.Snapshot())
}

func (h *CartHandler) DecrementItem(c *gin.Context) {
	if !h.cart.Decrement(c.Param("id")) {
		utils.NotFoundResponse(c, "cart item not found")
		return
	}
	utils.SuccessResponse(c, h.cart.Snapshot())
}

// RemoveItem accepts either a backend id or a local composite key.
func (h *CartHandler) RemoveItem(c *gin.Context) {
	if !h.cart.Remove(c.Param("id")) {
		utils.NotFoundResponse(c, "cart item not found")
		return
	}
	utils.SuccessResponse(c, h.cart.Snapshot())
}

func (h *CartHandler) ClearCart(c *gin.Context) {
	h.cart.Clear()
	utils.SuccessResponse(c, h.cart.Snapshot())
}

// Hydrate refreshes the local cart from the backend, falling back to the
// durable local snapshot when the backend is unreachable or empty.
func (h *CartHandler) Hydrate(c *gin.Context) {
	h.cart.Hydrate(c.Request.Context())
	utils.SuccessResponse(c, h.cart.Snapshot())
}

// Reconcile runs the full diff-and-sync pass against the backend. The UI
// calls this once before checkout navigation.
func (h *CartHandler) Reconcile(c *gin.Context) {
	report, err := h.reconciler.Run(c.Request.Context())
	if err != nil {
		h.logger.WithField("component", "handlers").WithError(err).Warn("reconciliation aborted")
		utils.BadGatewayResponse(c, "could not fetch remote cart for reconciliation")
		return
	}
	utils.SuccessResponse(c, gin.H{
		"report": report,
		"cart":   h.cart.Snapshot(),
	})
}
