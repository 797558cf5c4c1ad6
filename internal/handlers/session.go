// internal/handlers/session.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/avpratap/riqueza-cart-sync/internal/cart"
	"github.com/avpratap/riqueza-cart-sync/internal/identity"
	"github.com/avpratap/riqueza-cart-sync/internal/transfer"
	"github.com/avpratap/riqueza-cart-sync/internal/utils"
)

// SessionHandler covers the identity transitions: adopting an authenticated
// token after login (which triggers the one-time guest cart transfer) and
// dropping it again.
type SessionHandler struct {
	resolver *identity.Resolver
	transfer *transfer.Process
	cart     *cart.Store
	logger   *logrus.Logger
}

func NewSessionHandler(resolver *identity.Resolver, transferProcess *transfer.Process, cartStore *cart.Store, logger *logrus.Logger) *SessionHandler {
	return &SessionHandler{
		resolver: resolver,
		transfer: transferProcess,
		cart:     cartStore,
		logger:   logger,
	}
}

type loginRequest struct {
	Token string `json:"token" binding:"required"`
}

// Login adopts the authenticated token, runs the guest cart transfer, then
// refreshes the local cart from the (now merged) authenticated remote cart.
// A failed transfer is reported in the payload but does not fail the login:
// the user keeps their local cart either way.
func (h *SessionHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "token is required", utils.GetValidationErrors(err))
		return
	}

	h.resolver.SetAuthToken(req.Token)

	result, err := h.transfer.Run(c.Request.Context())
	if err != nil {
		h.logger.WithField("component", "handlers").WithError(err).Warn("cart transfer errored")
	}

	h.cart.Hydrate(c.Request.Context())

	utils.SuccessResponse(c, gin.H{
		"transfer": result,
		"cart":     h.cart.Snapshot(),
	})
}

// Logout drops the authenticated token; later calls resolve to a (new) guest
// session.
func (h *SessionHandler) Logout(c *gin.Context) {
	h.resolver.ClearAuthToken()
	utils.SuccessResponse(c, gin.H{"logged_out": true})
}
