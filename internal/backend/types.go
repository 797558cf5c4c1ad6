// internal/backend/types.go
package backend

import "github.com/avpratap/riqueza-cart-sync/internal/models"

// AddItemRequest is the body of POST /cart/add and POST /guest-cart/add.
type AddItemRequest struct {
	ProductID   string             `json:"product_id"`
	VariantID   string             `json:"variant_id"`
	ColorID     string             `json:"color_id"`
	Quantity    int                `json:"quantity"`
	Accessories []models.Accessory `json:"accessories"`
	TotalPrice  float64            `json:"total_price"`
}

// RemoteCartItem is one line item as stored by the backend. ID is the
// backend-assigned (UUID-shaped) record identifier.
type RemoteCartItem struct {
	ID          string             `json:"id"`
	ProductID   string             `json:"product_id"`
	VariantID   string             `json:"variant_id"`
	ColorID     string             `json:"color_id"`
	Quantity    int                `json:"quantity"`
	Accessories []models.Accessory `json:"accessories"`
	TotalPrice  float64            `json:"total_price"`
}

// TupleKey returns the structural identity of the remote item, matching the
// local derivation so the two sides can be compared without shared ids.
func (i RemoteCartItem) TupleKey() string {
	return models.TupleKey(i.ProductID, i.VariantID, i.ColorID)
}

// CartSummary is the aggregate view returned by GET /cart/summary.
type CartSummary struct {
	TotalItems int     `json:"total_items"`
	TotalPrice float64 `json:"total_price"`
}

// TransferResult reports the outcome of a server-side guest cart transfer.
type TransferResult struct {
	Transferred int    `json:"transferred"`
	Message     string `json:"message,omitempty"`
}

type cartData struct {
	Items []RemoteCartItem `json:"items"`
}

type addItemData struct {
	Item RemoteCartItem `json:"item"`
}

type checkEmptyData struct {
	Empty bool `json:"empty"`
}
