// internal/models/cart.go
package models

import (
	"fmt"
	"time"
)

type AccessoryType string

const (
	AccessoryTypeAddon     AccessoryType = "addon"
	AccessoryTypeInsurance AccessoryType = "insurance"
	AccessoryTypeAccessory AccessoryType = "accessory"
)

// Accessory is an add-on attached to a line item. Type partitions accessories
// into the three independently priced categories shown in the configurator.
type Accessory struct {
	ID    string        `json:"id" validate:"required"`
	Name  string        `json:"name"`
	Type  AccessoryType `json:"type" validate:"required,oneof=addon insurance accessory"`
	Price float64       `json:"price" validate:"gte=0"`
}

// ProductSelection, VariantSelection and ColorSelection describe the
// configuration the user picked in the Buy Now flow.
type ProductSelection struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type VariantSelection struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type ColorSelection struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CartLineItem is one cart entry for a specific product/variant/color
// combination. LocalID identifies the item within this session; RemoteID is
// the backend-assigned identifier and stays empty until the backend echo
// arrives.
type CartLineItem struct {
	LocalID     string      `json:"local_id"`
	RemoteID    string      `json:"remote_id,omitempty"`
	ProductID   string      `json:"product_id"`
	VariantID   string      `json:"variant_id"`
	ColorID     string      `json:"color_id"`
	ProductName string      `json:"product_name,omitempty"`
	VariantName string      `json:"variant_name,omitempty"`
	ColorName   string      `json:"color_name,omitempty"`
	Quantity    int         `json:"quantity"`
	BasePrice   float64     `json:"base_price"`
	UnitPrice   float64     `json:"unit_price"`
	TotalPrice  float64     `json:"total_price"`
	Accessories []Accessory `json:"accessories,omitempty"`
	AddedAt     time.Time   `json:"added_at"`
}

// LocalItemID derives the deterministic local identity of a line item from
// the selected configuration. Two adds of the same configuration always map
// to the same line item.
func LocalItemID(productID, variantID, colorID string) string {
	return fmt.Sprintf("local-%s-%s-%s", productID, variantID, colorID)
}

// TupleKey is the structural identity used when matching items that have no
// shared identifier, e.g. a local item against a remote record created by
// another session.
func TupleKey(productID, variantID, colorID string) string {
	return productID + ":" + variantID + ":" + colorID
}

// TupleKey returns the structural identity of the item.
func (i *CartLineItem) TupleKey() string {
	return TupleKey(i.ProductID, i.VariantID, i.ColorID)
}

// Recalculate restores the pricing invariant after a quantity or accessory
// change: unit price is the base variant price plus all attached accessories,
// total price is unit price times quantity.
func (i *CartLineItem) Recalculate() {
	unit := i.BasePrice
	for _, a := range i.Accessories {
		unit += a.Price
	}
	i.UnitPrice = unit
	i.TotalPrice = unit * float64(i.Quantity)
}

// MergeAccessories unions the given accessories into the item, deduplicated
// by accessory id. Entries already present win over incoming duplicates.
func (i *CartLineItem) MergeAccessories(accessories []Accessory) {
	seen := make(map[string]bool, len(i.Accessories))
	for _, a := range i.Accessories {
		seen[a.ID] = true
	}
	for _, a := range accessories {
		if seen[a.ID] {
			continue
		}
		i.Accessories = append(i.Accessories, a)
		seen[a.ID] = true
	}
}

// Clone returns a deep copy safe to hand out while the store keeps mutating
// its own instance.
func (i *CartLineItem) Clone() CartLineItem {
	out := *i
	if len(i.Accessories) > 0 {
		out.Accessories = make([]Accessory, len(i.Accessories))
		copy(out.Accessories, i.Accessories)
	}
	return out
}

// CartSnapshot is the durable snapshot persisted after every mutation. It is
// the crash-safe fallback when the backend is unreachable on hydration.
type CartSnapshot struct {
	Items       []CartLineItem `json:"items"`
	TotalItems  int            `json:"total_items"`
	TotalPrice  float64        `json:"total_price"`
	LastUpdated time.Time      `json:"last_updated"`
}
