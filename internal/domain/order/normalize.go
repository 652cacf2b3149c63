package order

import "github.com/shopspring/decimal"

// RawItem is a line item as submitted by a storefront client. Older clients
// use different keys for the product id and quantity, so every historical
// alias is accepted and coerced to the canonical Item fields.
type RawItem struct {
	ProductID   string          `json:"productId"`
	ID          string          `json:"id"`
	LegacyID    string          `json:"_id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Qty         *int            `json:"qty"`
	Quantity    *int            `json:"quantity"`
	Description string          `json:"description"`
	Image       string          `json:"img"`
}

// NormalizeItems coerces raw line items to their canonical form. This is a
// deliberately lenient ingestion policy carried over from the storefront:
// a missing price defaults to zero and a missing quantity to one rather than
// rejecting the item. All coercion happens here so the policy can be
// tightened later without touching pricing.
func NormalizeItems(raw []RawItem) []Item {
	items := make([]Item, 0, len(raw))
	for _, r := range raw {
		id := r.ProductID
		if id == "" {
			id = r.ID
		}
		if id == "" {
			id = r.LegacyID
		}

		qty := 1
		switch {
		case r.Qty != nil:
			qty = *r.Qty
		case r.Quantity != nil:
			qty = *r.Quantity
		}

		items = append(items, Item{
			ProductID:   id,
			Name:        r.Name,
			UnitPrice:   r.Price,
			Quantity:    qty,
			Description: r.Description,
			Image:       r.Image,
		})
	}
	return items
}
