package order

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestNormalizeItems_AliasCoercion(t *testing.T) {
	items := NormalizeItems([]RawItem{
		{ProductID: "canonical", Qty: intPtr(2)},
		{ID: "short-id", Quantity: intPtr(3)},
		{LegacyID: "mongo-id"},
	})

	require.Len(t, items, 3)
	assert.Equal(t, "canonical", items[0].ProductID)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, "short-id", items[1].ProductID)
	assert.Equal(t, 3, items[1].Quantity)
	assert.Equal(t, "mongo-id", items[2].ProductID)
}

func TestNormalizeItems_Defaults(t *testing.T) {
	items := NormalizeItems([]RawItem{{Name: "Bare"}})

	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Quantity, "missing quantity defaults to 1")
	assert.True(t, items[0].UnitPrice.IsZero(), "missing price defaults to 0")
}

// qty takes precedence over quantity when a client sends both, matching the
// storefront's historical coercion order.
func TestNormalizeItems_QtyPrecedence(t *testing.T) {
	items := NormalizeItems([]RawItem{
		{ProductID: "p", Qty: intPtr(5), Quantity: intPtr(9)},
	})

	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity)
}

func TestNormalizeItems_FromJSON(t *testing.T) {
	payload := `[
		{"_id": "64f1", "name": "Diver 200m", "price": 129.50, "quantity": 2},
		{"id": "w-17", "name": "Field Watch", "price": 89.99, "qty": 1, "img": "field.jpg"}
	]`

	var raw []RawItem
	require.NoError(t, json.Unmarshal([]byte(payload), &raw))

	items := NormalizeItems(raw)
	require.Len(t, items, 2)

	assert.Equal(t, "64f1", items[0].ProductID)
	assert.True(t, decimal.RequireFromString("129.50").Equal(items[0].UnitPrice))
	assert.Equal(t, 2, items[0].Quantity)

	assert.Equal(t, "w-17", items[1].ProductID)
	assert.Equal(t, "field.jpg", items[1].Image)
}
