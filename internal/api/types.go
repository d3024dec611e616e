package api

import (
	"encoding/json"

	"github.com/spf13/cast"
)

// CartSnapshot is the authoritative view of a user's cart, fetched wholesale
// from the backend. It is replaced in full after every successful mutation,
// never patched in place.
type CartSnapshot struct {
	ID         int64
	Items      []CartLine
	TotalItems int
	TotalPrice float64
}

// CartLine is one purchasable entry within a cart. ItemID identifies the
// line itself and stays unique even when two lines reference the same
// product in different variants; ProductID identifies what is being bought.
type CartLine struct {
	ItemID    int64
	ProductID int64
	Quantity  int

	// Denormalized pricing, advisory only. The authoritative totals come
	// from the next full cart refresh.
	Price float64
	Total float64

	// Display metadata, may be absent.
	Name  string
	Brand string
	Image string
	Color string
	Size  float64
}

// OrderSnapshot is an immutable record of a completed checkout.
type OrderSnapshot struct {
	ID         int64
	Status     string
	TotalPrice float64
	Items      []OrderLine
}

// OrderLine binds a product snapshot frozen at purchase time to a quantity.
type OrderLine struct {
	ID              int64
	Quantity        int
	PriceAtPurchase float64
	Product         OrderProduct
}

// OrderProduct is the product as it was at the moment of purchase. It must
// never be re-derived from current catalog state.
type OrderProduct struct {
	ID    int64
	Name  string
	Brand string
	Image string
	Price float64
	Color string
	Size  float64
}

// Product is one catalog listing with its purchasable variants.
type Product struct {
	GroupID  int64
	ID       int64
	Name     string
	Brand    string
	Image    string
	Price    float64
	Category string
	Colors   []string
	Sizes    []float64
	Stock    int
	Variants []ProductVariant
}

type ProductVariant struct {
	VariantID int64
	Color     string
	Size      float64
	Stock     int
}

// Me is the authenticated user's identity.
type Me struct {
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

type Role struct {
	Name string `json:"name"`
}

// Backends are loose about field types (numbers as strings, snake_case
// aliases), so decoding goes through a coercion step and rejects entries
// missing required identifiers instead of zeroing them.

func intField(m map[string]any, keys ...string) (int64, bool) {
	for _, key := range keys {
		v, ok := m[key]
		if !ok || v == nil {
			continue
		}
		if n, err := cast.ToInt64E(v); err == nil {
			return n, true
		}
	}
	return 0, false
}

func floatField(m map[string]any, keys ...string) float64 {
	for _, key := range keys {
		v, ok := m[key]
		if !ok || v == nil {
			continue
		}
		if f, err := cast.ToFloat64E(v); err == nil {
			return f
		}
	}
	return 0
}

func stringField(m map[string]any, keys ...string) string {
	for _, key := range keys {
		v, ok := m[key]
		if !ok || v == nil {
			continue
		}
		if s, err := cast.ToStringE(v); err == nil {
			return s
		}
	}
	return ""
}

func decodeCartSnapshot(data []byte) (*CartSnapshot, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &DecodeError{Resource: "cart", Field: "body"}
	}

	id, ok := intField(raw, "id")
	if !ok {
		return nil, &DecodeError{Resource: "cart", Field: "id"}
	}

	snapshot := &CartSnapshot{
		ID:         id,
		TotalItems: int(floatField(raw, "totalItems", "total_items")),
		TotalPrice: floatField(raw, "totalPrice", "total_price"),
	}

	rawItems, _ := raw["items"].([]any)
	for _, entry := range rawItems {
		m, ok := entry.(map[string]any)
		if !ok {
			return nil, &DecodeError{Resource: "cart", Field: "items"}
		}
		line, err := decodeCartLine(m)
		if err != nil {
			return nil, err
		}
		snapshot.Items = append(snapshot.Items, line)
	}

	return snapshot, nil
}

func decodeCartLine(m map[string]any) (CartLine, error) {
	itemID, ok := intField(m, "itemId", "item_id", "id")
	if !ok {
		return CartLine{}, &DecodeError{Resource: "cart", Field: "items.itemId"}
	}
	productID, ok := intField(m, "productId", "product_id")
	if !ok {
		return CartLine{}, &DecodeError{Resource: "cart", Field: "items.productId"}
	}
	quantity, ok := intField(m, "quantity")
	if !ok || quantity < 1 {
		return CartLine{}, &DecodeError{Resource: "cart", Field: "items.quantity"}
	}

	return CartLine{
		ItemID:    itemID,
		ProductID: productID,
		Quantity:  int(quantity),
		Price:     floatField(m, "price"),
		Total:     floatField(m, "total"),
		Name:      stringField(m, "name"),
		Brand:     stringField(m, "brand"),
		Image:     stringField(m, "image"),
		Color:     stringField(m, "color"),
		Size:      floatField(m, "size"),
	}, nil
}

func decodeOrders(data []byte) ([]OrderSnapshot, error) {
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &DecodeError{Resource: "orders", Field: "body"}
	}

	orders := make([]OrderSnapshot, 0, len(raw))
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			return nil, &DecodeError{Resource: "orders", Field: "body"}
		}

		id, ok := intField(m, "id")
		if !ok {
			return nil, &DecodeError{Resource: "orders", Field: "id"}
		}

		order := OrderSnapshot{
			ID:         id,
			Status:     stringField(m, "status"),
			TotalPrice: floatField(m, "total_price", "totalPrice"),
		}

		rawItems, _ := m["items"].([]any)
		for _, rawItem := range rawItems {
			im, ok := rawItem.(map[string]any)
			if !ok {
				return nil, &DecodeError{Resource: "orders", Field: "items"}
			}
			line, err := decodeOrderLine(im)
			if err != nil {
				return nil, err
			}
			order.Items = append(order.Items, line)
		}

		orders = append(orders, order)
	}

	return orders, nil
}

func decodeOrderLine(m map[string]any) (OrderLine, error) {
	id, ok := intField(m, "id")
	if !ok {
		return OrderLine{}, &DecodeError{Resource: "orders", Field: "items.id"}
	}
	quantity, ok := intField(m, "quantity")
	if !ok {
		return OrderLine{}, &DecodeError{Resource: "orders", Field: "items.quantity"}
	}

	line := OrderLine{
		ID:              id,
		Quantity:        int(quantity),
		PriceAtPurchase: floatField(m, "price_at_purchase", "priceAtPurchase"),
	}

	if pm, ok := m["product"].(map[string]any); ok {
		productID, ok := intField(pm, "id")
		if !ok {
			return OrderLine{}, &DecodeError{Resource: "orders", Field: "items.product.id"}
		}
		line.Product = OrderProduct{
			ID:    productID,
			Name:  stringField(pm, "name"),
			Brand: stringField(pm, "brand"),
			Image: stringField(pm, "image"),
			Price: floatField(pm, "price"),
			Color: stringField(pm, "color"),
			Size:  floatField(pm, "size"),
		}
	}

	return line, nil
}

func decodeProducts(data []byte) ([]Product, error) {
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &DecodeError{Resource: "products", Field: "body"}
	}

	products := make([]Product, 0, len(raw))
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			return nil, &DecodeError{Resource: "products", Field: "body"}
		}

		groupID, ok := intField(m, "groupId", "group_id", "id")
		if !ok {
			return nil, &DecodeError{Resource: "products", Field: "groupId"}
		}
		id, ok := intField(m, "id")
		if !ok {
			id = groupID
		}

		product := Product{
			GroupID:  groupID,
			ID:       id,
			Name:     stringField(m, "name"),
			Brand:    stringField(m, "brand"),
			Image:    stringField(m, "image"),
			Price:    floatField(m, "price"),
			Category: stringField(m, "category"),
			Stock:    int(floatField(m, "stock")),
		}

		if colors, ok := m["color"].([]any); ok {
			for _, c := range colors {
				product.Colors = append(product.Colors, cast.ToString(c))
			}
		}
		if sizes, ok := m["size"].([]any); ok {
			for _, s := range sizes {
				if f, err := cast.ToFloat64E(s); err == nil {
					product.Sizes = append(product.Sizes, f)
				}
			}
		}

		rawVariants, _ := m["variants"].([]any)
		for _, rawVariant := range rawVariants {
			vm, ok := rawVariant.(map[string]any)
			if !ok {
				return nil, &DecodeError{Resource: "products", Field: "variants"}
			}
			variantID, ok := intField(vm, "variantId", "id", "productId")
			if !ok {
				return nil, &DecodeError{Resource: "products", Field: "variants.variantId"}
			}
			product.Variants = append(product.Variants, ProductVariant{
				VariantID: variantID,
				Color:     stringField(vm, "color"),
				Size:      floatField(vm, "size"),
				Stock:     int(floatField(vm, "stock")),
			})
		}

		products = append(products, product)
	}

	return products, nil
}
