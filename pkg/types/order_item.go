package types

import (
	"fmt"
	"strings"
)

// OrderItem is a single requested supply line on an order.
type OrderItem struct {
	ItemName string  `json:"item_name"`
	Quantity int     `json:"quantity"`
	Size     *string `json:"size,omitempty"`
	IsCustom bool    `json:"is_custom"`
}

// OrderItems keeps the requested lines in the order the client submitted them.
type OrderItems []OrderItem

// Validate enforces the per-line rules shared by every order writer.
func (items OrderItems) Validate() error {
	if len(items) == 0 {
		return fmt.Errorf("at least one item is required")
	}
	for i, item := range items {
		if strings.TrimSpace(item.ItemName) == "" {
			return fmt.Errorf("items[%d].item_name is required", i)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("items[%d].quantity must be positive", i)
		}
	}
	return nil
}

// TotalQuantity sums the quantities across all lines.
func (items OrderItems) TotalQuantity() int {
	total := 0
	for _, item := range items {
		total += item.Quantity
	}
	return total
}
