package services

import (
	"strings"
	"unicode/utf8"

	"github.com/teamworkery/kakao-order/internal/core/domain"
	"github.com/teamworkery/kakao-order/internal/core/utils"
)

const (
	maxOrderLines   = 50
	maxLineQuantity = 99
	maxNameLength   = 100
)

func CheckPhone(phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return domain.NewValidationError("phone_number", "required")
	}
	if !utils.ValidPhone(phone) {
		return domain.NewValidationError("phone_number", "digits and hyphens only, 9 - 11 digits (got %s)", phone)
	}
	return nil
}

func CheckOrderValues(order domain.Order) error {
	if order.StoreID == "" {
		return domain.NewValidationError("store_id", "required")
	}

	if err := CheckPhone(order.PhoneNumber); err != nil {
		return err
	}

	// Items
	if len(order.Items) < 1 || len(order.Items) > maxOrderLines {
		return domain.NewValidationError("items", "count must be 1 - %d (got %d)", maxOrderLines, len(order.Items))
	}
	for i, item := range order.Items {
		if item.MenuItemID == "" {
			return domain.NewValidationError("items", "item[%d].menu_item_id is empty", i)
		}
		if item.Quantity < 1 || item.Quantity > maxLineQuantity {
			return domain.NewValidationError("items", "item[%d].quantity must be 1 - %d (got %d)", i, maxLineQuantity, item.Quantity)
		}
		if item.Price < 0 {
			return domain.NewValidationError("items", "item[%d].price must not be negative (got %d)", i, item.Price)
		}
	}

	if order.TotalAmount < 0 {
		return domain.NewValidationError("total_amount", "must not be negative (got %d)", order.TotalAmount)
	}
	return order.CheckTotal()
}

// CheckMenuItem validates a menu item before it is stored.
func CheckMenuItem(item domain.MenuItem) error {
	name := strings.TrimSpace(item.Name)
	if name == "" {
		return domain.NewValidationError("name", "required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return domain.NewValidationError("name", "must be at most %d characters", maxNameLength)
	}
	if item.Price < 0 {
		return domain.NewValidationError("price", "must not be negative (got %d)", item.Price)
	}
	if strings.TrimSpace(item.Image) == "" {
		return domain.NewValidationError("image", "required")
	}
	return nil
}
