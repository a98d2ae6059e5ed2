package domain

import (
	"sort"
	"time"
)

type MenuItem struct {
	ID           string    `json:"id"`
	ProfileID    string    `json:"profile_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Price        int       `json:"price"`
	Image        string    `json:"image"`
	Category     string    `json:"category"`
	IsActive     bool      `json:"is_active"`
	DisplayOrder int       `json:"display_order"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SortMenu orders items by display order, ties broken by creation time.
func SortMenu(items []MenuItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].DisplayOrder != items[j].DisplayOrder {
			return items[i].DisplayOrder < items[j].DisplayOrder
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
}

// Catalog indexes a store's menu by id.
type Catalog map[string]MenuItem

func NewCatalog(items []MenuItem) Catalog {
	c := make(Catalog, len(items))
	for _, it := range items {
		c[it.ID] = it
	}
	return c
}
