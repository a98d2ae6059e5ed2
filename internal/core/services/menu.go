package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/teamworkery/kakao-order/internal/core/domain"
	"github.com/teamworkery/kakao-order/internal/core/ports"
	"github.com/teamworkery/kakao-order/pkg/logger"
)

type MenuService struct {
	menus    ports.MenuRepository
	profiles ports.ProfileRepository
	logger   *logger.Logger
	now      func() time.Time
}

func NewMenuService(menus ports.MenuRepository, profiles ports.ProfileRepository, logger *logger.Logger) *MenuService {
	return &MenuService{menus: menus, profiles: profiles, logger: logger, now: time.Now}
}

// Storefront resolves a store by its name and returns it with its active menu.
func (s *MenuService) Storefront(ctx context.Context, storeName string) (*domain.Profile, []domain.MenuItem, error) {
	storeName = strings.TrimSpace(storeName)
	if storeName == "" {
		return nil, nil, domain.ErrStoreNotFound
	}
	store, err := s.profiles.GetStoreByName(ctx, storeName)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, domain.ErrStoreNotFound
		}
		return nil, nil, domain.Persistence("get store", err)
	}
	items, err := s.ListActive(ctx, store.ID)
	if err != nil {
		return nil, nil, err
	}
	return store, items, nil
}

// ListActive is the customer view of a store's menu.
func (s *MenuService) ListActive(ctx context.Context, storeID string) ([]domain.MenuItem, error) {
	items, err := s.menus.ListMenu(ctx, storeID, true)
	if err != nil {
		return nil, domain.Persistence("list menu", err)
	}
	domain.SortMenu(items)
	return items, nil
}

// ListAll is the owner view, inactive items included.
func (s *MenuService) ListAll(ctx context.Context, store *domain.Profile) ([]domain.MenuItem, error) {
	items, err := s.menus.ListMenu(ctx, store.ID, false)
	if err != nil {
		return nil, domain.Persistence("list menu", err)
	}
	domain.SortMenu(items)
	return items, nil
}

func (s *MenuService) Add(ctx context.Context, store *domain.Profile, cmd domain.AddMenuItem) (*domain.MenuItem, error) {
	existing, err := s.menus.ListMenu(ctx, store.ID, false)
	if err != nil {
		return nil, domain.Persistence("list menu", err)
	}

	now := s.now().UTC()
	item := domain.MenuItem{
		ID:           uuid.NewString(),
		ProfileID:    store.ID,
		Name:         strings.TrimSpace(cmd.Name),
		Description:  cmd.Description,
		Price:        cmd.Price,
		Image:        cmd.Image,
		Category:     cmd.Category,
		IsActive:     true,
		DisplayOrder: len(existing),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if cmd.IsActive != nil {
		item.IsActive = *cmd.IsActive
	}
	if err := CheckMenuItem(item); err != nil {
		return nil, err
	}
	if err := s.menus.CreateMenuItem(ctx, &item); err != nil {
		return nil, domain.Persistence("create menu item", err)
	}

	s.logger.Info("", "menu_item_added", "Menu item added", map[string]interface{}{"store_id": store.ID, "menu_item_id": item.ID})
	return &item, nil
}

func (s *MenuService) Edit(ctx context.Context, store *domain.Profile, cmd domain.EditMenuItem) (*domain.MenuItem, error) {
	item, err := s.get(ctx, store.ID, cmd.ID)
	if err != nil {
		return nil, err
	}

	if cmd.Name != nil {
		item.Name = strings.TrimSpace(*cmd.Name)
	}
	if cmd.Description != nil {
		item.Description = *cmd.Description
	}
	if cmd.Price != nil {
		item.Price = *cmd.Price
	}
	if cmd.Image != nil {
		item.Image = *cmd.Image
	}
	if cmd.Category != nil {
		item.Category = *cmd.Category
	}
	if cmd.IsActive != nil {
		item.IsActive = *cmd.IsActive
	}
	item.UpdatedAt = s.now().UTC()

	if err := CheckMenuItem(*item); err != nil {
		return nil, err
	}
	if err := s.menus.UpdateMenuItem(ctx, item); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrMenuNotFound
		}
		return nil, domain.Persistence("update menu item", err)
	}
	return item, nil
}

func (s *MenuService) Delete(ctx context.Context, store *domain.Profile, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.NewValidationError("id", "invalid menu item id")
	}
	if err := s.menus.DeleteMenuItem(ctx, store.ID, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrMenuNotFound
		}
		return domain.Persistence("delete menu item", err)
	}
	s.logger.Info("", "menu_item_deleted", "Menu item deleted", map[string]interface{}{"store_id": store.ID, "menu_item_id": id})
	return nil
}

// Reorder sets display order by position. Every id must belong to the store.
func (s *MenuService) Reorder(ctx context.Context, store *domain.Profile, ids []string) error {
	if len(ids) == 0 {
		return domain.NewValidationError("ids", "required")
	}
	items, err := s.menus.ListMenu(ctx, store.ID, false)
	if err != nil {
		return domain.Persistence("list menu", err)
	}
	owned := domain.NewCatalog(items)
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := owned[id]; !ok {
			return domain.ErrMenuNotFound
		}
		if seen[id] {
			return domain.NewValidationError("ids", "duplicate id %s", id)
		}
		seen[id] = true
	}
	if err := s.menus.ReorderMenu(ctx, store.ID, ids); err != nil {
		return domain.Persistence("reorder menu", err)
	}
	return nil
}

func (s *MenuService) get(ctx context.Context, storeID, id string) (*domain.MenuItem, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.NewValidationError("id", "invalid menu item id")
	}
	item, err := s.menus.GetMenuItem(ctx, storeID, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrMenuNotFound
		}
		return nil, domain.Persistence("get menu item", err)
	}
	return item, nil
}
