package services

import (
	"context"
	"fmt"

	"github.com/teamworkery/kakao-order/internal/core/domain"
)

// CommandService executes dashboard and self-service commands for a caller.
type CommandService struct {
	menu     *MenuService
	orders   *OrderService
	identity *IdentityService
}

func NewCommandService(menu *MenuService, orders *OrderService, identity *IdentityService) *CommandService {
	return &CommandService{menu: menu, orders: orders, identity: identity}
}

// Execute runs cmd on behalf of caller. accessToken is only used by Logout.
func (s *CommandService) Execute(ctx context.Context, caller *domain.Identity, accessToken string, cmd domain.Command) (any, error) {
	if caller == nil {
		return nil, domain.ErrAuthRequired
	}

	switch c := cmd.(type) {
	case domain.AddMenuItem:
		store, err := s.identity.RequireStore(ctx, caller)
		if err != nil {
			return nil, err
		}
		return s.menu.Add(ctx, store, c)
	case domain.EditMenuItem:
		store, err := s.identity.RequireStore(ctx, caller)
		if err != nil {
			return nil, err
		}
		return s.menu.Edit(ctx, store, c)
	case domain.DeleteMenuItem:
		store, err := s.identity.RequireStore(ctx, caller)
		if err != nil {
			return nil, err
		}
		return nil, s.menu.Delete(ctx, store, c.ID)
	case domain.ReorderMenu:
		store, err := s.identity.RequireStore(ctx, caller)
		if err != nil {
			return nil, err
		}
		return nil, s.menu.Reorder(ctx, store, c.IDs)
	case domain.UpdateProfile:
		return s.identity.UpdateProfile(ctx, caller, c.ProfileUpdate)
	case domain.AcceptOrder:
		return s.orders.Accept(ctx, caller, c.OrderID)
	case domain.Logout:
		return nil, s.identity.Logout(ctx, accessToken)
	case domain.UpdatePhone:
		return s.identity.UpdatePhone(ctx, caller, c.PhoneNumber)
	default:
		return nil, fmt.Errorf("unhandled command %T", cmd)
	}
}
