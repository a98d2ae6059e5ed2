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

// CheckoutResult tells the client where the checkout flow stands.
type CheckoutResult struct {
	State      domain.CheckoutState `json:"state"`
	Order      *domain.Order        `json:"order,omitempty"`
	DraftToken string               `json:"draft_token,omitempty"`
}

type CheckoutInput struct {
	Caller      *domain.Identity
	StoreID     string
	Cart        *domain.Cart
	TotalAmount int
	PhoneNumber string
}

// CheckoutService carries a cart across a login or phone-capture redirect.
type CheckoutService struct {
	drafts   ports.DraftRepository
	orders   *OrderService
	identity *IdentityService
	ttl      time.Duration
	logger   *logger.Logger
	now      func() time.Time
}

func NewCheckoutService(drafts ports.DraftRepository, orders *OrderService, identity *IdentityService, ttl time.Duration, logger *logger.Logger) *CheckoutService {
	return &CheckoutService{drafts: drafts, orders: orders, identity: identity, ttl: ttl, logger: logger, now: time.Now}
}

// Checkout submits the cart when the caller is known and has a phone number.
// Otherwise the cart is staged and the result names the missing step; an
// unauthenticated caller also gets ErrAuthRequired.
func (s *CheckoutService) Checkout(ctx context.Context, in CheckoutInput) (CheckoutResult, error) {
	if in.Cart == nil || in.Cart.IsEmpty() {
		return CheckoutResult{State: domain.CheckoutBrowsing}, domain.NewValidationError("items", "cart is empty")
	}
	phone := strings.TrimSpace(in.PhoneNumber)
	if phone != "" {
		if err := CheckPhone(phone); err != nil {
			return CheckoutResult{State: domain.CheckoutBrowsing}, err
		}
	}

	if in.Caller == nil {
		draft, err := s.Stage(ctx, in.StoreID, nil, in.Cart, in.TotalAmount, phone)
		if err != nil {
			return CheckoutResult{State: domain.CheckoutBrowsing}, err
		}
		return CheckoutResult{State: domain.CheckoutAwaitingAuth, DraftToken: draft.ID}, domain.ErrAuthRequired
	}

	profile, err := s.identity.EnsureProfile(ctx, *in.Caller)
	if err != nil {
		return CheckoutResult{State: domain.CheckoutFailed}, err
	}
	phone, err = s.contactPhone(ctx, in.Caller, profile, phone)
	if err != nil {
		return CheckoutResult{State: domain.CheckoutFailed}, err
	}
	if phone == "" {
		customerID := in.Caller.UserID
		draft, err := s.Stage(ctx, in.StoreID, &customerID, in.Cart, in.TotalAmount, "")
		if err != nil {
			return CheckoutResult{State: domain.CheckoutFailed}, err
		}
		return CheckoutResult{State: domain.CheckoutAwaitingPhone, DraftToken: draft.ID}, nil
	}

	order, err := s.orders.Submit(ctx, SubmitInput{
		Caller:      in.Caller,
		StoreID:     in.StoreID,
		Cart:        in.Cart,
		TotalAmount: in.TotalAmount,
		PhoneNumber: phone,
	})
	if err != nil {
		return CheckoutResult{State: domain.CheckoutFailed}, err
	}
	return CheckoutResult{State: domain.CheckoutCompleted, Order: order}, nil
}

// Stage stores the cart as a draft and returns it; its id is the continuation token.
func (s *CheckoutService) Stage(ctx context.Context, storeID string, customerID *string, cart *domain.Cart, total int, phone string) (*domain.CheckoutDraft, error) {
	if cart == nil || cart.IsEmpty() {
		return nil, domain.NewValidationError("items", "cart is empty")
	}
	now := s.now().UTC()
	draft := &domain.CheckoutDraft{
		ID:          uuid.NewString(),
		StoreID:     storeID,
		CustomerID:  customerID,
		Lines:       cart.Lines(),
		TotalAmount: total,
		Status:      domain.DraftStaged,
		ExpiresAt:   now.Add(s.ttl),
		CreatedAt:   now,
	}
	if phone != "" {
		draft.PhoneNumber = &phone
	}
	if err := s.drafts.SaveDraft(ctx, draft); err != nil {
		return nil, domain.Persistence("save draft", err)
	}
	s.logger.Debug(draft.ID, "draft_staged", "Checkout draft staged", map[string]interface{}{"store_id": storeID, "items": cart.ItemCount()})
	return draft, nil
}

// Resume continues a staged checkout once the caller is known. The draft is
// claimed before submitting, deleted on success and released on failure so a
// retry sees the same draft.
func (s *CheckoutService) Resume(ctx context.Context, caller *domain.Identity, draftToken string) (CheckoutResult, error) {
	if draftToken == "" {
		return CheckoutResult{State: domain.CheckoutAbandoned}, nil
	}
	if caller == nil {
		return CheckoutResult{State: domain.CheckoutAwaitingAuth, DraftToken: draftToken}, nil
	}
	if _, err := uuid.Parse(draftToken); err != nil {
		return CheckoutResult{State: domain.CheckoutAbandoned}, nil
	}

	now := s.now().UTC()
	draft, err := s.drafts.GetDraft(ctx, draftToken)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return CheckoutResult{State: domain.CheckoutAbandoned}, nil
		}
		return CheckoutResult{State: domain.CheckoutFailed, DraftToken: draftToken}, domain.Persistence("get draft", err)
	}
	if draft.Expired(now) || (draft.CustomerID != nil && *draft.CustomerID != caller.UserID) {
		return CheckoutResult{State: domain.CheckoutAbandoned}, nil
	}

	profile, err := s.identity.EnsureProfile(ctx, *caller)
	if err != nil {
		return CheckoutResult{State: domain.CheckoutFailed, DraftToken: draftToken}, err
	}
	phone := ""
	if draft.PhoneNumber != nil {
		phone = *draft.PhoneNumber
	}
	phone, err = s.contactPhone(ctx, caller, profile, phone)
	if err != nil {
		return CheckoutResult{State: domain.CheckoutFailed, DraftToken: draftToken}, err
	}
	if phone == "" {
		return CheckoutResult{State: domain.CheckoutAwaitingPhone, DraftToken: draftToken}, nil
	}

	claimed, err := s.drafts.ClaimDraft(ctx, draft.ID, now)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Claimed by a concurrent resume or expired in between.
			return CheckoutResult{State: domain.CheckoutAbandoned}, nil
		}
		return CheckoutResult{State: domain.CheckoutFailed, DraftToken: draftToken}, domain.Persistence("claim draft", err)
	}

	order, err := s.orders.Submit(ctx, SubmitInput{
		Caller:      caller,
		StoreID:     claimed.StoreID,
		Cart:        claimed.Cart(),
		TotalAmount: claimed.TotalAmount,
		PhoneNumber: phone,
		DraftID:     claimed.ID,
		Automatic:   true,
	})
	if err != nil {
		if relErr := s.drafts.ReleaseDraft(ctx, claimed.ID); relErr != nil {
			s.logger.Error(claimed.ID, "draft_release_failed", "Draft could not be released after a failed submission", relErr, nil)
		}
		return CheckoutResult{State: domain.CheckoutFailed, DraftToken: draftToken}, err
	}

	if err := s.drafts.DeleteDraft(ctx, claimed.ID); err != nil {
		// The order carries the draft id, so a later resume returns this same order.
		s.logger.Error(claimed.ID, "draft_delete_failed", "Draft could not be deleted after submission", err, map[string]interface{}{"order_id": order.ID})
	}
	return CheckoutResult{State: domain.CheckoutCompleted, Order: order}, nil
}

// CapturePhone saves the caller's phone number and resumes the staged checkout.
func (s *CheckoutService) CapturePhone(ctx context.Context, caller *domain.Identity, draftToken, phone string) (CheckoutResult, error) {
	if caller == nil {
		return CheckoutResult{State: domain.CheckoutAwaitingAuth, DraftToken: draftToken}, domain.ErrAuthRequired
	}
	if _, err := s.identity.UpdatePhone(ctx, caller, phone); err != nil {
		return CheckoutResult{State: domain.CheckoutAwaitingPhone, DraftToken: draftToken}, err
	}
	return s.Resume(ctx, caller, draftToken)
}

// contactPhone settles the number an order is submitted with. A profile without
// a number takes the one entered at checkout, so no order is placed for a
// profile that has none on file.
func (s *CheckoutService) contactPhone(ctx context.Context, caller *domain.Identity, profile *domain.Profile, entered string) (string, error) {
	if profile.HasPhone() {
		if entered != "" {
			return entered, nil
		}
		return *profile.PhoneNumber, nil
	}
	if entered == "" {
		return "", nil
	}
	if _, err := s.identity.UpdatePhone(ctx, caller, entered); err != nil {
		return "", err
	}
	return entered, nil
}

// Draft returns a live draft owned by caller, or ErrDraftNotFound.
func (s *CheckoutService) Draft(ctx context.Context, caller *domain.Identity, draftToken string) (*domain.CheckoutDraft, error) {
	if _, err := uuid.Parse(draftToken); err != nil {
		return nil, domain.ErrDraftNotFound
	}
	draft, err := s.drafts.GetDraft(ctx, draftToken)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrDraftNotFound
		}
		return nil, domain.Persistence("get draft", err)
	}
	if draft.Expired(s.now().UTC()) || draft.Status != domain.DraftStaged {
		return nil, domain.ErrDraftNotFound
	}
	if caller != nil && draft.CustomerID != nil && *draft.CustomerID != caller.UserID {
		return nil, domain.ErrDraftNotFound
	}
	return draft, nil
}

// PurgeExpired removes drafts past their TTL.
func (s *CheckoutService) PurgeExpired(ctx context.Context) (int, error) {
	n, err := s.drafts.PurgeExpiredDrafts(ctx, s.now().UTC())
	if err != nil {
		return 0, domain.Persistence("purge drafts", err)
	}
	return n, nil
}
