package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/teamworkery/kakao-order/internal/core/domain"
	"github.com/teamworkery/kakao-order/internal/core/ports"
	"github.com/teamworkery/kakao-order/pkg/logger"
)

// IdentityService maps an authenticated caller to a profile.
type IdentityService struct {
	auth     ports.AuthProvider
	profiles ports.ProfileRepository
	logger   *logger.Logger
	now      func() time.Time
}

func NewIdentityService(auth ports.AuthProvider, profiles ports.ProfileRepository, logger *logger.Logger) *IdentityService {
	return &IdentityService{auth: auth, profiles: profiles, logger: logger, now: time.Now}
}

// Resolve verifies the access token. A missing or rejected token is ErrAuthRequired.
func (s *IdentityService) Resolve(ctx context.Context, accessToken string) (*domain.Identity, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, domain.ErrAuthRequired
	}
	identity, err := s.auth.GetCurrentUser(ctx, accessToken)
	if err != nil {
		if errors.Is(err, ports.ErrInvalidToken) {
			return nil, domain.ErrAuthRequired
		}
		return nil, err
	}
	return identity, nil
}

// EnsureProfile returns the caller's profile, creating a customer profile on first sight.
func (s *IdentityService) EnsureProfile(ctx context.Context, identity domain.Identity) (*domain.Profile, error) {
	profile, err := s.profiles.GetProfile(ctx, identity.UserID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, domain.Persistence("get profile", err)
	}

	now := s.now().UTC()
	name := identity.Name
	if name == "" {
		name, _, _ = strings.Cut(identity.Email, "@")
	}
	profile, err = s.profiles.CreateProfile(ctx, &domain.Profile{
		ID:          identity.UserID,
		DisplayName: name,
		Role:        domain.RoleCustomer,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, domain.Persistence("create profile", err)
	}
	s.logger.Info("", "profile_created", "Profile created for new identity", map[string]interface{}{"profile_id": profile.ID})
	return profile, nil
}

// Profile loads an existing profile; ErrNotFound passes through.
func (s *IdentityService) Profile(ctx context.Context, id string) (*domain.Profile, error) {
	profile, err := s.profiles.GetProfile(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, domain.Persistence("get profile", err)
	}
	return profile, nil
}

// RequireStore returns the caller's profile when it owns a store.
func (s *IdentityService) RequireStore(ctx context.Context, identity *domain.Identity) (*domain.Profile, error) {
	if identity == nil {
		return nil, domain.ErrAuthRequired
	}
	profile, err := s.Profile(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrForbidden
		}
		return nil, err
	}
	if !profile.IsStore() {
		return nil, domain.ErrForbidden
	}
	return profile, nil
}

// UpdateProfile applies self-service changes. Store fields can only be edited by store profiles.
func (s *IdentityService) UpdateProfile(ctx context.Context, identity *domain.Identity, upd domain.ProfileUpdate) (*domain.Profile, error) {
	if identity == nil {
		return nil, domain.ErrAuthRequired
	}
	profile, err := s.EnsureProfile(ctx, *identity)
	if err != nil {
		return nil, err
	}
	if (upd.StoreName != nil || upd.StoreNumber != nil || upd.StoreImage != nil) && !profile.IsStore() {
		return nil, domain.ErrForbidden
	}
	if upd.StoreName != nil && strings.TrimSpace(*upd.StoreName) == "" {
		return nil, domain.NewValidationError("store_name", "must not be empty")
	}
	if upd.PhoneNumber != nil {
		if err := CheckPhone(*upd.PhoneNumber); err != nil {
			return nil, err
		}
		phone := strings.TrimSpace(*upd.PhoneNumber)
		upd.PhoneNumber = &phone
	}

	updated, err := s.profiles.UpdateProfile(ctx, identity.UserID, upd)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, domain.NewValidationError("store_name", "already taken")
		}
		return nil, domain.Persistence("update profile", err)
	}
	return updated, nil
}

func (s *IdentityService) UpdatePhone(ctx context.Context, identity *domain.Identity, phone string) (*domain.Profile, error) {
	return s.UpdateProfile(ctx, identity, domain.ProfileUpdate{PhoneNumber: &phone})
}

func (s *IdentityService) Login(ctx context.Context, email, password string) (*domain.Session, *domain.Profile, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, nil, domain.NewValidationError("email", "email and password are required")
	}
	session, err := s.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, nil, err
	}
	profile, err := s.EnsureProfile(ctx, session.User)
	if err != nil {
		return nil, nil, err
	}
	return session, profile, nil
}

func (s *IdentityService) Signup(ctx context.Context, email, password string) (*domain.Session, error) {
	if !strings.Contains(email, "@") {
		return nil, domain.NewValidationError("email", "invalid address")
	}
	if len(password) < 6 {
		return nil, domain.NewValidationError("password", "must be at least 6 characters")
	}
	session, err := s.auth.SignUp(ctx, email, password)
	if err != nil {
		return nil, err
	}
	// Providers that require email confirmation return no session yet.
	if session.AccessToken != "" && session.User.UserID != "" {
		if _, err := s.EnsureProfile(ctx, session.User); err != nil {
			return nil, err
		}
	}
	return session, nil
}

func (s *IdentityService) Logout(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	if err := s.auth.SignOut(ctx, accessToken); err != nil && !errors.Is(err, ports.ErrInvalidToken) {
		return err
	}
	return nil
}

func (s *IdentityService) StartOAuth(provider, redirectTo string) (ports.OAuthStart, error) {
	if provider == "" {
		return ports.OAuthStart{}, domain.NewValidationError("provider", "required")
	}
	return s.auth.SignInWithOAuth(provider, redirectTo)
}

// CompleteOAuth exchanges the callback code and ensures the caller has a profile.
func (s *IdentityService) CompleteOAuth(ctx context.Context, code, verifier string) (*domain.Session, *domain.Profile, error) {
	if code == "" {
		return nil, nil, domain.NewValidationError("code", "required")
	}
	session, err := s.auth.ExchangeCodeForSession(ctx, code, verifier)
	if err != nil {
		return nil, nil, err
	}
	profile, err := s.EnsureProfile(ctx, session.User)
	if err != nil {
		return nil, nil, err
	}
	return session, profile, nil
}
