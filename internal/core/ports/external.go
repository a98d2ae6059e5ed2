package ports

import (
	"context"
	"errors"

	"github.com/teamworkery/kakao-order/internal/core/domain"
)

var (
	ErrInvalidToken         = errors.New("invalid access token")
	ErrWebhookNotConfigured = errors.New("webhook url not configured")
	ErrInvalidCredentials   = errors.New("invalid credentials")
)

// OAuthStart is the redirect to the identity provider plus the PKCE verifier to keep.
type OAuthStart struct {
	URL      string
	Verifier string
}

type AuthProvider interface {
	GetCurrentUser(ctx context.Context, accessToken string) (*domain.Identity, error)
	SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error)
	SignUp(ctx context.Context, email, password string) (*domain.Session, error)
	SignOut(ctx context.Context, accessToken string) error
	ExchangeCodeForSession(ctx context.Context, code, verifier string) (*domain.Session, error)
	SignInWithOAuth(provider, redirectTo string) (OAuthStart, error)
}

type ObjectStorage interface {
	Upload(ctx context.Context, bucket, filename, contentType string, data []byte) error
	PublicURL(bucket, filename string) string
}

type WebhookSender interface {
	Send(ctx context.Context, event domain.OrderEvent) error
}
