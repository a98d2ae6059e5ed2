// Package auth talks to the hosted auth provider (a GoTrue-compatible API).
package auth

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/teamworkery/kakao-order/internal/core/domain"
	"github.com/teamworkery/kakao-order/internal/core/ports"
	"github.com/teamworkery/kakao-order/pkg/config"
)

type Client struct {
	baseURL   string
	anonKey   string
	jwtSecret []byte
	http      *http.Client
}

var _ ports.AuthProvider = (*Client)(nil)

func NewClient(cfg config.AuthConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	c := &Client{
		baseURL: strings.TrimRight(cfg.URL, "/") + "/auth/v1",
		anonKey: cfg.AnonKey,
		http:    httpClient,
	}
	if cfg.JWTSecret != "" {
		c.jwtSecret = []byte(cfg.JWTSecret)
	}
	return c
}

type userMetadata struct {
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	Nickname string `json:"nickname"`
}

func (m userMetadata) displayName() string {
	for _, n := range []string{m.Name, m.FullName, m.Nickname} {
		if n != "" {
			return n
		}
	}
	return ""
}

type userResponse struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	UserMetadata userMetadata `json:"user_metadata"`
}

func (u userResponse) identity() domain.Identity {
	return domain.Identity{UserID: u.ID, Email: u.Email, Name: u.UserMetadata.displayName()}
}

type sessionResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int          `json:"expires_in"`
	User         userResponse `json:"user"`
}

func (s sessionResponse) session() *domain.Session {
	return &domain.Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresIn:    s.ExpiresIn,
		User:         s.User.identity(),
	}
}

type accessClaims struct {
	Email        string       `json:"email"`
	UserMetadata userMetadata `json:"user_metadata"`
	jwt.RegisteredClaims
}

// GetCurrentUser verifies the token locally when a JWT secret is configured and
// otherwise asks the provider.
func (c *Client) GetCurrentUser(ctx context.Context, accessToken string) (*domain.Identity, error) {
	if c.jwtSecret != nil {
		return c.verify(accessToken)
	}

	var user userResponse
	if err := c.do(ctx, http.MethodGet, "/user", accessToken, nil, &user); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden) {
			return nil, ports.ErrInvalidToken
		}
		return nil, err
	}
	id := user.identity()
	return &id, nil
}

func (c *Client) verify(accessToken string) (*domain.Identity, error) {
	claims := &accessClaims{}
	_, err := jwt.ParseWithClaims(accessToken, claims, func(t *jwt.Token) (interface{}, error) {
		return c.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ports.ErrInvalidToken)
	}
	return &domain.Identity{UserID: claims.Subject, Email: claims.Email, Name: claims.UserMetadata.displayName()}, nil
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error) {
	var resp sessionResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/token?grant_type=password", "", body, &resp); err != nil {
		return nil, credentialsErr(err)
	}
	return resp.session(), nil
}

// SignUp returns an empty session when the provider requires email confirmation.
func (c *Client) SignUp(ctx context.Context, email, password string) (*domain.Session, error) {
	raw := json.RawMessage{}
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/signup", "", body, &raw); err != nil {
		return nil, err
	}

	var resp sessionResponse
	if err := json.Unmarshal(raw, &resp); err == nil && resp.AccessToken != "" {
		return resp.session(), nil
	}
	var user userResponse
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("decode signup response: %w", err)
	}
	return &domain.Session{User: user.identity()}, nil
}

func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	err := c.do(ctx, http.MethodPost, "/logout", accessToken, nil, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		return ports.ErrInvalidToken
	}
	return err
}

func (c *Client) ExchangeCodeForSession(ctx context.Context, code, verifier string) (*domain.Session, error) {
	var resp sessionResponse
	body := map[string]string{"auth_code": code, "code_verifier": verifier}
	if err := c.do(ctx, http.MethodPost, "/token?grant_type=pkce", "", body, &resp); err != nil {
		return nil, credentialsErr(err)
	}
	return resp.session(), nil
}

// SignInWithOAuth builds the provider redirect with a fresh PKCE verifier.
func (c *Client) SignInWithOAuth(provider, redirectTo string) (ports.OAuthStart, error) {
	verifier, err := newVerifier()
	if err != nil {
		return ports.OAuthStart{}, err
	}
	sum := sha256.Sum256([]byte(verifier))

	q := url.Values{}
	q.Set("provider", provider)
	q.Set("redirect_to", redirectTo)
	q.Set("code_challenge", base64.RawURLEncoding.EncodeToString(sum[:]))
	q.Set("code_challenge_method", "s256")
	return ports.OAuthStart{URL: c.baseURL + "/authorize?" + q.Encode(), Verifier: verifier}, nil
}

func newVerifier() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate pkce verifier: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// APIError is a non-2xx answer from the provider.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("auth provider: %d %s", e.Status, e.Message)
}

func credentialsErr(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
		return ports.ErrInvalidCredentials
	}
	return err
}

func (c *Client) do(ctx context.Context, method, path, bearer string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", c.anonKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("auth provider request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var msg struct {
			Msg              string `json:"msg"`
			ErrorDescription string `json:"error_description"`
		}
		_ = json.Unmarshal(data, &msg)
		text := msg.Msg
		if text == "" {
			text = msg.ErrorDescription
		}
		return &APIError{Status: resp.StatusCode, Message: text}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}
