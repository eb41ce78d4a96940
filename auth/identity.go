package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/klipach/chatroom/session"
)

const (
	identityToolkitURL = "https://identitytoolkit.googleapis.com/v1"
	apiKeyHeader       = "X-Goog-Api-Key"
)

var (
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

var validate = validator.New()

// Credentials are what the login and register forms collect.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type SignInResponse struct {
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
}

// User returns the identity the response was issued for.
func (r SignInResponse) User() session.User {
	return session.User{ID: r.LocalID, Email: r.Email}
}

type identityError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// IdentityClient talks to the Firebase Identity Toolkit REST API.
type IdentityClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewIdentityClient(apiKey string) *IdentityClient {
	return &IdentityClient{apiKey: apiKey, baseURL: identityToolkitURL, client: http.DefaultClient}
}

// WithBaseURL points the client at another endpoint, e.g. the auth emulator.
func (c *IdentityClient) WithBaseURL(baseURL string) *IdentityClient {
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// SignUp registers a new email/password account and signs it in.
func (c *IdentityClient) SignUp(ctx context.Context, creds Credentials) (*SignInResponse, error) {
	if err := validate.Struct(creds); err != nil {
		return nil, err
	}
	return c.call(ctx, "accounts:signUp", map[string]any{
		"email":             creds.Email,
		"password":          creds.Password,
		"returnSecureToken": true,
	})
}

func (c *IdentityClient) SignIn(ctx context.Context, creds Credentials) (*SignInResponse, error) {
	if err := validate.Struct(creds); err != nil {
		return nil, err
	}
	return c.call(ctx, "accounts:signInWithPassword", map[string]any{
		"email":             creds.Email,
		"password":          creds.Password,
		"returnSecureToken": true,
	})
}

// SignInWithCustomToken exchanges a custom token minted by the Admin SDK for an ID token.
func (c *IdentityClient) SignInWithCustomToken(ctx context.Context, customToken string) (*SignInResponse, error) {
	return c.call(ctx, "accounts:signInWithCustomToken", map[string]any{
		"token":             customToken,
		"returnSecureToken": true,
	})
}

func (c *IdentityClient) call(ctx context.Context, method string, payload map[string]any) (*SignInResponse, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/%s", c.baseURL, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	// in the header the key stays out of URLs quoted by transport errors
	req.Header.Set(apiKeyHeader, c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, identityErr(resp.StatusCode, body)
	}

	var signInResp SignInResponse
	if err := json.Unmarshal(body, &signInResp); err != nil {
		return nil, err
	}
	return &signInResp, nil
}

func identityErr(status int, body []byte) error {
	var apiErr identityError
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Error.Message == "" {
		return fmt.Errorf("non-OK HTTP status: %d, response: %s", status, string(body))
	}
	// messages look like "EMAIL_EXISTS" or "WEAK_PASSWORD : Password should be at least 6 characters"
	code, _, _ := strings.Cut(apiErr.Error.Message, " ")
	switch code {
	case "EMAIL_EXISTS":
		return ErrEmailExists
	case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS", "USER_DISABLED":
		return fmt.Errorf("%w: %s", ErrInvalidCredentials, code)
	}
	return fmt.Errorf("identity toolkit: %s", apiErr.Error.Message)
}
