package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/klipach/chatroom/session"
)

const devIssuer = "chatroom-dev"

var errEmptySecret = errors.New("empty dev token secret")

// DevClaims is the payload of tokens used when running without Firebase.
type DevClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// DevVerifier accepts HS256 tokens signed with a shared secret.
type DevVerifier struct {
	secret []byte
}

func NewDevVerifier(secret string) (*DevVerifier, error) {
	if secret == "" {
		return nil, errEmptySecret
	}
	return &DevVerifier{secret: []byte(secret)}, nil
}

func (v *DevVerifier) Verify(_ context.Context, token string) (session.User, error) {
	claims := &DevClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(devIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return session.User{}, fmt.Errorf("%w: %w", session.ErrUnauthenticated, err)
	}
	if claims.Subject == "" {
		return session.User{}, fmt.Errorf("%w: token has no subject", session.ErrUnauthenticated)
	}
	return session.User{ID: claims.Subject, Email: claims.Email}, nil
}

// IssueDevToken signs a token for user valid for ttl.
func IssueDevToken(secret string, user session.User, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errEmptySecret
	}
	now := time.Now()
	claims := DevClaims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    devIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
