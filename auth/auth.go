package auth

import (
	"context"
	"fmt"
	"net/http"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/klipach/chatroom/session"
)

const emailClaim = "email"

// Verifier turns a bearer token into the user it was issued to.
type Verifier interface {
	Verify(ctx context.Context, token string) (session.User, error)
}

// FirebaseVerifier checks Firebase ID tokens.
type FirebaseVerifier struct {
	client *auth.Client
}

func NewFirebaseVerifier(ctx context.Context, projectID string) (*FirebaseVerifier, error) {
	var conf *firebase.Config
	if projectID != "" {
		conf = &firebase.Config{ProjectID: projectID}
	}
	app, err := firebase.NewApp(ctx, conf)
	if err != nil {
		return nil, err
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, err
	}
	return &FirebaseVerifier{client: client}, nil
}

func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (session.User, error) {
	idToken, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		return session.User{}, fmt.Errorf("%w: %w", session.ErrUnauthenticated, err)
	}
	return userFromToken(idToken), nil
}

func userFromToken(token *auth.Token) session.User {
	email, _ := token.Claims[emailClaim].(string)
	return session.User{ID: token.UID, Email: email}
}

// Authenticate resolves the session of the request's bearer token.
func Authenticate(req *http.Request, v Verifier) (session.Session, error) {
	jwtToken, err := BearerTokenFromRequest(req)
	if err != nil {
		return session.Session{}, fmt.Errorf("%w: %w", session.ErrUnauthenticated, err)
	}
	user, err := v.Verify(req.Context(), jwtToken)
	if err != nil {
		return session.Session{}, err
	}
	return session.New(user), nil
}
