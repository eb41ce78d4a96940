package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func identityServer(t *testing.T) *httptest.Server {
	t.Helper()
	accounts := map[string]string{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Goog-Api-Key") != "api-key" || r.URL.RawQuery != "" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"code":400,"message":"API key not valid"}}`))
			return
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		email, _ := payload["email"].(string)
		password, _ := payload["password"].(string)

		fail := func(msg string) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": 400, "message": msg}})
		}
		switch r.URL.Path {
		case "/accounts:signUp":
			if _, ok := accounts[email]; ok {
				fail("EMAIL_EXISTS")
				return
			}
			accounts[email] = password
		case "/accounts:signInWithPassword":
			if accounts[email] != password {
				fail("INVALID_LOGIN_CREDENTIALS")
				return
			}
		default:
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(SignInResponse{IDToken: "id-" + email, LocalID: "uid-" + email, Email: email})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestIdentityClient(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	srv := identityServer(t)
	client := NewIdentityClient("api-key").WithBaseURL(srv.URL + "/")
	creds := Credentials{Email: "alice@example.com", Password: "secret1"}

	resp, err := client.SignUp(ctx, creds)
	req.NoError(err)
	req.Equal("id-alice@example.com", resp.IDToken)
	req.Equal("uid-alice@example.com", resp.User().ID)

	_, err = client.SignUp(ctx, creds)
	req.ErrorIs(err, ErrEmailExists)

	resp, err = client.SignIn(ctx, creds)
	req.NoError(err)
	req.Equal("alice@example.com", resp.User().Email)

	_, err = client.SignIn(ctx, Credentials{Email: creds.Email, Password: "wrong-password"})
	req.ErrorIs(err, ErrInvalidCredentials)

	_, err = NewIdentityClient("bad-key").WithBaseURL(srv.URL).SignIn(ctx, creds)
	req.ErrorContains(err, "API key not valid")
}

func TestCredentialsValidation(t *testing.T) {
	tests := []struct {
		name    string
		creds   Credentials
		wantErr bool
	}{
		{name: "valid", creds: Credentials{Email: "a@example.com", Password: "123456"}},
		{name: "invalid email", creds: Credentials{Email: "not-an-email", Password: "123456"}, wantErr: true},
		{name: "short password", creds: Credentials{Email: "a@example.com", Password: "12345"}, wantErr: true},
		{name: "missing email", creds: Credentials{Password: "123456"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// no server: validation has to fail before any request is made
			client := NewIdentityClient("api-key").WithBaseURL("http://127.0.0.1:0")
			_, err := client.SignIn(context.Background(), tt.creds)
			if tt.wantErr {
				require.Error(t, err)
				require.NotContains(t, err.Error(), "127.0.0.1")
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), "127.0.0.1")
		})
	}
}

func TestTransportErrorHidesAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL
	srv.Close()

	_, err := NewIdentityClient("secret-api-key").WithBaseURL(baseURL).SignIn(context.Background(),
		Credentials{Email: "a@example.com", Password: "123456"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "accounts:signInWithPassword")
	require.NotContains(t, err.Error(), "secret-api-key")
}
