// Package identity signs users in against Firebase Authentication.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"artwink/internal/auth"
	"artwink/internal/studio"
)

// NewApp initializes the Firebase app shared by the identity client and the
// Firestore store. An empty credentialsFile uses application default credentials.
func NewApp(ctx context.Context, projectID, credentialsFile string) (*firebase.App, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	var cfg *firebase.Config
	if projectID != "" {
		cfg = &firebase.Config{ProjectID: projectID}
	}
	app, err := firebase.NewApp(ctx, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase init: %w", err)
	}
	return app, nil
}

// UserCreator is the admin SDK surface used for account creation.
type UserCreator interface {
	CreateUser(ctx context.Context, user *fbauth.UserToCreate) (*fbauth.UserRecord, error)
}

// Client implements auth.Provider. Sign-in goes through the Identity Toolkit
// REST API, account creation through the admin SDK.
type Client struct {
	APIKey  string
	BaseURL string
	HTTP    *http.Client
	Admin   UserCreator
}

// New creates a client with the public Identity Toolkit endpoint.
func New(apiKey string, admin UserCreator) *Client {
	return &Client{
		APIKey:  apiKey,
		BaseURL: "https://identitytoolkit.googleapis.com",
		Admin:   admin,
		HTTP: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

var restCodes = map[string]string{
	"INVALID_EMAIL":               studio.AuthInvalidEmail,
	"EMAIL_NOT_FOUND":             studio.AuthUserNotFound,
	"INVALID_PASSWORD":            studio.AuthWrongPassword,
	"INVALID_LOGIN_CREDENTIALS":   studio.AuthWrongPassword,
	"USER_DISABLED":               studio.AuthUserDisabled,
	"TOO_MANY_ATTEMPTS_TRY_LATER": studio.AuthTooManyRequest,
	"EMAIL_EXISTS":                studio.AuthEmailInUse,
	"WEAK_PASSWORD":               studio.AuthWeakPassword,
}

// mapRESTError turns messages like "WEAK_PASSWORD : Password should be..." into auth codes.
func mapRESTError(message string) string {
	code := strings.TrimSpace(strings.SplitN(message, ":", 2)[0])
	if mapped, ok := restCodes[code]; ok {
		return mapped
	}
	return studio.AuthUnknown
}

// SignIn verifies email and password.
func (c *Client) SignIn(ctx context.Context, email, password string) (auth.Identity, error) {
	body, _ := json.Marshal(map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
	url := fmt.Sprintf("%s/v1/accounts:signInWithPassword?key=%s", c.BaseURL, c.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return auth.Identity{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return auth.Identity{}, studio.NewAuthError(studio.AuthUnknown, fmt.Errorf("identity request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		var out struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(bodyBytes, &out) != nil {
			return auth.Identity{}, studio.NewAuthError(studio.AuthUnknown, fmt.Errorf("identity error %s: %s", resp.Status, string(bodyBytes)))
		}
		return auth.Identity{}, studio.NewAuthError(mapRESTError(out.Error.Message), fmt.Errorf("identity error %s: %s", resp.Status, out.Error.Message))
	}

	var out struct {
		LocalID string `json:"localId"`
		Email   string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return auth.Identity{}, studio.NewAuthError(studio.AuthUnknown, fmt.Errorf("failed to decode response: %w", err))
	}
	return auth.Identity{UID: out.LocalID, Email: out.Email}, nil
}

// SignUp creates an enabled email/password account.
func (c *Client) SignUp(ctx context.Context, email, password string) (auth.Identity, error) {
	if !auth.ValidEmail(email) {
		return auth.Identity{}, studio.NewAuthError(studio.AuthInvalidEmail, nil)
	}
	if len(password) < 6 {
		return auth.Identity{}, studio.NewAuthError(studio.AuthWeakPassword, nil)
	}
	params := (&fbauth.UserToCreate{}).Email(email).Password(password).Disabled(false)
	rec, err := c.Admin.CreateUser(ctx, params)
	if err != nil {
		if fbauth.IsEmailAlreadyExists(err) {
			return auth.Identity{}, studio.NewAuthError(studio.AuthEmailInUse, err)
		}
		return auth.Identity{}, studio.NewAuthError(studio.AuthUnknown, err)
	}
	return auth.Identity{UID: rec.UID, Email: rec.Email}, nil
}
