package auth

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"artwink/internal/studio"
)

// Identity is an authenticated account.
type Identity struct {
	UID   string
	Email string
}

// Provider is the email/password account backend. Failures are *studio.AuthError.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (Identity, error)
	SignUp(ctx context.Context, email, password string) (Identity, error)
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether email looks like an address.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidateCredentials checks a sign-in form before any backend call.
func ValidateCredentials(email, password string) error {
	switch {
	case email == "":
		return studio.Invalid("email", "Email is required")
	case !ValidEmail(email):
		return studio.Invalid("email", "Please enter a valid email address")
	case password == "":
		return studio.Invalid("password", "Password is required")
	case len(password) < 5:
		return studio.Invalid("password", "Password must be at least 5 characters")
	}
	return nil
}

const (
	maxFailures   = 5
	failureWindow = 15 * time.Minute
	minPassword   = 6
)

// Local authenticates against bcrypt hashes in a CredentialStore.
type Local struct {
	creds studio.CredentialStore
	ids   func() string
	now   func() time.Time

	mu       sync.Mutex
	failures map[string][]time.Time
}

// NewLocal builds a provider; ids generates user ids for new accounts.
func NewLocal(creds studio.CredentialStore, ids func() string) *Local {
	return &Local{
		creds:    creds,
		ids:      ids,
		now:      time.Now,
		failures: make(map[string][]time.Time),
	}
}

func (l *Local) SignIn(ctx context.Context, email, password string) (Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !ValidEmail(email) {
		return Identity{}, studio.NewAuthError(studio.AuthInvalidEmail, nil)
	}
	if l.throttled(email) {
		return Identity{}, studio.NewAuthError(studio.AuthTooManyRequest, nil)
	}
	cred, err := l.creds.GetCredentialByEmail(ctx, email)
	if errors.Is(err, studio.ErrNotFound) {
		return Identity{}, studio.NewAuthError(studio.AuthUserNotFound, err)
	}
	if err != nil {
		return Identity{}, studio.NewAuthError(studio.AuthUnknown, err)
	}
	if cred.Disabled {
		return Identity{}, studio.NewAuthError(studio.AuthUserDisabled, nil)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		l.fail(email)
		return Identity{}, studio.NewAuthError(studio.AuthWrongPassword, nil)
	}
	l.reset(email)
	return Identity{UID: cred.UserID, Email: cred.Email}, nil
}

func (l *Local) SignUp(ctx context.Context, email, password string) (Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !ValidEmail(email) {
		return Identity{}, studio.NewAuthError(studio.AuthInvalidEmail, nil)
	}
	if len(password) < minPassword {
		return Identity{}, studio.NewAuthError(studio.AuthWeakPassword, nil)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Identity{}, studio.NewAuthError(studio.AuthUnknown, err)
	}
	cred := studio.Credential{UserID: l.ids(), Email: email, PasswordHash: string(hash)}
	if err := l.creds.CreateCredential(ctx, cred); err != nil {
		var authErr *studio.AuthError
		if errors.As(err, &authErr) {
			return Identity{}, authErr
		}
		return Identity{}, studio.NewAuthError(studio.AuthUnknown, err)
	}
	return Identity{UID: cred.UserID, Email: email}, nil
}

func (l *Local) throttled(email string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-failureWindow)
	kept := l.failures[email][:0]
	for _, at := range l.failures[email] {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	if len(kept) == 0 {
		delete(l.failures, email)
		return false
	}
	l.failures[email] = kept
	return len(kept) >= maxFailures
}

func (l *Local) fail(email string) {
	l.mu.Lock()
	l.failures[email] = append(l.failures[email], l.now())
	l.mu.Unlock()
}

func (l *Local) reset(email string) {
	l.mu.Lock()
	delete(l.failures, email)
	l.mu.Unlock()
}
