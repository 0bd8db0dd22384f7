package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"artwink/internal/studio"
)

// Profiles looks up parent profiles by auth uid.
type Profiles interface {
	GetParent(ctx context.Context, id string) (studio.Parent, error)
}

// GateConfig configures role resolution and token issuance.
type GateConfig struct {
	AdminEmail string
	Issuer     string
	SigningKey string
	TTL        time.Duration
}

// Gate turns provider identities into role-bearing sessions and publishes
// every transition on its Feed.
type Gate struct {
	provider Provider
	profiles Profiles
	cfg      GateConfig
	feed     *Feed
	now      func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time
}

// SignInResult is returned by a successful sign-in.
type SignInResult struct {
	Session Session
	Token   Token
	Profile *studio.Parent
}

// NewGate wires a gate. feed may be nil.
func NewGate(provider Provider, profiles Profiles, feed *Feed, cfg GateConfig) *Gate {
	if feed == nil {
		feed = NewFeed()
	}
	return &Gate{
		provider: provider,
		profiles: profiles,
		cfg:      cfg,
		feed:     feed,
		now:      time.Now,
		revoked:  make(map[string]time.Time),
	}
}

// Feed returns the auth-state feed.
func (g *Gate) Feed() *Feed { return g.feed }

// SignIn validates the form, authenticates and resolves the role.
func (g *Gate) SignIn(ctx context.Context, email, password string) (SignInResult, error) {
	email = strings.TrimSpace(email)
	if err := ValidateCredentials(email, password); err != nil {
		return SignInResult{}, err
	}
	id, err := g.provider.SignIn(ctx, email, password)
	if err != nil {
		return SignInResult{}, err
	}
	sess, profile, err := g.Resolve(ctx, id)
	if err != nil {
		return SignInResult{}, err
	}
	tok, err := Issue(sess, g.cfg.Issuer, g.cfg.SigningKey, g.cfg.TTL)
	if err != nil {
		return SignInResult{}, err
	}
	sess.TokenID = tok.ID
	g.feed.Publish(Event{Kind: SignedIn, Session: sess})
	return SignInResult{Session: sess, Token: tok, Profile: profile}, nil
}

// Resolve maps an identity to a role: admin by configured email, parent
// when a profile exists, otherwise auth/no-profile.
func (g *Gate) Resolve(ctx context.Context, id Identity) (Session, *studio.Parent, error) {
	if g.cfg.AdminEmail != "" && strings.EqualFold(strings.TrimSpace(id.Email), g.cfg.AdminEmail) {
		return Session{UserID: id.UID, Email: id.Email, Role: RoleAdmin}, nil, nil
	}
	p, err := g.profiles.GetParent(ctx, id.UID)
	if errors.Is(err, studio.ErrNotFound) {
		return Session{}, nil, studio.NewAuthError(studio.AuthNoProfile, err)
	}
	if err != nil {
		return Session{}, nil, studio.IOFailure("load profile", err)
	}
	return Session{UserID: id.UID, Email: id.Email, Role: RoleParent}, &p, nil
}

// Profile returns the parent profile of a parent session, nil otherwise.
func (g *Gate) Profile(ctx context.Context, s Session) (*studio.Parent, error) {
	if s.EffectiveRole() != RoleParent {
		return nil, nil
	}
	p, err := g.profiles.GetParent(ctx, s.UserID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SignOut revokes the session's token and publishes the transition.
func (g *Gate) SignOut(s Session) {
	if s.Anonymous() {
		return
	}
	if s.TokenID != "" {
		g.mu.Lock()
		now := g.now()
		for id, until := range g.revoked {
			if now.After(until) {
				delete(g.revoked, id)
			}
		}
		g.revoked[s.TokenID] = now.Add(g.cfg.TTL)
		g.mu.Unlock()
	}
	g.feed.Publish(Event{Kind: SignedOut, Session: s})
}

// Revoked reports whether tokenID was signed out.
func (g *Gate) Revoked(tokenID string) bool {
	if tokenID == "" {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.revoked[tokenID]
	return ok
}
