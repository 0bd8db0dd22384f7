// Package backend opens the storage, queue and identity backends selected
// by configuration. Both binaries share it.
package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"artwink/internal/auth"
	"artwink/internal/blob"
	"artwink/internal/cloudinary"
	"artwink/internal/config"
	"artwink/internal/httpmiddleware"
	"artwink/internal/identity"
	"artwink/internal/queue"
	"artwink/internal/store"
	"artwink/internal/store/firestore"
	"artwink/internal/store/memory"
	"artwink/internal/store/postgres"
	"artwink/internal/studio"
)

// Backends are the opened dependencies.
type Backends struct {
	Store       studio.Store
	Credentials studio.CredentialStore
	Queue       queue.Queue
	Redis       *store.Redis
	Firebase    *firebase.App
	// Checks are named health probes for /healthz.
	Checks map[string]func(ctx context.Context) error

	cfg     config.App
	log     *zap.Logger
	closers []func() error
}

// Open connects everything cfg selects.
func Open(ctx context.Context, cfg config.App, log *zap.Logger) (*Backends, error) {
	b := &Backends{cfg: cfg, log: log, Checks: map[string]func(context.Context) error{}}
	if err := b.openStore(ctx); err != nil {
		b.Close()
		return nil, err
	}
	b.Checks["store"] = b.Store.Ping

	if cfg.QueueBackend == "redis" || cfg.RateLimitBackend == "redis" {
		b.Redis = store.NewRedis(cfg.RedisAddr)
		b.closers = append(b.closers, b.Redis.Close)
		b.Checks["redis"] = func(ctx context.Context) error {
			if !b.Redis.Healthy(ctx) {
				return errors.New("redis unreachable")
			}
			return nil
		}
	}
	switch cfg.QueueBackend {
	case "redis":
		b.Queue = queue.NewRedisQueue(b.Redis.Client, queue.DefaultKey)
	default:
		b.Queue = queue.NewInMemory(64)
	}
	return b, nil
}

func (b *Backends) firebaseApp(ctx context.Context) (*firebase.App, error) {
	if b.Firebase != nil {
		return b.Firebase, nil
	}
	app, err := identity.NewApp(ctx, b.cfg.FirebaseProjectID, b.cfg.FirebaseCredentials)
	if err != nil {
		return nil, err
	}
	b.Firebase = app
	return app, nil
}

func (b *Backends) openStore(ctx context.Context) error {
	switch b.cfg.StoreBackend {
	case "postgres":
		db, err := store.NewDB(b.cfg.DatabaseURL)
		if err != nil {
			_ = db.Close()
			return fmt.Errorf("postgres: %w", err)
		}
		b.closers = append(b.closers, db.Close)
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		pg := postgres.New(db.Client)
		b.Store, b.Credentials = pg, pg
	case "firestore":
		app, err := b.firebaseApp(ctx)
		if err != nil {
			return err
		}
		client, err := app.Firestore(ctx)
		if err != nil {
			return fmt.Errorf("firestore: %w", err)
		}
		b.closers = append(b.closers, client.Close)
		b.Store = firestore.New(client)
	case "memory", "":
		m := memory.New()
		b.Store, b.Credentials = m, m
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", b.cfg.StoreBackend)
	}
	b.log.Info("store opened", zap.String("backend", b.cfg.StoreBackend))
	return nil
}

// Provider returns the sign-in provider selected by AUTH_BACKEND.
func (b *Backends) Provider(ctx context.Context) (auth.Provider, error) {
	switch b.cfg.AuthBackend {
	case "firebase":
		app, err := b.firebaseApp(ctx)
		if err != nil {
			return nil, err
		}
		admin, err := app.Auth(ctx)
		if err != nil {
			return nil, fmt.Errorf("firebase auth: %w", err)
		}
		return identity.New(b.cfg.FirebaseAPIKey, admin), nil
	case "local", "":
		if b.Credentials == nil {
			return nil, fmt.Errorf("AUTH_BACKEND=local needs a store with credentials, %q has none", b.cfg.StoreBackend)
		}
		local := auth.NewLocal(b.Credentials, uuid.NewString)
		if err := b.seedAdmin(ctx, local); err != nil {
			return nil, err
		}
		return local, nil
	}
	return nil, fmt.Errorf("unknown AUTH_BACKEND %q", b.cfg.AuthBackend)
}

// seedAdmin creates the ADMIN_EMAIL account on first start. An existing
// account is left untouched.
func (b *Backends) seedAdmin(ctx context.Context, local *auth.Local) error {
	email := strings.ToLower(strings.TrimSpace(b.cfg.AdminEmail))
	if email == "" {
		return errors.New("AUTH_BACKEND=local needs ADMIN_EMAIL")
	}
	_, err := b.Credentials.GetCredentialByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, studio.ErrNotFound) {
		return fmt.Errorf("admin account lookup: %w", err)
	}
	if b.cfg.AdminPassword == "" {
		return errors.New("AUTH_BACKEND=local needs ADMIN_PASSWORD to create the admin account")
	}
	if _, err := local.SignUp(ctx, email, b.cfg.AdminPassword); err != nil {
		return fmt.Errorf("admin account: %w", err)
	}
	b.log.Info("admin account created", zap.String("email", email))
	return nil
}

// Blobs returns the artwork blob store. Cloudinary is used when selected and
// fully configured.
func (b *Backends) Blobs() blob.Store {
	if b.cfg.BlobBackend == "cloudinary" {
		if b.cfg.CloudinaryConfigured() {
			b.log.Info("cloudinary configured", zap.String("cloud", b.cfg.CloudinaryCloudName))
			return cloudinary.New(b.cfg.CloudinaryCloudName, b.cfg.CloudinaryAPIKey, b.cfg.CloudinaryAPISecret, b.cfg.CloudinaryFolder)
		}
		b.log.Warn("cloudinary not configured (CLOUDINARY_CLOUD_NAME / API_KEY / API_SECRET not set), keeping artworks in memory")
	}
	return blob.NewMemory()
}

// Limiter returns the per-IP limiter selected by RATE_LIMIT_BACKEND.
func (b *Backends) Limiter() httpmiddleware.Limiter {
	if b.cfg.RateLimitBackend == "redis" && b.Redis != nil {
		return httpmiddleware.NewRedisWindow(b.Redis.Client, b.cfg.RateLimitPerMin)
	}
	return httpmiddleware.NewSimpleTokenBucket(b.cfg.RateLimitPerMin, b.cfg.RateLimitPerMin)
}

// Close releases every opened backend in reverse order.
func (b *Backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			b.log.Warn("close failed", zap.Error(err))
		}
	}
	b.closers = nil
}
