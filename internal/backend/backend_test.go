package backend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"artwink/internal/auth"
	"artwink/internal/blob"
	"artwink/internal/config"
	"artwink/internal/httpmiddleware"
	"artwink/internal/queue"
	"artwink/internal/store/memory"
	"artwink/internal/studio"
)

func memoryConfig() config.App {
	return config.App{
		StoreBackend:     "memory",
		QueueBackend:     "memory",
		RateLimitBackend: "memory",
		RateLimitPerMin:  10,
		AuthBackend:      "local",
		AdminEmail:       "Admin@ArtWink.studio",
		AdminPassword:    "adminpw",
		BlobBackend:      "memory",
		JWTIssuer:        "test",
		JWTSigningKey:    "test-key",
		AccessTTL:        time.Hour,
	}
}

func TestOpenMemory(t *testing.T) {
	ctx := context.Background()
	b, err := Open(ctx, memoryConfig(), zap.NewNop())
	require.NoError(t, err)
	defer b.Close()

	assert.IsType(t, &memory.Store{}, b.Store)
	assert.IsType(t, &queue.InMemory{}, b.Queue)
	assert.Nil(t, b.Redis)
	require.Contains(t, b.Checks, "store")
	assert.NoError(t, b.Checks["store"](ctx))

	p, err := b.Provider(ctx)
	require.NoError(t, err)
	assert.IsType(t, &auth.Local{}, p)
	assert.IsType(t, &blob.Memory{}, b.Blobs())
	assert.IsType(t, &httpmiddleware.SimpleTokenBucket{}, b.Limiter())
}

func TestUnconfiguredCloudinaryFallsBack(t *testing.T) {
	cfg := memoryConfig()
	cfg.BlobBackend = "cloudinary"
	b, err := Open(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &blob.Memory{}, b.Blobs())
}

func TestUnknownBackends(t *testing.T) {
	cfg := memoryConfig()
	cfg.StoreBackend = "sqlite"
	_, err := Open(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)

	cfg = memoryConfig()
	cfg.AuthBackend = "ldap"
	b, err := Open(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	_, err = b.Provider(context.Background())
	assert.Error(t, err)
}

func TestLocalProviderSeedsAdmin(t *testing.T) {
	ctx := context.Background()
	cfg := memoryConfig()
	b, err := Open(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer b.Close()

	p, err := b.Provider(ctx)
	require.NoError(t, err)
	cred, err := b.Credentials.GetCredentialByEmail(ctx, "admin@artwink.studio")
	require.NoError(t, err)

	gate := auth.NewGate(p, b.Store, nil, auth.GateConfig{
		AdminEmail: cfg.AdminEmail,
		Issuer:     cfg.JWTIssuer,
		SigningKey: cfg.JWTSigningKey,
		TTL:        cfg.AccessTTL,
	})
	res, err := gate.SignIn(ctx, "admin@artwink.studio", "adminpw")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, res.Session.Role)

	// a second start keeps the existing account
	_, err = b.Provider(ctx)
	require.NoError(t, err)
	again, err := b.Credentials.GetCredentialByEmail(ctx, "admin@artwink.studio")
	require.NoError(t, err)
	assert.Equal(t, cred.UserID, again.UserID)

	b.cfg.AdminPassword = ""
	_, err = b.Provider(ctx)
	assert.NoError(t, err)
}

func TestLocalProviderNeedsAdminPassword(t *testing.T) {
	ctx := context.Background()
	cfg := memoryConfig()
	cfg.AdminPassword = ""
	b, err := Open(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer b.Close()

	_, err = b.Provider(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ADMIN_PASSWORD")
	_, err = b.Credentials.GetCredentialByEmail(ctx, "admin@artwink.studio")
	assert.True(t, errors.Is(err, studio.ErrNotFound))

	cfg.AdminPassword = "123"
	b2, err := Open(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer b2.Close()
	_, err = b2.Provider(ctx)
	assert.Error(t, err)
}
