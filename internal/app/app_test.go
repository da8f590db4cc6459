package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobboard/internal/config"
	"jobboard/internal/domain"
	"jobboard/internal/engine"
	"jobboard/internal/logging"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "jobboard.db")
	cfg.Storage.Root = "/files"
	return cfg
}

func TestOpenWiresComponents(t *testing.T) {
	ctx := context.Background()
	a, err := Open(ctx, testConfig(t), afero.NewMemMapFs(), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	u, err := a.Engine.Register(ctx, engine.RegisterInput{
		Name:     "Jo",
		Email:    "jo@example.com",
		Password: "correct-horse",
		Role:     domain.RoleJobSeeker,
	})
	require.NoError(t, err)
	got, err := a.Repo.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "jo@example.com", got.Email)

	res, err := a.Sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Scanned)
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Lifecycle.MaxRetries = 0
	_, err := Open(context.Background(), cfg, afero.NewMemMapFs(), logging.Discard())
	assert.Error(t, err)
}

func TestHandlerRequiresSecret(t *testing.T) {
	cfg := testConfig(t)
	a, err := Open(context.Background(), cfg, afero.NewMemMapFs(), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	_, err = a.Handler()
	require.Error(t, err)

	cfg.Auth.JWTSecret = "s3cret"
	h, err := a.Handler()
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
