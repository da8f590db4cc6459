package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"jobboard/internal/assets"
	"jobboard/internal/blob"
	"jobboard/internal/config"
	"jobboard/internal/db"
	"jobboard/internal/engine"
	"jobboard/internal/metrics"
	"jobboard/internal/migrate"
	"jobboard/internal/repo"
	"jobboard/internal/server"
	"jobboard/internal/sweep"
)

// App holds the components built from one Config.
type App struct {
	Config  *config.Config
	DB      *sql.DB
	Repo    repo.Repo
	Blobs   *blob.Local
	Assets  *assets.Manager
	Metrics *metrics.Metrics
	Engine  engine.Engine
	Sweeper sweep.Sweeper
	Log     *logrus.Logger
}

// Open opens and migrates the database and wires storage, the engine and the
// sweeper. Blobs live on fs under cfg.Storage.Root.
func Open(ctx context.Context, cfg *config.Config, fs afero.Fs, log *logrus.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Path: cfg.Database.Path})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := migrate.Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	r := repo.New(conn)
	m := metrics.New()
	local := blob.NewLocal(fs, blob.Config{
		Root:             cfg.Storage.Root,
		PublicBaseURL:    cfg.Storage.PublicBaseURL,
		MaxImageBytes:    cfg.Storage.MaxImageBytes,
		MaxDocumentBytes: cfg.Storage.MaxDocumentBytes,
	})
	am := assets.New(local, assets.Config{Folder: cfg.Storage.Folder}, log, m)
	e := engine.New(r, am, engine.Config{MaxRetries: cfg.Lifecycle.MaxRetries}, log, m)
	return &App{
		Config:  cfg,
		DB:      conn,
		Repo:    r,
		Blobs:   local,
		Assets:  am,
		Metrics: m,
		Engine:  e,
		Sweeper: sweep.Sweeper{
			Store:   local,
			Refs:    r,
			Config:  sweep.Config{Folder: cfg.Storage.Folder, Grace: cfg.Sweeper.Grace},
			Log:     log.WithField("component", "sweeper"),
			Metrics: m,
		},
		Log: log,
	}, nil
}

// Handler builds the HTTP API. A JWT secret is required.
func (a *App) Handler() (http.Handler, error) {
	if a.Config.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("auth.jwt_secret is required; set JOBBOARD_JWT_SECRET")
	}
	return server.New(server.Config{
		Engine:   a.Engine,
		BasePath: a.Config.Server.BasePath,
		Auth: server.AuthConfig{
			JWTSecret: a.Config.Auth.JWTSecret,
			TokenTTL:  a.Config.Auth.TokenTTL,
		},
		Log:            a.Log,
		Metrics:        a.Metrics,
		Files:          a.Blobs.FileSystem(),
		MaxUploadBytes: max(a.Config.Storage.MaxImageBytes, a.Config.Storage.MaxDocumentBytes),
	})
}

func (a *App) Close() error {
	return a.DB.Close()
}
