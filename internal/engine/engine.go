package engine

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"jobboard/internal/assets"
	"jobboard/internal/domain"
	"jobboard/internal/metrics"
	"jobboard/internal/repo"
)

// Store is the persistence the engine mutates. repo.Repo implements it.
type Store interface {
	InsertUser(ctx context.Context, u domain.User) error
	GetUser(ctx context.Context, id string) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	ListUsers(ctx context.Context, role domain.Role, limit, offset int) ([]domain.User, error)
	DeleteUser(ctx context.Context, id, actorID string) ([]domain.ResumeRef, error)

	InsertCompany(ctx context.Context, c domain.Company, actorID string) error
	GetCompany(ctx context.Context, id string) (domain.Company, error)
	ResolveCompany(ctx context.Context, id string) (domain.OwnershipChain, error)
	ListCompanies(ctx context.Context, ownerID string, limit, offset int) ([]domain.Company, error)
	UpdateCompany(ctx context.Context, c domain.Company, actorID string) error
	DeleteCompany(ctx context.Context, id, actorID string) ([]domain.ResumeRef, error)

	InsertJob(ctx context.Context, j domain.Job, actorID string) error
	GetJob(ctx context.Context, id string) (domain.Job, error)
	ResolveJob(ctx context.Context, id string) (domain.OwnershipChain, error)
	ListJobs(ctx context.Context, f repo.JobFilter) ([]domain.Job, error)
	UpdateJob(ctx context.Context, j domain.Job, evtType, actorID string) error
	DeleteJob(ctx context.Context, id, actorID string) ([]domain.ResumeRef, error)

	InsertApplication(ctx context.Context, a domain.Application, actorID string) error
	HasApplication(ctx context.Context, jobID, applicantID string) (bool, error)
	ResolveApplication(ctx context.Context, id string) (domain.OwnershipChain, error)
	ListApplications(ctx context.Context, f repo.ApplicationFilter) ([]domain.ApplicationView, error)
	UpdateApplication(ctx context.Context, id string, version int64, p repo.ApplicationPatch, actorID string) error
	DeleteApplication(ctx context.Context, id, actorID string) (domain.ResumeRef, error)

	ListEvents(ctx context.Context, limit int, entityKind, entityID string) ([]domain.Event, error)
}

type Config struct {
	// MaxRetries bounds attempts of a write that lost an optimistic version race.
	MaxRetries int
}

// Engine is the only component that mutates persistent state. Every operation
// resolves the ownership chain, authorizes the principal, applies business
// rules and persists, in that order.
type Engine struct {
	Store   Store
	Assets  *assets.Manager
	Log     logrus.FieldLogger
	Metrics *metrics.Metrics
	Config  Config
	Now     func() time.Time

	validate *validator.Validate
}

func New(store Store, am *assets.Manager, cfg Config, log logrus.FieldLogger, m *metrics.Metrics) Engine {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return Engine{
		Store:    store,
		Assets:   am,
		Log:      log,
		Metrics:  m,
		Config:   cfg,
		Now:      time.Now,
		validate: newValidator(),
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

// retry runs fn until it stops failing with repo.ErrStaleVersion or the
// attempt budget is spent. fn must re-read and re-authorize on every call.
func (e Engine) retry(ctx context.Context, op, id string, fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if !errors.Is(err, repo.ErrStaleVersion) {
			return err
		}
		if attempt >= e.Config.MaxRetries {
			e.Log.WithFields(logrus.Fields{"op": op, "application_id": id, "attempts": attempt}).Warn("giving up after concurrent modifications")
			return ConflictError{Reason: "application was modified concurrently, try again"}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		e.Metrics.Retry(op)
		e.Log.WithFields(logrus.Fields{"op": op, "application_id": id, "attempt": attempt}).Debug("stale version, retrying")
	}
}

func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
