package assets

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"jobboard/internal/blob"
	"jobboard/internal/domain"
	"jobboard/internal/metrics"
)

type Config struct {
	// Folder is the blob folder resumes are stored under.
	Folder string
	// ReleaseConcurrency bounds parallel deletes in ReleaseAll.
	ReleaseConcurrency int
}

// Error reports a failed blob operation that the caller must not ignore.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("resume %s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Manager owns the lifecycle of resume blobs: one live blob per application.
type Manager struct {
	store   blob.Store
	cfg     Config
	log     logrus.FieldLogger
	metrics *metrics.Metrics
}

func New(store blob.Store, cfg Config, log logrus.FieldLogger, m *metrics.Metrics) *Manager {
	if cfg.Folder == "" {
		cfg.Folder = "applications"
	}
	if cfg.ReleaseConcurrency <= 0 {
		cfg.ReleaseConcurrency = 4
	}
	return &Manager{store: store, cfg: cfg, log: log, metrics: m}
}

func (m *Manager) Folder() string { return m.cfg.Folder }

// Upload stores obj and returns its reference.
func (m *Manager) Upload(ctx context.Context, obj blob.Object) (domain.ResumeRef, error) {
	stored, err := m.store.Upload(ctx, obj, m.cfg.Folder)
	if err != nil {
		return domain.ResumeRef{}, &Error{Op: "upload", Err: err}
	}
	return domain.ResumeRef{URL: stored.URL, Key: stored.Key}, nil
}

// Replace uploads obj and hands the new reference to commit, which persists it
// and returns the reference it displaced (zero means current). Only after
// commit succeeds is the displaced blob deleted. If commit fails the new blob
// is released and commit's error is returned unchanged. Failing to delete the
// displaced blob is logged and never reported.
func (m *Manager) Replace(ctx context.Context, current domain.ResumeRef, obj blob.Object, commit func(next domain.ResumeRef) (domain.ResumeRef, error)) (domain.ResumeRef, error) {
	next, err := m.Upload(ctx, obj)
	if err != nil {
		return domain.ResumeRef{}, err
	}
	displaced, err := commit(next)
	if err != nil {
		m.Release(ctx, next, "rollback")
		return domain.ResumeRef{}, err
	}
	if displaced.IsZero() {
		displaced = current
	}
	if !displaced.IsZero() && m.keyOf(displaced) != next.Key {
		m.Release(ctx, displaced, "replace")
	}
	return next, nil
}

// Release deletes the blob behind ref. Failures are logged and counted.
func (m *Manager) Release(ctx context.Context, ref domain.ResumeRef, op string) {
	key := m.keyOf(ref)
	if key == "" {
		return
	}
	err := m.store.Delete(ctx, key)
	switch {
	case err == nil:
		m.log.WithFields(logrus.Fields{"op": op, "key": key}).Debug("resume released")
	case errors.Is(err, blob.ErrNotFound):
		m.log.WithFields(logrus.Fields{"op": op, "key": key}).Debug("resume already gone")
	default:
		m.metrics.CleanupFailure(op)
		m.log.WithError(err).WithFields(logrus.Fields{"op": op, "key": key}).Warn("resume cleanup failed")
	}
}

// ReleaseAll releases refs concurrently and waits for every delete to finish.
func (m *Manager) ReleaseAll(ctx context.Context, refs []domain.ResumeRef, op string) {
	if len(refs) == 0 {
		return
	}
	var g errgroup.Group
	g.SetLimit(m.cfg.ReleaseConcurrency)
	for _, ref := range refs {
		g.Go(func() error {
			m.Release(ctx, ref, op)
			return nil
		})
	}
	_ = g.Wait()
}

func (m *Manager) keyOf(ref domain.ResumeRef) string {
	if ref.Key != "" {
		return ref.Key
	}
	return KeyFromURL(ref.URL, m.cfg.Folder)
}

// KeyFromURL derives the blob key "<folder>/<name>" from a public URL by
// dropping everything before the folder segment and the file extension.
// A URL without the folder segment keeps only its last path element.
func KeyFromURL(raw, folder string) string {
	p := raw
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		p = u.Path
	}
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	folder = strings.Trim(folder, "/")
	if folder != "" {
		marker := folder + "/"
		if strings.HasPrefix(p, marker) {
			p = p[len(marker):]
		} else if i := strings.LastIndex(p, "/"+marker); i >= 0 {
			p = p[i+len(marker)+1:]
		} else {
			p = path.Base(p)
		}
	} else {
		p = path.Base(p)
	}
	name := strings.TrimSuffix(p, path.Ext(p))
	if name == "" {
		return ""
	}
	if folder == "" {
		return name
	}
	return folder + "/" + name
}
