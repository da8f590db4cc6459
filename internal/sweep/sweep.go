package sweep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"jobboard/internal/blob"
	"jobboard/internal/metrics"
)

// References reports the resume keys still attached to an application.
type References interface {
	ReferencedResumeKeys(ctx context.Context) (map[string]struct{}, error)
}

type Config struct {
	Folder string
	// Grace protects blobs uploaded by requests that have not committed yet.
	Grace time.Duration
}

// Result summarizes one pass.
type Result struct {
	Scanned    int
	Referenced int
	Young      int
	Deleted    int
	Failed     int
}

// Sweeper deletes resume blobs that no application references.
type Sweeper struct {
	Store   blob.Store
	Refs    References
	Config  Config
	Log     logrus.FieldLogger
	Metrics *metrics.Metrics
	Now     func() time.Time
}

func (s Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Sweep runs one pass. The blob listing is taken before the reference set so
// that a blob committed in between is seen as referenced.
func (s Sweeper) Sweep(ctx context.Context) (Result, error) {
	var res Result
	items, err := s.Store.List(ctx, s.Config.Folder)
	if err != nil {
		return res, fmt.Errorf("list %s: %w", s.Config.Folder, err)
	}
	refs, err := s.Refs.ReferencedResumeKeys(ctx)
	if err != nil {
		return res, fmt.Errorf("load references: %w", err)
	}
	cutoff := s.now().Add(-s.Config.Grace)
	for _, it := range items {
		res.Scanned++
		if _, ok := refs[it.Key]; ok {
			res.Referenced++
			continue
		}
		if it.ModTime.After(cutoff) {
			res.Young++
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := s.Store.Delete(ctx, it.Key); err != nil && !errors.Is(err, blob.ErrNotFound) {
			res.Failed++
			s.Metrics.CleanupFailure("sweep")
			s.Log.WithError(err).WithField("key", it.Key).Warn("orphan delete failed")
			continue
		}
		res.Deleted++
	}
	s.Metrics.OrphansCollected(res.Deleted)
	s.Log.WithFields(logrus.Fields{
		"scanned": res.Scanned,
		"deleted": res.Deleted,
		"young":   res.Young,
		"failed":  res.Failed,
	}).Info("orphan sweep finished")
	return res, nil
}

// Schedule registers Sweep on a cron schedule such as "@every 1h" or
// "0 3 * * *". Overlapping runs are skipped. The caller starts and stops the
// returned scheduler.
func (s Sweeper) Schedule(ctx context.Context, spec string) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(spec, func() {
		if _, err := s.Sweep(ctx); err != nil {
			s.Log.WithError(err).Error("orphan sweep failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid sweeper schedule %q: %w", spec, err)
	}
	return c, nil
}
