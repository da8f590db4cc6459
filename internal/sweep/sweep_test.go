package sweep

import (
	"context"
	"errors"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobboard/internal/blob"
	"jobboard/internal/metrics"
)

type fixedRefs map[string]struct{}

func (f fixedRefs) ReferencedResumeKeys(context.Context) (map[string]struct{}, error) {
	return f, nil
}

type brokenRefs struct{}

func (brokenRefs) ReferencedResumeKeys(context.Context) (map[string]struct{}, error) {
	return nil, errors.New("db closed")
}

func newStore(t *testing.T, n int) (*blob.Local, []string) {
	t.Helper()
	store := blob.NewLocal(afero.NewMemMapFs(), blob.Config{Root: "/files", PublicBaseURL: "http://x/files", MaxImageBytes: 1 << 20, MaxDocumentBytes: 1 << 20})
	var keys []string
	for i := 0; i < n; i++ {
		st, err := store.Upload(context.Background(), blob.Object{Name: "cv.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4\n%%EOF\n")}, "applications")
		require.NoError(t, err)
		keys = append(keys, st.Key)
	}
	return store, keys
}

func TestSweepDeletesOnlyOldOrphans(t *testing.T) {
	store, keys := newStore(t, 3)
	log, _ := logtest.NewNullLogger()
	s := Sweeper{
		Store:   store,
		Refs:    fixedRefs{keys[0]: {}},
		Config:  Config{Folder: "applications", Grace: 24 * time.Hour},
		Log:     log,
		Metrics: metrics.New(),
		Now:     func() time.Time { return time.Now().Add(48 * time.Hour) },
	}

	res, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Scanned: 3, Referenced: 1, Deleted: 2}, res)

	left, err := store.List(context.Background(), "applications")
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, keys[0], left[0].Key)
}

func TestSweepKeepsBlobsInsideGrace(t *testing.T) {
	store, _ := newStore(t, 2)
	log, _ := logtest.NewNullLogger()
	s := Sweeper{Store: store, Refs: fixedRefs{}, Config: Config{Folder: "applications", Grace: time.Hour}, Log: log}

	res, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Young)
	assert.Zero(t, res.Deleted)
}

func TestSweepAbortsWithoutReferences(t *testing.T) {
	store, _ := newStore(t, 1)
	log, _ := logtest.NewNullLogger()
	s := Sweeper{Store: store, Refs: brokenRefs{}, Config: Config{Folder: "applications"}, Log: log, Now: func() time.Time { return time.Now().Add(time.Hour) }}

	_, err := s.Sweep(context.Background())
	require.Error(t, err)
	left, err := store.List(context.Background(), "applications")
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

func TestScheduleRejectsBadSpec(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	s := Sweeper{Log: log}
	_, err := s.Schedule(context.Background(), "every now and then")
	assert.Error(t, err)

	c, err := s.Schedule(context.Background(), "@every 1h")
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1)
}
