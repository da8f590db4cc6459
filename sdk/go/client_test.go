package jobboardsdk

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobboard/internal/app"
	"jobboard/internal/config"
	"jobboard/internal/logging"
)

func newTestAPI(t *testing.T) string {
	t.Helper()
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "jobboard.db")
	cfg.Storage.Root = "/files"
	cfg.Auth.JWTSecret = "sdk-secret"
	a, err := app.Open(context.Background(), cfg, afero.NewMemMapFs(), logging.Discard())
	require.NoError(t, err)
	h, err := a.Handler()
	require.NoError(t, err)
	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		srv.Close()
		a.Close()
	})
	return srv.URL
}

func TestClientApplicationFlow(t *testing.T) {
	ctx := context.Background()
	base := newTestAPI(t)

	employer := New(base)
	_, err := employer.Register(ctx, "Erin", "erin@acme.test", "password-1", "EMPLOYER")
	require.NoError(t, err)
	_, err = employer.Login(ctx, "erin@acme.test", "password-1")
	require.NoError(t, err)
	company, err := employer.CreateCompany(ctx, "Acme")
	require.NoError(t, err)
	job, err := employer.CreateJob(ctx, company.ID, "Gopher", "OPEN")
	require.NoError(t, err)
	assert.Equal(t, "OPEN", job.Status)

	seeker := New(base)
	_, err = seeker.Register(ctx, "Sam", "sam@mail.test", "password-2", "JOB_SEEKER")
	require.NoError(t, err)
	me, err := seeker.Login(ctx, "sam@mail.test", "password-2")
	require.NoError(t, err)

	salary := 90000
	created, err := seeker.Apply(ctx, ApplyInput{
		JobID:          job.ID,
		CoverLetter:    "hello",
		ExpectedSalary: &salary,
		Resume: Resume{
			Name:        "cv.pdf",
			ContentType: "application/pdf",
			Data:        []byte("%PDF-1.4\n1 0 obj\nendobj\n%%EOF\n"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "PENDING", created.Status)
	assert.Equal(t, me.ID, created.ApplicantID)
	assert.NotEmpty(t, created.Resume.URL)
	assert.Equal(t, "Acme", created.CompanyName)

	notes := "strong profile"
	updated, err := employer.SetStatus(ctx, created.ID, "REVIEWING", &notes)
	require.NoError(t, err)
	assert.Equal(t, "REVIEWING", updated.Status)

	got, err := seeker.GetApplication(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, got.StatusHistory, 2)
	require.NotNil(t, got.StatusHistory[1].PreviousStatus)
	assert.Equal(t, "PENDING", *got.StatusHistory[1].PreviousStatus)

	items, err := employer.ListApplications(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)

	_, err = seeker.SetStatus(ctx, created.ID, "ACCEPTED", nil)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "forbidden", apiErr.Code)

	require.NoError(t, employer.DeleteApplication(ctx, created.ID))
	_, err = seeker.GetApplication(ctx, created.ID)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "not_found", apiErr.Code)
}

func TestClientSurfacesAuthErrors(t *testing.T) {
	c := New(newTestAPI(t))
	_, err := c.Login(context.Background(), "nobody@mail.test", "password-x")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "invalid_credentials", apiErr.Code)
	assert.Empty(t, c.BearerToken)
}
