package repo_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobboard/internal/db"
	"jobboard/internal/domain"
	"jobboard/internal/migrate"
	"jobboard/internal/repo"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	Repo    repo.Repo
	Ctx     context.Context
	Owner   domain.User
	Seeker  domain.User
	Company domain.Company
	Job     domain.Job
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn, err := db.Open(db.Config{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	ctx := context.Background()
	require.NoError(t, migrate.Migrate(ctx, conn))

	r := repo.New(conn)
	r.Events.Now = func() time.Time { return t0 }
	f := fixture{
		Repo:   r,
		Ctx:    ctx,
		Owner:  domain.User{ID: "u-owner", Name: "Olga", Email: "Olga@Example.com", Role: domain.RoleEmployer, PasswordHash: "x", CreatedAt: t0},
		Seeker: domain.User{ID: "u-seeker", Name: "Sam", Email: "sam@example.com", Role: domain.RoleJobSeeker, PasswordHash: "x", CreatedAt: t0},
	}
	require.NoError(t, r.InsertUser(ctx, f.Owner))
	require.NoError(t, r.InsertUser(ctx, f.Seeker))
	f.Company = domain.Company{ID: "c-1", OwnerID: f.Owner.ID, Name: "Acme", Slug: "acme", CreatedAt: t0, UpdatedAt: t0}
	require.NoError(t, r.InsertCompany(ctx, f.Company, f.Owner.ID))
	f.Job = domain.Job{ID: "j-1", CompanyID: f.Company.ID, Title: "Gopher", Status: domain.JobOpen, CreatedAt: t0, UpdatedAt: t0}
	require.NoError(t, r.InsertJob(ctx, f.Job, f.Owner.ID))
	return f
}

func (f fixture) newApplication(id string) domain.Application {
	return domain.Application{
		ID:            id,
		JobID:         f.Job.ID,
		ApplicantID:   f.Seeker.ID,
		Status:        domain.StatusPending,
		StatusHistory: domain.Start(f.Seeker.ID, t0),
		Resume:        domain.ResumeRef{URL: "http://files/applications/" + id + ".pdf", Key: "applications/" + id},
		AppliedAt:     t0,
		UpdatedAt:     t0,
		Version:       1,
	}
}

func TestUserEmailIsCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	u, err := f.Repo.GetUserByEmail(f.Ctx, " OLGA@example.com ")
	require.NoError(t, err)
	assert.Equal(t, f.Owner.ID, u.ID)

	dup := domain.User{ID: "u-2", Name: "O", Email: "olga@example.COM", Role: domain.RoleEmployer, PasswordHash: "x", CreatedAt: t0}
	assert.ErrorIs(t, f.Repo.InsertUser(f.Ctx, dup), repo.ErrDuplicate)
}

func TestResolveApplicationReturnsFullChain(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.Repo.InsertApplication(f.Ctx, f.newApplication("a-1"), f.Seeker.ID))

	chain, err := f.Repo.ResolveApplication(f.Ctx, "a-1")
	require.NoError(t, err)
	require.NotNil(t, chain.Application)
	require.NotNil(t, chain.Job)
	assert.Equal(t, f.Owner.ID, chain.OwnerID)
	assert.Equal(t, f.Company.ID, chain.CompanyID)
	assert.Equal(t, "Acme", chain.CompanyName)
	assert.Equal(t, "Gopher", chain.Job.Title)
	assert.Equal(t, domain.StatusPending, chain.Application.Status)
	require.Len(t, chain.Application.StatusHistory, 1)
	assert.Nil(t, chain.Application.StatusHistory[0].PreviousStatus)
	assert.Equal(t, int64(1), chain.Application.Version)

	_, err = f.Repo.ResolveApplication(f.Ctx, "missing")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestInsertApplicationRejectsDuplicatePair(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.Repo.InsertApplication(f.Ctx, f.newApplication("a-1"), f.Seeker.ID))
	err := f.Repo.InsertApplication(f.Ctx, f.newApplication("a-2"), f.Seeker.ID)
	assert.ErrorIs(t, err, repo.ErrDuplicate)

	has, err := f.Repo.HasApplication(f.Ctx, f.Job.ID, f.Seeker.ID)
	require.NoError(t, err)
	assert.True(t, has)

	views, err := f.Repo.ListApplications(f.Ctx, repo.ApplicationFilter{})
	require.NoError(t, err)
	assert.Len(t, views, 1)
}

func TestUpdateApplicationBumpsVersionAndAppendsLedger(t *testing.T) {
	f := newFixture(t)
	app := f.newApplication("a-1")
	require.NoError(t, f.Repo.InsertApplication(f.Ctx, app, f.Seeker.ID))

	at := t0.Add(time.Hour)
	hist, change := app.StatusHistory.AppendIfChanged(app.Status, domain.StatusReviewing, f.Owner.ID, at)
	require.NotNil(t, change)
	require.Len(t, hist, 2)
	err := f.Repo.UpdateApplication(f.Ctx, app.ID, app.Version, repo.ApplicationPatch{StatusChange: change, UpdatedAt: at}, f.Owner.ID)
	require.NoError(t, err)

	chain, err := f.Repo.ResolveApplication(f.Ctx, app.ID)
	require.NoError(t, err)
	got := chain.Application
	assert.Equal(t, domain.StatusReviewing, got.Status)
	assert.Equal(t, int64(2), got.Version)
	require.NotNil(t, got.RespondedAt)
	assert.True(t, got.RespondedAt.Equal(at))
	require.Len(t, got.StatusHistory, 2)
	assert.Equal(t, domain.StatusPending, *got.StatusHistory[1].PreviousStatus)
	assert.True(t, got.StatusHistory.Consistent(got.Status))

	// A writer still holding version 1 loses.
	notes := "late"
	err = f.Repo.UpdateApplication(f.Ctx, app.ID, 1, repo.ApplicationPatch{Notes: &notes, UpdatedAt: at}, f.Seeker.ID)
	assert.ErrorIs(t, err, repo.ErrStaleVersion)

	err = f.Repo.UpdateApplication(f.Ctx, "missing", 1, repo.ApplicationPatch{Notes: &notes, UpdatedAt: at}, f.Seeker.ID)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestListApplicationsScopes(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.Repo.InsertApplication(f.Ctx, f.newApplication("a-1"), f.Seeker.ID))

	byOwner, err := f.Repo.ListApplications(f.Ctx, repo.ApplicationFilter{OwnerID: f.Owner.ID})
	require.NoError(t, err)
	require.Len(t, byOwner, 1)
	assert.Equal(t, "Gopher", byOwner[0].JobTitle)
	assert.Equal(t, "Acme", byOwner[0].CompanyName)
	assert.Len(t, byOwner[0].StatusHistory, 1)

	other, err := f.Repo.ListApplications(f.Ctx, repo.ApplicationFilter{OwnerID: "someone-else"})
	require.NoError(t, err)
	assert.Empty(t, other)

	mine, err := f.Repo.ListApplications(f.Ctx, repo.ApplicationFilter{ApplicantID: f.Seeker.ID, Status: domain.StatusPending})
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestDeleteCascadesReturnResumeRefs(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.Repo.InsertApplication(f.Ctx, f.newApplication("a-1"), f.Seeker.ID))

	keys, err := f.Repo.ReferencedResumeKeys(f.Ctx)
	require.NoError(t, err)
	assert.Contains(t, keys, "applications/a-1")

	refs, err := f.Repo.DeleteCompany(f.Ctx, f.Company.ID, f.Owner.ID)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "applications/a-1", refs[0].Key)

	_, err = f.Repo.ResolveApplication(f.Ctx, "a-1")
	assert.ErrorIs(t, err, repo.ErrNotFound)
	_, err = f.Repo.GetJob(f.Ctx, f.Job.ID)
	assert.ErrorIs(t, err, repo.ErrNotFound)

	evts, err := f.Repo.ListEvents(f.Ctx, 10, "company", f.Company.ID)
	require.NoError(t, err)
	require.NotEmpty(t, evts)
	assert.Equal(t, "company.deleted", evts[0].Type)
}

func TestDeleteApplication(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.Repo.InsertApplication(f.Ctx, f.newApplication("a-1"), f.Seeker.ID))
	newRef := domain.ResumeRef{URL: "http://files/applications/a-1-v2.pdf", Key: "applications/a-1-v2"}
	require.NoError(t, f.Repo.UpdateApplication(f.Ctx, "a-1", 1, repo.ApplicationPatch{Resume: &newRef, UpdatedAt: t0}, f.Seeker.ID))

	ref, err := f.Repo.DeleteApplication(f.Ctx, "a-1", f.Seeker.ID)
	require.NoError(t, err)
	assert.Equal(t, newRef, ref)

	_, err = f.Repo.DeleteApplication(f.Ctx, "a-1", f.Seeker.ID)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}
