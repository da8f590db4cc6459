package auth

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobboard/internal/domain"
)

var roles = []domain.Role{domain.RoleAdmin, domain.RoleEmployer, domain.RoleJobSeeker}

func TestTableIsTotal(t *testing.T) {
	require.Len(t, table, len(Actions))
	for _, a := range Actions {
		byRole, ok := table[a]
		require.True(t, ok, "action %s missing", a)
		for _, r := range roles {
			assert.NotNil(t, byRole[r], "%s/%s missing", a, r)
		}
	}
}

func TestUnknownRoleAndActionDenied(t *testing.T) {
	d := Decide(domain.Principal{ID: "x", Role: "ROOT"}, ReadApplication, domain.OwnershipChain{})
	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "unknown role")

	d = Decide(domain.Principal{ID: "x", Role: domain.RoleAdmin}, Action("application.teleport"), domain.OwnershipChain{})
	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "unknown action")

	d = Decide(domain.Principal{Role: domain.RoleAdmin}, ReadApplication, domain.OwnershipChain{})
	assert.False(t, d.Allowed)
}

func TestEveryDenialCarriesReason(t *testing.T) {
	chain := domain.OwnershipChain{OwnerID: "owner", Application: &domain.Application{ApplicantID: "seeker"}}
	for _, a := range Actions {
		for _, r := range roles {
			d := Decide(domain.Principal{ID: "stranger", Role: r}, a, chain)
			if !d.Allowed {
				assert.NotEmpty(t, d.Reason, "%s/%s", a, r)
			}
		}
	}
}

func TestNonOwnerEmployerDeniedOnApplicationMutations(t *testing.T) {
	chain := domain.OwnershipChain{
		OwnerID:     "e1",
		Job:         &domain.Job{ID: "j1"},
		Application: &domain.Application{ID: "a1", ApplicantID: "u1"},
	}
	e2 := domain.Principal{ID: "e2", Role: domain.RoleEmployer}
	for _, a := range []Action{ReadApplication, UpdateApplicationStatus, UpdateApplicantFields, DeleteApplication} {
		assert.False(t, Decide(e2, a, chain).Allowed, "%s", a)
	}
	e1 := domain.Principal{ID: "e1", Role: domain.RoleEmployer}
	assert.True(t, Decide(e1, UpdateApplicationStatus, chain).Allowed)
	assert.True(t, Decide(e1, DeleteApplication, chain).Allowed)
	assert.False(t, Decide(e1, UpdateApplicantFields, chain).Allowed)
}

func TestDecisionTable(t *testing.T) {
	chain := domain.OwnershipChain{OwnerID: "e1", Application: &domain.Application{ApplicantID: "u1"}}
	admin := domain.Principal{ID: "adm", Role: domain.RoleAdmin}
	owner := domain.Principal{ID: "e1", Role: domain.RoleEmployer}
	applicant := domain.Principal{ID: "u1", Role: domain.RoleJobSeeker}
	otherSeeker := domain.Principal{ID: "u2", Role: domain.RoleJobSeeker}

	cases := []struct {
		p      domain.Principal
		action Action
		want   bool
	}{
		{admin, CreateApplication, true},
		{owner, CreateApplication, false},
		{applicant, CreateApplication, true},
		{applicant, ReadApplication, true},
		{otherSeeker, ReadApplication, false},
		{applicant, UpdateApplicationStatus, false},
		{applicant, UpdateApplicantFields, true},
		{otherSeeker, UpdateApplicantFields, false},
		{applicant, DeleteApplication, true},
		{otherSeeker, DeleteApplication, false},
		{otherSeeker, ListApplications, true},
		{owner, CreateCompany, true},
		{applicant, CreateCompany, false},
		{owner, UpdateCompany, true},
		{owner, CreateJob, true},
		{applicant, CreateJob, false},
		{owner, UpdateJobStatus, true},
		{owner, ListUsers, false},
		{admin, DeleteUser, true},
		{owner, ReadEvents, false},
		{admin, ReadEvents, true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Decide(tc.p, tc.action, chain).Allowed, "%s %s", tc.p.Role, tc.action)
	}
}

func TestAuthorizeReturnsForbiddenError(t *testing.T) {
	err := Authorize(domain.Principal{ID: "u", Role: domain.RoleJobSeeker}, ListUsers, domain.OwnershipChain{})
	var fe ForbiddenError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, ListUsers, fe.Action)
	assert.Equal(t, "admin role required", fe.Reason)

	assert.NoError(t, Authorize(domain.Principal{ID: "a", Role: domain.RoleAdmin}, ListUsers, domain.OwnershipChain{}))
}
