package auth

import (
	"fmt"

	"jobboard/internal/domain"
)

// Action names an operation subject to authorization.
type Action string

const (
	CreateApplication       Action = "application.create"
	ReadApplication         Action = "application.read"
	UpdateApplicationStatus Action = "application.update_status"
	UpdateApplicantFields   Action = "application.update_applicant_fields"
	DeleteApplication       Action = "application.delete"
	ListApplications        Action = "application.list"
	CreateCompany           Action = "company.create"
	UpdateCompany           Action = "company.update"
	DeleteCompany           Action = "company.delete"
	CreateJob               Action = "job.create"
	UpdateJob               Action = "job.update"
	UpdateJobStatus         Action = "job.update_status"
	DeleteJob               Action = "job.delete"
	ListUsers               Action = "user.list"
	DeleteUser              Action = "user.delete"
	ReadEvents              Action = "event.read"
)

// Actions lists every action known to the decision table.
var Actions = []Action{
	CreateApplication, ReadApplication, UpdateApplicationStatus, UpdateApplicantFields, DeleteApplication, ListApplications,
	CreateCompany, UpdateCompany, DeleteCompany,
	CreateJob, UpdateJob, UpdateJobStatus, DeleteJob,
	ListUsers, DeleteUser, ReadEvents,
}

// Decision is the outcome of one authorization check. Reason is set on denial.
type Decision struct {
	Allowed bool
	Reason  string
}

// ForbiddenError indicates the principal may not perform the action.
type ForbiddenError struct {
	Action Action
	Reason string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("%s denied: %s", e.Action, e.Reason)
}

type rule func(p domain.Principal, chain domain.OwnershipChain) Decision

func allow(domain.Principal, domain.OwnershipChain) Decision { return Decision{Allowed: true} }

func deny(reason string) rule {
	return func(domain.Principal, domain.OwnershipChain) Decision {
		return Decision{Reason: reason}
	}
}

func ownsCompany(p domain.Principal, chain domain.OwnershipChain) Decision {
	if chain.OwnerID != "" && chain.OwnerID == p.ID {
		return Decision{Allowed: true}
	}
	return Decision{Reason: "not the owner of the company"}
}

func isApplicant(p domain.Principal, chain domain.OwnershipChain) Decision {
	if chain.Application != nil && chain.Application.ApplicantID == p.ID {
		return Decision{Allowed: true}
	}
	return Decision{Reason: "not the applicant"}
}

var (
	adminOnly          = deny("admin role required")
	employersCannotAct = deny("employers cannot act on behalf of applicants")
	seekersCannotAct   = deny("job seekers cannot manage companies or jobs")
)

var table = map[Action]map[domain.Role]rule{
	CreateApplication: {
		domain.RoleAdmin:     allow,
		domain.RoleEmployer:  deny("employers cannot apply to jobs"),
		domain.RoleJobSeeker: allow,
	},
	ReadApplication: {
		domain.RoleAdmin:     allow,
		domain.RoleEmployer:  ownsCompany,
		domain.RoleJobSeeker: isApplicant,
	},
	UpdateApplicationStatus: {
		domain.RoleAdmin:     allow,
		domain.RoleEmployer:  ownsCompany,
		domain.RoleJobSeeker: deny("only the hiring company can change the status"),
	},
	UpdateApplicantFields: {
		domain.RoleAdmin:     allow,
		domain.RoleEmployer:  employersCannotAct,
		domain.RoleJobSeeker: isApplicant,
	},
	DeleteApplication: {
		domain.RoleAdmin:     allow,
		domain.RoleEmployer:  ownsCompany,
		domain.RoleJobSeeker: isApplicant,
	},
	ListApplications: {
		domain.RoleAdmin:     allow,
		domain.RoleEmployer:  allow,
		domain.RoleJobSeeker: allow,
	},
	CreateCompany: {
		domain.RoleAdmin:     allow,
		domain.RoleEmployer:  allow,
		domain.RoleJobSeeker: seekersCannotAct,
	},
	UpdateCompany: {
		domain.RoleAdmin:     allow,
		domain.RoleEmployer:  ownsCompany,
		domain.RoleJobSeeker: seekersCannotAct,
	},
	DeleteCompany: {
		domain.RoleAdmin:     allow,
		domain.RoleEmployer:  ownsCompany,
		domain.RoleJobSeeker: seekersCannotAct,
	},
	CreateJob: {
		domain.RoleAdmin:     allow,
		domain.RoleEmployer:  ownsCompany,
		domain.RoleJobSeeker: seekersCannotAct,
	},
	UpdateJob: {
		domain.RoleAdmin:     allow,
		domain.RoleEmployer:  ownsCompany,
		domain.RoleJobSeeker: seekersCannotAct,
	},
	UpdateJobStatus: {
		domain.RoleAdmin:     allow,
		domain.RoleEmployer:  ownsCompany,
		domain.RoleJobSeeker: seekersCannotAct,
	},
	DeleteJob: {
		domain.RoleAdmin:     allow,
		domain.RoleEmployer:  ownsCompany,
		domain.RoleJobSeeker: seekersCannotAct,
	},
	ListUsers: {
		domain.RoleAdmin:     allow,
		domain.RoleEmployer:  adminOnly,
		domain.RoleJobSeeker: adminOnly,
	},
	DeleteUser: {
		domain.RoleAdmin:     allow,
		domain.RoleEmployer:  adminOnly,
		domain.RoleJobSeeker: adminOnly,
	},
	ReadEvents: {
		domain.RoleAdmin:     allow,
		domain.RoleEmployer:  adminOnly,
		domain.RoleJobSeeker: adminOnly,
	},
}

// Decide evaluates the decision table. It has no side effects; unknown roles
// and unknown actions are denied.
func Decide(p domain.Principal, action Action, chain domain.OwnershipChain) Decision {
	byRole, ok := table[action]
	if !ok {
		return Decision{Reason: fmt.Sprintf("unknown action %q", action)}
	}
	r, ok := byRole[p.Role]
	if !ok {
		return Decision{Reason: fmt.Sprintf("unknown role %q", p.Role)}
	}
	if p.ID == "" {
		return Decision{Reason: "anonymous principal"}
	}
	return r(p, chain)
}

// Authorize is Decide returning a ForbiddenError on denial.
func Authorize(p domain.Principal, action Action, chain domain.OwnershipChain) error {
	d := Decide(p, action, chain)
	if d.Allowed {
		return nil
	}
	return ForbiddenError{Action: action, Reason: d.Reason}
}
