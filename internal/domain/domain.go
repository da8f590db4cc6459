package domain

import "time"

type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleEmployer  Role = "EMPLOYER"
	RoleJobSeeker Role = "JOB_SEEKER"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEmployer, RoleJobSeeker:
		return true
	}
	return false
}

// Principal is the acting identity for a single request.
type Principal struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         Role      `json:"role" enum:"ADMIN,EMPLOYER,JOB_SEEKER"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type Company struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug,omitempty"`
	Email       string    `json:"email,omitempty"`
	Website     string    `json:"website,omitempty"`
	Industry    string    `json:"industry,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type JobStatus string

const (
	JobDraft  JobStatus = "DRAFT"
	JobOpen   JobStatus = "OPEN"
	JobClosed JobStatus = "CLOSED"
	JobFilled JobStatus = "FILLED"
)

func (s JobStatus) Valid() bool {
	switch s {
	case JobDraft, JobOpen, JobClosed, JobFilled:
		return true
	}
	return false
}

type Job struct {
	ID          string     `json:"id"`
	CompanyID   string     `json:"company_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty"`
	SalaryMin   *int       `json:"salary_min,omitempty"`
	SalaryMax   *int       `json:"salary_max,omitempty"`
	Status      JobStatus  `json:"status" enum:"DRAFT,OPEN,CLOSED,FILLED"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ResumeRef points at the single stored resume blob of an application.
type ResumeRef struct {
	URL string `json:"url"`
	Key string `json:"key"`
}

func (r ResumeRef) IsZero() bool { return r.URL == "" && r.Key == "" }

type Application struct {
	ID             string        `json:"id"`
	JobID          string        `json:"job_id"`
	ApplicantID    string        `json:"applicant_id"`
	Status         AppStatus     `json:"status" enum:"PENDING,REVIEWING,ACCEPTED,REJECTED,WITHDRAWN"`
	StatusHistory  StatusHistory `json:"status_history"`
	Resume         ResumeRef     `json:"resume"`
	CoverLetter    string        `json:"cover_letter,omitempty"`
	ExpectedSalary *int          `json:"expected_salary,omitempty"`
	AvailableFrom  *time.Time    `json:"available_from,omitempty"`
	Notes          string        `json:"notes,omitempty"`
	AppliedAt      time.Time     `json:"applied_at"`
	RespondedAt    *time.Time    `json:"responded_at,omitempty"`
	UpdatedAt      time.Time     `json:"updated_at"`
	Version        int64         `json:"version"`
}

// OwnershipChain is the resolved Application -> Job -> Company -> owner path.
// Application is nil for job- or company-level chains, Job is nil for company-level ones.
type OwnershipChain struct {
	Application *Application
	Job         *Job
	CompanyID   string
	CompanyName string
	OwnerID     string
}

// ApplicationView is an application enriched with its job and company labels.
type ApplicationView struct {
	Application
	JobTitle    string `json:"job_title"`
	CompanyID   string `json:"company_id"`
	CompanyName string `json:"company_name"`
}

type Event struct {
	ID         int64     `json:"id"`
	TS         time.Time `json:"ts"`
	Type       string    `json:"type"`
	EntityKind string    `json:"entity_kind"`
	EntityID   string    `json:"entity_id,omitempty"`
	ActorID    string    `json:"actor_id"`
	Payload    string    `json:"payload_json"`
}
