package server

import (
	"time"

	"jobboard/internal/domain"
	"jobboard/internal/engine"
)

// Request payloads

type RegisterRequest struct {
	Name     string      `json:"name"`
	Email    string      `json:"email" format:"email"`
	Password string      `json:"password"`
	Role     domain.Role `json:"role" enum:"EMPLOYER,JOB_SEEKER"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type CompanyRequest struct {
	OwnerID     string `json:"owner_id,omitempty" doc:"Admins only"`
	Name        string `json:"name"`
	Slug        string `json:"slug,omitempty"`
	Email       string `json:"email,omitempty"`
	Website     string `json:"website,omitempty"`
	Industry    string `json:"industry,omitempty"`
	Description string `json:"description,omitempty"`
}

type CompanyPatchRequest struct {
	Name        *string `json:"name,omitempty"`
	Slug        *string `json:"slug,omitempty"`
	Email       *string `json:"email,omitempty"`
	Website     *string `json:"website,omitempty"`
	Industry    *string `json:"industry,omitempty"`
	Description *string `json:"description,omitempty"`
}

type JobRequest struct {
	CompanyID   string           `json:"company_id"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Location    string           `json:"location,omitempty"`
	SalaryMin   *int             `json:"salary_min,omitempty"`
	SalaryMax   *int             `json:"salary_max,omitempty"`
	Status      domain.JobStatus `json:"status,omitempty" enum:"DRAFT,OPEN,CLOSED,FILLED"`
	ExpiresAt   *time.Time       `json:"expires_at,omitempty"`
}

type JobPatchRequest struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Location    *string    `json:"location,omitempty"`
	SalaryMin   *int       `json:"salary_min,omitempty"`
	SalaryMax   *int       `json:"salary_max,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

type JobStatusRequest struct {
	Status domain.JobStatus `json:"status" enum:"DRAFT,OPEN,CLOSED,FILLED"`
}

// ApplicationStatusRequest carries the hiring-side fields. Status is not
// enum-restricted here so an unknown value reaches the lifecycle check.
type ApplicationStatusRequest struct {
	Status string  `json:"status"`
	Notes  *string `json:"notes,omitempty"`
}

// Response payloads

type LoginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      domain.User `json:"user"`
}

type UserList struct {
	Items []domain.User `json:"items"`
}

type CompanyList struct {
	Items []domain.Company `json:"items"`
}

type JobList struct {
	Items []domain.Job `json:"items"`
}

type ApplicationList struct {
	Items []domain.ApplicationView `json:"items"`
}

type EventList struct {
	Items []domain.Event `json:"items"`
}

func (r CompanyRequest) input() engine.CompanyInput {
	return engine.CompanyInput{
		OwnerID:     r.OwnerID,
		Name:        r.Name,
		Slug:        r.Slug,
		Email:       r.Email,
		Website:     r.Website,
		Industry:    r.Industry,
		Description: r.Description,
	}
}

func (r CompanyPatchRequest) patch() engine.CompanyPatch {
	return engine.CompanyPatch{
		Name:        r.Name,
		Slug:        r.Slug,
		Email:       r.Email,
		Website:     r.Website,
		Industry:    r.Industry,
		Description: r.Description,
	}
}

func (r JobRequest) input() engine.JobInput {
	return engine.JobInput{
		CompanyID:   r.CompanyID,
		Title:       r.Title,
		Description: r.Description,
		Location:    r.Location,
		SalaryMin:   r.SalaryMin,
		SalaryMax:   r.SalaryMax,
		Status:      r.Status,
		ExpiresAt:   r.ExpiresAt,
	}
}

func (r JobPatchRequest) patch() engine.JobPatch {
	return engine.JobPatch{
		Title:       r.Title,
		Description: r.Description,
		Location:    r.Location,
		SalaryMin:   r.SalaryMin,
		SalaryMax:   r.SalaryMax,
		ExpiresAt:   r.ExpiresAt,
	}
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
