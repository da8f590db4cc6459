package engine

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"jobboard/internal/domain"
	"jobboard/internal/engine/auth"
	"jobboard/internal/repo"
)

type JobInput struct {
	CompanyID   string           `json:"company_id" validate:"required"`
	Title       string           `json:"title" validate:"required,max=200"`
	Description string           `json:"description" validate:"max=10000"`
	Location    string           `json:"location" validate:"max=200"`
	SalaryMin   *int             `json:"salary_min" validate:"omitempty,gte=0"`
	SalaryMax   *int             `json:"salary_max" validate:"omitempty,gte=0"`
	Status      domain.JobStatus `json:"status"`
	ExpiresAt   *time.Time       `json:"expires_at"`
}

type JobPatch struct {
	Title       *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=10000"`
	Location    *string    `json:"location" validate:"omitempty,max=200"`
	SalaryMin   *int       `json:"salary_min" validate:"omitempty,gte=0"`
	SalaryMax   *int       `json:"salary_max" validate:"omitempty,gte=0"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

func checkSalary(lo, hi *int) error {
	if lo != nil && hi != nil && *lo > *hi {
		return ValidationError{Field: "salary_min", Message: "must not exceed salary_max"}
	}
	return nil
}

func (e Engine) CreateJob(ctx context.Context, p domain.Principal, in JobInput) (domain.Job, error) {
	if err := e.check(in); err != nil {
		return domain.Job{}, err
	}
	if in.Status == "" {
		in.Status = domain.JobDraft
	}
	if !in.Status.Valid() {
		return domain.Job{}, ValidationError{Field: "status", Message: "unknown job status " + string(in.Status)}
	}
	if err := checkSalary(in.SalaryMin, in.SalaryMax); err != nil {
		return domain.Job{}, err
	}
	chain, err := e.Store.ResolveCompany(ctx, in.CompanyID)
	if err != nil {
		return domain.Job{}, notFound(err, "company", in.CompanyID)
	}
	if err := auth.Authorize(p, auth.CreateJob, chain); err != nil {
		return domain.Job{}, err
	}
	now := e.now()
	j := domain.Job{
		ID:          uuid.NewString(),
		CompanyID:   in.CompanyID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Location:    in.Location,
		SalaryMin:   in.SalaryMin,
		SalaryMax:   in.SalaryMax,
		Status:      in.Status,
		ExpiresAt:   in.ExpiresAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.Store.InsertJob(ctx, j, p.ID); err != nil {
		return domain.Job{}, err
	}
	return j, nil
}

func (e Engine) GetJob(ctx context.Context, id string) (domain.Job, error) {
	j, err := e.Store.GetJob(ctx, id)
	return j, notFound(err, "job", id)
}

func (e Engine) ListJobs(ctx context.Context, f repo.JobFilter) ([]domain.Job, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, ValidationError{Field: "status", Message: "unknown job status " + string(f.Status)}
	}
	f.Limit, f.Offset = pageBounds(f.Limit, f.Offset)
	return e.Store.ListJobs(ctx, f)
}

func (e Engine) resolveJobFor(ctx context.Context, p domain.Principal, action auth.Action, id string) (domain.Job, error) {
	chain, err := e.Store.ResolveJob(ctx, id)
	if err != nil {
		return domain.Job{}, notFound(err, "job", id)
	}
	if err := auth.Authorize(p, action, chain); err != nil {
		return domain.Job{}, err
	}
	return *chain.Job, nil
}

func (e Engine) UpdateJob(ctx context.Context, p domain.Principal, id string, in JobPatch) (domain.Job, error) {
	if err := e.check(in); err != nil {
		return domain.Job{}, err
	}
	j, err := e.resolveJobFor(ctx, p, auth.UpdateJob, id)
	if err != nil {
		return domain.Job{}, err
	}
	setString(&j.Title, in.Title)
	setString(&j.Description, in.Description)
	setString(&j.Location, in.Location)
	if in.SalaryMin != nil {
		j.SalaryMin = in.SalaryMin
	}
	if in.SalaryMax != nil {
		j.SalaryMax = in.SalaryMax
	}
	if in.ExpiresAt != nil {
		j.ExpiresAt = in.ExpiresAt
	}
	if err := checkSalary(j.SalaryMin, j.SalaryMax); err != nil {
		return domain.Job{}, err
	}
	j.UpdatedAt = e.now()
	if err := e.Store.UpdateJob(ctx, j, "job.updated", p.ID); err != nil {
		return domain.Job{}, notFound(err, "job", id)
	}
	return j, nil
}

func (e Engine) UpdateJobStatus(ctx context.Context, p domain.Principal, id string, status domain.JobStatus) (domain.Job, error) {
	if !status.Valid() {
		return domain.Job{}, ValidationError{Field: "status", Message: "unknown job status " + string(status)}
	}
	j, err := e.resolveJobFor(ctx, p, auth.UpdateJobStatus, id)
	if err != nil {
		return domain.Job{}, err
	}
	if j.Status == status {
		return j, nil
	}
	j.Status = status
	j.UpdatedAt = e.now()
	if err := e.Store.UpdateJob(ctx, j, "job.status_changed", p.ID); err != nil {
		return domain.Job{}, notFound(err, "job", id)
	}
	return j, nil
}

// DeleteJob removes the job with its applications and releases their resumes.
func (e Engine) DeleteJob(ctx context.Context, p domain.Principal, id string) error {
	if _, err := e.resolveJobFor(ctx, p, auth.DeleteJob, id); err != nil {
		return err
	}
	refs, err := e.Store.DeleteJob(ctx, id, p.ID)
	if err != nil {
		return notFound(err, "job", id)
	}
	e.Log.WithFields(logrus.Fields{"job_id": id, "actor_id": p.ID, "resumes": len(refs)}).Info("job deleted")
	e.Assets.ReleaseAll(ctx, refs, "cascade")
	return nil
}
