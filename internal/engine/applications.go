package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"jobboard/internal/assets"
	"jobboard/internal/blob"
	"jobboard/internal/domain"
	"jobboard/internal/engine/auth"
	"jobboard/internal/repo"
)

type CreateApplicationInput struct {
	JobID string `json:"job_id" validate:"required"`
	// ApplicantID lets an admin apply on behalf of a job seeker. Ignored for other roles.
	ApplicantID    string       `json:"applicant_id"`
	CoverLetter    string       `json:"cover_letter" validate:"max=5000"`
	ExpectedSalary *int         `json:"expected_salary" validate:"omitempty,gte=0"`
	AvailableFrom  *time.Time   `json:"available_from"`
	Resume         *blob.Object `json:"resume" validate:"required"`
}

// UpdateApplicationInput carries both field sets. Status and Notes belong to
// the hiring side, the rest to the applicant; each set present is authorized
// separately.
type UpdateApplicationInput struct {
	Status *domain.AppStatus `json:"status"`
	Notes  *string           `json:"notes" validate:"omitempty,max=5000"`

	CoverLetter    *string      `json:"cover_letter" validate:"omitempty,max=5000"`
	ExpectedSalary *int         `json:"expected_salary" validate:"omitempty,gte=0"`
	AvailableFrom  *time.Time   `json:"available_from"`
	Resume         *blob.Object `json:"resume"`
}

func (in UpdateApplicationInput) hiringFields() bool { return in.Status != nil || in.Notes != nil }

func (in UpdateApplicationInput) applicantFields() bool {
	return in.CoverLetter != nil || in.ExpectedSalary != nil || in.AvailableFrom != nil || in.Resume != nil
}

type ListApplicationsInput struct {
	JobID       string
	ApplicantID string
	Status      domain.AppStatus
	Limit       int
	Offset      int
}

func view(chain domain.OwnershipChain) domain.ApplicationView {
	v := domain.ApplicationView{CompanyID: chain.CompanyID, CompanyName: chain.CompanyName}
	if chain.Application != nil {
		v.Application = *chain.Application
	}
	if chain.Job != nil {
		v.JobTitle = chain.Job.Title
	}
	return v
}

func (e Engine) resolveApplication(ctx context.Context, id string) (domain.OwnershipChain, error) {
	chain, err := e.Store.ResolveApplication(ctx, id)
	if err != nil {
		return domain.OwnershipChain{}, notFound(err, "application", id)
	}
	return chain, nil
}

// CreateApplication files a new application with its resume. The job lookup
// and the duplicate probe run concurrently; errors are still reported in the
// order not found, denied, conflict.
func (e Engine) CreateApplication(ctx context.Context, p domain.Principal, in CreateApplicationInput) (domain.ApplicationView, error) {
	if err := e.check(in); err != nil {
		return domain.ApplicationView{}, err
	}
	applicantID := p.ID
	if p.Role == domain.RoleAdmin {
		if in.ApplicantID == "" {
			return domain.ApplicationView{}, ValidationError{Field: "applicant_id", Message: "is required when applying as admin"}
		}
		applicantID = in.ApplicantID
	}

	var (
		chain            domain.OwnershipChain
		jobErr, probeErr error
		duplicate        bool
	)
	var g errgroup.Group
	g.Go(func() error {
		chain, jobErr = e.Store.ResolveJob(ctx, in.JobID)
		return nil
	})
	g.Go(func() error {
		duplicate, probeErr = e.Store.HasApplication(ctx, in.JobID, applicantID)
		return nil
	})
	g.Wait()

	if jobErr != nil {
		return domain.ApplicationView{}, notFound(jobErr, "job", in.JobID)
	}
	if err := auth.Authorize(p, auth.CreateApplication, chain); err != nil {
		return domain.ApplicationView{}, err
	}
	if p.Role == domain.RoleAdmin {
		applicant, err := e.Store.GetUser(ctx, applicantID)
		if err != nil {
			return domain.ApplicationView{}, notFound(err, "user", applicantID)
		}
		if applicant.Role != domain.RoleJobSeeker {
			return domain.ApplicationView{}, ValidationError{Field: "applicant_id", Message: "must reference a job seeker"}
		}
	}
	if chain.Job.Status != domain.JobOpen {
		return domain.ApplicationView{}, ConflictError{Reason: "job is not open for applications"}
	}
	if probeErr != nil {
		return domain.ApplicationView{}, probeErr
	}
	if duplicate {
		return domain.ApplicationView{}, ConflictError{Reason: "already applied to this job"}
	}

	ref, err := e.Assets.Upload(ctx, *in.Resume)
	if err != nil {
		return domain.ApplicationView{}, assetFailure(err)
	}
	now := e.now()
	app := domain.Application{
		ID:             uuid.NewString(),
		JobID:          in.JobID,
		ApplicantID:    applicantID,
		Status:         domain.StatusPending,
		StatusHistory:  domain.Start(p.ID, now),
		Resume:         ref,
		CoverLetter:    in.CoverLetter,
		ExpectedSalary: in.ExpectedSalary,
		AvailableFrom:  in.AvailableFrom,
		AppliedAt:      now,
		UpdatedAt:      now,
		Version:        1,
	}
	if err := e.Store.InsertApplication(ctx, app, p.ID); err != nil {
		e.Assets.Release(ctx, ref, "create_rollback")
		if errors.Is(err, repo.ErrDuplicate) {
			return domain.ApplicationView{}, ConflictError{Reason: "already applied to this job"}
		}
		return domain.ApplicationView{}, err
	}
	e.Metrics.StatusTransition(string(domain.StatusPending))
	e.Log.WithFields(logrus.Fields{"application_id": app.ID, "job_id": app.JobID, "actor_id": p.ID}).Info("application created")
	chain.Application = &app
	return view(chain), nil
}

func (e Engine) GetApplication(ctx context.Context, p domain.Principal, id string) (domain.ApplicationView, error) {
	chain, err := e.resolveApplication(ctx, id)
	if err != nil {
		return domain.ApplicationView{}, err
	}
	if err := auth.Authorize(p, auth.ReadApplication, chain); err != nil {
		return domain.ApplicationView{}, err
	}
	return view(chain), nil
}

// ListApplications returns what the principal may see: everything for admins,
// applications to their companies' jobs for employers, their own for job seekers.
func (e Engine) ListApplications(ctx context.Context, p domain.Principal, in ListApplicationsInput) ([]domain.ApplicationView, error) {
	if err := auth.Authorize(p, auth.ListApplications, domain.OwnershipChain{}); err != nil {
		return nil, err
	}
	if in.Status != "" && !in.Status.Valid() {
		return nil, ValidationError{Field: "status", Message: "unknown status " + string(in.Status)}
	}
	f := repo.ApplicationFilter{JobID: in.JobID, Status: in.Status}
	f.Limit, f.Offset = pageBounds(in.Limit, in.Offset)
	switch p.Role {
	case domain.RoleAdmin:
		f.ApplicantID = in.ApplicantID
	case domain.RoleEmployer:
		f.OwnerID = p.ID
	default:
		f.ApplicantID = p.ID
	}
	return e.Store.ListApplications(ctx, f)
}

// UpdateStatus changes the status and/or notes of an application.
func (e Engine) UpdateStatus(ctx context.Context, p domain.Principal, id string, status domain.AppStatus, notes *string) (domain.ApplicationView, error) {
	return e.UpdateApplication(ctx, p, id, UpdateApplicationInput{Status: &status, Notes: notes})
}

// UpdateApplication applies in under optimistic concurrency. A new resume is
// uploaded before the record is touched; the previous blob is deleted only
// after the new reference is committed.
func (e Engine) UpdateApplication(ctx context.Context, p domain.Principal, id string, in UpdateApplicationInput) (domain.ApplicationView, error) {
	if err := e.check(in); err != nil {
		return domain.ApplicationView{}, err
	}
	if !in.hiringFields() && !in.applicantFields() {
		return domain.ApplicationView{}, ValidationError{Message: "no fields to update"}
	}

	// Fail fast before uploading anything.
	chain, err := e.authorizeUpdate(ctx, p, id, in)
	if err != nil {
		return domain.ApplicationView{}, err
	}
	if in.Status != nil {
		if _, _, err := ApplyTransition(*chain.Application, *in.Status, p.ID, e.now()); err != nil {
			return domain.ApplicationView{}, err
		}
	}

	var result domain.ApplicationView
	commit := func(resume *domain.ResumeRef) (domain.ResumeRef, error) {
		var displaced domain.ResumeRef
		err := e.retry(ctx, "update_application", id, func() error {
			chain, err := e.authorizeUpdate(ctx, p, id, in)
			if err != nil {
				return err
			}
			app := *chain.Application
			now := e.now()
			patch := repo.ApplicationPatch{
				CoverLetter:    in.CoverLetter,
				ExpectedSalary: in.ExpectedSalary,
				AvailableFrom:  in.AvailableFrom,
				Notes:          in.Notes,
				Resume:         resume,
				UpdatedAt:      now,
			}
			updated := app
			if in.Status != nil {
				var change *domain.StatusChange
				updated, change, err = ApplyTransition(app, *in.Status, p.ID, now)
				if err != nil {
					return err
				}
				patch.StatusChange = change
			}
			if patch.Empty() {
				result = view(chain)
				return nil
			}
			if err := e.Store.UpdateApplication(ctx, id, app.Version, patch, p.ID); err != nil {
				return notFound(err, "application", id)
			}
			applyPatch(&updated, patch)
			updated.Version = app.Version + 1
			chain.Application = &updated
			result = view(chain)
			displaced = app.Resume
			if patch.StatusChange != nil {
				e.Metrics.StatusTransition(string(patch.StatusChange.Status))
				e.Log.WithFields(logrus.Fields{
					"application_id": id,
					"from":           app.Status,
					"to":             updated.Status,
					"actor_id":       p.ID,
				}).Info("application status changed")
			}
			return nil
		})
		return displaced, err
	}

	if in.Resume == nil {
		if _, err := commit(nil); err != nil {
			return domain.ApplicationView{}, err
		}
		return result, nil
	}
	_, err = e.Assets.Replace(ctx, chain.Application.Resume, *in.Resume, func(next domain.ResumeRef) (domain.ResumeRef, error) {
		return commit(&next)
	})
	if err != nil {
		var ae *assets.Error
		if errors.As(err, &ae) {
			return domain.ApplicationView{}, assetFailure(err)
		}
		return domain.ApplicationView{}, err
	}
	return result, nil
}

func (e Engine) authorizeUpdate(ctx context.Context, p domain.Principal, id string, in UpdateApplicationInput) (domain.OwnershipChain, error) {
	chain, err := e.resolveApplication(ctx, id)
	if err != nil {
		return domain.OwnershipChain{}, err
	}
	if in.hiringFields() {
		if err := auth.Authorize(p, auth.UpdateApplicationStatus, chain); err != nil {
			return domain.OwnershipChain{}, err
		}
	}
	if in.applicantFields() {
		if err := auth.Authorize(p, auth.UpdateApplicantFields, chain); err != nil {
			return domain.OwnershipChain{}, err
		}
	}
	return chain, nil
}

func applyPatch(app *domain.Application, p repo.ApplicationPatch) {
	if p.CoverLetter != nil {
		app.CoverLetter = *p.CoverLetter
	}
	if p.ExpectedSalary != nil {
		app.ExpectedSalary = p.ExpectedSalary
	}
	if p.AvailableFrom != nil {
		app.AvailableFrom = p.AvailableFrom
	}
	if p.Notes != nil {
		app.Notes = *p.Notes
	}
	if p.Resume != nil {
		app.Resume = *p.Resume
	}
	app.UpdatedAt = p.UpdatedAt
}

// DeleteApplication removes the record, then releases the resume the deleted
// row referenced. A failed release is logged and never undoes or fails the
// deletion.
func (e Engine) DeleteApplication(ctx context.Context, p domain.Principal, id string) error {
	chain, err := e.resolveApplication(ctx, id)
	if err != nil {
		return err
	}
	if err := auth.Authorize(p, auth.DeleteApplication, chain); err != nil {
		return err
	}
	ref, err := e.Store.DeleteApplication(ctx, id, p.ID)
	if err != nil {
		return notFound(err, "application", id)
	}
	e.Log.WithFields(logrus.Fields{"application_id": id, "actor_id": p.ID}).Info("application deleted")
	e.Assets.Release(ctx, ref, "delete")
	return nil
}
