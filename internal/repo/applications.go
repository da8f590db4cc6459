package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"jobboard/internal/domain"
	"jobboard/internal/events"
)

const applicationColumns = `a.id,a.job_id,a.applicant_id,a.status,a.resume_url,a.resume_key,COALESCE(a.cover_letter,''),a.expected_salary,a.available_from,COALESCE(a.notes,''),a.applied_at,a.responded_at,a.updated_at,a.version`

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type appRow struct {
	app            domain.Application
	status         string
	expectedSalary sql.NullInt64
	availableFrom  sql.NullString
	applied        string
	responded      sql.NullString
	updated        string
}

func (ar *appRow) dest() []any {
	a := &ar.app
	return []any{&a.ID, &a.JobID, &a.ApplicantID, &ar.status, &a.Resume.URL, &a.Resume.Key, &a.CoverLetter,
		&ar.expectedSalary, &ar.availableFrom, &a.Notes, &ar.applied, &ar.responded, &ar.updated, &a.Version}
}

func (ar *appRow) build() (domain.Application, error) {
	a := ar.app
	a.Status = domain.AppStatus(ar.status)
	a.ExpectedSalary = intPtr(ar.expectedSalary)
	var err error
	if a.AvailableFrom, err = parseNullTime(ar.availableFrom); err != nil {
		return domain.Application{}, err
	}
	if a.AppliedAt, err = parseTime(ar.applied); err != nil {
		return domain.Application{}, err
	}
	if a.RespondedAt, err = parseNullTime(ar.responded); err != nil {
		return domain.Application{}, err
	}
	if a.UpdatedAt, err = parseTime(ar.updated); err != nil {
		return domain.Application{}, err
	}
	return a, nil
}

// InsertApplication stores a new application together with its initial ledger.
// A second application for the same (job, applicant) pair yields ErrDuplicate and writes nothing.
func (r Repo) InsertApplication(ctx context.Context, a domain.Application, actorID string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO applications(id,job_id,applicant_id,status,resume_url,resume_key,cover_letter,expected_salary,available_from,notes,applied_at,responded_at,updated_at,version) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			a.ID, a.JobID, a.ApplicantID, string(a.Status), a.Resume.URL, a.Resume.Key, nullable(a.CoverLetter),
			nullableInt(a.ExpectedSalary), fmtTimePtr(a.AvailableFrom), nullable(a.Notes), fmtTime(a.AppliedAt),
			fmtTimePtr(a.RespondedAt), fmtTime(a.UpdatedAt), a.Version)
		if err != nil {
			return translate(err)
		}
		for _, entry := range a.StatusHistory {
			if err := insertStatusChange(ctx, tx, a.ID, entry); err != nil {
				return err
			}
		}
		return r.Events.Append(ctx, tx, "application.created", "application", a.ID, actorID, events.Payload{
			"job_id":       a.JobID,
			"applicant_id": a.ApplicantID,
			"status":       a.Status,
		})
	})
}

func insertStatusChange(ctx context.Context, tx *sql.Tx, applicationID string, c domain.StatusChange) error {
	var prev any
	if c.PreviousStatus != nil {
		prev = string(*c.PreviousStatus)
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO application_status_history(application_id,seq,status,previous_status,changed_by,changed_at) VALUES (?,?,?,?,?,?)`,
		applicationID, c.Seq, string(c.Status), prev, c.ChangedBy, fmtTime(c.ChangedAt))
	return translate(err)
}

// HasApplication reports whether applicantID already applied to jobID.
func (r Repo) HasApplication(ctx context.Context, jobID, applicantID string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT 1 FROM applications WHERE job_id=? AND applicant_id=? LIMIT 1`, jobID, applicantID).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ResolveApplication loads the application, its ledger, its job and the owning
// company's owner id from a single read transaction.
func (r Repo) ResolveApplication(ctx context.Context, id string) (domain.OwnershipChain, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.OwnershipChain{}, err
	}
	defer tx.Rollback()

	var (
		ar    appRow
		jr    jobRow
		chain domain.OwnershipChain
	)
	dest := append(ar.dest(), jr.dest()...)
	dest = append(dest, &chain.CompanyName, &chain.OwnerID)
	err = tx.QueryRowContext(ctx, `SELECT `+applicationColumns+`,`+jobColumns+`,c.name,c.owner_id
FROM applications a
JOIN jobs j ON j.id=a.job_id
JOIN companies c ON c.id=j.company_id
WHERE a.id=?`, id).Scan(dest...)
	if err != nil {
		return domain.OwnershipChain{}, translate(err)
	}
	app, err := ar.build()
	if err != nil {
		return domain.OwnershipChain{}, err
	}
	job, err := jr.build()
	if err != nil {
		return domain.OwnershipChain{}, err
	}
	histories, err := loadHistories(ctx, tx, app.ID)
	if err != nil {
		return domain.OwnershipChain{}, err
	}
	app.StatusHistory = histories[app.ID]
	if err := tx.Commit(); err != nil {
		return domain.OwnershipChain{}, err
	}
	chain.Application = &app
	chain.Job = &job
	chain.CompanyID = job.CompanyID
	return chain, nil
}

func loadHistories(ctx context.Context, q querier, ids ...string) (map[string]domain.StatusHistory, error) {
	out := make(map[string]domain.StatusHistory, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := q.QueryContext(ctx, `SELECT application_id,seq,status,COALESCE(previous_status,''),changed_by,changed_at
FROM application_status_history WHERE application_id IN (`+placeholders(len(ids))+`) ORDER BY application_id, seq`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			appID, status, prev, changedAt string
			c                              domain.StatusChange
		)
		if err := rows.Scan(&appID, &c.Seq, &status, &prev, &c.ChangedBy, &changedAt); err != nil {
			return nil, err
		}
		c.Status = domain.AppStatus(status)
		if prev != "" {
			p := domain.AppStatus(prev)
			c.PreviousStatus = &p
		}
		if c.ChangedAt, err = parseTime(changedAt); err != nil {
			return nil, err
		}
		out[appID] = append(out[appID], c)
	}
	return out, rows.Err()
}

// ApplicationFilter scopes a listing. OwnerID restricts to jobs of companies owned by that user.
type ApplicationFilter struct {
	ApplicantID string
	OwnerID     string
	JobID       string
	Status      domain.AppStatus
	Limit       int
	Offset      int
}

func (r Repo) ListApplications(ctx context.Context, f ApplicationFilter) ([]domain.ApplicationView, error) {
	var (
		clauses []string
		args    []any
	)
	if f.ApplicantID != "" {
		clauses = append(clauses, "a.applicant_id=?")
		args = append(args, f.ApplicantID)
	}
	if f.OwnerID != "" {
		clauses = append(clauses, "c.owner_id=?")
		args = append(args, f.OwnerID)
	}
	if f.JobID != "" {
		clauses = append(clauses, "a.job_id=?")
		args = append(args, f.JobID)
	}
	if f.Status != "" {
		clauses = append(clauses, "a.status=?")
		args = append(args, string(f.Status))
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+applicationColumns+`,j.title,c.id,c.name
FROM applications a
JOIN jobs j ON j.id=a.job_id
JOIN companies c ON c.id=j.company_id`+where+` ORDER BY a.applied_at DESC, a.id DESC`+limitClause(f.Limit, f.Offset), args...)
	if err != nil {
		return nil, err
	}
	var (
		views []domain.ApplicationView
		ids   []string
	)
	for rows.Next() {
		var (
			ar appRow
			v  domain.ApplicationView
		)
		if err := rows.Scan(append(ar.dest(), &v.JobTitle, &v.CompanyID, &v.CompanyName)...); err != nil {
			rows.Close()
			return nil, err
		}
		app, err := ar.build()
		if err != nil {
			rows.Close()
			return nil, err
		}
		v.Application = app
		views = append(views, v)
		ids = append(ids, app.ID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	histories, err := loadHistories(ctx, r.DB, ids...)
	if err != nil {
		return nil, err
	}
	for i := range views {
		views[i].StatusHistory = histories[views[i].ID]
	}
	return views, nil
}

// ApplicationPatch lists the columns to overwrite; nil fields are left untouched.
type ApplicationPatch struct {
	CoverLetter    *string
	ExpectedSalary *int
	AvailableFrom  *time.Time
	Notes          *string
	Resume         *domain.ResumeRef
	// StatusChange sets the status column and responded_at and appends exactly one ledger row.
	StatusChange *domain.StatusChange
	UpdatedAt    time.Time
}

func (p ApplicationPatch) Empty() bool {
	return p.CoverLetter == nil && p.ExpectedSalary == nil && p.AvailableFrom == nil &&
		p.Notes == nil && p.Resume == nil && p.StatusChange == nil
}

// UpdateApplication applies the patch only if the stored version still equals version.
// The version bump, column writes and ledger append commit together or not at all;
// a concurrent writer surfaces as ErrStaleVersion.
func (r Repo) UpdateApplication(ctx context.Context, id string, version int64, p ApplicationPatch, actorID string) error {
	sets := []string{"version=version+1", "updated_at=?"}
	args := []any{fmtTime(p.UpdatedAt)}
	changed := []string{}
	if p.CoverLetter != nil {
		sets = append(sets, "cover_letter=?")
		args = append(args, nullable(*p.CoverLetter))
		changed = append(changed, "cover_letter")
	}
	if p.ExpectedSalary != nil {
		sets = append(sets, "expected_salary=?")
		args = append(args, *p.ExpectedSalary)
		changed = append(changed, "expected_salary")
	}
	if p.AvailableFrom != nil {
		sets = append(sets, "available_from=?")
		args = append(args, fmtTime(*p.AvailableFrom))
		changed = append(changed, "available_from")
	}
	if p.Notes != nil {
		sets = append(sets, "notes=?")
		args = append(args, nullable(*p.Notes))
		changed = append(changed, "notes")
	}
	if p.Resume != nil {
		sets = append(sets, "resume_url=?", "resume_key=?")
		args = append(args, p.Resume.URL, p.Resume.Key)
		changed = append(changed, "resume")
	}
	if p.StatusChange != nil {
		sets = append(sets, "status=?", "responded_at=?")
		args = append(args, string(p.StatusChange.Status), fmtTime(p.StatusChange.ChangedAt))
		changed = append(changed, "status")
	}
	args = append(args, id, version)

	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE applications SET %s WHERE id=? AND version=?`, strings.Join(sets, ",")), args...)
		if err != nil {
			return translate(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			var one int
			err := tx.QueryRowContext(ctx, `SELECT 1 FROM applications WHERE id=?`, id).Scan(&one)
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			if err != nil {
				return err
			}
			return ErrStaleVersion
		}
		payload := events.Payload{"fields": changed, "version": version + 1}
		if c := p.StatusChange; c != nil {
			if err := insertStatusChange(ctx, tx, id, *c); err != nil {
				if errors.Is(err, ErrDuplicate) {
					return ErrStaleVersion
				}
				return err
			}
			payload["status"] = c.Status
			if c.PreviousStatus != nil {
				payload["previous_status"] = *c.PreviousStatus
			}
		}
		return r.Events.Append(ctx, tx, "application.updated", "application", id, actorID, payload)
	})
}

// DeleteApplication removes the application row and its ledger and returns the
// resume ref the row held at deletion time.
func (r Repo) DeleteApplication(ctx context.Context, id, actorID string) (domain.ResumeRef, error) {
	var ref domain.ResumeRef
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `DELETE FROM applications WHERE id=? RETURNING resume_url, resume_key`, id).Scan(&ref.URL, &ref.Key)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return r.Events.Append(ctx, tx, "application.deleted", "application", id, actorID, events.Payload{"resume_key": ref.Key})
	})
	if err != nil {
		return domain.ResumeRef{}, err
	}
	return ref, nil
}

// ReferencedResumeKeys returns every resume key still attached to an application.
func (r Repo) ReferencedResumeKeys(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT resume_key FROM applications`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	keys := map[string]struct{}{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys[k] = struct{}{}
	}
	return keys, rows.Err()
}
