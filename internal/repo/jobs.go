package repo

import (
	"context"
	"database/sql"
	"strings"

	"jobboard/internal/domain"
	"jobboard/internal/events"
)

const jobColumns = `j.id,j.company_id,j.title,COALESCE(j.description,''),COALESCE(j.location,''),j.salary_min,j.salary_max,j.status,j.expires_at,j.created_at,j.updated_at`

type jobRow struct {
	job              domain.Job
	salaryMin        sql.NullInt64
	salaryMax        sql.NullInt64
	status           string
	expires          sql.NullString
	created, updated string
}

func (jr *jobRow) dest() []any {
	return []any{&jr.job.ID, &jr.job.CompanyID, &jr.job.Title, &jr.job.Description, &jr.job.Location,
		&jr.salaryMin, &jr.salaryMax, &jr.status, &jr.expires, &jr.created, &jr.updated}
}

func (jr *jobRow) build() (domain.Job, error) {
	j := jr.job
	j.SalaryMin = intPtr(jr.salaryMin)
	j.SalaryMax = intPtr(jr.salaryMax)
	j.Status = domain.JobStatus(jr.status)
	var err error
	if j.ExpiresAt, err = parseNullTime(jr.expires); err != nil {
		return domain.Job{}, err
	}
	if j.CreatedAt, err = parseTime(jr.created); err != nil {
		return domain.Job{}, err
	}
	if j.UpdatedAt, err = parseTime(jr.updated); err != nil {
		return domain.Job{}, err
	}
	return j, nil
}

func (r Repo) InsertJob(ctx context.Context, j domain.Job, actorID string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO jobs(id,company_id,title,description,location,salary_min,salary_max,status,expires_at,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
			j.ID, j.CompanyID, j.Title, nullable(j.Description), nullable(j.Location), nullableInt(j.SalaryMin), nullableInt(j.SalaryMax),
			string(j.Status), fmtTimePtr(j.ExpiresAt), fmtTime(j.CreatedAt), fmtTime(j.UpdatedAt))
		if err != nil {
			return translate(err)
		}
		return r.Events.Append(ctx, tx, "job.created", "job", j.ID, actorID, events.Payload{"company_id": j.CompanyID, "status": j.Status})
	})
}

func (r Repo) GetJob(ctx context.Context, id string) (domain.Job, error) {
	var jr jobRow
	if err := r.DB.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs j WHERE j.id=?`, id).Scan(jr.dest()...); err != nil {
		return domain.Job{}, translate(err)
	}
	return jr.build()
}

// ResolveJob loads a job together with its company's owner in one query.
func (r Repo) ResolveJob(ctx context.Context, id string) (domain.OwnershipChain, error) {
	var (
		jr    jobRow
		chain domain.OwnershipChain
	)
	err := r.DB.QueryRowContext(ctx, `SELECT `+jobColumns+`,c.name,c.owner_id FROM jobs j JOIN companies c ON c.id=j.company_id WHERE j.id=?`, id).
		Scan(append(jr.dest(), &chain.CompanyName, &chain.OwnerID)...)
	if err != nil {
		return domain.OwnershipChain{}, translate(err)
	}
	j, err := jr.build()
	if err != nil {
		return domain.OwnershipChain{}, err
	}
	chain.Job = &j
	chain.CompanyID = j.CompanyID
	return chain, nil
}

type JobFilter struct {
	CompanyID string
	Status    domain.JobStatus
	Search    string
	Limit     int
	Offset    int
}

func (r Repo) ListJobs(ctx context.Context, f JobFilter) ([]domain.Job, error) {
	var (
		clauses []string
		args    []any
	)
	if f.CompanyID != "" {
		clauses = append(clauses, "j.company_id=?")
		args = append(args, f.CompanyID)
	}
	if f.Status != "" {
		clauses = append(clauses, "j.status=?")
		args = append(args, string(f.Status))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		clauses = append(clauses, "(j.title LIKE ? OR j.description LIKE ?)")
		like := "%" + s + "%"
		args = append(args, like, like)
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs j`+where+` ORDER BY j.created_at DESC, j.id DESC`+limitClause(f.Limit, f.Offset), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Job
	for rows.Next() {
		var jr jobRow
		if err := rows.Scan(jr.dest()...); err != nil {
			return nil, err
		}
		j, err := jr.build()
		if err != nil {
			return nil, err
		}
		res = append(res, j)
	}
	return res, rows.Err()
}

// UpdateJob overwrites the mutable job columns; evtType names the audit event.
func (r Repo) UpdateJob(ctx context.Context, j domain.Job, evtType, actorID string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE jobs SET title=?,description=?,location=?,salary_min=?,salary_max=?,status=?,expires_at=?,updated_at=? WHERE id=?`,
			j.Title, nullable(j.Description), nullable(j.Location), nullableInt(j.SalaryMin), nullableInt(j.SalaryMax),
			string(j.Status), fmtTimePtr(j.ExpiresAt), fmtTime(j.UpdatedAt), j.ID)
		if err != nil {
			return translate(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return r.Events.Append(ctx, tx, evtType, "job", j.ID, actorID, events.Payload{"status": j.Status})
	})
}

// DeleteJob removes the job with its applications and returns their resume references.
func (r Repo) DeleteJob(ctx context.Context, id, actorID string) ([]domain.ResumeRef, error) {
	var refs []domain.ResumeRef
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		refs, err = resumeRefs(ctx, tx, `SELECT resume_url, resume_key FROM applications WHERE job_id=?`, id)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE id=?`, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return r.Events.Append(ctx, tx, "job.deleted", "job", id, actorID, events.Payload{"released_resumes": len(refs)})
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}
