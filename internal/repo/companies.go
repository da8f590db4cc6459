package repo

import (
	"context"
	"database/sql"

	"jobboard/internal/domain"
	"jobboard/internal/events"
)

const companyColumns = `id,owner_id,name,COALESCE(slug,''),COALESCE(email,''),COALESCE(website,''),COALESCE(industry,''),COALESCE(description,''),created_at,updated_at`

func scanCompany(row scanner) (domain.Company, error) {
	var (
		c                domain.Company
		created, updated string
	)
	if err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Slug, &c.Email, &c.Website, &c.Industry, &c.Description, &created, &updated); err != nil {
		return domain.Company{}, translate(err)
	}
	var err error
	if c.CreatedAt, err = parseTime(created); err != nil {
		return domain.Company{}, err
	}
	if c.UpdatedAt, err = parseTime(updated); err != nil {
		return domain.Company{}, err
	}
	return c, nil
}

func (r Repo) InsertCompany(ctx context.Context, c domain.Company, actorID string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO companies(id,owner_id,name,slug,email,website,industry,description,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?)`,
			c.ID, c.OwnerID, c.Name, nullable(c.Slug), nullable(c.Email), nullable(c.Website), nullable(c.Industry), nullable(c.Description), fmtTime(c.CreatedAt), fmtTime(c.UpdatedAt))
		if err != nil {
			return translate(err)
		}
		return r.Events.Append(ctx, tx, "company.created", "company", c.ID, actorID, events.Payload{"owner_id": c.OwnerID, "name": c.Name})
	})
}

func (r Repo) GetCompany(ctx context.Context, id string) (domain.Company, error) {
	return scanCompany(r.DB.QueryRowContext(ctx, `SELECT `+companyColumns+` FROM companies WHERE id=?`, id))
}

// ResolveCompany returns the company-level ownership chain.
func (r Repo) ResolveCompany(ctx context.Context, id string) (domain.OwnershipChain, error) {
	c, err := r.GetCompany(ctx, id)
	if err != nil {
		return domain.OwnershipChain{}, err
	}
	return domain.OwnershipChain{CompanyID: c.ID, CompanyName: c.Name, OwnerID: c.OwnerID}, nil
}

func (r Repo) ListCompanies(ctx context.Context, ownerID string, limit, offset int) ([]domain.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies`
	var args []any
	if ownerID != "" {
		query += ` WHERE owner_id=?`
		args = append(args, ownerID)
	}
	query += ` ORDER BY created_at DESC, id DESC` + limitClause(limit, offset)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) UpdateCompany(ctx context.Context, c domain.Company, actorID string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE companies SET name=?,slug=?,email=?,website=?,industry=?,description=?,updated_at=? WHERE id=?`,
			c.Name, nullable(c.Slug), nullable(c.Email), nullable(c.Website), nullable(c.Industry), nullable(c.Description), fmtTime(c.UpdatedAt), c.ID)
		if err != nil {
			return translate(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return r.Events.Append(ctx, tx, "company.updated", "company", c.ID, actorID, nil)
	})
}

// DeleteCompany removes the company with its jobs and applications and returns the
// resume references that were attached to those applications.
func (r Repo) DeleteCompany(ctx context.Context, id, actorID string) ([]domain.ResumeRef, error) {
	var refs []domain.ResumeRef
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		refs, err = resumeRefs(ctx, tx, `
SELECT a.resume_url, a.resume_key FROM applications a
JOIN jobs j ON j.id=a.job_id
WHERE j.company_id=?`, id)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM companies WHERE id=?`, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return r.Events.Append(ctx, tx, "company.deleted", "company", id, actorID, events.Payload{"released_resumes": len(refs)})
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}
