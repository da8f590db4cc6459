package repo

import (
	"context"
	"database/sql"
	"strings"

	"jobboard/internal/domain"
	"jobboard/internal/events"
)

const userColumns = `id,name,email,role,password_hash,created_at`

func scanUser(row scanner) (domain.User, error) {
	var (
		u       domain.User
		role    string
		created string
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &role, &u.PasswordHash, &created); err != nil {
		return domain.User{}, translate(err)
	}
	u.Role = domain.Role(role)
	t, err := parseTime(created)
	if err != nil {
		return domain.User{}, err
	}
	u.CreatedAt = t
	return u, nil
}

func (r Repo) InsertUser(ctx context.Context, u domain.User) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO users(`+userColumns+`) VALUES (?,?,?,?,?,?)`,
			u.ID, u.Name, strings.ToLower(u.Email), string(u.Role), u.PasswordHash, fmtTime(u.CreatedAt))
		if err != nil {
			return translate(err)
		}
		return r.Events.Append(ctx, tx, "user.created", "user", u.ID, u.ID, events.Payload{"role": u.Role})
	})
}

func (r Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=?`, id))
}

func (r Repo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email=?`, strings.ToLower(strings.TrimSpace(email))))
}

func (r Repo) ListUsers(ctx context.Context, role domain.Role, limit, offset int) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	var args []any
	if role != "" {
		query += ` WHERE role=?`
		args = append(args, string(role))
	}
	query += ` ORDER BY created_at DESC, id DESC` + limitClause(limit, offset)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

// DeleteUser removes the user and, by cascade, their companies, jobs and applications.
// It returns the resume references of every application removed with it.
func (r Repo) DeleteUser(ctx context.Context, id, actorID string) ([]domain.ResumeRef, error) {
	var refs []domain.ResumeRef
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		refs, err = resumeRefs(ctx, tx, `
SELECT a.resume_url, a.resume_key FROM applications a
JOIN jobs j ON j.id=a.job_id
JOIN companies c ON c.id=j.company_id
WHERE a.applicant_id=? OR c.owner_id=?`, id, id)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id=?`, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return r.Events.Append(ctx, tx, "user.deleted", "user", id, actorID, events.Payload{"released_resumes": len(refs)})
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

func resumeRefs(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]domain.ResumeRef, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var refs []domain.ResumeRef
	for rows.Next() {
		var ref domain.ResumeRef
		if err := rows.Scan(&ref.URL, &ref.Key); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}
