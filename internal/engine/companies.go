package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"jobboard/internal/domain"
	"jobboard/internal/engine/auth"
	"jobboard/internal/repo"
)

type CompanyInput struct {
	// OwnerID is honoured for admins only; everyone else owns what they create.
	OwnerID     string `json:"owner_id"`
	Name        string `json:"name" validate:"required,max=200"`
	Slug        string `json:"slug" validate:"omitempty,max=100"`
	Email       string `json:"email" validate:"omitempty,email"`
	Website     string `json:"website" validate:"omitempty,url"`
	Industry    string `json:"industry" validate:"max=100"`
	Description string `json:"description" validate:"max=5000"`
}

type CompanyPatch struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=200"`
	Slug        *string `json:"slug" validate:"omitempty,max=100"`
	Email       *string `json:"email" validate:"omitempty,email"`
	Website     *string `json:"website" validate:"omitempty,url"`
	Industry    *string `json:"industry" validate:"omitempty,max=100"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
}

func (e Engine) CreateCompany(ctx context.Context, p domain.Principal, in CompanyInput) (domain.Company, error) {
	if err := e.check(in); err != nil {
		return domain.Company{}, err
	}
	if err := auth.Authorize(p, auth.CreateCompany, domain.OwnershipChain{}); err != nil {
		return domain.Company{}, err
	}
	ownerID := p.ID
	if p.Role == domain.RoleAdmin && in.OwnerID != "" {
		owner, err := e.Store.GetUser(ctx, in.OwnerID)
		if err != nil {
			return domain.Company{}, notFound(err, "user", in.OwnerID)
		}
		if owner.Role == domain.RoleJobSeeker {
			return domain.Company{}, ValidationError{Field: "owner_id", Message: "job seekers cannot own companies"}
		}
		ownerID = owner.ID
	}
	now := e.now()
	c := domain.Company{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Name:        strings.TrimSpace(in.Name),
		Slug:        strings.TrimSpace(in.Slug),
		Email:       in.Email,
		Website:     in.Website,
		Industry:    in.Industry,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.Store.InsertCompany(ctx, c, p.ID); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return domain.Company{}, ConflictError{Reason: "company slug already taken"}
		}
		return domain.Company{}, err
	}
	return c, nil
}

func (e Engine) GetCompany(ctx context.Context, id string) (domain.Company, error) {
	c, err := e.Store.GetCompany(ctx, id)
	return c, notFound(err, "company", id)
}

func (e Engine) ListCompanies(ctx context.Context, ownerID string, limit, offset int) ([]domain.Company, error) {
	limit, offset = pageBounds(limit, offset)
	return e.Store.ListCompanies(ctx, ownerID, limit, offset)
}

func (e Engine) UpdateCompany(ctx context.Context, p domain.Principal, id string, in CompanyPatch) (domain.Company, error) {
	if err := e.check(in); err != nil {
		return domain.Company{}, err
	}
	c, err := e.Store.GetCompany(ctx, id)
	if err != nil {
		return domain.Company{}, notFound(err, "company", id)
	}
	chain := domain.OwnershipChain{CompanyID: c.ID, CompanyName: c.Name, OwnerID: c.OwnerID}
	if err := auth.Authorize(p, auth.UpdateCompany, chain); err != nil {
		return domain.Company{}, err
	}
	setString(&c.Name, in.Name)
	setString(&c.Slug, in.Slug)
	setString(&c.Email, in.Email)
	setString(&c.Website, in.Website)
	setString(&c.Industry, in.Industry)
	setString(&c.Description, in.Description)
	c.UpdatedAt = e.now()
	if err := e.Store.UpdateCompany(ctx, c, p.ID); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return domain.Company{}, ConflictError{Reason: "company slug already taken"}
		}
		return domain.Company{}, notFound(err, "company", id)
	}
	return c, nil
}

// DeleteCompany removes the company with its jobs and applications, then
// releases every resume those applications held.
func (e Engine) DeleteCompany(ctx context.Context, p domain.Principal, id string) error {
	chain, err := e.Store.ResolveCompany(ctx, id)
	if err != nil {
		return notFound(err, "company", id)
	}
	if err := auth.Authorize(p, auth.DeleteCompany, chain); err != nil {
		return err
	}
	refs, err := e.Store.DeleteCompany(ctx, id, p.ID)
	if err != nil {
		return notFound(err, "company", id)
	}
	e.Log.WithFields(logrus.Fields{"company_id": id, "actor_id": p.ID, "resumes": len(refs)}).Info("company deleted")
	e.Assets.ReleaseAll(ctx, refs, "cascade")
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}
