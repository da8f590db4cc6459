package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"jobboard/internal/domain"
	"jobboard/internal/engine/auth"
	"jobboard/internal/repo"
)

type RegisterInput struct {
	Name     string      `json:"name" validate:"required,max=200"`
	Email    string      `json:"email" validate:"required,email"`
	Password string      `json:"password" validate:"required,min=8,max=72"`
	Role     domain.Role `json:"role" validate:"required,oneof=EMPLOYER JOB_SEEKER"`
}

// Register creates an employer or job seeker account.
func (e Engine) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	if err := e.check(in); err != nil {
		return domain.User{}, err
	}
	return e.createUser(ctx, in.Name, in.Email, in.Password, in.Role)
}

// CreateAdmin creates an ADMIN account. It is reachable from the CLI only.
func (e Engine) CreateAdmin(ctx context.Context, name, email, password string) (domain.User, error) {
	in := RegisterInput{Name: name, Email: email, Password: password, Role: domain.RoleEmployer}
	if err := e.check(in); err != nil {
		return domain.User{}, err
	}
	return e.createUser(ctx, name, email, password, domain.RoleAdmin)
}

func (e Engine) createUser(ctx context.Context, name, email, password string, role domain.Role) (domain.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, err
	}
	u := domain.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(name),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		Role:         role,
		PasswordHash: string(hash),
		CreatedAt:    e.now(),
	}
	if err := e.Store.InsertUser(ctx, u); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return domain.User{}, ConflictError{Reason: "email already registered"}
		}
		return domain.User{}, err
	}
	e.Log.WithFields(logrus.Fields{"user_id": u.ID, "role": u.Role}).Info("user registered")
	return u, nil
}

// Login verifies the credentials and returns the user.
func (e Engine) Login(ctx context.Context, email, password string) (domain.User, error) {
	u, err := e.Store.GetUserByEmail(ctx, email)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (e Engine) GetUser(ctx context.Context, id string) (domain.User, error) {
	u, err := e.Store.GetUser(ctx, id)
	return u, notFound(err, "user", id)
}

func (e Engine) ListUsers(ctx context.Context, p domain.Principal, role domain.Role, limit, offset int) ([]domain.User, error) {
	if err := auth.Authorize(p, auth.ListUsers, domain.OwnershipChain{}); err != nil {
		return nil, err
	}
	if role != "" && !role.Valid() {
		return nil, ValidationError{Field: "role", Message: "unknown role " + string(role)}
	}
	limit, offset = pageBounds(limit, offset)
	return e.Store.ListUsers(ctx, role, limit, offset)
}

// DeleteUser removes the user together with everything they own or applied
// with, then releases the resumes of every removed application.
func (e Engine) DeleteUser(ctx context.Context, p domain.Principal, id string) error {
	if _, err := e.Store.GetUser(ctx, id); err != nil {
		return notFound(err, "user", id)
	}
	if err := auth.Authorize(p, auth.DeleteUser, domain.OwnershipChain{}); err != nil {
		return err
	}
	if id == p.ID {
		return ConflictError{Reason: "admins cannot delete their own account"}
	}
	refs, err := e.Store.DeleteUser(ctx, id, p.ID)
	if err != nil {
		return notFound(err, "user", id)
	}
	e.Log.WithFields(logrus.Fields{"user_id": id, "actor_id": p.ID, "resumes": len(refs)}).Info("user deleted")
	e.Assets.ReleaseAll(ctx, refs, "cascade")
	return nil
}

func (e Engine) ListEvents(ctx context.Context, p domain.Principal, limit int, entityKind, entityID string) ([]domain.Event, error) {
	if err := auth.Authorize(p, auth.ReadEvents, domain.OwnershipChain{}); err != nil {
		return nil, err
	}
	limit, _ = pageBounds(limit, 0)
	return e.Store.ListEvents(ctx, limit, entityKind, entityID)
}
