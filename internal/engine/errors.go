package engine

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"jobboard/internal/assets"
	"jobboard/internal/blob"
	"jobboard/internal/repo"
)

// NotFoundError reports a missing entity. It matches repo.ErrNotFound.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return e.Kind + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e NotFoundError) Unwrap() error { return repo.ErrNotFound }

// ConflictError reports a business rule violation against current state.
type ConflictError struct {
	Reason string
}

func (e ConflictError) Error() string { return "conflict: " + e.Reason }

// InvalidTransitionError rejects a status change the lifecycle does not allow.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

// AssetError reports a fatal failure of the resume store.
type AssetError struct {
	Op  string
	Err error
}

func (e AssetError) Error() string { return fmt.Sprintf("resume storage %s failed: %v", e.Op, e.Err) }
func (e AssetError) Unwrap() error { return e.Err }

// ValidationError reports malformed input.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// ErrInvalidCredentials is returned by Login for unknown emails and wrong passwords alike.
var ErrInvalidCredentials = errors.New("invalid email or password")

func notFound(err error, kind, id string) error {
	if errors.Is(err, repo.ErrNotFound) {
		return NotFoundError{Kind: kind, ID: id}
	}
	return err
}

// assetFailure splits upload errors into rejected input and store failures.
func assetFailure(err error) error {
	var invalid blob.InvalidObjectError
	if errors.As(err, &invalid) {
		return ValidationError{Field: "resume", Message: invalid.Reason}
	}
	var ae *assets.Error
	if errors.As(err, &ae) {
		return AssetError{Op: ae.Op, Err: ae.Err}
	}
	return AssetError{Op: "upload", Err: err}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

func (e Engine) check(in any) error {
	err := e.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return ValidationError{Field: fe.Field(), Message: describe(fe)}
	}
	return ValidationError{Message: err.Error()}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gte":
		return "must be >= " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	}
	return "failed " + fe.Tag() + " check"
}
