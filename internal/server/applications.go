package server

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"jobboard/internal/blob"
	"jobboard/internal/domain"
	"jobboard/internal/engine"
)

func registerApplications(api huma.API, cfg Config) {
	e := cfg.Engine
	maxBody := cfg.MaxUploadBytes + 1<<20

	huma.Register(api, huma.Operation{
		OperationID:   "create-application",
		Method:        http.MethodPost,
		Path:          "/applications",
		Summary:       "Apply to a job",
		Description:   "multipart/form-data with job_id, resume (file) and optional cover_letter, expected_salary, available_from, applicant_id (admins).",
		DefaultStatus: http.StatusCreated,
		MaxBodyBytes:  maxBody,
		Errors:        append(mutationErrors, http.StatusBadGateway),
	}, func(ctx context.Context, input *struct {
		RawBody multipart.Form
	}) (*struct {
		Body domain.ApplicationView `json:"body"`
	}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		form := &input.RawBody
		in := engine.CreateApplicationInput{
			JobID:       formText(form, "job_id"),
			ApplicantID: formText(form, "applicant_id"),
			CoverLetter: formText(form, "cover_letter"),
		}
		var err error
		if in.ExpectedSalary, err = formInt(form, "expected_salary"); err != nil {
			return nil, handleError(ctx, err)
		}
		if in.AvailableFrom, err = formTime(form, "available_from"); err != nil {
			return nil, handleError(ctx, err)
		}
		if in.Resume, err = formFile(form, "resume", cfg.MaxUploadBytes); err != nil {
			return nil, handleError(ctx, err)
		}
		app, err := e.CreateApplication(ctx, p, in)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body domain.ApplicationView `json:"body"`
		}{Body: app}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-applications",
		Method:      http.MethodGet,
		Path:        "/applications",
		Summary:     "List visible applications",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		JobID       string `query:"job_id"`
		ApplicantID string `query:"applicant_id" doc:"Admins only"`
		Status      string `query:"status"`
		Limit       int    `query:"limit" default:"50"`
		Offset      int    `query:"offset"`
	}) (*struct {
		Body ApplicationList `json:"body"`
	}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListApplications(ctx, p, engine.ListApplicationsInput{
			JobID:       input.JobID,
			ApplicantID: input.ApplicantID,
			Status:      domain.AppStatus(input.Status),
			Limit:       input.Limit,
			Offset:      input.Offset,
		})
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body ApplicationList `json:"body"`
		}{Body: ApplicationList{Items: nonNil(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-application",
		Method:      http.MethodGet,
		Path:        "/applications/{application_id}",
		Summary:     "Get application with its status history",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ApplicationID string `path:"application_id"`
	}) (*struct {
		Body domain.ApplicationView `json:"body"`
	}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		app, err := e.GetApplication(ctx, p, input.ApplicationID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body domain.ApplicationView `json:"body"`
		}{Body: app}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:  "update-application",
		Method:       http.MethodPatch,
		Path:         "/applications/{application_id}",
		Summary:      "Update application fields",
		Description:  "multipart/form-data with any of status, notes, cover_letter, expected_salary, available_from and resume (file).",
		MaxBodyBytes: maxBody,
		Errors:       append(mutationErrors, http.StatusUnprocessableEntity, http.StatusBadGateway),
	}, func(ctx context.Context, input *struct {
		ApplicationID string `path:"application_id"`
		RawBody       multipart.Form
	}) (*struct {
		Body domain.ApplicationView `json:"body"`
	}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		form := &input.RawBody
		in := engine.UpdateApplicationInput{
			Notes:       formString(form, "notes"),
			CoverLetter: formString(form, "cover_letter"),
		}
		if s := formString(form, "status"); s != nil {
			status := domain.AppStatus(strings.ToUpper(*s))
			in.Status = &status
		}
		var err error
		if in.ExpectedSalary, err = formInt(form, "expected_salary"); err != nil {
			return nil, handleError(ctx, err)
		}
		if in.AvailableFrom, err = formTime(form, "available_from"); err != nil {
			return nil, handleError(ctx, err)
		}
		if len(form.File["resume"]) > 0 {
			if in.Resume, err = formFile(form, "resume", cfg.MaxUploadBytes); err != nil {
				return nil, handleError(ctx, err)
			}
		}
		app, err := e.UpdateApplication(ctx, p, input.ApplicationID, in)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body domain.ApplicationView `json:"body"`
		}{Body: app}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-application-status",
		Method:      http.MethodPatch,
		Path:        "/applications/{application_id}/status",
		Summary:     "Change application status",
		Errors:      append(mutationErrors, http.StatusUnprocessableEntity),
	}, func(ctx context.Context, input *struct {
		ApplicationID string                   `path:"application_id"`
		Body          ApplicationStatusRequest `json:"body"`
	}) (*struct {
		Body domain.ApplicationView `json:"body"`
	}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		status := domain.AppStatus(strings.ToUpper(strings.TrimSpace(input.Body.Status)))
		app, err := e.UpdateStatus(ctx, p, input.ApplicationID, status, input.Body.Notes)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body domain.ApplicationView `json:"body"`
		}{Body: app}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-application",
		Method:        http.MethodDelete,
		Path:          "/applications/{application_id}",
		Summary:       "Delete application and its resume",
		DefaultStatus: http.StatusNoContent,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		ApplicationID string `path:"application_id"`
	}) (*struct{}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteApplication(ctx, p, input.ApplicationID); err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct{}{}, nil
	})
}

// formString returns the first value of key, or nil when the field is absent.
func formString(form *multipart.Form, key string) *string {
	vals, ok := form.Value[key]
	if !ok || len(vals) == 0 {
		return nil
	}
	v := vals[0]
	return &v
}

func formText(form *multipart.Form, key string) string {
	if v := formString(form, key); v != nil {
		return strings.TrimSpace(*v)
	}
	return ""
}

func formInt(form *multipart.Form, key string) (*int, error) {
	v := formText(form, key)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, engine.ValidationError{Field: key, Message: "must be an integer"}
	}
	return &n, nil
}

// formTime accepts RFC 3339 timestamps and plain dates.
func formTime(form *multipart.Form, key string) (*time.Time, error) {
	v := formText(form, key)
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, engine.ValidationError{Field: key, Message: "must be a date (YYYY-MM-DD) or RFC 3339 timestamp"}
}

// formFile reads the uploaded file under key. Reading stops one byte past
// limit so oversized files are still reported as too large.
func formFile(form *multipart.Form, key string, limit int64) (*blob.Object, error) {
	headers := form.File[key]
	if len(headers) == 0 {
		return nil, nil
	}
	fh := headers[0]
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", key, err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read upload %s: %w", key, err)
	}
	return &blob.Object{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
