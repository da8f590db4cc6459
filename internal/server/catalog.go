package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"jobboard/internal/domain"
	"jobboard/internal/engine"
	"jobboard/internal/repo"
)

var mutationErrors = []int{
	http.StatusBadRequest,
	http.StatusUnauthorized,
	http.StatusForbidden,
	http.StatusNotFound,
	http.StatusConflict,
}

func registerCompanies(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-company",
		Method:        http.MethodPost,
		Path:          "/companies",
		Summary:       "Create company",
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		Body CompanyRequest `json:"body"`
	}) (*struct {
		Body domain.Company `json:"body"`
	}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.CreateCompany(ctx, p, input.Body.input())
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body domain.Company `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-companies",
		Method:      http.MethodGet,
		Path:        "/companies",
		Summary:     "List companies",
	}, func(ctx context.Context, input *struct {
		OwnerID string `query:"owner_id"`
		Limit   int    `query:"limit" default:"50"`
		Offset  int    `query:"offset"`
	}) (*struct {
		Body CompanyList `json:"body"`
	}, error) {
		items, err := e.ListCompanies(ctx, input.OwnerID, input.Limit, input.Offset)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body CompanyList `json:"body"`
		}{Body: CompanyList{Items: nonNil(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-company",
		Method:      http.MethodGet,
		Path:        "/companies/{company_id}",
		Summary:     "Get company",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CompanyID string `path:"company_id"`
	}) (*struct {
		Body domain.Company `json:"body"`
	}, error) {
		c, err := e.GetCompany(ctx, input.CompanyID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body domain.Company `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-company",
		Method:      http.MethodPatch,
		Path:        "/companies/{company_id}",
		Summary:     "Update company",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		CompanyID string              `path:"company_id"`
		Body      CompanyPatchRequest `json:"body"`
	}) (*struct {
		Body domain.Company `json:"body"`
	}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.UpdateCompany(ctx, p, input.CompanyID, input.Body.patch())
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body domain.Company `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-company",
		Method:        http.MethodDelete,
		Path:          "/companies/{company_id}",
		Summary:       "Delete company with its jobs and applications",
		DefaultStatus: http.StatusNoContent,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		CompanyID string `path:"company_id"`
	}) (*struct{}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteCompany(ctx, p, input.CompanyID); err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct{}{}, nil
	})
}

func registerJobs(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-job",
		Method:        http.MethodPost,
		Path:          "/jobs",
		Summary:       "Create job",
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		Body JobRequest `json:"body"`
	}) (*struct {
		Body domain.Job `json:"body"`
	}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		j, err := e.CreateJob(ctx, p, input.Body.input())
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body domain.Job `json:"body"`
		}{Body: j}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-jobs",
		Method:      http.MethodGet,
		Path:        "/jobs",
		Summary:     "List jobs",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		CompanyID string `query:"company_id"`
		Status    string `query:"status" enum:"DRAFT,OPEN,CLOSED,FILLED"`
		Search    string `query:"q"`
		Limit     int    `query:"limit" default:"50"`
		Offset    int    `query:"offset"`
	}) (*struct {
		Body JobList `json:"body"`
	}, error) {
		items, err := e.ListJobs(ctx, repo.JobFilter{
			CompanyID: input.CompanyID,
			Status:    domain.JobStatus(input.Status),
			Search:    input.Search,
			Limit:     input.Limit,
			Offset:    input.Offset,
		})
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body JobList `json:"body"`
		}{Body: JobList{Items: nonNil(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-job",
		Method:      http.MethodGet,
		Path:        "/jobs/{job_id}",
		Summary:     "Get job",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		JobID string `path:"job_id"`
	}) (*struct {
		Body domain.Job `json:"body"`
	}, error) {
		j, err := e.GetJob(ctx, input.JobID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body domain.Job `json:"body"`
		}{Body: j}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-job",
		Method:      http.MethodPatch,
		Path:        "/jobs/{job_id}",
		Summary:     "Update job fields",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		JobID string          `path:"job_id"`
		Body  JobPatchRequest `json:"body"`
	}) (*struct {
		Body domain.Job `json:"body"`
	}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		j, err := e.UpdateJob(ctx, p, input.JobID, input.Body.patch())
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body domain.Job `json:"body"`
		}{Body: j}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-job-status",
		Method:      http.MethodPatch,
		Path:        "/jobs/{job_id}/status",
		Summary:     "Open, close or fill a job",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		JobID string           `path:"job_id"`
		Body  JobStatusRequest `json:"body"`
	}) (*struct {
		Body domain.Job `json:"body"`
	}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		j, err := e.UpdateJobStatus(ctx, p, input.JobID, input.Body.Status)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body domain.Job `json:"body"`
		}{Body: j}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-job",
		Method:        http.MethodDelete,
		Path:          "/jobs/{job_id}",
		Summary:       "Delete job with its applications",
		DefaultStatus: http.StatusNoContent,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		JobID string `path:"job_id"`
	}) (*struct{}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteJob(ctx, p, input.JobID); err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct{}{}, nil
	})
}
