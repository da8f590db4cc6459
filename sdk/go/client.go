package jobboardsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal job board HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v1",
		Timeout:  10 * time.Second,
	}
}

// User represents the API user model.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type Company struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
	Name    string `json:"name"`
	Slug    string `json:"slug"`
}

type Job struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
}

// StatusChange is one entry of an application's status history.
type StatusChange struct {
	Seq            int       `json:"seq"`
	Status         string    `json:"status"`
	PreviousStatus *string   `json:"previous_status,omitempty"`
	ChangedBy      string    `json:"changed_by"`
	ChangedAt      time.Time `json:"changed_at"`
}

// Application represents an application together with its job and company names.
type Application struct {
	ID            string         `json:"id"`
	JobID         string         `json:"job_id"`
	ApplicantID   string         `json:"applicant_id"`
	Status        string         `json:"status"`
	CoverLetter   string         `json:"cover_letter"`
	Notes         string         `json:"notes"`
	Resume        ResumeRef      `json:"resume"`
	StatusHistory []StatusChange `json:"status_history"`
	JobTitle      string         `json:"job_title"`
	CompanyName   string         `json:"company_name"`
}

// ResumeRef locates the stored resume file.
type ResumeRef struct {
	URL string `json:"url"`
	Key string `json:"key"`
}

// Resume is a file attached to an application.
type Resume struct {
	Name        string
	ContentType string
	Data        []byte
}

// ApplyInput carries the fields of a new application.
type ApplyInput struct {
	JobID          string
	CoverLetter    string
	ExpectedSalary *int
	Resume         Resume
}

// APIError wraps non-2xx responses and the decoded error envelope.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    map[string]any
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Register creates an EMPLOYER or JOB_SEEKER account.
func (c *Client) Register(ctx context.Context, name, email, password, role string) (User, error) {
	body := map[string]any{
		"name":     name,
		"email":    email,
		"password": password,
		"role":     role,
	}
	var resp User
	err := c.do(ctx, http.MethodPost, "auth/register", body, &resp)
	return resp, err
}

// Login exchanges credentials for a token and stores it on the client.
func (c *Client) Login(ctx context.Context, email, password string) (User, error) {
	var resp struct {
		Token string `json:"token"`
		User  User   `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, "auth/login", map[string]any{"email": email, "password": password}, &resp); err != nil {
		return User{}, err
	}
	c.BearerToken = resp.Token
	return resp.User, nil
}

func (c *Client) CreateCompany(ctx context.Context, name string) (Company, error) {
	var resp Company
	err := c.do(ctx, http.MethodPost, "companies", map[string]any{"name": name}, &resp)
	return resp, err
}

// CreateJob posts a job; status is DRAFT when empty.
func (c *Client) CreateJob(ctx context.Context, companyID, title, status string) (Job, error) {
	body := map[string]any{
		"company_id": companyID,
		"title":      title,
	}
	if status != "" {
		body["status"] = status
	}
	var resp Job
	err := c.do(ctx, http.MethodPost, "jobs", body, &resp)
	return resp, err
}

// Apply submits an application with its resume as multipart/form-data.
func (c *Client) Apply(ctx context.Context, in ApplyInput) (Application, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := map[string]string{"job_id": in.JobID}
	if in.CoverLetter != "" {
		fields["cover_letter"] = in.CoverLetter
	}
	if in.ExpectedSalary != nil {
		fields["expected_salary"] = strconv.Itoa(*in.ExpectedSalary)
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return Application{}, err
		}
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="resume"; filename=%q`, in.Resume.Name))
	if in.Resume.ContentType != "" {
		h.Set("Content-Type", in.Resume.ContentType)
	}
	part, err := w.CreatePart(h)
	if err != nil {
		return Application{}, err
	}
	if _, err := part.Write(in.Resume.Data); err != nil {
		return Application{}, err
	}
	if err := w.Close(); err != nil {
		return Application{}, err
	}
	var resp Application
	err = c.send(ctx, http.MethodPost, "applications", w.FormDataContentType(), &buf, &resp)
	return resp, err
}

func (c *Client) GetApplication(ctx context.Context, id string) (Application, error) {
	var resp Application
	err := c.do(ctx, http.MethodGet, "applications/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// ListApplications returns the applications visible to the caller.
func (c *Client) ListApplications(ctx context.Context, jobID string) ([]Application, error) {
	endpoint := "applications"
	if jobID != "" {
		endpoint += "?job_id=" + url.QueryEscape(jobID)
	}
	var resp struct {
		Items []Application `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

// SetStatus moves an application to status, optionally updating notes.
func (c *Client) SetStatus(ctx context.Context, id, status string, notes *string) (Application, error) {
	body := map[string]any{"status": status}
	if notes != nil {
		body["notes"] = *notes
	}
	var resp Application
	err := c.do(ctx, http.MethodPatch, "applications/"+url.PathEscape(id)+"/status", body, &resp)
	return resp, err
}

func (c *Client) DeleteApplication(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "applications/"+url.PathEscape(id), nil, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	return c.send(ctx, method, endpoint, "application/json", &buf, out)
}

func (c *Client) send(ctx context.Context, method, endpoint, contentType string, body io.Reader, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(endpoint), body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string         `json:"code"`
				Message string         `json:"message"`
				Details map[string]any `json:"details"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			apiErr.Details = env.Error.Details
		}
		return apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) url(endpoint string) string {
	base := strings.TrimRight(c.BaseURL, "/")
	prefix := strings.Trim(c.BasePath, "/")
	if prefix != "" {
		base += "/" + prefix
	}
	return base + "/" + strings.TrimLeft(endpoint, "/")
}
