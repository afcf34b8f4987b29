// Package asana implements the service.Service interface using the Asana REST API.
package asana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"asanapdf/internal/config"
	"asanapdf/internal/logger"
	"asanapdf/internal/service"
)

const (
	// PageSize is the number of records requested per page.
	PageSize = 100

	// APITimeout is the timeout for a single API call.
	APITimeout = 15 * time.Second

	// maxErrorBody bounds how much of an error response is read.
	maxErrorBody = 64 << 10
)

// projectFields and taskFields are the opt_fields sent with each listing.
var (
	projectFields = []string{"gid", "name"}

	taskFields = []string{
		"gid",
		"name",
		"notes",
		"assignee.name",
		"due_on",
		"custom_fields",
		"memberships.project.name",
		"memberships.section.name",
		"custom_fields.name",
		"custom_fields.display_value",
		"custom_fields.type",
		"custom_fields.enum_value",
		"custom_fields.enum_value.name",
		"custom_fields.number_value",
		"custom_fields.text_value",
		"custom_fields.gid",
	}
)

// Client implements service.Service using the Asana API.
type Client struct {
	http      *http.Client
	baseURL   string
	workspace string
	log       *slog.Logger
}

var _ service.Service = (*Client)(nil)

// New creates a client that authenticates every request with the given
// bearer token.
func New(ctx context.Context, cfg *config.Config, accessToken string) (*Client, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, errors.New("no access token (run: asanapdf login)")
	}

	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	})
	httpClient := oauth2.NewClient(ctx, tokenSource)

	return NewWithHTTPClient(httpClient, cfg.APIURL).WithWorkspace(cfg.Workspace), nil
}

// NewWithHTTPClient creates a client with a custom HTTP client (for testing).
// The HTTP client is responsible for authentication.
func NewWithHTTPClient(httpClient *http.Client, baseURL string) *Client {
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     slog.Default(),
	}
}

// WithLogger sets the logger used for request tracing.
func (c *Client) WithLogger(l *slog.Logger) *Client {
	c.log = logger.OrDefault(l)
	return c
}

// WithWorkspace scopes ListProjects to one workspace gid.
func (c *Client) WithWorkspace(gid string) *Client {
	c.workspace = gid
	return c
}

// ListProjects returns all projects in API order.
func (c *Client) ListProjects(ctx context.Context) ([]service.Project, error) {
	query := url.Values{}
	query.Set("opt_fields", strings.Join(projectFields, ","))
	if c.workspace != "" {
		query.Set("workspace", c.workspace)
	}

	var result []service.Project
	err := paginate(ctx, c, "/projects", query, func(items []wireProject) {
		for _, p := range items {
			result = append(result, service.Project{ID: p.GID, Name: p.Name})
		}
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListTasks returns the tasks of a project in API order.
func (c *Client) ListTasks(ctx context.Context, projectID string) ([]service.Task, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, errors.New("project id required")
	}

	query := url.Values{}
	query.Set("opt_fields", strings.Join(taskFields, ","))

	var result []service.Task
	path := "/projects/" + url.PathEscape(projectID) + "/tasks"
	err := paginate(ctx, c, path, query, func(items []wireTask) {
		for _, t := range items {
			result = append(result, t.toTask())
		}
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// paginate fetches every page of a listing, handing each page's items to
// collect in order.
func paginate[T any](ctx context.Context, c *Client, path string, query url.Values, collect func([]T)) error {
	query.Set("limit", strconv.Itoa(PageSize))

	for {
		var page wirePage[T]
		if err := c.get(ctx, path, query, &page); err != nil {
			return err
		}
		collect(page.Data)

		if page.NextPage == nil || page.NextPage.Offset == "" {
			return nil
		}
		query.Set("offset", page.NextPage.Offset)
	}
}

// get performs one authenticated GET and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.log.Debug("asana request", "method", req.Method, "path", path, "offset", query.Get("offset"))

	resp, err := c.http.Do(req)
	if err != nil {
		return &service.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		upstream := &service.UpstreamError{
			Status:  resp.StatusCode,
			Message: errorMessage(body),
		}
		c.log.Warn("asana request failed", "path", path, "status", resp.StatusCode)
		return upstream
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return &service.NetworkError{Err: ctx.Err()}
		}
		return fmt.Errorf("invalid response from %s: %w", path, err)
	}
	return nil
}

// errorMessage extracts the first message from an Asana error body.
func errorMessage(body []byte) string {
	var payload wireErrors
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if len(payload.Errors) == 0 {
		return ""
	}
	return payload.Errors[0].Message
}
