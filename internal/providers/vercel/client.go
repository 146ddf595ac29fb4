package vercel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"hostforge/internal/engine"
	"hostforge/internal/infra"
)

// ErrMissingAPIToken indicates the client was configured without credentials.
var ErrMissingAPIToken = errors.New("vercel: api token is required")

// Options configures the Vercel hosting client.
type Options struct {
	APIToken       string
	TeamID         string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the Vercel REST API. It satisfies the
// engine's hosting platform contract.
type Client struct {
	apiToken   string
	teamID     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIToken) == "" {
		return nil, ErrMissingAPIToken
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.vercel.com"
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := infra.Logger(zerolog.New(io.Discard))
		logger = &discard
	}
	return &Client{
		apiToken:   strings.TrimSpace(opts.APIToken),
		teamID:     strings.TrimSpace(opts.TeamID),
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("vercel: status %d: %s", e.code, e.body)
}

func isStatus(err error, code int) bool {
	var se *statusError
	return errors.As(err, &se) && se.code == code
}

// endpoint joins a path onto the base URL and appends the team scope.
func (c *Client) endpoint(path string) string {
	full := c.baseURL + path
	if c.teamID == "" {
		return full
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return full + sep + "teamId=" + url.QueryEscape(c.teamID)
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("vercel: encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return fmt.Errorf("vercel: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("vercel: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("vercel: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var detail struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Error.Message != "" {
			return &statusError{code: resp.StatusCode, body: detail.Error.Message}
		}
		return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(raw))}
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("vercel: decode response: %w", err)
		}
	}
	return nil
}

type projectResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GetProject fetches a project by name, returning nil without error when the
// project does not exist.
func (c *Client) GetProject(ctx context.Context, name string) (*engine.HostingProject, error) {
	var resp projectResponse
	err := c.do(ctx, http.MethodGet, "/v9/projects/"+url.PathEscape(name), nil, &resp)
	switch {
	case err == nil:
		return &engine.HostingProject{ID: resp.ID, Name: resp.Name}, nil
	case isStatus(err, http.StatusNotFound):
		return nil, nil
	default:
		return nil, err
	}
}

// CreateProject creates a project linked to a GitHub repository.
func (c *Client) CreateProject(ctx context.Context, name, repoFullName string) (*engine.HostingProject, error) {
	payload := map[string]any{
		"name":      name,
		"framework": "nextjs",
		"gitRepository": map[string]string{
			"type": "github",
			"repo": repoFullName,
		},
	}
	var resp projectResponse
	if err := c.do(ctx, http.MethodPost, "/v10/projects", payload, &resp); err != nil {
		return nil, err
	}
	c.logger.Info().Str("project", resp.Name).Str("project_id", resp.ID).Msg("vercel: project created")
	return &engine.HostingProject{ID: resp.ID, Name: resp.Name}, nil
}

// SetEnvVars upserts environment variables on a project.
func (c *Client) SetEnvVars(ctx context.Context, projectID string, vars []engine.EnvVar) error {
	payload := make([]map[string]any, 0, len(vars))
	for _, v := range vars {
		payload = append(payload, map[string]any{
			"key":    v.Key,
			"value":  v.Value,
			"type":   "plain",
			"target": v.Target,
		})
	}
	path := "/v10/projects/" + url.PathEscape(projectID) + "/env?upsert=true"
	if err := c.do(ctx, http.MethodPost, path, payload, nil); err != nil {
		return fmt.Errorf("vercel: set env vars: %w", err)
	}
	return nil
}

type deploymentResponse struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	ReadyState string `json:"readyState"`
}

func (r deploymentResponse) toDeployment() *engine.Deployment {
	return &engine.Deployment{
		ID:    r.ID,
		URL:   r.URL,
		State: engine.DeployState(r.ReadyState),
	}
}

// TriggerDeploy starts a new production deployment from the linked repo's
// default branch.
func (c *Client) TriggerDeploy(ctx context.Context, projectID string) (*engine.Deployment, error) {
	payload := map[string]any{
		"name":    projectID,
		"project": projectID,
		"target":  "production",
		"gitSource": map[string]string{
			"type": "github",
			"ref":  "main",
		},
	}
	var resp deploymentResponse
	if err := c.do(ctx, http.MethodPost, "/v13/deployments?forceNew=1", payload, &resp); err != nil {
		return nil, err
	}
	c.logger.Info().Str("deployment_id", resp.ID).Msg("vercel: deployment triggered")
	return resp.toDeployment(), nil
}

// GetDeployment fetches current deployment state.
func (c *Client) GetDeployment(ctx context.Context, deploymentID string) (*engine.Deployment, error) {
	var resp deploymentResponse
	if err := c.do(ctx, http.MethodGet, "/v13/deployments/"+url.PathEscape(deploymentID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.toDeployment(), nil
}

// AddDomain binds a domain to a project. A conflict means the domain is
// already bound, which counts as success.
func (c *Client) AddDomain(ctx context.Context, projectID, domainName string) error {
	payload := map[string]string{"name": domainName}
	path := "/v10/projects/" + url.PathEscape(projectID) + "/domains"
	err := c.do(ctx, http.MethodPost, path, payload, nil)
	if err != nil && !isStatus(err, http.StatusConflict) {
		return err
	}
	return nil
}

// RemoveDomain unbinds a domain. Absent bindings count as success.
func (c *Client) RemoveDomain(ctx context.Context, projectID, domainName string) error {
	path := "/v9/projects/" + url.PathEscape(projectID) + "/domains/" + url.PathEscape(domainName)
	err := c.do(ctx, http.MethodDelete, path, nil, nil)
	if err != nil && !isStatus(err, http.StatusNotFound) {
		return err
	}
	return nil
}

// DomainVerified reports whether the platform has verified the domain's DNS
// configuration.
func (c *Client) DomainVerified(ctx context.Context, projectID, domainName string) (bool, error) {
	var resp struct {
		Verified bool `json:"verified"`
	}
	path := "/v9/projects/" + url.PathEscape(projectID) + "/domains/" + url.PathEscape(domainName)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return false, err
	}
	return resp.Verified, nil
}
