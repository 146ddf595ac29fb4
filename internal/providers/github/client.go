package github

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"hostforge/internal/engine"
	"hostforge/internal/infra"
)

// ErrMissingCredentials indicates the client was configured without a GitHub
// App identity.
var ErrMissingCredentials = errors.New("github: app id and private key are required")

// Options configures the GitHub App client that manages tenant repositories.
type Options struct {
	Org           string
	AppID         string
	PrivateKeyPEM string
	// Token bypasses the App token exchange entirely. Used in tests and for
	// personal-access-token setups.
	Token          string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the GitHub REST API as a GitHub App
// installation. It satisfies the engine's source host contract.
type Client struct {
	org        string
	appID      string
	signingKey *rsa.PrivateKey
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger

	mu          sync.Mutex
	staticToken string
	token       string
	tokenExpiry time.Time
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
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
		baseURL = "https://api.github.com"
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := infra.Logger(zerolog.New(io.Discard))
		logger = &discard
	}

	c := &Client{
		org:         strings.TrimSpace(opts.Org),
		appID:       strings.TrimSpace(opts.AppID),
		baseURL:     baseURL,
		httpClient:  httpClient,
		logger:      logger,
		staticToken: strings.TrimSpace(opts.Token),
	}
	if c.org == "" {
		return nil, errors.New("github: org is required")
	}
	if c.staticToken != "" {
		return c, nil
	}
	if c.appID == "" || opts.PrivateKeyPEM == "" {
		return nil, ErrMissingCredentials
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(opts.PrivateKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("github: parse private key: %w", err)
	}
	c.signingKey = key
	return c, nil
}

// FullName resolves a bare repository name to its org-qualified form.
func (c *Client) FullName(repoName string) string {
	return c.org + "/" + repoName
}

// appJWT signs a short-lived RS256 token identifying the GitHub App itself.
func (c *Client) appJWT() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    c.appID,
		IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
		ExpiresAt: jwt.NewNumericDate(now.Add(9 * time.Minute)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(c.signingKey)
}

// installationToken exchanges the App JWT for an installation access token,
// caching it until shortly before expiry.
func (c *Client) installationToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.staticToken != "" {
		return c.staticToken, nil
	}
	if c.token != "" && time.Now().Before(c.tokenExpiry.Add(-time.Minute)) {
		return c.token, nil
	}

	appToken, err := c.appJWT()
	if err != nil {
		return "", fmt.Errorf("github: sign app jwt: %w", err)
	}

	var installations []struct {
		ID      int64 `json:"id"`
		Account struct {
			Login string `json:"login"`
		} `json:"account"`
	}
	if err := c.doBearer(ctx, appToken, http.MethodGet, "/app/installations", nil, &installations); err != nil {
		return "", fmt.Errorf("github: list installations: %w", err)
	}

	var installationID int64
	for _, inst := range installations {
		if strings.EqualFold(inst.Account.Login, c.org) {
			installationID = inst.ID
			break
		}
	}
	if installationID == 0 {
		return "", fmt.Errorf("github: no installation found for org %s", c.org)
	}

	var issued struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	path := fmt.Sprintf("/app/installations/%d/access_tokens", installationID)
	if err := c.doBearer(ctx, appToken, http.MethodPost, path, nil, &issued); err != nil {
		return "", fmt.Errorf("github: create installation token: %w", err)
	}

	c.token = issued.Token
	c.tokenExpiry = issued.ExpiresAt
	c.logger.Debug().Int64("installation_id", installationID).Time("expires_at", issued.ExpiresAt).
		Msg("github: installation token refreshed")
	return c.token, nil
}

// statusError reports an unexpected API status, carrying the code so callers
// can branch on 404 and 409.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("github: status %d: %s", e.code, e.body)
}

func (c *Client) doBearer(ctx context.Context, token, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("github: encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("github: build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("github: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("github: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(raw))}
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("github: decode response: %w", err)
		}
	}
	return nil
}

// do performs an installation-authenticated API call.
func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	token, err := c.installationToken(ctx)
	if err != nil {
		return err
	}
	return c.doBearer(ctx, token, method, path, payload, out)
}

func isStatus(err error, code int) bool {
	var se *statusError
	return errors.As(err, &se) && se.code == code
}

// RepoExists reports whether the repository exists in the org.
func (c *Client) RepoExists(ctx context.Context, repoName string) (bool, error) {
	err := c.do(ctx, http.MethodGet, "/repos/"+c.FullName(repoName), nil, nil)
	switch {
	case err == nil:
		return true, nil
	case isStatus(err, http.StatusNotFound):
		return false, nil
	default:
		return false, err
	}
}

// CreateRepo creates a private, auto-initialized repository and returns its
// org-qualified name.
func (c *Client) CreateRepo(ctx context.Context, repoName string) (string, error) {
	payload := map[string]any{
		"name":      repoName,
		"private":   true,
		"auto_init": true,
	}
	var created struct {
		FullName string `json:"full_name"`
	}
	if err := c.do(ctx, http.MethodPost, "/orgs/"+c.org+"/repos", payload, &created); err != nil {
		return "", err
	}
	if created.FullName == "" {
		created.FullName = c.FullName(repoName)
	}
	c.logger.Info().Str("repo", created.FullName).Msg("github: repository created")
	return created.FullName, nil
}

// UploadFile creates or overwrites one file on the default branch via the
// contents API. An existing file's blob SHA is fetched first so the PUT
// updates instead of conflicting.
func (c *Client) UploadFile(ctx context.Context, repoName, path string, content []byte, message string) error {
	contentsPath := "/repos/" + c.FullName(repoName) + "/contents/" + path

	var existing struct {
		SHA string `json:"sha"`
	}
	err := c.do(ctx, http.MethodGet, contentsPath, nil, &existing)
	if err != nil && !isStatus(err, http.StatusNotFound) {
		return fmt.Errorf("github: check file %s: %w", path, err)
	}

	payload := map[string]any{
		"message": message,
		"content": base64.StdEncoding.EncodeToString(content),
	}
	if existing.SHA != "" {
		payload["sha"] = existing.SHA
	}
	if err := c.do(ctx, http.MethodPut, contentsPath, payload, nil); err != nil {
		return fmt.Errorf("github: upload %s: %w", path, err)
	}
	return nil
}

// BranchSHA resolves a branch name to its head commit SHA.
func (c *Client) BranchSHA(ctx context.Context, repoName, branch string) (string, error) {
	var result struct {
		Commit struct {
			SHA string `json:"sha"`
		} `json:"commit"`
	}
	path := "/repos/" + c.FullName(repoName) + "/branches/" + branch
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return "", err
	}
	if result.Commit.SHA == "" {
		return "", fmt.Errorf("github: branch %s has no head commit", branch)
	}
	return result.Commit.SHA, nil
}

// CommitStatus returns the combined commit status for a ref. GitHub reports
// "pending" when no statuses exist yet, which maps cleanly onto the poll.
func (c *Client) CommitStatus(ctx context.Context, repoName, ref string) (engine.CIStatus, error) {
	var result struct {
		State string `json:"state"`
	}
	path := "/repos/" + c.FullName(repoName) + "/commits/" + ref + "/status"
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return "", err
	}
	switch result.State {
	case "success":
		return engine.CIStatusSuccess, nil
	case "failure":
		return engine.CIStatusFailure, nil
	case "error":
		return engine.CIStatusError, nil
	default:
		return engine.CIStatusPending, nil
	}
}

// DispatchEvent fires a repository_dispatch event to start a workflow.
func (c *Client) DispatchEvent(ctx context.Context, repoName, eventType string) error {
	payload := map[string]any{"event_type": eventType}
	path := "/repos/" + c.FullName(repoName) + "/dispatches"
	if err := c.do(ctx, http.MethodPost, path, payload, nil); err != nil {
		return fmt.Errorf("github: dispatch %s: %w", eventType, err)
	}
	return nil
}
