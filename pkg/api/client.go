// Package api is the HTTP client for the remote cache service.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/relictools/relic/errors"
	"github.com/relictools/relic/version"
	"github.com/sirupsen/logrus"
)

const (
	requestTimeout = 20 * time.Second
	retryMax       = 2
)

// CachingStatus is the remote cache state for a team.
type CachingStatus string

const (
	CachingStatusDisabled  CachingStatus = "disabled"
	CachingStatusEnabled   CachingStatus = "enabled"
	CachingStatusOverLimit CachingStatus = "over_limit"
	CachingStatusPaused    CachingStatus = "paused"
)

// User is the authenticated account.
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	CreatedAt int64  `json:"createdAt"`
}

// Membership is the relationship between the logged-in user and a team.
type Membership struct {
	Role string `json:"role"`
}

// Team is one team the user belongs to.
type Team struct {
	ID         string     `json:"id"`
	Slug       string     `json:"slug"`
	Name       string     `json:"name"`
	CreatedAt  int64      `json:"createdAt"`
	Membership Membership `json:"membership"`
}

// IsOwner reports whether the user owns the team.
func (t Team) IsOwner() bool {
	return t.Membership.Role == "OWNER"
}

type userResponse struct {
	User User `json:"user"`
}

type teamsResponse struct {
	Teams []Team `json:"teams"`
}

type statusResponse struct {
	Status CachingStatus `json:"status"`
}

// Client talks to the remote cache service with bearer-token auth. Requests
// are retried on 429 and on 5xx responses other than 501.
type Client struct {
	baseURL string
	token   string
	http    *retryablehttp.Client
}

// Options configures a Client.
type Options struct {
	// Logger receives retry diagnostics. Nil disables them.
	Logger *logrus.Entry
}

// New creates a Client for the service at baseURL.
func New(baseURL, token string, opts Options) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = retryMax
	rc.HTTPClient.Timeout = requestTimeout
	rc.CheckRetry = checkRetry
	if opts.Logger != nil {
		rc.Logger = opts.Logger
	} else {
		rc.Logger = nil
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    rc,
	}
}

// SetToken replaces the bearer token used on subsequent requests.
func (c *Client) SetToken(token string) {
	c.token = token
}

// checkRetry retries connection errors, 429, and 5xx except 501.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return true, nil
	}
	if resp.StatusCode >= 500 && resp.StatusCode != http.StatusNotImplemented {
		return true, nil
	}
	return false, nil
}

// GetUser fetches the authenticated user.
func (c *Client) GetUser(ctx context.Context) (*User, error) {
	var out userResponse
	if err := c.get(ctx, "/v2/user", nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// GetTeams fetches the teams the user belongs to.
func (c *Client) GetTeams(ctx context.Context) ([]Team, error) {
	var out teamsResponse
	if err := c.get(ctx, "/v2/teams", url.Values{"limit": {"100"}}, &out); err != nil {
		return nil, err
	}
	return out.Teams, nil
}

// GetCachingStatus fetches the remote cache state for a team.
func (c *Client) GetCachingStatus(ctx context.Context, teamID string) (CachingStatus, error) {
	var out statusResponse
	if err := c.get(ctx, "/v8/artifacts/status", url.Values{"teamId": {teamID}}, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values, out interface{}) error {
	target := c.baseURL + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to build API request").
			WithDetail("url", target)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeAPIUnavailable, "remote cache service unreachable").
			WithDetail("url", target)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errors.New(errors.ErrCodeNotFound, "404 - Not found").WithDetail("url", target)
	}
	if resp.StatusCode != http.StatusOK {
		return errors.APIStatus(endpoint, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeAPIUnavailable, "failed to read API response")
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal,
			fmt.Sprintf("unexpected response from %s", endpoint))
	}
	return nil
}
