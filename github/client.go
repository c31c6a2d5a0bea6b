// Package github fetches public GitHub profiles for the profile card.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ceskypane/statuscard/logging"
	transporthttp "github.com/ceskypane/statuscard/transport/http"
)

const DefaultBaseURL = "https://api.github.com"

var (
	ErrMissingLogin = errors.New("github: login is required")
	ErrNotFound     = errors.New("github: user not found")
	ErrRateLimited  = errors.New("github: rate limited")
)

type Profile struct {
	Login       string `json:"login" yaml:"login"`
	AvatarURL   string `json:"avatar_url" yaml:"avatar_url"`
	HTMLURL     string `json:"html_url" yaml:"html_url"`
	Name        string `json:"name" yaml:"name"`
	Bio         string `json:"bio" yaml:"bio"`
	PublicRepos int    `json:"public_repos" yaml:"public_repos"`
	Followers   int    `json:"followers" yaml:"followers"`
}

type APIError struct {
	StatusCode       int
	Message          string
	DocumentationURL string
}

func (e *APIError) Error() string {
	if e == nil {
		return "github: api error"
	}

	return fmt.Sprintf("github api error status=%d message=%s", e.StatusCode, e.Message)
}

type HTTPClient interface {
	Get(ctx context.Context, url string) (transporthttp.Response, error)
}

type Config struct {
	BaseURL string
	Logger  logging.Logger
}

type Client struct {
	http HTTPClient
	cfg  Config
	log  logging.Logger
}

func NewClient(httpClient HTTPClient, cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		http: httpClient,
		cfg:  cfg,
		log:  logging.With(cfg.Logger),
	}
}

// Profile fetches the public profile for login.
// Endpoint: GET /users/{login}
func (c *Client) Profile(ctx context.Context, login string) (Profile, error) {
	login = strings.TrimPrefix(strings.TrimSpace(login), "@")
	if login == "" {
		return Profile{}, ErrMissingLogin
	}

	resp, err := c.http.Get(ctx, c.cfg.BaseURL+"/users/"+url.PathEscape(login))
	if err != nil {
		if errors.Is(err, transporthttp.ErrTooManyRetry) {
			return Profile{}, fmt.Errorf("%w: %v", ErrRateLimited, err)
		}

		return Profile{}, fmt.Errorf("github: fetch profile: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Profile{}, fmt.Errorf("%w: %s", ErrNotFound, login)
	case resp.StatusCode == http.StatusForbidden && resp.Headers.Get("X-RateLimit-Remaining") == "0":
		c.log.Warn("github rate limit exhausted", logging.F("reset", resp.Headers.Get("X-RateLimit-Reset")))
		return Profile{}, ErrRateLimited
	case !resp.OK():
		return Profile{}, decodeAPIError(resp)
	}

	var profile Profile
	if err := resp.DecodeJSON(&profile); err != nil {
		return Profile{}, fmt.Errorf("github: %w", err)
	}

	if profile.Login == "" {
		return Profile{}, fmt.Errorf("github: profile for %s has no login", login)
	}

	return profile, nil
}

func decodeAPIError(resp transporthttp.Response) error {
	var body struct {
		Message          string `json:"message"`
		DocumentationURL string `json:"documentation_url"`
	}

	apiErr := &APIError{StatusCode: resp.StatusCode}
	if err := resp.DecodeJSON(&body); err == nil {
		apiErr.Message = body.Message
		apiErr.DocumentationURL = body.DocumentationURL
	} else {
		apiErr.Message = strings.TrimSpace(string(resp.Body))
	}

	return apiErr
}
