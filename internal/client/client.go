// Package client is a Go client for the gateway API, used by the evote-client CLI.
//
// The client obtains credentials on first use and refreshes the access token once when
// the gateway reports it as invalid or expired. Requests are never retried otherwise:
// a vote that timed out may still have been mined.
package client

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
	"sync"
	"time"

	"github.com/information-sharing-networks/evote-gateway/internal/gateway"
)

// APIError is a non-2xx response from the gateway
type APIError struct {
	StatusCode int
	Response   gateway.ErrorResponse
}

func (e *APIError) Error() string {
	msg := e.Response.Error
	if msg == "" {
		msg = e.Response.Message
	}
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, msg)
}

// Client calls the gateway on behalf of one client application
type Client struct {
	baseURL    string
	appID      string
	appSecret  string
	httpClient *http.Client

	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

func New(baseURL, appID, appSecret string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		appID:      appID,
		appSecret:  appSecret,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Token requests new credentials and keeps them for later calls
func (c *Client) Token(ctx context.Context) (*gateway.TokenResponse, error) {
	var resp gateway.TokenResponse
	err := c.do(ctx, http.MethodPost, "/auth/token", "", gateway.TokenRequest{AppID: c.appID, AppSecret: c.appSecret}, &resp)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.accessToken, c.refreshToken = resp.AccessToken, resp.RefreshToken
	c.mu.Unlock()
	return &resp, nil
}

func (c *Client) refresh(ctx context.Context) error {
	c.mu.Lock()
	refreshToken := c.refreshToken
	c.mu.Unlock()

	if refreshToken == "" {
		_, err := c.Token(ctx)
		return err
	}

	var resp gateway.TokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", "", gateway.RefreshRequest{RefreshToken: refreshToken}, &resp); err != nil {
		// the refresh token expired or was revoked, start over
		_, err = c.Token(ctx)
		return err
	}

	c.mu.Lock()
	c.accessToken = resp.AccessToken
	c.mu.Unlock()
	return nil
}

// authorized performs an /api call with the current access token, refreshing it once if the gateway rejects it.
func (c *Client) authorized(ctx context.Context, method, path string, body, out any) error {
	c.mu.Lock()
	token := c.accessToken
	c.mu.Unlock()

	if token == "" {
		if _, err := c.Token(ctx); err != nil {
			return err
		}
		return c.authorized(ctx, method, path, body, out)
	}

	err := c.do(ctx, method, path, token, body, out)

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Response.ErrorCode == gateway.ErrCodeForbidden {
		if err := c.refresh(ctx); err != nil {
			return err
		}
		c.mu.Lock()
		token = c.accessToken
		c.mu.Unlock()
		return c.do(ctx, method, path, token, body, out)
	}
	return err
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr.Response)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) Vote(ctx context.Context, req gateway.VoteRequest) (*gateway.TransactionResponse, error) {
	var resp gateway.TransactionResponse
	if err := c.authorized(ctx, http.MethodPost, "/api/vote", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) EndElection(ctx context.Context, electionID string) (*gateway.TransactionResponse, error) {
	var resp gateway.TransactionResponse
	req := gateway.EndElectionRequest{ElectionID: gateway.ElectionID(electionID)}
	if err := c.authorized(ctx, http.MethodPost, "/api/end", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Results(ctx context.Context, electionID string) (*gateway.ResultsResponse, error) {
	var resp gateway.ResultsResponse
	path := "/api/votesByElection?" + url.Values{"electionId": {electionID}}.Encode()
	if err := c.authorized(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) PublicResults(ctx context.Context, electionID string) (*gateway.ResultsResponse, error) {
	var resp gateway.ResultsResponse
	if err := c.authorized(ctx, http.MethodGet, "/api/public-result/"+url.PathEscape(electionID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Elections(ctx context.Context) ([]string, error) {
	var resp gateway.ElectionsResponse
	if err := c.authorized(ctx, http.MethodGet, "/api/elections", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Elections, nil
}

func (c *Client) CheckVoted(ctx context.Context, electionID, uid string) (bool, error) {
	var resp gateway.VotedResponse
	path := "/api/checkVoted?" + url.Values{"electionId": {electionID}, "uid": {uid}}.Encode()
	if err := c.authorized(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return false, err
	}
	return resp.Voted, nil
}
