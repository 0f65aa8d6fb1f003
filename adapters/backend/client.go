// Package backend implements the Deorganized REST auth client.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/deorganized/sessionkit/core"
	"github.com/deorganized/sessionkit/ports"
)

// DefaultTimeout bounds every backend call so a stalled network cannot leave
// the caller spinning indefinitely.
const DefaultTimeout = 15 * time.Second

// Client talks to the Deorganized REST API over JSON/HTTPS.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a backend client rooted at baseURL, e.g.
// "https://api.deorganized.media/api". A nil httpClient gets a default with
// DefaultTimeout.
func NewClient(baseURL string, httpClient *http.Client) ports.Backend {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// CheckWalletOrLogin implements ports.Backend.
func (c *Client) CheckWalletOrLogin(ctx context.Context, address string) (*core.WalletCheck, error) {
	body := map[string]string{"wallet_address": address}

	var result core.WalletCheck
	if err := c.do(ctx, http.MethodPost, "/users/wallet-login-or-check/", body, "", &result, false); err != nil {
		return nil, fmt.Errorf("wallet check: %w", err)
	}
	return &result, nil
}

// CompleteSetup implements ports.Backend. Field-level rejections come back as
// *core.ValidationError so the form can render them inline.
func (c *Client) CompleteSetup(ctx context.Context, req core.SetupRequest) (*core.AuthResult, error) {
	var result core.AuthResult
	if err := c.do(ctx, http.MethodPost, "/users/complete-setup/", req, "", &result, true); err != nil {
		return nil, err
	}
	return &result, nil
}

// Refresh implements ports.Backend. Tokens.Refresh is empty when the backend
// did not rotate the refresh token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*core.Tokens, error) {
	body := map[string]string{"refresh": refreshToken}

	var result core.Tokens
	if err := c.do(ctx, http.MethodPost, "/auth/token/refresh/", body, "", &result, false); err != nil {
		return nil, fmt.Errorf("token refresh: %w", err)
	}
	return &result, nil
}

// CurrentUser implements ports.Backend.
func (c *Client) CurrentUser(ctx context.Context, accessToken string) (*core.User, error) {
	var user core.User
	if err := c.do(ctx, http.MethodGet, "/users/me/", nil, accessToken, &user, false); err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}
	return &user, nil
}

// do sends one JSON request and decodes the response into out. Non-2xx
// responses become *core.APIError, or *core.ValidationError when wantFields
// is set and the body is a field-keyed error object.
func (c *Client) do(ctx context.Context, method, path string, body any, bearer string, out any, wantFields bool) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call backend: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, payload, wantFields)
	}

	if out != nil {
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// decodeError turns a non-2xx body into a typed error. The backend uses two
// shapes: {"detail": "..."} / {"error": "..."} for general failures, and a
// field-keyed object like {"username": ["already taken"]} for validation.
func decodeError(status int, payload []byte, wantFields bool) error {
	var body map[string]any
	if err := json.Unmarshal(payload, &body); err != nil || len(body) == 0 {
		return &core.APIError{Status: status}
	}

	message := stringValue(body["detail"])
	if message == "" {
		message = stringValue(body["error"])
	}

	if wantFields && message == "" {
		fields := map[string][]string{}
		for name, value := range body {
			if msgs := stringValues(value); len(msgs) > 0 {
				fields[name] = msgs
			}
		}
		if len(fields) > 0 {
			return &core.ValidationError{Fields: fields}
		}
	}

	return &core.APIError{Status: status, Message: message}
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

// stringValues flattens a string or list-of-strings error value.
func stringValues(v any) []string {
	switch val := v.(type) {
	case string:
		return []string{val}
	case []any:
		var out []string
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
