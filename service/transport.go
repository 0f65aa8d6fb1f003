package service

import (
	"fmt"
	"net/http"
)

// Transport is an http.RoundTripper that injects a bearer token obtained
// from the session manager into every request. Content API clients wrap
// their http.Client with it instead of reading token storage directly, so
// expiring tokens are refreshed silently before the request goes out.
type Transport struct {
	Manager *Manager

	// Base is the underlying round tripper; nil means http.DefaultTransport.
	Base http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	access, err := t.Manager.ValidAccessToken(req.Context())
	if err != nil {
		return nil, fmt.Errorf("authorize request: %w", err)
	}

	// RoundTrippers must not mutate the original request.
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+access)

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(clone)
}

// Client returns an http.Client whose requests carry the session's bearer
// token.
func (m *Manager) Client() *http.Client {
	return &http.Client{Transport: &Transport{Manager: m}}
}
