package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultHiroAPIURL is the public Hiro API used for BNS lookups.
const DefaultHiroAPIURL = "https://api.hiro.so"

// BNSResolver looks up the Bitcoin Name System name registered for a Stacks
// address. Names are cosmetic; callers treat lookup failure as "no name".
type BNSResolver struct {
	baseURL string
	http    *http.Client
}

// NewBNSResolver creates a resolver against the Hiro API at baseURL (""
// selects DefaultHiroAPIURL).
func NewBNSResolver(baseURL string, httpClient *http.Client) *BNSResolver {
	if baseURL == "" {
		baseURL = DefaultHiroAPIURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &BNSResolver{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// Resolve returns the first BNS name registered for the address, or "" when
// the address has none.
func (r *BNSResolver) Resolve(ctx context.Context, address string) (string, error) {
	url := fmt.Sprintf("%s/v2/addresses/stacks/%s/valid", r.baseURL, address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build bns request: %w", err)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("bns lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bns lookup returned HTTP %d", resp.StatusCode)
	}

	var body struct {
		Names []string `json:"names"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body); err != nil {
		return "", fmt.Errorf("decode bns response: %w", err)
	}

	if len(body.Names) == 0 {
		return "", nil
	}
	return body.Names[0], nil
}
