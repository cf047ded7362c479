package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is the gateway admin API HTTP client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	verbose    bool
}

// NewClient creates a new admin API client.
func NewClient(baseURL, apiKey string, verbose bool) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		verbose: verbose,
	}
}

// Do performs an HTTP request and returns the response body.
func (c *Client) Do(method, path string, body any) ([]byte, int, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(context.Background(), method, url, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	if c.apiKey != "" {
		req.Header.Set("X-Admin-API-Key", c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.verbose {
		fmt.Printf(">>> %s %s\n", method, url)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	if c.verbose {
		fmt.Printf("<<< %d %s\n", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	if resp.StatusCode >= 400 {
		return nil, resp.StatusCode, parseAPIError(resp.StatusCode, respBody)
	}

	return respBody, resp.StatusCode, nil
}

// Get performs a GET request.
func (c *Client) Get(path string) ([]byte, error) {
	data, _, err := c.Do(http.MethodGet, path, nil)
	return data, err
}

// Post performs a POST request.
func (c *Client) Post(path string, body any) ([]byte, error) {
	data, _, err := c.Do(http.MethodPost, path, body)
	return data, err
}

// Delete performs a DELETE request.
func (c *Client) Delete(path string) error {
	_, _, err := c.Do(http.MethodDelete, path, nil)
	return err
}

// APIError represents an error from the admin API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("API error: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

func parseAPIError(statusCode int, body []byte) error {
	apiErr := &APIError{StatusCode: statusCode}

	var parsed struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		apiErr.Code = parsed.Code
		apiErr.Message = parsed.Message
	}

	if apiErr.Message == "" {
		switch statusCode {
		case 401:
			apiErr.Message = "unauthorized: invalid or missing admin API key"
		case 404:
			apiErr.Message = "no matching entry"
		case 409:
			apiErr.Message = "conflict: an active deny entry takes precedence"
		case 429:
			apiErr.Message = "rate limited by the gateway"
		default:
			apiErr.Message = fmt.Sprintf("API error: %d %s", statusCode, http.StatusText(statusCode))
		}
	}

	return apiErr
}

// Response types matching server handler structs.

type RuleResponse struct {
	Scope   string `json:"scope"`
	Pattern string `json:"pattern,omitempty"`
	Limit   int    `json:"limit"`
	Window  string `json:"window"`
	Burst   int    `json:"burst,omitempty"`
}

type StatsResponse struct {
	GeneratedAt    string         `json:"generated_at"`
	StoreConnected bool           `json:"store_connected"`
	DefaultRule    RuleResponse   `json:"default_rule"`
	EndpointRules  []RuleResponse `json:"endpoint_rules"`
	BlacklistSize  int            `json:"blacklist_size"`
	WhitelistSize  int            `json:"whitelist_size"`
	ThreatLevel    string         `json:"threat_level"`
	Threats24h     int            `json:"threats_24h"`
}

type VerdictResponse struct {
	Decision   string       `json:"decision"`
	Reason     string       `json:"reason"`
	Rule       RuleResponse `json:"rule,omitempty"`
	Remaining  int          `json:"remaining"`
	RetryAfter string       `json:"retry_after,omitempty"`
}

type EntryResponse struct {
	ID        string  `json:"id"`
	IP        string  `json:"ip"`
	Kind      string  `json:"kind"`
	Reason    string  `json:"reason,omitempty"`
	CreatedAt string  `json:"created_at"`
	ExpiresAt *string `json:"expires_at,omitempty"`
}

type ListEntriesResponse struct {
	Entries []EntryResponse `json:"entries"`
	Total   int             `json:"total"`
}

type IPCount struct {
	IP       string `json:"ip"`
	Count    int    `json:"count"`
	LastSeen string `json:"last_seen"`
}

type AnalysisResponse struct {
	WindowHours  int            `json:"window_hours"`
	GeneratedAt  string         `json:"generated_at"`
	TotalThreats int            `json:"total_threats"`
	CountsByKind map[string]int `json:"counts_by_kind"`
	UniqueIPs    int            `json:"unique_ips"`
	TopThreatIPs []IPCount      `json:"top_threat_ips"`
	Level        string         `json:"threat_level"`
}
