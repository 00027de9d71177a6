package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client talks to the host platform's REST endpoints. It implements both
// QueryService and ManagementService.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a platform client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetTimeout sets the timeout for the underlying HTTP client.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.httpClient.Timeout = timeout
}

// HasAccess asks the host's access gate whether the current session may use
// the tool.
func (c *Client) HasAccess(ctx context.Context) (bool, error) {
	var result struct {
		HasAccess bool `json:"hasAccess"`
	}
	if err := c.get(ctx, "/api/v1/flows/access", nil, &result); err != nil {
		return false, fmt.Errorf("failed to check access: %w", err)
	}
	return result.HasAccess, nil
}

// FlowDefinitions returns one page of flow summaries starting at offset.
func (c *Client) FlowDefinitions(ctx context.Context, offset int) (FlowPage, error) {
	query := url.Values{}
	query.Set("offset", strconv.Itoa(offset))

	var page FlowPage
	if err := c.get(ctx, "/api/v1/flows", query, &page); err != nil {
		return FlowPage{}, fmt.Errorf("failed to list flow definitions: %w", err)
	}
	return page, nil
}

// FlowVersions returns every version of one flow definition. The active
// version id is forwarded so the host can mark the active revision without a
// second lookup.
func (c *Client) FlowVersions(ctx context.Context, flowDefinitionID, activeVersionID string) ([]VersionDetail, error) {
	query := url.Values{}
	if activeVersionID != "" {
		query.Set("activeVersionId", activeVersionID)
	}

	var versions []VersionDetail
	path := fmt.Sprintf("/api/v1/flows/%s/versions", url.PathEscape(flowDefinitionID))
	if err := c.get(ctx, path, query, &versions); err != nil {
		return nil, fmt.Errorf("failed to list flow versions: %w", err)
	}
	return versions, nil
}

// DeleteFlowVersions deletes the given version ids in a single request. The
// session credential is passed through unmodified as a bearer token.
func (c *Client) DeleteFlowVersions(ctx context.Context, flowVersionIDs []string, sessionID string) (DeleteOutcome, error) {
	reqBody, err := json.Marshal(map[string]interface{}{
		"flowVersionIds": flowVersionIDs,
	})
	if err != nil {
		return DeleteOutcome{}, fmt.Errorf("failed to marshal delete request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/api/v1/flows/versions/delete",
		bytes.NewBuffer(reqBody),
	)
	if err != nil {
		return DeleteOutcome{}, fmt.Errorf("failed to create delete request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sessionID))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return DeleteOutcome{}, fmt.Errorf("delete request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return DeleteOutcome{}, fmt.Errorf("failed to read delete response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return DeleteOutcome{}, fmt.Errorf("delete request returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var outcome DeleteOutcome
	if err := json.Unmarshal(body, &outcome); err != nil {
		return DeleteOutcome{}, fmt.Errorf("failed to parse delete response: %w", err)
	}
	return outcome, nil
}

// get performs a GET against the host and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
