// Package platform provides typed clients for the host platform's flow
// query service and management API.
package platform

import "context"

// FlowSummary describes one flow definition as known at listing time.
type FlowSummary struct {
	ID              string `json:"id"`
	DeveloperName   string `json:"developerName"`
	Label           string `json:"label"`
	ProcessType     string `json:"processType"`
	ActiveVersionID string `json:"activeVersionId,omitempty"`
	IsActive        bool   `json:"isActive"`

	// VersionCount is nil until the flow's versions have been loaded.
	VersionCount *int `json:"versionCount,omitempty"`
}

// FlowPage is one page of flow summaries.
type FlowPage struct {
	Flows       []FlowSummary `json:"flows"`
	HasMore     bool          `json:"hasMore"`
	TotalLoaded int           `json:"totalLoaded"`
}

// VersionDetail describes one numbered revision of a flow definition.
type VersionDetail struct {
	ID               string `json:"id"`
	FlowDefinitionID string `json:"flowDefinitionId"`
	VersionNumber    int    `json:"versionNumber"`
	IsActive         bool   `json:"isActive"`
	APIVersion       string `json:"apiVersion"`
	LastModifiedDate string `json:"lastModifiedDate"`
	ProcessType      string `json:"processType"`
}

// DeleteResult is the management API's verdict for a single version id.
type DeleteResult struct {
	FlowVersionID string `json:"flowVersionId"`
	Success       bool   `json:"success"`
	ErrorMessage  string `json:"errorMessage,omitempty"`
}

// DeleteOutcome aggregates the per-item results of one bulk delete request.
type DeleteOutcome struct {
	SuccessCount int            `json:"successCount"`
	FailureCount int            `json:"failureCount"`
	Results      []DeleteResult `json:"results"`
}

// QueryService reads flow metadata from the host platform.
type QueryService interface {
	// HasAccess reports whether the current session may use the tool at all.
	HasAccess(ctx context.Context) (bool, error)

	// FlowDefinitions returns one page of flow summaries starting at offset.
	// The host accepts a server-side search filter on this endpoint but the
	// tool does not send one: filtering happens client-side over the loaded
	// pages, a known scalability limit for orgs with very many flows.
	FlowDefinitions(ctx context.Context, offset int) (FlowPage, error)

	// FlowVersions returns every version of one flow definition.
	FlowVersions(ctx context.Context, flowDefinitionID, activeVersionID string) ([]VersionDetail, error)
}

// ManagementService mutates flow metadata on the host platform.
type ManagementService interface {
	// DeleteFlowVersions deletes the given version ids in one request and
	// reports per-item success or failure.
	DeleteFlowVersions(ctx context.Context, flowVersionIDs []string, sessionID string) (DeleteOutcome, error)
}
