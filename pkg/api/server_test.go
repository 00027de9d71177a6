package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcmartin/flowsweep/pkg/config"
	"github.com/tcmartin/flowsweep/pkg/platform"
	"github.com/tcmartin/flowsweep/pkg/sweep"
)

// fakeHost backs the controller with canned host responses.
type fakeHost struct {
	access   bool
	page     platform.FlowPage
	versions map[string][]platform.VersionDetail
	outcome  platform.DeleteOutcome
}

func (f *fakeHost) HasAccess(ctx context.Context) (bool, error) {
	return f.access, nil
}

func (f *fakeHost) FlowDefinitions(ctx context.Context, offset int) (platform.FlowPage, error) {
	if offset > 0 {
		return platform.FlowPage{TotalLoaded: f.page.TotalLoaded}, nil
	}
	return f.page, nil
}

func (f *fakeHost) FlowVersions(ctx context.Context, flowID, activeVersionID string) ([]platform.VersionDetail, error) {
	return f.versions[flowID], nil
}

func (f *fakeHost) DeleteFlowVersions(ctx context.Context, ids []string, sessionID string) (platform.DeleteOutcome, error) {
	return f.outcome, nil
}

func newTestServer(t *testing.T, host *fakeHost) (*httptest.Server, *sweep.Controller) {
	t.Helper()
	controller := sweep.NewController(host, host, "sid", nil)
	if host.access {
		require.NoError(t, controller.Bootstrap(context.Background()))
	} else {
		require.Error(t, controller.Bootstrap(context.Background()))
	}
	s := NewServer(config.DefaultConfig(), controller, nil)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts, controller
}

func defaultHost() *fakeHost {
	return &fakeHost{
		access: true,
		page: platform.FlowPage{
			Flows: []platform.FlowSummary{
				{ID: "f1", DeveloperName: "OrderFlow", Label: "Order Flow", ProcessType: "AutoLaunchedFlow", IsActive: true, ActiveVersionID: "v3"},
				{ID: "f2", DeveloperName: "CaseFlow", Label: "Case Flow", ProcessType: "Flow"},
			},
			TotalLoaded: 2,
		},
		versions: map[string][]platform.VersionDetail{
			"f1": {
				{ID: "v3", FlowDefinitionID: "f1", VersionNumber: 3, IsActive: true},
				{ID: "v2", FlowDefinitionID: "f1", VersionNumber: 2},
				{ID: "v1", FlowDefinitionID: "f1", VersionNumber: 1},
			},
		},
	}
}

func getJSON(t *testing.T, url string, out interface{}) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t, defaultHost())
	resp := getJSON(t, ts.URL+"/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStateEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, defaultHost())

	var view stateView
	resp := getJSON(t, ts.URL+"/api/v1/state", &view)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready", view.Phase)
	require.Len(t, view.Flows, 2)
	assert.Equal(t, "Click to load", view.Flows[0].VersionLabel)
	assert.Equal(t, "Autolaunched Flow", view.Flows[0].ProcessTypeLabel)
}

func TestFlowsEndpointFilters(t *testing.T) {
	ts, _ := newTestServer(t, defaultHost())

	var view stateView
	resp := getJSON(t, ts.URL+"/api/v1/flows?search=case", &view)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, view.Flows, 1)
	assert.Equal(t, "f2", view.Flows[0].ID)
}

func TestFlowsEndpointLeavesSessionFiltersAlone(t *testing.T) {
	ts, controller := newTestServer(t, defaultHost())

	var view stateView
	getJSON(t, ts.URL+"/api/v1/flows?search=case&status=inactive", &view)
	require.Len(t, view.Flows, 1)

	// The query-parameter filters applied to the response only; the session
	// keeps whatever filters it had.
	assert.Equal(t, sweep.Filters{}, controller.Snapshot().Filters)

	getJSON(t, ts.URL+"/api/v1/flows", &view)
	assert.Len(t, view.Flows, 2)
}

func TestExpandAndSelectionFlow(t *testing.T) {
	ts, controller := newTestServer(t, defaultHost())

	var row flowRowView
	resp := postJSON(t, ts.URL+"/api/v1/flows/f1/expand", nil)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&row))
	resp.Body.Close()
	assert.True(t, row.Expanded)
	assert.Equal(t, "3 versions", row.VersionLabel)
	require.Len(t, row.Versions, 3)

	// Header checkbox: select all inactive.
	resp = postJSON(t, ts.URL+"/api/v1/flows/f1/selection", map[string]bool{"selected": true})
	var count struct {
		SelectionCount int `json:"selection_count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&count))
	resp.Body.Close()
	assert.Equal(t, 2, count.SelectionCount)

	// Toggling the active version off the wire is refused.
	resp = postJSON(t, ts.URL+"/api/v1/selection", map[string]interface{}{"version_id": "v3", "selected": true})
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&count))
	resp.Body.Close()
	assert.Equal(t, 2, count.SelectionCount)

	assert.Equal(t, []string{"v1", "v2"}, controller.Snapshot().SelectedIDs())
}

func TestDeleteRequiresConfirm(t *testing.T) {
	ts, _ := newTestServer(t, defaultHost())

	resp := postJSON(t, ts.URL+"/api/v1/deletions", map[string]bool{"confirm": false})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteEmptySelection(t *testing.T) {
	ts, _ := newTestServer(t, defaultHost())

	resp := postJSON(t, ts.URL+"/api/v1/deletions", map[string]bool{"confirm": true})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteHappyPath(t *testing.T) {
	host := defaultHost()
	host.outcome = platform.DeleteOutcome{
		SuccessCount: 2,
		Results: []platform.DeleteResult{
			{FlowVersionID: "v1", Success: true},
			{FlowVersionID: "v2", Success: true},
		},
	}
	ts, controller := newTestServer(t, host)

	postJSON(t, ts.URL+"/api/v1/flows/f1/expand", nil).Body.Close()
	postJSON(t, ts.URL+"/api/v1/flows/f1/selection", map[string]bool{"selected": true}).Body.Close()

	var outcome platform.DeleteOutcome
	resp := postJSON(t, ts.URL+"/api/v1/deletions", map[string]bool{"confirm": true})
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&outcome))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, outcome.SuccessCount)
	assert.Zero(t, controller.Snapshot().SelectionCount())
}

func TestAccessGateRejectsWhenDenied(t *testing.T) {
	host := defaultHost()
	host.access = false
	ts, _ := newTestServer(t, host)

	resp := getJSON(t, ts.URL+"/api/v1/state", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Health stays reachable.
	resp = getJSON(t, ts.URL+"/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
