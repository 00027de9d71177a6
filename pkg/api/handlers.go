package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tcmartin/flowsweep/pkg/platform"
	"github.com/tcmartin/flowsweep/pkg/sweep"
)

// stateView is the snapshot shape handed to the rendering layer.
type stateView struct {
	Phase          string        `json:"phase"`
	Flows          []flowRowView `json:"flows"`
	HasMore        bool          `json:"has_more"`
	TotalLoaded    int           `json:"total_loaded"`
	SelectionCount int           `json:"selection_count"`
}

type flowRowView struct {
	ID                  string        `json:"id"`
	DeveloperName       string        `json:"developer_name"`
	Label               string        `json:"label"`
	ProcessType         string        `json:"process_type"`
	ProcessTypeLabel    string        `json:"process_type_label"`
	IsActive            bool          `json:"is_active"`
	ActiveVersionID     string        `json:"active_version_id,omitempty"`
	VersionLabel        string        `json:"version_label"`
	Expanded            bool          `json:"expanded"`
	VersionsLoaded      bool          `json:"versions_loaded"`
	LoadingVersions     bool          `json:"loading_versions"`
	HasNoInactive       bool          `json:"has_no_inactive"`
	AllInactiveSelected bool          `json:"all_inactive_selected"`
	Versions            []versionView `json:"versions,omitempty"`
}

type versionView struct {
	ID               string `json:"id"`
	VersionNumber    int    `json:"version_number"`
	IsActive         bool   `json:"is_active"`
	APIVersion       string `json:"api_version"`
	LastModifiedDate string `json:"last_modified_date"`
	Selected         bool   `json:"selected"`
}

func viewOf(state sweep.State, rows []sweep.FlowRow) stateView {
	view := stateView{
		Phase:          state.Phase.String(),
		Flows:          make([]flowRowView, len(rows)),
		HasMore:        state.HasMore,
		TotalLoaded:    state.TotalLoaded,
		SelectionCount: state.SelectionCount(),
	}
	for i, row := range rows {
		view.Flows[i] = rowViewOf(state, row)
	}
	return view
}

func rowViewOf(state sweep.State, row sweep.FlowRow) flowRowView {
	view := flowRowView{
		ID:                  row.Flow.ID,
		DeveloperName:       row.Flow.DeveloperName,
		Label:               row.Flow.Label,
		ProcessType:         row.Flow.ProcessType,
		ProcessTypeLabel:    platform.ProcessTypeLabel(row.Flow.ProcessType),
		IsActive:            row.Flow.IsActive,
		ActiveVersionID:     row.Flow.ActiveVersionID,
		VersionLabel:        row.VersionLabel(),
		Expanded:            row.Expanded,
		VersionsLoaded:      row.VersionsLoaded,
		LoadingVersions:     row.LoadingVersions,
		HasNoInactive:       row.HasNoInactive,
		AllInactiveSelected: row.AllInactiveSelected,
	}
	// Versions ride along only while the row is expanded; the data itself
	// stays loaded either way.
	if row.Expanded && row.VersionsLoaded {
		view.Versions = make([]versionView, len(row.Versions))
		for i, v := range row.Versions {
			view.Versions[i] = versionView{
				ID:               v.ID,
				VersionNumber:    v.VersionNumber,
				IsActive:         v.IsActive,
				APIVersion:       v.APIVersion,
				LastModifiedDate: v.LastModifiedDate,
				Selected:         state.Selected(v.ID),
			}
		}
	}
	return view
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	state := s.controller.Snapshot()
	writeJSON(w, http.StatusOK, viewOf(state, state.Flows))
}

// handleFlows returns the filtered rows. Filters arrive as query parameters
// and are applied to a snapshot only, so this read never mutates the session.
func (s *Server) handleFlows(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	state := s.controller.Snapshot()
	filtered := state.
		WithSearch(q.Get("search")).
		WithProcessType(q.Get("type")).
		WithStatus(q.Get("status")).
		FilteredFlows()
	writeJSON(w, http.StatusOK, viewOf(state, filtered))
}

func (s *Server) handleLoadMore(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.LoadMore(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	state := s.controller.Snapshot()
	writeJSON(w, http.StatusOK, viewOf(state, state.Flows))
}

func (s *Server) handleExpand(w http.ResponseWriter, r *http.Request) {
	flowID := mux.Vars(r)["id"]
	if err := s.controller.Expand(r.Context(), flowID); err != nil {
		if errors.Is(err, sweep.ErrFlowNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusBadGateway, err)
		return
	}
	state := s.controller.Snapshot()
	row, _ := state.Row(flowID)
	writeJSON(w, http.StatusOK, rowViewOf(state, row))
}

func (s *Server) handleCollapse(w http.ResponseWriter, r *http.Request) {
	s.controller.Collapse(mux.Vars(r)["id"])
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleVersion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VersionID string `json:"version_id"`
		Selected  bool   `json:"selected"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.VersionID == "" {
		writeError(w, http.StatusBadRequest, errors.New("version_id is required"))
		return
	}
	s.controller.ToggleVersion(req.VersionID, req.Selected)
	writeJSON(w, http.StatusOK, map[string]int{
		"selection_count": s.controller.Snapshot().SelectionCount(),
	})
}

func (s *Server) handleToggleAllInactive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Selected bool `json:"selected"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	s.controller.ToggleAllInactive(mux.Vars(r)["id"], req.Selected)
	writeJSON(w, http.StatusOK, map[string]int{
		"selection_count": s.controller.Snapshot().SelectionCount(),
	})
}

// handleDelete submits the current selection. Deletion is irrevocable, so
// the request must carry an explicit confirm flag; that is the rendering
// layer's modal step made visible on the wire.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Confirm bool `json:"confirm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.Confirm {
		writeError(w, http.StatusBadRequest, errors.New("confirm is required"))
		return
	}

	outcome, err := s.controller.SubmitDelete(r.Context())
	if err != nil {
		if errors.Is(err, sweep.ErrEmptySelection) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
