// Package sweep implements the flow-version sweeping session: an immutable
// snapshot of the host platform's flow list plus pure transitions for
// pagination, filtering, selection tracking, and delete reconciliation.
package sweep

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tcmartin/flowsweep/pkg/platform"
)

// Phase describes what the session as a whole is doing.
type Phase int

const (
	// PhaseLoading is the initial state, before the first page has arrived.
	PhaseLoading Phase = iota

	// PhaseDenied means the access gate rejected the session. Terminal.
	PhaseDenied

	// PhaseReady means at least one page has loaded (possibly empty).
	PhaseReady
)

// String returns the phase name used on the wire.
func (p Phase) String() string {
	switch p {
	case PhaseDenied:
		return "denied"
	case PhaseReady:
		return "ready"
	default:
		return "loading"
	}
}

// Status filter values. An empty status means "any".
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// FlowRow is one flow definition plus its per-session view state.
type FlowRow struct {
	Flow     platform.FlowSummary
	Versions []platform.VersionDetail

	// Expanded gates visibility only; it never affects loaded data.
	Expanded bool

	// VersionsLoaded guards against refetching on repeated expand/collapse.
	VersionsLoaded bool

	// LoadingVersions guards against a duplicate in-flight fetch.
	LoadingVersions bool

	// HasNoInactive is true once versions are loaded and none is deletable.
	HasNoInactive bool

	// AllInactiveSelected mirrors the header checkbox for this row.
	AllInactiveSelected bool
}

// VersionLabel returns the row's version-count label. Before versions load
// the count is unknown and the label invites a load.
func (r FlowRow) VersionLabel() string {
	if r.Flow.VersionCount == nil {
		return "Click to load"
	}
	if *r.Flow.VersionCount == 1 {
		return "1 version"
	}
	return fmt.Sprintf("%d versions", *r.Flow.VersionCount)
}

// Filters holds the three independent client-side filters.
type Filters struct {
	// Search matches case-insensitively against developer name and label.
	Search string

	// ProcessType is an exact-match process-type tag.
	ProcessType string

	// Status is "", StatusActive, or StatusInactive.
	Status string
}

// State is an immutable snapshot of the sweeping session. Transitions return
// a new State; callers must never mutate a snapshot in place.
type State struct {
	Phase       Phase
	Flows       []FlowRow
	HasMore     bool
	TotalLoaded int
	Filters     Filters

	// selected holds the version ids chosen for deletion. It persists across
	// expand/collapse and single-flow reloads; only clearing it (after a
	// delete reaches the service) or building a fresh State empties it.
	selected map[string]bool
}

// NewState returns the initial loading-phase snapshot.
func NewState() State {
	return State{
		Phase:    PhaseLoading,
		selected: map[string]bool{},
	}
}

// Deny marks the session access-denied. Terminal.
func (s State) Deny() State {
	next := s
	next.Phase = PhaseDenied
	return next
}

// ApplyPage folds one fetched page into the snapshot. Offset zero replaces
// the whole list; any other offset appends, preserving first-appearance
// order. The selection set is untouched either way.
func (s State) ApplyPage(page platform.FlowPage, offset int) State {
	next := s
	next.Phase = PhaseReady
	next.HasMore = page.HasMore
	next.TotalLoaded = page.TotalLoaded

	fresh := make([]FlowRow, len(page.Flows))
	for i, flow := range page.Flows {
		fresh[i] = FlowRow{Flow: flow}
	}

	if offset == 0 {
		next.Flows = fresh
	} else {
		rows := make([]FlowRow, 0, len(s.Flows)+len(fresh))
		rows = append(rows, s.Flows...)
		rows = append(rows, fresh...)
		next.Flows = rows
	}
	return next
}

// Row returns the row for a flow id.
func (s State) Row(flowID string) (FlowRow, bool) {
	if i := s.rowIndex(flowID); i >= 0 {
		return s.Flows[i], true
	}
	return FlowRow{}, false
}

// SetExpanded flips a row's visibility flag. Versions and selection are
// never pruned on collapse.
func (s State) SetExpanded(flowID string, expanded bool) State {
	i := s.rowIndex(flowID)
	if i < 0 {
		return s
	}
	return s.updateRow(i, func(row FlowRow) FlowRow {
		row.Expanded = expanded
		return row
	})
}

// BeginVersionLoad marks a row's version fetch as in flight. It reports
// false when no fetch should start: unknown flow, versions already loaded,
// or a fetch already in flight.
func (s State) BeginVersionLoad(flowID string) (State, bool) {
	i := s.rowIndex(flowID)
	if i < 0 {
		return s, false
	}
	row := s.Flows[i]
	if row.VersionsLoaded || row.LoadingVersions {
		return s, false
	}
	return s.updateRow(i, func(row FlowRow) FlowRow {
		row.LoadingVersions = true
		return row
	}), true
}

// ApplyVersions stores a completed version fetch on its own row and refreshes
// that row's derived flags against the global selection. Other rows are left
// untouched so concurrent fetches commute.
func (s State) ApplyVersions(flowID string, versions []platform.VersionDetail) State {
	i := s.rowIndex(flowID)
	if i < 0 {
		return s
	}
	return s.updateRow(i, func(row FlowRow) FlowRow {
		count := len(versions)
		row.Versions = versions
		row.VersionsLoaded = true
		row.LoadingVersions = false
		row.Flow.VersionCount = &count
		return deriveRow(row, s.selected)
	})
}

// FailVersionLoad clears the in-flight flag after a failed fetch, leaving
// VersionsLoaded false so a later expand retries.
func (s State) FailVersionLoad(flowID string) State {
	i := s.rowIndex(flowID)
	if i < 0 {
		return s
	}
	return s.updateRow(i, func(row FlowRow) FlowRow {
		row.LoadingVersions = false
		return row
	})
}

// ToggleVersion adds or removes one version id from the selection. Ids whose
// loaded detail is active are refused, as are ids not present in any loaded
// row (their inactivity cannot be verified). Deselection always succeeds.
func (s State) ToggleVersion(versionID string, selected bool) State {
	if selected {
		detail, ok := s.findVersion(versionID)
		if !ok || detail.IsActive {
			return s
		}
	}

	next := s
	next.selected = copySet(s.selected)
	if selected {
		next.selected[versionID] = true
	} else {
		delete(next.selected, versionID)
	}
	next.Flows = deriveRows(next.Flows, next.selected)
	return next
}

// ToggleAllInactive applies one flow's entire inactive version list into or
// out of the selection. Active versions are never added, even when asked.
func (s State) ToggleAllInactive(flowID string, selected bool) State {
	i := s.rowIndex(flowID)
	if i < 0 || !s.Flows[i].VersionsLoaded {
		return s
	}

	next := s
	next.selected = copySet(s.selected)
	for _, v := range s.Flows[i].Versions {
		if v.IsActive {
			continue
		}
		if selected {
			next.selected[v.ID] = true
		} else {
			delete(next.selected, v.ID)
		}
	}
	next.Flows = deriveRows(next.Flows, next.selected)
	return next
}

// ClearSelection empties the selection set.
func (s State) ClearSelection() State {
	next := s
	next.selected = map[string]bool{}
	next.Flows = deriveRows(next.Flows, next.selected)
	return next
}

// Selected reports whether a version id is currently selected.
func (s State) Selected(versionID string) bool {
	return s.selected[versionID]
}

// SelectionCount returns the number of selected version ids.
func (s State) SelectionCount() int {
	return len(s.selected)
}

// SelectedIDs returns the selected version ids in a deterministic order.
func (s State) SelectedIDs() []string {
	ids := make([]string, 0, len(s.selected))
	for id := range s.selected {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DeletableSelectedIDs re-checks the selection against the currently loaded
// version details and splits it into ids safe to submit and ids whose detail
// is now active. The toggle-time refusal already keeps active versions out of
// the selection; this second check catches versions that were reloaded as
// active after being selected. Ids with no loaded detail (their row was
// discarded by a full reload) were verified inactive at selection time and
// stay submittable.
func (s State) DeletableSelectedIDs() (ids, skippedActive []string) {
	for _, id := range s.SelectedIDs() {
		if detail, ok := s.findVersion(id); ok && detail.IsActive {
			skippedActive = append(skippedActive, id)
			continue
		}
		ids = append(ids, id)
	}
	return ids, skippedActive
}

// WithSearch returns a snapshot with the free-text filter set.
func (s State) WithSearch(search string) State {
	next := s
	next.Filters.Search = search
	return next
}

// WithProcessType returns a snapshot with the process-type filter set.
func (s State) WithProcessType(processType string) State {
	next := s
	next.Filters.ProcessType = processType
	return next
}

// WithStatus returns a snapshot with the active/inactive filter set.
func (s State) WithStatus(status string) State {
	next := s
	next.Filters.Status = status
	return next
}

// FilteredFlows derives the visible subset of rows. Pure and
// order-preserving; recomputed on every read, never cached.
func (s State) FilteredFlows() []FlowRow {
	out := make([]FlowRow, 0, len(s.Flows))
	for _, row := range s.Flows {
		if s.Filters.matches(row.Flow) {
			out = append(out, row)
		}
	}
	return out
}

func (f Filters) matches(flow platform.FlowSummary) bool {
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(flow.DeveloperName), needle) &&
			!strings.Contains(strings.ToLower(flow.Label), needle) {
			return false
		}
	}
	if f.ProcessType != "" && flow.ProcessType != f.ProcessType {
		return false
	}
	switch f.Status {
	case StatusActive:
		if !flow.IsActive {
			return false
		}
	case StatusInactive:
		if flow.IsActive {
			return false
		}
	}
	return true
}

func (s State) rowIndex(flowID string) int {
	for i, row := range s.Flows {
		if row.Flow.ID == flowID {
			return i
		}
	}
	return -1
}

func (s State) findVersion(versionID string) (platform.VersionDetail, bool) {
	for _, row := range s.Flows {
		if !row.VersionsLoaded {
			continue
		}
		for _, v := range row.Versions {
			if v.ID == versionID {
				return v, true
			}
		}
	}
	return platform.VersionDetail{}, false
}

// updateRow copies the row slice and rewrites one entry.
func (s State) updateRow(i int, fn func(FlowRow) FlowRow) State {
	next := s
	rows := make([]FlowRow, len(s.Flows))
	copy(rows, s.Flows)
	rows[i] = fn(rows[i])
	next.Flows = rows
	return next
}

// deriveRow refreshes a single row's selection-dependent flags.
func deriveRow(row FlowRow, selected map[string]bool) FlowRow {
	if !row.VersionsLoaded {
		return row
	}
	inactive := 0
	allSelected := true
	for _, v := range row.Versions {
		if v.IsActive {
			continue
		}
		inactive++
		if !selected[v.ID] {
			allSelected = false
		}
	}
	row.HasNoInactive = inactive == 0
	row.AllInactiveSelected = inactive > 0 && allSelected
	return row
}

// deriveRows refreshes the selection-dependent flags for every row with
// loaded versions. Selection is global, so a consistent pass over all loaded
// rows keeps the header checkboxes from going stale.
func deriveRows(rows []FlowRow, selected map[string]bool) []FlowRow {
	out := make([]FlowRow, len(rows))
	for i, row := range rows {
		out[i] = deriveRow(row, selected)
	}
	return out
}

func copySet(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
