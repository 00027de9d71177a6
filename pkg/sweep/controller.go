package sweep

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/tcmartin/flowsweep/pkg/logging"
	"github.com/tcmartin/flowsweep/pkg/platform"
)

// Errors returned by the controller
var (
	ErrAccessDenied   = errors.New("access to flow management denied")
	ErrFlowNotFound   = errors.New("flow not found")
	ErrEmptySelection = errors.New("no flow versions selected")
)

// Event is a state-change notice for rendering layers.
type Event struct {
	Type string `json:"type"`
}

// Event types broadcast to subscribers.
const (
	EventStateChanged     = "state_changed"
	EventDeletionComplete = "deletion_complete"
	EventAccessDenied     = "access_denied"
)

// Controller drives a sweeping session: it owns the current State, performs
// the host-service I/O around it, and notifies subscribers after every
// transition. All methods are safe for concurrent use.
type Controller struct {
	mu    sync.Mutex
	state State

	query     platform.QueryService
	mgmt      platform.ManagementService
	sessionID string
	logger    logging.Logger

	subMu       sync.Mutex
	subscribers []func(Event)
}

// NewController creates a controller over the given host services. The
// session credential is passed through unmodified on delete submissions.
func NewController(query platform.QueryService, mgmt platform.ManagementService, sessionID string, logger logging.Logger) *Controller {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Controller{
		state:     NewState(),
		query:     query,
		mgmt:      mgmt,
		sessionID: sessionID,
		logger:    logger,
	}
}

// Subscribe registers a callback invoked after state transitions. Callbacks
// run outside the state lock and may call Snapshot.
func (c *Controller) Subscribe(fn func(Event)) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

// Snapshot returns the current immutable state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Bootstrap checks the access gate and, when allowed, loads the first page.
// A denied gate is terminal: the state moves to PhaseDenied and no further
// fetches are issued.
func (c *Controller) Bootstrap(ctx context.Context) error {
	allowed, err := c.query.HasAccess(ctx)
	if err != nil {
		return fmt.Errorf("access check failed: %w", err)
	}
	if !allowed {
		c.mu.Lock()
		c.state = c.state.Deny()
		c.mu.Unlock()
		c.logger.Error("access to flow management denied")
		c.notify(EventAccessDenied)
		return ErrAccessDenied
	}
	return c.loadPage(ctx, 0)
}

// Reload discards all flow and version state and re-fetches from offset zero.
// The selection set is not touched here; delete reconciliation clears it
// before calling Reload.
func (c *Controller) Reload(ctx context.Context) error {
	return c.loadPage(ctx, 0)
}

// LoadMore appends the next page after the flows already loaded.
func (c *Controller) LoadMore(ctx context.Context) error {
	c.mu.Lock()
	offset := len(c.state.Flows)
	c.mu.Unlock()
	return c.loadPage(ctx, offset)
}

// loadPage fetches one page and folds it in. On error the previous state is
// left fully intact so nothing already on screen is lost.
func (c *Controller) loadPage(ctx context.Context, offset int) error {
	if c.denied() {
		return ErrAccessDenied
	}

	page, err := c.query.FlowDefinitions(ctx, offset)
	if err != nil {
		c.logger.Warn("flow page fetch failed",
			logging.F("offset", offset),
			logging.F("error", err.Error()))
		return fmt.Errorf("failed to load flows: %w", err)
	}

	c.mu.Lock()
	c.state = c.state.ApplyPage(page, offset)
	c.mu.Unlock()
	c.notify(EventStateChanged)
	return nil
}

// Expand marks a flow expanded and loads its versions unless they are
// already loaded or a fetch is in flight. A failed fetch leaves the row
// collapsed-safe: the loading flag clears and a later expand retries.
func (c *Controller) Expand(ctx context.Context, flowID string) error {
	if c.denied() {
		return ErrAccessDenied
	}

	c.mu.Lock()
	c.state = c.state.SetExpanded(flowID, true)
	row, found := c.state.Row(flowID)
	if !found {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrFlowNotFound, flowID)
	}
	next, shouldFetch := c.state.BeginVersionLoad(flowID)
	c.state = next
	activeVersionID := row.Flow.ActiveVersionID
	c.mu.Unlock()
	c.notify(EventStateChanged)

	if !shouldFetch {
		return nil
	}

	versions, err := c.query.FlowVersions(ctx, flowID, activeVersionID)
	if err != nil {
		c.mu.Lock()
		c.state = c.state.FailVersionLoad(flowID)
		c.mu.Unlock()
		c.logger.Warn("version fetch failed",
			logging.F("flow_id", flowID),
			logging.F("error", err.Error()))
		c.notify(EventStateChanged)
		return fmt.Errorf("failed to load versions for flow %s: %w", flowID, err)
	}

	c.mu.Lock()
	c.state = c.state.ApplyVersions(flowID, versions)
	c.mu.Unlock()
	c.notify(EventStateChanged)
	return nil
}

// Collapse hides a flow's version table. Loaded versions and the selection
// set are kept.
func (c *Controller) Collapse(flowID string) {
	c.mu.Lock()
	c.state = c.state.SetExpanded(flowID, false)
	c.mu.Unlock()
	c.notify(EventStateChanged)
}

// ToggleVersion adds or removes one version id from the selection.
func (c *Controller) ToggleVersion(versionID string, selected bool) {
	c.mu.Lock()
	c.state = c.state.ToggleVersion(versionID, selected)
	c.mu.Unlock()
	c.notify(EventStateChanged)
}

// ToggleAllInactive applies one flow's inactive versions into or out of the
// selection in one step.
func (c *Controller) ToggleAllInactive(flowID string, selected bool) {
	c.mu.Lock()
	c.state = c.state.ToggleAllInactive(flowID, selected)
	c.mu.Unlock()
	c.notify(EventStateChanged)
}

// SetFilters replaces the client-side filters.
func (c *Controller) SetFilters(filters Filters) {
	c.mu.Lock()
	c.state = c.state.WithSearch(filters.Search).
		WithProcessType(filters.ProcessType).
		WithStatus(filters.Status)
	c.mu.Unlock()
	c.notify(EventStateChanged)
}

// SubmitDelete sends the current selection to the management API in a single
// request and reconciles the per-item results.
//
// Transport-level failure leaves the selection and state untouched so the
// same selection can be retried. Any response from the service, even one
// with failures, clears the selection and triggers a full reload: the client
// cannot know post-hoc which ids still need re-selection without re-fetching.
func (c *Controller) SubmitDelete(ctx context.Context) (platform.DeleteOutcome, error) {
	c.mu.Lock()
	ids, skippedActive := c.state.DeletableSelectedIDs()
	c.mu.Unlock()

	submissionID := uuid.NewString()

	// Second line of defense after the toggle-time refusal: a selected
	// version whose reloaded detail is now active must never reach the
	// management API.
	for _, id := range skippedActive {
		c.logger.Warn("skipping active flow version",
			logging.F("submission_id", submissionID),
			logging.F("flow_version_id", id))
	}

	if len(ids) == 0 {
		return platform.DeleteOutcome{}, ErrEmptySelection
	}
	outcome, err := c.mgmt.DeleteFlowVersions(ctx, ids, c.sessionID)
	if err != nil {
		c.logger.Warn("delete submission failed",
			logging.F("submission_id", submissionID),
			logging.F("requested", len(ids)),
			logging.F("error", err.Error()))
		return platform.DeleteOutcome{}, fmt.Errorf("failed to delete flow versions: %w", err)
	}

	for _, result := range outcome.Results {
		if result.Success {
			continue
		}
		c.logger.Warn("flow version delete failed",
			logging.F("submission_id", submissionID),
			logging.F("flow_version_id", result.FlowVersionID),
			logging.F("error", result.ErrorMessage))
	}
	c.logger.Info("delete submission reconciled",
		logging.F("submission_id", submissionID),
		logging.F("succeeded", outcome.SuccessCount),
		logging.F("failed", outcome.FailureCount))

	c.mu.Lock()
	c.state = c.state.ClearSelection()
	c.mu.Unlock()
	c.notify(EventDeletionComplete)

	if err := c.Reload(ctx); err != nil {
		// The delete itself went through; a reload failure is an ordinary
		// recoverable read error the user can retry.
		c.logger.Warn("post-delete reload failed", logging.F("error", err.Error()))
	}
	return outcome, nil
}

func (c *Controller) denied() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Phase == PhaseDenied
}

func (c *Controller) notify(eventType string) {
	c.subMu.Lock()
	subscribers := make([]func(Event), len(c.subscribers))
	copy(subscribers, c.subscribers)
	c.subMu.Unlock()

	for _, fn := range subscribers {
		fn(Event{Type: eventType})
	}
}
