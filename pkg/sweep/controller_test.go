package sweep

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcmartin/flowsweep/pkg/logging"
	"github.com/tcmartin/flowsweep/pkg/platform"
)

// mockHost is a scriptable implementation of both host services.
type mockHost struct {
	mu sync.Mutex

	access    bool
	accessErr error

	pages    map[int]platform.FlowPage
	pageErr  error
	pageLog  []int
	versions map[string][]platform.VersionDetail
	verErr   error
	verCalls map[string]int

	// verGate, when set, holds version fetches open until closed.
	verGate chan struct{}

	outcome   platform.DeleteOutcome
	deleteErr error
	deleted   [][]string
	sessions  []string
}

func newMockHost() *mockHost {
	return &mockHost{
		access:   true,
		pages:    map[int]platform.FlowPage{},
		versions: map[string][]platform.VersionDetail{},
		verCalls: map[string]int{},
	}
}

func (m *mockHost) HasAccess(ctx context.Context) (bool, error) {
	return m.access, m.accessErr
}

func (m *mockHost) FlowDefinitions(ctx context.Context, offset int) (platform.FlowPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pageLog = append(m.pageLog, offset)
	if m.pageErr != nil {
		return platform.FlowPage{}, m.pageErr
	}
	return m.pages[offset], nil
}

func (m *mockHost) FlowVersions(ctx context.Context, flowID, activeVersionID string) ([]platform.VersionDetail, error) {
	m.mu.Lock()
	m.verCalls[flowID]++
	gate := m.verGate
	err := m.verErr
	versions := m.versions[flowID]
	m.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return versions, nil
}

func (m *mockHost) DeleteFlowVersions(ctx context.Context, ids []string, sessionID string) (platform.DeleteOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, ids)
	m.sessions = append(m.sessions, sessionID)
	if m.deleteErr != nil {
		return platform.DeleteOutcome{}, m.deleteErr
	}
	return m.outcome, nil
}

// captureLogger records warn entries for assertions.
type captureLogger struct {
	logging.Logger
	mu    sync.Mutex
	warns []string
}

func newCaptureLogger() *captureLogger {
	return &captureLogger{Logger: logging.NewNop()}
}

func (l *captureLogger) Warn(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *captureLogger) warnCount(msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, w := range l.warns {
		if w == msg {
			n++
		}
	}
	return n
}

func singlePageHost() *mockHost {
	host := newMockHost()
	host.pages[0] = platform.FlowPage{
		Flows:       []platform.FlowSummary{summary("f1", "OrderFlow", true)},
		TotalLoaded: 1,
	}
	host.versions["f1"] = []platform.VersionDetail{
		version("v1", "f1", 1, true),
		version("v2", "f1", 2, false),
		version("v3", "f1", 3, false),
		version("v4", "f1", 4, false),
	}
	return host
}

func TestBootstrapDeniedIsTerminal(t *testing.T) {
	host := singlePageHost()
	host.access = false
	c := NewController(host, host, "sid", nil)

	err := c.Bootstrap(context.Background())
	require.ErrorIs(t, err, ErrAccessDenied)
	assert.Equal(t, PhaseDenied, c.Snapshot().Phase)

	// No fetches happen after denial.
	assert.Empty(t, host.pageLog)
	require.ErrorIs(t, c.LoadMore(context.Background()), ErrAccessDenied)
	assert.Empty(t, host.pageLog)
}

func TestBootstrapLoadsFirstPage(t *testing.T) {
	host := singlePageHost()
	c := NewController(host, host, "sid", nil)

	require.NoError(t, c.Bootstrap(context.Background()))
	state := c.Snapshot()
	assert.Equal(t, PhaseReady, state.Phase)
	require.Len(t, state.Flows, 1)
	assert.Equal(t, []int{0}, host.pageLog)
}

func TestLoadMoreFailureKeepsLoadedFlows(t *testing.T) {
	host := singlePageHost()
	c := NewController(host, host, "sid", nil)
	require.NoError(t, c.Bootstrap(context.Background()))

	host.pageErr = errors.New("timeout")
	err := c.LoadMore(context.Background())
	require.Error(t, err)

	state := c.Snapshot()
	assert.Equal(t, PhaseReady, state.Phase)
	assert.Len(t, state.Flows, 1)
}

func TestExpandFetchesVersionsOnce(t *testing.T) {
	host := singlePageHost()
	c := NewController(host, host, "sid", nil)
	require.NoError(t, c.Bootstrap(context.Background()))

	require.NoError(t, c.Expand(context.Background(), "f1"))
	c.Collapse("f1")
	require.NoError(t, c.Expand(context.Background(), "f1"))

	assert.Equal(t, 1, host.verCalls["f1"])
	row, _ := c.Snapshot().Row("f1")
	assert.True(t, row.Expanded)
	assert.True(t, row.VersionsLoaded)
	assert.Equal(t, "4 versions", row.VersionLabel())
}

func TestExpandUnknownFlow(t *testing.T) {
	host := singlePageHost()
	c := NewController(host, host, "sid", nil)
	require.NoError(t, c.Bootstrap(context.Background()))

	err := c.Expand(context.Background(), "missing")
	require.ErrorIs(t, err, ErrFlowNotFound)
}

func TestExpandFailureRetriesOnNextExpand(t *testing.T) {
	host := singlePageHost()
	c := NewController(host, host, "sid", nil)
	require.NoError(t, c.Bootstrap(context.Background()))

	host.verErr = errors.New("boom")
	require.Error(t, c.Expand(context.Background(), "f1"))
	row, _ := c.Snapshot().Row("f1")
	assert.False(t, row.LoadingVersions)
	assert.False(t, row.VersionsLoaded)

	host.verErr = nil
	require.NoError(t, c.Expand(context.Background(), "f1"))
	assert.Equal(t, 2, host.verCalls["f1"])
	row, _ = c.Snapshot().Row("f1")
	assert.True(t, row.VersionsLoaded)
}

func TestSubmitDeleteRequiresSelection(t *testing.T) {
	host := singlePageHost()
	c := NewController(host, host, "sid", nil)
	require.NoError(t, c.Bootstrap(context.Background()))

	_, err := c.SubmitDelete(context.Background())
	require.ErrorIs(t, err, ErrEmptySelection)
	assert.Empty(t, host.deleted)
}

func TestSubmitDeletePartialSuccess(t *testing.T) {
	host := singlePageHost()
	host.outcome = platform.DeleteOutcome{
		SuccessCount: 3,
		FailureCount: 1,
		Results: []platform.DeleteResult{
			{FlowVersionID: "v2", Success: true},
			{FlowVersionID: "v3", Success: true},
			{FlowVersionID: "v4", Success: true},
			{FlowVersionID: "v5", Success: false, ErrorMessage: "version is active"},
		},
	}
	logger := newCaptureLogger()
	c := NewController(host, host, "session-token", logger)
	require.NoError(t, c.Bootstrap(context.Background()))
	require.NoError(t, c.Expand(context.Background(), "f1"))
	c.ToggleAllInactive("f1", true)
	require.Equal(t, 3, c.Snapshot().SelectionCount())

	outcome, err := c.SubmitDelete(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, outcome.SuccessCount)
	assert.Equal(t, 1, outcome.FailureCount)

	// One request carrying the whole selection and the session credential.
	require.Len(t, host.deleted, 1)
	assert.Equal(t, []string{"v2", "v3", "v4"}, host.deleted[0])
	assert.Equal(t, []string{"session-token"}, host.sessions)

	// Selection cleared, full reload triggered from offset zero.
	assert.Zero(t, c.Snapshot().SelectionCount())
	assert.Equal(t, []int{0, 0}, host.pageLog)

	// Exactly one failure reported to diagnostics.
	assert.Equal(t, 1, logger.warnCount("flow version delete failed"))
}

func TestSubmitDeleteTransportFailurePreservesSelection(t *testing.T) {
	host := singlePageHost()
	host.deleteErr = errors.New("connection reset")
	c := NewController(host, host, "sid", newCaptureLogger())
	require.NoError(t, c.Bootstrap(context.Background()))
	require.NoError(t, c.Expand(context.Background(), "f1"))
	c.ToggleAllInactive("f1", true)

	_, err := c.SubmitDelete(context.Background())
	require.Error(t, err)

	// Selection unchanged and no reload: the user retries the same set.
	assert.Equal(t, 3, c.Snapshot().SelectionCount())
	assert.Equal(t, []int{0}, host.pageLog)
}

func TestSubmitDeleteSkipsVersionsReloadedAsActive(t *testing.T) {
	host := singlePageHost()
	host.outcome = platform.DeleteOutcome{
		SuccessCount: 1,
		Results: []platform.DeleteResult{
			{FlowVersionID: "v3", Success: true},
		},
	}
	logger := newCaptureLogger()
	c := NewController(host, host, "sid", logger)
	require.NoError(t, c.Bootstrap(context.Background()))
	require.NoError(t, c.Expand(context.Background(), "f1"))
	c.ToggleVersion("v2", true)
	c.ToggleVersion("v3", true)

	// v2 gets activated out from under the selection: a full reload discards
	// the rows and the refetched details now flag it active.
	host.mu.Lock()
	host.versions["f1"] = []platform.VersionDetail{
		version("v1", "f1", 1, false),
		version("v2", "f1", 2, true),
		version("v3", "f1", 3, false),
		version("v4", "f1", 4, false),
	}
	host.mu.Unlock()
	require.NoError(t, c.Reload(context.Background()))
	require.NoError(t, c.Expand(context.Background(), "f1"))

	outcome, err := c.SubmitDelete(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.SuccessCount)

	// Only the still-inactive id reaches the management API; the now-active
	// one is skipped and reported to diagnostics.
	require.Len(t, host.deleted, 1)
	assert.Equal(t, []string{"v3"}, host.deleted[0])
	assert.Equal(t, 1, logger.warnCount("skipping active flow version"))
}

func TestSubmitDeleteNothingDeletableAfterReload(t *testing.T) {
	host := singlePageHost()
	c := NewController(host, host, "sid", newCaptureLogger())
	require.NoError(t, c.Bootstrap(context.Background()))
	require.NoError(t, c.Expand(context.Background(), "f1"))
	c.ToggleVersion("v2", true)

	host.mu.Lock()
	host.versions["f1"] = []platform.VersionDetail{
		version("v2", "f1", 2, true),
	}
	host.mu.Unlock()
	require.NoError(t, c.Reload(context.Background()))
	require.NoError(t, c.Expand(context.Background(), "f1"))

	_, err := c.SubmitDelete(context.Background())
	require.ErrorIs(t, err, ErrEmptySelection)
	assert.Empty(t, host.deleted)
}

func TestStaleVersionResponseAppliesToCollapsedRow(t *testing.T) {
	host := singlePageHost()
	host.verGate = make(chan struct{})
	c := NewController(host, host, "sid", nil)
	require.NoError(t, c.Bootstrap(context.Background()))

	done := make(chan error, 1)
	go func() {
		done <- c.Expand(context.Background(), "f1")
	}()

	// Wait for the fetch to be in flight, then collapse the row before
	// releasing the response.
	require.Eventually(t, func() bool {
		row, _ := c.Snapshot().Row("f1")
		return row.LoadingVersions
	}, time.Second, time.Millisecond)
	c.Collapse("f1")
	close(host.verGate)
	require.NoError(t, <-done)

	// No cancellation: the stale response still lands on the collapsed row;
	// the expansion flag, not the version list, gates visibility.
	row, _ := c.Snapshot().Row("f1")
	assert.False(t, row.Expanded)
	assert.True(t, row.VersionsLoaded)
	assert.Len(t, row.Versions, 4)
	assert.Equal(t, "4 versions", row.VersionLabel())

	// Re-expanding shows the loaded data without a second fetch.
	require.NoError(t, c.Expand(context.Background(), "f1"))
	assert.Equal(t, 1, host.verCalls["f1"])
}

func TestSubscribersNotifiedOnDeletion(t *testing.T) {
	host := singlePageHost()
	host.outcome = platform.DeleteOutcome{
		SuccessCount: 3,
		Results: []platform.DeleteResult{
			{FlowVersionID: "v2", Success: true},
			{FlowVersionID: "v3", Success: true},
			{FlowVersionID: "v4", Success: true},
		},
	}
	c := NewController(host, host, "sid", nil)

	var mu sync.Mutex
	var events []string
	c.Subscribe(func(evt Event) {
		mu.Lock()
		events = append(events, evt.Type)
		mu.Unlock()
	})

	require.NoError(t, c.Bootstrap(context.Background()))
	require.NoError(t, c.Expand(context.Background(), "f1"))
	c.ToggleAllInactive("f1", true)
	_, err := c.SubmitDelete(context.Background())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, events, EventStateChanged)
	assert.Contains(t, events, EventDeletionComplete)
}
