package assets

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pallet-engine/pallet/internal/jobs"
	"github.com/pallet-engine/pallet/internal/vfs"
	"github.com/pallet-engine/pallet/pkg/assetid"
)

// newTestManager builds a manager over a shipped content root seeded with
// text fixtures, using an inline scheduler unless cfg overrides it.
func newTestManager(t *testing.T, sched *jobs.Scheduler, cfg Config) (*Manager, string) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "text", "fixtures"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "text", "fixtures", "golden.cfg"), []byte("golden v1"), 0o644))

	if sched == nil {
		sched = jobs.New(jobs.Config{Mode: jobs.ModeInline})
	}
	t.Cleanup(sched.Shutdown)

	resolver := assetid.NewResolver("", root, vfs.New())
	return New(resolver, vfs.New(), sched, cfg, nil), root
}

func goldenID(t *testing.T) assetid.ID {
	t.Helper()
	id, err := assetid.New(assetid.Engine, assetid.KindText, "fixtures/golden.cfg")
	require.NoError(t, err)
	return id
}

func TestRequestCoalescesOntoOneSlot(t *testing.T) {
	mgr, _ := newTestManager(t, nil, Config{DecodeBudgetMS: 8})
	id := goldenID(t)

	h1, err := mgr.Request(id, RequestOptions{})
	require.NoError(t, err)
	h2, hit, err := mgr.RequestWithOutcome(id, RequestOptions{})
	require.NoError(t, err)
	assert.False(t, hit, "not a cache hit before the first decode")
	assert.Equal(t, StatusPending, h1.Status())
	assert.Equal(t, StatusPending, h2.Status())

	require.NoError(t, mgr.AwaitReady(h1, time.Second))
	assert.Equal(t, StatusReady, h2.Status(), "both handles share the slot")

	_, hit, err = mgr.RequestWithOutcome(id, RequestOptions{})
	require.NoError(t, err)
	assert.True(t, hit)

	text, ok := h1.Payload().(*TextPayload)
	require.True(t, ok)
	assert.Equal(t, "golden v1", text.Text)
	assert.Equal(t, uint64(1), h1.Version())
	assert.NotZero(t, h1.ContentHash())
}

func TestRequestStaysPendingWhileSchedulerQueueFull(t *testing.T) {
	sched := jobs.New(jobs.Config{
		Mode:          jobs.ModeThreaded,
		IOWorkers:     1,
		CPUWorkers:    1,
		IOCapacity:    1,
		CPUCapacity:   4,
		CompletionCap: 16,
	})
	mgr, _ := newTestManager(t, sched, Config{DecodeBudgetMS: 8})

	// Occupy the single worker and fill the one-deep queue behind it.
	block := make(chan struct{})
	running := make(chan struct{})
	_, err := sched.Submit(jobs.QueueIO, func(func() bool) error {
		close(running)
		<-block
		return nil
	}, nil)
	require.NoError(t, err)
	<-running
	_, err = sched.Submit(jobs.QueueIO, func(func() bool) error { return nil }, nil)
	require.NoError(t, err)

	h, err := mgr.Request(goldenID(t), RequestOptions{})
	require.NoError(t, err)
	mgr.Pump()
	assert.Equal(t, StatusPending, h.Status(), "queue-full requests retry next tick")

	close(block)
	require.NoError(t, mgr.AwaitReady(h, 5*time.Second))
}

func TestReloadRetainsPayloadAcrossFailure(t *testing.T) {
	mgr, root := newTestManager(t, nil, Config{DecodeBudgetMS: 8})
	id := goldenID(t)
	path := filepath.Join(root, "text", "fixtures", "golden.cfg")

	h, err := mgr.Request(id, RequestOptions{})
	require.NoError(t, err)
	require.NoError(t, mgr.AwaitReady(h, time.Second))

	require.NoError(t, os.Remove(path))
	require.NoError(t, mgr.Reload(id, RequestOptions{}))

	assert.Equal(t, StatusReady, h.Status(), "retained slot stays ready")
	require.Error(t, h.Err(), "the failure text rides alongside")
	text, ok := h.Payload().(*TextPayload)
	require.True(t, ok)
	assert.Equal(t, "golden v1", text.Text, "previous payload survives the failed refresh")
	assert.Equal(t, uint64(1), h.Version())
}

func TestReloadSuccessBumpsVersion(t *testing.T) {
	mgr, root := newTestManager(t, nil, Config{DecodeBudgetMS: 8})
	id := goldenID(t)
	path := filepath.Join(root, "text", "fixtures", "golden.cfg")

	h, err := mgr.Request(id, RequestOptions{})
	require.NoError(t, err)
	require.NoError(t, mgr.AwaitReady(h, time.Second))
	firstHash := h.ContentHash()

	require.NoError(t, os.WriteFile(path, []byte("golden v2"), 0o644))
	require.NoError(t, mgr.Reload(id, RequestOptions{}))
	mgr.Pump()

	require.Equal(t, StatusReady, h.Status())
	text, ok := h.Payload().(*TextPayload)
	require.True(t, ok)
	assert.Equal(t, "golden v2", text.Text)
	assert.Equal(t, uint64(2), h.Version())
	assert.NotEqual(t, firstHash, h.ContentHash())
}

func TestCancelBeforeDispatchFailsSlot(t *testing.T) {
	mgr, _ := newTestManager(t, nil, Config{DecodeBudgetMS: 8})

	h, err := mgr.Request(goldenID(t), RequestOptions{})
	require.NoError(t, err)
	h.Cancel()
	mgr.Pump()

	assert.Equal(t, StatusFailed, h.Status())
	assert.ErrorIs(t, h.Err(), ErrCancelled)
}

func TestThrottlePolicySparesNormalAndBoot(t *testing.T) {
	// A zero budget is already spent, so Low priority and Background
	// throttle while Normal and Boot proceed.
	mgr, root := newTestManager(t, nil, Config{DecodeBudgetMS: 0})
	require.NoError(t, os.WriteFile(filepath.Join(root, "text", "fixtures", "low.cfg"), []byte("low"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "text", "fixtures", "normal.cfg"), []byte("normal"), 0o644))

	lowID, err := assetid.New(assetid.Engine, assetid.KindText, "fixtures/low.cfg")
	require.NoError(t, err)
	normalID, err := assetid.New(assetid.Engine, assetid.KindText, "fixtures/normal.cfg")
	require.NoError(t, err)

	hLow, err := mgr.Request(lowID, RequestOptions{Priority: PriorityLow})
	require.NoError(t, err)
	hNormal, err := mgr.Request(normalID, RequestOptions{Priority: PriorityNormal})
	require.NoError(t, err)
	hBoot, err := mgr.Request(goldenID(t), RequestOptions{Priority: PriorityLow, Tag: TagBoot})
	require.NoError(t, err)

	mgr.BeginTick()
	mgr.Pump()

	assert.Equal(t, StatusPending, hLow.Status(), "low priority throttles at budget")
	assert.Equal(t, StatusReady, hNormal.Status(), "normal priority proceeds at budget")
	assert.Equal(t, StatusReady, hBoot.Status(), "boot-tagged work never throttles")

	tel := mgr.BudgetTelemetry()
	assert.Equal(t, 1, tel.Throttled[TagNormal])
}

func TestPurgeDropsSlot(t *testing.T) {
	mgr, _ := newTestManager(t, nil, Config{DecodeBudgetMS: 8})
	id := goldenID(t)

	h, err := mgr.Request(id, RequestOptions{})
	require.NoError(t, err)
	require.NoError(t, mgr.AwaitReady(h, time.Second))
	require.Len(t, mgr.ListAssets(), 1)

	mgr.Purge(id)
	assert.Empty(t, mgr.ListAssets())

	_, hit, err := mgr.RequestWithOutcome(id, RequestOptions{})
	require.NoError(t, err)
	assert.False(t, hit, "purged slot does not cache-hit")
}

func TestAwaitReadyPanicsInsideSimTick(t *testing.T) {
	mgr, _ := newTestManager(t, nil, Config{DecodeBudgetMS: 8, SimTickPolicy: SimTickPanic})

	h, err := mgr.Request(goldenID(t), RequestOptions{})
	require.NoError(t, err)

	mgr.EnterSimTick()
	assert.Panics(t, func() { _ = mgr.AwaitReady(h, time.Millisecond) })
	mgr.ExitSimTick()

	require.NoError(t, mgr.AwaitReady(h, time.Second))
}

func TestReleaseBuildDowngradesSimTickPanic(t *testing.T) {
	mgr, _ := newTestManager(t, nil, Config{DecodeBudgetMS: 8, SimTickPolicy: SimTickPanic, Release: true})

	h, err := mgr.Request(goldenID(t), RequestOptions{})
	require.NoError(t, err)

	mgr.EnterSimTick()
	assert.NotPanics(t, func() { _ = mgr.AwaitReady(h, time.Second) })
}
