package suspend

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idlepower/internal/logging"
)

// fakeGuest scripts one guest's behaviour
type fakeGuest struct {
	suspendErr error
	// pollsUntilStopped is the number of IsRunning calls answering true
	// after Suspend; negative means the guest never stops.
	pollsUntilStopped int
	pollErrs          int
}

type fakeVMs struct {
	mu      sync.Mutex
	running []string
	listErr error
	guests  map[string]*fakeGuest
	polls   map[string]int
	order   []string
	started chan string
	release chan struct{}
}

func newFakeVMs(running ...string) *fakeVMs {
	return &fakeVMs{
		running: running,
		guests:  map[string]*fakeGuest{},
		polls:   map[string]int{},
	}
}

func (f *fakeVMs) ListRunning(context.Context) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]string(nil), f.running...), nil
}

func (f *fakeVMs) Suspend(ctx context.Context, id string) error {
	f.mu.Lock()
	f.order = append(f.order, id)
	g := f.guests[id]
	f.mu.Unlock()

	if f.started != nil {
		f.started <- id
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if g != nil && g.suspendErr != nil {
		return g.suspendErr
	}
	return nil
}

func (f *fakeVMs) IsRunning(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	g := f.guests[id]
	if g == nil {
		return false, nil
	}
	if g.pollErrs > 0 {
		g.pollErrs--
		return false, errors.New("monitor busy")
	}
	f.polls[id]++
	if g.pollsUntilStopped < 0 {
		return true, nil
	}
	return f.polls[id] <= g.pollsUntilStopped, nil
}

func (f *fakeVMs) suspended() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.order...)
}

type fakeHost struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (h *fakeHost) SuspendHost(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	return h.err
}

func (h *fakeHost) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

type memoryRecorder struct {
	mu    sync.Mutex
	plans []*Plan
}

func (r *memoryRecorder) Record(p *Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plans = append(r.plans, p)
	return nil
}

func testConfig() Config {
	return Config{
		UnitTimeout:  100 * time.Millisecond,
		PollInterval: 2 * time.Millisecond,
		HostEnabled:  true,
	}
}

func statuses(p *Plan) []UnitStatus {
	out := make([]UnitStatus, 0, len(p.Units))
	for _, u := range p.Units {
		out = append(out, u.Status)
	}
	return out
}

func TestExecute_AllConfirmedThenHost(t *testing.T) {
	vms := newFakeVMs("300", "101", "200")
	vms.guests["101"] = &fakeGuest{pollsUntilStopped: 2}
	host := &fakeHost{}
	rec := &memoryRecorder{}

	o := NewOrchestrator(testConfig(), vms, host, logging.NewNopLogger(), WithHistory(rec))
	plan, err := o.Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"101", "200", "300"}, vms.suspended())
	assert.Equal(t, []UnitStatus{StatusConfirmed, StatusConfirmed, StatusConfirmed, StatusConfirmed}, statuses(plan))
	assert.Equal(t, KindHost, plan.Units[3].Kind)
	assert.Equal(t, OutcomeCompleted, plan.Outcome)
	assert.Equal(t, 1, host.count())
	assert.NotEmpty(t, plan.ID)
	require.Len(t, rec.plans, 1)
	assert.Same(t, plan, rec.plans[0])
	assert.False(t, o.InProgress())
}

func TestExecute_UnitTimeoutAbortsPlan(t *testing.T) {
	vms := newFakeVMs("101", "102")
	vms.guests["101"] = &fakeGuest{pollsUntilStopped: -1}
	host := &fakeHost{}

	cfg := testConfig()
	cfg.UnitTimeout = 30 * time.Millisecond
	o := NewOrchestrator(cfg, vms, host, logging.NewNopLogger())

	plan, err := o.Execute(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnitTimeout)

	assert.Equal(t, []UnitStatus{StatusFailed, StatusSkipped, StatusSkipped}, statuses(plan))
	assert.Contains(t, plan.Units[0].Error, "timed out")
	assert.Equal(t, []string{"101"}, vms.suspended(), "102 must not be attempted")
	assert.Zero(t, host.count(), "host must never be attempted")
	assert.Equal(t, OutcomeFailed, plan.Outcome)
}

func TestExecute_SuspendErrorFailsImmediately(t *testing.T) {
	vms := newFakeVMs("101", "102")
	vms.guests["101"] = &fakeGuest{suspendErr: errors.New("qm: locked")}
	host := &fakeHost{}

	o := NewOrchestrator(testConfig(), vms, host, logging.NewNopLogger())
	plan, err := o.Execute(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "qm: locked")
	assert.Equal(t, []UnitStatus{StatusFailed, StatusSkipped, StatusSkipped}, statuses(plan))
	assert.Zero(t, host.count())
}

func TestExecute_TransientPollErrorsRetried(t *testing.T) {
	vms := newFakeVMs("101")
	vms.guests["101"] = &fakeGuest{pollErrs: 3, pollsUntilStopped: 1}
	host := &fakeHost{}

	o := NewOrchestrator(testConfig(), vms, host, logging.NewNopLogger())
	plan, err := o.Execute(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []UnitStatus{StatusConfirmed, StatusConfirmed}, statuses(plan))
}

func TestExecute_ListRunningFailure(t *testing.T) {
	vms := newFakeVMs()
	vms.listErr = errors.New("qm not found")
	host := &fakeHost{}

	o := NewOrchestrator(testConfig(), vms, host, logging.NewNopLogger())
	plan, err := o.Execute(context.Background())

	require.Error(t, err)
	require.NotNil(t, plan)
	assert.Equal(t, OutcomeFailed, plan.Outcome)
	assert.Equal(t, []UnitStatus{StatusSkipped}, statuses(plan))
	assert.Zero(t, host.count())
}

func TestExecute_HostDisabled(t *testing.T) {
	vms := newFakeVMs("101")
	host := &fakeHost{}

	cfg := testConfig()
	cfg.HostEnabled = false
	o := NewOrchestrator(cfg, vms, host, logging.NewNopLogger())

	plan, err := o.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []UnitStatus{StatusConfirmed, StatusSkipped}, statuses(plan))
	assert.Equal(t, OutcomeCompleted, plan.Outcome)
	assert.Zero(t, host.count())
}

func TestExecute_HostFailure(t *testing.T) {
	host := &fakeHost{err: errors.New("inhibited")}
	o := NewOrchestrator(testConfig(), newFakeVMs(), host, logging.NewNopLogger())

	plan, err := o.Execute(context.Background())
	require.Error(t, err)
	assert.Equal(t, []UnitStatus{StatusFailed}, statuses(plan))
	assert.Equal(t, OutcomeFailed, plan.Outcome)
}

func TestExecute_AtMostOnePlan(t *testing.T) {
	vms := newFakeVMs("101")
	vms.started = make(chan string, 1)
	vms.release = make(chan struct{})
	host := &fakeHost{}

	cfg := testConfig()
	cfg.UnitTimeout = 5 * time.Second
	o := NewOrchestrator(cfg, vms, host, logging.NewNopLogger())

	done := make(chan error, 1)
	go func() {
		_, err := o.Execute(context.Background())
		done <- err
	}()

	<-vms.started
	assert.True(t, o.InProgress())

	plan, err := o.Execute(context.Background())
	assert.Nil(t, plan)
	assert.ErrorIs(t, err, ErrPlanInProgress)

	close(vms.release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, host.count())
	assert.False(t, o.InProgress())
}

func TestExecute_CancelSkipsRemainingUnits(t *testing.T) {
	vms := newFakeVMs("101", "102")
	vms.guests["101"] = &fakeGuest{pollsUntilStopped: -1}
	vms.started = make(chan string, 2)
	host := &fakeHost{}

	cfg := testConfig()
	cfg.UnitTimeout = 5 * time.Second
	o := NewOrchestrator(cfg, vms, host, logging.NewNopLogger())

	type result struct {
		plan *Plan
		err  error
	}
	done := make(chan result, 1)
	go func() {
		p, err := o.Execute(context.Background())
		done <- result{p, err}
	}()

	assert.Equal(t, "101", <-vms.started)
	assert.True(t, o.Cancel("usb activity"))

	var res result
	select {
	case res = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("plan did not stop after cancel")
	}

	require.Error(t, res.err)
	assert.ErrorIs(t, res.err, ErrPlanCancelled)
	assert.Contains(t, res.err.Error(), "usb activity")
	assert.Equal(t, OutcomeCancelled, res.plan.Outcome)
	assert.Equal(t, []UnitStatus{StatusFailed, StatusSkipped, StatusSkipped}, statuses(res.plan))
	assert.Equal(t, []string{"101"}, vms.suspended())
	assert.Zero(t, host.count())
}

func TestCancel_NoPlan(t *testing.T) {
	o := NewOrchestrator(testConfig(), newFakeVMs(), &fakeHost{}, logging.NewNopLogger())
	assert.False(t, o.Cancel("nothing running"))
}

func TestExecute_ParentContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	host := &fakeHost{}
	o := NewOrchestrator(testConfig(), newFakeVMs(), host, logging.NewNopLogger())
	plan, err := o.Execute(ctx)

	assert.ErrorIs(t, err, ErrPlanCancelled)
	assert.Equal(t, OutcomeCancelled, plan.Outcome)
	assert.Zero(t, host.count())
}

func TestExecute_ClockStampsUnits(t *testing.T) {
	base := time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	tick := 0
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	o := NewOrchestrator(testConfig(), newFakeVMs("101"), &fakeHost{}, logging.NewNopLogger(), WithClock(clock))
	plan, err := o.Execute(context.Background())
	require.NoError(t, err)

	assert.True(t, plan.CreatedAt.After(base))
	for _, u := range plan.Units {
		assert.False(t, u.StartedAt.IsZero())
		assert.True(t, u.FinishedAt.After(u.StartedAt))
	}
	assert.False(t, plan.FinishedAt.Before(plan.Units[1].FinishedAt))
}

func TestExecute_HistoryFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), HistoryFileName)
	o := NewOrchestrator(testConfig(), newFakeVMs("101"), &fakeHost{}, logging.NewNopLogger(),
		WithHistory(NewHistory(path, logging.NewNopLogger())))

	_, err := o.Execute(context.Background())
	require.NoError(t, err)

	plans, err := ReadHistory(path, 0)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, OutcomeCompleted, plans[0].Outcome)
	assert.Len(t, plans[0].Units, 2)
}
