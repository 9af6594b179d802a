package debounce

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"
)

// fakeKV is an in-memory KV. TTLs are recorded but never enforced; tests
// simulate expiry by deleting keys.
type fakeKV struct {
	mu     sync.Mutex
	values map[string]string
	ttls   map[string]time.Duration
}

func newFakeKV() *fakeKV {
	return &fakeKV{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeKV) SetEX(ctx context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	f.ttls[key] = ttl
	return nil
}

func (f *fakeKV) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeKV) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *fakeKV) Incr(ctx context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, _ := strconv.ParseInt(f.values[key], 10, 64)
	n++
	f.values[key] = strconv.FormatInt(n, 10)
	return n, nil
}

func (f *fakeKV) Expire(ctx context.Context, key string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ttls[key] = ttl
	return nil
}

func (f *fakeKV) Del(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.values, k)
		delete(f.ttls, k)
	}
	return nil
}

func (f *fakeKV) expire(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, key)
	delete(f.ttls, key)
}

func (f *fakeKV) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.values[key]
	return ok
}

type enqueued struct {
	groupID string
	jobID   string
	retry   int
	delay   time.Duration
}

type fakeScheduler struct {
	mu   sync.Mutex
	jobs []enqueued
	fail bool
}

func (f *fakeScheduler) EnqueueClusterJob(ctx context.Context, groupID, jobID string, retry int, delay time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("queue down")
	}
	f.jobs = append(f.jobs, enqueued{groupID, jobID, retry, delay})
	return nil
}

func (f *fakeScheduler) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.jobs)
}

func newTestCoordinator(kv KV, s Scheduler) *Coordinator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(kv, s, 5*time.Second, 3*time.Second, 2, logger)
}

func TestNotify_SingleFlight(t *testing.T) {
	kv := newFakeKV()
	sched := &fakeScheduler{}
	coord := newTestCoordinator(kv, sched)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		if err := coord.Notify(ctx, "g1"); err != nil {
			t.Fatalf("notify %d failed: %v", i, err)
		}
	}

	if sched.count() != 1 {
		t.Errorf("expected exactly 1 enqueued job, got %d", sched.count())
	}
	if !kv.has("cluster:pending:g1") {
		t.Error("expected pending key to exist")
	}
	if !kv.has("cluster:job:g1") {
		t.Error("expected job key to exist")
	}
}

func TestNotify_ConcurrentSingleFlight(t *testing.T) {
	kv := newFakeKV()
	sched := &fakeScheduler{}
	coord := newTestCoordinator(kv, sched)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := coord.Notify(context.Background(), "g1"); err != nil {
				t.Errorf("notify failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if sched.count() != 1 {
		t.Errorf("expected exactly 1 enqueued job under concurrency, got %d", sched.count())
	}
}

func TestNotify_SeparateGroups(t *testing.T) {
	kv := newFakeKV()
	sched := &fakeScheduler{}
	coord := newTestCoordinator(kv, sched)
	ctx := context.Background()

	if err := coord.Notify(ctx, "g1"); err != nil {
		t.Fatalf("notify failed: %v", err)
	}
	if err := coord.Notify(ctx, "g2"); err != nil {
		t.Fatalf("notify failed: %v", err)
	}

	if sched.count() != 2 {
		t.Errorf("expected one job per group, got %d", sched.count())
	}
}

func TestNotify_NewBurstAfterFinish(t *testing.T) {
	kv := newFakeKV()
	sched := &fakeScheduler{}
	coord := newTestCoordinator(kv, sched)
	ctx := context.Background()

	if err := coord.Notify(ctx, "g1"); err != nil {
		t.Fatalf("notify failed: %v", err)
	}
	if err := coord.Finish(ctx, "g1"); err != nil {
		t.Fatalf("finish failed: %v", err)
	}
	if err := coord.Notify(ctx, "g1"); err != nil {
		t.Fatalf("notify failed: %v", err)
	}

	if sched.count() != 2 {
		t.Errorf("expected a fresh job after finish, got %d jobs", sched.count())
	}
}

func TestNotify_NewBurstAfterJobKeyExpiry(t *testing.T) {
	kv := newFakeKV()
	sched := &fakeScheduler{}
	coord := newTestCoordinator(kv, sched)
	ctx := context.Background()

	if err := coord.Notify(ctx, "g1"); err != nil {
		t.Fatalf("notify failed: %v", err)
	}
	// Worker died; the TTL clears the key.
	kv.expire("cluster:job:g1")

	if err := coord.Notify(ctx, "g1"); err != nil {
		t.Fatalf("notify failed: %v", err)
	}
	if sched.count() != 2 {
		t.Errorf("expected a fresh job after TTL expiry, got %d jobs", sched.count())
	}
}

func TestNotify_EnqueueFailureReleasesClaim(t *testing.T) {
	kv := newFakeKV()
	sched := &fakeScheduler{fail: true}
	coord := newTestCoordinator(kv, sched)
	ctx := context.Background()

	if err := coord.Notify(ctx, "g1"); err == nil {
		t.Fatal("expected error when enqueue fails")
	}
	if kv.has("cluster:job:g1") {
		t.Error("expected job key released after enqueue failure")
	}

	// Recovery: the next notify schedules again.
	sched.fail = false
	if err := coord.Notify(ctx, "g1"); err != nil {
		t.Fatalf("notify failed: %v", err)
	}
	if sched.count() != 1 {
		t.Errorf("expected 1 job after recovery, got %d", sched.count())
	}
}

func TestOnJobStart_ReschedulesWhileBurstActive(t *testing.T) {
	kv := newFakeKV()
	sched := &fakeScheduler{}
	coord := newTestCoordinator(kv, sched)
	ctx := context.Background()

	if err := coord.Notify(ctx, "g1"); err != nil {
		t.Fatalf("notify failed: %v", err)
	}

	action, err := coord.OnJobStart(ctx, "g1", 0)
	if err != nil {
		t.Fatalf("OnJobStart failed: %v", err)
	}
	if action != Reschedule {
		t.Errorf("expected Reschedule while pending, got %v", action)
	}
}

func TestOnJobStart_ForcesRunAfterMaxRetries(t *testing.T) {
	kv := newFakeKV()
	sched := &fakeScheduler{}
	coord := newTestCoordinator(kv, sched)
	ctx := context.Background()

	if err := coord.Notify(ctx, "g1"); err != nil {
		t.Fatalf("notify failed: %v", err)
	}

	// maxRetries is 2: retries 0 and 1 push back, retry 2 is forced.
	for retry, want := range map[int]Action{0: Reschedule, 1: Reschedule, 2: Proceed, 3: Proceed} {
		action, err := coord.OnJobStart(ctx, "g1", retry)
		if err != nil {
			t.Fatalf("OnJobStart(%d) failed: %v", retry, err)
		}
		if action != want {
			t.Errorf("OnJobStart(%d) = %v, want %v", retry, action, want)
		}
	}
}

func TestOnJobStart_ProceedsWhenQuiet(t *testing.T) {
	kv := newFakeKV()
	sched := &fakeScheduler{}
	coord := newTestCoordinator(kv, sched)
	ctx := context.Background()

	if err := coord.Notify(ctx, "g1"); err != nil {
		t.Fatalf("notify failed: %v", err)
	}
	kv.expire("cluster:pending:g1")

	action, err := coord.OnJobStart(ctx, "g1", 0)
	if err != nil {
		t.Fatalf("OnJobStart failed: %v", err)
	}
	if action != Proceed {
		t.Errorf("expected Proceed once quiet, got %v", action)
	}
}

func TestPushBack_BumpsRetryAndKeepsJobID(t *testing.T) {
	kv := newFakeKV()
	sched := &fakeScheduler{}
	coord := newTestCoordinator(kv, sched)
	ctx := context.Background()

	if err := coord.Notify(ctx, "g1"); err != nil {
		t.Fatalf("notify failed: %v", err)
	}
	jobID := sched.jobs[0].jobID

	if err := coord.PushBack(ctx, "g1", jobID, 0); err != nil {
		t.Fatalf("push back failed: %v", err)
	}

	if sched.count() != 2 {
		t.Fatalf("expected 2 enqueues, got %d", sched.count())
	}
	re := sched.jobs[1]
	if re.jobID != jobID {
		t.Errorf("expected same job id %q, got %q", jobID, re.jobID)
	}
	if re.retry != 1 {
		t.Errorf("expected retry 1, got %d", re.retry)
	}
}

func TestFinish_DeletesCoordinationKeys(t *testing.T) {
	kv := newFakeKV()
	sched := &fakeScheduler{}
	coord := newTestCoordinator(kv, sched)
	ctx := context.Background()

	if err := coord.Notify(ctx, "g1"); err != nil {
		t.Fatalf("notify failed: %v", err)
	}
	if err := coord.Finish(ctx, "g1"); err != nil {
		t.Fatalf("finish failed: %v", err)
	}

	if kv.has("cluster:job:g1") {
		t.Error("expected job key deleted")
	}
	if kv.has("cluster:count:g1") {
		t.Error("expected count key deleted")
	}
}
