package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	pkgerrors "github.com/tinkerly/tinkerly-backend/pkg/errors"
	"github.com/tinkerly/tinkerly-backend/pkg/logger"
	"github.com/tinkerly/tinkerly-backend/pkg/metrics"
)

type fakeLock struct {
	acquired bool
	held     bool
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.held || f.acquired {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error { f.acquired = false; return nil }

type testJob struct {
	name     string
	err      error
	affected int64
	runs     int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) (int64, error) {
	t.runs++
	return t.affected, t.err
}

func newTestCronService(t *testing.T, lock Lock, jobs ...Job) *Service {
	t.Helper()
	service, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: NewRegistry(jobs...),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.NewRegistry()),
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return service
}

func TestServiceRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	success := &testJob{name: "success", affected: 3}
	failure := &testJob{name: "fail", err: errors.New("boom")}
	service := newTestCronService(t, &fakeLock{}, success, failure)

	err := service.runCycle(context.Background())
	if err == nil || !errors.Is(err, failure.err) {
		t.Fatalf("expected aggregated failure, got %v", err)
	}
	if success.runs != 1 || failure.runs != 1 {
		t.Fatalf("expected both jobs to run once, got %d/%d", success.runs, failure.runs)
	}
}

func TestServiceRunCycleSkipsWhenLocked(t *testing.T) {
	job := &testJob{name: "reset"}
	service := newTestCronService(t, &fakeLock{held: true}, job)

	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("expected locked cycle to be skipped quietly, got %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("job must not run while another instance holds the lock")
	}
}

func TestServiceTrigger(t *testing.T) {
	job := &testJob{name: ResetAnalysesJobName, affected: 12}
	lock := &fakeLock{}
	service := newTestCronService(t, lock, job)

	affected, err := service.Trigger(context.Background(), ResetAnalysesJobName)
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if affected != 12 || job.runs != 1 {
		t.Fatalf("unexpected trigger result %d runs=%d", affected, job.runs)
	}
	if lock.acquired {
		t.Fatalf("expected lock released after trigger")
	}

	if _, err := service.Trigger(context.Background(), "unknown"); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	lock.held = true
	if _, err := service.Trigger(context.Background(), ResetAnalysesJobName); !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error while locked, got %v", err)
	}
}

func TestServiceTriggerWithoutLock(t *testing.T) {
	job := &testJob{name: ResetAnalysesJobName, affected: 1}
	service := newTestCronService(t, nil, job)
	if _, err := service.Trigger(context.Background(), ResetAnalysesJobName); err != nil {
		t.Fatalf("trigger: %v", err)
	}
}

func TestServiceRunStopsOnCancel(t *testing.T) {
	job := &testJob{name: "reset"}
	service, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: NewRegistry(job),
		Lock:     &fakeLock{},
		Interval: time.Hour,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := service.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
	if job.runs != 1 {
		t.Fatalf("expected the initial cycle to run once, got %d", job.runs)
	}
}

type stubResetter struct{ affected int64 }

func (s stubResetter) ResetAnalyses(context.Context) (int64, error) { return s.affected, nil }

func TestResetAnalysesJob(t *testing.T) {
	if _, err := NewResetAnalysesJob(nil); err == nil {
		t.Fatalf("expected error without entitlements")
	}
	job, err := NewResetAnalysesJob(stubResetter{affected: 4})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	affected, err := job.Run(context.Background())
	if err != nil || affected != 4 || job.Name() != "reset-analyses" {
		t.Fatalf("unexpected job run %d (%v)", affected, err)
	}
}

type memoryRedis struct {
	values map[string]string
}

func (m *memoryRedis) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryRedis) Get(ctx context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (m *memoryRedis) Del(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func TestRedisLockAcquireRelease(t *testing.T) {
	store := &memoryRedis{values: map[string]string{}}
	first, err := NewRedisLock(store, "tk:lock:cron", time.Minute)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	second, _ := NewRedisLock(store, "tk:lock:cron", time.Minute)
	ctx := context.Background()

	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("expected first acquire, got %v (%v)", ok, err)
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatalf("second instance must not acquire a held lock")
	}
	if err := second.Release(ctx); err != nil {
		t.Fatalf("non-owner release: %v", err)
	}
	if _, ok := store.values["tk:lock:cron"]; !ok {
		t.Fatalf("non-owner release must keep the lock")
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("owner release: %v", err)
	}
	if _, ok := store.values["tk:lock:cron"]; ok {
		t.Fatalf("owner release must delete the lock")
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("double release: %v", err)
	}
}

func TestRedisLockHolderCannotReacquireAndSparesStolenKey(t *testing.T) {
	store := &memoryRedis{values: map[string]string{}}
	lock, err := NewRedisLock(store, "tk:lock:cron", time.Minute)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	ctx := context.Background()

	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatalf("expected acquire")
	}
	if ok, _ := lock.Acquire(ctx); ok {
		t.Fatalf("a held lock must not be reacquired by the same holder")
	}

	store.values["tk:lock:cron"] = "other-instance"
	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if store.values["tk:lock:cron"] != "other-instance" {
		t.Fatalf("release must not delete a key owned by someone else")
	}
	if ok, _ := lock.Acquire(ctx); ok {
		t.Fatalf("key held elsewhere must block acquire")
	}
}
