package cron

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tinkerly/tinkerly-backend/internal/entitlements"
	"github.com/tinkerly/tinkerly-backend/internal/pricing"
	"github.com/tinkerly/tinkerly-backend/pkg/db"
	"github.com/tinkerly/tinkerly-backend/pkg/db/models"
)

// signalJob reports each completed run so a test can stop Run after its
// start-up cycle.
type signalJob struct {
	Job
	done chan int64
}

func (s signalJob) Run(ctx context.Context) (int64, error) {
	affected, err := s.Job.Run(ctx)
	s.done <- affected
	return affected, err
}

func newEntitlementService(t *testing.T, now time.Time) entitlements.Service {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.Entitlement{}); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	svc, err := entitlements.NewService(entitlements.ServiceParams{
		Repo:    entitlements.NewRepository(conn),
		Catalog: pricing.Default("usd"),
		Tx:      db.NewFromConn(conn),
		Clock:   func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("entitlement service: %v", err)
	}
	return svc
}

func TestWorkerRestartsDoNotResetWithinMonth(t *testing.T) {
	svc := newEntitlementService(t, time.Date(2026, time.October, 14, 9, 0, 0, 0, time.UTC))
	if _, err := svc.ConsumeAnalysis(context.Background(), "u1"); err != nil {
		t.Fatalf("consume: %v", err)
	}

	for restart := 0; restart < 3; restart++ {
		job, err := NewResetAnalysesJob(svc)
		if err != nil {
			t.Fatalf("new job: %v", err)
		}
		wrapped := signalJob{Job: job, done: make(chan int64, 1)}
		service := newTestCronService(t, &fakeLock{}, wrapped)

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() { errCh <- service.Run(ctx) }()

		select {
		case affected := <-wrapped.done:
			if affected != 0 {
				t.Fatalf("restart %d reset %d rows within the same month", restart, affected)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("restart %d: start-up cycle did not run", restart)
		}
		cancel()
		<-errCh
	}

	row, err := svc.Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if row.AnalysesUsed != 1 {
		t.Fatalf("expected usage to survive restarts, got %d", row.AnalysesUsed)
	}
}
