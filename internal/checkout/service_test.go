package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"

	"github.com/tinkerly/tinkerly-backend/internal/pricing"
	"github.com/tinkerly/tinkerly-backend/pkg/db/models"
	"github.com/tinkerly/tinkerly-backend/pkg/enums"
	pkgerrors "github.com/tinkerly/tinkerly-backend/pkg/errors"
	"github.com/tinkerly/tinkerly-backend/pkg/metrics"
)

type stubGateway struct {
	requests []SessionRequest
	err      error
	counter  int
}

func (g *stubGateway) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	g.requests = append(g.requests, req)
	if g.err != nil {
		return Session{}, g.err
	}
	g.counter++
	id := "cs_test_" + string(rune('0'+g.counter))
	return Session{RedirectURL: "https://checkout.stripe.test/" + id, SessionID: id}, nil
}

func (g *stubGateway) FetchSubscription(ctx context.Context, id string) (SubscriptionSnapshot, error) {
	return SubscriptionSnapshot{}, errors.New("not used")
}

type stubProjectStore struct {
	project  *models.Project
	findErr  error
	statuses []enums.ProjectStatus
}

func (s *stubProjectStore) FindForUser(ctx context.Context, userID string, projectID uuid.UUID) (*models.Project, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.project == nil || s.project.UserID != userID || s.project.ID != projectID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "project not found")
	}
	return s.project, nil
}

func (s *stubProjectStore) UpdateStatus(ctx context.Context, projectID uuid.UUID, status enums.ProjectStatus) error {
	s.statuses = append(s.statuses, status)
	return nil
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, label string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if hasLabelValue(metric, label) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func hasLabelValue(metric *dto.Metric, value string) bool {
	for _, pair := range metric.GetLabel() {
		if pair.GetValue() == value {
			return true
		}
	}
	return false
}

func newTestService(t *testing.T, gw Gateway, projects ProjectStore, m *metrics.BillingMetrics) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Builder:  newTestBuilder(t),
		Gateway:  gw,
		Projects: projects,
		Metrics:  m,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestNewServiceRequiresBuilder(t *testing.T) {
	if _, err := NewService(ServiceParams{}); err == nil {
		t.Fatalf("expected error without builder")
	}
}

func TestCreateSubscriptionSessionStarterMonthly(t *testing.T) {
	gw := &stubGateway{}
	reg := prometheus.NewRegistry()
	m := metrics.NewBillingMetrics(reg)
	svc := newTestService(t, gw, nil, m)

	res, err := svc.CreateSubscriptionSession(context.Background(), Intent{UserID: "u1", CatalogEntryID: "starter", BillingPeriod: "monthly"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Debug.Amount != 999 || res.Debug.Credits != 15 || res.Debug.Tier != "starter" {
		t.Fatalf("unexpected debug %+v", res.Debug)
	}
	if res.RedirectURL == "" || res.SessionID == "" {
		t.Fatalf("expected url and session id, got %+v", res.Session)
	}
	if len(gw.requests) != 1 {
		t.Fatalf("expected one gateway call, got %d", len(gw.requests))
	}
	if got := counterValue(t, reg, "tinkerly_checkout_sessions_created_total", "subscription"); got != 1 {
		t.Fatalf("expected session counter 1, got %v", got)
	}
}

func TestCreateSubscriptionSessionWithoutNonceCreatesDistinctSessions(t *testing.T) {
	gw := &stubGateway{}
	svc := newTestService(t, gw, nil, nil)
	intent := Intent{UserID: "u1", CatalogEntryID: "starter", BillingPeriod: "monthly"}

	first, err := svc.CreateSubscriptionSession(context.Background(), intent)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := svc.CreateSubscriptionSession(context.Background(), intent)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first.SessionID == second.SessionID {
		t.Fatalf("expected distinct sessions, got %q twice", first.SessionID)
	}
	if gw.requests[0].IdempotencyKey != "" || gw.requests[1].IdempotencyKey != "" {
		t.Fatalf("expected no idempotency keys without a nonce")
	}
}

func TestCreateSubscriptionSessionFreeTierSkipsGateway(t *testing.T) {
	gw := &stubGateway{}
	svc := newTestService(t, gw, nil, nil)

	res, err := svc.CreateSubscriptionSession(context.Background(), Intent{UserID: "u1", CatalogEntryID: "free", BillingPeriod: "monthly"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(gw.requests) != 0 {
		t.Fatalf("free tier must not reach the gateway")
	}
	if res.RedirectURL != "https://app.tinkerly.test/dashboard?plan=free" || res.SessionID != "" {
		t.Fatalf("unexpected free tier result %+v", res)
	}
	if res.Debug.Amount != 0 || res.Debug.Credits != 3 {
		t.Fatalf("unexpected debug %+v", res.Debug)
	}
}

func TestCreateSubscriptionSessionFreeTierWithoutGateway(t *testing.T) {
	svc := newTestService(t, nil, nil, nil)
	if _, err := svc.CreateSubscriptionSession(context.Background(), Intent{UserID: "u1", CatalogEntryID: "free", BillingPeriod: "annual"}); err != nil {
		t.Fatalf("free tier should succeed without a gateway, got %v", err)
	}
}

func TestCreateSubscriptionSessionInvalidPlanNeverReachesGateway(t *testing.T) {
	gw := &stubGateway{}
	svc := newTestService(t, gw, nil, nil)

	_, err := svc.CreateSubscriptionSession(context.Background(), Intent{UserID: "u1", CatalogEntryID: "gold", BillingPeriod: "monthly"})
	if !errors.Is(err, pricing.ErrInvalidPlan) {
		t.Fatalf("expected invalid plan, got %v", err)
	}
	if len(gw.requests) != 0 {
		t.Fatalf("invalid plan must not reach the gateway")
	}
}

func TestCreateSessionWithoutGatewayIsConfigError(t *testing.T) {
	var gw *StripeGateway
	svc := newTestService(t, gw, nil, nil)

	_, err := svc.CreateCreditSession(context.Background(), Intent{UserID: "u1", CatalogEntryID: "credits_10"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestCreateCreditSessionGatewayFailure(t *testing.T) {
	gw := &stubGateway{err: pkgerrors.New(pkgerrors.CodeGateway, "declined")}
	reg := prometheus.NewRegistry()
	m := metrics.NewBillingMetrics(reg)
	svc := newTestService(t, gw, nil, m)

	_, err := svc.CreateCreditSession(context.Background(), Intent{UserID: "u1", CatalogEntryID: "credits_150"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeGateway) {
		t.Fatalf("expected gateway error, got %v", err)
	}
	if len(gw.requests) != 1 {
		t.Fatalf("expected a single attempt, got %d", len(gw.requests))
	}
	if got := counterValue(t, reg, "tinkerly_checkout_gateway_failures_total", "GATEWAY_ERROR"); got != 1 {
		t.Fatalf("expected gateway failure counter 1, got %v", got)
	}
}

func TestCreateProjectPaymentSession(t *testing.T) {
	project := &models.Project{
		ID:        uuid.New(),
		UserID:    "u1",
		Title:     "Inventory app",
		Status:    enums.ProjectStatusAnalyzed,
		TotalCost: decimal.NewNullDecimal(decimal.RequireFromString("1500.00")),
	}
	store := &stubProjectStore{project: project}
	gw := &stubGateway{}
	svc := newTestService(t, gw, store, nil)

	intent := ProjectIntent{UserID: "u1", ProjectID: project.ID.String(), Amount: decimal.RequireFromString("1500"), Title: "Inventory app"}
	sess, err := svc.CreateProjectPaymentSession(context.Background(), intent)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.SessionID == "" {
		t.Fatalf("expected session id")
	}
	if gw.requests[0].AmountMinorUnits != 150000 {
		t.Fatalf("expected 150000, got %d", gw.requests[0].AmountMinorUnits)
	}
	if len(store.statuses) != 1 || store.statuses[0] != enums.ProjectStatusPaymentPending {
		t.Fatalf("expected project marked payment_pending, got %v", store.statuses)
	}
}

func TestCreateProjectPaymentSessionRejectsMismatches(t *testing.T) {
	project := &models.Project{
		ID:        uuid.New(),
		UserID:    "owner",
		Status:    enums.ProjectStatusAnalyzed,
		TotalCost: decimal.NewNullDecimal(decimal.NewFromInt(800)),
	}
	store := &stubProjectStore{project: project}
	gw := &stubGateway{}
	svc := newTestService(t, gw, store, nil)

	_, err := svc.CreateProjectPaymentSession(context.Background(), ProjectIntent{
		UserID: "intruder", ProjectID: project.ID.String(), Amount: decimal.NewFromInt(800), Title: "x",
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for another user's project, got %v", err)
	}

	_, err = svc.CreateProjectPaymentSession(context.Background(), ProjectIntent{
		UserID: "owner", ProjectID: project.ID.String(), Amount: decimal.NewFromInt(1), Title: "x",
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for amount mismatch, got %v", err)
	}

	project.Status = enums.ProjectStatusCompleted
	_, err = svc.CreateProjectPaymentSession(context.Background(), ProjectIntent{
		UserID: "owner", ProjectID: project.ID.String(), Amount: decimal.NewFromInt(800), Title: "x",
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for completed project, got %v", err)
	}
	if len(gw.requests) != 0 {
		t.Fatalf("rejected project payments must not reach the gateway")
	}
}
