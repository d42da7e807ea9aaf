package controllers

import (
	"context"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/tinkerly/tinkerly-backend/api/middleware"
	checkoutsvc "github.com/tinkerly/tinkerly-backend/internal/checkout"
	pkgerrors "github.com/tinkerly/tinkerly-backend/pkg/errors"
)

type stubCheckoutService struct {
	intent        checkoutsvc.Intent
	projectIntent checkoutsvc.ProjectIntent
	result        checkoutsvc.SubscriptionResult
	session       checkoutsvc.Session
	err           error
	calls         int
}

func (s *stubCheckoutService) CreateSubscriptionSession(ctx context.Context, intent checkoutsvc.Intent) (checkoutsvc.SubscriptionResult, error) {
	s.calls++
	s.intent = intent
	return s.result, s.err
}

func (s *stubCheckoutService) CreateCreditSession(ctx context.Context, intent checkoutsvc.Intent) (checkoutsvc.Session, error) {
	s.calls++
	s.intent = intent
	return s.session, s.err
}

func (s *stubCheckoutService) CreateProjectPaymentSession(ctx context.Context, intent checkoutsvc.ProjectIntent) (checkoutsvc.Session, error) {
	s.calls++
	s.projectIntent = intent
	return s.session, s.err
}

func TestCreateSubscriptionSuccess(t *testing.T) {
	svc := &stubCheckoutService{result: checkoutsvc.SubscriptionResult{
		Session: checkoutsvc.Session{RedirectURL: "https://checkout.stripe.com/c/pay/cs_1", SessionID: "cs_1"},
		Debug:   checkoutsvc.SubscriptionDebug{Tier: "starter", Amount: 999, Credits: 15},
	}}
	req := newRequest(http.MethodPost, "/api/create-subscription", `{"tierId":"starter","billingPeriod":"monthly","userId":"u1"}`, "")
	req.Header.Set(middleware.IdempotencyHeader, "nonce-1")

	rec := serve(CreateSubscription(svc, nil), req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}
	var body subscriptionSessionResponse
	decodeData(t, rec, &body)
	if body.SessionID != "cs_1" || body.Debug.Amount != 999 || body.Debug.Credits != 15 {
		t.Fatalf("unexpected body %+v", body)
	}
	if svc.intent.UserID != "u1" || svc.intent.CatalogEntryID != "starter" || svc.intent.BillingPeriod != "monthly" {
		t.Fatalf("unexpected intent %+v", svc.intent)
	}
	if svc.intent.Nonce != "nonce-1" {
		t.Fatalf("expected nonce from header, got %q", svc.intent.Nonce)
	}
}

func TestCreateSubscriptionFreeTier(t *testing.T) {
	svc := &stubCheckoutService{result: checkoutsvc.SubscriptionResult{
		Session: checkoutsvc.Session{RedirectURL: "https://app.tinkerly.dev/dashboard?plan=free"},
		Debug:   checkoutsvc.SubscriptionDebug{Tier: "free"},
	}}
	req := newRequest(http.MethodPost, "/api/create-subscription", `{"tierId":"free","billingPeriod":"monthly","userId":"u1"}`, "")

	rec := serve(CreateSubscription(svc, nil), req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var body map[string]any
	decodeData(t, rec, &body)
	if body["sessionId"] != "" {
		t.Fatalf("expected empty session id, got %v", body["sessionId"])
	}
	if body["url"] != "https://app.tinkerly.dev/dashboard?plan=free" {
		t.Fatalf("unexpected url %v", body["url"])
	}
}

func TestCreateSubscriptionRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"missing tier":   `{"billingPeriod":"monthly","userId":"u1"}`,
		"missing period": `{"tierId":"starter","userId":"u1"}`,
		"missing user":   `{"tierId":"starter","billingPeriod":"monthly"}`,
		"unknown field":  `{"tierId":"starter","billingPeriod":"monthly","userId":"u1","price":1}`,
		"malformed":      `{"tierId":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			svc := &stubCheckoutService{}
			rec := serve(CreateSubscription(svc, nil), newRequest(http.MethodPost, "/api/create-subscription", body, ""))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 got %d", rec.Code)
			}
			if svc.calls != 0 {
				t.Fatalf("service should not be called")
			}
		})
	}
}

func TestCreateSubscriptionMapsServiceErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid plan", pkgerrors.New(pkgerrors.CodeValidation, "invalid plan"), http.StatusBadRequest},
		{"unconfigured", pkgerrors.New(pkgerrors.CodeConfig, "payment processor not configured"), http.StatusInternalServerError},
		{"gateway", pkgerrors.New(pkgerrors.CodeGateway, "card declined"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubCheckoutService{err: tt.err}
			req := newRequest(http.MethodPost, "/api/create-subscription", `{"tierId":"x","billingPeriod":"monthly","userId":"u1"}`, "")
			rec := serve(CreateSubscription(svc, nil), req)
			if rec.Code != tt.want {
				t.Fatalf("expected %d got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestPurchaseCreditsUserResolution(t *testing.T) {
	svc := &stubCheckoutService{session: checkoutsvc.Session{RedirectURL: "https://stripe/cs_2", SessionID: "cs_2"}}

	rec := serve(PurchaseCredits(svc, nil), newRequest(http.MethodPost, "/api/purchase-credits", `{"packageType":"small"}`, "token-user"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.intent.UserID != "token-user" {
		t.Fatalf("expected token user, got %q", svc.intent.UserID)
	}

	rec = serve(PurchaseCredits(svc, nil), newRequest(http.MethodPost, "/api/purchase-credits", `{"packageType":"small","userId":"someone-else"}`, "token-user"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rec.Code)
	}
}

func TestCreateCreditSessionRequiresAuth(t *testing.T) {
	svc := &stubCheckoutService{session: checkoutsvc.Session{SessionID: "cs_3", RedirectURL: "https://stripe/cs_3"}}

	rec := serve(CreateCreditSession(svc, nil), newRequest(http.MethodPost, "/api/create-credit-session", `{"packageId":"medium"}`, ""))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}

	rec = serve(CreateCreditSession(svc, nil), newRequest(http.MethodPost, "/api/create-credit-session", `{"packageId":"medium"}`, "u9"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var body map[string]any
	decodeData(t, rec, &body)
	if body["sessionId"] != "cs_3" {
		t.Fatalf("unexpected body %v", body)
	}
	if _, ok := body["url"]; ok {
		t.Fatalf("credit session response carries the session id only")
	}
	if svc.intent.UserID != "u9" || svc.intent.CatalogEntryID != "medium" {
		t.Fatalf("unexpected intent %+v", svc.intent)
	}
}

func TestCreateProjectPayment(t *testing.T) {
	svc := &stubCheckoutService{session: checkoutsvc.Session{RedirectURL: "https://stripe/cs_4", SessionID: "cs_4"}}
	body := `{"projectId":"8a4c1b52-7f1e-4b8e-9a51-0b7d1f6c2e11","amount":1250.50,"userId":"u1","projectTitle":"  Robot arm  ","timeline":"6 weeks","complexity":"medium"}`

	rec := serve(CreateProjectPayment(svc, nil), newRequest(http.MethodPost, "/api/create-project-payment", body, ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}
	if !svc.projectIntent.Amount.Equal(decimal.RequireFromString("1250.50")) {
		t.Fatalf("unexpected amount %s", svc.projectIntent.Amount)
	}
	if svc.projectIntent.Title != "Robot arm" {
		t.Fatalf("expected sanitized title, got %q", svc.projectIntent.Title)
	}
}

func TestCreateProjectPaymentRejectsNonPositiveAmount(t *testing.T) {
	for _, amount := range []string{"0", "-5"} {
		svc := &stubCheckoutService{}
		body := `{"projectId":"8a4c1b52-7f1e-4b8e-9a51-0b7d1f6c2e11","amount":` + amount + `,"userId":"u1","projectTitle":"Robot arm"}`
		rec := serve(CreateProjectPayment(svc, nil), newRequest(http.MethodPost, "/api/create-project-payment", body, ""))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("amount %s: expected 400 got %d", amount, rec.Code)
		}
		if svc.calls != 0 {
			t.Fatalf("service should not be called")
		}
	}
}

func TestCheckoutHandlersNilService(t *testing.T) {
	rec := serve(PurchaseCredits(nil, nil), newRequest(http.MethodPost, "/", `{}`, ""))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
	if errorCode(t, rec) != string(pkgerrors.CodeInternal) {
		t.Fatalf("unexpected code")
	}
}
