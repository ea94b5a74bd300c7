package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pulsewatch/airouter/pkg/adapter"
	"github.com/pulsewatch/airouter/pkg/core"
	"github.com/pulsewatch/airouter/pkg/health"
	"github.com/pulsewatch/airouter/pkg/router"
)

func testApp(t *testing.T) *app {
	t.Helper()

	rtr := router.New(router.Config{}, router.Deps{})
	rtr.Register(&adapter.Mock{
		Service: core.ServiceNLPFunctionA,
		Payload: adapter.FunctionPayload("test answer", 0.9),
	})

	reg := health.NewRegistry()
	reg.Register("nlp-function-a", health.Breaker(rtr.Breakers(), core.ServiceNLPFunctionA))

	return &app{
		router:  rtr,
		health:  reg,
		targets: []core.ServiceID{core.ServiceNLPFunctionA},
	}
}

func TestHandleQuery(t *testing.T) {
	a := testApp(t)

	body := strings.NewReader(`{"query": "what is the status"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/query", body)
	w := httptest.NewRecorder()
	a.handleQuery(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp core.UnifiedResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success {
		t.Errorf("expected success")
	}
	if resp.Answer != "test answer" {
		t.Errorf("unexpected answer: %q", resp.Answer)
	}
}

func TestHandleQueryRejectsEmptyQuery(t *testing.T) {
	a := testApp(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	a.handleQuery(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleQueryRejectsBadJSON(t *testing.T) {
	a := testApp(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader("{"))
	w := httptest.NewRecorder()
	a.handleQuery(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleQueryExplicitServices(t *testing.T) {
	a := testApp(t)

	body := strings.NewReader(`{"query": "q", "services": ["no-such-service"]}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/query", body)
	w := httptest.NewRecorder()
	a.handleQuery(w, req)

	var resp core.UnifiedResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Success {
		t.Errorf("expected failure for unregistered service")
	}
}

func TestHandleHealthz(t *testing.T) {
	a := testApp(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	a.handleHealthz(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Status     health.Status   `json:"status"`
		Components []health.Result `json:"components"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != health.StatusHealthy {
		t.Errorf("expected healthy, got %s", resp.Status)
	}
	if len(resp.Components) != 1 {
		t.Errorf("expected 1 component, got %d", len(resp.Components))
	}
}

func TestHandleHealthzUnhealthy(t *testing.T) {
	a := testApp(t)

	// Trip the circuit so the service reports unhealthy.
	for i := 0; i < 3; i++ {
		a.router.Breakers().RecordFailure(core.ServiceNLPFunctionA)
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	a.handleHealthz(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}

func TestHandleServices(t *testing.T) {
	a := testApp(t)

	// One routed request populates the breaker registry.
	req := httptest.NewRequest(http.MethodPost, "/v1/query",
		strings.NewReader(`{"query": "warm up"}`))
	a.handleQuery(httptest.NewRecorder(), req)

	w := httptest.NewRecorder()
	a.handleServices(w, httptest.NewRequest(http.MethodGet, "/v1/services", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var statuses []serviceStatus
	if err := json.Unmarshal(w.Body.Bytes(), &statuses); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(statuses) != 1 {
		t.Fatalf("expected 1 service, got %d", len(statuses))
	}
	if statuses[0].ServiceID != core.ServiceNLPFunctionA {
		t.Errorf("unexpected service: %s", statuses[0].ServiceID)
	}
	if statuses[0].SuccessCount != 1 {
		t.Errorf("expected 1 recorded success, got %d", statuses[0].SuccessCount)
	}
}
