package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"hl-signal-relay/internal/account"
	"hl-signal-relay/internal/exec"
	"hl-signal-relay/internal/relay"
)

type fakeProcessor struct {
	alerts []relay.Alert
	result exec.Result
}

func (f *fakeProcessor) Process(_ context.Context, alert relay.Alert) exec.Result {
	f.alerts = append(f.alerts, alert)
	return f.result
}

type fakeStatus struct {
	snap *account.Snapshot
	err  error
}

func (f *fakeStatus) Snapshot(_ context.Context) (*account.Snapshot, error) {
	return f.snap, f.err
}

func newTestServer(proc *fakeProcessor, status *fakeStatus) *Server {
	if status == nil {
		status = &fakeStatus{snap: &account.Snapshot{Withdrawable: 1000}}
	}
	info := Info{Wallet: "0xabc", Testnet: true, Symbol: "ETH", Version: "1.2.3"}
	return New(":0", proc, status, nil, zap.NewNop(), info)
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(&fakeProcessor{}, nil)
	rec := doJSON(t, s.Handler(), http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "healthy" {
		t.Fatalf("body = %+v, want status healthy", body)
	}
}

func TestStatusReportsAccount(t *testing.T) {
	status := &fakeStatus{snap: &account.Snapshot{
		Withdrawable: 812.5,
		Positions:    []account.Position{{Symbol: "ETH", Size: 0.4, Side: account.SideLong}},
	}}
	s := newTestServer(&fakeProcessor{}, status)

	for _, path := range []string{"/", "/status"} {
		rec := doJSON(t, s.Handler(), http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d, want 200", path, rec.Code)
		}
		var body map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["wallet"] != "0xabc" {
			t.Errorf("wallet = %v", body["wallet"])
		}
		if body["testnet"] != true {
			t.Errorf("testnet = %v", body["testnet"])
		}
		if body["account_connected"] != true {
			t.Errorf("account_connected = %v, want true", body["account_connected"])
		}
		acct, ok := body["account"].(map[string]any)
		if !ok {
			t.Fatalf("no account block in %+v", body)
		}
		if acct["withdrawable"] != 812.5 || acct["positions"] != float64(1) {
			t.Errorf("account = %+v", acct)
		}
	}
}

func TestStatusWithoutWalletReportsSimulation(t *testing.T) {
	status := &fakeStatus{snap: &account.Snapshot{}}
	info := Info{Symbol: "ETH", Version: "dev"}
	s := New(":0", &fakeProcessor{}, status, nil, zap.NewNop(), info)

	rec := doJSON(t, s.Handler(), http.MethodGet, "/status", "")
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["wallet"] != "simulation" {
		t.Fatalf("wallet = %v, want simulation", body["wallet"])
	}
}

func TestStatusSurvivesSnapshotFailure(t *testing.T) {
	status := &fakeStatus{err: errors.New("info down")}
	s := newTestServer(&fakeProcessor{}, status)

	rec := doJSON(t, s.Handler(), http.MethodGet, "/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 even when the exchange is down", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["account_connected"] != false {
		t.Fatalf("account_connected = %v, want false when the exchange is down", body["account_connected"])
	}
}

func TestWebhookSuccess(t *testing.T) {
	proc := &fakeProcessor{result: exec.Result{Status: exec.StatusSuccess, Message: "buy 0.475 ETH at 2000.00"}}
	s := newTestServer(proc, nil)

	rec := doJSON(t, s.Handler(), http.MethodPost, "/webhook", `{"action":"buy","passphrase":"hunter2"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if len(proc.alerts) != 1 || proc.alerts[0].Action != "buy" {
		t.Fatalf("alerts = %+v", proc.alerts)
	}
}

func TestWebhookSimulated(t *testing.T) {
	proc := &fakeProcessor{result: exec.Result{Status: exec.StatusSimulated}}
	s := newTestServer(proc, nil)

	rec := doJSON(t, s.Handler(), http.MethodPost, "/webhook", `{"action":"sell","passphrase":"hunter2"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for simulated", rec.Code)
	}
}

func TestWebhookBusinessError(t *testing.T) {
	proc := &fakeProcessor{result: exec.Result{Status: exec.StatusError, Message: "invalid passphrase"}}
	s := newTestServer(proc, nil)

	rec := doJSON(t, s.Handler(), http.MethodPost, "/webhook", `{"action":"buy","passphrase":"wrong"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var result exec.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Status != exec.StatusError {
		t.Fatalf("result = %+v", result)
	}
}

type panickingProcessor struct{}

func (panickingProcessor) Process(_ context.Context, _ relay.Alert) exec.Result {
	panic("boom")
}

func TestWebhookPanicAnswersJSON(t *testing.T) {
	status := &fakeStatus{snap: &account.Snapshot{}}
	info := Info{Symbol: "ETH", Version: "dev"}
	s := New(":0", panickingProcessor{}, status, nil, zap.NewNop(), info)

	rec := doJSON(t, s.Handler(), http.MethodPost, "/webhook", `{"action":"buy","passphrase":"hunter2"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var result exec.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("expected a JSON body after a panic: %v (body %q)", err, rec.Body.String())
	}
	if result.Status != exec.StatusError {
		t.Fatalf("result = %+v, want error status", result)
	}
}

func TestWebhookMalformedBody(t *testing.T) {
	proc := &fakeProcessor{}
	s := newTestServer(proc, nil)

	rec := doJSON(t, s.Handler(), http.MethodPost, "/webhook", `{"action":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if len(proc.alerts) != 0 {
		t.Fatal("processor must not run on malformed bodies")
	}
}
