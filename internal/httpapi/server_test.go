package httpapi_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/BrandonDHaskell/medledger/internal/httpapi"
	"github.com/BrandonDHaskell/medledger/internal/medledger/codec"
	"github.com/BrandonDHaskell/medledger/internal/medledger/service"
	"github.com/BrandonDHaskell/medledger/internal/medledger/store/memory"
	"github.com/BrandonDHaskell/medledger/internal/medledger/token"
	"github.com/BrandonDHaskell/medledger/internal/medledger/types"
	"github.com/BrandonDHaskell/medledger/internal/metrics"
)

var fixedNow = time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

// newTestServer wires up the full dependency graph using in-memory stores
// and returns an httptest.Server whose URL can be hit with a plain http.Client.
func newTestServer(t *testing.T, mutate func(*httpapi.Dependencies)) *httptest.Server {
	t.Helper()

	svc := service.NewRecordService(memory.New(), token.NewLedger(1000), memory.NewAuditEventStore(), service.Options{
		Clock:  func() time.Time { return fixedNow },
		Logger: log.New(io.Discard, "", 0),
	})

	d := httpapi.Dependencies{
		Logger:        log.New(io.Discard, "", 0),
		Addr:          ":0",
		RecordService: svc,
		Metrics:       metrics.New(prometheus.NewRegistry()),
	}
	if mutate != nil {
		mutate(&d)
	}

	ts := httptest.NewServer(httpapi.NewServer(d).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url, caller, body string, hdr ...string) *http.Response {
	t.Helper()

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if caller != "" {
		req.Header.Set(httpapi.DefaultCallerHeader, caller)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected %d, got %d: %s", want, resp.StatusCode, b)
	}
}

func expectErrorCode(t *testing.T, resp *http.Response, status int, code string) {
	t.Helper()
	expectStatus(t, resp, status)

	var er types.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if er.Error != code {
		t.Errorf("expected error=%s, got %q", code, er.Error)
	}
}

// ── Scenario ─────────────────────────────────────────────────────────────────

func TestScenario_MintGrantRead(t *testing.T) {
	ts := newTestServer(t, nil)

	// Mint record 0.
	resp := do(t, http.MethodPost, ts.URL+"/v1/records", "alice", `{"content_pointer":"ipfs://cid1"}`)
	expectStatus(t, resp, http.StatusCreated)
	var mr types.MintResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		t.Fatalf("decode mint: %v", err)
	}
	if mr.TokenID != 1000 {
		t.Errorf("expected token_id=1000, got %d", mr.TokenID)
	}

	// Bad scheme consumes no id.
	resp = do(t, http.MethodPost, ts.URL+"/v1/records", "alice", `{"content_pointer":"ftp://bad"}`)
	expectErrorCode(t, resp, http.StatusBadRequest, "invalid_pointer_format")

	resp = do(t, http.MethodPost, ts.URL+"/v1/records", "alice", `{"content_pointer":"ipfs://cid2"}`)
	expectStatus(t, resp, http.StatusCreated)

	// Bob cannot read record 0 yet.
	resp = do(t, http.MethodGet, ts.URL+"/v1/records/0", "bob", "")
	expectErrorCode(t, resp, http.StatusForbidden, "unauthorized")

	resp = do(t, http.MethodPost, ts.URL+"/v1/records/0/access", "alice", `{"grantee":"bob"}`)
	expectStatus(t, resp, http.StatusNoContent)

	resp = do(t, http.MethodGet, ts.URL+"/v1/records/0", "bob", "")
	expectStatus(t, resp, http.StatusOK)
	var rec types.RecordResponse
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if rec.RecordID != 0 || rec.Owner != "alice" || rec.ContentPointer != "ipfs://cid1" {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.Verified {
		t.Error("expected verified=false")
	}
	if len(rec.AccessList) != 2 || rec.AccessList[0] != "alice" || rec.AccessList[1] != "bob" {
		t.Errorf("expected access_list [alice bob], got %v", rec.AccessList)
	}
	if rec.CreatedAt != "2026-03-01T12:30:00Z" {
		t.Errorf("unexpected created_at %q", rec.CreatedAt)
	}

	// The second successful mint got id 1.
	resp = do(t, http.MethodGet, ts.URL+"/v1/records/1", "alice", "")
	expectStatus(t, resp, http.StatusOK)
	rec = types.RecordResponse{}
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if rec.ContentPointer != "ipfs://cid2" {
		t.Errorf("expected cid2 at id 1, got %q", rec.ContentPointer)
	}
}

// ── Error mapping ────────────────────────────────────────────────────────────

func TestMint_MissingCaller_401(t *testing.T) {
	ts := newTestServer(t, nil)
	resp := do(t, http.MethodPost, ts.URL+"/v1/records", "", `{"content_pointer":"ipfs://cid1"}`)
	expectErrorCode(t, resp, http.StatusUnauthorized, "missing_caller")
}

func TestMint_BadJSON_400(t *testing.T) {
	ts := newTestServer(t, nil)

	for _, body := range []string{`not json`, `{"content_pointer":"ipfs://x","extra":1}`} {
		resp := do(t, http.MethodPost, ts.URL+"/v1/records", "alice", body)
		expectErrorCode(t, resp, http.StatusBadRequest, "bad_json")
	}
}

func TestMint_PointerTooLong_400(t *testing.T) {
	ts := newTestServer(t, nil)

	long := "ipfs://" + strings.Repeat("b", 100)
	resp := do(t, http.MethodPost, ts.URL+"/v1/records", "alice", `{"content_pointer":"`+long+`"}`)
	expectErrorCode(t, resp, http.StatusBadRequest, "pointer_too_long")

	// The rejected mint consumed neither a record id nor a token id.
	resp = do(t, http.MethodPost, ts.URL+"/v1/records", "alice", `{"content_pointer":"ipfs://cid1"}`)
	expectStatus(t, resp, http.StatusCreated)
	var mr types.MintResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		t.Fatalf("decode mint: %v", err)
	}
	if mr.TokenID != 1000 {
		t.Errorf("expected token_id=1000, got %d", mr.TokenID)
	}
	expectStatus(t, do(t, http.MethodGet, ts.URL+"/v1/records/0", "alice", ""), http.StatusOK)
}

func TestRecordID_Invalid_400(t *testing.T) {
	ts := newTestServer(t, nil)

	for _, id := range []string{"abc", "-1", "1.5"} {
		resp := do(t, http.MethodGet, ts.URL+"/v1/records/"+id, "alice", "")
		expectErrorCode(t, resp, http.StatusBadRequest, "invalid_record_id")
	}
}

func TestNotFound_404BeforeAuthorization(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := do(t, http.MethodGet, ts.URL+"/v1/records/7", "bob", "")
	expectErrorCode(t, resp, http.StatusNotFound, "record_not_found")

	resp = do(t, http.MethodPost, ts.URL+"/v1/records/7/access", "bob", `{"grantee":"carol"}`)
	expectErrorCode(t, resp, http.StatusNotFound, "record_not_found")
}

func TestGrantAccess_NonOwner_403(t *testing.T) {
	ts := newTestServer(t, nil)
	expectStatus(t, do(t, http.MethodPost, ts.URL+"/v1/records", "alice", `{"content_pointer":"ipfs://cid1"}`), http.StatusCreated)

	resp := do(t, http.MethodPost, ts.URL+"/v1/records/0/access", "bob", `{"grantee":"bob"}`)
	expectErrorCode(t, resp, http.StatusForbidden, "unauthorized")
}

func TestGrantAccess_EmptyGrantee_400(t *testing.T) {
	ts := newTestServer(t, nil)
	expectStatus(t, do(t, http.MethodPost, ts.URL+"/v1/records", "alice", `{"content_pointer":"ipfs://cid1"}`), http.StatusCreated)

	resp := do(t, http.MethodPost, ts.URL+"/v1/records/0/access", "alice", `{"grantee":""}`)
	expectErrorCode(t, resp, http.StatusBadRequest, "invalid_request")

	long := strings.Repeat("g", 129)
	resp = do(t, http.MethodPost, ts.URL+"/v1/records/0/access", "alice", `{"grantee":"`+long+`"}`)
	expectErrorCode(t, resp, http.StatusBadRequest, "invalid_request")
}

func TestErrorBody_NoRecordContent(t *testing.T) {
	ts := newTestServer(t, nil)
	expectStatus(t, do(t, http.MethodPost, ts.URL+"/v1/records", "alice", `{"content_pointer":"ipfs://secret-cid"}`), http.StatusCreated)

	resp := do(t, http.MethodGet, ts.URL+"/v1/records/0", "mallory", "")
	expectStatus(t, resp, http.StatusForbidden)
	b, _ := io.ReadAll(resp.Body)
	if bytes.Contains(b, []byte("secret-cid")) || bytes.Contains(b, []byte("alice")) {
		t.Errorf("error body leaks record content: %s", b)
	}
}

// ── Content negotiation ──────────────────────────────────────────────────────

func TestGetRecord_Protobuf(t *testing.T) {
	ts := newTestServer(t, nil)
	expectStatus(t, do(t, http.MethodPost, ts.URL+"/v1/records", "alice", `{"content_pointer":"ipfs://cid1"}`), http.StatusCreated)

	resp := do(t, http.MethodGet, ts.URL+"/v1/records/0", "alice", "", "Accept", "application/x-protobuf")
	expectStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); ct != "application/x-protobuf" {
		t.Fatalf("expected protobuf content type, got %q", ct)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	id, e, err := codec.UnmarshalRecord(b)
	if err != nil {
		t.Fatalf("UnmarshalRecord: %v", err)
	}
	if id != 0 || e.Owner != "alice" || e.ContentPointer != "ipfs://cid1" {
		t.Errorf("unexpected decoded record: id=%d %+v", id, e)
	}
	if !e.CreatedAt.Equal(fixedNow) {
		t.Errorf("expected created_at %s, got %s", fixedNow, e.CreatedAt)
	}
}

// ── Middleware ───────────────────────────────────────────────────────────────

func TestRequestID_EchoedOrGenerated(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := do(t, http.MethodGet, ts.URL+"/healthz", "", "", "X-Request-ID", "abc-123")
	expectStatus(t, resp, http.StatusOK)
	if got := resp.Header.Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("expected echoed request id, got %q", got)
	}

	resp = do(t, http.MethodGet, ts.URL+"/healthz", "", "")
	if got := resp.Header.Get("X-Request-ID"); len(got) != 36 {
		t.Errorf("expected generated uuid, got %q", got)
	}
}

func TestCustomCallerHeader(t *testing.T) {
	ts := newTestServer(t, func(d *httpapi.Dependencies) { d.CallerHeader = "X-Account" })

	// The default header is ignored once another is configured.
	resp := do(t, http.MethodPost, ts.URL+"/v1/records", "alice", `{"content_pointer":"ipfs://cid1"}`)
	expectErrorCode(t, resp, http.StatusUnauthorized, "missing_caller")

	resp = do(t, http.MethodPost, ts.URL+"/v1/records", "", `{"content_pointer":"ipfs://cid1"}`, "X-Account", "alice")
	expectStatus(t, resp, http.StatusCreated)
}

func TestRateLimit_429(t *testing.T) {
	ts := newTestServer(t, func(d *httpapi.Dependencies) {
		d.RateLimit = 0.001
		d.RateBurst = 2
	})

	for i := 0; i < 2; i++ {
		expectStatus(t, do(t, http.MethodGet, ts.URL+"/v1/records/0", "alice", ""), http.StatusNotFound)
	}
	resp := do(t, http.MethodGet, ts.URL+"/v1/records/0", "alice", "")
	expectErrorCode(t, resp, http.StatusTooManyRequests, "rate_limited")

	// Buckets are per caller.
	expectStatus(t, do(t, http.MethodGet, ts.URL+"/v1/records/0", "bob", ""), http.StatusNotFound)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	expectStatus(t, do(t, http.MethodPost, ts.URL+"/v1/records", "alice", `{"content_pointer":"ipfs://cid1"}`), http.StatusCreated)

	resp := do(t, http.MethodGet, ts.URL+"/metrics", "", "")
	expectStatus(t, resp, http.StatusOK)
	b, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(b, []byte(`medledger_http_request_duration_seconds_count{code="201",route="POST /v1/records"} 1`)) {
		t.Errorf("expected mint latency series in metrics output:\n%s", b)
	}
}

func TestMetricsEndpoint_DisabledWithoutRegistry(t *testing.T) {
	ts := newTestServer(t, func(d *httpapi.Dependencies) { d.Metrics = nil })
	resp := do(t, http.MethodGet, ts.URL+"/metrics", "", "")
	expectStatus(t, resp, http.StatusNotFound)
}
