package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ReserveVault/internal/asset"
	"ReserveVault/internal/custody"
	"ReserveVault/internal/exchange"
	"ReserveVault/internal/ledger"
	"ReserveVault/internal/observability"
	"ReserveVault/internal/server"
	"ReserveVault/internal/vault"
)

const operatorToken = "test-operator-token"

func newTestServer(t *testing.T, globalCap int64) (*server.Server, *custody.Memory) {
	t.Helper()

	bank := custody.NewMemory()
	venue := exchange.NewStatic(bank, "USDT", map[string]exchange.Rate{
		asset.NativeSymbol: {Num: 2, Den: 1},
	})
	registry, err := asset.NewRegistry([]asset.Asset{{Symbol: "USDT", Decimals: 6}})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	led, err := ledger.New("USDT", globalCap)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}

	v := vault.New(vault.Config{
		Ledger:   led,
		Gateway:  exchange.NewGateway(venue, venue, "venue", "vault", "USDT", zerolog.Nop()),
		Holdings: bank,
		Assets:   registry,
		Reserve:  asset.Asset{Symbol: "USDT", Decimals: 6},
		Logger:   zerolog.Nop(),
	})

	health := observability.NewHealthChecker()
	health.SetReady(true)

	return server.New(":0", server.Deps{
		Vault:         v,
		OperatorToken: operatorToken,
		OperatorID:    uuid.New(),
		Health:        health,
		Logger:        zerolog.Nop(),
	}), bank
}

func doJSON(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_DepositNative(t *testing.T) {
	srv, _ := newTestServer(t, 1_000_000_000)
	depositor := uuid.New()

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/deposits/native",
		`{"depositor":"`+depositor.String()+`","amount":500}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		ReserveAmount int64 `json:"reserve_amount"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ReserveAmount != 1_000 {
		t.Errorf("reserve_amount = %d, want 1000", resp.ReserveAmount)
	}
}

func TestServer_ErrorStatusMapping(t *testing.T) {
	srv, _ := newTestServer(t, 1_000)
	depositor := uuid.New()

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{
			"malformed body",
			"/v1/deposits/native",
			`{`,
			http.StatusBadRequest,
		},
		{
			"bad depositor",
			"/v1/deposits/native",
			`{"depositor":"not-a-uuid","amount":1}`,
			http.StatusBadRequest,
		},
		{
			"zero amount",
			"/v1/deposits/native",
			`{"depositor":"` + depositor.String() + `","amount":0}`,
			http.StatusBadRequest,
		},
		{
			"cap exceeded",
			"/v1/deposits/native",
			`{"depositor":"` + depositor.String() + `","amount":600}`,
			http.StatusConflict,
		},
		{
			"insufficient funds",
			"/v1/withdrawals",
			`{"depositor":"` + depositor.String() + `","asset":"USDT","amount":1}`,
			http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, srv.Handler(), http.MethodPost, tt.path, tt.body, nil)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestServer_Reserve(t *testing.T) {
	srv, _ := newTestServer(t, 1_000_000_000)
	depositor := uuid.New()

	doJSON(t, srv.Handler(), http.MethodPost, "/v1/deposits/native",
		`{"depositor":"`+depositor.String()+`","amount":500}`, nil)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/v1/reserve", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Total    int64  `json:"total"`
		Cap      int64  `json:"cap"`
		Deposits uint64 `json:"deposits"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 1_000 || resp.Cap != 1_000_000_000 || resp.Deposits != 1 {
		t.Errorf("got %+v, want total=1000 cap=1000000000 deposits=1", resp)
	}
}

func TestServer_SweepRequiresOperatorToken(t *testing.T) {
	srv, bank := newTestServer(t, 1_000_000_000)
	bank.CreditVault("USDT", 500)

	body := `{"asset":"USDT"}`

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/sweeps", body, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("no token: status = %d, want 403", rec.Code)
	}

	rec = doJSON(t, srv.Handler(), http.MethodPost, "/v1/sweeps", body,
		map[string]string{"Authorization": "Bearer wrong-token"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("wrong token: status = %d, want 403", rec.Code)
	}

	rec = doJSON(t, srv.Handler(), http.MethodPost, "/v1/sweeps", body,
		map[string]string{"Authorization": "Bearer " + operatorToken})
	if rec.Code != http.StatusOK {
		t.Errorf("valid token: status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestServer_Readiness(t *testing.T) {
	srv, _ := newTestServer(t, 1_000_000_000)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/readyz", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
