package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/information-sharing-networks/evote-gateway/internal/auth"
	"github.com/information-sharing-networks/evote-gateway/internal/config"
	"github.com/information-sharing-networks/evote-gateway/internal/contract"
	"github.com/information-sharing-networks/evote-gateway/internal/contract/contracttest"
	"github.com/information-sharing-networks/evote-gateway/internal/crypto"
	"github.com/information-sharing-networks/evote-gateway/internal/election"
	"github.com/information-sharing-networks/evote-gateway/internal/ratelimit"
	"github.com/information-sharing-networks/evote-gateway/internal/server/handlers"
)

const (
	testAppID     = "evote-client"
	testAppSecret = "client-secret"
)

func testConfig() *config.ServerEnvironment {
	return &config.ServerEnvironment{
		Environment:              "test",
		RequestTimeout:           10 * time.Second,
		MaxRequestSize:           4096,
		AllowedOrigins:           []string{"https://portal.example"},
		AppID:                    testAppID,
		AppSecret:                testAppSecret,
		AccessTokenTTL:           15 * time.Minute,
		RefreshTokenTTL:          7 * 24 * time.Hour,
		RateLimitMax:             100,
		RateLimitWindow:          15 * time.Minute,
		AuthRateLimitMax:         5,
		AuthRateLimitWindow:      15 * time.Minute,
		PublicResultsRequireAuth: true,
		DatabasePingTimeout:      time.Second,
	}
}

type testServer struct {
	handler http.Handler
	fake    *contracttest.Fake
}

func newTestServer(t *testing.T, cfg *config.ServerEnvironment, abiName string, checks ...handlers.ReadinessCheck) *testServer {
	t.Helper()

	fake := contracttest.New(contract.MustLoadABI(abiName))
	client, err := contracttest.NewClient(fake)
	if err != nil {
		t.Fatalf("failed to create contract client: %v", err)
	}

	issuer, err := auth.NewIssuer(auth.Config{
		ClientID:      cfg.AppID,
		ClientSecret:  cfg.AppSecret,
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
		Issuer:        "evote-gateway",
	}, auth.WithDenyList(auth.NewMemoryDenyList()))
	if err != nil {
		t.Fatalf("NewIssuer() returned error: %v", err)
	}

	hasher, err := crypto.NewVoterHasher("pepper")
	if err != nil {
		t.Fatalf("NewVoterHasher() returned error: %v", err)
	}

	newLimiter := func(name string, max int, window time.Duration, msg string) *ratelimit.Limiter {
		l, err := ratelimit.New(ratelimit.Config{Name: name, Max: max, Window: window, Message: msg}, ratelimit.MemoryStoreFactory())
		if err != nil {
			t.Fatalf("ratelimit.New() returned error: %v", err)
		}
		return l
	}

	srv, err := NewServer(cfg, Dependencies{
		Issuer:          issuer,
		Elections:       election.NewService(client, "https://amoy.polygonscan.com/tx/{txHash}"),
		Hasher:          hasher,
		AuthLimiter:     newLimiter("auth", cfg.AuthRateLimitMax, cfg.AuthRateLimitWindow, "Too many login attempts, please try again later"),
		APILimiter:      newLimiter("api", cfg.RateLimitMax, cfg.RateLimitWindow, "Too many requests, please try again later."),
		ReadinessChecks: append([]handlers.ReadinessCheck{handlers.ChainCheck(client.Ping)}, checks...),
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewServer() returned error: %v", err)
	}
	return &testServer{handler: srv.Router(), fake: fake}
}

func (s *testServer) do(t *testing.T, method, target, token, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var decoded map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid JSON response: %s", rec.Body.String())
		}
	}
	return rec, decoded
}

func (s *testServer) token(t *testing.T) (access, refresh string) {
	t.Helper()
	rec, body := s.do(t, http.MethodPost, "/auth/token", "", `{"appId":"`+testAppID+`","appSecret":"`+testAppSecret+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("token: got %d (%s)", rec.Code, rec.Body.String())
	}
	return body["access_token"].(string), body["refresh_token"].(string)
}

func TestTokenScenario(t *testing.T) {
	s := newTestServer(t, testConfig(), contract.ABIDemographic)

	rec, body := s.do(t, http.MethodPost, "/auth/token", "", `{"appId":"evote-client","appSecret":"client-secret"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	if body["access_token"] == nil || body["refresh_token"] == nil || body["expires_in"] != float64(900) {
		t.Errorf("unexpected body %v", body)
	}

	rec, body = s.do(t, http.MethodPost, "/auth/token", "", `{"appId":"evote-client","appSecret":"wrong"}`)
	if rec.Code != http.StatusUnauthorized || body["error"] != "Invalid credentials" {
		t.Errorf("wrong secret: got %d %v", rec.Code, body)
	}
}

func TestProtectedRoutes(t *testing.T) {
	s := newTestServer(t, testConfig(), contract.ABIDemographic)
	s.fake.OnView = func(method string, args []any) ([]any, error) {
		return []any{[]string{"e1"}}, nil
	}
	access, refresh := s.token(t)

	tests := []struct {
		name       string
		token      string
		wantStatus int
		wantError  string
	}{
		{"no token", "", http.StatusUnauthorized, "Authorization token required"},
		{"malformed token", "not-a-jwt", http.StatusForbidden, "Invalid or expired token"},
		{"refresh token as access token", refresh, http.StatusForbidden, "Invalid or expired token"},
		{"forged signature", access[:strings.LastIndex(access, ".")+1] + "AAAA", http.StatusForbidden, "Invalid or expired token"},
		{"valid token", access, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := s.do(t, http.MethodGet, "/api/elections", tt.token, "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status: got %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantError != "" && body["error"] != tt.wantError {
				t.Errorf("error: got %v, want %q", body["error"], tt.wantError)
			}
		})
	}

	// aliased list route
	if rec, _ := s.do(t, http.MethodGet, "/api/getElectionsList", access, ""); rec.Code != http.StatusOK {
		t.Errorf("getElectionsList: got %d", rec.Code)
	}
}

func TestRevokedTokenIsRejected(t *testing.T) {
	s := newTestServer(t, testConfig(), contract.ABIDemographic)
	s.fake.OnView = func(method string, args []any) ([]any, error) {
		return []any{[]string{}}, nil
	}
	access, _ := s.token(t)

	rec, _ := s.do(t, http.MethodPost, "/auth/revoke", access, `{"token":"`+access+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("revoke: got %d (%s)", rec.Code, rec.Body.String())
	}

	rec, _ = s.do(t, http.MethodGet, "/api/elections", access, "")
	if rec.Code != http.StatusForbidden {
		t.Errorf("revoked token: got %d, want 403", rec.Code)
	}

	rec, _ = s.do(t, http.MethodPost, "/auth/revoke", "", `{"token":"`+access+`"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("revoke without bearer: got %d, want 401", rec.Code)
	}
}

func TestAlreadyVotedScenario(t *testing.T) {
	s := newTestServer(t, testConfig(), contract.ABIDemographic)
	access, _ := s.token(t)

	ballot := `{"electionId":"e1","uid":"citizen-1","candidate":"alice","gender":"Female"}`

	rec, body := s.do(t, http.MethodPost, "/api/vote", access, ballot)
	if rec.Code != http.StatusOK || body["txStatus"] != "success" {
		t.Fatalf("first vote: got %d %v", rec.Code, body)
	}

	s.fake.OnSubmit = func(method string, args []any) error {
		return errors.New("execution reverted: Already voted in this election")
	}
	rec, body = s.do(t, http.MethodPost, "/api/vote", access, ballot)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second vote: got %d, want 409", rec.Code)
	}
	if body["error"] != "You have already voted in this election." {
		t.Errorf("error: got %v", body["error"])
	}
}

func TestUnknownElectionScenario(t *testing.T) {
	s := newTestServer(t, testConfig(), contract.ABIDemographic)
	s.fake.OnView = func(method string, args []any) ([]any, error) {
		return nil, contracttest.Revert("Election ID does not exist")
	}
	access, _ := s.token(t)

	rec, body := s.do(t, http.MethodGet, "/api/votesByElection?electionId=X", access, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", rec.Code)
	}
	if body["electionId"] != "X" {
		t.Errorf("electionId: got %v, want X", body["electionId"])
	}
	if results, ok := body["results"].([]any); !ok || len(results) != 0 {
		t.Errorf("results: got %v, want []", body["results"])
	}
}

func TestPublicResultScenario(t *testing.T) {
	cfg := testConfig()
	cfg.PublicResultsRequireAuth = false
	s := newTestServer(t, cfg, contract.ABIBasic)

	ended := false
	s.fake.OnView = func(method string, args []any) ([]any, error) {
		switch method {
		case "isElectionEnded":
			return []any{ended}, nil
		case "getCandidateVotesAndTotalElectionVotesPublic":
			return []any{[]string{"alice", "bob"}, []*big.Int{big.NewInt(7), big.NewInt(5)}, big.NewInt(12)}, nil
		}
		return nil, errors.New("unexpected view " + method)
	}

	rec, body := s.do(t, http.MethodGet, "/api/public-result/E", "", "")
	if rec.Code != http.StatusForbidden || body["message"] != "Election is not yet ended." {
		t.Fatalf("before end: got %d %v", rec.Code, body)
	}

	ended = true
	rec, body = s.do(t, http.MethodGet, "/api/public-result/E", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("after end: got %d (%s)", rec.Code, rec.Body.String())
	}
	if body["electionId"] != "E" || body["totalVotes"] != "12" || len(body["results"].([]any)) != 2 {
		t.Errorf("unexpected results %v", body)
	}

	// other routes stay protected
	if rec, _ := s.do(t, http.MethodGet, "/api/elections", "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("elections without token: got %d, want 401", rec.Code)
	}
}

func TestPublicResultRequiresAuthByDefault(t *testing.T) {
	s := newTestServer(t, testConfig(), contract.ABIDemographic)

	if rec, _ := s.do(t, http.MethodGet, "/api/public-result/E", "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("got %d, want 401", rec.Code)
	}
}

func TestAuthRateLimit(t *testing.T) {
	s := newTestServer(t, testConfig(), contract.ABIDemographic)

	body := `{"appId":"evote-client","appSecret":"wrong"}`
	for i := range 5 {
		rec, _ := s.do(t, http.MethodPost, "/auth/token", "", body)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: got %d, want 401", i+1, rec.Code)
		}
	}

	rec, resp := s.do(t, http.MethodPost, "/auth/token", "", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("sixth attempt: got %d, want 429", rec.Code)
	}
	if resp["error"] != "Too many login attempts, please try again later" {
		t.Errorf("error: got %v", resp["error"])
	}
	if rec.Header().Get("Retry-After") == "" || rec.Header().Get("RateLimit-Remaining") != "0" {
		t.Errorf("missing rate limit headers: %v", rec.Header())
	}

	// the API limiter is independent
	if rec, _ := s.do(t, http.MethodGet, "/api/elections", "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("api route: got %d, want 401", rec.Code)
	}
}

func TestConstituencyRoutes(t *testing.T) {
	s := newTestServer(t, testConfig(), contract.ABIDemographic)
	s.fake.OnView = func(method string, args []any) ([]any, error) {
		return []any{[]string{"Paro"}, []*big.Int{big.NewInt(3)}, []*big.Int{big.NewInt(1)}, []*big.Int{big.NewInt(2)}}, nil
	}
	access, _ := s.token(t)

	for _, route := range []string{"/api/constituencyResults", "/api/demkhongResults"} {
		rec, body := s.do(t, http.MethodGet, route+"?electionId=e1", access, "")
		if rec.Code != http.StatusOK || body["electionId"] != "e1" {
			t.Errorf("%s: got %d %v", route, rec.Code, body)
			continue
		}
		// both keys are emitted so clients of either route name keep working
		row := body["results"].([]any)[0].(map[string]any)
		if row["constituency"] != "Paro" || row["demkhong"] != "Paro" {
			t.Errorf("%s row: got %v", route, row)
		}
	}
}

func TestRequestTooLarge(t *testing.T) {
	s := newTestServer(t, testConfig(), contract.ABIDemographic)
	access, _ := s.token(t)

	oversized := `{"electionId":"e1","uid":"` + strings.Repeat("x", 5000) + `","candidate":"a","gender":"Male"}`
	rec, _ := s.do(t, http.MethodPost, "/api/vote", access, oversized)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("got %d, want 413", rec.Code)
	}
	if len(s.fake.Submitted()) != 0 {
		t.Error("oversized request reached the contract")
	}
}

func TestInfrastructureRoutes(t *testing.T) {
	t.Run("liveness", func(t *testing.T) {
		s := newTestServer(t, testConfig(), contract.ABIDemographic)
		rec, _ := s.do(t, http.MethodGet, "/health/live", "", "")
		if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
			t.Errorf("got %d %q", rec.Code, rec.Body.String())
		}
	})

	t.Run("ready", func(t *testing.T) {
		s := newTestServer(t, testConfig(), contract.ABIDemographic)
		rec, body := s.do(t, http.MethodGet, "/health/ready", "", "")
		if rec.Code != http.StatusOK || body["status"] != "ready" {
			t.Errorf("got %d %v", rec.Code, body)
		}
	})

	t.Run("not ready when the node is down", func(t *testing.T) {
		s := newTestServer(t, testConfig(), contract.ABIDemographic)
		s.fake.HeadErr = contracttest.ErrConnectionRefused
		rec, body := s.do(t, http.MethodGet, "/health/ready", "", "")
		if rec.Code != http.StatusServiceUnavailable || body["reason"] != "chain unavailable" {
			t.Errorf("got %d %v", rec.Code, body)
		}
	})

	t.Run("not ready when an extra check fails", func(t *testing.T) {
		failing := handlers.ReadinessCheck{Name: "database", Ping: func(context.Context) error { return errors.New("down") }}
		s := newTestServer(t, testConfig(), contract.ABIDemographic, failing)
		rec, body := s.do(t, http.MethodGet, "/health/ready", "", "")
		if rec.Code != http.StatusServiceUnavailable || body["reason"] != "database unavailable" {
			t.Errorf("got %d %v", rec.Code, body)
		}
	})

	t.Run("version", func(t *testing.T) {
		s := newTestServer(t, testConfig(), contract.ABIDemographic)
		rec, body := s.do(t, http.MethodGet, "/version", "", "")
		if rec.Code != http.StatusOK || body["service"] != "evote-gateway" {
			t.Errorf("got %d %v", rec.Code, body)
		}
	})

	t.Run("cors preflight", func(t *testing.T) {
		s := newTestServer(t, testConfig(), contract.ABIDemographic)
		req := httptest.NewRequest(http.MethodOptions, "/api/vote", nil)
		req.Header.Set("Origin", "https://portal.example")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, req)
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://portal.example" {
			t.Errorf("Access-Control-Allow-Origin: got %q", got)
		}
	})

	t.Run("every response has a request id", func(t *testing.T) {
		s := newTestServer(t, testConfig(), contract.ABIDemographic)
		_, body := s.do(t, http.MethodGet, "/api/elections", "", "")
		if id, _ := body["requestId"].(string); id == "" {
			t.Errorf("requestId missing from %v", body)
		}
	})
}
