package handlers

import (
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/information-sharing-networks/evote-gateway/internal/auth"
	"github.com/information-sharing-networks/evote-gateway/internal/contract"
	"github.com/information-sharing-networks/evote-gateway/internal/contract/contracttest"
	"github.com/information-sharing-networks/evote-gateway/internal/crypto"
	"github.com/information-sharing-networks/evote-gateway/internal/election"
)

const secretPhrase = "correct horse battery staple"

// newTestRouter mounts the handlers without middleware
func newTestRouter(t *testing.T, abiName string) (http.Handler, *contracttest.Fake, *auth.Issuer) {
	t.Helper()

	fake := contracttest.New(contract.MustLoadABI(abiName))
	client, err := contracttest.NewClient(fake)
	if err != nil {
		t.Fatalf("failed to create contract client: %v", err)
	}
	hasher, err := crypto.NewVoterHasher(secretPhrase)
	if err != nil {
		t.Fatalf("NewVoterHasher() returned error: %v", err)
	}
	issuer, err := auth.NewIssuer(auth.Config{
		ClientID:      "evote-client",
		ClientSecret:  "client-secret",
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
	}, auth.WithDenyList(auth.NewMemoryDenyList()))
	if err != nil {
		t.Fatalf("NewIssuer() returned error: %v", err)
	}

	authHandler := NewAuthHandler(issuer)
	electionHandler := NewElectionHandler(election.NewService(client, "https://explorer/tx/{txHash}"), hasher)

	r := chi.NewRouter()
	r.Post("/auth/token", authHandler.HandleToken)
	r.Post("/auth/refresh", authHandler.HandleRefresh)
	r.Post("/auth/revoke", authHandler.HandleRevoke)
	r.Post("/api/vote", electionHandler.HandleVote)
	r.Post("/api/register", electionHandler.HandleRegisterCandidate)
	r.Delete("/api/remove", electionHandler.HandleRemoveCandidate)
	r.Post("/api/end", electionHandler.HandleEndElection)
	r.Get("/api/votesByElection", electionHandler.HandleResults)
	r.Get("/api/public-result/{electionId}", electionHandler.HandlePublicResults)
	r.Get("/api/elections", electionHandler.HandleElections)
	r.Get("/api/votes", electionHandler.HandleVoteCount)
	r.Get("/api/checkVoted", electionHandler.HandleCheckVoted)
	r.Get("/api/constituencyResults", electionHandler.HandleConstituencyResults)
	return r, fake, issuer
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("response is not JSON: %s", rec.Body.String())
		}
	}
	return rec, decoded
}

func TestTokenEndpoints(t *testing.T) {
	h, _, _ := newTestRouter(t, contract.ABIDemographic)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{"valid credentials", `{"appId":"evote-client","appSecret":"client-secret"}`, http.StatusOK, ""},
		{"wrong secret", `{"appId":"evote-client","appSecret":"nope"}`, http.StatusUnauthorized, "Invalid credentials"},
		{"missing secret", `{"appId":"evote-client"}`, http.StatusBadRequest, "Missing credentials"},
		{"empty body", ``, http.StatusBadRequest, "Missing credentials"},
		{"malformed json", `{"appId":`, http.StatusBadRequest, "Malformed JSON request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := do(t, h, http.MethodPost, "/auth/token", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status: got %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantError != "" && body["error"] != tt.wantError {
				t.Errorf("error: got %v, want %q", body["error"], tt.wantError)
			}
			if tt.wantStatus == http.StatusOK {
				if body["access_token"] == "" || body["refresh_token"] == "" {
					t.Errorf("expected both tokens: %v", body)
				}
				if body["expires_in"] != float64(900) {
					t.Errorf("expires_in: got %v, want 900", body["expires_in"])
				}
			}
		})
	}
}

func TestRefreshAndRevoke(t *testing.T) {
	h, _, issuer := newTestRouter(t, contract.ABIDemographic)

	pair, err := issuer.Issue(t.Context(), "evote-client", "client-secret")
	if err != nil {
		t.Fatalf("Issue() returned error: %v", err)
	}

	rec, body := do(t, h, http.MethodPost, "/auth/refresh", `{"refreshToken":"`+pair.RefreshToken+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: got %d (%s)", rec.Code, rec.Body.String())
	}
	if _, ok := body["refresh_token"]; ok {
		t.Error("refresh response should not include a refresh token")
	}

	rec, body = do(t, h, http.MethodPost, "/auth/refresh", `{"refreshToken":"`+pair.AccessToken+`"}`)
	if rec.Code != http.StatusForbidden || body["error"] != "Invalid refresh token" {
		t.Errorf("access token used as refresh token: got %d %v", rec.Code, body)
	}

	rec, body = do(t, h, http.MethodPost, "/auth/refresh", `{}`)
	if rec.Code != http.StatusBadRequest || body["error"] != "Refresh token required" {
		t.Errorf("missing refresh token: got %d %v", rec.Code, body)
	}

	rec, _ = do(t, h, http.MethodPost, "/auth/revoke", `{"token":"`+pair.RefreshToken+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("revoke: got %d (%s)", rec.Code, rec.Body.String())
	}

	rec, _ = do(t, h, http.MethodPost, "/auth/refresh", `{"refreshToken":"`+pair.RefreshToken+`"}`)
	if rec.Code != http.StatusForbidden {
		t.Errorf("revoked refresh token: got %d, want 403", rec.Code)
	}

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{"missing token", `{}`, http.StatusBadRequest, "Token required"},
		{"malformed token", `{"token":"not-a-jwt"}`, http.StatusForbidden, "Invalid token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := do(t, h, http.MethodPost, "/auth/revoke", tt.body)
			if rec.Code != tt.wantStatus || body["error"] != tt.wantError {
				t.Errorf("revoke: got %d %v, want %d %q", rec.Code, body, tt.wantStatus, tt.wantError)
			}
		})
	}
}

func TestVote(t *testing.T) {
	t.Run("hashes the uid and reports the settlement", func(t *testing.T) {
		h, fake, _ := newTestRouter(t, contract.ABIDemographic)

		rec, body := do(t, h, http.MethodPost, "/api/vote",
			`{"electionId":"e1","uid":"citizen-1","candidate":"alice","gender":"Female"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status: got %d (%s)", rec.Code, rec.Body.String())
		}
		if body["message"] != "Vote cast successfully" || body["txStatus"] != "success" {
			t.Errorf("unexpected body %v", body)
		}
		txHash, _ := body["txHash"].(string)
		if !strings.HasPrefix(txHash, "0x") || body["explorerLink"] != "https://explorer/tx/"+txHash {
			t.Errorf("unexpected tx fields %v", body)
		}

		hasher, _ := crypto.NewVoterHasher(secretPhrase)
		want, _ := hasher.HashVoter("citizen-1")
		submitted := fake.Submitted()
		if len(submitted) != 1 || submitted[0].Args[1] != string(want) {
			t.Errorf("voter argument: got %v, want %s", submitted, want)
		}
		if strings.Contains(rec.Body.String(), "citizen-1") {
			t.Error("raw uid echoed in the response")
		}
	})

	t.Run("numeric election id", func(t *testing.T) {
		h, fake, _ := newTestRouter(t, contract.ABIDemographic)

		rec, _ := do(t, h, http.MethodPost, "/api/vote", `{"electionId":7,"uid":"u","candidate":"alice","gender":"Male"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status: got %d (%s)", rec.Code, rec.Body.String())
		}
		if fake.Submitted()[0].Args[0] != "7" {
			t.Errorf("election id: got %v, want \"7\"", fake.Submitted()[0].Args[0])
		}
	})

	t.Run("missing fields are listed", func(t *testing.T) {
		h, fake, _ := newTestRouter(t, contract.ABIDemographic)

		rec, body := do(t, h, http.MethodPost, "/api/vote", `{"electionId":"e1"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status: got %d", rec.Code)
		}
		if body["error"] != "Missing required fields: uid, candidate, gender" {
			t.Errorf("error: got %v", body["error"])
		}
		if len(fake.Calls()) != 0 {
			t.Error("no contract call expected")
		}
	})

	t.Run("already voted", func(t *testing.T) {
		h, fake, _ := newTestRouter(t, contract.ABIDemographic)
		fake.OnSubmit = func(method string, args []any) error {
			return contracttest.Revert("Already voted in this election")
		}

		rec, body := do(t, h, http.MethodPost, "/api/vote", `{"electionId":"e1","uid":"u","candidate":"alice","gender":"Male"}`)
		if rec.Code != http.StatusConflict || body["error"] != contract.MsgAlreadyVoted {
			t.Errorf("got %d %v", rec.Code, body)
		}
	})

	t.Run("failed receipt", func(t *testing.T) {
		h, fake, _ := newTestRouter(t, contract.ABIBasic)
		fake.FailReceipts = true

		rec, body := do(t, h, http.MethodPost, "/api/vote", `{"electionId":"e1","uid":"u","candidate":"alice"}`)
		if rec.Code != http.StatusOK || body["txStatus"] != "fail" {
			t.Errorf("got %d %v", rec.Code, body)
		}
	})
}

func TestCandidateAdministration(t *testing.T) {
	h, fake, _ := newTestRouter(t, contract.ABIDemographic)

	rec, body := do(t, h, http.MethodPost, "/api/register", `{"electionId":"e1","candidate":"alice","demkhong":"Paro"}`)
	if rec.Code != http.StatusOK || body["message"] != "Candidate registered" {
		t.Fatalf("register: got %d %v", rec.Code, body)
	}
	if got := fake.Submitted()[0].Args[2]; got != "Paro" {
		t.Errorf("constituency: got %v, want Paro", got)
	}

	rec, body = do(t, h, http.MethodDelete, "/api/remove", `{"electionId":"e1","candidate":"alice"}`)
	if rec.Code != http.StatusOK || body["message"] != "Candidate removed" {
		t.Errorf("remove: got %d %v", rec.Code, body)
	}

	rec, body = do(t, h, http.MethodPost, "/api/end", `{"electionId":"e1"}`)
	if rec.Code != http.StatusOK || body["message"] != "Election ended" {
		t.Errorf("end: got %d %v", rec.Code, body)
	}

	fake.OnSubmit = func(method string, args []any) error {
		return contracttest.Revert("Not the owner")
	}
	rec, _ = do(t, h, http.MethodPost, "/api/end", `{"electionId":"e1"}`)
	if rec.Code != http.StatusForbidden {
		t.Errorf("not owner: got %d, want 403", rec.Code)
	}
}

func TestReadOnlyEndpoints(t *testing.T) {
	h, fake, _ := newTestRouter(t, contract.ABIDemographic)
	ended := false
	fake.OnView = func(method string, args []any) ([]any, error) {
		switch method {
		case "getAllElections":
			return []any{[]string{"e1", "e2"}}, nil
		case "getVoteCount":
			return []any{big.NewInt(12)}, nil
		case "hasUserVoted":
			return []any{true}, nil
		case "isElectionEnded":
			return []any{ended}, nil
		case "getCandidateVotesAndTotalElectionVotes":
			return []any{
				[]string{"alice"}, []string{"Paro"}, []*big.Int{big.NewInt(3)},
				big.NewInt(3), big.NewInt(1), big.NewInt(2),
			}, nil
		case "getDemkhongResults":
			return []any{
				[]string{"Paro"}, []*big.Int{big.NewInt(3)}, []*big.Int{big.NewInt(1)}, []*big.Int{big.NewInt(2)},
			}, nil
		}
		t.Fatalf("unexpected view %s", method)
		return nil, nil
	}

	rec, body := do(t, h, http.MethodGet, "/api/elections", "")
	if rec.Code != http.StatusOK || len(body["elections"].([]any)) != 2 {
		t.Errorf("elections: got %d %v", rec.Code, body)
	}

	rec, body = do(t, h, http.MethodGet, "/api/votes?electionId=e1&candidate=alice", "")
	if rec.Code != http.StatusOK || body["votes"] != "12" || body["candidate"] != "alice" {
		t.Errorf("votes: got %d %v", rec.Code, body)
	}

	rec, body = do(t, h, http.MethodGet, "/api/votes?electionId=e1", "")
	if rec.Code != http.StatusBadRequest || body["error"] != "Missing required fields: candidate" {
		t.Errorf("votes without candidate: got %d %v", rec.Code, body)
	}

	rec, body = do(t, h, http.MethodGet, "/api/checkVoted?electionId=e1&uid=citizen-1", "")
	if rec.Code != http.StatusOK || body["voted"] != true {
		t.Errorf("checkVoted: got %d %v", rec.Code, body)
	}

	rec, body = do(t, h, http.MethodGet, "/api/votesByElection?electionId=e1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("votesByElection: got %d (%s)", rec.Code, rec.Body.String())
	}
	if body["totalVotes"] != "3" || body["totalMale"] != "1" || body["totalFemale"] != "2" {
		t.Errorf("totals: got %v", body)
	}
	row := body["results"].([]any)[0].(map[string]any)
	if row["candidate"] != "alice" || row["constituency"] != "Paro" || row["demkhong"] != "Paro" || row["votes"] != "3" {
		t.Errorf("row: got %v", row)
	}

	rec, body = do(t, h, http.MethodGet, "/api/public-result/e1", "")
	if rec.Code != http.StatusForbidden || body["message"] != "Election is not yet ended." {
		t.Errorf("public result before end: got %d %v", rec.Code, body)
	}

	ended = true
	rec, body = do(t, h, http.MethodGet, "/api/public-result/e1", "")
	if rec.Code != http.StatusOK || body["electionId"] != "e1" {
		t.Errorf("public result after end: got %d %v", rec.Code, body)
	}

	rec, body = do(t, h, http.MethodGet, "/api/constituencyResults?electionId=e1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("constituencyResults: got %d (%s)", rec.Code, rec.Body.String())
	}
	row = body["results"].([]any)[0].(map[string]any)
	if row["constituency"] != "Paro" || row["demkhong"] != "Paro" || row["maleVotes"] != "1" || row["femaleVotes"] != "2" {
		t.Errorf("constituency row: got %v", row)
	}
}

func TestConstituencyResultsUnsupported(t *testing.T) {
	h, _, _ := newTestRouter(t, contract.ABIBasic)

	rec, _ := do(t, h, http.MethodGet, "/api/constituencyResults?electionId=e1", "")
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("status: got %d, want 501", rec.Code)
	}
}

func TestUnknownElection(t *testing.T) {
	h, fake, _ := newTestRouter(t, contract.ABIDemographic)
	fake.OnView = func(method string, args []any) ([]any, error) {
		return nil, contracttest.Revert("Election ID does not exist")
	}

	rec, body := do(t, h, http.MethodGet, "/api/votesByElection?electionId=nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", rec.Code)
	}
	if body["electionId"] != "nope" {
		t.Errorf("electionId: got %v", body["electionId"])
	}
	if results, ok := body["results"].([]any); !ok || len(results) != 0 {
		t.Errorf("results: got %v", body["results"])
	}
}
