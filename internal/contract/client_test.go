package contract_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/information-sharing-networks/evote-gateway/internal/contract"
	"github.com/information-sharing-networks/evote-gateway/internal/contract/contracttest"
)

func newTestClient(t *testing.T, abiName string) (*contract.Client, *contracttest.Fake) {
	t.Helper()
	fake := contracttest.New(contract.MustLoadABI(abiName))
	client, err := contracttest.NewClient(fake)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client, fake
}

func TestLoadABI(t *testing.T) {
	tests := []struct {
		name       string
		voteInputs int
		extra      string
	}{
		{contract.ABIDemographic, 4, "getDemkhongResults"},
		{contract.ABIBasic, 3, "getAllVoteCounts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := contract.LoadABI(tt.name)
			if err != nil {
				t.Fatalf("LoadABI() returned error: %v", err)
			}
			if got := len(parsed.Methods["vote"].Inputs); got != tt.voteInputs {
				t.Errorf("vote inputs: got %d, want %d", got, tt.voteInputs)
			}
			if _, ok := parsed.Methods[tt.extra]; !ok {
				t.Errorf("expected method %s", tt.extra)
			}
		})
	}

	if _, err := contract.LoadABI("/does/not/exist.json"); err == nil {
		t.Error("expected an error for a missing ABI file")
	}
}

func TestSubmitAndSettle(t *testing.T) {
	client, fake := newTestClient(t, contract.ABIDemographic)
	ctx := context.Background()

	tx, err := client.Submit(ctx, "endElection", "e1")
	if err != nil {
		t.Fatalf("Submit() returned error: %v", err)
	}

	receipt, err := client.WaitSettled(ctx, tx)
	if err != nil {
		t.Fatalf("WaitSettled() returned error: %v", err)
	}
	if receipt.Status != 1 {
		t.Errorf("receipt status: got %d, want 1", receipt.Status)
	}

	submitted := fake.Submitted()
	if len(submitted) != 1 || submitted[0].Method != "endElection" || submitted[0].Args[0] != "e1" {
		t.Errorf("unexpected submitted calls: %+v", submitted)
	}
}

func TestSubmitRevert(t *testing.T) {
	client, fake := newTestClient(t, contract.ABIDemographic)
	fake.OnSubmit = func(method string, args []any) error {
		return contracttest.Revert("Not the owner")
	}

	_, err := client.Submit(context.Background(), "endElection", "e1")
	if !contract.IsKind(err, contract.KindNotOwner) {
		t.Fatalf("expected not owner error, got %v", err)
	}
	if len(fake.Submitted()) != 0 {
		t.Error("a reverted call should not be sent")
	}
}

func TestSubmitRejectsBadArguments(t *testing.T) {
	client, _ := newTestClient(t, contract.ABIDemographic)
	ctx := context.Background()

	if _, err := client.Submit(ctx, "endElection"); !contract.IsKind(err, contract.KindInvalidArgument) {
		t.Errorf("expected invalid argument for a missing argument, got %v", err)
	}
	if _, err := client.Submit(ctx, "noSuchMethod", "e1"); !contract.IsKind(err, contract.KindInvalidArgument) {
		t.Errorf("expected invalid argument for an unknown method, got %v", err)
	}
}

func TestConcurrentSubmissionsUseDistinctNonces(t *testing.T) {
	client, fake := newTestClient(t, contract.ABIDemographic)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx, err := client.Submit(ctx, "endElection", "e1")
			if err != nil {
				errs <- err
				return
			}
			if _, err := client.WaitSettled(ctx, tx); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent submission failed: %v", err)
	}
	if got := len(fake.Submitted()); got != 10 {
		t.Errorf("submitted %d transactions, want 10", got)
	}
}

func TestView(t *testing.T) {
	client, fake := newTestClient(t, contract.ABIDemographic)
	fake.OnView = func(method string, args []any) ([]any, error) {
		switch method {
		case "getVoteCount":
			return []any{big.NewInt(7)}, nil
		case "getAllElections":
			return []any{[]string{"e1", "e2"}}, nil
		}
		return nil, contracttest.Revert("Election does not exist")
	}
	ctx := context.Background()

	out, err := client.View(ctx, "getVoteCount", "e1", "alice")
	if err != nil {
		t.Fatalf("View() returned error: %v", err)
	}
	if n, ok := out[0].(*big.Int); !ok || n.Int64() != 7 {
		t.Errorf("unexpected output: %#v", out)
	}

	out, err = client.View(ctx, "getAllElections")
	if err != nil {
		t.Fatalf("View() returned error: %v", err)
	}
	if list, ok := out[0].([]string); !ok || len(list) != 2 {
		t.Errorf("unexpected output: %#v", out)
	}

	_, err = client.View(ctx, "isElectionEnded", "missing")
	if !contract.IsKind(err, contract.KindUnknownElection) {
		t.Errorf("expected unknown election, got %v", err)
	}
}

func TestPing(t *testing.T) {
	client, fake := newTestClient(t, contract.ABIBasic)
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() returned error: %v", err)
	}

	fake.HeadErr = contracttest.ErrConnectionRefused
	err := client.Ping(context.Background())
	if !contract.IsKind(err, contract.KindTransport) {
		t.Errorf("expected transport error, got %v", err)
	}
	if !errors.Is(err, contracttest.ErrConnectionRefused) {
		t.Error("expected the transport error to be wrapped")
	}
}
