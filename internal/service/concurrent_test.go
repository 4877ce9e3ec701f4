package service_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tonpulse/pulse/internal/domain"
	"github.com/tonpulse/pulse/internal/repository"
	"github.com/tonpulse/pulse/internal/store"
)

// TestConcurrentCredits verifies the balance behaves as an atomic counter: 50
// goroutines crediting in parallel land on the exact sum.
func TestConcurrentCredits(t *testing.T) {
	kv := store.NewMemoryKV()
	ledger := repository.NewLedgerRepository(kv)
	ctx := context.Background()

	const workers = 50
	const each = int64(10 * domain.NanoPerTon)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ledger.Credit(ctx, "guest", each); err != nil {
				t.Errorf("credit: %v", err)
			}
		}()
	}
	wg.Wait()

	bal, err := ledger.Balance(ctx, "guest")
	if err != nil {
		t.Fatal(err)
	}
	if want := int64(workers) * each; bal != want {
		t.Errorf("balance = %d, want %d", bal, want)
	}
}

// TestConcurrentDebits verifies the decrement-check-compensate debit never
// oversells: with funds for exactly half the workers, exactly half succeed
// and the final balance is zero.
func TestConcurrentDebits(t *testing.T) {
	kv := store.NewMemoryKV()
	ledger := repository.NewLedgerRepository(kv)
	ctx := context.Background()

	const workers = 40
	const stake = int64(domain.NanoPerTon)

	if _, err := ledger.Credit(ctx, "guest", stake*workers/2); err != nil {
		t.Fatal(err)
	}

	var succeeded, rejected int64
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := ledger.DebitIfSufficient(ctx, "guest", stake)
			switch {
			case err == nil:
				atomic.AddInt64(&succeeded, 1)
			case errors.Is(err, domain.ErrInsufficientFunds):
				atomic.AddInt64(&rejected, 1)
			default:
				t.Errorf("debit: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != workers/2 || rejected != workers/2 {
		t.Errorf("succeeded=%d rejected=%d, want %d/%d", succeeded, rejected, workers/2, workers/2)
	}
	bal, err := ledger.Balance(ctx, "guest")
	if err != nil {
		t.Fatal(err)
	}
	if bal != 0 {
		t.Errorf("final balance = %d, want 0", bal)
	}
}

// TestConcurrentSettlementClaim verifies the conditional-set marker admits
// exactly one of N racing settlers.
func TestConcurrentSettlementClaim(t *testing.T) {
	kv := store.NewMemoryKV()
	ledger := repository.NewLedgerRepository(kv)
	ctx := context.Background()

	const workers = 20
	var winners int64

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := ledger.ClaimSettlement(ctx, 7, "guest", time.Hour)
			if err != nil {
				t.Errorf("claim: %v", err)
				return
			}
			if claimed {
				atomic.AddInt64(&winners, 1)
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Errorf("winners = %d, want exactly 1", winners)
	}
}
