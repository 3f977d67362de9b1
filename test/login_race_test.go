//go:build integration
// +build integration

package test

import (
	"errors"
	"sync"
	"testing"

	otpAuth "github.com/MrEthical07/otpAuth"
)

func TestLoginRaceSingleWinner(t *testing.T) {
	engine, _ := newIntegrationEngine(t, nil)
	ctx := clientCtx()

	issue, err := engine.RequestOTP(ctx, "race@example.com")
	if err != nil {
		t.Fatalf("RequestOTP failed: %v", err)
	}

	const workers = 16
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)

	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			_, err := engine.LoginWithOTP(ctx, "race@example.com", issue.Code)
			results <- err
		}()
	}

	close(start)
	wg.Wait()
	close(results)

	success := 0
	for err := range results {
		switch {
		case err == nil:
			success++
		case errors.Is(err, otpAuth.ErrVerificationFailed):
		default:
			t.Fatalf("unexpected login error: %v", err)
		}
	}

	if success != 1 {
		t.Fatalf("expected exactly one winner, got %d", success)
	}
}

func TestMagicLinkRaceSingleWinner(t *testing.T) {
	engine, _ := newIntegrationEngine(t, nil)
	ctx := clientCtx()

	issue, err := engine.RequestOTP(ctx, "magic-race@example.com")
	if err != nil {
		t.Fatalf("RequestOTP failed: %v", err)
	}

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	success := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := engine.LoginWithMagicLink(ctx, "magic-race@example.com", issue.MagicToken); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if success != 1 {
		t.Fatalf("expected exactly one winner, got %d", success)
	}
}
