package exchange_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ReserveVault/internal/exchange"
)

// scriptedVenue returns canned swap results and records every allowance
// change, so tests can drive outcomes the static venue never produces.
type scriptedVenue struct {
	swapOut  []int64
	swapErr  error
	approves []int64
}

func (s *scriptedVenue) SwapNativeForAsset(_ context.Context, _, _ int64, _ []string, _ string, _ time.Time) ([]int64, error) {
	return s.swapOut, s.swapErr
}

func (s *scriptedVenue) SwapAssetForAsset(_ context.Context, _, _ int64, _ []string, _ string, _ time.Time) ([]int64, error) {
	return s.swapOut, s.swapErr
}

func (s *scriptedVenue) Approve(_ context.Context, _, _ string, amount int64) error {
	s.approves = append(s.approves, amount)
	return nil
}

func newGateway(venue *scriptedVenue) *exchange.Gateway {
	return exchange.NewGateway(venue, venue, "venue", "vault", "USDT", zerolog.Nop())
}

func TestGateway_ConvertNative(t *testing.T) {
	venue := &scriptedVenue{swapOut: []int64{500, 1_000}}
	g := newGateway(venue)

	out, err := g.ConvertNativeToReserve(context.Background(), 500)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if out != 1_000 {
		t.Errorf("out = %d, want 1000", out)
	}
}

func TestGateway_ZeroInputRejected(t *testing.T) {
	g := newGateway(&scriptedVenue{})

	if _, err := g.ConvertNativeToReserve(context.Background(), 0); !errors.Is(err, exchange.ErrZeroInput) {
		t.Errorf("got %v, want ErrZeroInput", err)
	}
	if _, err := g.ConvertAssetToReserve(context.Background(), "WBTC", -5); !errors.Is(err, exchange.ErrZeroInput) {
		t.Errorf("got %v, want ErrZeroInput", err)
	}
}

func TestGateway_ZeroYieldSurfaces(t *testing.T) {
	venue := &scriptedVenue{swapOut: []int64{500, 0}}
	g := newGateway(venue)

	if _, err := g.ConvertNativeToReserve(context.Background(), 500); !errors.Is(err, exchange.ErrSwapYieldedZero) {
		t.Errorf("got %v, want ErrSwapYieldedZero", err)
	}
}

func TestGateway_AssetConversionScopesAllowance(t *testing.T) {
	venue := &scriptedVenue{swapOut: []int64{100, 150}}
	g := newGateway(venue)

	out, err := g.ConvertAssetToReserve(context.Background(), "WBTC", 100)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if out != 150 {
		t.Errorf("out = %d, want 150", out)
	}

	// Exactly the swap input is approved, then the approval is revoked.
	want := []int64{100, 0}
	if len(venue.approves) != 2 || venue.approves[0] != want[0] || venue.approves[1] != want[1] {
		t.Errorf("approvals = %v, want %v", venue.approves, want)
	}
}

func TestGateway_RevokesAllowanceOnSwapFailure(t *testing.T) {
	venue := &scriptedVenue{swapErr: errors.New("venue down")}
	g := newGateway(venue)

	if _, err := g.ConvertAssetToReserve(context.Background(), "WBTC", 100); err == nil {
		t.Fatal("expected swap error")
	}

	if len(venue.approves) != 2 || venue.approves[1] != 0 {
		t.Errorf("approvals = %v, want revoke after failure", venue.approves)
	}
}
