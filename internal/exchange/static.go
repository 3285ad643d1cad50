package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ReserveVault/internal/custody"
	"ReserveVault/internal/fixedpoint"
)

// Rate prices one asset in reserve units: amountOut = amountIn * Num / Den,
// both sides in their native bases.
type Rate struct {
	Num int64
	Den int64
}

// Static is an in-process venue with fixed conversion rates, settling
// directly against a custody.Memory. It backs local deployments and
// tests; production points the gateway at the HTTP client instead.
type Static struct {
	mu         sync.Mutex
	bank       *custody.Memory
	rates      map[string]Rate // input symbol -> rate into the reserve asset
	allowances map[string]int64
	reserve    string
}

func NewStatic(bank *custody.Memory, reserveAsset string, rates map[string]Rate) *Static {
	return &Static{
		bank:       bank,
		rates:      rates,
		allowances: make(map[string]int64),
		reserve:    reserveAsset,
	}
}

func (s *Static) SwapNativeForAsset(_ context.Context, amountIn, minOut int64, path []string, _ string, _ time.Time) ([]int64, error) {
	out, err := s.quote(path, amountIn)
	if err != nil {
		return nil, err
	}
	if out < minOut {
		return nil, fmt.Errorf("output %d below minimum %d", out, minOut)
	}
	// Native input arrives with the call; only the output side touches
	// vault custody.
	s.bank.CreditVault(s.reserve, out)
	return []int64{amountIn, out}, nil
}

func (s *Static) SwapAssetForAsset(_ context.Context, amountIn, minOut int64, path []string, _ string, _ time.Time) ([]int64, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("empty swap path")
	}
	in := path[0]

	s.mu.Lock()
	granted := s.allowances[in]
	if granted < amountIn {
		s.mu.Unlock()
		return nil, fmt.Errorf("allowance %d below swap input %d %s", granted, amountIn, in)
	}
	s.allowances[in] = granted - amountIn
	s.mu.Unlock()

	out, err := s.quote(path, amountIn)
	if err != nil {
		return nil, err
	}
	if out < minOut {
		return nil, fmt.Errorf("output %d below minimum %d", out, minOut)
	}

	if err := s.bank.DebitVault(in, amountIn); err != nil {
		return nil, err
	}
	s.bank.CreditVault(s.reserve, out)
	return []int64{amountIn, out}, nil
}

// Approve implements Allowance against this venue.
func (s *Static) Approve(_ context.Context, assetSymbol, _ string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allowances[assetSymbol] = amount
	return nil
}

// AllowanceFor reads the remaining allowance, for test assertions.
func (s *Static) AllowanceFor(assetSymbol string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allowances[assetSymbol]
}

func (s *Static) quote(path []string, amountIn int64) (int64, error) {
	if len(path) < 2 || path[len(path)-1] != s.reserve {
		return 0, fmt.Errorf("unsupported swap path %v", path)
	}
	rate, ok := s.rates[path[0]]
	if !ok {
		return 0, fmt.Errorf("no rate for %s", path[0])
	}
	if rate.Den == 0 {
		return 0, fmt.Errorf("rate for %s has zero denominator", path[0])
	}
	return fixedpoint.MulDiv(amountIn, rate.Num, rate.Den), nil
}
