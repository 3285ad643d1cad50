package fixedpoint

import (
	"fmt"
	"math/big"
	"sync"
)

// InternalDecimals is the fixed fractional precision used for all ledger
// accounting, independent of any asset's native precision.
const InternalDecimals = 6

// InternalScale is 10^InternalDecimals.
const InternalScale int64 = 1_000_000

// MaxDecimals bounds the native precision this package accepts. 18 covers
// every asset the gateway deals with.
const MaxDecimals = 18

// pow10 holds 10^0 .. 10^18. Index 19+ would overflow int64 anyway for the
// factors we use (the largest factor is 10^(18-6) = 10^12).
var pow10 = [MaxDecimals + 1]int64{
	1,
	10,
	100,
	1_000,
	10_000,
	100_000,
	1_000_000,
	10_000_000,
	100_000_000,
	1_000_000_000,
	10_000_000_000,
	100_000_000_000,
	1_000_000_000_000,
	10_000_000_000_000,
	100_000_000_000_000,
	1_000_000_000_000_000,
	10_000_000_000_000_000,
	100_000_000_000_000_000,
	1_000_000_000_000_000_000,
}

// bigPool recycles big.Int scratch values for wide intermediates.
var bigPool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getBig() *big.Int {
	return bigPool.Get().(*big.Int)
}

func putBig(v *big.Int) {
	v.SetInt64(0)
	bigPool.Put(v)
}

// ToInternalBase converts an amount expressed in an asset's native
// fixed-point base into the internal accounting base.
//
// Let D = InternalDecimals - nativeDecimals.
//   - D == 0: the amount passes through unchanged.
//   - D > 0 (native coarser than internal): amount * 10^D. Lossless.
//   - D < 0 (native finer than internal): amount / 10^(-D), integer
//     truncation toward zero. Lossy: the fractional remainder below the
//     internal precision is discarded. Repeated deposit/withdraw cycles of
//     a finer-grained asset can strand dust in custody, bounded by one
//     internal unit per operation.
//
// Returns an error only when nativeDecimals is out of range or the
// scale-up does not fit in int64.
func ToInternalBase(amount int64, nativeDecimals int) (int64, error) {
	if nativeDecimals < 0 || nativeDecimals > MaxDecimals {
		return 0, fmt.Errorf("native decimals %d out of range [0,%d]", nativeDecimals, MaxDecimals)
	}

	d := InternalDecimals - nativeDecimals
	switch {
	case d == 0:
		return amount, nil

	case d > 0:
		factor := pow10[d]
		scaled := getBig()
		scaled.Mul(big.NewInt(amount), big.NewInt(factor))
		if !scaled.IsInt64() {
			putBig(scaled)
			return 0, fmt.Errorf("amount %d at %d decimals overflows internal base", amount, nativeDecimals)
		}
		out := scaled.Int64()
		putBig(scaled)
		return out, nil

	default: // d < 0
		// Go integer division truncates toward zero, which is exactly the
		// documented scale-down rule.
		return amount / pow10[-d], nil
	}
}

// ScaleFactor returns 10^|InternalDecimals - nativeDecimals| and whether the
// conversion scales up (lossless) or down (truncating). Used by callers that
// report dust.
func ScaleFactor(nativeDecimals int) (factor int64, scaleUp bool) {
	d := InternalDecimals - nativeDecimals
	if d >= 0 {
		return pow10[d], true
	}
	return pow10[-d], false
}

// MulDiv computes a*b/den with truncation, widening through big.Int so the
// product cannot overflow. den must be non-zero.
func MulDiv(a, b, den int64) int64 {
	prod := getBig()
	prod.Mul(big.NewInt(a), big.NewInt(b))
	prod.Quo(prod, big.NewInt(den))
	out := prod.Int64()
	putBig(prod)
	return out
}
