// Package exchange adapts the external conversion venue. The gateway is
// the only component allowed to talk to it, and the ledger is never
// touched until a conversion has fully completed.
package exchange

import (
	"context"
	"errors"
	"time"
)

// ErrZeroInput rejects a conversion request for a zero amount before any
// external call is made.
var ErrZeroInput = errors.New("conversion input amount is zero")

// ErrSwapYieldedZero rejects a swap that completed but delivered nothing.
// The minimum-output floor of one smallest reserve unit exists solely to
// surface this case; it is not slippage protection.
var ErrSwapYieldedZero = errors.New("swap yielded zero output")

// Exchange is the external swap venue. Either call may fail outright (a
// hard failure of the whole deposit) or return a zero final amount, which
// the gateway rejects.
type Exchange interface {
	// SwapNativeForAsset trades amountIn of the native unit along path,
	// delivering to recipient. Returns the amount out at each hop; the
	// last element is what actually arrived.
	SwapNativeForAsset(ctx context.Context, amountIn, minOut int64, path []string, recipient string, deadline time.Time) ([]int64, error)

	// SwapAssetForAsset trades amountIn of path[0] along path. The vault
	// must have approved the venue to spend path[0] beforehand.
	SwapAssetForAsset(ctx context.Context, amountIn, minOut int64, path []string, recipient string, deadline time.Time) ([]int64, error)
}

// Allowance grants the venue a spending allowance over vault custody.
// Approving zero revokes.
type Allowance interface {
	Approve(ctx context.Context, assetSymbol, spender string, amount int64) error
}
