package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"ReserveVault/internal/asset"
)

// Gateway executes the convert side of convert-then-credit. It performs
// no ledger mutation of its own; its only side effects are the external
// transfer arrangements strictly necessary for the swap (granting and
// revoking the venue's spending allowance).
type Gateway struct {
	venue        Exchange
	allowance    Allowance
	spender      string // venue address the allowance is granted to
	recipient    string // vault custody address swap output lands on
	reserveAsset string
	logger       zerolog.Logger
}

func NewGateway(venue Exchange, allowance Allowance, spender, recipient, reserveAsset string, logger zerolog.Logger) *Gateway {
	return &Gateway{
		venue:        venue,
		allowance:    allowance,
		spender:      spender,
		recipient:    recipient,
		reserveAsset: reserveAsset,
		logger:       logger,
	}
}

// ConvertNativeToReserve swaps nativeAmount of the native unit into the
// reserve asset. The minimum output is one smallest reserve unit and the
// deadline is now: there is no future validity window and no slippage
// bound beyond rejecting a degenerate zero-output swap.
func (g *Gateway) ConvertNativeToReserve(ctx context.Context, nativeAmount int64) (int64, error) {
	if nativeAmount <= 0 {
		return 0, ErrZeroInput
	}

	path := []string{asset.NativeSymbol, g.reserveAsset}
	amounts, err := g.venue.SwapNativeForAsset(ctx, nativeAmount, 1, path, g.recipient, time.Now())
	if err != nil {
		return 0, fmt.Errorf("swap native for %s: %w", g.reserveAsset, err)
	}

	received := lastAmount(amounts)
	if received == 0 {
		return 0, ErrSwapYieldedZero
	}

	g.logger.Debug().
		Int64("amount_in", nativeAmount).
		Int64("amount_out", received).
		Msg("native conversion settled")

	return received, nil
}

// ConvertAssetToReserve swaps amount of an asset already in vault custody
// into the reserve asset. The venue's allowance is scoped to exactly
// amount and revoked immediately after the swap regardless of outcome, so
// no lingering approval survives the operation.
func (g *Gateway) ConvertAssetToReserve(ctx context.Context, assetSymbol string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrZeroInput
	}

	if err := g.allowance.Approve(ctx, assetSymbol, g.spender, amount); err != nil {
		return 0, fmt.Errorf("approve %s spend of %d %s: %w", g.spender, amount, assetSymbol, err)
	}
	defer func() {
		// Revocation is best effort: the swap outcome is already decided
		// and a revoke failure must not turn a settled conversion into an
		// error. It is logged loudly instead.
		if err := g.allowance.Approve(context.WithoutCancel(ctx), assetSymbol, g.spender, 0); err != nil {
			g.logger.Error().Err(err).
				Str("asset", assetSymbol).
				Str("spender", g.spender).
				Msg("allowance revoke failed, approval may linger")
		}
	}()

	path := []string{assetSymbol, g.reserveAsset}
	amounts, err := g.venue.SwapAssetForAsset(ctx, amount, 1, path, g.recipient, time.Now())
	if err != nil {
		return 0, fmt.Errorf("swap %s for %s: %w", assetSymbol, g.reserveAsset, err)
	}

	received := lastAmount(amounts)
	if received == 0 {
		return 0, ErrSwapYieldedZero
	}

	g.logger.Debug().
		Str("asset", assetSymbol).
		Int64("amount_in", amount).
		Int64("amount_out", received).
		Msg("asset conversion settled")

	return received, nil
}

func lastAmount(amounts []int64) int64 {
	if len(amounts) == 0 {
		return 0
	}
	return amounts[len(amounts)-1]
}
