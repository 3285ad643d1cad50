package fixedpoint_test

import (
	"testing"

	"ReserveVault/internal/fixedpoint"
)

// ============================================================================
// Test: ToInternalBase
// ============================================================================

func TestToInternalBase_SamePrecision(t *testing.T) {
	got, err := fixedpoint.ToInternalBase(1_234_567, 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1_234_567 {
		t.Errorf("got %d, want %d", got, 1_234_567)
	}
}

func TestToInternalBase_ScaleUp(t *testing.T) {
	tests := []struct {
		name     string
		amount   int64
		decimals int
		want     int64
	}{
		{"whole units", 5, 0, 5_000_000},
		{"two decimals", 123, 2, 1_230_000},
		{"negative scales symmetrically", -7, 0, -7_000_000},
		{"zero stays zero", 0, 3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fixedpoint.ToInternalBase(tt.amount, tt.decimals)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestToInternalBase_ScaleDownTruncates(t *testing.T) {
	tests := []struct {
		name     string
		amount   int64
		decimals int
		want     int64
	}{
		{"eighteen decimals", 1_999_999_999_999, 18, 1},
		{"nine decimals exact", 5_000, 9, 5},
		{"nine decimals with remainder", 5_999, 9, 5},
		{"sub-precision amount truncates to zero", 999, 9, 0},
		{"negative truncates toward zero", -5_999, 9, -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fixedpoint.ToInternalBase(tt.amount, tt.decimals)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestToInternalBase_DecimalsOutOfRange(t *testing.T) {
	if _, err := fixedpoint.ToInternalBase(1, -1); err == nil {
		t.Error("expected error for negative decimals")
	}
	if _, err := fixedpoint.ToInternalBase(1, 19); err == nil {
		t.Error("expected error for decimals above 18")
	}
}

func TestToInternalBase_Overflow(t *testing.T) {
	// 2^62 * 10^6 does not fit in int64.
	if _, err := fixedpoint.ToInternalBase(1<<62, 0); err == nil {
		t.Error("expected overflow error")
	}
}

// Scaling down then back up never increases the value, so no depositor
// can come out ahead of what they put in.
func TestToInternalBase_TruncationNeverGains(t *testing.T) {
	amounts := []int64{1, 999, 1_000, 123_456_789, 9_999_999_999_999}

	for _, amount := range amounts {
		for decimals := 7; decimals <= 18; decimals++ {
			normalized, err := fixedpoint.ToInternalBase(amount, decimals)
			if err != nil {
				t.Fatalf("amount=%d decimals=%d: %v", amount, decimals, err)
			}
			factor, scaleUp := fixedpoint.ScaleFactor(decimals)
			if scaleUp {
				t.Fatalf("decimals=%d should scale down", decimals)
			}
			if normalized*factor > amount {
				t.Errorf("amount=%d decimals=%d: round trip %d exceeds input",
					amount, decimals, normalized*factor)
			}
		}
	}
}

// ============================================================================
// Test: MulDiv
// ============================================================================

func TestMulDiv(t *testing.T) {
	tests := []struct {
		a, b, den int64
		want      int64
	}{
		{10, 3, 2, 15},
		// truncates
		{7, 1, 2, 3},
		// the intermediate product does not fit in int64
		{1 << 40, 1 << 40, 1 << 40, 1 << 40},
		{-10, 3, 2, -15},
	}

	for _, tt := range tests {
		if got := fixedpoint.MulDiv(tt.a, tt.b, tt.den); got != tt.want {
			t.Errorf("MulDiv(%d, %d, %d) = %d, want %d", tt.a, tt.b, tt.den, got, tt.want)
		}
	}
}
