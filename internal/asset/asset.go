package asset

import (
	"fmt"
	"sort"
	"strings"
)

// NativeSymbol identifies the chain-native value unit. It is not a
// registered asset: the native deposit path converts it before the ledger
// ever sees it, and the generic asset entry point rejects it.
const NativeSymbol = "NATIVE"

// Asset describes a value-bearing asset the vault can receive.
type Asset struct {
	Symbol   string
	Decimals int
}

// Registry maps asset symbols to their native precision. Instances are
// built once from configuration and never mutated afterwards, so reads
// need no locking.
type Registry struct {
	assets map[string]Asset
}

// NewRegistry builds a registry from the configured asset set.
func NewRegistry(assets []Asset) (*Registry, error) {
	r := &Registry{assets: make(map[string]Asset, len(assets))}
	for _, a := range assets {
		sym := strings.ToUpper(strings.TrimSpace(a.Symbol))
		if sym == "" {
			return nil, fmt.Errorf("asset with empty symbol")
		}
		if sym == NativeSymbol {
			return nil, fmt.Errorf("%s is reserved for the native unit and cannot be registered", NativeSymbol)
		}
		if a.Decimals < 0 || a.Decimals > 18 {
			return nil, fmt.Errorf("asset %s: decimals %d out of range [0,18]", sym, a.Decimals)
		}
		if _, dup := r.assets[sym]; dup {
			return nil, fmt.Errorf("asset %s registered twice", sym)
		}
		r.assets[sym] = Asset{Symbol: sym, Decimals: a.Decimals}
	}
	return r, nil
}

// Get returns the asset for a symbol.
func (r *Registry) Get(symbol string) (Asset, bool) {
	a, ok := r.assets[strings.ToUpper(symbol)]
	return a, ok
}

// Decimals returns the native precision of a registered asset.
func (r *Registry) Decimals(symbol string) (int, error) {
	a, ok := r.Get(symbol)
	if !ok {
		return 0, fmt.Errorf("unknown asset %q", symbol)
	}
	return a.Decimals, nil
}

// Symbols returns all registered symbols in sorted order.
func (r *Registry) Symbols() []string {
	out := make([]string, 0, len(r.assets))
	for sym := range r.assets {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
