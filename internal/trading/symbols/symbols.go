// Package symbols resolves instrument metadata from the terminal. Constraints
// are fetched fresh on every call; the venue may change them at any time.
package symbols

import (
	"context"
	"strings"

	"github.com/Gabriel-Rockson/mt5-gateway/internal/core"
	apperrors "github.com/Gabriel-Rockson/mt5-gateway/pkg/errors"
)

// Resolve returns the symbol's trading constraints, selecting the symbol into
// the terminal's watch list if it is not yet visible. Unknown symbols come
// back as not-found.
func Resolve(ctx context.Context, term core.Terminal, name string) (*core.SymbolInfo, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return nil, apperrors.Validation("Symbol is required")
	}

	info, err := term.SymbolInfo(ctx, name)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, apperrors.NotFound("Symbol", name)
	}
	if !info.Visible {
		if err := term.SymbolSelect(ctx, name, true); err != nil {
			return nil, apperrors.NotFound("Symbol", name)
		}
	}
	return info, nil
}

// Tick returns the current quote for an already-resolved symbol. The terminal
// answers with no data when the instrument has no current quote.
func Tick(ctx context.Context, term core.Terminal, name string) (*core.Tick, error) {
	tick, err := term.SymbolTick(ctx, name)
	if err != nil {
		return nil, err
	}
	if tick == nil {
		return nil, apperrors.Validationf("Failed to get current price for %s", name)
	}
	return tick, nil
}
