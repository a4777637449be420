package rates

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrUnknownCurrency = errors.New("currency exchange rate information does not exist")

type Source interface {
	All(ctx context.Context) (map[string]decimal.Decimal, error)
}

// Provider converts between currencies through their euro rates.
type Provider struct {
	src Source
}

func NewProvider(src Source) *Provider {
	return &Provider{src: src}
}

// Rate returns how many units of target one unit of base buys.
func (p *Provider) Rate(ctx context.Context, base, target string) (decimal.Decimal, error) {
	if base == target {
		return decimal.NewFromInt(1), nil
	}
	all, err := p.src.All(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	b, ok := all[base]
	if !ok || b.IsZero() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownCurrency, base)
	}
	t, ok := all[target]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownCurrency, target)
	}
	return t.DivRound(b, 10), nil
}
