package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Source produces one price quote for the tracked symbol.
type Source interface {
	Name() string
	Price(ctx context.Context) (float64, error)
}

// Oracle tries its sources in priority order and returns the first
// strictly positive price. A source that errors or quotes zero is
// skipped. When every source fails the behavior depends on the
// configured fallback: a positive constant is returned as-is, zero
// propagates the failure.
type Oracle struct {
	sources       []Source
	sourceTimeout time.Duration
	fallbackPrice float64
	log           *zap.Logger
}

var ErrAllSourcesFailed = errors.New("all price sources failed")

func New(sources []Source, sourceTimeout time.Duration, fallbackPrice float64, log *zap.Logger) *Oracle {
	if sourceTimeout <= 0 {
		sourceTimeout = 5 * time.Second
	}
	return &Oracle{
		sources:       sources,
		sourceTimeout: sourceTimeout,
		fallbackPrice: fallbackPrice,
		log:           log,
	}
}

func (o *Oracle) Price(ctx context.Context) (float64, error) {
	for _, source := range o.sources {
		price, err := o.query(ctx, source)
		if err != nil {
			o.log.Warn("price source failed", zap.String("source", source.Name()), zap.Error(err))
			continue
		}
		if price <= 0 {
			o.log.Warn("price source returned non-positive price", zap.String("source", source.Name()), zap.Float64("price", price))
			continue
		}
		return price, nil
	}
	if o.fallbackPrice > 0 {
		o.log.Warn("all price sources failed, using fallback price", zap.Float64("price", o.fallbackPrice))
		return o.fallbackPrice, nil
	}
	return 0, ErrAllSourcesFailed
}

func (o *Oracle) query(ctx context.Context, source Source) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, o.sourceTimeout)
	defer cancel()
	price, err := source.Price(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", source.Name(), err)
	}
	return price, nil
}
