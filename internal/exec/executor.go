// Package exec places reduce-only closes and fresh entries against the
// exchange, or simulates them when no signer is configured.
package exec

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"hl-signal-relay/internal/account"
	"hl-signal-relay/internal/hl/exchange"
	"hl-signal-relay/internal/metrics"
	"hl-signal-relay/internal/sizing"
)

type Status string

const (
	StatusSuccess   Status = "success"
	StatusSimulated Status = "simulated"
	StatusError     Status = "error"
)

// Result is the outcome of one executor operation, shaped for the
// webhook response body.
type Result struct {
	Status  Status         `json:"status"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

func errorResult(format string, args ...any) Result {
	return Result{Status: StatusError, Message: fmt.Sprintf(format, args...)}
}

type accountReader interface {
	Snapshot(ctx context.Context) (*account.Snapshot, error)
}

// OrderPlacer is the slice of the exchange client the executor needs.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, order exchange.OrderWire) (map[string]any, error)
}

type priceOracle interface {
	Price(ctx context.Context) (float64, error)
}

// Executor drives order placement for a single tracked asset. A nil
// order placer puts it in simulation mode: every operation runs its
// full read path but reports what would have been sent instead of
// sending it.
type Executor struct {
	reader   accountReader
	orders   OrderPlacer
	oracle   priceOracle
	metrics  *metrics.Metrics
	log      *zap.Logger
	symbol   string
	asset    int
	fraction float64

	minBalanceUSD float64
	dustThreshold float64
}

type Config struct {
	Symbol        string
	AssetIndex    int
	Utilization   float64
	MinBalanceUSD float64
	DustThreshold float64
}

func New(reader accountReader, orders OrderPlacer, oracle priceOracle, m *metrics.Metrics, log *zap.Logger, cfg Config) *Executor {
	return &Executor{
		reader:        reader,
		orders:        orders,
		oracle:        oracle,
		metrics:       m,
		log:           log,
		symbol:        cfg.Symbol,
		asset:         cfg.AssetIndex,
		fraction:      cfg.Utilization,
		minBalanceUSD: cfg.MinBalanceUSD,
		dustThreshold: cfg.DustThreshold,
	}
}

// Simulated reports whether the executor has no exchange client wired.
func (e *Executor) Simulated() bool { return e.orders == nil }

// CloseAll closes every tracked position above the dust threshold with
// reduce-only market orders. Closes are best effort: one failed close
// does not stop the rest, failures are logged and counted, and the call
// still reports success with what it managed to close.
func (e *Executor) CloseAll(ctx context.Context) Result {
	if e.Simulated() {
		return e.simulateCloseAll(ctx)
	}

	snap, err := e.reader.Snapshot(ctx)
	if err != nil {
		return errorResult("fetch account state: %v", err)
	}
	open := e.openPositions(snap)
	if len(open) == 0 {
		return Result{
			Status:  StatusSuccess,
			Message: "no positions to close",
			Data:    map[string]any{"closed": 0, "failed": 0, "positions": []map[string]any{}},
		}
	}

	var done []account.Position
	var failures []string
	for _, pos := range open {
		if err := e.closePosition(ctx, pos); err != nil {
			e.log.Error("close position failed",
				zap.String("symbol", pos.Symbol),
				zap.Float64("size", pos.Size),
				zap.Error(err))
			failures = append(failures, fmt.Sprintf("%s: %v", pos.Symbol, err))
			continue
		}
		done = append(done, pos)
		e.metrics.PositionsClosed.Inc()
	}

	msg := fmt.Sprintf("closed %d position(s)", len(done))
	if len(failures) > 0 {
		msg = fmt.Sprintf("closed %d of %d position(s), skipped: %s", len(done), len(open), strings.Join(failures, "; "))
	}
	return Result{
		Status:  StatusSuccess,
		Message: msg,
		Data:    map[string]any{"closed": len(done), "failed": len(failures), "positions": positionData(done)},
	}
}

// simulateCloseAll never touches the order endpoint. The account read is
// best effort: without a readable account it still reports what the call
// would have attempted.
func (e *Executor) simulateCloseAll(ctx context.Context) Result {
	snap, err := e.reader.Snapshot(ctx)
	if err != nil {
		return Result{
			Status:  StatusSimulated,
			Message: fmt.Sprintf("would close all open positions (account state unavailable: %v)", err),
			Data:    map[string]any{"closed": 0},
		}
	}
	open := e.openPositions(snap)
	return Result{
		Status:  StatusSimulated,
		Message: fmt.Sprintf("would close %d position(s)", len(open)),
		Data:    map[string]any{"closed": 0, "positions": positionData(open)},
	}
}

func (e *Executor) openPositions(snap *account.Snapshot) []account.Position {
	var open []account.Position
	for _, pos := range snap.Positions {
		if math.Abs(pos.Size) < e.dustThreshold {
			continue
		}
		open = append(open, pos)
	}
	return open
}

func (e *Executor) closePosition(ctx context.Context, pos account.Position) error {
	// A short closes with a buy, a long with a sell.
	isBuy := pos.Side == account.SideShort
	order, err := exchange.MarketOrderWire(e.asset, isBuy, math.Abs(pos.Size), true)
	if err != nil {
		return err
	}
	resp, err := e.orders.PlaceOrder(ctx, order)
	if err != nil {
		return err
	}
	if msg, bad := exchange.ResponseError(resp); bad {
		return fmt.Errorf("exchange rejected close: %s", msg)
	}
	return nil
}

// Open sizes a fresh position from the current withdrawable balance and
// places a market order in the given direction.
func (e *Executor) Open(ctx context.Context, isBuy bool) Result {
	if e.Simulated() {
		return e.simulateOpen(ctx, isBuy)
	}

	snap, err := e.reader.Snapshot(ctx)
	if err != nil {
		return errorResult("fetch account state: %v", err)
	}
	if snap.Withdrawable < e.minBalanceUSD {
		return errorResult("balance %.2f below minimum %.2f", snap.Withdrawable, e.minBalanceUSD)
	}

	price, err := e.oracle.Price(ctx)
	if err != nil {
		return errorResult("fetch price: %v", err)
	}

	size := sizing.Size(snap.Withdrawable, price, e.fraction)
	if size <= 0 {
		return errorResult("computed size is zero (balance %.2f, price %.2f)", snap.Withdrawable, price)
	}

	data := map[string]any{
		"symbol": e.symbol,
		"side":   sideLabel(isBuy),
		"size":   size,
		"price":  price,
	}

	order, err := exchange.MarketOrderWire(e.asset, isBuy, size, false)
	if err != nil {
		return errorResult("build order: %v", err)
	}
	resp, err := e.orders.PlaceOrder(ctx, order)
	if err != nil {
		e.metrics.OrdersFailed.Inc()
		return errorResult("place order: %v", err)
	}
	if msg, bad := exchange.ResponseError(resp); bad {
		e.metrics.OrdersFailed.Inc()
		return errorResult("exchange rejected order: %s", msg)
	}

	e.metrics.OrdersPlaced.Inc()
	if oid := exchange.OrderIDFromResponse(resp); oid != "" {
		data["order_id"] = oid
	}
	e.log.Info("order placed",
		zap.String("symbol", e.symbol),
		zap.String("side", sideLabel(isBuy)),
		zap.Float64("size", size),
		zap.Float64("price", price))
	return Result{
		Status:  StatusSuccess,
		Message: fmt.Sprintf("%s %v %s at %.2f", sideLabel(isBuy), size, e.symbol, price),
		Data:    data,
	}
}

// simulateOpen runs as much of the read path as it can but always
// answers simulated, whatever the account or price sources are doing.
func (e *Executor) simulateOpen(ctx context.Context, isBuy bool) Result {
	e.metrics.OrdersSimulated.Inc()
	data := map[string]any{
		"symbol": e.symbol,
		"side":   sideLabel(isBuy),
	}

	snap, err := e.reader.Snapshot(ctx)
	if err != nil {
		return Result{
			Status:  StatusSimulated,
			Message: fmt.Sprintf("would %s %s (account state unavailable: %v)", sideLabel(isBuy), e.symbol, err),
			Data:    data,
		}
	}

	price, err := e.oracle.Price(ctx)
	if err != nil {
		return Result{
			Status:  StatusSimulated,
			Message: fmt.Sprintf("would %s %s (no price available: %v)", sideLabel(isBuy), e.symbol, err),
			Data:    data,
		}
	}

	size := sizing.Size(snap.Withdrawable, price, e.fraction)
	data["size"] = size
	data["price"] = price
	return Result{
		Status:  StatusSimulated,
		Message: fmt.Sprintf("would %s %v %s at %.2f", sideLabel(isBuy), size, e.symbol, price),
		Data:    data,
	}
}

func sideLabel(isBuy bool) string {
	if isBuy {
		return "buy"
	}
	return "sell"
}

func positionData(positions []account.Position) []map[string]any {
	out := make([]map[string]any, 0, len(positions))
	for _, pos := range positions {
		out = append(out, map[string]any{
			"symbol": pos.Symbol,
			"size":   pos.Size,
			"side":   string(pos.Side),
		})
	}
	return out
}
