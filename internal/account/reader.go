package account

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"hl-signal-relay/internal/hl/rest"

	"go.uber.org/zap"
)

// Side of a held position, derived from the sign of its size.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

type Position struct {
	Symbol string
	Size   float64
	Side   Side
}

// Snapshot is the account state at one point in time. It is fetched
// fresh for every order-related operation and never cached.
type Snapshot struct {
	Withdrawable float64
	Positions    []Position
}

// Reader pulls account state from the exchange for a single wallet and
// keeps only positions on the tracked symbol.
type Reader struct {
	rest   *rest.Client
	log    *zap.Logger
	user   string
	symbol string
}

func NewReader(restClient *rest.Client, log *zap.Logger, user, symbol string) *Reader {
	return &Reader{
		rest:   restClient,
		log:    log,
		user:   strings.TrimSpace(user),
		symbol: symbol,
	}
}

// Snapshot queries clearinghouseState and parses withdrawable balance
// plus positions for the tracked symbol. Any failure yields an error and
// no partial snapshot.
func (r *Reader) Snapshot(ctx context.Context) (*Snapshot, error) {
	if r.rest == nil {
		return nil, errors.New("rest client is required")
	}
	if r.user == "" {
		return nil, errors.New("account user is required")
	}
	state, err := r.rest.Info(ctx, rest.InfoRequest{Type: "clearinghouseState", User: r.user})
	if err != nil {
		return nil, fmt.Errorf("clearinghouse state: %w", err)
	}
	withdrawable, ok := floatFromAny(state["withdrawable"])
	if !ok {
		return nil, errors.New("clearinghouse state missing withdrawable balance")
	}
	if withdrawable < 0 {
		return nil, fmt.Errorf("negative withdrawable balance %v", withdrawable)
	}
	return &Snapshot{
		Withdrawable: withdrawable,
		Positions:    parsePositions(state, r.symbol),
	}, nil
}

func parsePositions(payload map[string]any, symbol string) []Position {
	raw, ok := payload["assetPositions"].([]any)
	if !ok || len(raw) == 0 {
		return nil
	}
	var positions []Position
	for _, item := range raw {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		pos := entry
		if nested, ok := entry["position"].(map[string]any); ok {
			pos = nested
		}
		coin := stringFromAny(pos["coin"])
		if coin == "" {
			coin = stringFromAny(pos["symbol"])
		}
		if coin != symbol {
			continue
		}
		size, ok := floatFromAny(pos["szi"])
		if !ok {
			if size, ok = floatFromAny(pos["size"]); !ok {
				continue
			}
		}
		positions = append(positions, Position{
			Symbol: coin,
			Size:   size,
			Side:   sideForSize(size),
		})
	}
	return positions
}

func sideForSize(size float64) Side {
	if size < 0 {
		return SideShort
	}
	return SideLong
}

func stringFromAny(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	default:
		return ""
	}
}

func floatFromAny(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
