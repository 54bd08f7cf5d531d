package oracle

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"

	"hl-signal-relay/internal/hl/rest"
)

// MidSource quotes the exchange mid price from the allMids info endpoint.
type MidSource struct {
	rest   *rest.Client
	symbol string
}

func NewMidSource(rc *rest.Client, symbol string) *MidSource {
	return &MidSource{rest: rc, symbol: symbol}
}

func (s *MidSource) Name() string { return "allMids" }

func (s *MidSource) Price(ctx context.Context) (float64, error) {
	mids, err := s.rest.Info(ctx, rest.InfoRequest{Type: "allMids"})
	if err != nil {
		return 0, err
	}
	raw, ok := mids[s.symbol]
	if !ok {
		return 0, fmt.Errorf("no mid for %s", s.symbol)
	}
	str, ok := raw.(string)
	if !ok {
		return 0, fmt.Errorf("unexpected mid type %T for %s", raw, s.symbol)
	}
	price, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return 0, fmt.Errorf("parse mid %q: %w", str, err)
	}
	return price, nil
}

// OracleSource quotes the exchange oracle price from metaAndAssetCtxs.
// The response is a two-element array: universe metadata followed by
// per-asset contexts indexed the same way.
type OracleSource struct {
	rest       *rest.Client
	assetIndex int
}

func NewOracleSource(rc *rest.Client, assetIndex int) *OracleSource {
	return &OracleSource{rest: rc, assetIndex: assetIndex}
}

func (s *OracleSource) Name() string { return "metaAndAssetCtxs" }

func (s *OracleSource) Price(ctx context.Context) (float64, error) {
	raw, err := s.rest.InfoAny(ctx, rest.InfoRequest{Type: "metaAndAssetCtxs"})
	if err != nil {
		return 0, err
	}
	parts, ok := raw.([]any)
	if !ok || len(parts) < 2 {
		return 0, fmt.Errorf("unexpected metaAndAssetCtxs shape %T", raw)
	}
	ctxs, ok := parts[1].([]any)
	if !ok {
		return 0, fmt.Errorf("unexpected asset ctxs shape %T", parts[1])
	}
	if s.assetIndex < 0 || s.assetIndex >= len(ctxs) {
		return 0, fmt.Errorf("asset index %d out of range (%d ctxs)", s.assetIndex, len(ctxs))
	}
	assetCtx, ok := ctxs[s.assetIndex].(map[string]any)
	if !ok {
		return 0, fmt.Errorf("unexpected asset ctx shape %T", ctxs[s.assetIndex])
	}
	for _, key := range []string{"oraclePx", "markPx"} {
		str, ok := assetCtx[key].(string)
		if !ok {
			continue
		}
		price, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return 0, fmt.Errorf("parse %s %q: %w", key, str, err)
		}
		return price, nil
	}
	return 0, fmt.Errorf("asset ctx %d has no oraclePx or markPx", s.assetIndex)
}

// SpotSource quotes an external spot-price API shaped like CoinGecko's
// simple price endpoint: {"<asset>": {"usd": <price>}}.
type SpotSource struct {
	http  *resty.Client
	url   string
	asset string
}

func NewSpotSource(url, asset string) *SpotSource {
	return &SpotSource{
		http:  resty.New().SetRetryCount(1),
		url:   url,
		asset: asset,
	}
}

func (s *SpotSource) Name() string { return "spot-api" }

func (s *SpotSource) Price(ctx context.Context) (float64, error) {
	var body map[string]map[string]float64
	resp, err := s.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"ids":           s.asset,
			"vs_currencies": "usd",
		}).
		SetResult(&body).
		ForceContentType("application/json").
		Get(s.url)
	if err != nil {
		return 0, err
	}
	if resp.IsError() {
		return 0, fmt.Errorf("spot api status %d", resp.StatusCode())
	}
	quote, ok := body[s.asset]
	if !ok {
		return 0, fmt.Errorf("no quote for %s", s.asset)
	}
	price, ok := quote["usd"]
	if !ok {
		return 0, fmt.Errorf("no usd quote for %s", s.asset)
	}
	return price, nil
}
