// Package relay authenticates incoming TradingView alerts and turns
// them into the close-then-open order sequence.
package relay

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"hl-signal-relay/internal/exec"
	"hl-signal-relay/internal/metrics"
)

const (
	ActionBuy   = "buy"
	ActionSell  = "sell"
	ActionClose = "close"
)

// Alert is the webhook payload TradingView posts. Unknown fields are
// ignored so alert templates can carry extra context.
type Alert struct {
	Action     string `json:"action"`
	Passphrase string `json:"passphrase"`
	Symbol     string `json:"symbol,omitempty"`
}

type executor interface {
	CloseAll(ctx context.Context) exec.Result
	Open(ctx context.Context, isBuy bool) exec.Result
}

// Recorder receives a copy of every processed alert for the audit log.
// Implementations must not block.
type Recorder interface {
	Record(action string, result exec.Result, elapsed time.Duration)
}

// Notifier pushes a human-readable line about an executed order.
type Notifier interface {
	Notify(text string)
}

// Processor serializes alert handling for the single tracked account:
// one alert runs its full close-then-open sequence before the next
// starts.
type Processor struct {
	exec       executor
	metrics    *metrics.Metrics
	log        *zap.Logger
	secret     string
	settleWait time.Duration

	recorder Recorder
	notifier Notifier

	mu sync.Mutex
}

func NewProcessor(ex executor, m *metrics.Metrics, log *zap.Logger, secret string, settleWait time.Duration) *Processor {
	return &Processor{
		exec:       ex,
		metrics:    m,
		log:        log,
		secret:     secret,
		settleWait: settleWait,
	}
}

func (p *Processor) SetRecorder(r Recorder) { p.recorder = r }
func (p *Processor) SetNotifier(n Notifier) { p.notifier = n }

// Process runs one alert end to end and always returns a Result, never
// panics outward.
func (p *Processor) Process(ctx context.Context, alert Alert) exec.Result {
	start := time.Now()
	p.metrics.WebhooksReceived.Inc()

	action := strings.ToLower(strings.TrimSpace(alert.Action))

	if !p.authenticate(alert.Passphrase) {
		p.metrics.WebhooksRejected.Inc()
		p.log.Warn("alert rejected: bad passphrase", zap.String("action", action))
		return exec.Result{Status: exec.StatusError, Message: "invalid passphrase"}
	}

	switch action {
	case ActionBuy, ActionSell, ActionClose:
	default:
		p.metrics.WebhooksRejected.Inc()
		return exec.Result{Status: exec.StatusError, Message: fmt.Sprintf("unknown action %q", alert.Action)}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	result := p.run(ctx, action)
	p.log.Info("alert processed",
		zap.String("action", action),
		zap.String("status", string(result.Status)),
		zap.Duration("elapsed", time.Since(start)))

	if p.recorder != nil {
		p.recorder.Record(action, result, time.Since(start))
	}
	if p.notifier != nil && result.Status == exec.StatusSuccess {
		p.notifier.Notify(fmt.Sprintf("%s: %s", action, result.Message))
	}
	return result
}

func (p *Processor) authenticate(passphrase string) bool {
	return subtle.ConstantTimeCompare([]byte(passphrase), []byte(p.secret)) == 1
}

func (p *Processor) run(ctx context.Context, action string) exec.Result {
	closed := p.exec.CloseAll(ctx)
	if action == ActionClose {
		return closed
	}

	// A failed close does not stop the entry: the exchange nets the new
	// order against whatever is still open.
	if closed.Status == exec.StatusError {
		p.log.Warn("close-all failed before entry, proceeding", zap.String("detail", closed.Message))
	}

	if err := p.settle(ctx); err != nil {
		return exec.Result{Status: exec.StatusError, Message: fmt.Sprintf("canceled while settling: %v", err)}
	}
	return p.exec.Open(ctx, action == ActionBuy)
}

// settle gives the exchange time to release margin from the closes
// before the balance is read again for sizing.
func (p *Processor) settle(ctx context.Context) error {
	if p.settleWait <= 0 {
		return nil
	}
	timer := time.NewTimer(p.settleWait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
