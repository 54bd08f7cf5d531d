// Package audit keeps a best-effort Postgres log of processed alerts.
// Writes happen off the webhook path; a full queue drops entries rather
// than slowing order placement.
package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"hl-signal-relay/internal/config"
	"hl-signal-relay/internal/exec"
)

const writeTimeout = 3 * time.Second

type Execution struct {
	Time    time.Time
	Action  string
	Status  string
	Message string
	Elapsed time.Duration
}

type Writer struct {
	db      *sql.DB
	log     *zap.Logger
	schema  string
	queue   chan Execution
	started atomic.Bool
	dropped atomic.Uint64
}

// New returns nil when auditing is disabled; a nil *Writer is safe to
// use everywhere.
func New(cfg config.AuditConfig, log *zap.Logger) (*Writer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("audit dsn is required")
	}
	schema := strings.TrimSpace(cfg.Schema)
	if schema == "" {
		schema = "public"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	w := &Writer{
		db:     db,
		log:    log,
		schema: schema,
		queue:  make(chan Execution, queueSize),
	}
	if err := w.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return w, nil
}

func (w *Writer) Start(ctx context.Context) {
	if w == nil {
		return
	}
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	go w.run(ctx)
}

func (w *Writer) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}

// Record satisfies relay.Recorder.
func (w *Writer) Record(action string, result exec.Result, elapsed time.Duration) {
	if w == nil {
		return
	}
	entry := Execution{
		Time:    time.Now().UTC(),
		Action:  action,
		Status:  string(result.Status),
		Message: result.Message,
		Elapsed: elapsed,
	}
	select {
	case w.queue <- entry:
	default:
		if w.dropped.Add(1) == 1 && w.log != nil {
			w.log.Warn("audit queue full, dropping entries")
		}
	}
}

func (w *Writer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case entry := <-w.queue:
			w.write(ctx, entry)
		}
	}
}

func (w *Writer) ensureSchema(ctx context.Context) error {
	if w.schema != "public" {
		if err := w.exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", w.schema)); err != nil {
			return err
		}
	}
	return w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		action TEXT NOT NULL,
		status TEXT NOT NULL,
		message TEXT NOT NULL,
		elapsed_ms DOUBLE PRECISION NOT NULL
	)`, w.table("relay_executions")))
}

func (w *Writer) write(ctx context.Context, entry Execution) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (ts, action, status, message, elapsed_ms)
		VALUES ($1, $2, $3, $4, $5)`, w.table("relay_executions"))
	if _, err := w.db.ExecContext(ctx, query,
		entry.Time,
		entry.Action,
		entry.Status,
		entry.Message,
		float64(entry.Elapsed)/float64(time.Millisecond),
	); err != nil && w.log != nil {
		w.log.Warn("audit write failed", zap.Error(err))
	}
}

func (w *Writer) exec(ctx context.Context, query string) error {
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *Writer) table(name string) string {
	if w.schema == "public" {
		return name
	}
	return w.schema + "." + name
}
