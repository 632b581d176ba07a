// Package sequence issues per-year, per-document-type numbers such as "2025-007".
package sequence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/stockflow/internal/platform/db"
	"github.com/odyssey-erp/stockflow/internal/shared"
)

// DocType names a numbered document series.
type DocType string

const (
	DocInvoice DocType = "invoice"
	DocQuote   DocType = "quote"
)

// Valid reports whether t is a known series.
func (t DocType) Valid() bool {
	return t == DocInvoice || t == DocQuote
}

var (
	// ErrSequenceUnavailable indicates the counter failed and fallback is disabled.
	ErrSequenceUnavailable = fmt.Errorf("%w: document sequence unavailable", shared.ErrUnavailable)
	// ErrInvalidDocType indicates an unknown series.
	ErrInvalidDocType = fmt.Errorf("%w: document type must be invoice or quote", shared.ErrValidation)
	// ErrInvalidYear indicates a year outside 1000-9999.
	ErrInvalidYear = fmt.Errorf("%w: year must have four digits", shared.ErrValidation)
)

// Counter atomically increments and returns the counter of a series.
type Counter interface {
	Next(ctx context.Context, docType DocType, year int) (int64, error)
}

// MetricsPort counts issued numbers.
type MetricsPort interface {
	ObserveSequence(docType string, fallback bool)
}

// Config toggles the timestamp fallback.
type Config struct {
	Fallback bool
}

// Generator formats counter values into document numbers.
type Generator struct {
	counter Counter
	cfg     Config
	metrics MetricsPort
	logger  *slog.Logger
	now     func() time.Time
}

// NewGenerator builds Generator. metrics may be nil.
func NewGenerator(counter Counter, cfg Config, metrics MetricsPort, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{counter: counter, cfg: cfg, metrics: metrics, logger: logger, now: time.Now}
}

// NextNumber issues the next number of the series.
func (g *Generator) NextNumber(ctx context.Context, docType DocType, year int) (string, error) {
	if err := validate(docType, year); err != nil {
		return "", err
	}
	n, err := g.counter.Next(ctx, docType, year)
	return g.finish(docType, year, n, err)
}

// NextInTx issues the next number inside tx, so a rolled back document also
// rolls back its number. The increment runs under a savepoint; a failed
// increment leaves tx usable for the fallback number. Serialization failures
// are returned as is so the caller replays the whole transaction.
func (g *Generator) NextInTx(ctx context.Context, tx pgx.Tx, docType DocType, year int) (string, error) {
	if err := validate(docType, year); err != nil {
		return "", err
	}
	n, err := nextInSavepoint(ctx, tx, docType, year)
	if db.IsRetryable(err) {
		return "", err
	}
	return g.finish(docType, year, n, err)
}

func nextInSavepoint(ctx context.Context, tx pgx.Tx, docType DocType, year int) (int64, error) {
	sp, err := tx.Begin(ctx)
	if err != nil {
		return 0, err
	}
	n, err := NewPGCounter(sp).Next(ctx, docType, year)
	if err != nil {
		_ = sp.Rollback(ctx)
		return 0, err
	}
	return n, sp.Commit(ctx)
}

func (g *Generator) finish(docType DocType, year int, n int64, err error) (string, error) {
	if err == nil {
		if g.metrics != nil {
			g.metrics.ObserveSequence(string(docType), false)
		}
		return Format(year, n), nil
	}
	if !g.cfg.Fallback {
		g.logger.Error("sequence counter failed", slog.String("doc_type", string(docType)), slog.Int("year", year), slog.Any("error", err))
		return "", fmt.Errorf("%w: %v", ErrSequenceUnavailable, err)
	}
	number := Fallback(year, g.now())
	g.logger.Warn("sequence counter failed, using timestamp number",
		slog.String("doc_type", string(docType)),
		slog.Int("year", year),
		slog.String("number", number),
		slog.Any("error", err),
	)
	if g.metrics != nil {
		g.metrics.ObserveSequence(string(docType), true)
	}
	return number, nil
}

// Format renders a counter value as "YYYY-NNN". Values above 999 keep
// every digit.
func Format(year int, n int64) string {
	return fmt.Sprintf("%04d-%03d", year, n)
}

// Fallback derives a number from the last three digits of the millisecond
// clock. It is collision resistant, not sequential.
func Fallback(year int, now time.Time) string {
	return Format(year, now.UnixMilli()%1000)
}

func validate(docType DocType, year int) error {
	if !docType.Valid() {
		return ErrInvalidDocType
	}
	if year < 1000 || year > 9999 {
		return ErrInvalidYear
	}
	return nil
}
