package sequence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockflow/internal/platform/httpx"
	"github.com/odyssey-erp/stockflow/internal/shared"
)

type memoryCounter struct {
	mu     sync.Mutex
	values map[string]int64
	err    error
}

func (c *memoryCounter) Next(ctx context.Context, docType DocType, year int) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	if c.values == nil {
		c.values = make(map[string]int64)
	}
	key := fmt.Sprintf("%s/%d", docType, year)
	c.values[key]++
	return c.values[key], nil
}

type recordingMetrics struct {
	issued    int
	fallbacks int
}

func (m *recordingMetrics) ObserveSequence(docType string, fallback bool) {
	m.issued++
	if fallback {
		m.fallbacks++
	}
}

var numberPattern = regexp.MustCompile(`^\d{4}-\d{3}$`)

func quiet() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestFirstQuotesOfYear(t *testing.T) {
	gen := NewGenerator(&memoryCounter{}, Config{Fallback: true}, nil, quiet())
	ctx := context.Background()

	first, err := gen.NextNumber(ctx, DocQuote, 2025)
	require.NoError(t, err)
	second, err := gen.NextNumber(ctx, DocQuote, 2025)
	require.NoError(t, err)
	require.Equal(t, "2025-001", first)
	require.Equal(t, "2025-002", second)
}

func TestSequencesAreMonotonicPerSeries(t *testing.T) {
	gen := NewGenerator(&memoryCounter{}, Config{}, nil, quiet())
	ctx := context.Background()

	_, err := gen.NextNumber(ctx, DocQuote, 2025)
	require.NoError(t, err)

	prev := 0
	for i := 0; i < 50; i++ {
		number, err := gen.NextNumber(ctx, DocInvoice, 2025)
		require.NoError(t, err)
		require.Regexp(t, numberPattern, number)
		suffix, err := strconv.Atoi(strings.SplitN(number, "-", 2)[1])
		require.NoError(t, err)
		require.Equal(t, prev+1, suffix)
		prev = suffix
	}

	number, err := gen.NextNumber(ctx, DocInvoice, 2026)
	require.NoError(t, err)
	require.Equal(t, "2026-001", number)
}

func TestFallbackUsesClock(t *testing.T) {
	metrics := &recordingMetrics{}
	gen := NewGenerator(&memoryCounter{err: errors.New("permission denied")}, Config{Fallback: true}, metrics, quiet())
	gen.now = func() time.Time { return time.UnixMilli(1735689600042) }

	number, err := gen.NextNumber(context.Background(), DocInvoice, 2025)
	require.NoError(t, err)
	require.Equal(t, "2025-042", number)
	require.Regexp(t, numberPattern, number)
	require.Equal(t, 1, metrics.fallbacks)
}

func TestFallbackDisabled(t *testing.T) {
	gen := NewGenerator(&memoryCounter{err: errors.New("connection refused")}, Config{}, nil, quiet())

	_, err := gen.NextNumber(context.Background(), DocInvoice, 2025)
	require.ErrorIs(t, err, ErrSequenceUnavailable)
	require.ErrorIs(t, err, shared.ErrUnavailable)
}

func TestInvalidSeries(t *testing.T) {
	counter := &memoryCounter{}
	gen := NewGenerator(counter, Config{Fallback: true}, nil, quiet())
	ctx := context.Background()

	_, err := gen.NextNumber(ctx, "receipt", 2025)
	require.ErrorIs(t, err, ErrInvalidDocType)
	_, err = gen.NextNumber(ctx, DocQuote, 25)
	require.ErrorIs(t, err, ErrInvalidYear)
	require.Empty(t, counter.values)
}

func TestFormatKeepsLargeCounters(t *testing.T) {
	require.Equal(t, "2025-007", Format(2025, 7))
	require.Equal(t, "2025-999", Format(2025, 999))
	require.Equal(t, "2025-1000", Format(2025, 1000))
}

func TestConcurrentCallersGetDistinctNumbers(t *testing.T) {
	gen := NewGenerator(&memoryCounter{}, Config{}, nil, quiet())
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[string]bool{}
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			number, err := gen.NextNumber(context.Background(), DocInvoice, 2025)
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			seen[number] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	require.Len(t, seen, 20)
}

func TestHandlerNext(t *testing.T) {
	gen := NewGenerator(&memoryCounter{}, Config{}, nil, quiet())
	r := chi.NewRouter()
	r.Use(httpx.ActorMiddleware)
	r.Route("/sequences", NewHandler(quiet(), gen).MountRoutes)

	send := func(path, role string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set(shared.HeaderUserID, "u-1")
		req.Header.Set(shared.HeaderUserRole, role)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := send("/sequences/quote/2025/next", shared.RoleAdmin)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"number":"2025-001"}`, rec.Body.String())

	require.Equal(t, http.StatusBadRequest, send("/sequences/receipt/2025/next", shared.RoleAdmin).Code)
	require.Equal(t, http.StatusBadRequest, send("/sequences/quote/abc/next", shared.RoleAdmin).Code)
	require.Equal(t, http.StatusForbidden, send("/sequences/quote/2025/next", shared.RoleStaff).Code)
}
