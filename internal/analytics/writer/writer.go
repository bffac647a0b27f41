package writer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/grocerymart-backend/internal/analytics/types"
)

// Backoff bounds insert retries. Zero fields take the defaults below.
type Backoff struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
}

func (b Backoff) withDefaults() Backoff {
	if b.Attempts <= 0 {
		b.Attempts = 3
	}
	if b.Initial <= 0 {
		b.Initial = 250 * time.Millisecond
	}
	if b.Max < b.Initial {
		b.Max = max(2*time.Second, b.Initial)
	}
	return b
}

type putter interface {
	Put(ctx context.Context, table string, rows any) error
}

// Writer streams order event rows one message at a time, so an acked pub/sub
// message always has its row in BigQuery.
type Writer struct {
	dst     putter
	table   string
	backoff Backoff
}

func New(dst putter, table string, backoff Backoff) (*Writer, error) {
	if dst == nil {
		return nil, errors.New("bigquery client required")
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return nil, errors.New("order events table is required")
	}
	return &Writer{dst: dst, table: table, backoff: backoff.withDefaults()}, nil
}

// InsertOrderEvent writes row, retrying transient failures.
func (w *Writer) InsertOrderEvent(ctx context.Context, row types.OrderEventRow) error {
	rows := []*cbigquery.StructSaver{row.Saver()}
	delay := w.backoff.Initial
	for attempt := 1; ; attempt++ {
		err := w.dst.Put(ctx, w.table, rows)
		if err == nil {
			return nil
		}
		if attempt >= w.backoff.Attempts || !Transient(err) {
			return fmt.Errorf("insert into %s (attempt %d): %w", w.table, attempt, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = min(2*delay, w.backoff.Max)
	}
}

// Transient reports whether every underlying failure in err is worth retrying.
func Transient(err error) bool {
	leaves := flatten(err)
	if len(leaves) == 0 {
		return false
	}
	for _, leaf := range leaves {
		if !transientLeaf(leaf) {
			return false
		}
	}
	return true
}

// flatten expands the multi-row error types returned by the inserter.
func flatten(err error) []error {
	if err == nil {
		return nil
	}
	var multi cbigquery.MultiError
	if errors.As(err, &multi) {
		return flattenAll(multi)
	}
	var put cbigquery.PutMultiError
	if errors.As(err, &put) {
		var out []error
		for _, rowErr := range put {
			out = append(out, flattenAll(rowErr.Errors)...)
		}
		return out
	}
	var row *cbigquery.RowInsertionError
	if errors.As(err, &row) {
		return flattenAll(row.Errors)
	}
	return []error{err}
}

func flattenAll(errs []error) []error {
	var out []error
	for _, err := range errs {
		out = append(out, flatten(err)...)
	}
	return out
}

func transientLeaf(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusRequestTimeout, http.StatusTooManyRequests,
			http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded, codes.Aborted, codes.Internal:
			return true
		}
	}
	return false
}
