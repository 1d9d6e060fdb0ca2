package storage

// This file implements a generic, batched loader that drains typed rows from a
// channel and invokes a provided bulk-insert function (CopyFn) per batch.
//
// Backends implement CopyFn with their most efficient primitive (ClickHouse
// native batches, Postgres COPY, MSSQL bulk copy, multi-row INSERT).
//
// Logging: on every successful flush, a concise progress line is emitted with
// running totals and instantaneous rows/sec since the previous flush.

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/keatumal/yandex-metrika-logs/internal/metrics"
)

// CopyFn abstracts a backend's bulk insert capability. Implementations insert
// the provided rows (aligned to columns) and return the number of rows
// reported as inserted. Repository.CopyFrom satisfies it.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// LoadBatches drains typed rows from in, groups them into batches of size
// batchSize, and calls copyFn for each non-empty batch. It returns the total
// number of rows reported by copyFn and the first error encountered; batches
// committed before a failure stay committed. job labels the batch and row
// metrics.
//
// Every row sent on in must be its own slice: rows are retained until their
// batch is flushed.
func LoadBatches(
	ctx context.Context,
	job string,
	columns []string,
	in <-chan []any,
	batchSize int,
	copyFn CopyFn,
) (int64, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("batchSize must be > 0")
	}
	if copyFn == nil {
		return 0, fmt.Errorf("copyFn must not be nil")
	}

	var (
		total       int64
		batches     int64
		batch       = make([][]any, 0, batchSize)
		start       = time.Now()
		lastFlushTS = start
		lastTotal   int64
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		size := len(batch)
		n, err := copyFn(ctx, columns, batch)
		total += n

		// Reuse allocated slice; keep capacity to avoid churn.
		batch = batch[:0]

		if err != nil {
			log.Printf("loader: batch #%d of %d rows failed inserted=%d total_inserted=%d err=%v",
				batches+1, size, n, total, err)
			return err
		}

		batches++
		metrics.RecordBatches(job, 1)
		metrics.RecordRows(job, "inserted", n)

		now := time.Now()
		sinceLast := now.Sub(lastFlushTS)
		rps := float64(0)
		if sinceLast > 0 {
			rps = float64(total-lastTotal) / sinceLast.Seconds()
		}
		log.Printf(
			"batch #%d: rps=%.0f inserted=%d total_inserted=%d elapsed=%s since_last=%s",
			batches,
			rps,
			n,
			total,
			now.Sub(start).Truncate(time.Millisecond),
			sinceLast.Truncate(time.Millisecond),
		)
		lastFlushTS = now
		lastTotal = total
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()

		case row, ok := <-in:
			if !ok {
				final := len(batch)
				if err := flush(); err != nil {
					return total, err
				}
				log.Printf("loader: input closed, final_flush=%d total_inserted=%d batches=%d", final, total, batches)
				return total, nil
			}
			batch = append(batch, row)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return total, err
				}
			}
		}
	}
}
