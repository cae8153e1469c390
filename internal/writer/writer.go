// Package writer submits columnar batches to the storage backend.
package writer

import (
	"context"
	"log/slog"
	"time"

	"duck-intake/internal/domain"
)

// Conn is one storage connection handle.
type Conn interface {
	// Insert lands batch in collection as a single unit.
	Insert(ctx context.Context, collection string, batch *domain.ColumnarBatch) error
	// Close returns the handle to its pool.
	Close() error
}

// Pool hands out storage connections.
type Pool interface {
	Acquire(ctx context.Context) (Conn, error)
}

// Writer acquires a connection and inserts one batch. There is no retry:
// a failed acquire or insert is terminal for the batch.
type Writer struct {
	pool   Pool
	logger *slog.Logger
}

// New creates a Writer.
func New(pool Pool, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Writer{pool: pool, logger: logger}
}

// Write submits batch to collection. It returns *domain.ConnectionError when
// no connection could be acquired and *domain.WriteError when the backend
// rejected the insert.
func (w *Writer) Write(ctx context.Context, collection string, batch *domain.ColumnarBatch) error {
	conn, err := w.pool.Acquire(ctx)
	if err != nil {
		return &domain.ConnectionError{Err: err}
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			w.logger.Warn("release connection", "error", cerr)
		}
	}()

	start := time.Now()
	if err := conn.Insert(ctx, collection, batch); err != nil {
		return &domain.WriteError{Collection: collection, Err: err}
	}
	w.logger.Debug("batch inserted",
		"collection", collection,
		"rows", batch.RowCount,
		"columns", len(batch.Columns),
		"duration", time.Since(start),
	)
	return nil
}
