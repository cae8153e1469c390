package writer

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/duckdb/duckdb-go/v2"
	"golang.org/x/sync/semaphore"

	"duck-intake/internal/ddl"
	"duck-intake/internal/domain"
)

// OpenDuckDB opens a DuckDB database at path ("" for in-memory) and caps the
// connection pool at maxConns.
func OpenDuckDB(path string, maxConns int) (*sql.DB, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
		db.SetMaxIdleConns(maxConns)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	return db, nil
}

// DuckDBPool adapts a database/sql DuckDB pool to Pool. Inserts into the
// same collection are serialized so a schema change and the appender that
// follows it always see the same table.
type DuckDBPool struct {
	db *sql.DB

	mu    sync.Mutex
	locks map[string]*semaphore.Weighted
}

// NewDuckDBPool creates a DuckDBPool.
func NewDuckDBPool(db *sql.DB) *DuckDBPool {
	return &DuckDBPool{db: db, locks: make(map[string]*semaphore.Weighted)}
}

// collectionLock returns the write lock for collection. DuckDB table names
// are case insensitive, so the key is folded.
func (p *DuckDBPool) collectionLock(collection string) *semaphore.Weighted {
	key := strings.ToLower(collection)
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks[key]
	if !ok {
		l = semaphore.NewWeighted(1)
		p.locks[key] = l
	}
	return l
}

// Acquire pins one connection from the pool. It blocks while the pool is
// exhausted, until ctx is done.
func (p *DuckDBPool) Acquire(ctx context.Context) (Conn, error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return &duckConn{conn: conn, pool: p}, nil
}

type duckConn struct {
	conn *sql.Conn
	pool *DuckDBPool
}

func (c *duckConn) Close() error { return c.conn.Close() }

// ColumnType maps a column kind to its DuckDB type.
func ColumnType(k domain.Kind) (string, error) {
	switch k {
	case domain.KindInteger:
		return "BIGINT", nil
	case domain.KindFloat:
		return "DOUBLE", nil
	case domain.KindString:
		return "VARCHAR", nil
	case domain.KindTimestamp:
		return "TIMESTAMPTZ", nil
	default:
		return "", fmt.Errorf("no column type for %s", k)
	}
}

// Insert creates the collection table on first use, adds columns the table
// has not seen, then appends every row inside one transaction. The schema
// statements run before the transaction so the appender never targets a
// table altered by its own transaction. The collection lock is held from the
// first schema statement through COMMIT.
func (c *duckConn) Insert(ctx context.Context, collection string, batch *domain.ColumnarBatch) error {
	lock := c.pool.collectionLock(collection)
	if err := lock.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("wait for collection lock: %w", err)
	}
	defer lock.Release(1)

	tableCols, err := c.ensureTable(ctx, collection, batch)
	if err != nil {
		return err
	}

	if _, err := c.conn.ExecContext(ctx, "BEGIN TRANSACTION"); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	rollback := func(err error) error {
		_, _ = c.conn.ExecContext(context.Background(), "ROLLBACK")
		return err
	}

	err = c.conn.Raw(func(raw any) error {
		driverConn, ok := raw.(driver.Conn)
		if !ok {
			return fmt.Errorf("unexpected raw conn type %T", raw)
		}
		appender, err := duckdb.NewAppenderFromConn(driverConn, "", collection)
		if err != nil {
			return fmt.Errorf("create appender: %w", err)
		}
		if err := appendRows(appender, tableCols, batch); err != nil {
			_ = appender.Close()
			return err
		}
		if err := appender.Close(); err != nil {
			return fmt.Errorf("flush appender: %w", err)
		}
		return nil
	})
	if err != nil {
		return rollback(err)
	}

	if _, err := c.conn.ExecContext(ctx, "COMMIT"); err != nil {
		return rollback(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// ensureTable creates or widens the collection table and returns its
// columns in ordinal order.
func (c *duckConn) ensureTable(ctx context.Context, collection string, batch *domain.ColumnarBatch) ([]string, error) {
	defs, err := columnDefs(batch)
	if err != nil {
		return nil, err
	}
	create, err := ddl.CreateTableIfNotExists(collection, defs)
	if err != nil {
		return nil, err
	}
	if _, err := c.conn.ExecContext(ctx, create); err != nil {
		return nil, fmt.Errorf("create table: %w", err)
	}

	tableCols, err := c.tableColumns(ctx, collection)
	if err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(tableCols))
	for _, name := range tableCols {
		present[strings.ToLower(name)] = true
	}
	for _, def := range defs {
		if present[strings.ToLower(def.Name)] {
			continue
		}
		stmt, err := ddl.AddColumnIfNotExists(collection, def)
		if err != nil {
			return nil, err
		}
		if _, err := c.conn.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("add column %q: %w", def.Name, err)
		}
		tableCols = append(tableCols, def.Name)
	}
	return tableCols, nil
}

func (c *duckConn) tableColumns(ctx context.Context, table string) ([]string, error) {
	query, err := ddl.TableColumnsSQL(table)
	if err != nil {
		return nil, err
	}
	rows, err := c.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list table columns: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column name: %w", err)
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

// columnDefs maps batch columns to DDL columns. DuckDB identifiers are case
// insensitive, so names differing only in case collide.
func columnDefs(batch *domain.ColumnarBatch) ([]ddl.ColumnDef, error) {
	seen := make(map[string]string, len(batch.Columns))
	defs := make([]ddl.ColumnDef, 0, len(batch.Columns))
	for _, col := range batch.Columns {
		key := strings.ToLower(col.Name)
		if prev, ok := seen[key]; ok {
			return nil, fmt.Errorf("columns %q and %q collide", prev, col.Name)
		}
		seen[key] = col.Name
		typ, err := ColumnType(col.Kind)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col.Name, err)
		}
		defs = append(defs, ddl.ColumnDef{Name: col.Name, Type: typ})
	}
	return defs, nil
}

// appendRows writes batch rows in table column order; table columns absent
// from the batch get NULL.
func appendRows(appender *duckdb.Appender, tableCols []string, batch *domain.ColumnarBatch) error {
	index := make(map[string]*domain.Column, len(batch.Columns))
	for _, col := range batch.Columns {
		index[strings.ToLower(col.Name)] = col
	}

	row := make([]driver.Value, len(tableCols))
	for i := 0; i < batch.RowCount; i++ {
		for j, name := range tableCols {
			row[j] = nil
			if col, ok := index[strings.ToLower(name)]; ok {
				row[j] = col.Values[i].Any()
			}
		}
		if err := appender.AppendRow(row...); err != nil {
			return fmt.Errorf("append row %d: %w", i, err)
		}
	}
	return nil
}
