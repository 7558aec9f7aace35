package database

import (
	"context"
	"database/sql"
	"sync"

	"github.com/cockroachdb/errors"
)

// to cache prepared sql statement, which maps query string to stmt.
type StmtCache struct {
	db    *sql.DB
	mu    sync.Mutex
	stmts map[string]*sql.Stmt
}

func NewStmtCache(db *sql.DB) *StmtCache {
	return &StmtCache{db: db, stmts: make(map[string]*sql.Stmt)}
}

func (sc *StmtCache) DB() *sql.DB {
	return sc.db
}

func (sc *StmtCache) Prepare(ctx context.Context, query string) (*sql.Stmt, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if stmt, ok := sc.stmts[query]; ok {
		return stmt, nil
	}
	stmt, err := sc.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, errors.Wrapf(err, "prepare %q", query)
	}
	sc.stmts[query] = stmt
	return stmt, nil
}

// PrepareTx binds a cached statement to tx. Prepare before BeginTx when
// the pool has a single connection.
func (sc *StmtCache) PrepareTx(ctx context.Context, tx *sql.Tx, stmt *sql.Stmt) *sql.Stmt {
	return tx.StmtContext(ctx, stmt)
}

// Len is the number of cached statements.
func (sc *StmtCache) Len() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return len(sc.stmts)
}

// Clear closes and forgets all cached statements.
func (sc *StmtCache) Clear() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	var err error
	for query, stmt := range sc.stmts {
		err = errors.CombineErrors(err, stmt.Close())
		delete(sc.stmts, query)
	}
	return err
}
