package state

import (
	"context"
	"database/sql"
	"strings"

	"github.com/TEENet-io/bridge-client-aptos/chainsync"
	"github.com/TEENet-io/bridge-client-aptos/common"
	"github.com/TEENet-io/bridge-client-aptos/database"
	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"
	logger "github.com/sirupsen/logrus"
)

const (
	sqliteSelectCursor = `SELECT stream, version, next_sequence FROM event_cursor WHERE source = ?`
	sqliteUpsertCursor = `INSERT OR REPLACE INTO event_cursor (source, stream, version, next_sequence) VALUES (?, ?, ?, ?)`
)

type SQLiteCursorStore struct {
	db        *sql.DB
	stmtCache *database.StmtCache
}

var _ chainsync.CursorStore = (*SQLiteCursorStore)(nil)

// OpenSQLiteCursorStore opens (or creates) a sqlite database file.
func OpenSQLiteCursorStore(path string) (*SQLiteCursorStore, error) {
	if path == "" {
		return nil, errors.Wrap(common.ErrConfig, "sqlite cursor store needs a file path")
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open sqlite %s", path)
	}
	if strings.Contains(path, ":memory:") {
		// every connection would get its own empty database
		db.SetMaxOpenConns(1)
	}
	store, err := NewSQLiteCursorStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.WithField("path", path).Info("using sqlite cursor store")
	return store, nil
}

func NewSQLiteCursorStore(db *sql.DB) (*SQLiteCursorStore, error) {
	if _, err := db.Exec(cursorTable); err != nil {
		return nil, errors.Wrap(err, "create cursor table")
	}
	return &SQLiteCursorStore{db: db, stmtCache: database.NewStmtCache(db)}, nil
}

func (s *SQLiteCursorStore) LoadCursor(ctx context.Context, source string) (chainsync.Cursor, bool, error) {
	stmt, err := s.stmtCache.Prepare(ctx, sqliteSelectCursor)
	if err != nil {
		return nil, false, err
	}
	rows, err := stmt.QueryContext(ctx, source)
	if err != nil {
		return nil, false, errors.Wrapf(err, "load cursor of %s", source)
	}
	defer rows.Close()

	cursor := chainsync.Cursor{}
	for rows.Next() {
		var (
			stream        string
			version, next int64
		)
		if err := rows.Scan(&stream, &version, &next); err != nil {
			return nil, false, errors.Wrap(err, "scan cursor row")
		}
		cursor[stream] = position(version, next)
	}
	if err := rows.Err(); err != nil {
		return nil, false, errors.Wrap(err, "iterate cursor rows")
	}
	if len(cursor) == 0 {
		return nil, false, nil
	}
	return cursor, true, nil
}

// SaveCursor writes all streams of the cursor in one transaction.
func (s *SQLiteCursorStore) SaveCursor(ctx context.Context, source string, cursor chainsync.Cursor) error {
	stmt, err := s.stmtCache.Prepare(ctx, sqliteUpsertCursor)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin cursor transaction")
	}
	defer func() { _ = tx.Rollback() }()

	txStmt := s.stmtCache.PrepareTx(ctx, tx, stmt)
	for stream, pos := range cursor {
		version, err := toInt64(pos.Version)
		if err != nil {
			return err
		}
		next, err := toInt64(pos.NextSequence)
		if err != nil {
			return err
		}
		if _, err := txStmt.ExecContext(ctx, source, stream, version, next); err != nil {
			return errors.Wrapf(err, "save cursor %s/%s", source, stream)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit cursor")
	}
	return nil
}

func (s *SQLiteCursorStore) Close() error {
	return errors.CombineErrors(s.stmtCache.Clear(), s.db.Close())
}
