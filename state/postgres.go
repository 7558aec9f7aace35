package state

import (
	"context"

	"github.com/TEENet-io/bridge-client-aptos/chainsync"
	"github.com/TEENet-io/bridge-client-aptos/common"
	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	logger "github.com/sirupsen/logrus"
)

const (
	pgSelectCursor = `SELECT stream, version, next_sequence FROM event_cursor WHERE source = $1`
	pgUpsertCursor = `INSERT INTO event_cursor (source, stream, version, next_sequence)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (source, stream)
		DO UPDATE SET version = EXCLUDED.version, next_sequence = EXCLUDED.next_sequence`
)

type PostgresCursorStore struct {
	pool *pgxpool.Pool
}

var _ chainsync.CursorStore = (*PostgresCursorStore)(nil)

func NewPostgresCursorStore(ctx context.Context, dsn string) (*PostgresCursorStore, error) {
	if dsn == "" {
		return nil, errors.Wrap(common.ErrConfig, "postgres dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "connect postgres"), common.ErrConfig)
	}
	if _, err := pool.Exec(ctx, cursorTable); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "create cursor table")
	}
	logger.Info("using postgres cursor store")
	return &PostgresCursorStore{pool: pool}, nil
}

func (s *PostgresCursorStore) LoadCursor(ctx context.Context, source string) (chainsync.Cursor, bool, error) {
	rows, err := s.pool.Query(ctx, pgSelectCursor, source)
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

// SaveCursor upserts all streams in one transaction.
func (s *PostgresCursorStore) SaveCursor(ctx context.Context, source string, cursor chainsync.Cursor) error {
	batch := &pgx.Batch{}
	for stream, pos := range cursor {
		version, err := toInt64(pos.Version)
		if err != nil {
			return err
		}
		next, err := toInt64(pos.NextSequence)
		if err != nil {
			return err
		}
		batch.Queue(pgUpsertCursor, source, stream, version, next)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin cursor transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	br := tx.SendBatch(ctx, batch)
	for range cursor {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return errors.Wrapf(err, "save cursor of %s", source)
		}
	}
	if err := br.Close(); err != nil {
		return errors.Wrap(err, "close cursor batch")
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit cursor")
	}
	return nil
}

func (s *PostgresCursorStore) Close() error {
	s.pool.Close()
	return nil
}
