package state

import (
	"context"
	"math"
	"strings"

	"github.com/TEENet-io/bridge-client-aptos/chainsync"
	"github.com/TEENet-io/bridge-client-aptos/common"
	"github.com/cockroachdb/errors"
)

// Store is a CursorStore that holds resources.
type Store interface {
	chainsync.CursorStore
	Close() error
}

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// NewCursorStore opens the cursor store selected by driver.
func NewCursorStore(ctx context.Context, driver, dsn string) (Store, error) {
	switch strings.ToLower(driver) {
	case DriverMemory, "":
		return &memoryStore{chainsync.NewMemoryCursorStore()}, nil
	case DriverSQLite, "sqlite3":
		store, err := OpenSQLiteCursorStore(dsn)
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverPostgres, "pgx":
		store, err := NewPostgresCursorStore(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, errors.Wrapf(common.ErrConfig, "unknown cursor store driver %q", driver)
	}
}

type memoryStore struct {
	*chainsync.MemoryCursorStore
}

func (memoryStore) Close() error { return nil }

func toInt64(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, errors.Wrapf(common.ErrInvalidArgument, "value %d does not fit in BIGINT", v)
	}
	return int64(v), nil
}

func position(version, nextSequence int64) chainsync.Position {
	return chainsync.Position{Version: uint64(version), NextSequence: uint64(nextSequence)}
}
