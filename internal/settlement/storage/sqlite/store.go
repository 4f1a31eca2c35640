// Package sqlite provides SQLite-backed persistence for the settlement core.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	_ "modernc.org/sqlite"

	"github.com/louisbranch/mealhall/internal/platform/id"
	"github.com/louisbranch/mealhall/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/mealhall/internal/settlement/storage"
	"github.com/louisbranch/mealhall/internal/settlement/storage/sqlite/migrations"
)

const tracerName = "github.com/louisbranch/mealhall/internal/settlement/storage/sqlite"

// Store provides SQLite-backed persistence implementing storage.Store.
//
// Mutating calls are serialized: one unit of work runs to completion before
// the next begins, so read-then-write precondition checks inside a unit
// cannot race with other writers.
type Store struct {
	sqlDB *sql.DB

	// writeMu treats the database as a single serialized write resource.
	writeMu sync.Mutex
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func fromNullMillis(value sql.NullInt64) *time.Time {
	if !value.Valid {
		return nil
	}
	t := fromMillis(value.Int64)
	return &t
}

func toNullID(value *int64) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *value, Valid: true}
}

func fromNullID(value sql.NullInt64) *int64 {
	if !value.Valid {
		return nil
	}
	v := value.Int64
	return &v
}

// Open opens a settlement SQLite store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_pragma=foreign_keys(ON)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// ExecuteUnit runs the ops in order inside one transaction, committing after
// the last succeeds. Any op error rolls the whole unit back and propagates
// unchanged. Each unit carries a correlation id recorded on its trace span.
func (s *Store) ExecuteUnit(ctx context.Context, name string, ops ...storage.UnitOp) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if len(ops) == 0 {
		return nil
	}

	correlationID, err := id.NewID()
	if err != nil {
		return fmt.Errorf("generate unit correlation id: %w", err)
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "settlement.unit")
	span.SetAttributes(
		attribute.String("mealhall.unit.name", name),
		attribute.String("mealhall.unit.correlation_id", correlationID),
		attribute.Int("mealhall.unit.ops", len(ops)),
	)
	defer span.End()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		span.SetStatus(otelcodes.Error, "begin failed")
		return fmt.Errorf("begin unit %s: %w", name, err)
	}

	u := &unit{tx: tx}
	for _, op := range ops {
		if err := op(ctx, u); err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, "rolled back")
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				return fmt.Errorf("%w: rollback unit %s: %v", err, name, rollbackErr)
			}
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		span.SetStatus(otelcodes.Error, "commit failed")
		return fmt.Errorf("commit unit %s: %w", name, err)
	}
	span.SetStatus(otelcodes.Ok, "")
	return nil
}

// unit exposes the transactional query surface.
type unit struct {
	tx *sql.Tx
}

type scanner func(dest ...any) error

func encodeQuantityMap(m map[int64]int64) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode quantity map: %w", err)
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func decodeQuantityMap(raw sql.NullString) (map[int64]int64, error) {
	if !raw.Valid || strings.TrimSpace(raw.String) == "" {
		return nil, nil
	}
	var m map[int64]int64
	if err := json.Unmarshal([]byte(raw.String), &m); err != nil {
		return nil, fmt.Errorf("decode quantity map: %w", err)
	}
	return m, nil
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "unique constraint failed")
}
