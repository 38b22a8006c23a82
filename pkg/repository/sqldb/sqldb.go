package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/domain/interfaces"
	"github.com/secmon-lab/riskregister/pkg/utils/logging"
	"github.com/secmon-lab/riskregister/pkg/utils/safe"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	// txRetryLimit bounds the retries of a serializable transaction that
	// lost a conflict
	txRetryLimit = 5
)

// Config selects and tunes the SQL backend
type Config struct {
	Driver string
	// Path of the SQLite database file
	Path string
	// DSN of the PostgreSQL server, URL or key=value form
	DSN          string
	MaxOpenConns int
}

// DB is a register repository on database/sql. It works with both SQLite
// and PostgreSQL.
type DB struct {
	db     *sql.DB
	driver string

	risk      *riskRepository
	control   *controlRepository
	indicator *indicatorRepository
	alert     *alertRepository
	appetite  *appetiteRepository
	tolerance *toleranceRepository
	breach    *breachRepository
	period    *periodRepository
	counter   *codeCounter
}

var _ interfaces.Repository = &DB{}

// New opens the database and applies the schema
func New(ctx context.Context, cfg Config) (*DB, error) {
	var (
		db  *sql.DB
		err error
	)
	switch cfg.Driver {
	case DriverSQLite:
		db, err = openSQLite(cfg.Path)
	case DriverPostgres:
		db, err = openPostgres(cfg.DSN)
	default:
		return nil, goerr.New("unsupported database driver", goerr.V("driver", cfg.Driver))
	}
	if err != nil {
		return nil, err
	}

	if cfg.Driver == DriverSQLite {
		// a single connection serializes writers and keeps BEGIN cheap
		db.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to ping database", goerr.V("driver", cfg.Driver))
	}

	d := &DB{db: db, driver: cfg.Driver}
	if err := d.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	d.risk = &riskRepository{d: d}
	d.control = &controlRepository{d: d}
	d.indicator = &indicatorRepository{d: d}
	d.alert = &alertRepository{d: d}
	d.appetite = &appetiteRepository{d: d}
	d.tolerance = &toleranceRepository{d: d}
	d.breach = &breachRepository{d: d}
	d.period = &periodRepository{d: d}
	d.counter = &codeCounter{d: d}

	logging.From(ctx).Info("database opened", "driver", cfg.Driver)
	return d, nil
}

func openSQLite(path string) (*sql.DB, error) {
	if path == "" {
		path = "./riskregister.db"
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, goerr.Wrap(err, "failed to create database directory", goerr.V("dir", dir))
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite database", goerr.V("path", path))
	}
	return db, nil
}

func openPostgres(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, goerr.New("postgres DSN is required")
	}
	db, err := sql.Open(DriverPostgres, dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open postgres database")
	}
	return db, nil
}

// Migrate applies the schema. Every statement is idempotent.
func (d *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schemas() {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return goerr.Wrap(err, "failed to apply schema", goerr.V("driver", d.driver))
		}
	}
	return nil
}

func (d *DB) Risk() interfaces.RiskRepository           { return d.risk }
func (d *DB) Control() interfaces.ControlRepository     { return d.control }
func (d *DB) Indicator() interfaces.IndicatorRepository { return d.indicator }
func (d *DB) Alert() interfaces.AlertRepository         { return d.alert }
func (d *DB) Appetite() interfaces.AppetiteRepository   { return d.appetite }
func (d *DB) Tolerance() interfaces.ToleranceRepository { return d.tolerance }
func (d *DB) Breach() interfaces.BreachRepository       { return d.breach }
func (d *DB) Period() interfaces.PeriodRepository       { return d.period }
func (d *DB) CodeCounter() interfaces.CodeCounter       { return d.counter }

func (d *DB) Close() error {
	return d.db.Close()
}

// rebind converts ? placeholders to $1, $2, ... for PostgreSQL
func (d *DB) rebind(query string) string {
	if d.driver != DriverPostgres {
		return query
	}
	result := make([]byte, 0, len(query)+8)
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = strconv.AppendInt(result, int64(n), 10)
			n++
			continue
		}
		result = append(result, query[i])
	}
	return string(result)
}

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// inTx runs fn in a transaction. PostgreSQL transactions are serializable
// and retried when they lose a serialization conflict.
func (d *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	opts := &sql.TxOptions{}
	if d.driver == DriverPostgres {
		opts.Isolation = sql.LevelSerializable
	}

	var err error
	for attempt := 0; attempt < txRetryLimit; attempt++ {
		err = d.runTx(ctx, opts, fn)
		if err == nil || !isSerializationFailure(err) {
			return err
		}
		logging.From(ctx).Debug("retrying serializable transaction", "attempt", attempt+1)
	}
	return err
}

func (d *DB) runTx(ctx context.Context, opts *sql.TxOptions, fn func(tx *sql.Tx) error) (err error) {
	tx, err := d.db.BeginTx(ctx, opts)
	if err != nil {
		return goerr.Wrap(err, "failed to begin transaction")
	}
	defer safe.Rollback(ctx, tx, sql.ErrTxDone)

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return goerr.Wrap(err, "failed to commit transaction")
	}
	return nil
}

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func isSerializationFailure(err error) bool {
	code := pqCode(err)
	return code == pgerrcode.SerializationFailure || code == pgerrcode.DeadlockDetected
}

func isUniqueViolation(err error) bool {
	return pqCode(err) == pgerrcode.UniqueViolation
}

func encode(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", goerr.Wrap(err, "failed to encode record")
	}
	return string(raw), nil
}

func decode(data string, v any) error {
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return goerr.Wrap(err, "failed to decode record")
	}
	return nil
}

func nanos(t time.Time) int64 {
	return t.UnixNano()
}

// queryAll runs query and decodes the single data column of every row
func queryAll[T any](ctx context.Context, q querier, query string, args ...any) ([]*T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query records")
	}
	defer safe.Close(ctx, rows)

	var list []*T
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, goerr.Wrap(err, "failed to scan record")
		}
		v := new(T)
		if err := decode(data, v); err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate records")
	}
	if list == nil {
		list = []*T{}
	}
	return list, nil
}

// queryOne decodes the data column of a single row. found is false when
// no row matches.
func queryOne[T any](ctx context.Context, q querier, query string, args ...any) (v *T, found bool, err error) {
	var data string
	if err := q.QueryRowContext(ctx, query, args...).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, goerr.Wrap(err, "failed to query record")
	}
	v = new(T)
	if err := decode(data, v); err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// insertIgnore runs an INSERT ... ON CONFLICT DO NOTHING and reports
// whether a row was written
func insertIgnore(ctx context.Context, q querier, query string, args ...any) (bool, error) {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, goerr.Wrap(err, "failed to insert record")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, goerr.Wrap(err, "failed to read affected rows")
	}
	return n > 0, nil
}
