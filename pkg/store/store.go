// Package store persists scored sleep periods in SQLite or PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/google/uuid"
	"github.com/lib/pq"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/codeGROOVE-dev/actiscore/pkg/algorithm"
	"github.com/codeGROOVE-dev/actiscore/pkg/markers"
	"github.com/codeGROOVE-dev/actiscore/pkg/metrics"
	"github.com/codeGROOVE-dev/actiscore/pkg/nonwear"
	"github.com/codeGROOVE-dev/actiscore/pkg/pipeline"
	"github.com/codeGROOVE-dev/actiscore/pkg/sleepperiod"
	"github.com/codeGROOVE-dev/actiscore/pkg/sleepwake"
)

// Dialect selects SQL syntax and the database/sql driver.
type Dialect string

// Supported dialects. The value is also the driver name.
const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// ErrDialect is returned for an unsupported dialect.
var ErrDialect = errors.New("unsupported database dialect")

// Store writes and reads sleep metric rows.
type Store struct {
	db         *sql.DB
	logger     *slog.Logger
	dialect    Dialect
	attempts   uint
	retryDelay time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithRetry sets how often a write is retried on a transient error and the initial delay.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(s *Store) {
		s.attempts = attempts
		s.retryDelay = delay
	}
}

// New wraps an open database.
func New(db *sql.DB, dialect Dialect, opts ...Option) (*Store, error) {
	if dialect != SQLite && dialect != Postgres {
		return nil, fmt.Errorf("%w: %q", ErrDialect, dialect)
	}
	s := &Store{
		db:         db,
		dialect:    dialect,
		logger:     slog.Default(),
		attempts:   5,
		retryDelay: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Open connects with the dialect's driver and applies the schema.
func Open(ctx context.Context, dialect Dialect, dsn string, opts ...Option) (*Store, error) {
	if dialect != SQLite && dialect != Postgres {
		return nil, fmt.Errorf("%w: %q", ErrDialect, dialect)
	}
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", dialect, err)
	}
	if dialect == SQLite {
		// One writer avoids most SQLITE_BUSY contention.
		db.SetMaxOpenConns(1)
	}
	s, err := New(db, dialect, opts...)
	if err != nil {
		_ = db.Close() //nolint:errcheck // already failing
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close() //nolint:errcheck // already failing
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders as $n for PostgreSQL.
func (s *Store) rebind(q string) string {
	if s.dialect != Postgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	boolType := "INTEGER"
	if s.dialect == Postgres {
		boolType = "BOOLEAN"
	}
	stmts := []string{
		fmt.Sprintf(createTable, boolType),
		createIndex,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrating: %w", err)
		}
	}
	return nil
}

// enumValue returns the identifier to store for an algorithm. Identifiers
// the registry does not know are stored as the registry default; the true
// name goes to the companion free-text column.
func enumValue[T any](r *algorithm.Registry[T], id string) (stored string, fellBack bool) {
	if id == "" || r.Has(id) {
		return id, false
	}
	return r.DefaultID(), true
}

// SaveRecords replaces the rows for each record's participant, date and
// slot, inside one transaction retried on transient errors.
func (s *Store) SaveRecords(ctx context.Context, records []pipeline.Record) error {
	if len(records) == 0 {
		return nil
	}
	for _, rec := range records {
		var unknown []string
		if _, fb := enumValue(sleepwake.Registry, rec.ClassifierID); fb {
			unknown = append(unknown, rec.ClassifierID)
		}
		if _, fb := enumValue(nonwear.Registry, rec.NonwearAlgorithmID); fb {
			unknown = append(unknown, rec.NonwearAlgorithmID)
		}
		if _, fb := enumValue(sleepperiod.Registry, rec.PeriodDetectorID); fb {
			unknown = append(unknown, rec.PeriodDetectorID)
		}
		if len(unknown) > 0 {
			s.logger.Warn("algorithm not in stored enum; saving default with free-text name",
				"algorithms", unknown, "participant", rec.Participant)
		}
	}

	err := retry.Do(
		func() error {
			err := s.saveOnce(ctx, records)
			if err != nil && !isTransient(err) {
				return retry.Unrecoverable(err)
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(s.attempts),
		retry.Delay(s.retryDelay),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.MaxJitter(s.retryDelay),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Debug("retrying save", "attempt", n+1, "error", err)
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("saving %d records: %w", len(records), err)
	}
	s.logger.Debug("records saved", "count", len(records), "dialect", s.dialect)
	return nil
}

func (s *Store) saveOnce(ctx context.Context, records []pipeline.Record) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.logger.Debug("rollback failed", "error", rbErr)
			}
		}
	}()

	del := s.rebind(deleteRow)
	ins := s.rebind(insertRow)
	now := time.Now().UTC()
	for _, rec := range records {
		if _, err := tx.ExecContext(ctx, del, rec.Participant, rec.Date, rec.PeriodIndex); err != nil {
			return fmt.Errorf("delete: %w", err)
		}
		sleepAlg, _ := enumValue(sleepwake.Registry, rec.ClassifierID)
		nonwearAlg, _ := enumValue(nonwear.Registry, rec.NonwearAlgorithmID)
		periodAlg, _ := enumValue(sleepperiod.Registry, rec.PeriodDetectorID)
		if _, err := tx.ExecContext(ctx, ins,
			uuid.NewString(), rec.RunID, rec.Source, rec.Participant, rec.Date, rec.PeriodIndex, string(rec.PeriodType),
			sleepAlg, rec.ClassifierID, nonwearAlg, rec.NonwearAlgorithmID, periodAlg, rec.PeriodDetectorID,
			rec.WindowSource, rec.OnsetClock, rec.OffsetClock, rec.OnsetTimestamp, rec.OffsetTimestamp,
			rec.OnsetIndex, rec.OffsetIndex, rec.InclusiveEnd,
			rec.TotalSleepTime, nullFloat(rec.SleepEfficiency), rec.TotalMinutesInBed, rec.WASO, rec.Awakenings,
			nullFloat(rec.AverageAwakeningLength), rec.TotalActivity, nullFloat(rec.MovementIndex),
			nullFloat(rec.FragmentationIndex), nullFloat(rec.SleepFragmentationIndex),
			nullInt(rec.LabelAtOnset), nullInt(rec.LabelAtOffset),
			nullFloat(rec.NonwearAlgorithmMinutes), nullFloat(rec.NonwearSensorMinutes), now,
		); err != nil {
			return fmt.Errorf("insert: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Row is a stored record plus the enum values actually written.
type Row struct {
	CreatedAt time.Time
	pipeline.Record
	ID                     string
	StoredSleepAlgorithm   string
	StoredNonwearAlgorithm string
	StoredPeriodDetector   string
}

// RecordsFor returns a participant's rows ordered by date and slot.
// Record algorithm ids carry the true names from the free-text columns.
func (s *Store) RecordsFor(ctx context.Context, participant string) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(selectRows), participant)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only

	var out []Row
	for rows.Next() {
		var (
			r                                        Row
			periodType                               string
			eff, avgAwake, mi, fi, sfi, nwAlg, nwSen sql.NullFloat64
			labelOn, labelOff                        sql.NullInt64
		)
		if err := rows.Scan(
			&r.ID, &r.RunID, &r.Source, &r.Participant, &r.Date, &r.PeriodIndex, &periodType,
			&r.StoredSleepAlgorithm, &r.ClassifierID, &r.StoredNonwearAlgorithm, &r.NonwearAlgorithmID,
			&r.StoredPeriodDetector, &r.PeriodDetectorID,
			&r.WindowSource, &r.OnsetClock, &r.OffsetClock, &r.OnsetTimestamp, &r.OffsetTimestamp,
			&r.OnsetIndex, &r.OffsetIndex, &r.InclusiveEnd,
			&r.TotalSleepTime, &eff, &r.TotalMinutesInBed, &r.WASO, &r.Awakenings,
			&avgAwake, &r.TotalActivity, &mi, &fi, &sfi, &labelOn, &labelOff, &nwAlg, &nwSen, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		r.PeriodType = markers.Type(periodType)
		r.SleepMetrics = fill(r.SleepMetrics, eff, avgAwake, mi, fi, sfi, nwAlg, nwSen, labelOn, labelOff)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func fill(m metrics.SleepMetrics, eff, avgAwake, mi, fi, sfi, nwAlg, nwSen sql.NullFloat64, labelOn, labelOff sql.NullInt64) metrics.SleepMetrics {
	m.SleepEfficiency = floatPtr(eff)
	m.AverageAwakeningLength = floatPtr(avgAwake)
	m.MovementIndex = floatPtr(mi)
	m.FragmentationIndex = floatPtr(fi)
	m.SleepFragmentationIndex = floatPtr(sfi)
	m.NonwearAlgorithmMinutes = floatPtr(nwAlg)
	m.NonwearSensorMinutes = floatPtr(nwSen)
	m.LabelAtOnset = intPtr(labelOn)
	m.LabelAtOffset = intPtr(labelOff)
	return m
}

// isTransient reports lock contention and retryable server conditions.
func isTransient(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "40", "08", "53": // transaction rollback, connection, insufficient resources
			return true
		}
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "sqlite_busy") ||
		strings.Contains(msg, "database table is locked")
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
