package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yegors/flight-tracker/internal/poller"
	"github.com/yegors/flight-tracker/pkg/logger"
)

// timeLayout has a fixed width so stored timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// HistoryStorage persists poll cycles and the positions they observed
type HistoryStorage struct {
	db        *sql.DB
	logger    *logger.Logger
	newID     func() string
	retention time.Duration
}

// NewHistoryStorage creates the storage and its tables
func NewHistoryStorage(db *sql.DB, log *logger.Logger) (*HistoryStorage, error) {
	storage := &HistoryStorage{
		db:     db,
		logger: log.Named("sqlite-history"),
		newID:  func() string { return uuid.NewString() },
	}

	if err := storage.initDB(); err != nil {
		return nil, fmt.Errorf("failed to initialize history storage: %w", err)
	}

	return storage, nil
}

// initDB initializes the database tables
func (s *HistoryStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS cycles (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			payload_time INTEGER,
			fetched_at TEXT NOT NULL,
			total INTEGER NOT NULL DEFAULT 0,
			on_ground INTEGER NOT NULL DEFAULT 0,
			in_air INTEGER NOT NULL DEFAULT 0,
			avg_altitude REAL NOT NULL DEFAULT 0,
			dropped INTEGER NOT NULL DEFAULT 0,
			error TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create cycles table: %w", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS positions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			cycle_id TEXT NOT NULL,
			payload_time INTEGER NOT NULL,
			icao24 TEXT,
			callsign TEXT NOT NULL,
			origin_country TEXT,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			geo_altitude REAL NOT NULL,
			velocity REAL NOT NULL,
			on_ground INTEGER,
			squawk TEXT,
			true_track REAL,
			FOREIGN KEY (cycle_id) REFERENCES cycles(id) ON DELETE CASCADE
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create positions table: %w", err)
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_cycles_fetched_at ON cycles(fetched_at)`,
		`CREATE INDEX IF NOT EXISTS idx_positions_cycle_id ON positions(cycle_id)`,
		`CREATE INDEX IF NOT EXISTS idx_positions_callsign ON positions(callsign)`,
		`CREATE INDEX IF NOT EXISTS idx_positions_icao24 ON positions(icao24)`,
	}
	for _, indexSQL := range indexes {
		if _, err := s.db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create history index: %w", err)
		}
	}

	return nil
}

// SetRetention makes OnSnapshot prune cycles older than d. Zero disables pruning.
func (s *HistoryStorage) SetRetention(d time.Duration) {
	s.retention = d
}

// OnSnapshot stores a successful cycle and all of its positions
func (s *HistoryStorage) OnSnapshot(ctx context.Context, snap poller.Snapshot) error {
	if _, err := s.StoreSnapshot(ctx, snap); err != nil {
		return err
	}

	if s.retention > 0 {
		removed, err := s.PruneBefore(ctx, snap.FetchedAt.Add(-s.retention))
		if err != nil {
			return err
		}
		if removed > 0 {
			s.logger.Debug("Pruned expired cycles", logger.Int64("removed", removed))
		}
	}
	return nil
}

// OnFailure stores a failed cycle; storage errors are only logged
func (s *HistoryStorage) OnFailure(ctx context.Context, at time.Time, cause error) {
	if _, err := s.StoreFailure(ctx, at, cause); err != nil {
		s.logger.Error("Failed to store failed cycle", logger.Error(err))
	}
}

// StoreSnapshot inserts the cycle and its positions in one transaction
func (s *HistoryStorage) StoreSnapshot(ctx context.Context, snap poller.Snapshot) (string, error) {
	id := s.newID()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO cycles
		(id, status, payload_time, fetched_at, total, on_ground, in_air, avg_altitude, dropped)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		StatusSuccess,
		snap.Timestamp,
		snap.FetchedAt.UTC().Format(timeLayout),
		snap.Summary.Total,
		snap.Summary.OnGround,
		snap.Summary.InAir,
		snap.Summary.AvgAltitude,
		snap.Dropped,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert cycle: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO positions
		(cycle_id, payload_time, icao24, callsign, origin_country, latitude, longitude, geo_altitude, velocity, on_ground, squawk, true_track)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare position insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range snap.Records {
		var onGround sql.NullBool
		if r.OnGround != nil {
			onGround = sql.NullBool{Bool: *r.OnGround, Valid: true}
		}
		var trueTrack sql.NullFloat64
		if r.TrueTrack != nil {
			trueTrack = sql.NullFloat64{Float64: *r.TrueTrack, Valid: true}
		}

		if _, err := stmt.ExecContext(ctx,
			id,
			snap.Timestamp,
			nullString(r.ICAO24),
			r.Callsign,
			nullString(r.OriginCountry),
			r.Latitude,
			r.Longitude,
			r.GeoAltitude,
			r.Velocity,
			onGround,
			nullString(r.Squawk),
			trueTrack,
		); err != nil {
			return "", fmt.Errorf("failed to insert position: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit cycle: %w", err)
	}

	s.logger.Debug("Stored cycle",
		logger.String("id", id),
		logger.Int("positions", len(snap.Records)),
	)
	return id, nil
}

// StoreFailure inserts a failed cycle
func (s *HistoryStorage) StoreFailure(ctx context.Context, at time.Time, cause error) (string, error) {
	id := s.newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cycles (id, status, fetched_at, error) VALUES (?, ?, ?, ?)`,
		id,
		StatusFailure,
		at.UTC().Format(timeLayout),
		cause.Error(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert failed cycle: %w", err)
	}
	return id, nil
}

// GetRecentCycles returns the most recent cycles, newest first
func (s *HistoryStorage) GetRecentCycles(ctx context.Context, limit int) ([]*CycleRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, payload_time, fetched_at, total, on_ground, in_air, avg_altitude, dropped, error
		FROM cycles
		ORDER BY fetched_at DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent cycles: %w", err)
	}
	defer rows.Close()

	return s.scanCycleRows(rows)
}

// GetCyclesByTimeRange returns cycles fetched within [start, end], newest first
func (s *HistoryStorage) GetCyclesByTimeRange(ctx context.Context, start, end time.Time) ([]*CycleRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, payload_time, fetched_at, total, on_ground, in_air, avg_altitude, dropped, error
		FROM cycles
		WHERE fetched_at BETWEEN ? AND ?
		ORDER BY fetched_at DESC`,
		start.UTC().Format(timeLayout), end.UTC().Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query cycles by time range: %w", err)
	}
	defer rows.Close()

	return s.scanCycleRows(rows)
}

// GetPositionsByCallsign returns the track of one callsign, newest first
func (s *HistoryStorage) GetPositionsByCallsign(ctx context.Context, callsign string, limit int) ([]*PositionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT cycle_id, payload_time, icao24, callsign, origin_country, latitude, longitude, geo_altitude, velocity, on_ground, squawk, true_track
		FROM positions
		WHERE callsign = ?
		ORDER BY payload_time DESC, id DESC
		LIMIT ?`,
		callsign, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions by callsign: %w", err)
	}
	defer rows.Close()

	return s.scanPositionRows(rows)
}

// PruneBefore deletes cycles (and their positions) fetched before cutoff
func (s *HistoryStorage) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ts := cutoff.UTC().Format(timeLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM positions WHERE cycle_id IN (SELECT id FROM cycles WHERE fetched_at < ?)`, ts); err != nil {
		return 0, fmt.Errorf("failed to prune positions: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM cycles WHERE fetched_at < ?`, ts)
	if err != nil {
		return 0, fmt.Errorf("failed to prune cycles: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit prune: %w", err)
	}

	return result.RowsAffected()
}

// scanCycleRows scans database rows into CycleRecord structs
func (s *HistoryStorage) scanCycleRows(rows *sql.Rows) ([]*CycleRecord, error) {
	records := []*CycleRecord{}
	for rows.Next() {
		var record CycleRecord
		var fetchedAt string
		var payloadTime sql.NullInt64
		var errText sql.NullString

		if err := rows.Scan(
			&record.ID,
			&record.Status,
			&payloadTime,
			&fetchedAt,
			&record.Total,
			&record.OnGround,
			&record.InAir,
			&record.AvgAltitude,
			&record.Dropped,
			&errText,
		); err != nil {
			return nil, fmt.Errorf("failed to scan cycle: %w", err)
		}

		var err error
		record.FetchedAt, err = time.Parse(timeLayout, fetchedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse fetched_at: %w", err)
		}
		if payloadTime.Valid {
			record.PayloadTime = payloadTime.Int64
		}
		if errText.Valid {
			record.Error = errText.String
		}

		records = append(records, &record)
	}

	return records, rows.Err()
}

// scanPositionRows scans database rows into PositionRecord structs
func (s *HistoryStorage) scanPositionRows(rows *sql.Rows) ([]*PositionRecord, error) {
	records := []*PositionRecord{}
	for rows.Next() {
		var record PositionRecord
		var icao, country, squawk sql.NullString
		var onGround sql.NullBool
		var trueTrack sql.NullFloat64

		if err := rows.Scan(
			&record.CycleID,
			&record.PayloadTime,
			&icao,
			&record.Callsign,
			&country,
			&record.Latitude,
			&record.Longitude,
			&record.GeoAltitude,
			&record.Velocity,
			&onGround,
			&squawk,
			&trueTrack,
		); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}

		record.ICAO24 = icao.String
		record.OriginCountry = country.String
		record.Squawk = squawk.String
		if onGround.Valid {
			v := onGround.Bool
			record.OnGround = &v
		}
		if trueTrack.Valid {
			v := trueTrack.Float64
			record.TrueTrack = &v
		}

		records = append(records, &record)
	}

	return records, rows.Err()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
