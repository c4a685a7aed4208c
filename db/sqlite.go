// Package db keeps an optional SQLite journal of the samples served in
// streaming mode, for offline replay and drift checks.
package db

import (
	"database/sql"
	"errors"
	"time"

	_ "github.com/mattn/go-sqlite3"
	pkgerrors "github.com/pkg/errors"

	"phasebridge/ml"
)

// Journal is a SQLite log of served samples and their outcomes.
type Journal struct {
	database *sql.DB
	insert   *sql.Stmt
}

// Entry is one recorded sample. Label is meaningful only when Error is empty.
type Entry struct {
	ID         int64
	Sample     ml.RawSample
	Label      ml.PhaseLabel
	Error      string
	RecordedAt time.Time
}

// Open opens or creates the journal at path.
func Open(path string) (*Journal, error) {
	if path == "" {
		return nil, errors.New("journal path is required")
	}
	database, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "open journal %s", path)
	}
	// sqlite serialises writers; one connection avoids SQLITE_BUSY.
	database.SetMaxOpenConns(1)

	query := `
    CREATE TABLE IF NOT EXISTS samples (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        pmc1 INTEGER NOT NULL,
        pmc2 INTEGER NOT NULL,
        pmc3 INTEGER NOT NULL,
        pmc4 INTEGER NOT NULL,
        pmc5 INTEGER NOT NULL,
        cluster_id INTEGER NOT NULL,
        label INTEGER,
        error TEXT,
        recorded_at DATETIME NOT NULL
    );
    `
	if _, err := database.Exec(query); err != nil {
		database.Close()
		return nil, pkgerrors.Wrapf(err, "create journal schema in %s", path)
	}

	insert, err := database.Prepare(`
        INSERT INTO samples (pmc1, pmc2, pmc3, pmc4, pmc5, cluster_id, label, error, recorded_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		database.Close()
		return nil, pkgerrors.Wrap(err, "prepare journal insert")
	}
	return &Journal{database: database, insert: insert}, nil
}

// Record stores a sample with its label, or with classifyErr when the
// sample could not be classified.
func (j *Journal) Record(sample ml.RawSample, label ml.PhaseLabel, classifyErr error) error {
	var labelValue, errValue interface{}
	if classifyErr != nil {
		errValue = classifyErr.Error()
	} else {
		labelValue = int64(label)
	}
	_, err := j.insert.Exec(
		sample.PMC1, sample.PMC2, sample.PMC3, sample.PMC4, sample.PMC5, sample.ClusterID,
		labelValue, errValue, time.Now().UTC())
	return pkgerrors.Wrap(err, "record sample")
}

// Entries returns up to limit entries in the order they were recorded.
// A limit <= 0 returns every entry.
func (j *Journal) Entries(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.database.Query(`
        SELECT id, pmc1, pmc2, pmc3, pmc4, pmc5, cluster_id, label, error, recorded_at
        FROM samples
        ORDER BY id ASC
        LIMIT ?`, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "query journal")
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		var label sql.NullInt64
		var errText sql.NullString
		if err := rows.Scan(&e.ID,
			&e.Sample.PMC1, &e.Sample.PMC2, &e.Sample.PMC3, &e.Sample.PMC4, &e.Sample.PMC5, &e.Sample.ClusterID,
			&label, &errText, &e.RecordedAt); err != nil {
			return nil, pkgerrors.Wrap(err, "scan journal row")
		}
		if label.Valid {
			e.Label = ml.PhaseLabel(label.Int64)
		}
		e.Error = errText.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close releases the prepared statement and the database.
func (j *Journal) Close() error {
	if j.insert != nil {
		j.insert.Close()
	}
	return j.database.Close()
}
