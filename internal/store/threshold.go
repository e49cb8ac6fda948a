package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ayusman/hypnosonore/internal/gesture"
)

// ThresholdRepository persists the hysteresis tuning, one row per pattern.
type ThresholdRepository struct {
	db *sql.DB
}

// Thresholds returns the threshold repository for this store.
func (s *Store) Thresholds() *ThresholdRepository {
	return &ThresholdRepository{db: s.db}
}

// Load overlays the stored bands onto base. Patterns without a stored row
// keep base's values. The result is validated.
func (r *ThresholdRepository) Load(base gesture.Thresholds) (gesture.Thresholds, error) {
	rows, err := r.db.Query(`SELECT pattern_id, band FROM pattern_thresholds`)
	if err != nil {
		return base, err
	}
	defer rows.Close()

	t := base
	for rows.Next() {
		var id, band string
		if err := rows.Scan(&id, &band); err != nil {
			return base, err
		}
		var target any
		switch id {
		case gesture.PatternNod:
			target = &t.Nod
		case gesture.PatternTurn:
			target = &t.Turn
		case gesture.PatternSmile:
			target = &t.Smile
		default:
			continue
		}
		if err := json.Unmarshal([]byte(band), target); err != nil {
			return base, fmt.Errorf("decode %s thresholds: %w", id, err)
		}
	}
	if err := rows.Err(); err != nil {
		return base, err
	}
	if err := t.Validate(); err != nil {
		return base, err
	}
	return t, nil
}

// Save validates t and stores every band in one transaction.
func (r *ThresholdRepository) Save(t gesture.Thresholds) error {
	if err := t.Validate(); err != nil {
		return err
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()
	bands := []struct {
		id   string
		band any
	}{
		{gesture.PatternNod, t.Nod},
		{gesture.PatternTurn, t.Turn},
		{gesture.PatternSmile, t.Smile},
	}
	for _, b := range bands {
		data, err := json.Marshal(b.band)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			`INSERT INTO pattern_thresholds (pattern_id, band, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(pattern_id) DO UPDATE SET band = excluded.band, updated_at = excluded.updated_at`,
			b.id, string(data), now,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Reset deletes all stored tuning.
func (r *ThresholdRepository) Reset() error {
	_, err := r.db.Exec(`DELETE FROM pattern_thresholds`)
	return err
}
