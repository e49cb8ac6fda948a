package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Binding is a pattern-to-side-effect binding stored in the database.
type Binding struct {
	ID        string
	PatternID string
	Kind      string
	Target    string
	Action    string
	Config    json.RawMessage
	Enabled   bool
	CreatedAt time.Time
}

// BindingRepository provides CRUD operations for bindings.
type BindingRepository struct {
	db *sql.DB
}

// Bindings returns the binding repository for this store.
func (s *Store) Bindings() *BindingRepository {
	return &BindingRepository{db: s.db}
}

const bindingColumns = `id, pattern_id, kind, target, action, config, enabled, created_at`

// Create inserts a new binding. An empty ID is replaced by a fresh UUID.
func (r *BindingRepository) Create(b *Binding) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	b.CreatedAt = time.Now()

	config := b.Config
	if config == nil {
		config = json.RawMessage("{}")
	}

	_, err := r.db.Exec(
		`INSERT INTO bindings (`+bindingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.PatternID, b.Kind, b.Target, b.Action, string(config), b.Enabled, b.CreatedAt,
	)
	return err
}

// GetByID retrieves a binding by its ID.
func (r *BindingRepository) GetByID(id string) (*Binding, error) {
	b, err := scanBinding(r.db.QueryRow(
		`SELECT `+bindingColumns+` FROM bindings WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

// List retrieves all bindings ordered by pattern then creation time.
func (r *BindingRepository) List() ([]*Binding, error) {
	return r.query(`SELECT ` + bindingColumns + ` FROM bindings ORDER BY pattern_id, created_at`)
}

// ListEnabled retrieves the bindings the dispatcher should run.
func (r *BindingRepository) ListEnabled() ([]*Binding, error) {
	return r.query(`SELECT ` + bindingColumns + ` FROM bindings WHERE enabled = 1 ORDER BY pattern_id, created_at`)
}

// ListByPattern retrieves the bindings of one pattern.
func (r *BindingRepository) ListByPattern(patternID string) ([]*Binding, error) {
	return r.query(`SELECT `+bindingColumns+` FROM bindings WHERE pattern_id = ? ORDER BY created_at`, patternID)
}

func (r *BindingRepository) query(q string, args ...any) ([]*Binding, error) {
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bindings []*Binding
	for rows.Next() {
		b, err := scanBinding(rows)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, b)
	}
	return bindings, rows.Err()
}

// Update updates an existing binding.
func (r *BindingRepository) Update(b *Binding) error {
	config := b.Config
	if config == nil {
		config = json.RawMessage("{}")
	}

	result, err := r.db.Exec(
		`UPDATE bindings SET pattern_id = ?, kind = ?, target = ?, action = ?, config = ?, enabled = ?
		 WHERE id = ?`,
		b.PatternID, b.Kind, b.Target, b.Action, string(config), b.Enabled, b.ID,
	)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// Delete removes a binding by its ID.
func (r *BindingRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM bindings WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBinding(row rowScanner) (*Binding, error) {
	b := &Binding{}
	var config string
	var enabled int
	if err := row.Scan(&b.ID, &b.PatternID, &b.Kind, &b.Target, &b.Action, &config, &enabled, &b.CreatedAt); err != nil {
		return nil, err
	}
	b.Config = json.RawMessage(config)
	b.Enabled = enabled != 0
	return b, nil
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
