package repos

import (
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jmoiron/sqlx"

	"adwatch/internal/domain"
)

type WatchRepo struct{ db *sqlx.DB }

func NewWatchRepo(db *sqlx.DB) *WatchRepo { return &WatchRepo{db: db} }

// watchRow mirrors the watches table; targets live in a JSON column.
type watchRow struct {
	ID          int64  `db:"id"`
	URL         string `db:"url"`
	LastChecked int64  `db:"last_checked"`
	TargetsJSON string `db:"targets_json"`
	CreatedAt   string `db:"created_at"`
	UpdatedAt   string `db:"updated_at"`
}

const watchCols = `id, url, last_checked, targets_json,
  COALESCE(created_at,'') AS created_at, COALESCE(updated_at,'') AS updated_at`

func (row watchRow) toDomain() (domain.Watch, error) {
	w := domain.Watch{
		ID:          row.ID,
		URL:         row.URL,
		LastChecked: row.LastChecked,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	if row.TargetsJSON != "" {
		if err := json.Unmarshal([]byte(row.TargetsJSON), &w.Targets); err != nil {
			return domain.Watch{}, err
		}
	}
	return w, nil
}

func marshalTargets(targets []domain.NotificationTarget) (string, error) {
	if len(targets) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(targets)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Create inserts a new watch and returns its assigned id.
func (r *WatchRepo) Create(url string) (int64, error) {
	res, err := r.db.Exec(`
	  INSERT INTO watches(url, last_checked, targets_json, created_at)
	  VALUES(?, 0, '[]', CURRENT_TIMESTAMP)
	`, url)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *WatchRepo) Get(id int64) (domain.Watch, error) {
	var row watchRow
	err := r.db.Get(&row, `SELECT `+watchCols+` FROM watches WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Watch{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Watch{}, err
	}
	return row.toDomain()
}

// GetByURL supports duplicate detection on create.
func (r *WatchRepo) GetByURL(url string) (domain.Watch, error) {
	var row watchRow
	err := r.db.Get(&row, `SELECT `+watchCols+` FROM watches WHERE url = ?`, url)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Watch{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Watch{}, err
	}
	return row.toDomain()
}

func (r *WatchRepo) List() ([]domain.Watch, error) {
	var rows []watchRow
	if err := r.db.Select(&rows, `SELECT `+watchCols+` FROM watches ORDER BY id`); err != nil {
		return nil, err
	}
	out := make([]domain.Watch, 0, len(rows))
	for _, row := range rows {
		w, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

// Update persists the mutable watch fields. Id and url are immutable once
// assigned.
func (r *WatchRepo) Update(w domain.Watch) error {
	targets, err := marshalTargets(w.Targets)
	if err != nil {
		return err
	}
	res, err := r.db.Exec(`
	  UPDATE watches
	  SET last_checked = ?, targets_json = ?, updated_at = CURRENT_TIMESTAMP
	  WHERE id = ?
	`, w.LastChecked, targets, w.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkChecked stamps a completed cycle without touching targets.
func (r *WatchRepo) MarkChecked(id int64, ts int64) error {
	res, err := r.db.Exec(`
	  UPDATE watches SET last_checked = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, ts, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes a watch together with its advertisements.
func (r *WatchRepo) Delete(id int64) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM advertisements WHERE watch_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.Exec(`DELETE FROM watches WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return tx.Commit()
}
