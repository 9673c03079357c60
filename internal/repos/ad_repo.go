package repos

import (
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jmoiron/sqlx"

	"adwatch/internal/domain"
)

type AdRepo struct{ db *sqlx.DB }

func NewAdRepo(db *sqlx.DB) *AdRepo { return &AdRepo{db: db} }

type adRow struct {
	ID             string `db:"id"`
	WatchID        int64  `db:"watch_id"`
	Title          string `db:"title"`
	URL            string `db:"url"`
	Price          int64  `db:"price"`
	Location       string `db:"location"`
	PostedAt       string `db:"posted_at"`
	Pinned         bool   `db:"pinned"`
	SellerName     string `db:"seller_name"`
	SellerURL      string `db:"seller_url"`
	SellerRating   string `db:"seller_rating"`
	ImageURL       string `db:"image_url"`
	Active         bool   `db:"active"`
	PrevPricesJSON string `db:"prev_prices_json"`
	PriceAlert     bool   `db:"price_alert"`
	CreatedAt      string `db:"created_at"`
	UpdatedAt      string `db:"updated_at"`
}

const adCols = `id, watch_id, title, url, price, location, posted_at, pinned,
  seller_name, seller_url, seller_rating, image_url, active, prev_prices_json, price_alert,
  COALESCE(created_at,'') AS created_at, COALESCE(updated_at,'') AS updated_at`

func (row adRow) toDomain() (domain.Advertisement, error) {
	ad := domain.Advertisement{
		ID:           row.ID,
		WatchID:      row.WatchID,
		Title:        row.Title,
		URL:          row.URL,
		Price:        row.Price,
		Location:     row.Location,
		PostedAt:     row.PostedAt,
		Pinned:       row.Pinned,
		SellerName:   row.SellerName,
		SellerURL:    row.SellerURL,
		SellerRating: row.SellerRating,
		ImageURL:     row.ImageURL,
		Active:       row.Active,
		PriceAlert:   row.PriceAlert,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
	if row.PrevPricesJSON != "" {
		if err := json.Unmarshal([]byte(row.PrevPricesJSON), &ad.PrevPrices); err != nil {
			return domain.Advertisement{}, err
		}
	}
	return ad, nil
}

func marshalPrices(prices []int64) (string, error) {
	if len(prices) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(prices)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ---------- Queries ----------

func (r *AdRepo) Get(watchID int64, adID string) (domain.Advertisement, error) {
	var row adRow
	err := r.db.Get(&row, `
	  SELECT `+adCols+` FROM advertisements WHERE watch_id = ? AND id = ?
	`, watchID, adID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Advertisement{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Advertisement{}, err
	}
	return row.toDomain()
}

// ListByWatch returns every advertisement ever seen for a watch, inactive
// rows included, newest first.
func (r *AdRepo) ListByWatch(watchID int64) ([]domain.Advertisement, error) {
	return r.list(`SELECT `+adCols+` FROM advertisements
	  WHERE watch_id = ? ORDER BY datetime(created_at) DESC, id`, watchID)
}

func (r *AdRepo) ListActiveByWatch(watchID int64) ([]domain.Advertisement, error) {
	return r.list(`SELECT `+adCols+` FROM advertisements
	  WHERE watch_id = ? AND active = 1 ORDER BY datetime(created_at) DESC, id`, watchID)
}

func (r *AdRepo) list(query string, args ...any) ([]domain.Advertisement, error) {
	var rows []adRow
	if err := r.db.Select(&rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]domain.Advertisement, 0, len(rows))
	for _, row := range rows {
		ad, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, ad)
	}
	return out, nil
}

// CountByWatch returns total and active row counts for the dashboard.
func (r *AdRepo) CountByWatch(watchID int64) (total int, active int, err error) {
	err = r.db.QueryRow(`
	  SELECT COUNT(*), COALESCE(SUM(active), 0) FROM advertisements WHERE watch_id = ?
	`, watchID).Scan(&total, &active)
	return total, active, err
}

// ---------- Mutations ----------

// Upsert writes one advertisement as a single-record operation. Conflicts
// on (watch_id, id) update in place so reconciliation passes stay
// idempotent.
func (r *AdRepo) Upsert(ad domain.Advertisement) error {
	prices, err := marshalPrices(ad.PrevPrices)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(`
	  INSERT INTO advertisements(
	    id, watch_id, title, url, price, location, posted_at, pinned,
	    seller_name, seller_url, seller_rating, image_url, active,
	    prev_prices_json, price_alert, created_at
	  )
	  VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	  ON CONFLICT(watch_id, id) DO UPDATE SET
	    title = excluded.title,
	    url = excluded.url,
	    price = excluded.price,
	    location = excluded.location,
	    posted_at = excluded.posted_at,
	    pinned = excluded.pinned,
	    seller_name = excluded.seller_name,
	    seller_url = excluded.seller_url,
	    seller_rating = excluded.seller_rating,
	    image_url = excluded.image_url,
	    active = excluded.active,
	    prev_prices_json = excluded.prev_prices_json,
	    price_alert = excluded.price_alert,
	    updated_at = CURRENT_TIMESTAMP
	`, ad.ID, ad.WatchID, ad.Title, ad.URL, ad.Price, ad.Location, ad.PostedAt, ad.Pinned,
		ad.SellerName, ad.SellerURL, ad.SellerRating, ad.ImageURL, ad.Active,
		prices, ad.PriceAlert)
	return err
}

// SetPriceAlert toggles the alert flag on one advertisement.
func (r *AdRepo) SetPriceAlert(watchID int64, adID string, enabled bool) error {
	res, err := r.db.Exec(`
	  UPDATE advertisements SET price_alert = ?, updated_at = CURRENT_TIMESTAMP
	  WHERE watch_id = ? AND id = ?
	`, enabled, watchID, adID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetPriceAlertForWatch toggles the alert flag on every advertisement under
// a watch and returns how many rows changed.
func (r *AdRepo) SetPriceAlertForWatch(watchID int64, enabled bool) (int64, error) {
	res, err := r.db.Exec(`
	  UPDATE advertisements SET price_alert = ?, updated_at = CURRENT_TIMESTAMP
	  WHERE watch_id = ?
	`, enabled, watchID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
