// Package reconcile merges a fetched listing snapshot into the stored
// advertisement set for a watch and emits the notification events the
// merge produces.
package reconcile

import (
	"context"

	"adwatch/internal/domain"
	"adwatch/internal/logger"
	"adwatch/internal/repos"
)

type Engine struct {
	ads          *repos.AdRepo
	log          logger.Logger
	alertDefault bool
}

func New(ads *repos.AdRepo, log logger.Logger, alertDefault bool) *Engine {
	return &Engine{ads: ads, log: log, alertDefault: alertDefault}
}

// Reconcile applies one snapshot to the watch's advertisements.
//
// Unknown listings are inserted active and produce a new-advertisement
// event. Known listings whose price moved get the old price appended to
// their history and produce a price-changed event only when the ad has
// its price alert armed. Known listings with an unchanged price are
// refreshed silently, which also covers reactivation of ads that had
// dropped out of an earlier snapshot. Stored ads absent from the
// snapshot are marked inactive without an event so a later reappearance
// stays quiet. Applying the same snapshot twice yields no new events.
func (e *Engine) Reconcile(ctx context.Context, watch domain.Watch, listings []domain.Listing) ([]domain.Event, domain.ReconcileSummary, error) {
	var sum domain.ReconcileSummary
	sum.Found = len(listings)

	known, err := e.ads.ListByWatch(watch.ID)
	if err != nil {
		return nil, sum, &domain.RepositoryError{Op: "list advertisements", Err: err}
	}
	byID := make(map[string]domain.Advertisement, len(known))
	for _, ad := range known {
		byID[ad.ID] = ad
	}

	seen := make(map[string]struct{}, len(listings))
	var events []domain.Event

	for _, l := range listings {
		if err := ctx.Err(); err != nil {
			return events, sum, err
		}
		seen[l.ID] = struct{}{}
		ad := fromListing(watch.ID, l)

		prev, ok := byID[l.ID]
		switch {
		case !ok:
			ad.Active = true
			ad.PrevPrices = []int64{}
			ad.PriceAlert = e.alertDefault
			if err := e.ads.Upsert(ad); err != nil {
				return events, sum, &domain.RepositoryError{Op: "insert advertisement", Err: err}
			}
			sum.New++
			events = append(events, domain.Event{Kind: domain.EventNewAdvertisement, Ad: ad})
			e.log.Debug("new advertisement",
				logger.Int64("watch_id", watch.ID),
				logger.String("ad_id", ad.ID),
				logger.Int64("price", ad.Price))

		case prev.Price != l.Price:
			ad.Active = true
			ad.PrevPrices = append(prev.PrevPrices, prev.Price)
			ad.PriceAlert = prev.PriceAlert
			if ad.PostedAt == "" {
				ad.PostedAt = prev.PostedAt
			}
			if err := e.ads.Upsert(ad); err != nil {
				return events, sum, &domain.RepositoryError{Op: "update advertisement", Err: err}
			}
			sum.PriceChanged++
			if !prev.Active {
				sum.Reactivated++
			}
			if prev.PriceAlert {
				events = append(events, domain.Event{
					Kind:     domain.EventPriceChanged,
					Ad:       ad,
					OldPrice: prev.Price,
					NewPrice: l.Price,
				})
			}
			e.log.Debug("price changed",
				logger.Int64("watch_id", watch.ID),
				logger.String("ad_id", ad.ID),
				logger.Int64("old_price", prev.Price),
				logger.Int64("new_price", l.Price),
				logger.Bool("alert", prev.PriceAlert))

		default:
			ad.Active = true
			ad.PrevPrices = prev.PrevPrices
			ad.PriceAlert = prev.PriceAlert
			if ad.PostedAt == "" {
				ad.PostedAt = prev.PostedAt
			}
			if err := e.ads.Upsert(ad); err != nil {
				return events, sum, &domain.RepositoryError{Op: "refresh advertisement", Err: err}
			}
			if !prev.Active {
				sum.Reactivated++
			}
		}
	}

	for _, prev := range known {
		if _, ok := seen[prev.ID]; ok || !prev.Active {
			continue
		}
		prev.Active = false
		if err := e.ads.Upsert(prev); err != nil {
			return events, sum, &domain.RepositoryError{Op: "deactivate advertisement", Err: err}
		}
		sum.Deactivated++
	}

	return events, sum, nil
}

func fromListing(watchID int64, l domain.Listing) domain.Advertisement {
	return domain.Advertisement{
		ID:           l.ID,
		WatchID:      watchID,
		Title:        l.Title,
		URL:          l.URL,
		Price:        l.Price,
		Location:     l.Location,
		PostedAt:     l.PostedAt,
		Pinned:       l.Pinned,
		SellerName:   l.SellerName,
		SellerURL:    l.SellerURL,
		SellerRating: l.SellerRating,
		ImageURL:     l.ImageURL,
	}
}
