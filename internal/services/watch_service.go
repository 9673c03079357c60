package services

import (
	"errors"

	"adwatch/internal/domain"
	"adwatch/internal/repos"
)

var ErrDuplicateURL = errors.New("a watch for this url already exists")

// WatchOverview pairs a watch with its advertisement counts for list and
// dashboard views.
type WatchOverview struct {
	domain.Watch
	TotalAds  int `json:"total_ads"`
	ActiveAds int `json:"active_ads"`
}

type WatchService struct {
	Watches *repos.WatchRepo
	Ads     *repos.AdRepo
}

func NewWatchService(watches *repos.WatchRepo, ads *repos.AdRepo) *WatchService {
	return &WatchService{Watches: watches, Ads: ads}
}

// Create registers a new watch. The url is the watch's identity; a
// second watch on the same url is rejected rather than silently merged.
func (s *WatchService) Create(url string, targets []domain.NotificationTarget) (domain.Watch, error) {
	_, err := s.Watches.GetByURL(url)
	switch {
	case err == nil:
		return domain.Watch{}, ErrDuplicateURL
	case !errors.Is(err, domain.ErrNotFound):
		return domain.Watch{}, err
	}

	id, err := s.Watches.Create(url)
	if err != nil {
		return domain.Watch{}, err
	}
	if len(targets) > 0 {
		w := domain.Watch{ID: id, Targets: targets}
		if err := s.Watches.Update(w); err != nil {
			return domain.Watch{}, err
		}
	}
	return s.Watches.Get(id)
}

func (s *WatchService) Get(id int64) (domain.Watch, error) {
	return s.Watches.Get(id)
}

// Overview returns one watch with its ad counts.
func (s *WatchService) Overview(id int64) (WatchOverview, error) {
	w, err := s.Watches.Get(id)
	if err != nil {
		return WatchOverview{}, err
	}
	total, active, err := s.Ads.CountByWatch(id)
	if err != nil {
		return WatchOverview{}, err
	}
	return WatchOverview{Watch: w, TotalAds: total, ActiveAds: active}, nil
}

// List returns every watch with ad counts, ordered by id.
func (s *WatchService) List() ([]WatchOverview, error) {
	watches, err := s.Watches.List()
	if err != nil {
		return nil, err
	}
	out := make([]WatchOverview, 0, len(watches))
	for _, w := range watches {
		total, active, err := s.Ads.CountByWatch(w.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, WatchOverview{Watch: w, TotalAds: total, ActiveAds: active})
	}
	return out, nil
}

// SetTargets replaces the whole notification target list.
func (s *WatchService) SetTargets(id int64, targets []domain.NotificationTarget) (domain.Watch, error) {
	w, err := s.Watches.Get(id)
	if err != nil {
		return domain.Watch{}, err
	}
	w.Targets = targets
	if err := s.Watches.Update(w); err != nil {
		return domain.Watch{}, err
	}
	return s.Watches.Get(id)
}

func (s *WatchService) Delete(id int64) error {
	return s.Watches.Delete(id)
}

// ListAds lists a watch's advertisements, newest first.
func (s *WatchService) ListAds(id int64, activeOnly bool) ([]domain.Advertisement, error) {
	if _, err := s.Watches.Get(id); err != nil {
		return nil, err
	}
	if activeOnly {
		return s.Ads.ListActiveByWatch(id)
	}
	return s.Ads.ListByWatch(id)
}

// SetAdPriceAlert arms or disarms the price alert on one advertisement.
func (s *WatchService) SetAdPriceAlert(watchID int64, adID string, enabled bool) (domain.Advertisement, error) {
	if err := s.Ads.SetPriceAlert(watchID, adID, enabled); err != nil {
		return domain.Advertisement{}, err
	}
	return s.Ads.Get(watchID, adID)
}

// SetAllPriceAlerts arms or disarms every advertisement under the watch
// and reports how many rows changed.
func (s *WatchService) SetAllPriceAlerts(watchID int64, enabled bool) (int64, error) {
	if _, err := s.Watches.Get(watchID); err != nil {
		return 0, err
	}
	return s.Ads.SetPriceAlertForWatch(watchID, enabled)
}
