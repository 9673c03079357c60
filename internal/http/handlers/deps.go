package handlers

import (
	"time"

	"github.com/jmoiron/sqlx"

	"adwatch/internal/jobs"
	"adwatch/internal/repos"
	"adwatch/internal/services"
)

type Deps struct {
	WatchHandler     *WatchHandler
	JobHandler       *JobHandler
	HealthHandler    *HealthHandler
	DashboardHandler *DashboardHandler
}

func NewDeps(db *sqlx.DB, queue *jobs.Queue) *Deps {
	watchRepo := repos.NewWatchRepo(db)
	adRepo := repos.NewAdRepo(db)
	watchSvc := services.NewWatchService(watchRepo, adRepo)

	return &Deps{
		WatchHandler:     &WatchHandler{Watches: watchSvc, Queue: queue},
		JobHandler:       &JobHandler{Queue: queue},
		HealthHandler:    &HealthHandler{DB: db, Watches: watchRepo, Queue: queue, StartedAt: time.Now()},
		DashboardHandler: &DashboardHandler{Watches: watchSvc, Queue: queue},
	}
}
