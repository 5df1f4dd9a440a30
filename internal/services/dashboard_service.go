package services

import (
	"context"
	"encoding/json"

	"github.com/tradmak/aixos/internal/metrics"
	"github.com/tradmak/aixos/internal/redis"
	"github.com/tradmak/aixos/pkg/logger"
)

// DashboardService assembles the admin overview: aggregate counts, recent
// traces and leads, and the live online-agent count from presence.
type DashboardService struct {
	reports  ReportSource
	cache    *redis.CacheStore
	presence *redis.PresenceStore
	log      *logger.Logger
}

func NewDashboardService(reports ReportSource, cache *redis.CacheStore, presence *redis.PresenceStore, log *logger.Logger) *DashboardService {
	return &DashboardService{reports: reports, cache: cache, presence: presence, log: log}
}

// Overview returns the current report. The aggregate part is cached
// briefly; the online-agent count always comes fresh from presence since
// counting agent rows says who exists, not who is here.
func (d *DashboardService) Overview(ctx context.Context) (metrics.Report, error) {
	report, err := d.cachedReport(ctx)
	if err != nil {
		return metrics.Report{}, err
	}
	if online, err := d.presence.OnlineCount(ctx); err == nil {
		report.Counts["onlineAgents"] = online
	} else {
		d.log.Warnf("dashboard: presence count: %v", err)
	}
	return report, nil
}

func (d *DashboardService) cachedReport(ctx context.Context) (metrics.Report, error) {
	if raw, ok, err := d.cache.GetReport(ctx); err == nil && ok {
		var report metrics.Report
		if err := json.Unmarshal(raw, &report); err == nil {
			return report, nil
		}
	}
	report, err := d.reports.Report(ctx)
	if err != nil {
		return metrics.Report{}, err
	}
	if data, err := json.Marshal(report); err == nil {
		if err := d.cache.SetReport(ctx, data); err != nil {
			d.log.Warnf("dashboard: report cache set: %v", err)
		}
	}
	return report, nil
}
