package scheduler

import (
	"context"
	"fmt"
	"time"

	"sitaraServer/config"
	"sitaraServer/db"
	"sitaraServer/export"
	"sitaraServer/metrics"
	"sitaraServer/state"
	"sitaraServer/ws"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Publisher is the part of the hub the scheduler broadcasts through.
type Publisher interface {
	Publish(channel, eventType string, data any)
}

// MarketFromBazaar converts a stored bazaar to its timing view.
func MarketFromBazaar(b db.Bazaar) state.Market {
	return state.Market{
		ID:             b.ID,
		Name:           b.Name,
		OpenTime:       b.OpenTime,
		CloseTime:      b.CloseTime,
		ClosedWeekdays: b.ClosedWeekdays,
		Active:         b.Active,
		SortOrder:      b.SortOrder,
	}
}

func loadMarketsFromDB(ctx context.Context) ([]state.Market, error) {
	bazaars, err := db.ListBazaars(ctx, false)
	if err != nil {
		return nil, err
	}
	markets := make([]state.Market, 0, len(bazaars))
	for _, b := range bazaars {
		markets = append(markets, MarketFromBazaar(b))
	}
	return markets, nil
}

type Scheduler struct {
	registry   *state.Registry
	hub        Publisher
	mirror     export.Mirror
	exportDays int

	loadMarkets  func(ctx context.Context) ([]state.Market, error)
	loadSnapshot func(ctx context.Context, today time.Time, days int) (*export.Snapshot, error)
}

func New(registry *state.Registry, hub Publisher, mirror export.Mirror, exportDays int) *Scheduler {
	return &Scheduler{
		registry:     registry,
		hub:          hub,
		mirror:       mirror,
		exportDays:   exportDays,
		loadMarkets:  loadMarketsFromDB,
		loadSnapshot: export.LoadSnapshot,
	}
}

// RefreshMarkets reloads bazaars into the registry and broadcasts every
// market whose status changed.
func (s *Scheduler) RefreshMarkets(ctx context.Context) error {
	markets, err := s.loadMarkets(ctx)
	if err != nil {
		return fmt.Errorf("failed to load markets: %w", err)
	}

	changed := s.registry.Refresh(markets)
	for _, st := range changed {
		s.hub.Publish(ws.ChannelMarkets, ws.EventMarketStatus, st)
		zap.S().Debugf("🕐 %s is now %s", st.Name, st.Status)
	}

	open := 0
	for _, st := range s.registry.All() {
		if st.Status != state.StatusClosedToday {
			open++
		}
	}
	metrics.MarketsOpen.Set(float64(open))

	return nil
}

// RunExport writes a full snapshot to the mirror. It is a no-op when the
// mirror is disabled.
func (s *Scheduler) RunExport(ctx context.Context) (export.Summary, error) {
	if !s.mirror.Enabled() {
		return export.Summary{}, nil
	}

	snap, err := s.loadSnapshot(ctx, s.registry.Now(), s.exportDays)
	if err != nil {
		return export.Summary{}, fmt.Errorf("failed to load export snapshot: %w", err)
	}
	return s.mirror.ExportAll(ctx, snap)
}

// cronLogger routes cron's own messages through zap. Cron logs every
// wake-up at info, so those go to debug.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw("❌ cron: "+msg, append(keysAndValues, "error", err)...)
}

// Run refreshes markets once, then runs the cron jobs until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.RefreshMarkets(ctx); err != nil {
		zap.S().Errorf("❌ Initial market refresh failed: %v", err)
	}

	logger := cronLogger{log: zap.S()}
	c := cron.New(
		cron.WithLocation(s.registry.Location()),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	if _, err := c.AddFunc(config.MarketRefreshSpec, func() {
		jobCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := s.RefreshMarkets(jobCtx); err != nil {
			zap.S().Errorf("❌ Market refresh failed: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule market refresh: %w", err)
	}

	if _, err := c.AddFunc(config.DailyExportSpec, func() {
		jobCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
		defer cancel()
		if _, err := s.RunExport(jobCtx); err != nil {
			zap.S().Errorf("❌ Daily export failed: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule daily export: %w", err)
	}

	c.Start()
	zap.S().Infof("⏰ Scheduler started (%s)", s.registry.Location())

	<-ctx.Done()
	<-c.Stop().Done()
	zap.S().Info("⏰ Scheduler stopped")
	return nil
}
