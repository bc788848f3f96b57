// Package backfill repairs souls whose personality lags their rarity
// after a degraded evolution. A cron-scheduled pass re-runs the rewrite
// for any soul whose last evolved tier sits below its current tier.
package backfill

import (
	"context"
	"errors"
	"time"

	"github.com/adhocore/gronx"

	"github.com/soulmint/soulmint/pkg/config"
	"github.com/soulmint/soulmint/pkg/evolution"
	"github.com/soulmint/soulmint/pkg/logger"
	"github.com/soulmint/soulmint/pkg/soul"
)

// Service runs the periodic evolution backfill.
type Service struct {
	cfg         config.BackfillConfig
	store       soul.Store
	coordinator *evolution.Coordinator
	cron        *gronx.Gronx
}

func NewService(cfg config.BackfillConfig, store soul.Store, coordinator *evolution.Coordinator) *Service {
	return &Service{
		cfg:         cfg,
		store:       store,
		coordinator: coordinator,
		cron:        gronx.New(),
	}
}

// Run blocks until ctx is cancelled, firing RunOnce whenever the cron
// expression is due. Tick resolution is one minute, matching cron.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		return
	}
	if !s.cron.IsValid(s.cfg.Schedule) {
		logger.ErrorCF("backfill", "invalid cron schedule, backfill disabled", map[string]any{
			"schedule": s.cfg.Schedule,
		})
		return
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case tick := <-ticker.C:
			due, err := s.cron.IsDue(s.cfg.Schedule, tick)
			if err != nil || !due {
				continue
			}
			s.RunOnce(ctx)
		}
	}
}

// RunOnce processes one batch of lagging souls. Exported so the CLI can
// trigger a manual pass.
func (s *Service) RunOnce(ctx context.Context) {
	lagging, err := s.store.ListLaggingEvolutions(ctx, s.cfg.Batch)
	if err != nil {
		logger.ErrorCF("backfill", "scan failed", map[string]any{"error": err.Error()})
		return
	}
	if len(lagging) == 0 {
		return
	}

	logger.InfoCF("backfill", "retrying lagging evolutions", map[string]any{
		"count": len(lagging),
	})

	for _, sl := range lagging {
		s.repair(ctx, sl)
	}
}

func (s *Service) repair(ctx context.Context, sl *soul.Soul) {
	// Synthesize the transition the original turn detected. The level
	// span is approximate; only the tiers matter for the rewrite.
	ev := evolution.NewEvent(sl.ID, sl.LastEvolvedTier, sl.Rarity, sl.Level, sl.Level)

	outcome := s.coordinator.Evolve(ctx, sl, ev)
	if outcome.Err != nil {
		logger.WarnCF("backfill", "evolution still degraded", map[string]any{
			"soul_id": sl.ID,
			"error":   outcome.Err.Error(),
		})
		return
	}
	if !outcome.Applied {
		return
	}

	if err := s.store.Save(ctx, sl); err != nil {
		if errors.Is(err, soul.ErrConflict) {
			// A live chat turn won the race; it will either have evolved
			// the soul itself or left it for the next pass.
			return
		}
		logger.ErrorCF("backfill", "persist failed", map[string]any{
			"soul_id": sl.ID,
			"error":   err.Error(),
		})
		return
	}

	rec := soul.EvolutionRecord{
		ID:        ev.ID,
		SoulID:    ev.SoulID,
		FromTier:  ev.FromTier,
		ToTier:    ev.ToTier,
		FromLevel: ev.FromLevel,
		ToLevel:   ev.ToLevel,
		Outcome:   "backfilled",
		Summary:   outcome.Summary,
		CreatedAt: ev.Timestamp,
	}
	if err := s.store.RecordEvolution(ctx, rec); err != nil {
		logger.WarnCF("backfill", "audit write failed", map[string]any{
			"soul_id": ev.SoulID,
			"error":   err.Error(),
		})
	}

	logger.InfoCF("backfill", "evolution repaired", map[string]any{
		"soul_id": sl.ID,
		"to_tier": sl.Rarity.String(),
	})
}
