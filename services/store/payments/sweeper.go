package payments

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Sweeper expira intenções pendentes antigas e reporta as que aguardam reconciliação
type Sweeper struct {
	intents IntentRepository
	ttl     time.Duration
	now     func() time.Time
}

// NewSweeper cria uma nova instância de Sweeper
func NewSweeper(intents IntentRepository, ttl time.Duration) *Sweeper {
	return &Sweeper{
		intents: intents,
		ttl:     ttl,
		now:     time.Now,
	}
}

// SweepResult resume uma execução
type SweepResult struct {
	Expired                int
	AwaitingReconciliation int
}

// Run executa uma varredura
func (s *Sweeper) Run(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	expired, err := s.intents.ExpirePending(ctx, s.now().Add(-s.ttl))
	if err != nil {
		return result, err
	}
	result.Expired = expired

	pending, err := s.intents.CountByStatus(ctx, IntentReconciliationRequired)
	if err != nil {
		return result, err
	}
	result.AwaitingReconciliation = pending

	entry := logrus.WithFields(logrus.Fields{
		"expired":                 expired,
		"awaiting_reconciliation": pending,
	})
	if pending > 0 {
		entry.WithField("reconciliation", true).Warn("🚨 [SWEEP] intents awaiting manual reconciliation")
	} else {
		entry.Debug("🧹 [SWEEP] done")
	}
	return result, nil
}

// Schedule registra a varredura no cron
func (s *Sweeper) Schedule(ctx context.Context, c *cron.Cron, schedule string) (cron.EntryID, error) {
	return c.AddFunc(schedule, func() {
		if _, err := s.Run(ctx); err != nil {
			logrus.WithError(err).Error("❌ [SWEEP] failed")
		}
	})
}
