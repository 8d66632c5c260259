package service

import (
	"context"
	"log"
	"time"

	"refbook/config"
	"refbook/internal/models"

	"github.com/go-co-op/gocron/v2"
)

const auditBatchSize = 500

// AuditService reports referral links stuck between a claimed first purchase and an
// awarded credit. It only detects and logs; it never mutates links or balances.
type AuditService struct {
	referrals ReferralStore
	cfg       config.AuditConfig
}

func NewAuditService(cfg config.AuditConfig, referrals ReferralStore) *AuditService {
	return &AuditService{referrals: referrals, cfg: cfg}
}

// Scan returns and logs every stuck link, up to one batch.
func (s *AuditService) Scan(ctx context.Context) ([]models.ReferralLink, error) {
	stuck, err := s.referrals.ListStuck(ctx, auditBatchSize)
	if err != nil {
		log.Printf("[audit] scan failed: %v", err)
		return nil, err
	}
	for _, l := range stuck {
		log.Printf("[audit] stuck referral credit: link=%s referrer=%s referred=%s created=%s",
			l.ID, l.ReferrerID, l.ReferredID, l.CreatedAt.Format(time.RFC3339))
	}
	if len(stuck) > 0 {
		log.Printf("[audit] %d referral link(s) need repair", len(stuck))
	}
	return stuck, nil
}

// Start schedules Scan every cfg.Interval. Callers own the returned scheduler and must
// call Shutdown on it.
func (s *AuditService) Start(ctx context.Context) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	_, err = sched.NewJob(
		gocron.DurationJob(s.cfg.Interval),
		gocron.NewTask(func() {
			_, _ = s.Scan(ctx)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, err
	}
	sched.Start()
	return sched, nil
}
