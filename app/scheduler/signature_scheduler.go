// Package scheduler runs the periodic loops that drive signature convergence
package scheduler

import (
	"context"
	"io"
	"log"
	"os"
	"sync/atomic"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	businessflow "github.com/clearsign-io/clearsign/business_flow"
	"github.com/clearsign-io/clearsign/config"
	"github.com/clearsign-io/clearsign/repository"
)

// SignatureScheduler owns the two periodic triggers: the sync loop that
// converges user signatures for every syncable organization, and the faster
// campaign loop that activates and completes banner campaigns on their
// time windows. Each loop is guarded so a slow cycle is never overlapped by
// the next tick.
type SignatureScheduler struct {
	orgRepo      repository.OrganizationRepository
	batchFlow    businessflow.BatchSyncFlow
	campaignFlow businessflow.CampaignFlow

	syncInterval     time.Duration
	campaignInterval time.Duration
	driftDetection   bool

	syncRunning     atomic.Bool
	campaignRunning atomic.Bool

	logger  *log.Logger
	metrics *Metrics
}

// NewSignatureScheduler creates a new signature scheduler
func NewSignatureScheduler(
	orgRepo repository.OrganizationRepository,
	batchFlow businessflow.BatchSyncFlow,
	campaignFlow businessflow.CampaignFlow,
	cfg config.SchedulerConfig,
	metrics *Metrics,
) *SignatureScheduler {
	syncInterval := cfg.SyncInterval
	if syncInterval <= 0 {
		syncInterval = 5 * time.Minute
	}
	campaignInterval := cfg.CampaignInterval
	if campaignInterval <= 0 {
		campaignInterval = time.Minute
	}

	s := &SignatureScheduler{
		orgRepo:          orgRepo,
		batchFlow:        batchFlow,
		campaignFlow:     campaignFlow,
		syncInterval:     syncInterval,
		campaignInterval: campaignInterval,
		driftDetection:   cfg.DriftDetection,
		metrics:          metrics,
	}
	s.initLogger(cfg)
	return s
}

// initLogger writes to stdout and a size-rotated file
func (s *SignatureScheduler) initLogger(cfg config.SchedulerConfig) {
	var w io.Writer = os.Stdout
	if cfg.LogPath != "" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.LogPath,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			MaxAge:     cfg.LogMaxAgeDays,
			Compress:   true,
		}
		w = io.MultiWriter(os.Stdout, rotated)
	}
	// log.Logger is goroutine-safe; include timestamps with microseconds and UTC
	s.logger = log.New(w, "scheduler ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
}

// Start launches both loops in background goroutines and returns a stop function
func (s *SignatureScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.syncInterval)
		defer ticker.Stop()

		s.runSyncCycle(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runSyncCycle(ctx)
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(s.campaignInterval)
		defer ticker.Stop()

		s.runCampaignCycle(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runCampaignCycle(ctx)
			}
		}
	}()

	return cancel
}

// runSyncCycle syncs every syncable organization once. Ticks that land while
// a previous cycle is still running are dropped, not queued.
func (s *SignatureScheduler) runSyncCycle(ctx context.Context) {
	if !s.syncRunning.CompareAndSwap(false, true) {
		s.logger.Printf("sync cycle still running, skipping tick")
		s.metrics.SyncCyclesSkipped.Inc()
		return
	}
	defer s.syncRunning.Store(false)

	defer func() {
		if r := recover(); r != nil {
			s.logger.Printf("sync cycle panicked: %v", r)
		}
	}()

	s.metrics.SyncCyclesTotal.Inc()
	started := time.Now()

	orgs, err := s.orgRepo.ListSyncable(ctx)
	if err != nil {
		s.logger.Printf("list syncable organizations failed: %v", err)
		return
	}
	if len(orgs) == 0 {
		return
	}
	s.metrics.OrganizationsPerCycle.Observe(float64(len(orgs)))

	for _, org := range orgs {
		if ctx.Err() != nil {
			return
		}

		resp, err := s.batchFlow.SyncOrganizationSignatures(ctx, org.ID)
		if err != nil {
			s.logger.Printf("sync organization id=%d failed: %v", org.ID, err)
			continue
		}
		for _, r := range resp.Results {
			s.metrics.SyncResultsTotal.WithLabelValues(r.Status).Inc()
		}
		if resp.TotalUsers > 0 {
			s.logger.Printf("synced organization id=%d: total=%d success=%d failed=%d skipped=%d",
				org.ID, resp.TotalUsers, resp.SuccessCount, resp.FailureCount, resp.SkippedCount)
		}

		if s.driftDetection {
			drifted, err := s.batchFlow.DetectSignatureDrift(ctx, org.ID)
			if err != nil {
				s.logger.Printf("drift detection for organization id=%d failed: %v", org.ID, err)
				continue
			}
			if len(drifted) > 0 {
				s.metrics.DriftedUsersTotal.Add(float64(len(drifted)))
				s.logger.Printf("organization id=%d: %d drifted users marked pending", org.ID, len(drifted))
			}
		}
	}

	s.metrics.SyncCycleDuration.Observe(time.Since(started).Seconds())
}

// runCampaignCycle launches campaigns whose window has opened and completes
// those whose window has closed
func (s *SignatureScheduler) runCampaignCycle(ctx context.Context) {
	if !s.campaignRunning.CompareAndSwap(false, true) {
		s.logger.Printf("campaign cycle still running, skipping tick")
		s.metrics.CampaignCyclesSkipped.Inc()
		return
	}
	defer s.campaignRunning.Store(false)

	defer func() {
		if r := recover(); r != nil {
			s.logger.Printf("campaign cycle panicked: %v", r)
		}
	}()

	s.metrics.CampaignCyclesTotal.Inc()

	toActivate, err := s.campaignFlow.GetCampaignsToActivate(ctx)
	if err != nil {
		s.logger.Printf("list campaigns to activate failed: %v", err)
	} else {
		for _, c := range toActivate {
			resp, err := s.campaignFlow.LaunchCampaign(ctx, c.ID)
			if err != nil {
				s.logger.Printf("launch campaign id=%d failed: %v", c.ID, err)
				continue
			}
			s.metrics.CampaignTransitions.WithLabelValues("launch").Inc()
			s.logger.Printf("launched campaign id=%d, %d users marked pending", c.ID, resp.AffectedUsers)
		}
	}

	toComplete, err := s.campaignFlow.GetCampaignsToComplete(ctx)
	if err != nil {
		s.logger.Printf("list campaigns to complete failed: %v", err)
		return
	}
	for _, c := range toComplete {
		resp, err := s.campaignFlow.CompleteCampaign(ctx, c.ID)
		if err != nil {
			s.logger.Printf("complete campaign id=%d failed: %v", c.ID, err)
			continue
		}
		s.metrics.CampaignTransitions.WithLabelValues("complete").Inc()
		s.logger.Printf("completed campaign id=%d, %d users marked pending", c.ID, resp.AffectedUsers)
	}
}
