package worker

import (
	"context"
	"log"
	"time"

	"dealflow/utils"
)

// SyncWorker periodically sweeps every sync-enabled mailbox. Account
// failures are isolated inside the syncer; the loop itself only logs and
// keeps ticking.
type SyncWorker struct {
	syncer   *utils.InboxSyncer
	interval time.Duration
	logger   *log.Logger
}

func NewSyncWorker(syncer *utils.InboxSyncer, interval time.Duration, logger *log.Logger) *SyncWorker {
	return &SyncWorker{
		syncer:   syncer,
		interval: interval,
		logger:   logger,
	}
}

func (sw *SyncWorker) Start(ctx context.Context) {
	sw.logger.Println("Starting inbox sync worker...")

	// One immediate sweep before settling into the tick interval.
	sw.syncer.SyncAllUsers()

	ticker := time.NewTicker(sw.interval)
	for {
		select {
		case <-ticker.C:
			sw.syncer.SyncAllUsers()
		case <-ctx.Done():
			sw.logger.Println("Stopping inbox sync worker...")
			ticker.Stop()
			return
		}
	}
}
