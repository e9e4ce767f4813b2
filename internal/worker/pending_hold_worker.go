package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/parkwise/parking-service/internal/repository"
	"github.com/parkwise/parking-service/internal/service"
	"github.com/parkwise/parking-service/pkg/logger"
)

const holdExpiredReason = "reservation fee unpaid within timeout"

// PendingHoldWorkerConfig contains configuration for the stale-hold sweep
type PendingHoldWorkerConfig struct {
	// ScanInterval is the interval between sweeps
	ScanInterval time.Duration
	// HoldTimeout is how long an unpaid reservation hold may exist
	HoldTimeout time.Duration
	// BatchSize bounds how many tickets one sweep processes
	BatchSize int
}

// DefaultPendingHoldWorkerConfig returns default configuration
func DefaultPendingHoldWorkerConfig() *PendingHoldWorkerConfig {
	return &PendingHoldWorkerConfig{
		ScanInterval: time.Minute,
		HoldTimeout:  15 * time.Minute,
		BatchSize:    100,
	}
}

// PendingHoldWorker releases spaces held by reservations whose fee was never
// paid within the hold timeout
type PendingHoldWorker struct {
	store   repository.Store
	parking service.ParkingService
	config  *PendingHoldWorkerConfig
	log     *logger.Logger
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool

	// Stats
	totalExpired   int64
	lastScanTime   time.Time
	lastSweepCount int
}

// NewPendingHoldWorker creates a new pending-hold worker
func NewPendingHoldWorker(store repository.Store, parking service.ParkingService, config *PendingHoldWorkerConfig) *PendingHoldWorker {
	if config == nil {
		config = DefaultPendingHoldWorkerConfig()
	}
	return &PendingHoldWorker{
		store:   store,
		parking: parking,
		config:  config,
		log:     logger.Get(),
		stopCh:  make(chan struct{}),
	}
}

// Start starts the pending-hold worker
func (w *PendingHoldWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("pending-hold worker already running")
	}
	w.running = true
	w.mu.Unlock()

	w.log.Info("Starting pending-hold worker")

	w.wg.Add(1)
	go w.run(ctx)
	return nil
}

// Stop stops the pending-hold worker
func (w *PendingHoldWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	w.log.Info("Stopping pending-hold worker")
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("Pending-hold worker stopped")
}

func (w *PendingHoldWorker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.ScanInterval)
	defer ticker.Stop()

	w.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one pass over unpaid holds older than the hold timeout. A
// failure on one ticket is logged and does not stop the pass.
func (w *PendingHoldWorker) Sweep(ctx context.Context) {
	w.mu.Lock()
	w.lastScanTime = time.Now()
	w.mu.Unlock()

	cutoff := time.Now().UTC().Add(-w.config.HoldTimeout)
	stale, err := w.store.Tickets().ListStaleHolds(ctx, cutoff, w.config.BatchSize)
	if err != nil {
		w.log.Error(fmt.Sprintf("Failed to list stale holds: %v", err))
		return
	}
	if len(stale) == 0 {
		return
	}

	w.log.Info(fmt.Sprintf("Found %d unpaid holds past the timeout", len(stale)))

	expired := 0
	for _, ticket := range stale {
		if err := w.parking.ExpireStaleHold(ctx, ticket.ID, cutoff, holdExpiredReason); err != nil {
			w.log.Error(fmt.Sprintf("Failed to expire hold %s: %v", ticket.ID, err))
			continue
		}
		expired++
	}

	w.mu.Lock()
	w.totalExpired += int64(expired)
	w.lastSweepCount = expired
	w.mu.Unlock()
}

// GetStats returns worker statistics
func (w *PendingHoldWorker) GetStats() *PendingHoldWorkerStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return &PendingHoldWorkerStats{
		IsRunning:      w.running,
		TotalExpired:   w.totalExpired,
		LastScanTime:   w.lastScanTime,
		LastSweepCount: w.lastSweepCount,
	}
}

// PendingHoldWorkerStats contains worker statistics
type PendingHoldWorkerStats struct {
	IsRunning      bool      `json:"is_running"`
	TotalExpired   int64     `json:"total_expired"`
	LastScanTime   time.Time `json:"last_scan_time"`
	LastSweepCount int       `json:"last_sweep_count"`
}
