// Package worker contains the periodic reconciliation sweeps that keep
// tickets and spaces consistent when drivers or payments go silent.
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

const noShowReason = "no check-in within commitment window"

// NoShowWorkerConfig contains configuration for the no-show sweep
type NoShowWorkerConfig struct {
	// ScanInterval is the interval between sweeps
	ScanInterval time.Duration
	// BatchSize bounds how many tickets one sweep processes
	BatchSize int
}

// DefaultNoShowWorkerConfig returns default configuration
func DefaultNoShowWorkerConfig() *NoShowWorkerConfig {
	return &NoShowWorkerConfig{
		ScanInterval: 5 * time.Minute,
		BatchSize:    100,
	}
}

// NoShowWorker forfeits paid reservations whose driver never arrived within
// the committed window, releasing their spaces
type NoShowWorker struct {
	store   repository.Store
	parking service.ParkingService
	config  *NoShowWorkerConfig
	log     *logger.Logger
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool

	// Stats
	totalForfeited int64
	lastScanTime   time.Time
	lastSweepCount int
}

// NewNoShowWorker creates a new no-show worker
func NewNoShowWorker(store repository.Store, parking service.ParkingService, config *NoShowWorkerConfig) *NoShowWorker {
	if config == nil {
		config = DefaultNoShowWorkerConfig()
	}
	return &NoShowWorker{
		store:   store,
		parking: parking,
		config:  config,
		log:     logger.Get(),
		stopCh:  make(chan struct{}),
	}
}

// Start starts the no-show worker
func (w *NoShowWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("no-show worker already running")
	}
	w.running = true
	w.mu.Unlock()

	w.log.Info("Starting no-show worker")

	w.wg.Add(1)
	go w.run(ctx)
	return nil
}

// Stop stops the no-show worker
func (w *NoShowWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	w.log.Info("Stopping no-show worker")
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("No-show worker stopped")
}

func (w *NoShowWorker) run(ctx context.Context) {
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

// Sweep runs one pass over reservations past their commitment deadline.
// A failure on one ticket is logged and does not stop the pass.
func (w *NoShowWorker) Sweep(ctx context.Context) {
	w.mu.Lock()
	w.lastScanTime = time.Now()
	w.mu.Unlock()

	candidates, err := w.store.Tickets().ListNoShowCandidates(ctx, time.Now().UTC(), w.config.BatchSize)
	if err != nil {
		w.log.Error(fmt.Sprintf("Failed to list no-show candidates: %v", err))
		return
	}
	if len(candidates) == 0 {
		return
	}

	w.log.Info(fmt.Sprintf("Found %d reservations past their commitment deadline", len(candidates)))

	forfeited := 0
	for _, ticket := range candidates {
		if ticket.ReservationStartedAt == nil {
			// paid reservation without a start timestamp should not exist
			w.log.Warn(fmt.Sprintf("Skipping ticket %s: reserved without a reservation start", ticket.ID))
			continue
		}
		if err := w.parking.MarkNoShow(ctx, ticket.ID, noShowReason); err != nil {
			w.log.Error(fmt.Sprintf("Failed to forfeit ticket %s: %v", ticket.ID, err))
			continue
		}
		forfeited++
	}

	w.mu.Lock()
	w.totalForfeited += int64(forfeited)
	w.lastSweepCount = forfeited
	w.mu.Unlock()
}

// GetStats returns worker statistics
func (w *NoShowWorker) GetStats() *NoShowWorkerStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return &NoShowWorkerStats{
		IsRunning:      w.running,
		TotalForfeited: w.totalForfeited,
		LastScanTime:   w.lastScanTime,
		LastSweepCount: w.lastSweepCount,
	}
}

// NoShowWorkerStats contains worker statistics
type NoShowWorkerStats struct {
	IsRunning      bool      `json:"is_running"`
	TotalForfeited int64     `json:"total_forfeited"`
	LastScanTime   time.Time `json:"last_scan_time"`
	LastSweepCount int       `json:"last_sweep_count"`
}
