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

// OverstayWorkerConfig contains configuration for the overstay sweep
type OverstayWorkerConfig struct {
	// ScanInterval is the interval between sweeps
	ScanInterval time.Duration
	// GraceWindow is how long a paid ticket may linger before reverting
	GraceWindow time.Duration
	// BatchSize bounds how many tickets one sweep processes
	BatchSize int
}

// DefaultOverstayWorkerConfig returns default configuration
func DefaultOverstayWorkerConfig() *OverstayWorkerConfig {
	return &OverstayWorkerConfig{
		ScanInterval: time.Minute,
		GraceWindow:  5 * time.Minute,
		BatchSize:    100,
	}
}

// OverstayWorker reverts paid tickets whose vehicle never vacated within the
// grace window back to parked, so the continued stay keeps accruing fees
type OverstayWorker struct {
	store   repository.Store
	parking service.ParkingService
	config  *OverstayWorkerConfig
	log     *logger.Logger
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool

	// Stats
	totalReverted  int64
	lastScanTime   time.Time
	lastSweepCount int
}

// NewOverstayWorker creates a new overstay worker
func NewOverstayWorker(store repository.Store, parking service.ParkingService, config *OverstayWorkerConfig) *OverstayWorker {
	if config == nil {
		config = DefaultOverstayWorkerConfig()
	}
	return &OverstayWorker{
		store:   store,
		parking: parking,
		config:  config,
		log:     logger.Get(),
		stopCh:  make(chan struct{}),
	}
}

// Start starts the overstay worker
func (w *OverstayWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("overstay worker already running")
	}
	w.running = true
	w.mu.Unlock()

	w.log.Info("Starting overstay worker")

	w.wg.Add(1)
	go w.run(ctx)
	return nil
}

// Stop stops the overstay worker
func (w *OverstayWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	w.log.Info("Stopping overstay worker")
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("Overstay worker stopped")
}

func (w *OverstayWorker) run(ctx context.Context) {
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

// Sweep runs one pass over paid tickets past the grace window. A failure on
// one ticket is logged and does not stop the pass.
func (w *OverstayWorker) Sweep(ctx context.Context) {
	w.mu.Lock()
	w.lastScanTime = time.Now()
	w.mu.Unlock()

	cutoff := time.Now().UTC().Add(-w.config.GraceWindow)
	overstayed, err := w.store.Tickets().ListOverstayed(ctx, cutoff, w.config.BatchSize)
	if err != nil {
		w.log.Error(fmt.Sprintf("Failed to list overstayed tickets: %v", err))
		return
	}
	if len(overstayed) == 0 {
		return
	}

	w.log.Info(fmt.Sprintf("Found %d paid tickets past the grace window", len(overstayed)))

	reverted := 0
	for _, ticket := range overstayed {
		if err := w.parking.RevertOverstay(ctx, ticket.ID, cutoff); err != nil {
			w.log.Error(fmt.Sprintf("Failed to revert overstayed ticket %s: %v", ticket.ID, err))
			continue
		}
		reverted++
	}

	w.mu.Lock()
	w.totalReverted += int64(reverted)
	w.lastSweepCount = reverted
	w.mu.Unlock()
}

// GetStats returns worker statistics
func (w *OverstayWorker) GetStats() *OverstayWorkerStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return &OverstayWorkerStats{
		IsRunning:      w.running,
		TotalReverted:  w.totalReverted,
		LastScanTime:   w.lastScanTime,
		LastSweepCount: w.lastSweepCount,
	}
}

// OverstayWorkerStats contains worker statistics
type OverstayWorkerStats struct {
	IsRunning      bool      `json:"is_running"`
	TotalReverted  int64     `json:"total_reverted"`
	LastScanTime   time.Time `json:"last_scan_time"`
	LastSweepCount int       `json:"last_sweep_count"`
}
