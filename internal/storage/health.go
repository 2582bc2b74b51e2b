package storage

import (
	"context"
	"sync"
	"time"
)

// Health statuses
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// Health is the last observed state of a storage backend
type Health struct {
	LastCheck time.Time `json:"last_check"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// HealthManager tracks backend health in memory
type HealthManager struct {
	mu     sync.RWMutex
	health map[string]Health
}

// NewHealthManager creates an empty health manager
func NewHealthManager() *HealthManager {
	return &HealthManager{health: make(map[string]Health)}
}

// UpdateHealth records the health of a backend
func (hm *HealthManager) UpdateHealth(backend string, h Health) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.health[backend] = h
}

// GetHealth returns the health of a backend
func (hm *HealthManager) GetHealth(backend string) (Health, bool) {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	h, ok := hm.health[backend]
	return h, ok
}

// GetAllHealth returns a copy of every recorded status
func (hm *HealthManager) GetAllHealth() map[string]Health {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	result := make(map[string]Health, len(hm.health))
	for k, v := range hm.health {
		result[k] = v
	}
	return result
}

// IsHealthy reports whether a backend was healthy within maxAge
func (hm *HealthManager) IsHealthy(backend string, maxAge time.Duration) bool {
	h, ok := hm.GetHealth(backend)
	if !ok || time.Since(h.LastCheck) > maxAge {
		return false
	}
	return h.Status == StatusHealthy
}

// CheckJournal tests j with a one-row read and records the outcome
func (hm *HealthManager) CheckJournal(ctx context.Context, backend string, j Journal) Health {
	h := Health{LastCheck: time.Now(), Status: StatusHealthy, Message: "journal reachable"}
	if _, err := j.Recent(ctx, 1); err != nil {
		h.Status = StatusUnhealthy
		h.Message = "journal query failed"
		h.Error = err.Error()
	}
	hm.UpdateHealth(backend, h)
	return h
}

// StartHealthMonitor re-checks j every interval until ctx is done
func (hm *HealthManager) StartHealthMonitor(ctx context.Context, backend string, j Journal, interval time.Duration) {
	go func() {
		hm.CheckJournal(ctx, backend, j)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				hm.CheckJournal(ctx, backend, j)
			case <-ctx.Done():
				return
			}
		}
	}()
}
