package database

import (
	"sync"
	"time"
)

const (
	// MaxHistoryPoints is the maximum number of stats points kept per instance
	MaxHistoryPoints = 60
)

// StatsPoint represents a single resource usage snapshot
type StatsPoint struct {
	Timestamp     time.Time `json:"timestamp"`
	CPUPercent    float64   `json:"cpuPercent"`
	MemoryUsage   int64     `json:"memoryUsage"`
	MemoryLimit   int64     `json:"memoryLimit"`
	MemoryPercent float64   `json:"memoryPercent"`
	NetworkRx     int64     `json:"networkRx"`
	NetworkTx     int64     `json:"networkTx"`
}

// StatsHistory stores recent resource snapshots per instance
type StatsHistory struct {
	mu      sync.RWMutex
	history map[string][]StatsPoint // instance ID -> points
}

// NewStatsHistory creates a new stats history store
func NewStatsHistory() *StatsHistory {
	return &StatsHistory{
		history: make(map[string][]StatsPoint),
	}
}

// Record adds a new stats point for an instance
func (sh *StatsHistory) Record(instanceID string, point StatsPoint) {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	points := append(sh.history[instanceID], point)
	if len(points) > MaxHistoryPoints {
		points = points[len(points)-MaxHistoryPoints:]
	}
	sh.history[instanceID] = points
}

// Get returns the stats history for an instance
func (sh *StatsHistory) Get(instanceID string) []StatsPoint {
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	points := sh.history[instanceID]
	if points == nil {
		return []StatsPoint{}
	}

	result := make([]StatsPoint, len(points))
	copy(result, points)
	return result
}

// Delete removes the stats history for an instance
func (sh *StatsHistory) Delete(instanceID string) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	delete(sh.history, instanceID)
}
