package database

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"net"
	"sync"
	"time"

	"github.com/sirrobot01/dbforge/pkg/config"
	"github.com/sirrobot01/dbforge/pkg/storage"
)

const passwordLength = 16

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Allocator hands out host ports and enforces the running-instance ceiling.
// A single mutex serializes every check-then-reserve so two concurrent
// creates can never pick the same port or both squeeze under the cap.
type Allocator struct {
	store storage.Storage
	cfg   *config.Config
	mu    sync.Mutex
}

// NewAllocator creates a new allocator
func NewAllocator(store storage.Storage, cfg *config.Config) *Allocator {
	return &Allocator{store: store, cfg: cfg}
}

// Reserve assigns a port to the instance and persists it, all under the
// allocation lock. The row must reach storage before the lock is released,
// otherwise a concurrent create could scan past it.
func (a *Allocator) Reserve(inst *storage.Instance) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.checkCapacityLocked(); err != nil {
		return err
	}

	port, err := a.findPortLocked(inst.Engine)
	if err != nil {
		return err
	}
	inst.Port = port

	if err := a.store.CreateInstance(inst); err != nil {
		return fmt.Errorf("failed to save instance: %w", err)
	}
	return nil
}

// AllocatePort finds a free port in the engine's range without persisting
// anything. Exposed for callers that manage their own reservation.
func (a *Allocator) AllocatePort(engineName string) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.findPortLocked(engineName)
}

// checkCapacityLocked enforces the global instance ceiling. Instances still
// provisioning count against it so bursts cannot overshoot.
func (a *Allocator) checkCapacityLocked() error {
	active := 0
	for _, inst := range a.store.ListInstances() {
		if inst.Status == storage.StatusRunning || inst.Status == storage.StatusCreating {
			active++
		}
	}
	if active >= a.cfg.MaxRunningInstances {
		return fmt.Errorf("%w: %d of %d in use", ErrCapacityExceeded, active, a.cfg.MaxRunningInstances)
	}
	return nil
}

// findPortLocked scans the engine's range in ascending order, skipping ports
// recorded by any non-deleted instance of that engine and ports that fail a
// live bind test. Must be called with the allocation lock held.
func (a *Allocator) findPortLocked(engineName string) (int, error) {
	r, ok := a.cfg.PortRange(engineName)
	if !ok {
		return 0, fmt.Errorf("%w: no port range for %s", ErrUnknownEngine, engineName)
	}

	usedPorts := make(map[int]bool)
	for _, inst := range a.store.ListInstances() {
		if inst.Engine == engineName && !inst.Deleted() {
			usedPorts[inst.Port] = true
		}
	}

	for port := r.Start; port <= r.End; port++ {
		if usedPorts[port] {
			continue
		}
		if isPortAvailable(port) {
			return port, nil
		}
	}
	return 0, fmt.Errorf("%w: %s range %d-%d", ErrResourceExhausted, engineName, r.Start, r.End)
}

// isPortAvailable checks if a port is available on the host
func isPortAvailable(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	ln.Close()
	return true
}

// GeneratePassword returns a 16-character mixed alphanumeric password.
func GeneratePassword() (string, error) {
	return randomAlphanumeric(passwordLength)
}

// DefaultUsername derives a username for an owner when none was supplied.
func DefaultUsername(ownerID int64) string {
	return fmt.Sprintf("user_%d_%d", ownerID, time.Now().UnixMilli())
}

// randomAlphanumeric returns a crypto-secure random string over [A-Za-z0-9].
func randomAlphanumeric(length int) (string, error) {
	buf := make([]byte, length)
	max := big.NewInt(int64(len(alphanumeric)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		buf[i] = alphanumeric[n.Int64()]
	}
	return string(buf), nil
}
