package database

import (
	"errors"
	"testing"
	"time"

	"github.com/sirrobot01/dbforge/pkg/config"
	"github.com/sirrobot01/dbforge/pkg/storage"
)

// testConfig uses high port ranges so bind probes do not collide with
// services on the host running the tests.
func testConfig() *config.Config {
	return &config.Config{
		MaxRunningInstances:  8,
		InstanceCPULimit:     0.25,
		InstanceMemoryLimit:  256 * 1024 * 1024,
		InstanceStorageLimit: 1024 * 1024 * 1024,
		PortRanges: map[string]config.PortRange{
			"postgresql": {Start: 41432, End: 41441},
			"mysql":      {Start: 41306, End: 41315},
			"redis":      {Start: 41379, End: 41382},
		},
	}
}

func testInstance(engineName string) *storage.Instance {
	return &storage.Instance{
		ID:        "db-" + engineName + "-test",
		OwnerID:   7,
		Name:      "test",
		Engine:    engineName,
		Status:    storage.StatusCreating,
		CreatedAt: time.Now(),
	}
}

func setupAllocator(t *testing.T) (*Allocator, *storage.BoltStorage, *config.Config) {
	t.Helper()
	tmpDir := t.TempDir()
	store, err := storage.NewBoltStorage(tmpDir+"/test.db", tmpDir)
	if err != nil {
		t.Fatalf("failed to create test storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := testConfig()
	return NewAllocator(store, cfg), store, cfg
}

func TestReserveAssignsDistinctPorts(t *testing.T) {
	alloc, _, cfg := setupAllocator(t)
	r := cfg.PortRanges["postgresql"]

	seen := map[int]bool{}
	for i := 0; i < 5; i++ {
		inst := testInstance("postgresql")
		inst.ID = inst.ID + string(rune('a'+i))
		if err := alloc.Reserve(inst); err != nil {
			t.Fatalf("reserve %d failed: %v", i, err)
		}
		if inst.Port < r.Start || inst.Port > r.End {
			t.Errorf("port %d outside range %d-%d", inst.Port, r.Start, r.End)
		}
		if seen[inst.Port] {
			t.Errorf("port %d handed out twice", inst.Port)
		}
		seen[inst.Port] = true
	}
}

func TestReserveExhaustsRange(t *testing.T) {
	alloc, _, cfg := setupAllocator(t)
	size := cfg.PortRanges["redis"].Size()

	for i := 0; i < size; i++ {
		inst := testInstance("redis")
		inst.ID = inst.ID + string(rune('a'+i))
		if err := alloc.Reserve(inst); err != nil {
			t.Fatalf("reserve %d of %d failed: %v", i+1, size, err)
		}
	}

	err := alloc.Reserve(testInstance("redis"))
	if !errors.Is(err, ErrResourceExhausted) {
		t.Errorf("expected ErrResourceExhausted, got %v", err)
	}
}

func TestReserveEnforcesCapacity(t *testing.T) {
	alloc, store, cfg := setupAllocator(t)
	cfg.MaxRunningInstances = 2

	running := testInstance("postgresql")
	running.Status = storage.StatusRunning
	running.Port = 41432
	if err := store.CreateInstance(running); err != nil {
		t.Fatalf("failed to seed running instance: %v", err)
	}
	creating := testInstance("mysql")
	creating.ID = "db-mysql-creating"
	creating.Port = 41306
	if err := store.CreateInstance(creating); err != nil {
		t.Fatalf("failed to seed creating instance: %v", err)
	}

	err := alloc.Reserve(testInstance("redis"))
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("expected ErrCapacityExceeded, got %v", err)
	}
}

func TestErrorRowStillReservesPort(t *testing.T) {
	alloc, store, _ := setupAllocator(t)

	failed := testInstance("postgresql")
	failed.Status = storage.StatusError
	failed.Port = 41432
	if err := store.CreateInstance(failed); err != nil {
		t.Fatalf("failed to seed error instance: %v", err)
	}

	inst := testInstance("postgresql")
	inst.ID = "db-postgresql-next"
	if err := alloc.Reserve(inst); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if inst.Port == failed.Port {
		t.Errorf("port %d of an error row was reused", failed.Port)
	}
}

func TestDeletedRowFreesPort(t *testing.T) {
	alloc, store, _ := setupAllocator(t)

	deleted := testInstance("postgresql")
	deleted.Status = storage.StatusDeleted
	deleted.Port = 41432
	if err := store.CreateInstance(deleted); err != nil {
		t.Fatalf("failed to seed deleted instance: %v", err)
	}

	inst := testInstance("postgresql")
	inst.ID = "db-postgresql-next"
	if err := alloc.Reserve(inst); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if inst.Port != deleted.Port {
		t.Errorf("expected deleted row's port %d to be reused, got %d", deleted.Port, inst.Port)
	}
}

func TestReserveUnknownEngine(t *testing.T) {
	alloc, _, _ := setupAllocator(t)
	err := alloc.Reserve(testInstance("sqlite"))
	if !errors.Is(err, ErrUnknownEngine) {
		t.Errorf("expected ErrUnknownEngine, got %v", err)
	}
}

func TestGeneratePassword(t *testing.T) {
	pw, err := GeneratePassword()
	if err != nil {
		t.Fatalf("GeneratePassword failed: %v", err)
	}
	if len(pw) != passwordLength {
		t.Errorf("expected %d chars, got %d", passwordLength, len(pw))
	}
	for _, c := range pw {
		if !isAlphanumericChar(byte(c)) {
			t.Errorf("password contains non-alphanumeric character %q", c)
		}
	}
}

func isAlphanumericChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
