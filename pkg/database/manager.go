package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sirrobot01/dbforge/pkg/config"
	"github.com/sirrobot01/dbforge/pkg/engine"
	"github.com/sirrobot01/dbforge/pkg/runtime"
	"github.com/sirrobot01/dbforge/pkg/storage"
)

// CreateRequest holds parameters for creating an instance
type CreateRequest struct {
	OwnerID  int64  `json:"-"`
	Name     string `json:"name"`
	Engine   string `json:"engine"`
	Version  string `json:"version,omitempty"`
	Username string `json:"username,omitempty"` // auto-generated if empty
	Password string `json:"password,omitempty"` // auto-generated if empty
}

// Gateway is the slice of query-layer behavior the manager needs during
// provisioning: waiting for the engine to accept connections and applying
// the starter schema.
type Gateway interface {
	WaitReady(ctx context.Context, inst *storage.Instance) error
	Bootstrap(ctx context.Context, inst *storage.Instance, ddl string) error
}

// Manager owns the instance lifecycle state machine:
// creating -> running <-> stopped -> deleted, with error reachable from any
// state. Deleted and error are terminal; rows are never hard-deleted.
type Manager struct {
	store   storage.Storage
	client  runtime.Client
	cfg     *config.Config
	alloc   *Allocator
	tokens  *TokenService
	gateway Gateway
	stats   *StatsHistory
}

// NewManager creates a new instance manager
func NewManager(store storage.Storage, client runtime.Client, cfg *config.Config, gateway Gateway) *Manager {
	return &Manager{
		store:   store,
		client:  client,
		cfg:     cfg,
		alloc:   NewAllocator(store, cfg),
		tokens:  NewTokenService(store),
		gateway: gateway,
		stats:   NewStatsHistory(),
	}
}

// Tokens exposes the token service for the API layer.
func (m *Manager) Tokens() *TokenService {
	return m.tokens
}

// Create provisions a new instance synchronously: the returned row carries
// the final state, running or error. Error rows are kept so their port and
// container name stay reserved for inspection.
func (m *Manager) Create(ctx context.Context, req *CreateRequest) (*storage.Instance, error) {
	eng, err := engine.Get(req.Engine)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEngine, req.Engine)
	}
	version, ok := engine.ResolveVersion(eng, req.Version)
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", ErrUnknownVersion, req.Engine, req.Version)
	}

	username := req.Username
	if username == "" {
		username = DefaultUsername(req.OwnerID)
	}
	password := req.Password
	if password == "" {
		password, err = GeneratePassword()
		if err != nil {
			return nil, err
		}
	}

	inst := &storage.Instance{
		ID:            "db-" + uuid.New().String()[:8],
		OwnerID:       req.OwnerID,
		Name:          req.Name,
		Engine:        eng.Name(),
		Version:       version.Version,
		Status:        storage.StatusCreating,
		Host:          "localhost",
		Username:      username,
		Password:      password,
		Database:      SanitizeName(req.Name),
		ContainerName: ContainerName(req.OwnerID, eng.Name(), req.Name),
		MemoryLimit:   m.cfg.InstanceMemoryLimit,
		CPULimit:      m.cfg.InstanceCPULimit,
		StorageLimit:  m.cfg.InstanceStorageLimit,
		CreatedAt:     time.Now(),
	}

	// Capacity check, port assignment and the initial save happen under the
	// allocation lock.
	if err := m.alloc.Reserve(inst); err != nil {
		return nil, err
	}

	// Token issuance never blocks provisioning; fall back to a locally
	// generated value when the service cannot deliver one.
	token, err := m.tokens.IssueInstanceToken()
	if err != nil {
		log.Warn().Err(err).Str("id", inst.ID).Msg("Token issuance failed, using local fallback")
		token, err = randomAlphanumeric(tokenMinLength)
		if err != nil {
			return nil, err
		}
	}
	inst.APIToken = token
	if err := m.store.UpdateInstance(inst); err != nil {
		return nil, fmt.Errorf("failed to save instance: %w", err)
	}

	if err := m.provision(ctx, inst, eng, version); err != nil {
		return inst, err
	}
	return inst, nil
}

// provision runs the container path. Any failure marks the row error with
// the cause and surfaces a typed error.
func (m *Manager) provision(ctx context.Context, inst *storage.Instance, eng engine.Engine, version engine.Version) error {
	imageName := fmt.Sprintf("%s:%s", eng.Image(), version.Tag)

	log.Info().
		Str("id", inst.ID).
		Str("name", inst.Name).
		Str("image", imageName).
		Int("port", inst.Port).
		Msg("Starting instance provisioning")

	if err := m.client.PullImage(ctx, imageName); err != nil {
		return m.failProvision(inst, fmt.Errorf("%w: %s: %v", ErrImagePull, imageName, err))
	}

	// A previous failed provision may have left a container with our name.
	if err := m.client.RemoveContainerByName(ctx, inst.ContainerName); err != nil {
		return m.failProvision(inst, fmt.Errorf("%w: remove leftover container: %v", ErrContainerOperation, err))
	}

	containerCfg := &runtime.ContainerConfig{
		Name:  inst.ContainerName,
		Image: imageName,
		Cmd:   eng.ContainerCmd(inst.Password),
		Env:   eng.EnvVars(inst.Username, inst.Password, inst.Database),
		PortBindings: map[string]string{
			fmt.Sprintf("%d/tcp", eng.DefaultPort()): fmt.Sprintf("%d", inst.Port),
		},
		Volumes: map[string]string{
			VolumeName(inst.ID): eng.DataPath(),
		},
		MemoryLimit: inst.MemoryLimit,
		CPULimit:    inst.CPULimit,
		Labels: map[string]string{
			"dbforge.managed":  "true",
			"dbforge.instance": inst.ID,
		},
	}

	containerID, err := m.client.CreateContainer(ctx, containerCfg)
	if err != nil {
		return m.failProvision(inst, fmt.Errorf("%w: create: %v", ErrContainerOperation, err))
	}
	inst.ContainerID = containerID
	if err := m.store.UpdateInstance(inst); err != nil {
		return fmt.Errorf("failed to save instance: %w", err)
	}

	if err := m.client.StartContainer(ctx, containerID); err != nil {
		return m.failProvision(inst, fmt.Errorf("%w: start: %v", ErrContainerOperation, err))
	}

	if m.gateway != nil {
		if err := m.gateway.WaitReady(ctx, inst); err != nil {
			return m.failProvision(inst, fmt.Errorf("%w: not ready: %v", ErrContainerOperation, err))
		}
	}

	inst.Status = storage.StatusRunning
	inst.StartedAt = time.Now()
	inst.ErrorMessage = ""
	if err := m.store.UpdateInstance(inst); err != nil {
		return fmt.Errorf("failed to save instance: %w", err)
	}

	// Starter schema is best-effort: a bootstrap failure leaves a working
	// empty instance, not an error row.
	if ddl := eng.BootstrapDDL(); ddl != "" && m.gateway != nil {
		if err := m.gateway.Bootstrap(ctx, inst, ddl); err != nil {
			log.Warn().Err(err).Str("id", inst.ID).Msg("Starter schema bootstrap failed")
		}
	}

	log.Info().
		Str("id", inst.ID).
		Str("name", inst.Name).
		Int("port", inst.Port).
		Msg("Instance provisioned successfully")
	return nil
}

// failProvision moves the row to error and returns the cause.
func (m *Manager) failProvision(inst *storage.Instance, cause error) error {
	log.Error().Err(cause).Str("id", inst.ID).Msg("Provisioning failed")
	inst.Status = storage.StatusError
	inst.ErrorMessage = cause.Error()
	if err := m.store.UpdateInstance(inst); err != nil {
		log.Error().Err(err).Str("id", inst.ID).Msg("Failed to persist error state")
	}
	return cause
}

// Get retrieves an instance, enforcing ownership.
func (m *Manager) Get(id string, ownerID int64) (*storage.Instance, error) {
	inst, err := m.store.GetInstance(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if inst.OwnerID != ownerID {
		return nil, ErrUnauthorized
	}
	return inst, nil
}

// GetByAPIToken resolves a non-deleted instance by its API token. Holding
// the token is the authorization on the public query path, so no owner
// scoping applies here.
func (m *Manager) GetByAPIToken(token string) (*storage.Instance, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrNotFound)
	}
	for _, inst := range m.store.ListInstances() {
		if !inst.Deleted() && inst.APIToken == token {
			return inst, nil
		}
	}
	return nil, fmt.Errorf("%w: no instance for token", ErrNotFound)
}

// List returns an owner's instances, excluding soft-deleted rows.
func (m *Manager) List(ownerID int64) []*storage.Instance {
	var out []*storage.Instance
	for _, inst := range m.store.ListInstances() {
		if inst.OwnerID == ownerID && !inst.Deleted() {
			out = append(out, inst)
		}
	}
	return out
}

// Start starts a stopped instance
func (m *Manager) Start(ctx context.Context, id string, ownerID int64) error {
	inst, err := m.Get(id, ownerID)
	if err != nil {
		return err
	}
	if inst.Status != storage.StatusStopped {
		return fmt.Errorf("%w: cannot start instance in state %s", ErrInvalidState, inst.Status)
	}

	// Rows without a container skip the runtime call; the status transition
	// still applies.
	if inst.ContainerID != "" {
		if err := m.client.StartContainer(ctx, inst.ContainerID); err != nil {
			return fmt.Errorf("%w: start: %v", ErrContainerOperation, err)
		}
	}

	inst.Status = storage.StatusRunning
	inst.StartedAt = time.Now()
	return m.store.UpdateInstance(inst)
}

// Stop stops a running instance
func (m *Manager) Stop(ctx context.Context, id string, ownerID int64) error {
	inst, err := m.Get(id, ownerID)
	if err != nil {
		return err
	}
	if inst.Status != storage.StatusRunning {
		return fmt.Errorf("%w: cannot stop instance in state %s", ErrInvalidState, inst.Status)
	}

	if inst.ContainerID != "" {
		if err := m.client.StopContainer(ctx, inst.ContainerID); err != nil {
			return fmt.Errorf("%w: stop: %v", ErrContainerOperation, err)
		}
	}

	inst.Status = storage.StatusStopped
	return m.store.UpdateInstance(inst)
}

// Delete soft-deletes an instance. Container and volume teardown is
// best-effort; the row always ends up deleted so billing and auditing see
// a consistent terminal state. Deleting a deleted instance is a no-op.
func (m *Manager) Delete(ctx context.Context, id string, ownerID int64) error {
	inst, err := m.Get(id, ownerID)
	if err != nil {
		return err
	}
	if inst.Deleted() {
		return nil
	}

	if inst.ContainerID != "" {
		if err := m.client.RemoveContainer(ctx, inst.ContainerID, true); err != nil {
			log.Warn().Err(err).Str("id", id).Msg("Failed to remove container during delete")
		}
	}
	if err := m.client.DeleteVolume(ctx, VolumeName(inst.ID)); err != nil {
		log.Warn().Err(err).Str("id", id).Msg("Failed to remove volume during delete")
	}
	m.stats.Delete(inst.ID)

	inst.Status = storage.StatusDeleted
	return m.store.UpdateInstance(inst)
}

// RegenerateToken issues a fresh API token for an instance.
func (m *Manager) RegenerateToken(id string, ownerID int64) (*storage.Instance, error) {
	inst, err := m.Get(id, ownerID)
	if err != nil {
		return nil, err
	}
	if inst.Deleted() {
		return nil, fmt.Errorf("%w: instance is deleted", ErrInvalidState)
	}

	token, err := m.tokens.IssueInstanceToken()
	if err != nil {
		return nil, err
	}
	inst.APIToken = token
	if err := m.store.UpdateInstance(inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// Logs returns the container log tail for an instance
func (m *Manager) Logs(ctx context.Context, id string, ownerID int64) (string, error) {
	inst, err := m.Get(id, ownerID)
	if err != nil {
		return "", err
	}
	if inst.ContainerID == "" {
		return "", fmt.Errorf("%w: no container associated with instance", ErrInvalidState)
	}
	return m.client.GetContainerLogs(ctx, inst.ContainerID, 200)
}

// Stats returns a live resource snapshot and records it in the history.
func (m *Manager) Stats(ctx context.Context, id string, ownerID int64) (*runtime.ContainerStats, error) {
	inst, err := m.Get(id, ownerID)
	if err != nil {
		return nil, err
	}
	if inst.ContainerID == "" {
		return nil, fmt.Errorf("%w: no container associated with instance", ErrInvalidState)
	}

	stats, err := m.client.GetContainerStats(ctx, inst.ContainerID)
	if err != nil {
		return nil, fmt.Errorf("%w: stats: %v", ErrContainerOperation, err)
	}

	m.stats.Record(inst.ID, StatsPoint{
		Timestamp:     time.Now(),
		CPUPercent:    stats.CPUPercent,
		MemoryUsage:   stats.MemoryUsage,
		MemoryLimit:   stats.MemoryLimit,
		MemoryPercent: stats.MemoryPercent,
		NetworkRx:     stats.NetworkRx,
		NetworkTx:     stats.NetworkTx,
	})
	return stats, nil
}

// StatsHistory returns recorded resource snapshots for an instance.
func (m *Manager) StatsHistory(id string, ownerID int64) ([]StatsPoint, error) {
	if _, err := m.Get(id, ownerID); err != nil {
		return nil, err
	}
	return m.stats.Get(id), nil
}
